// Package fixtures holds the static accounts the e2e suite logs in with.
package fixtures

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Role names a fixture account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is a seeded account.
type User struct {
	Role     Role   `yaml:"role"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

//go:embed users.yaml
var usersYAML []byte

var (
	loadOnce sync.Once
	byRole   map[Role]User
	loadErr  error
)

// Parse decodes a users document and rejects duplicate or incomplete entries.
func Parse(data []byte) (map[Role]User, error) {
	var doc struct {
		Users []User `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make(map[Role]User, len(doc.Users))
	for i, u := range doc.Users {
		if u.Role == "" || u.Username == "" || u.Password == "" {
			return nil, fmt.Errorf("user %d: role, username and password are required", i)
		}
		if _, dup := users[u.Role]; dup {
			return nil, fmt.Errorf("user %d: duplicate role %q", i, u.Role)
		}
		users[u.Role] = u
	}
	return users, nil
}

func load() (map[Role]User, error) {
	loadOnce.Do(func() { byRole, loadErr = Parse(usersYAML) })
	return byRole, loadErr
}

// Get returns the fixture account for role.
func Get(role Role) (User, error) {
	users, err := load()
	if err != nil {
		return User{}, err
	}
	u, ok := users[role]
	if !ok {
		return User{}, fmt.Errorf("no fixture user for role %q", role)
	}
	return u, nil
}

// MustGet is Get for test setup code.
func MustGet(role Role) User {
	u, err := Get(role)
	if err != nil {
		panic(err)
	}
	return u
}

// Users returns every fixture account ordered by role.
func Users() ([]User, error) {
	users, err := load()
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}
