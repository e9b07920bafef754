package helpers

import (
	"fmt"
	"strings"

	"github.com/gotrs-io/liveview-e2e/internal/fixtures"
	"github.com/gotrs-io/liveview-e2e/tests/e2e/pages"
)

// AuthHelper provides authentication utilities for tests
type AuthHelper struct {
	browser *BrowserHelper
	login   *pages.LoginPage
}

// NewAuthHelper creates a new authentication helper
func NewAuthHelper(browser *BrowserHelper) *AuthHelper {
	return &AuthHelper{
		browser: browser,
		login:   pages.NewLoginPage(browser.Session, browser.Config.Browser.BaseURL),
	}
}

// LoginPage returns the page object the helper drives.
func (a *AuthHelper) LoginPage() *pages.LoginPage { return a.login }

// Login performs login with the given credentials
func (a *AuthHelper) Login(username, password string) error {
	ctx, cancel := a.browser.Ctx()
	defer cancel()

	if err := a.login.Goto(ctx); err != nil {
		return fmt.Errorf("failed to navigate to login: %w", err)
	}
	if err := a.login.AssertLoginFormVisible(ctx); err != nil {
		return fmt.Errorf("login form not found: %w", err)
	}
	if err := a.login.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return nil
}

// LoginAs logs in with the fixture account for role.
func (a *AuthHelper) LoginAs(role fixtures.Role) error {
	u, err := fixtures.Get(role)
	if err != nil {
		return err
	}
	return a.Login(u.Username, u.Password)
}

// LoginAsAdmin logs in with admin credentials from config, falling back to
// the admin fixture.
func (a *AuthHelper) LoginAsAdmin() error {
	admin := a.browser.Config.Admin
	if admin.Email != "" && admin.Password != "" {
		return a.Login(admin.Email, admin.Password)
	}
	return a.LoginAs(fixtures.RoleAdmin)
}

// Logout navigates to the logout endpoint and expects the login form back.
func (a *AuthHelper) Logout() error {
	if err := a.browser.Goto("/auth/logout"); err != nil {
		return fmt.Errorf("failed to navigate to logout: %w", err)
	}
	if err := a.login.AssertOnLoginPage(); err != nil {
		return fmt.Errorf("logout redirect failed: %w", err)
	}
	return nil
}

// IsLoggedIn reports whether the page is an application page other than a
// login route.
func (a *AuthHelper) IsLoggedIn() bool {
	url := a.browser.CurrentURL()
	base := a.browser.Config.Browser.BaseURL
	// Treat blank pages or non-app URLs as not logged in
	if url == "" || strings.HasPrefix(url, "about:") || !strings.HasPrefix(url, base) {
		return false
	}
	return a.login.AssertOnLoginPage() != nil
}
