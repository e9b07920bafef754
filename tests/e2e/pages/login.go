// Package pages holds page objects for the e2e suite.
package pages

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gotrs-io/liveview-e2e/internal/liveview"
)

const (
	loginPath = "/auth/local/login"

	usernameInput = `input[name="user[username]"]`
	passwordInput = `input[name="user[password]"]`
	submitButton  = `button[type="submit"]`
	// Matched by text, so XPath: both drivers accept the xpath= prefix.
	oidcButton    = `xpath=//a[contains(., "Sign in with OIDC")] | //button[contains(., "Sign in with OIDC")]`
	errorMessage  = `[role="alert"], .alert-error, .flash-error`

	loginRedirectTimeout = 5 * time.Second
)

var loginPathPattern = regexp.MustCompile(`/auth/(local/)?login`)

const scriptPathIs = `(path) => ({ ok: location.pathname === path, observed: location.pathname })`

const scriptTextContains = `({ selector, text }) => {
  const el = document.querySelector(selector);
  const content = el ? el.textContent : null;
  return { ok: content !== null && content.includes(text), observed: content };
}`

// LoginPage drives the local sign-in form.
type LoginPage struct {
	session *liveview.Session
	baseURL string
}

func NewLoginPage(session *liveview.Session, baseURL string) *LoginPage {
	return &LoginPage{session: session, baseURL: strings.TrimRight(baseURL, "/")}
}

// Goto opens the login form and waits for it to connect and settle.
func (lp *LoginPage) Goto(ctx context.Context) error {
	return lp.session.NavigateAndConnect(ctx, lp.baseURL+loginPath)
}

func (lp *LoginPage) FillUsername(ctx context.Context, username string) error {
	return lp.session.Page().Fill(ctx, usernameInput, username)
}

func (lp *LoginPage) FillPassword(ctx context.Context, password string) error {
	return lp.session.Page().Fill(ctx, passwordInput, password)
}

func (lp *LoginPage) ClickSubmit(ctx context.Context) error {
	return lp.session.Page().Click(ctx, submitButton)
}

// Login submits credentials and waits for the redirect to the root path.
func (lp *LoginPage) Login(ctx context.Context, username, password string) error {
	if err := lp.FillUsername(ctx, username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	if err := lp.FillPassword(ctx, password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := lp.ClickSubmit(ctx); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	_, err := lp.session.Poller().Poll(ctx, liveview.Predicate{
		Description: "redirect to /",
		Script:      scriptPathIs,
		Arg:         "/",
	}, loginRedirectTimeout)
	return err
}

func (lp *LoginPage) ClickOIDCLogin(ctx context.Context) error {
	return lp.session.Page().Click(ctx, oidcButton)
}

// AssertLoginFormVisible checks that every form control is rendered.
func (lp *LoginPage) AssertLoginFormVisible(ctx context.Context) error {
	timeout := lp.session.Settings().BannerVisibleTimeout
	for _, sel := range []string{usernameInput, passwordInput, submitButton} {
		if err := lp.waitVisible(ctx, sel, timeout); err != nil {
			return err
		}
	}
	return nil
}

// AssertErrorMessage checks that an error alert is shown and contains message.
func (lp *LoginPage) AssertErrorMessage(ctx context.Context, message string) error {
	s := lp.session.Settings()
	if err := lp.waitVisible(ctx, errorMessage, s.BannerVisibleTimeout); err != nil {
		return err
	}
	obs, err := lp.session.Poller().Poll(ctx, liveview.Predicate{
		Description: fmt.Sprintf("error message containing %q", message),
		Script:      scriptTextContains,
		Arg:         map[string]any{"selector": errorMessage, "text": message},
	}, s.BannerTextTimeout)
	if err != nil {
		return &liveview.AssertionTimeoutError{
			Assertion: "error message",
			Subject:   errorMessage,
			Expected:  fmt.Sprintf("text containing %q", message),
			Observed:  obs.Observed,
			Err:       err,
		}
	}
	return nil
}

// AssertOnLoginPage checks that the current address is a login route.
func (lp *LoginPage) AssertOnLoginPage() error {
	nav, ok := lp.session.Page().(liveview.Navigator)
	if !ok {
		return &liveview.MissingCapabilityError{Capability: "navigator"}
	}
	if url := nav.URL(); !loginPathPattern.MatchString(url) {
		return fmt.Errorf("expected a login page, got %s", url)
	}
	return nil
}

func (lp *LoginPage) waitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := lp.session.Page().WaitForSelector(wctx, selector, liveview.StateVisible); err != nil {
		return &liveview.AssertionTimeoutError{
			Assertion: "visible",
			Subject:   selector,
			Expected:  "visible",
			Err:       err,
		}
	}
	return nil
}
