package e2e

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/liveview-e2e/tests/e2e/helpers"
)

// requireE2E skips unless the browser suite was asked for explicitly.
func requireE2E(t *testing.T) {
	t.Helper()
	if os.Getenv("E2E") != "1" {
		t.Skip("set E2E=1 to run browser tests")
	}
}

// newBrowser starts a browser for t and tears it down when t finishes.
func newBrowser(t *testing.T) *helpers.BrowserHelper {
	t.Helper()
	requireE2E(t)
	browser := helpers.NewBrowserHelper(t)
	require.NoError(t, browser.Setup(), "Failed to setup browser")
	t.Cleanup(browser.TearDown)
	return browser
}

// TestSetup verifies the E2E environment is configured correctly
func TestSetup(t *testing.T) {
	requireE2E(t)
	browser := helpers.NewBrowserHelper(t)

	t.Logf("Driver: %s", browser.Config.Browser.Driver)
	t.Logf("BASE_URL: %s", browser.Config.Browser.BaseURL)
	t.Logf("Run ID: %s", browser.RunID)
	if browser.Config.Admin.Email == "" {
		t.Log("DEMO_ADMIN_EMAIL not set, fixture admin will be used")
	}
	t.Log("✅ E2E test environment is ready!")
}
