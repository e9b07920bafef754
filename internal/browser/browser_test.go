package browser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gotrs-io/liveview-e2e/internal/config"
	"github.com/gotrs-io/liveview-e2e/internal/liveview"
)

func TestLaunchUnknownDriver(t *testing.T) {
	_, err := Launch(config.BrowserConfig{Driver: "selenium"}, "", zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"selenium"`)
}

func TestIdleBrowserWithoutPage(t *testing.T) {
	b := &Browser{log: zaptest.NewLogger(t)}

	assert.Equal(t, "", b.URL())
	err := b.Screenshot(filepath.Join(t.TempDir(), "shots", "x.png"))
	assert.EqualError(t, err, "no page to capture")
	assert.NotPanics(t, b.Close)
}

type evalOnly struct{ liveview.Page }

func TestGotoRequiresNavigator(t *testing.T) {
	b := &Browser{Page: evalOnly{}, log: zaptest.NewLogger(t)}
	err := b.Goto(context.Background(), "http://localhost:8080")
	assert.True(t, errors.Is(err, liveview.ErrMissingCapability))
}
