package liveview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertMessageBanner(t *testing.T) {
	t.Run("appears with expected text", func(t *testing.T) {
		page := newFakePage()
		page.after(30*time.Millisecond, func(f *fakePage) {
			f.banner = true
			f.bannerText = "Error: invalid credentials, try again"
		})
		s := NewSession(page, testSettings())

		require.NoError(t, s.AssertMessageBanner(context.Background(), SeverityError, "invalid credentials"))
	})

	t.Run("visible without text check", func(t *testing.T) {
		page := newFakePage()
		page.banner = true
		s := NewSession(page, testSettings())

		require.NoError(t, s.AssertMessageBanner(context.Background(), SeverityInfo, ""))
		assert.Zero(t, page.evalCount())
	})

	t.Run("text arrives late", func(t *testing.T) {
		page := newFakePage()
		page.banner = true
		page.bannerText = "Saving..."
		page.after(40*time.Millisecond, func(f *fakePage) { f.bannerText = "Saved successfully" })
		s := NewSession(page, testSettings())

		require.NoError(t, s.AssertMessageBanner(context.Background(), SeveritySuccess, "Saved"))
	})

	t.Run("no banner", func(t *testing.T) {
		s := NewSession(newFakePage(), testSettings())

		err := s.AssertMessageBanner(context.Background(), SeverityError, "invalid credentials")
		var ae *AssertionTimeoutError
		require.ErrorAs(t, err, &ae)
		assert.ErrorIs(t, err, ErrAssertionTimeout)
		assert.Equal(t, "error", ae.Subject)
		assert.Equal(t, "visible", ae.Expected)
		assert.Contains(t, err.Error(), "error")
	})

	t.Run("text mismatch", func(t *testing.T) {
		page := newFakePage()
		page.banner = true
		page.bannerText = "Welcome back"
		s := NewSession(page, testSettings())

		err := s.AssertMessageBanner(context.Background(), SeverityError, "invalid credentials")
		var ae *AssertionTimeoutError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "Welcome back", ae.Observed)
		assert.Contains(t, err.Error(), `"invalid credentials"`)
	})

	t.Run("unknown severity", func(t *testing.T) {
		s := NewSession(newFakePage(), testSettings())
		err := s.AssertMessageBanner(context.Background(), Severity("fatal"), "")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAssertionTimeout)
	})
}

func TestBannerSelector(t *testing.T) {
	assert.Equal(t,
		`[role="alert"], .alert, .flash-warning, [data-test="flash-warning"]`,
		BannerSelector(SeverityWarning))
}

func TestAssertCollectionCount(t *testing.T) {
	const sel = `#items[phx-update="stream"]`

	t.Run("reaches expected count through intermediate states", func(t *testing.T) {
		page := newFakePage()
		page.collections[sel] = 0
		counts := []int{0, 1, 5, 5, 3}
		page.onEval = func(f *fakePage, n int) {
			if n <= len(counts) {
				f.collections[sel] = counts[n-1]
			}
		}
		s := NewSession(page, testSettings())

		require.NoError(t, s.AssertCollectionCount(context.Background(), "items", 3))
		assert.Equal(t, 5, page.evalCount())
	})

	t.Run("stable wrong count", func(t *testing.T) {
		page := newFakePage()
		page.collections[sel] = 4
		s := NewSession(page, testSettings())

		err := s.AssertCollectionCount(context.Background(), "items", 3)
		var ae *AssertionTimeoutError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "items", ae.Subject)
		assert.Equal(t, "3 items", ae.Expected)
		assert.Equal(t, 4, ae.Observed)
	})

	t.Run("container never attached", func(t *testing.T) {
		s := NewSession(newFakePage(), testSettings())

		err := s.AssertCollectionCount(context.Background(), "items", 3)
		var ae *AssertionTimeoutError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "attached", ae.Expected)
	})

	t.Run("attached only", func(t *testing.T) {
		page := newFakePage()
		page.after(20*time.Millisecond, func(f *fakePage) { f.collections[sel] = 7 })
		s := NewSession(page, testSettings())

		require.NoError(t, s.AssertCollection(context.Background(), "items"))
		assert.Zero(t, page.evalCount())
	})
}

func TestCollectionSelector(t *testing.T) {
	settings := testSettings()
	settings.StreamAttr = "data-collection"
	settings.StreamValue = "ordered"
	s := NewSession(newFakePage(), settings)

	assert.Equal(t, `#messages[data-collection="ordered"]`, s.CollectionSelector("messages"))
}
