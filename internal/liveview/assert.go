package liveview

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Severity tags a message banner.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityError, SeveritySuccess, SeverityWarning:
		return true
	}
	return false
}

// BannerSelector matches any alert-role node plus the severity specific
// class and data-test conventions.
func BannerSelector(s Severity) string {
	return fmt.Sprintf(`[role="alert"], .alert, .flash-%s, [data-test="flash-%s"]`, s, s)
}

const scriptFirstContains = `({ selector, text }) => {
  const el = document.querySelector(selector);
  if (!el) return { ok: false, observed: null };
  const content = el.textContent || '';
  return { ok: content.includes(text), observed: content.trim() };
}`

const scriptChildCount = `({ selector, count }) => {
  const el = document.querySelector(selector);
  if (!el) return { ok: false, observed: null };
  const n = el.children.length;
  return { ok: n === count, observed: n };
}`

// AssertMessageBanner waits for a banner of the given severity to become
// visible and, when expectedText is non-empty, for its text to contain it.
func (s *Session) AssertMessageBanner(ctx context.Context, severity Severity, expectedText string) error {
	start := time.Now()
	err := s.assertBanner(ctx, severity, expectedText)
	s.record("assert banner", start, err)
	return err
}

func (s *Session) assertBanner(ctx context.Context, severity Severity, expectedText string) error {
	if !severity.Valid() {
		return fmt.Errorf("unknown banner severity %q", severity)
	}
	selector := BannerSelector(severity)
	subject := string(severity)

	if err := s.waitForSelector(ctx, selector, StateVisible, s.settings.BannerVisibleTimeout); err != nil {
		return assertionError("message banner", subject, "visible", nil, err)
	}
	if expectedText == "" {
		return nil
	}

	_, err := s.poller.Poll(ctx, Predicate{
		Description: "banner text contains",
		Script:      scriptFirstContains,
		Arg:         map[string]any{"selector": selector, "text": expectedText},
	}, s.settings.BannerTextTimeout)
	if err != nil {
		return assertionError("message banner", subject, fmt.Sprintf("text containing %q", expectedText), observedOf(err), err)
	}
	return nil
}

// CollectionSelector matches the ordered collection container with id.
func (s *Session) CollectionSelector(id string) string {
	return fmt.Sprintf(`#%s[%s="%s"]`, id, s.settings.StreamAttr, s.settings.StreamValue)
}

// AssertCollection waits for the collection container to be attached.
func (s *Session) AssertCollection(ctx context.Context, id string) error {
	start := time.Now()
	err := s.assertCollectionAttached(ctx, id)
	s.record("assert collection", start, err)
	return err
}

// AssertCollectionCount waits for the container to be attached and then for
// it to hold exactly expected direct children. Intermediate counts are
// ignored; only the count at the deadline is reported on failure.
func (s *Session) AssertCollectionCount(ctx context.Context, id string, expected int) error {
	start := time.Now()
	err := s.assertCollectionAttached(ctx, id)
	if err == nil {
		_, err = s.poller.Poll(ctx, Predicate{
			Description: "collection child count",
			Script:      scriptChildCount,
			Arg:         map[string]any{"selector": s.CollectionSelector(id), "count": expected},
		}, s.settings.CollectionCountTimeout)
		if err != nil {
			err = assertionError("collection", id, fmt.Sprintf("%d items", expected), observedOf(err), err)
		}
	}
	s.record("assert collection", start, err)
	return err
}

func (s *Session) assertCollectionAttached(ctx context.Context, id string) error {
	if err := s.waitForSelector(ctx, s.CollectionSelector(id), StateAttached, s.settings.CollectionAttachTimeout); err != nil {
		return assertionError("collection", id, "attached", nil, err)
	}
	return nil
}

// waitForSelector bounds a driver selector wait and reports its expiry as a
// *TimeoutError.
func (s *Session) waitForSelector(ctx context.Context, selector string, state ElementState, timeout time.Duration) error {
	if timeout <= 0 {
		return ErrNoDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := s.page.WaitForSelector(ctx, selector, state)
	if err != nil && expired(ctx, err) {
		return &TimeoutError{Op: "wait for selector", Predicate: fmt.Sprintf("%s %s", selector, state), Deadline: timeout}
	}
	return err
}

// assertionError converts timeouts into *AssertionTimeoutError and passes
// every other failure through.
func assertionError(assertion, subject string, expected, observed any, err error) error {
	if !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%s %s: %w", assertion, subject, err)
	}
	return &AssertionTimeoutError{
		Assertion: assertion,
		Subject:   subject,
		Expected:  expected,
		Observed:  observed,
		Err:       err,
	}
}

func observedOf(err error) any {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te.Observed
	}
	return nil
}
