package liveview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fakeHandle models window.liveSocket.
type fakeHandle struct {
	connected bool
	// main is nil when the handle exposes no view collection.
	main *bool
}

// fakePage is an in-memory stand-in for a browser tab. It answers the
// package scripts from Go state instead of running JavaScript.
type fakePage struct {
	mu sync.Mutex

	loading     int
	handle      *fakeHandle
	banner      bool
	bannerText  string
	collections map[string]int
	// events maps a dispatched event name to its dispatch time.
	events map[string]time.Time

	evalErr  error
	evals    int
	onEval   func(f *fakePage, n int)
	idle     func(ctx context.Context, window time.Duration) error
	idleArgs []time.Duration
	calls    []string

	subscribed []string
	fallbacks  []int64
}

func newFakePage() *fakePage {
	return &fakePage{
		collections: map[string]int{},
		events:      map[string]time.Time{},
	}
}

func (f *fakePage) set(fn func(f *fakePage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakePage) after(d time.Duration, fn func(f *fakePage)) {
	time.AfterFunc(d, func() { f.set(fn) })
}

func (f *fakePage) evalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evals
}

func (f *fakePage) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func result(ok bool, observed any) map[string]any {
	return map[string]any{"ok": ok, "observed": observed}
}

func (f *fakePage) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.evals++
	f.calls = append(f.calls, "evaluate")
	if f.onEval != nil {
		f.onEval(f, f.evals)
	}
	if f.evalErr != nil {
		err := f.evalErr
		f.mu.Unlock()
		return nil, err
	}

	if script == scriptAwaitEvent {
		args := arg.(map[string]any)
		event := args["event"].(string)
		fallback := args["fallback"].(int64)
		f.subscribed = append(f.subscribed, event)
		f.fallbacks = append(f.fallbacks, fallback)
		at, scheduled := f.events[event]
		f.mu.Unlock()
		return f.awaitEvent(ctx, at, scheduled, time.Duration(fallback)*time.Millisecond)
	}
	defer f.mu.Unlock()

	switch script {
	case scriptMarkersAbsent:
		return result(f.loading == 0, f.loading), nil
	case scriptConnected:
		if f.handle == nil {
			return false, nil
		}
		if f.handle.main != nil {
			return *f.handle.main, nil
		}
		return f.handle.connected, nil
	case scriptHandleReady:
		switch {
		case f.handle == nil:
			return result(false, handleAbsent), nil
		case f.handle.connected:
			return result(true, handleConnected), nil
		default:
			return result(false, handleDisconnected), nil
		}
	case scriptFirstContains:
		if !f.banner {
			return result(false, nil), nil
		}
		text := arg.(map[string]any)["text"].(string)
		return result(strings.Contains(f.bannerText, text), f.bannerText), nil
	case scriptChildCount:
		args := arg.(map[string]any)
		n, ok := f.collections[args["selector"].(string)]
		if !ok {
			return result(false, nil), nil
		}
		return result(n == args["count"].(int), n), nil
	}
	return nil, fmt.Errorf("fake page: unknown script")
}

// awaitEvent mirrors scriptAwaitEvent: only a dispatch inside the fallback
// window is observed.
func (f *fakePage) awaitEvent(ctx context.Context, at time.Time, scheduled bool, fallback time.Duration) (any, error) {
	now := time.Now()
	wait, fired := fallback, false
	if scheduled && !at.Before(now) && at.Sub(now) <= fallback {
		wait, fired = at.Sub(now), true
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return fired, nil
	}
}

func (f *fakePage) WaitForSelector(ctx context.Context, selector string, state ElementState) error {
	f.set(func(f *fakePage) { f.calls = append(f.calls, "wait "+string(state)+" "+selector) })
	for {
		f.mu.Lock()
		var ok bool
		if strings.HasPrefix(selector, `[role="alert"]`) {
			ok = f.banner
		} else {
			_, ok = f.collections[selector]
		}
		f.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("selector %s: %w", selector, ctx.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *fakePage) WaitForNetworkIdle(ctx context.Context, window time.Duration) error {
	f.mu.Lock()
	f.calls = append(f.calls, "idle")
	f.idleArgs = append(f.idleArgs, window)
	idle := f.idle
	f.mu.Unlock()
	if idle == nil {
		return nil
	}
	return idle(ctx, window)
}

func (f *fakePage) Click(ctx context.Context, selector string) error {
	return f.act("click " + selector)
}

func (f *fakePage) Fill(ctx context.Context, selector, value string) error {
	return f.act("fill " + selector + "=" + value)
}

func (f *fakePage) Blur(ctx context.Context, selector string) error {
	return f.act("blur " + selector)
}

var errActionFailed = errors.New("element detached")

func (f *fakePage) act(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if strings.Contains(call, "#gone") {
		return errActionFailed
	}
	return nil
}

// neverIdle blocks until the deadline like a page with a hanging request.
func neverIdle(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return fmt.Errorf("network idle: %w", ctx.Err())
}

func testSettings() Settings {
	s := DefaultSettings()
	s.SettleTimeout = 300 * time.Millisecond
	s.ConnectTimeout = 150 * time.Millisecond
	s.BannerVisibleTimeout = 150 * time.Millisecond
	s.BannerTextTimeout = 100 * time.Millisecond
	s.CollectionAttachTimeout = 150 * time.Millisecond
	s.CollectionCountTimeout = 200 * time.Millisecond
	s.EventTimeout = time.Second
	s.EventFallback = 50 * time.Millisecond
	s.ValidationDelay = 30 * time.Millisecond
	s.NetworkIdle = 20 * time.Millisecond
	s.PollInterval = 5 * time.Millisecond
	return s
}

func boolPtr(b bool) *bool { return &b }
