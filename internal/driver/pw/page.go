// Package pw adapts a playwright-go page to liveview.Page.
package pw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/liveview-e2e/internal/liveview"
	"github.com/gotrs-io/liveview-e2e/internal/netidle"
)

var (
	_ liveview.Page      = (*Page)(nil)
	_ liveview.Navigator = (*Page)(nil)
)

// Page drives one playwright tab.
type Page struct {
	page    playwright.Page
	tracker *netidle.Tracker
}

// New wraps page and starts tracking its requests. WebSocket traffic is not
// reported as requests by playwright, so an open push connection never
// holds the network busy.
func New(page playwright.Page) *Page {
	p := &Page{page: page, tracker: netidle.New()}
	page.OnRequest(func(r playwright.Request) { p.tracker.Started(r) })
	page.OnRequestFinished(func(r playwright.Request) { p.tracker.Finished(r) })
	page.OnRequestFailed(func(r playwright.Request) { p.tracker.Finished(r) })
	return p
}

// Raw returns the wrapped playwright page.
func (p *Page) Raw() playwright.Page { return p.page }

// Tracker returns the request tracker backing WaitForNetworkIdle.
func (p *Page) Tracker() *netidle.Tracker { return p.tracker }

func (p *Page) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type evalResult struct {
		v   any
		err error
	}
	// playwright's Evaluate takes no timeout, so the context is enforced here.
	ch := make(chan evalResult, 1)
	go func() {
		v, err := p.page.Evaluate(script, arg)
		ch <- evalResult{v, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.v, mapError(r.err)
	}
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, state liveview.ElementState) error {
	timeout, err := timeoutOf(ctx)
	if err != nil {
		return err
	}
	st := playwright.WaitForSelectorStateVisible
	if state == liveview.StateAttached {
		st = playwright.WaitForSelectorStateAttached
	}
	return mapError(p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   st,
		Timeout: timeout,
	}))
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, window time.Duration) error {
	return p.tracker.WaitIdle(ctx, window)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	timeout, err := timeoutOf(ctx)
	if err != nil {
		return err
	}
	return mapError(p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: timeout}))
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	timeout, err := timeoutOf(ctx)
	if err != nil {
		return err
	}
	return mapError(p.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{Timeout: timeout}))
}

func (p *Page) Blur(ctx context.Context, selector string) error {
	timeout, err := timeoutOf(ctx)
	if err != nil {
		return err
	}
	return mapError(p.page.Locator(selector).First().Blur(playwright.LocatorBlurOptions{Timeout: timeout}))
}

// Goto navigates and waits for DOMContentLoaded. Requests of the previous
// document are forgotten.
func (p *Page) Goto(ctx context.Context, url string) error {
	timeout, err := timeoutOf(ctx)
	if err != nil {
		return err
	}
	p.tracker.Reset()
	_, err = p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeout,
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return mapError(err)
}

func (p *Page) URL() string { return p.page.URL() }

// timeoutOf converts the context deadline to playwright milliseconds. A
// context without deadline leaves the page default in place.
func timeoutOf(ctx context.Context) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil, nil
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		return nil, context.DeadlineExceeded
	}
	return playwright.Float(ms), nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
