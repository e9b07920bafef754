// Package cdp adapts a chromedp tab to liveview.Page for environments that
// only expose the Chrome DevTools Protocol.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/gotrs-io/liveview-e2e/internal/liveview"
	"github.com/gotrs-io/liveview-e2e/internal/netidle"
)

var (
	_ liveview.Page      = (*Page)(nil)
	_ liveview.Navigator = (*Page)(nil)
)

const locationTimeout = 2 * time.Second

// xpathPrefix marks an XPath selector, the same engine prefix playwright
// understands.
const xpathPrefix = "xpath="

// Page drives the tab bound to a chromedp context.
type Page struct {
	tab     context.Context
	tracker *netidle.Tracker
}

// New binds to the tab of tab, which must come from chromedp.NewContext,
// and enables network events for idle tracking.
func New(tab context.Context) (*Page, error) {
	p := &Page{tab: tab, tracker: netidle.New()}
	chromedp.ListenTarget(tab, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			p.tracker.Started(e.RequestID)
		case *network.EventLoadingFinished:
			p.tracker.Finished(e.RequestID)
		case *network.EventLoadingFailed:
			p.tracker.Finished(e.RequestID)
		}
	})
	if err := chromedp.Run(tab, network.Enable()); err != nil {
		return nil, fmt.Errorf("enable network events: %w", err)
	}
	return p, nil
}

// Tracker returns the request tracker backing WaitForNetworkIdle.
func (p *Page) Tracker() *netidle.Tracker { return p.tracker }

// run executes actions on the tab, bounded by the deadline and cancellation
// of ctx. Cancelling the derived context does not close the tab.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.tab, d)
	} else {
		runCtx, cancel = context.WithCancel(p.tab)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// invocation renders script applied to its JSON encoded argument.
func invocation(script string, arg any) (string, error) {
	raw, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("encode script argument: %w", err)
	}
	return fmt.Sprintf("(%s)(%s)", script, raw), nil
}

// by splits off the query option for selector. XPath goes through
// DOM.performSearch, anything else through querySelector.
func by(selector string) (string, chromedp.QueryOption) {
	if x, ok := strings.CutPrefix(selector, xpathPrefix); ok {
		return x, chromedp.BySearch
	}
	return selector, chromedp.ByQuery
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (p *Page) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	expr, err := invocation(script, arg)
	if err != nil {
		return nil, err
	}
	var res any
	if err := p.run(ctx, chromedp.Evaluate(expr, &res, awaitPromise)); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, state liveview.ElementState) error {
	sel, opt := by(selector)
	if state == liveview.StateAttached {
		return p.run(ctx, chromedp.WaitReady(sel, opt))
	}
	return p.run(ctx, chromedp.WaitVisible(sel, opt))
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, window time.Duration) error {
	return p.tracker.WaitIdle(ctx, window)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	sel, opt := by(selector)
	return p.run(ctx, chromedp.Click(sel, opt, chromedp.NodeVisible))
}

// Fill replaces the field value with typed keys so input listeners fire.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	sel, opt := by(selector)
	return p.run(ctx,
		chromedp.Clear(sel, opt),
		chromedp.SendKeys(sel, value, opt),
	)
}

func (p *Page) Blur(ctx context.Context, selector string) error {
	sel, opt := by(selector)
	return p.run(ctx, chromedp.Blur(sel, opt))
}

func (p *Page) Goto(ctx context.Context, url string) error {
	p.tracker.Reset()
	return p.run(ctx, chromedp.Navigate(url))
}

// URL returns the current location, or "" if the tab does not answer.
func (p *Page) URL() string {
	ctx, cancel := context.WithTimeout(context.Background(), locationTimeout)
	defer cancel()
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return ""
	}
	return u
}
