package liveview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// windowStub is a minimal EventTarget plus a selector-keyed document. Nodes
// are registered under the exact selector string a script will query.
const windowStub = `(() => {
  const listeners = {};
  const nodes = {};
  const document = {
    nodes,
    querySelectorAll(sel) { return nodes[sel] || []; },
    querySelector(sel) { const all = nodes[sel] || []; return all.length ? all[0] : null; },
  };
  const window = {
    document,
    addEventListener(type, fn, opts) {
      (listeners[type] = listeners[type] || []).push({ fn, once: !!(opts && opts.once) });
    },
    removeEventListener(type, fn) {
      listeners[type] = (listeners[type] || []).filter((l) => l.fn !== fn);
    },
    dispatchEvent(event) {
      for (const l of (listeners[event.type] || []).slice()) {
        if (l.once) this.removeEventListener(event.type, l.fn);
        l.fn(event);
      }
      return true;
    },
    listenerCount(type) { return (listeners[type] || []).length; },
  };
  return window;
})()`

var errNoDOM = errors.New("js page: no DOM")

type jsTimer struct {
	id int64
	at time.Duration
	// js is true for timers created with setTimeout.
	js bool
	fn func()
}

// jsPage evaluates the package scripts in goja. Time is virtual: timers run
// in order when a script's promise needs them, not on the wall clock.
type jsPage struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	now    time.Duration
	nextID int64
	timers []*jsTimer
}

func newJSPage() *jsPage {
	p := &jsPage{vm: goja.New()}
	window, err := p.vm.RunString(windowStub)
	if err != nil {
		panic(err)
	}
	p.vm.Set("window", window)
	p.vm.Set("document", window.ToObject(p.vm).Get("document"))

	p.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(p.vm.NewTypeError("setTimeout: callback is not a function"))
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		id := p.schedule(delay, true, func() {
			if _, err := fn(goja.Undefined()); err != nil {
				panic(err)
			}
		})
		return p.vm.ToValue(id)
	})
	p.vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).ToInteger()
		for i, t := range p.timers {
			if t.id == id {
				p.timers = append(p.timers[:i], p.timers[i+1:]...)
				break
			}
		}
		return goja.Undefined()
	})
	return p
}

func (p *jsPage) schedule(delay time.Duration, js bool, fn func()) int64 {
	p.nextID++
	p.timers = append(p.timers, &jsTimer{id: p.nextID, at: p.now + delay, js: js, fn: fn})
	return p.nextID
}

// step runs the earliest pending timer and advances the clock to it.
func (p *jsPage) step() bool {
	if len(p.timers) == 0 {
		return false
	}
	sort.SliceStable(p.timers, func(i, j int) bool { return p.timers[i].at < p.timers[j].at })
	t := p.timers[0]
	p.timers = p.timers[1:]
	p.now = t.at
	t.fn()
	return true
}

// run executes setup code against the stub.
func (p *jsPage) run(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.vm.RunString(code); err != nil {
		panic(err)
	}
}

// dispatch fires event now.
func (p *jsPage) dispatch(event string) {
	p.run(fmt.Sprintf("window.dispatchEvent({ type: %q })", event))
}

// dispatchAfter schedules event on the virtual clock.
func (p *jsPage) dispatchAfter(d time.Duration, event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schedule(d, false, func() {
		if _, err := p.vm.RunString(fmt.Sprintf("window.dispatchEvent({ type: %q })", event)); err != nil {
			panic(err)
		}
	})
}

// drain runs every pending timer.
func (p *jsPage) drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.step() {
	}
}

func (p *jsPage) listeners(event string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, err := p.vm.RunString(fmt.Sprintf("window.listenerCount(%q)", event))
	if err != nil {
		panic(err)
	}
	return v.ToInteger()
}

// pendingTimers counts setTimeout timers that were neither fired nor cleared.
func (p *jsPage) pendingTimers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.timers {
		if t.js {
			n++
		}
	}
	return n
}

func (p *jsPage) elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

func (p *jsPage) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	v, err := p.vm.RunString("(" + script + ")")
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("js page: script is not a function")
	}
	res, err := fn(goja.Undefined(), p.vm.ToValue(arg))
	if err != nil {
		return nil, err
	}
	prom, ok := res.Export().(*goja.Promise)
	if !ok {
		return res.Export(), nil
	}
	for prom.State() == goja.PromiseStatePending {
		if !p.step() {
			return nil, errors.New("js page: promise never settles")
		}
	}
	if prom.State() == goja.PromiseStateRejected {
		return nil, fmt.Errorf("js page: promise rejected: %v", prom.Result())
	}
	return prom.Result().Export(), nil
}

func (p *jsPage) WaitForSelector(context.Context, string, ElementState) error { return errNoDOM }

func (p *jsPage) WaitForNetworkIdle(context.Context, time.Duration) error { return nil }

func (p *jsPage) Click(context.Context, string) error { return errNoDOM }

func (p *jsPage) Fill(context.Context, string, string) error { return errNoDOM }

func (p *jsPage) Blur(context.Context, string) error { return errNoDOM }

// setNodes registers the nodes a selector resolves to, as a JS array literal.
func (p *jsPage) setNodes(selector, nodes string) {
	p.run(fmt.Sprintf("document.nodes[%q] = %s", selector, nodes))
}
