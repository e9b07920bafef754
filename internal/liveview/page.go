package liveview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ElementState is the DOM state a selector wait resolves on.
type ElementState string

const (
	StateAttached ElementState = "attached"
	StateVisible  ElementState = "visible"
)

// Page is the automation driver capability for one browser tab. All methods
// block until done or until ctx expires; a driver-side timeout must be
// reported as an error wrapping context.DeadlineExceeded.
//
// Scripts passed to Evaluate are JavaScript function expressions taking a
// single serializable argument. They may return a promise.
type Page interface {
	Evaluate(ctx context.Context, script string, arg any) (any, error)
	WaitForSelector(ctx context.Context, selector string, state ElementState) error
	WaitForNetworkIdle(ctx context.Context, window time.Duration) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Blur(ctx context.Context, selector string) error
}

// Navigator is implemented by drivers that can load a URL and report the
// current one.
type Navigator interface {
	Goto(ctx context.Context, url string) error
	URL() string
}

// Predicate is a side-effect free check evaluated inside the page.
type Predicate struct {
	Description string
	Script      string
	Arg         any
}

// Observation is the outcome of one predicate evaluation.
type Observation struct {
	OK       bool
	Observed any
}

// Prober evaluates a predicate exactly once. The Poller is written against
// this interface so a push-backed implementation can replace evaluation
// rounds without touching callers.
type Prober interface {
	Probe(ctx context.Context, p Predicate) (Observation, error)
}

// EvalProber probes by calling Page.Evaluate.
type EvalProber struct {
	Page Page
}

func (e EvalProber) Probe(ctx context.Context, p Predicate) (Observation, error) {
	v, err := e.Page.Evaluate(ctx, p.Script, p.Arg)
	if err != nil {
		return Observation{}, err
	}
	return decodeObservation(v), nil
}

// decodeObservation accepts either a bare boolean or an {ok, observed}
// object. Anything else is judged by JavaScript truthiness.
func decodeObservation(v any) Observation {
	switch t := v.(type) {
	case bool:
		return Observation{OK: t, Observed: t}
	case map[string]any:
		ok, _ := t["ok"].(bool)
		return Observation{OK: ok, Observed: normalizeNumber(t["observed"])}
	case nil:
		return Observation{}
	case string:
		return Observation{OK: t != "", Observed: t}
	default:
		n, isNum := toFloat(t)
		if isNum {
			return Observation{OK: n != 0, Observed: normalizeNumber(t)}
		}
		return Observation{OK: true, Observed: t}
	}
}

// normalizeNumber folds the numeric types drivers hand back (int from
// playwright, float64 from CDP JSON) into int when the value is integral.
func normalizeNumber(v any) any {
	f, ok := toFloat(v)
	if !ok {
		return v
	}
	if f == float64(int(f)) {
		return int(f)
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func (p Predicate) String() string {
	if p.Arg == nil {
		return p.Description
	}
	return fmt.Sprintf("%s %v", p.Description, p.Arg)
}
