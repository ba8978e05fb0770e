package harness

import "github.com/roach88/mdrepo/internal/events"

// TraceEvent is the deterministic projection of a fired event.
type TraceEvent struct {
	Seq       int64  `json:"seq"` // position in the flow trace, from 1
	Kind      string `json:"kind"`
	Entry     string `json:"entry"`
	Context   string `json:"context"`
	Principal string `json:"principal,omitempty"`
}

func traceEventOf(seq int64, e events.Event) TraceEvent {
	return TraceEvent{
		Seq:       seq,
		Kind:      string(e.Kind),
		Entry:     e.EntryURI,
		Context:   e.ContextID,
		Principal: e.Principal,
	}
}

func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"seq":     e.Seq,
		"kind":    e.Kind,
		"entry":   e.Entry,
		"context": e.Context,
	}
	if e.Principal != "" {
		m["principal"] = e.Principal
	}
	return m
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step behaved as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace contains the events the flow fired, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Vars holds the values steps bound.
	Vars map[string]string `json:"vars,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Vars:   make(map[string]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a fired event, numbering it after the events already
// traced.
func (r *Result) AddEvent(e events.Event) {
	r.Trace = append(r.Trace, traceEventOf(int64(len(r.Trace)+1), e))
}
