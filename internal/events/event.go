package events

import (
	"time"

	"github.com/roach88/mdrepo/internal/ir"
)

// Event is a single domain event.
type Event struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Kind      Kind      `json:"kind"`
	EntryURI  string    `json:"entry"`
	ContextID string    `json:"context"`
	Principal string    `json:"principal,omitempty"`
	Time      time.Time `json:"time"`
}

// Payload returns the event as a canonical-JSON-ready map. The time is
// rendered as an xsd:dateTime lexical value.
func (e Event) Payload() map[string]any {
	p := map[string]any{
		"id":      e.ID,
		"seq":     e.Seq,
		"kind":    string(e.Kind),
		"entry":   e.EntryURI,
		"context": e.ContextID,
		"time":    ir.DateTime(e.Time).Value,
	}
	if e.Principal != "" {
		p["principal"] = e.Principal
	}
	return p
}

// Digest returns the content digest of the event payload.
func (e Event) Digest() (string, error) {
	return ir.EventDigest(e.Payload())
}

// Trace is the deterministic projection of an event used in golden files:
// it omits the identifier and wall-clock time.
func (e Event) Trace() map[string]any {
	p := map[string]any{
		"seq":     e.Seq,
		"kind":    string(e.Kind),
		"entry":   e.EntryURI,
		"context": e.ContextID,
	}
	if e.Principal != "" {
		p["principal"] = e.Principal
	}
	return p
}
