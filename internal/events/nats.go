package events

import (
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/roach88/mdrepo/internal/ir"
)

// DigestHeader carries the event payload digest on forwarded messages.
const DigestHeader = "Mdrepo-Digest"

// Publisher is the part of *nats.Conn the forwarder uses.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSForwarder mirrors events to NATS subjects of the form
// <prefix>.<context>.<kind>.
type NATSForwarder struct {
	pub    Publisher
	prefix string
}

// NewNATSForwarder creates a forwarder. An empty prefix defaults to
// "mdrepo.events".
func NewNATSForwarder(pub Publisher, prefix string) *NATSForwarder {
	if prefix == "" {
		prefix = "mdrepo.events"
	}
	return &NATSForwarder{pub: pub, prefix: prefix}
}

// Connect dials url and returns a forwarder over the connection. The caller
// closes the returned connection.
func Connect(url, prefix string) (*NATSForwarder, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("mdrepo"))
	if err != nil {
		return nil, nil, err
	}
	return NewNATSForwarder(nc, prefix), nc, nil
}

// Subject returns the subject an event is published on.
func (f *NATSForwarder) Subject(e Event) string {
	ctx := e.ContextID
	if ctx == "" {
		ctx = "_"
	}
	// NATS tokens must not contain dots or whitespace
	ctx = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(ctx)
	return f.prefix + "." + ctx + "." + string(e.Kind)
}

// Handle publishes e. Delivery failures are logged; the repository
// operation that fired the event has already committed.
func (f *NATSForwarder) Handle(e Event) {
	payload := e.Payload()
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		slog.Error("encode event", "kind", e.Kind, "error", err)
		return
	}
	msg := nats.NewMsg(f.Subject(e))
	msg.Data = data
	if digest, err := ir.EventDigest(payload); err == nil {
		msg.Header.Set(DigestHeader, digest)
	}
	if err := f.pub.PublishMsg(msg); err != nil {
		slog.Warn("forward event", "subject", msg.Subject, "error", err)
	}
}
