// Package events carries repository domain events from the point of commit
// to subscribers.
//
// Events are fired synchronously after a successful store commit, never
// before and never for a rolled back operation. Each event is stamped with a
// strictly increasing sequence number from a Clock and an identifier from an
// IDGenerator, so a trace of events is totally ordered even when wall-clock
// timestamps collide.
//
// Subscribers register per Kind, or for All kinds. A NATSForwarder can be
// subscribed to mirror events onto a NATS subject hierarchy.
package events
