package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainGraph = "mdrepo/graph/v1"
	DomainEvent = "mdrepo/event/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphDigest computes an order-independent digest of a set of statements.
// Two graphs with the same statements in any order have the same digest.
func GraphDigest(g Graph) (string, error) {
	canonical, err := MarshalCanonical(g)
	if err != nil {
		return "", fmt.Errorf("GraphDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// EventDigest computes a digest of an event payload used to correlate
// forwarded events with their local record.
func EventDigest(payload map[string]any) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("EventDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustGraphDigest is like GraphDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGraphDigest(g Graph) string {
	d, err := GraphDigest(g)
	if err != nil {
		panic(err)
	}
	return d
}
