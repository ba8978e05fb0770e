package repository

// Session carries the acting principal of one call chain. It is a value:
// Escalate returns a new Session and leaves the receiver untouched, so an
// escalation ends when the callee returns and never reaches another
// goroutine's session.
type Session struct {
	principal string
	escalated bool
}

// NewSession returns a session acting as the principal URI.
func NewSession(principal string) Session {
	return Session{principal: principal}
}

// Principal returns the acting principal URI.
func (s Session) Principal() string { return s.principal }

// Escalated reports whether checks run with administrator rights.
func (s Session) Escalated() bool { return s.escalated }

// Escalate returns a copy that passes every authorization check while
// keeping the original principal for attribution.
func (s Session) Escalate() Session {
	s.escalated = true
	return s
}
