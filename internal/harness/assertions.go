package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mdrepo/internal/repository"
)

// AssertionContext gives assertions access to the final repository state.
type AssertionContext struct {
	Repo *repository.Repository
	// Vars are the values flow steps bound; "$name" arguments resolve
	// against them.
	Vars map[string]string
}

func (c *AssertionContext) resolve(s string) string {
	v, _ := substitute(c.Vars, s).(string)
	return v
}

func (c *AssertionContext) resolveAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = c.resolve(s)
	}
	return out
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Kind, event.Entry)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertEventOrder:
		return assertEventOrder(result.Trace, a)
	case AssertEventCount:
		return assertEventCount(result.Trace, a, actx)
	case AssertFillLevel:
		return assertFillLevel(a, actx)
	case AssertChildren:
		return assertChildren(a, actx)
	case AssertRights:
		return assertRights(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEventOrder checks that the kinds appear in the trace in the given
// order. Other events may occur in between.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Kinds) && event.Kind == a.Kinds[next] {
			next++
		}
	}
	if next == len(a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: strings.Join(a.Kinds, " → "),
		Actual:   fmt.Sprintf("%s not found after %s", a.Kinds[next], strings.Join(a.Kinds[:next], " → ")),
		Trace:    trace,
	}
}

// assertEventCount checks that a kind, optionally for one entry, appears
// exactly Count times.
func assertEventCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	entry := actx.resolve(a.Entry)
	count := 0
	for _, event := range trace {
		if event.Kind == a.Kind && (entry == "" || event.Entry == entry) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	what := a.Kind
	if entry != "" {
		what += " for " + entry
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%s %d time(s)", what, a.Count),
		Actual:   fmt.Sprintf("%d time(s)", count),
		Trace:    trace,
	}
}

func assertFillLevel(a Assertion, actx *AssertionContext) error {
	c, err := actx.Repo.Context(actx.resolve(a.Context))
	if err != nil {
		return err
	}
	fill, err := c.FillLevel()
	if err != nil {
		return err
	}
	if fill == a.Bytes {
		return nil
	}
	return &AssertionError{
		Type:     AssertFillLevel,
		Expected: fmt.Sprintf("context %s filled with %d bytes", c.ID(), a.Bytes),
		Actual:   fmt.Sprintf("%d bytes", fill),
	}
}

func assertChildren(a Assertion, actx *AssertionContext) error {
	l, err := actx.Repo.List(actx.resolve(a.List))
	if err != nil {
		return err
	}
	children, err := l.Children(actx.Repo.AdminSession())
	if err != nil {
		return err
	}
	want := actx.resolveAll(a.Entries)
	if slices.Equal(children, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertChildren,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", children),
	}
}

func assertRights(a Assertion, actx *AssertionContext) error {
	e, err := actx.Repo.Entry(actx.resolve(a.Entry))
	if err != nil {
		return err
	}
	s := actx.Repo.AdminSession()
	switch a.As {
	case "", "admin":
	case "guest":
		s = actx.Repo.GuestSession()
	default:
		if s, err = actx.Repo.SessionFor(a.As); err != nil {
			return err
		}
	}
	rights, err := actx.Repo.Rights(s, e)
	if err != nil {
		return err
	}
	got := make([]string, len(rights))
	for i, r := range rights {
		got[i] = r.String()
	}
	want := make([]string, len(a.Rights))
	for i, r := range a.Rights {
		p, err := repository.ParseAccessProperty(r)
		if err != nil {
			return err
		}
		want[i] = p.String()
	}
	slices.Sort(got)
	slices.Sort(want)
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRights,
		Expected: fmt.Sprintf("%s holds %v on %s", a.As, want, e.URI()),
		Actual:   fmt.Sprintf("%v", got),
	}
}
