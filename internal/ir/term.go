package ir

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TermKind distinguishes the three RDF term forms.
type TermKind uint8

const (
	// KindNone marks the zero Term. In a pattern it matches anything.
	KindNone TermKind = iota
	KindIRI
	KindLiteral
	KindBlank
)

// String returns the lowercase kind name used in the store schema.
func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindLiteral:
		return "literal"
	case KindBlank:
		return "blank"
	default:
		return "none"
	}
}

// ParseTermKind is the inverse of TermKind.String.
func ParseTermKind(s string) (TermKind, error) {
	switch s {
	case "iri":
		return KindIRI, nil
	case "literal":
		return KindLiteral, nil
	case "blank":
		return KindBlank, nil
	case "none", "":
		return KindNone, nil
	}
	return KindNone, fmt.Errorf("unknown term kind %q", s)
}

// XML Schema datatypes used by the repository vocabulary.
const (
	XSDString   = "http://www.w3.org/2001/XMLSchema#string"
	XSDDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
	XSDLong     = "http://www.w3.org/2001/XMLSchema#long"
	XSDBoolean  = "http://www.w3.org/2001/XMLSchema#boolean"
)

// Term is an IRI, a literal, or a blank node.
//
// Datatype and Lang are only meaningful for literals. A plain literal has an
// empty Datatype; it is equal to nothing but another plain literal with the
// same value.
type Term struct {
	Kind     TermKind `json:"kind"`
	Value    string   `json:"value"`
	Datatype string   `json:"datatype,omitempty"`
	Lang     string   `json:"lang,omitempty"`
}

// IRI creates an IRI term.
func IRI(v string) Term {
	return Term{Kind: KindIRI, Value: v}
}

// Literal creates a plain literal.
func Literal(v string) Term {
	return Term{Kind: KindLiteral, Value: v}
}

// TypedLiteral creates a literal with a datatype IRI.
func TypedLiteral(v, datatype string) Term {
	return Term{Kind: KindLiteral, Value: v, Datatype: datatype}
}

// LangLiteral creates a language-tagged literal.
func LangLiteral(v, lang string) Term {
	return Term{Kind: KindLiteral, Value: v, Lang: strings.ToLower(lang)}
}

// Blank creates a blank node term.
func Blank(id string) Term {
	return Term{Kind: KindBlank, Value: id}
}

// DateTime creates an xsd:dateTime literal in UTC with millisecond precision.
func DateTime(t time.Time) Term {
	return TypedLiteral(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"), XSDDateTime)
}

// Long creates an xsd:long literal.
func Long(n int64) Term {
	return TypedLiteral(strconv.FormatInt(n, 10), XSDLong)
}

// IsZero reports whether t is the zero Term.
func (t Term) IsZero() bool {
	return t.Kind == KindNone
}

// IsIRI reports whether t is an IRI.
func (t Term) IsIRI() bool {
	return t.Kind == KindIRI
}

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool {
	return t.Kind == KindLiteral
}

// Time parses an xsd:dateTime (or untyped RFC 3339) literal.
func (t Term) Time() (time.Time, error) {
	if t.Kind != KindLiteral {
		return time.Time{}, fmt.Errorf("term %s is not a literal", t)
	}
	ts, err := time.Parse(time.RFC3339Nano, t.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse dateTime %q: %w", t.Value, err)
	}
	return ts, nil
}

// Int parses an integer literal.
func (t Term) Int() (int64, error) {
	if t.Kind != KindLiteral {
		return 0, fmt.Errorf("term %s is not a literal", t)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(t.Value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse integer %q: %w", t.Value, err)
	}
	return n, nil
}

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		s := `"` + escapeLiteral(t.Value) + `"`
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" && t.Datatype != XSDString {
			return s + "^^<" + t.Datatype + ">"
		}
		return s
	default:
		return "?"
	}
}

// Compare orders terms by kind, value, datatype and language.
func (t Term) Compare(o Term) int {
	if t.Kind != o.Kind {
		if t.Kind < o.Kind {
			return -1
		}
		return 1
	}
	if c := strings.Compare(t.Value, o.Value); c != 0 {
		return c
	}
	if c := strings.Compare(t.Datatype, o.Datatype); c != 0 {
		return c
	}
	return strings.Compare(t.Lang, o.Lang)
}

func escapeLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
