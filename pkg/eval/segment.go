package eval

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier alters how a segment participates in evaluation.
type Modifier int8

const (
	// ModNone is the default: every match propagates.
	ModNone Modifier = iota

	// ModFirst (trailing "?") short-circuits the downstream search
	// after the first successful match.
	ModFirst

	// ModNegate (leading "!") inverts a filter predicate. It has no
	// effect outside a filter expression.
	ModNegate
)

func (m Modifier) String() string {
	switch m {
	case ModFirst:
		return "?"
	case ModNegate:
		return "!"
	default:
		return ""
	}
}

// Key identifies what a segment selects from the current value: a
// named attribute or child, a zero-based sequence index, the wildcard
// "*", or nothing (the identity segment).
type Key struct {
	// Name is the key text. Empty for the identity segment and for
	// index keys.
	Name string

	// Index is the sequence index when IsIndex is set.
	Index int

	// IsIndex marks a key that parsed as an integer literal.
	IsIndex bool
}

// IsEmpty reports whether the key is the identity (no-op) key.
func (k Key) IsEmpty() bool { return !k.IsIndex && k.Name == "" }

// IsWildcard reports whether the key selects all values of a mapping.
func (k Key) IsWildcard() bool { return !k.IsIndex && k.Name == "*" }

// IsVar reports whether the key is a variable reference ("$name").
func (k Key) IsVar() bool { return !k.IsIndex && strings.HasPrefix(k.Name, "$") }

func (k Key) String() string {
	if k.IsIndex {
		return strconv.Itoa(k.Index)
	}
	return k.Name
}

// makeKey stores keys that parse as integer literals as indexes.
func makeKey(s string) Key {
	if s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return Key{Index: n, IsIndex: true}
		}
	}
	return Key{Name: s}
}

// CompareOp is a segment test comparator.
type CompareOp int8

const (
	// OpEq is the "=" comparator.
	OpEq CompareOp = iota + 1

	// OpNe is the "!=" comparator. Its failure tolerance is asymmetric:
	// a value that cannot be compared at all satisfies "!=".
	OpNe
)

func (op CompareOp) String() string {
	if op == OpNe {
		return "!="
	}
	return "="
}

// Test is an optional comparison attached to a segment via
// "key=operand" or "key!=operand". An operand of the form "$name" is
// resolved from the context variables; any other operand is coerced to
// the type of the value under test before comparing.
type Test struct {
	Op      CompareOp
	Operand string
}

// Segment is one "::"-delimited step of a path expression. Segments
// are immutable once parsed.
type Segment struct {
	// Key is what the segment selects.
	Key Key

	// Test is the optional comparison test.
	Test *Test

	// Mod is the segment modifier.
	Mod Modifier

	// Filters are nested expressions evaluated as independent
	// predicates over the segment's candidate value.
	Filters [][]Segment
}

func (s Segment) String() string {
	var b strings.Builder
	if s.Mod == ModNegate {
		b.WriteByte('!')
	}
	b.WriteString(s.Key.String())
	if s.Test != nil {
		fmt.Fprintf(&b, "%s%s", s.Test.Op, s.Test.Operand)
	}
	for _, f := range s.Filters {
		b.WriteByte('[')
		for i, seg := range f {
			if i > 0 {
				b.WriteString("::")
			}
			b.WriteString(seg.String())
		}
		b.WriteByte(']')
	}
	if s.Mod == ModFirst {
		b.WriteByte('?')
	}
	return b.String()
}

func formatSegments(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.String()
	}
	return strings.Join(parts, "::")
}
