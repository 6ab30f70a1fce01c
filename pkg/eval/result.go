package eval

import (
	"iter"
	"sort"
)

// Resource is the capability contract the engine requires from the
// resource graph. Implementations must have a stable identity so that
// two lookups can be compared for "same resource"; pointer types
// satisfy this naturally.
type Resource interface {
	// Name returns the resource's name within the graph.
	Name() string

	// Lookup returns the child resource or attribute value stored
	// under key. It also serves the reserved navigation keys (".",
	// "..", ".parents", ".ancestors", ".root", ".children",
	// ".descendents", ".all"). ok is false when nothing is stored
	// under key.
	Lookup(key string) (any, bool)
}

// External is an opaque resolved value, such as a secret or an
// imported value. Externals are treated as atomic scalars even when
// the underlying value is list-like, and their interior is never
// speculatively re-resolved as a nested expression.
type External interface {
	// Reveal returns the underlying value.
	Reveal() any
}

// OpaqueValue is the simplest External: a value carried as-is.
type OpaqueValue struct {
	V any
}

// Reveal implements External.
func (o OpaqueValue) Reveal() any { return o.V }

// Result wraps a resolved value together with the metadata the
// evaluator needs: whether the value came from an opaque external
// source and which resource produced it. Results are produced fresh by
// every evaluation step and never mutated after being yielded, except
// for the final-projection step at the last segment.
type Result struct {
	resolved any
	external External
	owner    Resource
}

func newResult(v any) Result {
	if ev, ok := v.(External); ok {
		return Result{resolved: ev.Reveal(), external: ev}
	}
	return Result{resolved: v}
}

// Resolved returns the resolved value.
func (r Result) Resolved() any { return r.resolved }

// IsExternal reports whether the value came from an opaque external
// source.
func (r Result) IsExternal() bool { return r.external != nil }

// Owner returns the resource that produced the value, if any.
func (r Result) Owner() Resource { return r.owner }

// raw returns the external wrapper when present, else the resolved
// value. Foreach iteration and equality checks see externals intact.
func (r Result) raw() any {
	if r.external != nil {
		return r.external
	}
	return r.resolved
}

// lookup outcomes. Both misses drop the candidate; they are kept
// distinct for tracing.
type outcome uint8

const (
	outcomeFound outcome = iota
	outcomeNotFound
	outcomeTypeMismatch
)

// project looks up key in the result's value, producing a fresh Result
// on success. A missing key or out-of-range index is outcomeNotFound;
// applying a key to a value of the wrong shape is outcomeTypeMismatch.
func (r Result) project(key Key) (Result, outcome) {
	switch cur := r.resolved.(type) {
	case Resource:
		if key.IsIndex {
			return Result{}, outcomeTypeMismatch
		}
		v, ok := cur.Lookup(key.Name)
		if !ok {
			return Result{}, outcomeNotFound
		}
		nr := newResult(v)
		nr.owner = cur
		return nr, outcomeFound
	case map[string]any:
		if key.IsIndex {
			return Result{}, outcomeTypeMismatch
		}
		v, ok := cur[key.Name]
		if !ok {
			return Result{}, outcomeNotFound
		}
		nr := newResult(v)
		nr.owner = r.owner
		return nr, outcomeFound
	case []any:
		if !key.IsIndex {
			return Result{}, outcomeTypeMismatch
		}
		if key.Index < 0 || key.Index >= len(cur) {
			return Result{}, outcomeNotFound
		}
		nr := newResult(cur[key.Index])
		nr.owner = r.owner
		return nr, outcomeFound
	default:
		return Result{}, outcomeTypeMismatch
	}
}

// values iterates the elements of a sequence-valued result. This is
// the flattening mechanism: each element becomes its own candidate.
func (r Result) values() iter.Seq[Result] {
	return func(yield func(Result) bool) {
		seq, ok := r.resolved.([]any)
		if !ok {
			return
		}
		for _, v := range seq {
			nr := newResult(v)
			nr.owner = r.owner
			if !yield(nr) {
				return
			}
		}
	}
}

// mapValues iterates the values of a mapping-valued result in sorted
// key order. Decoded documents do not preserve declaration order, so
// sorted keys keep wildcard projection deterministic.
func (r Result) mapValues() iter.Seq[Result] {
	return func(yield func(Result) bool) {
		m, ok := r.resolved.(map[string]any)
		if !ok {
			return
		}
		for _, k := range sortedKeys(m) {
			nr := newResult(m[k])
			nr.owner = r.owner
			if !yield(nr) {
				return
			}
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
