package eval

import (
	"iter"
	"reflect"
	"strconv"
	"strings"
)

// treatAsSingular decides whether a segment applies to the value
// directly or iterates its elements. External values stay singular
// even when list-like, and an integer key always indexes into the
// sequence as a whole.
func treatAsSingular(r Result, seg Segment) bool {
	if seg.Key.IsWildcard() {
		return false
	}
	if r.external != nil {
		return true
	}
	if _, ok := r.resolved.([]any); ok {
		return seg.Key.IsIndex
	}
	return true
}

// evalTest evaluates a segment's comparison test. The operand is
// resolved from the context variables when it is a "$name" reference,
// otherwise its text is coerced to the type of the value under test.
// When coercion fails the test holds exactly when the comparator is
// "!=": an absent or incomparable value is definitely not equal.
func evalTest(value any, t *Test, ctx *RefContext) bool {
	var operand any
	if name, ok := strings.CutPrefix(t.Operand, "$"); ok {
		v, found := ctx.Vars[name]
		if !found {
			return t.Op == OpNe
		}
		operand = v
	} else {
		c, err := coerceScalar(t.Operand, value)
		if err != nil {
			ctx.trace("test coercion failed for %q against %T, ne: %v", t.Operand, value, t.Op == OpNe)
			return t.Op == OpNe
		}
		operand = c
	}
	eq := reflect.DeepEqual(value, operand)
	ctx.trace("compare %v %s %v: %v", value, t.Op, operand, eq)
	if t.Op == OpNe {
		return !eq
	}
	return eq
}

// coerceScalar converts the operand text to the type of value.
// Coercion is deliberately scoped to scalars; container-typed values
// never coerce, which makes their comparisons fail unless the
// comparator is "!=".
func coerceScalar(text string, value any) (any, error) {
	switch value.(type) {
	case string:
		return text, nil
	case int:
		return strconv.Atoi(text)
	case int64:
		return strconv.ParseInt(text, 10, 64)
	case float64:
		return strconv.ParseFloat(text, 64)
	case bool:
		return strconv.ParseBool(text)
	default:
		return nil, newEvalError("cannot coerce %q to %T", text, value)
	}
}

// lookupSeg resolves a segment key against a result. Resource-typed
// values update the shared last-visited resource before the lookup so
// that later relative navigation starts from the most recent resource
// encountered.
func lookupSeg(r Result, key Key, ctx *RefContext) (Result, bool) {
	if key.IsVar() {
		v, ok := ctx.Vars[key.Name[1:]]
		if !ok {
			ctx.trace("lookup %s: unbound variable", key)
			return Result{}, false
		}
		switch kv := v.(type) {
		case string:
			key = makeKey(kv)
		case int:
			key = Key{Index: kv, IsIndex: true}
		default:
			ctx.trace("lookup %s: variable is not a key (%T)", key, v)
			return Result{}, false
		}
	}

	if res, ok := r.resolved.(Resource); ok {
		ctx.last = res
	}

	nr, out := r.project(key)
	if out != outcomeFound {
		ctx.trace("lookup %s: no match (%d)", key, out)
		return Result{}, false
	}
	ctx.trace("lookup %s, got %v", key, nr.resolved)
	return nr, true
}

// evalItem applies the current segment to one candidate, returning at
// most one result: the key lookup, then each filter as an independent
// predicate, then the comparison test.
func evalItem(r Result, seg Segment, ctx *RefContext) (Result, bool) {
	if !seg.Key.IsEmpty() {
		nr, ok := lookupSeg(r, seg.Key, ctx)
		if !ok {
			// An absent key still satisfies a "!=" test; the candidate
			// passes through with its current value. This is the
			// "unset or different" idiom.
			if seg.Test != nil && seg.Test.Op == OpNe {
				return r, true
			}
			return Result{}, false
		}
		r = nr
	}

	value := r.resolved
	for _, filter := range seg.Filters {
		var start []any
		if treatAsSingular(r, filter[0]) {
			start = []any{value}
		} else {
			start, _ = value.([]any)
		}
		// filters are independent sub-evaluations: they work on a
		// clone and their movement does not leak back
		fctx := ctx.copy(nil, nil)
		matches := evalExp(start, filter, fctx)
		negate := filter[0].Mod == ModNegate
		if negate == (len(matches) > 0) {
			return Result{}, false
		}
	}

	if seg.Test != nil && !evalTest(value, seg.Test, ctx) {
		return Result{}, false
	}
	return r, true
}

// evalSegments is the recursive projection step: it applies the head
// segment to each incoming candidate and recurses into the tail,
// yielding results lazily. A first-match segment stops the whole
// downstream search after the first candidate that produced results.
func evalSegments(in iter.Seq[Result], segs []Segment, ctx *RefContext) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		seg := segs[0]
		matchFirst := seg.Mod == ModFirst
		for r := range in {
			if ctx.failed() {
				return
			}

			var iv iter.Seq[Result]
			var rest []Segment
			if treatAsSingular(r, seg) {
				rest = segs[1:]
				item, ok := evalItem(r, seg, ctx)
				if !ok {
					continue
				}
				iv = singleResult(item)
			} else if seg.Key.IsWildcard() {
				// "*" selects every value of a mapping and advances
				if _, ok := r.resolved.(map[string]any); !ok {
					ctx.trace("* is skipping %T", r.resolved)
					continue
				}
				iv = r.mapValues()
				rest = segs[1:]
			} else {
				// a sequence meeting a non-index key: re-apply the same
				// segment to each element, flattening the multiplicity
				iv = r.values()
				rest = segs
			}

			if len(rest) > 0 {
				found := false
				for rr := range evalSegments(iv, rest, ctx) {
					found = true
					if !yield(rr) {
						return
					}
				}
				if found && matchFirst {
					return
				}
			} else {
				for rr := range iv {
					rr, ok := finalize(rr, ctx)
					if !ok {
						return
					}
					if !yield(rr) {
						return
					}
					if matchFirst {
						return
					}
				}
			}
		}
	}
}

// finalize performs the final-projection step on a surviving result:
// the resolved value is replaced with a fully expanded copy, with any
// nested expression syntax resolved. External values stay opaque.
func finalize(r Result, ctx *RefContext) (Result, bool) {
	if r.external != nil {
		return r, true
	}
	// nested expressions inside the value resolve relative to the most
	// recent resource encountered on the way here
	var base any
	if ctx.last != nil {
		base = ctx.last
	}
	v, err := mapValue(r.resolved, ctx.copy(base, nil), false)
	if err != nil {
		ctx.fail(err)
		return Result{}, false
	}
	r.resolved = v
	return r, true
}

func singleResult(r Result) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		yield(r)
	}
}

// evalExp projects the segment sequence over the start values and
// collects the surviving results.
func evalExp(start []any, segs []Segment, ctx *RefContext) []Result {
	ctx.trace("evalexp %v %s", start, formatSegments(segs))
	in := func(yield func(Result) bool) {
		for _, v := range start {
			if !yield(newResult(v)) {
				return
			}
		}
	}
	var results []Result
	for r := range evalSegments(in, segs, ctx) {
		results = append(results, r)
	}
	if ctx.failed() {
		return nil
	}
	return results
}
