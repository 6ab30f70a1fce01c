package eval

import "fmt"

// controlSignal is the tagged control-flow value bound to the reserved
// "break" and "continue" variables inside a foreach body. A key or
// value expression that evaluates to one of these steers the
// iteration instead of producing an item.
type controlSignal int8

const (
	sigBreak controlSignal = iota + 1
	sigContinue
)

func (s controlSignal) String() string {
	if s == sigBreak {
		return "break"
	}
	return "continue"
}

// pair is one item of the iterated collection.
type pair struct {
	key any
	val any
}

// collectionPairs turns the source collection into ordered key/value
// pairs: a mapping iterates key/value in sorted key order, a sequence
// iterates index/value, and a single value iterates once as (0, v).
func collectionPairs(source any) []pair {
	switch v := source.(type) {
	case map[string]any:
		pairs := make([]pair, 0, len(v))
		for _, k := range sortedKeys(v) {
			pairs = append(pairs, pair{key: k, val: v[k]})
		}
		return pairs
	case []any:
		pairs := make([]pair, len(v))
		for i, item := range v {
			pairs[i] = pair{key: i, val: item}
		}
		return pairs
	default:
		return []pair{{key: 0, val: v}}
	}
}

// projectForeach maps a collection through the foreach spec. spec is
// either a bare value expression or a document with optional "key" and
// "value" sub-expressions. With a key expression the result is a
// mapping built from the produced pairs (later duplicates overwrite);
// otherwise it is the sequence of produced values. Keyed output is a
// plain Go map, so it does not preserve production order; a map
// source is iterated in sorted key order to keep repeated projections
// deterministic.
func projectForeach(spec any, source any, items []pair, ctx *RefContext) (any, error) {
	var keyExp, valExp any
	switch s := spec.(type) {
	case string:
		valExp = s
	case map[string]any:
		keyExp = s["key"]
		valExp = s["value"]
		if keyExp == nil && valExp == nil {
			valExp = s
		}
	default:
		valExp = spec
	}

	ictx := ctx.copy(nil, nil)
	var seq []any
	var keyed map[string]any
	if keyExp != nil {
		keyed = map[string]any{}
	}

	for i, item := range items {
		ictx.Current = item.val
		ictx.Vars["collection"] = source
		ictx.Vars["index"] = i
		ictx.Vars["key"] = item.key
		ictx.Vars["item"] = item.val
		ictx.Vars["break"] = sigBreak
		ictx.Vars["continue"] = sigContinue

		var key any
		if keyExp != nil {
			k, err := evalForFunc(keyExp, ictx)
			if err != nil {
				return nil, err
			}
			if sig, ok := k.(controlSignal); ok {
				if sig == sigBreak {
					break
				}
				continue
			}
			key = k
		}

		val, err := evalForFunc(valExp, ictx)
		if err != nil {
			return nil, err
		}
		if sig, ok := val.(controlSignal); ok {
			if sig == sigBreak {
				break
			}
			continue
		}

		if keyExp != nil {
			keyed[keyString(key)] = val
		} else {
			seq = append(seq, val)
		}
	}

	if keyExp != nil {
		return keyed, nil
	}
	return seq, nil
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// projectResults applies a foreach spec to a Result collection, as the
// final projection step of Ref.Resolve.
func projectResults(spec any, results []Result, ctx *RefContext) ([]Result, error) {
	items := make([]pair, len(results))
	values := make([]any, len(results))
	for i, r := range results {
		items[i] = pair{key: i, val: r.raw()}
		values[i] = r.raw()
	}
	out, err := projectForeach(spec, values, items, ctx)
	if err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case map[string]any:
		// a keyed projection collapses to a single mapping result
		return []Result{newResult(v)}, nil
	case []any:
		wrapped := make([]Result, len(v))
		for i, item := range v {
			wrapped[i] = newResult(item)
		}
		return wrapped, nil
	case nil:
		return nil, nil
	default:
		return nil, newInternalError("foreach projection produced %T", out)
	}
}

// foreachFunc is the "foreach" builtin: it projects the context's
// current value as the source collection. An empty or absent source
// yields an empty result without invoking the projection.
func foreachFunc(arg any, ctx *RefContext) (any, error) {
	source := ctx.Current
	if !isTruthy(source) {
		return source, nil
	}
	return projectForeach(arg, source, collectionPairs(source), ctx)
}
