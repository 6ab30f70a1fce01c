package eval

import "strings"

// Ref describes a path to values associated with a resource or a
// document: either a string in the path grammar or a structured
// expression document. A Ref is parsed once at construction and may be
// resolved any number of times against different contexts.
type Ref struct {
	source  any
	vars    map[string]any
	foreach any
	expr    *Expr
	quoted  bool
}

// NewRef builds a Ref from a string or expression document, merging
// vars over the expression's own bindings. The default bindings
// "true", "false" and "null" are always present. String expressions
// are parsed eagerly; a malformed expression fails here, before
// anything is evaluated.
func NewRef(exp any, vars map[string]any) (*Ref, error) {
	r := &Ref{
		vars: map[string]any{"true": true, "false": false, "null": nil},
	}

	if m, ok := exp.(map[string]any); ok {
		if _, quoted := m["q"]; quoted {
			r.source = m
			r.quoted = true
			return r, nil
		}
		if dv, ok := m["vars"].(map[string]any); ok {
			for k, v := range dv {
				r.vars[k] = v
			}
		}
		r.foreach = m["foreach"]
		if e, ok := m["eval"]; ok {
			exp = e
		} else if e, ok := m["ref"]; ok {
			exp = e
		} else {
			exp = ""
		}
	}
	for k, v := range vars {
		r.vars[k] = v
	}
	r.source = exp

	if s, ok := exp.(string); ok {
		expr, err := NewExpr(s, r.vars)
		if err != nil {
			return nil, err
		}
		r.expr = expr
	}
	return r, nil
}

// Source returns the expression the Ref was built from.
func (r *Ref) Source() any { return r.source }

// Resolve evaluates the Ref and returns every match. The result is
// never nil on success; no match is an empty list.
func (r *Ref) Resolve(ctx *RefContext) ([]Result, error) {
	rctx := ctx.copy(nil, r.vars)
	var results []Result
	var err error
	if r.expr != nil {
		results, err = r.expr.Resolve(rctx)
	} else {
		results, err = evalRef(r.source, rctx)
	}
	if err != nil {
		return nil, err
	}
	if len(results) > 0 && r.foreach != nil {
		results, err = projectResults(r.foreach, results, rctx)
		if err != nil {
			return nil, err
		}
	}
	ctx.trace("resolved %v to %d results", r.source, len(results))
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

// ResolveAll evaluates the Ref and returns the resolved values of
// every match, always as a (possibly empty) list.
func (r *Ref) ResolveAll(ctx *RefContext) ([]any, error) {
	results, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(results))
	for i, res := range results {
		values[i] = res.Resolved()
	}
	return values, nil
}

// ResolveOne evaluates the Ref and returns nil when nothing matched,
// the bare value on exactly one match, and a list of values otherwise.
// Callers that need to distinguish "no match" from a nil value, or a
// single list-valued match from multiple matches, use Resolve.
func (r *Ref) ResolveOne(ctx *RefContext) (any, error) {
	results, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0].Resolved(), nil
	default:
		values := make([]any, len(results))
		for i, res := range results {
			values[i] = res.Resolved()
		}
		return values, nil
	}
}

// IsExpr reports whether value is structurally an expression document:
// a mapping with "ref" or "eval" (plus only "vars" and "foreach" as
// other keys), or with "q" as its only key.
func IsExpr(value any) bool {
	m, ok := value.(map[string]any)
	if !ok {
		return false
	}
	_, hasRef := m["ref"]
	_, hasEval := m["eval"]
	if hasRef || hasEval {
		n := 1
		if _, ok := m["vars"]; ok {
			n++
		}
		if _, ok := m["foreach"]; ok {
			n++
		}
		return n == len(m)
	}
	if _, ok := m["q"]; ok {
		return len(m) == 1
	}
	return false
}

// evalRef evaluates an expression value: a document dispatches to a
// registered function, a string is parsed and resolved as a path
// expression, and anything else maps to itself with embedded
// expressions resolved. Always returns the full list of results.
func evalRef(val any, ctx *RefContext) ([]Result, error) {
	switch v := val.(type) {
	case map[string]any:
		if name, fn, ok := ctx.engine.reg.match(v); ok {
			fctx := ctx.copy(nil, nil)
			fctx.kw = v
			fctx.funcName = name
			out, err := fn(v[name], fctx)
			if err != nil {
				return nil, err
			}
			if name == "q" {
				// quoted values bypass any further evaluation
				return []Result{newResult(out)}, nil
			}
			val = out
		}
	case string:
		expr, err := NewExpr(v, ctx.Vars)
		if err != nil {
			return nil, err
		}
		return expr.Resolve(ctx)
	}

	mv, err := mapValue(val, ctx, false)
	if err != nil {
		return nil, err
	}
	return []Result{newResult(mv)}, nil
}

// evalForFunc evaluates a function argument with resolve-one
// semantics: nil when nothing matched, the bare value on one match,
// else the list of values.
func evalForFunc(val any, ctx *RefContext) (any, error) {
	results, err := evalRef(val, ctx)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0].Resolved(), nil
	default:
		values := make([]any, len(results))
		for i, r := range results {
			values[i] = r.Resolved()
		}
		return values, nil
	}
}

// MapValue returns a copy of value with every embedded expression
// document resolved and every template string expanded, recursively.
func MapValue(value any, ctx *RefContext) (any, error) {
	return mapValue(value, ctx, true)
}

func mapValue(value any, ctx *RefContext, resolveExternal bool) (any, error) {
	if IsExpr(value) {
		ref, err := NewRef(value, nil)
		if err != nil {
			return nil, err
		}
		if ref.quoted {
			// quoting is an escape: the inner value is returned with
			// zero evaluation of its contents
			return ref.source.(map[string]any)["q"], nil
		}
		return ref.ResolveOne(ctx)
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			mv, err := mapValue(item, ctx, resolveExternal)
			if err != nil {
				return nil, err
			}
			out[k] = mv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			mv, err := mapValue(item, ctx, resolveExternal)
			if err != nil {
				return nil, err
			}
			out[i] = mv
		}
		return out, nil
	case string:
		return expandTemplate(v, ctx)
	case External:
		if resolveExternal || ctx.ResolveExternal {
			return v.Reveal(), nil
		}
		return v, nil
	default:
		return value, nil
	}
}

// expandTemplate runs a string through the host templater. An expanded
// result that is itself an expression document is resolved in turn.
func expandTemplate(s string, ctx *RefContext) (any, error) {
	if ctx.engine.templater == nil || !strings.Contains(s, "{{") {
		return s, nil
	}
	expanded, err := ctx.engine.templater.Expand(s, ctx.Vars)
	if err != nil {
		return nil, err
	}
	if IsExpr(expanded) {
		ref, rerr := NewRef(expanded, nil)
		if rerr != nil {
			return nil, rerr
		}
		return ref.ResolveOne(ctx)
	}
	return expanded, nil
}

// isTruthy is the truthiness probe used by the boolean functions: nil,
// false, zero numbers, empty strings and empty collections are falsy.
func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case External:
		return isTruthy(t.Reveal())
	default:
		return true
	}
}
