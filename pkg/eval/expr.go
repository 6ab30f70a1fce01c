package eval

import "strings"

// Expr is a parsed path expression. Parsing is eager, at construction
// time; the expression is reusable across evaluations against
// different contexts.
type Expr struct {
	source   string
	segments []Segment

	// rewritten marks a synthetic leading .ancestors segment. It only
	// applies when the evaluation is rooted at a resource; a plain
	// document root evaluates the expression as written.
	rewritten bool
}

// NewExpr parses source. vars is the variable scope the expression
// will run under; it decides the first-segment rewrite (a foreach body
// is recognized by the reserved "break" binding and is evaluated
// per-item, not per-ancestor-search).
func NewExpr(source string, vars map[string]any) (*Expr, error) {
	segs, err := ParseExp(source)
	if err != nil {
		return nil, err
	}

	_, inForeach := vars["break"]
	first := segs[0]
	bare := !strings.HasPrefix(first.Key.Name, ".") && !first.Key.IsVar()
	if !inForeach && bare && (!first.Key.IsEmpty() || first.Key.IsIndex || len(first.Filters) > 0) {
		// An unqualified relative path means "search upward through the
		// ancestors for the first resource where this matches". The
		// first-match modifier goes on the original first segment, not
		// on .ancestors: .ancestors is evaluated against the single
		// initial resource, so its first match would always be the
		// whole query's result.
		rewritten := make([]Segment, 0, len(segs)+1)
		rewritten = append(rewritten, Segment{Key: Key{Name: ".ancestors"}})
		head := segs[0]
		head.Mod = ModFirst
		rewritten = append(rewritten, head)
		rewritten = append(rewritten, segs[1:]...)
		return &Expr{source: source, segments: rewritten, rewritten: true}, nil
	}

	return &Expr{source: source, segments: segs}, nil
}

// Source returns the expression text.
func (e *Expr) Source() string { return e.source }

// Segments returns the parsed segment sequence.
func (e *Expr) Segments() []Segment { return e.segments }

func (e *Expr) String() string { return "Expr(" + e.source + ")" }

// Resolve evaluates the expression against ctx and returns the
// matching results.
func (e *Expr) Resolve(ctx *RefContext) ([]Result, error) {
	vars, err := mapValue(ctx.Vars, ctx.copy(nil, nil), false)
	if err != nil {
		return nil, err
	}
	varMap, ok := vars.(map[string]any)
	if !ok {
		return nil, newInternalError("variable scope resolved to %T", vars)
	}
	varMap["start"] = ctx.Current
	c := ctx.copy(ctx.Current, varMap)

	start := ctx.Current
	segs := e.segments
	if e.rewritten {
		if _, isRes := ctx.Current.(Resource); !isRes {
			// no ancestors to search; the head keeps its first-match
			// modifier, which is a no-op for a single start value
			segs = segs[1:]
		}
	}
	first := segs[0]
	switch {
	case first.Key.IsEmpty() && len(first.Filters) == 0:
		// leading "::": start from the full graph root collection
		res, isRes := ctx.Current.(Resource)
		if !isRes {
			return nil, nil
		}
		all, found := res.Lookup(".all")
		if !found {
			return nil, nil
		}
		start = all
		segs = segs[1:]
		if len(segs) == 0 {
			return []Result{newResult(start)}, nil
		}
	case first.Key.IsVar():
		name := first.Key.Name[1:]
		v, bound := c.Vars[name]
		if !bound {
			return nil, newEvalError("unknown variable %q", name).withExpr(e.source)
		}
		start = v
		if first.Test == nil && len(first.Filters) == 0 && first.Mod == ModNone {
			if len(segs) == 1 {
				// bare variable reference
				return []Result{newResult(v)}, nil
			}
			segs = segs[1:]
		} else {
			head := first
			head.Key = Key{}
			segs = append([]Segment{head}, segs[1:]...)
		}
	}

	results := evalExp([]any{start}, segs, c)
	if err := c.err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Error) withExpr(expr string) *Error {
	e.Expr = expr
	return e
}
