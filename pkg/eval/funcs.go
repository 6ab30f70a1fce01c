package eval

import "reflect"

func registerBuiltins(r *Registry) {
	r.funcs["if"] = ifFunc
	r.funcs["and"] = andFunc
	r.funcs["or"] = orFunc
	r.funcs["not"] = notFunc
	r.funcs["eq"] = eqFunc
	r.funcs["q"] = quoteFunc
	r.funcs["validate"] = validateFunc
	r.funcs["foreach"] = foreachFunc
}

// evalAsBool evaluates arg as a truthiness probe: the boolean cast of
// its first result, or false when nothing matched.
func evalAsBool(arg any, ctx *RefContext) (bool, error) {
	results, err := evalRef(arg, ctx)
	if err != nil {
		return false, err
	}
	if len(results) == 0 {
		return false, nil
	}
	return isTruthy(results[0].Resolved()), nil
}

// ifFunc evaluates the probe and then the sibling "then" or "else"
// expression of the invoking document.
func ifFunc(arg any, ctx *RefContext) (any, error) {
	cond, err := evalAsBool(arg, ctx)
	if err != nil {
		return nil, err
	}
	branch := "else"
	if cond {
		branch = "then"
	}
	return evalForFunc(ctx.kw[branch], ctx)
}

// argSequence returns the elements of a sequence-valued function
// argument. A raw list is handed back untouched so the caller can
// evaluate its elements one at a time; any other argument is
// evaluated first, and resolved reports that its elements already are
// final values.
func argSequence(name string, arg any, ctx *RefContext) (elems []any, resolved bool, err error) {
	if seq, ok := arg.([]any); ok {
		return seq, false, nil
	}
	out, err := evalForFunc(arg, ctx)
	if err != nil {
		return nil, false, err
	}
	seq, ok := out.([]any)
	if !ok {
		return nil, false, newInternalError("%s: argument evaluated to %T, want a sequence", name, out)
	}
	return seq, true, nil
}

// andFunc evaluates the argument sequence in order and returns the
// first falsy element's value, or the last value when all are truthy.
// Elements past the first falsy one are never evaluated.
func andFunc(arg any, ctx *RefContext) (any, error) {
	seq, resolved, err := argSequence("and", arg, ctx)
	if err != nil {
		return nil, err
	}
	var val any
	for _, item := range seq {
		val = item
		if !resolved {
			val, err = evalForFunc(item, ctx)
			if err != nil {
				return nil, err
			}
		}
		if !isTruthy(val) {
			return val, nil
		}
	}
	return val, nil
}

// orFunc evaluates the argument sequence in order and returns the
// first truthy element's value, or nil when none is. Elements past
// the first truthy one are never evaluated.
func orFunc(arg any, ctx *RefContext) (any, error) {
	seq, resolved, err := argSequence("or", arg, ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range seq {
		val := item
		if !resolved {
			val, err = evalForFunc(item, ctx)
			if err != nil {
				return nil, err
			}
		}
		if isTruthy(val) {
			return val, nil
		}
	}
	return nil, nil
}

func notFunc(arg any, ctx *RefContext) (any, error) {
	cond, err := evalAsBool(arg, ctx)
	if err != nil {
		return nil, err
	}
	return !cond, nil
}

// eqFunc compares the full evaluations of a two-element sequence.
func eqFunc(arg any, ctx *RefContext) (any, error) {
	args, err := evalForFunc(arg, ctx)
	if err != nil {
		return nil, err
	}
	seq, ok := args.([]any)
	if !ok || len(seq) != 2 {
		return nil, newInternalError("eq: want a two-element sequence, got %T", args)
	}
	left, err := evalRef(seq[0], ctx)
	if err != nil {
		return nil, err
	}
	right, err := evalRef(seq[1], ctx)
	if err != nil {
		return nil, err
	}
	return resultsEqual(left, right), nil
}

func resultsEqual(a, b []Result) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i].raw(), b[i].raw()) {
			return false
		}
	}
	return true
}

// quoteFunc returns its argument completely unevaluated. evalRef wraps
// the value so it bypasses any further expansion.
func quoteFunc(arg any, _ *RefContext) (any, error) {
	return arg, nil
}

// validateFunc validates a document against a schema through the
// injected SchemaValidator and returns the boolean outcome.
func validateFunc(arg any, ctx *RefContext) (any, error) {
	args, err := evalForFunc(arg, ctx)
	if err != nil {
		return nil, err
	}
	seq, ok := args.([]any)
	if !ok || len(seq) != 2 {
		return nil, newInternalError("validate: want (document, schema), got %T", args)
	}
	if ctx.engine.validator == nil {
		return nil, newEvalError("validate: no schema validator configured")
	}
	doc, err := evalForFunc(seq[0], ctx)
	if err != nil {
		return nil, err
	}
	schema, err := evalForFunc(seq[1], ctx)
	if err != nil {
		return nil, err
	}
	ok, err = ctx.engine.validator.Validate(doc, schema)
	if err != nil {
		ctx.trace("validate failed: %s", err)
		return false, nil
	}
	return ok, nil
}
