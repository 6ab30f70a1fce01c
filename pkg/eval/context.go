package eval

import (
	"fmt"
	"maps"

	"github.com/rs/zerolog"
)

// RefContext carries per-evaluation state through a resolve call.
// Contexts are copy-on-branch: every recursive descent or function
// call that needs an altered resource or variable scope works on a
// clone. The two deliberate exceptions are the last-visited resource,
// which is carried forward so later lookups resolve relative to the
// most recent resource encountered, and the error box, which surfaces
// invariant violations from any depth.
type RefContext struct {
	engine *Engine

	// Current is the resource or value the evaluation is rooted at.
	Current any

	// Vars are the variable bindings visible to the expression.
	Vars map[string]any

	// ResolveExternal makes final projection reveal external values
	// instead of keeping them opaque.
	ResolveExternal bool

	// TraceLevel enables the diagnostic trace sink when positive.
	TraceLevel int

	// last is the most recent resource encountered while evaluating.
	// Shared across segment evaluations within one resolve call;
	// independent sub-evaluations receive a copy of its value at the
	// time of the branch.
	last Resource

	// kw exposes the invoking expression document to functions so a
	// builtin like "if" can read its sibling keys.
	kw       map[string]any
	funcName string

	// errp boxes the first invariant failure raised during evaluation.
	// It is shared by all clones of one top-level context so that the
	// lazy traversal can abort from any depth.
	errp *error

	log zerolog.Logger
}

// NewContext returns a context rooted at current, usually a Resource.
func (e *Engine) NewContext(current any) *RefContext {
	ctx := &RefContext{
		engine:  e,
		Current: current,
		Vars:    map[string]any{},
		errp:    new(error),
		log:     e.log,
	}
	if r, ok := current.(Resource); ok {
		ctx.last = r
	}
	return ctx
}

// WithVars returns the context with vars merged in. It mutates and
// returns ctx for call chaining during setup, before evaluation.
func (c *RefContext) WithVars(vars map[string]any) *RefContext {
	for k, v := range vars {
		c.Vars[k] = v
	}
	return c
}

// WithTrace sets the trace level.
func (c *RefContext) WithTrace(level int) *RefContext {
	c.TraceLevel = level
	return c
}

// copy clones the context. A nil current keeps the present root; vars
// are merged into a cloned binding map. The clone starts from the
// pre-branch last-visited resource but further movement does not flow
// back.
func (c *RefContext) copy(current any, vars map[string]any) *RefContext {
	clone := &RefContext{
		engine:          c.engine,
		Current:         c.Current,
		Vars:            maps.Clone(c.Vars),
		ResolveExternal: c.ResolveExternal,
		TraceLevel:      c.TraceLevel,
		last:            c.last,
		errp:            c.errp,
		log:             c.log,
	}
	if current != nil {
		clone.Current = current
		if r, ok := current.(Resource); ok {
			clone.last = r
		}
	}
	for k, v := range vars {
		clone.Vars[k] = v
	}
	return clone
}

// Kw returns the document that invoked the currently running function.
func (c *RefContext) Kw() map[string]any { return c.kw }

// FuncName returns the name of the currently running function.
func (c *RefContext) FuncName() string { return c.funcName }

// LastResource returns the most recent resource encountered during
// evaluation.
func (c *RefContext) LastResource() Resource { return c.last }

// fail records an invariant failure and aborts the traversal. Only the
// first failure is kept.
func (c *RefContext) fail(err error) {
	if c.errp != nil && *c.errp == nil {
		*c.errp = err
	}
}

func (c *RefContext) failed() bool {
	return c.errp != nil && *c.errp != nil
}

func (c *RefContext) err() error {
	if c.errp == nil {
		return nil
	}
	return *c.errp
}

func (c *RefContext) trace(format string, args ...any) {
	if c.TraceLevel > 0 {
		c.log.Trace().Str("last", resourceName(c.last)).Msg(fmt.Sprintf(format, args...))
	}
}

func resourceName(r Resource) string {
	if r == nil {
		return ""
	}
	return r.Name()
}
