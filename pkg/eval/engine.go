package eval

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Func is a registered expression function. arg is the unevaluated
// value found under the function's key in the invoking document; the
// full document is available through ctx.Kw(). A function returns the
// final value for its evaluation step (the engine wraps it as a single
// Result) or an error, which aborts the resolve call.
type Func func(arg any, ctx *RefContext) (any, error)

// Templater is the string-templating capability injected by the host:
// given a string and a variable scope it returns the expanded value.
// When the expanded result is itself a parseable expression document
// the engine re-resolves it.
type Templater interface {
	Expand(s string, vars map[string]any) (any, error)
}

// SchemaValidator is the schema-validation capability backing the
// "validate" builtin.
type SchemaValidator interface {
	Validate(doc, schema any) (bool, error)
}

// Registry maps function names to implementations. It is read-mostly:
// registration happens while the owning Engine is constructed and the
// registry is frozen afterwards.
type Registry struct {
	mu     sync.RWMutex
	frozen bool
	funcs  map[string]Func
}

func newRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

// Register adds a function under name. Registering on a frozen
// registry is an error.
func (r *Registry) Register(name string, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return newEvalError("registry is frozen, cannot register %q", name)
	}
	r.funcs[name] = fn
	return nil
}

func (r *Registry) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// match finds the registered function named by one of the document's
// keys. A well-formed expression document carries exactly one such
// key; when several are present the first in sorted key order wins,
// keeping dispatch deterministic.
func (r *Registry) match(doc map[string]any) (string, Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fn, ok := r.funcs[k]; ok {
			return k, fn, true
		}
	}
	return "", nil, false
}

// Engine owns the function registry and the injected host capabilities
// and hands out evaluation contexts. Construct one at startup, then
// share it: the engine holds no per-evaluation state.
type Engine struct {
	reg       *Registry
	templater Templater
	validator SchemaValidator
	log       zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTemplater injects the string-templating capability.
func WithTemplater(t Templater) Option {
	return func(e *Engine) { e.templater = t }
}

// WithSchemaValidator injects the schema-validation capability used by
// the "validate" builtin.
func WithSchemaValidator(v SchemaValidator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithLogger sets the logger backing the evaluation trace sink.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithFunction registers a host function, such as "template" or
// "lookup", through the same contract the builtins use.
func WithFunction(name string, fn Func) Option {
	return func(e *Engine) { e.reg.funcs[name] = fn }
}

// NewEngine builds an engine with the builtin functions plus any
// host-injected ones and freezes the registry.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		reg: newRegistry(),
		log: zerolog.Nop(),
	}
	registerBuiltins(e.reg)
	for _, opt := range opts {
		opt(e)
	}
	e.reg.freeze()
	return e
}

// Registry returns the engine's function registry.
func (e *Engine) Registry() *Registry { return e.reg }
