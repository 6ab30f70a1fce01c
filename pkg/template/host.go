package template

import (
	"bytes"
	"fmt"
	"strings"
	texttemplate "text/template"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openchord/openchord/pkg/eval"
)

// Host is the string-templating capability handed to the expression
// engine. It expands {{ }} actions against the evaluation's variable
// scope and serves the "template" and "lookup" expression functions,
// delegating lookups to named data sources.
type Host struct {
	logger  zerolog.Logger
	sources map[string]Source
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Host) {
		h.logger = logger.With().Str("component", "template").Logger()
	}
}

// WithSource registers a named lookup source, replacing any source
// already registered under that name.
func WithSource(name string, src Source) Option {
	return func(h *Host) { h.sources[name] = src }
}

// New creates a host with the built-in "env" and "file" sources.
func New(opts ...Option) *Host {
	h := &Host{
		logger: zerolog.Nop(),
		sources: map[string]Source{
			"env":  EnvSource{},
			"file": FileSource{},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EngineOptions returns the engine options that wire the host in: the
// templating capability plus the "template" and "lookup" functions.
func (h *Host) EngineOptions() []eval.Option {
	return []eval.Option{
		eval.WithTemplater(h),
		eval.WithFunction("template", h.templateFunc),
		eval.WithFunction("lookup", h.lookupFunc),
	}
}

// Expand renders s against vars. A rendered result that parses as a
// structured document is returned as that document so the engine can
// resolve any expression it contains. The "ref" template function is
// only available through the "template" expression function, which
// carries an evaluation context; here it reports an error.
func (h *Host) Expand(s string, vars map[string]any) (any, error) {
	return h.render(s, vars, nil)
}

func (h *Host) render(s string, vars map[string]any, refFn func(string) (any, error)) (any, error) {
	if refFn == nil {
		refFn = func(string) (any, error) {
			return nil, fmt.Errorf("ref is only available inside a template function call")
		}
	}
	funcs := texttemplate.FuncMap{
		"ref": refFn,
		"lookup": func(source, key string) (any, error) {
			v, found, err := h.fetch(source, key)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, nil
			}
			return v, nil
		},
	}
	tmpl, err := texttemplate.New("expr").Option("missingkey=error").Funcs(funcs).Parse(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("failed to expand template: %w", err)
	}
	return parseRendered(buf.String()), nil
}

// parseRendered promotes a rendered string to a structured document
// when it reads as one, so downstream resolution sees the document
// rather than its textual form. Plain text passes through unchanged.
func parseRendered(out string) any {
	trimmed := strings.TrimSpace(out)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return out
	}
	var doc any
	if err := yaml.Unmarshal([]byte(trimmed), &doc); err != nil {
		return out
	}
	switch doc.(type) {
	case map[string]any, []any:
		return doc
	default:
		return out
	}
}

func (h *Host) fetch(source, key string) (any, bool, error) {
	src, ok := h.sources[source]
	if !ok {
		return nil, false, fmt.Errorf("unknown lookup source %q", source)
	}
	return src.Fetch(key)
}

// templateFunc implements the "template" expression function. The
// argument is the template string, or an expression resolving to one.
// Templates see the evaluation's variables as dot fields and may call
// ref to resolve path expressions against the current context.
func (h *Host) templateFunc(arg any, ctx *eval.RefContext) (any, error) {
	val := arg
	if eval.IsExpr(arg) {
		ref, err := eval.NewRef(arg, nil)
		if err != nil {
			return nil, err
		}
		val, err = ref.ResolveOne(ctx)
		if err != nil {
			return nil, err
		}
	}
	s, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("template argument must be a string, got %T", val)
	}
	refFn := func(expr string) (any, error) {
		r, err := eval.NewRef(expr, nil)
		if err != nil {
			return nil, err
		}
		return r.ResolveOne(ctx)
	}
	out, err := h.render(s, ctx.Vars, refFn)
	if err != nil {
		return nil, err
	}
	if eval.IsExpr(out) {
		r, err := eval.NewRef(out, nil)
		if err != nil {
			return nil, err
		}
		return r.ResolveOne(ctx)
	}
	return out, nil
}

// lookupFunc implements the "lookup" expression function. The argument
// names a source and a key, either as a single-entry mapping
// {source: key} or a two-element list [source, key]. A missing key is
// a soft miss and resolves to null.
func (h *Host) lookupFunc(arg any, ctx *eval.RefContext) (any, error) {
	resolved, err := eval.MapValue(arg, ctx)
	if err != nil {
		return nil, err
	}
	var source, key string
	switch t := resolved.(type) {
	case map[string]any:
		if len(t) != 1 {
			return nil, fmt.Errorf("lookup wants a single {source: key} entry, got %d keys", len(t))
		}
		for name, v := range t {
			source = name
			key = fmt.Sprint(v)
		}
	case []any:
		if len(t) != 2 {
			return nil, fmt.Errorf("lookup wants [source, key], got %d elements", len(t))
		}
		source = fmt.Sprint(t[0])
		key = fmt.Sprint(t[1])
	default:
		return nil, fmt.Errorf("lookup wants a mapping or list argument, got %T", resolved)
	}
	v, found, err := h.fetch(source, key)
	if err != nil {
		return nil, err
	}
	if !found {
		h.logger.Debug().Str("source", source).Str("key", key).Msg("Lookup miss")
		return nil, nil
	}
	return v, nil
}
