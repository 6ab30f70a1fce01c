package manifest

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry compiles and holds named CUE schemas. It backs the
// expression engine's validate function and per-resource manifest
// validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a registry with the built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.Register("endpoint", builtinEndpointSchema)
	sr.Register("service", builtinServiceSchema)
	return sr
}

// Register compiles schema and stores it under name.
func (sr *SchemaRegistry) Register(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	sr.schemas[name] = val
	return nil
}

// Get retrieves a compiled schema by name.
func (sr *SchemaRegistry) Get(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	val, ok := sr.schemas[name]
	return val, ok
}

// Names returns the registered schema names.
func (sr *SchemaRegistry) Names() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// ValidateNamed validates data against the schema registered under
// name. A nil return means the data conforms.
func (sr *SchemaRegistry) ValidateNamed(name string, data any) error {
	schema, ok := sr.Get(name)
	if !ok {
		return fmt.Errorf("schema %s not found", name)
	}
	return sr.unify(schema, data)
}

// Validate checks doc against schema, which is either the name of a
// registered schema, inline CUE source, or a structured document used
// directly as a constraint. A validation failure is reported as false,
// not an error; errors are reserved for unusable schemas or documents.
func (sr *SchemaRegistry) Validate(doc, schema any) (bool, error) {
	var sv cue.Value
	switch s := schema.(type) {
	case string:
		if v, ok := sr.Get(s); ok {
			sv = v
		} else {
			sv = sr.ctx.CompileString(s)
			if err := sv.Err(); err != nil {
				return false, fmt.Errorf("failed to compile schema: %w", err)
			}
		}
	default:
		sv = sr.ctx.Encode(s)
		if err := sv.Err(); err != nil {
			return false, fmt.Errorf("failed to encode schema: %w", err)
		}
	}
	if err := sr.unify(sv, doc); err != nil {
		return false, nil
	}
	return true, nil
}

func (sr *SchemaRegistry) unify(schema cue.Value, data any) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}
	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Built-in schema definitions

const builtinEndpointSchema = `
// Endpoint schema for network endpoint attributes
{
	host: string & =~"^[a-zA-Z0-9._-]+$"
	port: int & >0 & <65536
	protocol?: "tcp" | "udp"
}
`

const builtinServiceSchema = `
// Service schema for managed service attributes
{
	image?: string
	replicas?: int & >=0
	env?: string
	...
}
`
