package manifest

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Resource names appear as path-expression keys, so the grammar's
// separators and modifiers are excluded and a leading dot is reserved
// for navigation keys.
var resourceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Loader parses and validates manifests.
type Loader struct {
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewLoader creates a manifest loader.
func NewLoader(logger zerolog.Logger) *Loader {
	v := validator.New()
	v.RegisterValidation("resource_name", func(fl validator.FieldLevel) bool {
		return resourceNamePattern.MatchString(fl.Field().String())
	})
	return &Loader{
		logger:   logger.With().Str("component", "manifest").Logger(),
		validate: v,
	}
}

// Load reads and parses the manifest at path.
func (l *Loader) Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest from YAML. Unknown fields are rejected and
// the declared structure is validated.
func (l *Loader) Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := l.validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	l.logger.Info().
		Str("manifest", m.Name).
		Str("version", m.Version).
		Int("resources", m.ResourceCount()).
		Msg("Manifest loaded")

	return &m, nil
}

// RegisterSchemas compiles the manifest's named schemas into reg and
// checks that every schema a resource references is registered.
func (l *Loader) RegisterSchemas(m *Manifest, reg *SchemaRegistry) error {
	for name, src := range m.Schemas {
		if err := reg.Register(name, src); err != nil {
			return err
		}
	}
	return m.Walk(func(path string, spec *ResourceSpec) error {
		if spec.Schema == "" {
			return nil
		}
		if _, ok := reg.Get(spec.Schema); !ok {
			return fmt.Errorf("resource %s references unknown schema %q", path, spec.Schema)
		}
		return nil
	})
}
