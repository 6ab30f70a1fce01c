package manifest

import (
	"fmt"

	"github.com/openchord/openchord/pkg/graph"
)

// Manifest is a declared resource tree. Attributes may hold literal
// values, expression documents (eval/ref/q) and template strings; they
// are stored as-is and resolved by the expression engine when read.
type Manifest struct {
	// Name identifies the manifest.
	Name string `yaml:"name" validate:"required,resource_name"`

	// Version is an optional manifest revision marker.
	Version string `yaml:"version,omitempty"`

	// Vars are manifest-level variable bindings visible to every
	// expression evaluated against the built graph.
	Vars map[string]any `yaml:"vars,omitempty"`

	// Schemas are named CUE schema sources registered for use by the
	// validate expression function and per-resource validation.
	Schemas map[string]string `yaml:"schemas,omitempty"`

	// Resources are the root resources of the tree.
	Resources []ResourceSpec `yaml:"resources" validate:"required,min=1,dive"`
}

// ResourceSpec declares one resource and its children.
type ResourceSpec struct {
	// Name is the resource's key within its parent.
	Name string `yaml:"name" validate:"required,resource_name"`

	// Schema optionally names a registered schema the resource's
	// attributes must satisfy.
	Schema string `yaml:"schema,omitempty"`

	// Attributes are the resource's declared attributes.
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// Children are nested resources.
	Children []ResourceSpec `yaml:"children,omitempty" validate:"dive"`
}

// Build constructs the resource graph the manifest declares. The root
// instance carries the manifest's name; sibling names must be unique
// so expression paths stay unambiguous.
func (m *Manifest) Build() (*graph.Instance, error) {
	root := graph.New(m.Name, nil)
	if err := buildChildren(root, m.Resources); err != nil {
		return nil, err
	}
	return root, nil
}

func buildChildren(parent *graph.Instance, specs []ResourceSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return fmt.Errorf("duplicate resource name %q under %s", spec.Name, parent.Path())
		}
		seen[spec.Name] = true
		child := parent.NewChild(spec.Name, spec.Attributes)
		if err := buildChildren(child, spec.Children); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every spec in declaration order, parents before children.
func (m *Manifest) Walk(fn func(path string, spec *ResourceSpec) error) error {
	var visit func(prefix string, specs []ResourceSpec) error
	visit = func(prefix string, specs []ResourceSpec) error {
		for i := range specs {
			spec := &specs[i]
			path := prefix + "/" + spec.Name
			if err := fn(path, spec); err != nil {
				return err
			}
			if err := visit(path, spec.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return visit("", m.Resources)
}

// ResourceCount returns the number of resources the manifest declares.
func (m *Manifest) ResourceCount() int {
	n := 0
	m.Walk(func(string, *ResourceSpec) error { n++; return nil })
	return n
}
