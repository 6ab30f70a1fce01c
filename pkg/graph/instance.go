// Package graph provides the hierarchical resource graph the
// expression engine queries: named instances with attribute maps and
// parent/child relationships, exposing the reserved navigation keys
// (".", "..", ".parents", ".ancestors", ".root", ".children",
// ".descendents", ".all") through the Lookup capability.
package graph

import (
	"fmt"
	"strings"
)

// Instance is one managed resource in the graph. Instances have a
// stable identity (their pointer) so the engine can compare lookups
// for "same resource".
type Instance struct {
	name     string
	attrs    map[string]any
	parent   *Instance
	children []*Instance
}

// New creates a root instance.
func New(name string, attrs map[string]any) *Instance {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &Instance{name: name, attrs: attrs}
}

// NewChild creates an instance parented under i and returns it.
func (i *Instance) NewChild(name string, attrs map[string]any) *Instance {
	child := New(name, attrs)
	child.parent = i
	i.children = append(i.children, child)
	return child
}

// Name returns the instance name.
func (i *Instance) Name() string { return i.name }

// Parent returns the parent instance, nil at the root.
func (i *Instance) Parent() *Instance { return i.parent }

// Root returns the root ancestor (the instance itself at the root).
func (i *Instance) Root() *Instance {
	r := i
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Children returns the instance's children in declaration order.
func (i *Instance) Children() []*Instance {
	return append([]*Instance(nil), i.children...)
}

// Descendents returns the instance and all instances below it,
// pre-order.
func (i *Instance) Descendents() []*Instance {
	out := []*Instance{i}
	for _, c := range i.children {
		out = append(out, c.Descendents()...)
	}
	return out
}

// Path returns the slash-separated name path from the root, a stable
// identity string for records and logs.
func (i *Instance) Path() string {
	if i.parent == nil {
		return "/" + i.name
	}
	return i.parent.Path() + "/" + i.name
}

// Attr returns the attribute stored under key.
func (i *Instance) Attr(key string) (any, bool) {
	v, ok := i.attrs[key]
	return v, ok
}

// Attrs returns the instance's attribute map. The map is shared, not
// copied; treat it as read-only outside the applying job.
func (i *Instance) Attrs() map[string]any { return i.attrs }

// SetAttr stores an attribute value.
func (i *Instance) SetAttr(key string, v any) {
	i.attrs[key] = v
}

// Find returns the named instance in i's subtree, or nil.
func (i *Instance) Find(name string) *Instance {
	for _, d := range i.Descendents() {
		if d.name == name {
			return d
		}
	}
	return nil
}

// Lookup implements the capability contract the expression engine
// requires: reserved navigation keys first, then attributes, then
// children by name. Collection-valued keys return []any so the
// evaluator's sequence handling applies uniformly.
func (i *Instance) Lookup(key string) (any, bool) {
	switch key {
	case ".":
		return i, true
	case "..":
		if i.parent == nil {
			return nil, false
		}
		return i.parent, true
	case ".parents":
		var out []any
		for p := i.parent; p != nil; p = p.parent {
			out = append(out, p)
		}
		return out, true
	case ".ancestors":
		out := []any{any(i)}
		for p := i.parent; p != nil; p = p.parent {
			out = append(out, p)
		}
		return out, true
	case ".root":
		return i.Root(), true
	case ".children":
		out := make([]any, len(i.children))
		for n, c := range i.children {
			out[n] = c
		}
		return out, true
	case ".descendents":
		ds := i.Descendents()
		out := make([]any, len(ds))
		for n, d := range ds {
			out[n] = d
		}
		return out, true
	case ".all":
		all := map[string]any{}
		for _, d := range i.Root().Descendents() {
			if _, seen := all[d.name]; !seen {
				all[d.name] = d
			}
		}
		return all, true
	}

	if v, ok := i.attrs[key]; ok {
		return v, true
	}
	for _, c := range i.children {
		if c.name == key {
			return c, true
		}
	}
	return nil, false
}

func (i *Instance) String() string {
	return fmt.Sprintf("Instance(%s)", strings.TrimPrefix(i.Path(), "/"))
}
