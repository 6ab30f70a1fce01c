// Package manifest loads declared resource trees from YAML and builds
// the live resource graph they describe.
//
// A manifest names a tree of resources, each with attributes that may
// hold literal values, expression documents (eval, ref, q) or template
// strings. Attributes are carried into the graph unresolved; the
// expression engine resolves them when they are read.
//
// The package also owns the CUE schema registry. Manifests may declare
// named schemas, resources may reference one for their attributes, and
// the registry backs the expression engine's validate function.
//
// Typical use:
//
//	loader := manifest.NewLoader(logger)
//	m, err := loader.Load("site.yaml")
//	if err != nil {
//	    return err
//	}
//	reg := manifest.NewSchemaRegistry()
//	if err := loader.RegisterSchemas(m, reg); err != nil {
//	    return err
//	}
//	root, err := m.Build()
package manifest
