// Package template implements the string-templating host for the
// expression engine.
//
// The Host expands {{ }} actions in attribute strings against the
// evaluation's variable scope and backs two expression functions:
//
//   - template: render a template string; the evaluation's variables
//     are available as dot fields, lookup queries a named source, and
//     ref resolves a path expression against the current context.
//   - lookup: fetch a value from a named external data source; a
//     missing key is a soft miss and resolves to null.
//
// Built-in sources are "env" (process environment) and "file" (files
// under a configured root, parsed when they carry a YAML or JSON
// extension). Additional sources are registered with WithSource.
//
// Wiring the host into an engine:
//
//	host := template.New(template.WithSource("file", template.FileSource{Root: "/etc/chord"}))
//	engine := eval.NewEngine(host.EngineOptions()...)
//
// A rendered result that parses as a structured document is handed
// back to the engine as that document, so a template can produce an
// expression for the engine to resolve in turn.
package template
