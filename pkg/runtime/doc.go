// Package runtime applies manifests to the live resource graph.
//
// A Runner turns each declared resource into a Task, run in declaration
// order with parents first. A task resolves the resource's attribute
// expressions through the expression engine, applies the resolved
// values to the graph instance, and records two things: the
// dependencies it read (which resources owned the values its
// expressions returned) and the attribute changes it made
// (create, update or noop per attribute).
//
// Jobs and their changes are optionally persisted to the history store
// and instrumented through the telemetry package. A failed task does
// not abort the job; the job's final status aggregates task outcomes.
package runtime
