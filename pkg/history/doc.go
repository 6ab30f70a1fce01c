// Package history persists apply jobs and the attribute changes they
// produced. It is backed by SQLite with WAL mode and embedded schema
// migrations, giving the CLI a durable record of what each job did to
// the resource graph.
package history
