// Package eval implements the reference-expression engine: a small
// query language that locates and projects values out of the live
// resource graph and out of arbitrary structured documents.
//
// # Expression grammar
//
//	expr:    segment? ('::' segment)*
//	segment: key? ('[' filter ']')* '?'?
//	key:     name | integer | var | '*'
//	filter:  '!'? expr? (('!=' | '=') test)?
//	test:    var | literal-text
//	var:     '$' name
//
// Each segment selects a key in a resource or a decoded JSON/YAML
// value. "::" is the segment delimiter so that keys may contain "."
// and "/". Filters attached to a segment are predicates over the
// segment's candidate value; a filter prefixed with "!" inverts the
// predicate. A segment ending in "?" only includes the first match.
//
// If the current value is a sequence and the key is an integer it is
// treated as a zero-based index. Otherwise the segment is applied to
// every element of the sequence and the results are flattened. If the
// current value is a mapping and the key is "*" all values are
// selected.
//
// The first segment is special. A variable reference starts evaluation
// at the variable's value, a leading "::" starts from the graph root
// collection (".all"), and a key starting with "." is evaluated
// against the initial context resource. Any other first segment turns
// the expression into an ancestor search: the expression is evaluated
// against the nearest ancestor of the current resource that it
// matches.
//
// When multiple steps resolve to sequences the intermediate
// multiplicities are flattened, but sequences that are part of the
// final matched value are preserved. Given
//
//	{x: [{a: [{c: 1}, {c: 2}]}, {a: [{c: 3}, {c: 4}]}]}
//
// the expression "x::a::c" resolves to [1, 2, 3, 4], not
// [[1, 2], [3, 4]].
//
// Resources expose a reserved set of navigation keys:
//
//	.            self
//	..           parent
//	.parents     list of parents
//	.ancestors   self and parents
//	.root        root ancestor
//	.children    child resources
//	.descendents children, recursively, including self
//	.all         mapping of all resources in the graph by name
//
// # Structured expressions
//
// Besides the string grammar, an expression can be a decoded document:
//
//	{eval: <string-or-doc>, vars: {...}, foreach: <spec>}   (or "ref:")
//	{q: <any>}                                              quoted literal
//
// and any document whose relevant key names a registered function
// ("if", "and", "or", "not", "eq", "validate", "foreach", plus
// host-injected ones such as "template" and "lookup") invokes that
// function.
//
// # Evaluation model
//
// Evaluation is single threaded, synchronous and free of I/O. The
// engine is a pure function of (expression, context, graph snapshot)
// except for the last-visited-resource field and the trace sink
// carried on the RefContext. The host must not mutate the graph while
// a resolve call that depends on it is running; independent resolve
// calls over a read-only graph may run concurrently.
package eval
