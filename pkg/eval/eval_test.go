package eval

import (
	"reflect"
	"testing"

	"github.com/openchord/openchord/pkg/graph"
)

// testTree builds root -> mid -> leaf with a mix of scalar, list and
// mapping attributes.
func testTree() (root, mid, leaf *graph.Instance) {
	root = graph.New("root", map[string]any{
		"a":   2,
		"env": "prod",
		"conf": map[string]any{
			"host": "db.internal",
			"port": 5432,
		},
	})
	mid = root.NewChild("mid", map[string]any{"a": 1})
	leaf = mid.NewChild("leaf", map[string]any{
		"port": 8080,
		"servers": []any{
			map[string]any{"name": "web1", "zone": "us"},
			map[string]any{"name": "web2", "zone": "eu"},
		},
	})
	return root, mid, leaf
}

func resolveAll(t *testing.T, ctx *RefContext, exp any) []any {
	t.Helper()
	ref, err := NewRef(exp, nil)
	if err != nil {
		t.Fatalf("NewRef(%v) error: %v", exp, err)
	}
	values, err := ref.ResolveAll(ctx)
	if err != nil {
		t.Fatalf("resolve %v: %v", exp, err)
	}
	return values
}

func TestAncestorSearch(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	// nearest ancestor that has the attribute wins
	if got := resolveAll(t, ctx, "a"); !reflect.DeepEqual(got, []any{1}) {
		t.Errorf("a = %v; want [1]", got)
	}
	// attribute only present at the root
	if got := resolveAll(t, ctx, "env"); !reflect.DeepEqual(got, []any{"prod"}) {
		t.Errorf("env = %v; want [prod]", got)
	}
	// local attribute shadows nothing, still found first
	if got := resolveAll(t, ctx, "port"); !reflect.DeepEqual(got, []any{8080}) {
		t.Errorf("port = %v; want [8080]", got)
	}
}

func TestFirstMatchVsAllMatches(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	all := resolveAll(t, ctx, ".ancestors::a")
	if !reflect.DeepEqual(all, []any{1, 2}) {
		t.Fatalf(".ancestors::a = %v; want [1 2]", all)
	}
	first := resolveAll(t, ctx, ".ancestors::a?")
	if !reflect.DeepEqual(first, []any{1}) {
		t.Errorf(".ancestors::a? = %v; want [1]", first)
	}
	// applying ? to an already-singular query changes nothing
	again := resolveAll(t, ctx, ".ancestors::a?")
	if !reflect.DeepEqual(first, again) {
		t.Errorf("first-match not idempotent: %v vs %v", first, again)
	}
}

func TestFlattening(t *testing.T) {
	_, _, leaf := testTree()
	leaf.SetAttr("nested", []any{
		[]any{
			map[string]any{"x": 1},
			map[string]any{"x": 2},
		},
		map[string]any{"x": 3},
	})
	ctx := NewEngine().NewContext(leaf)

	got := resolveAll(t, ctx, "nested::x")
	if !reflect.DeepEqual(got, []any{1, 2, 3}) {
		t.Errorf("nested::x = %v; want [1 2 3]", got)
	}
}

func TestFlatteningFromDocument(t *testing.T) {
	doc := map[string]any{
		"x": []any{
			map[string]any{"a": []any{map[string]any{"c": 1}, map[string]any{"c": 2}}},
			map[string]any{"a": []any{map[string]any{"c": 3}, map[string]any{"c": 4}}},
		},
	}
	ctx := NewEngine().NewContext(doc)

	got := resolveAll(t, ctx, "x::a::c")
	if !reflect.DeepEqual(got, []any{1, 2, 3, 4}) {
		t.Errorf("x::a::c = %v; want [1 2 3 4]", got)
	}
}

func TestWildcardFromDocument(t *testing.T) {
	ctx := NewEngine().NewContext(map[string]any{"p": 1, "q": 2})

	got := resolveAll(t, ctx, "*")
	if !reflect.DeepEqual(got, []any{1, 2}) {
		t.Errorf("* = %v; want [1 2]", got)
	}
}

func TestIndexKeys(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	if got := resolveAll(t, ctx, "servers::0::name"); !reflect.DeepEqual(got, []any{"web1"}) {
		t.Errorf("servers::0::name = %v; want [web1]", got)
	}
	// out of range drops the candidate
	if got := resolveAll(t, ctx, "servers::5"); len(got) != 0 {
		t.Errorf("servers::5 = %v; want no matches", got)
	}
}

func TestWildcard(t *testing.T) {
	root, _, _ := testTree()
	ctx := NewEngine().NewContext(root)

	got := resolveAll(t, ctx, "conf::*")
	if !reflect.DeepEqual(got, []any{"db.internal", 5432}) {
		t.Errorf("conf::* = %v; want sorted-key values [db.internal 5432]", got)
	}
	// every value of the mapping appears exactly once
	conf, _ := root.Attr("conf")
	if len(got) != len(conf.(map[string]any)) {
		t.Errorf("wildcard yielded %d values for %d keys", len(got), len(conf.(map[string]any)))
	}
}

func TestComparisonTests(t *testing.T) {
	doc := map[string]any{
		"vals": []any{
			map[string]any{"n": 1},
			map[string]any{"n": 2},
		},
	}
	ctx := NewEngine().NewContext(doc)

	if got := resolveAll(t, ctx, "vals::n=1"); !reflect.DeepEqual(got, []any{1}) {
		t.Errorf("n=1 = %v; want [1]", got)
	}
	if got := resolveAll(t, ctx, "vals::n!=1"); !reflect.DeepEqual(got, []any{2}) {
		t.Errorf("n!=1 = %v; want [2]", got)
	}
	// coercion failure: a non-numeric operand against an int value is
	// simply not equal, so != holds for every candidate and = for none
	if got := resolveAll(t, ctx, "vals::n=notanumber"); len(got) != 0 {
		t.Errorf("n=notanumber = %v; want no matches", got)
	}
	if got := resolveAll(t, ctx, "vals::n!=notanumber"); !reflect.DeepEqual(got, []any{1, 2}) {
		t.Errorf("n!=notanumber = %v; want [1 2]", got)
	}
}

func TestNotEqualOnAbsentKey(t *testing.T) {
	_, _, leaf := testTree()
	engine := NewEngine()
	ctx := engine.NewContext(leaf)

	ref, err := NewRef(".ancestors::nosuchkey!=5?", nil)
	if err != nil {
		t.Fatalf("NewRef error: %v", err)
	}
	results, err := ref.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// an absent key satisfies != and the candidate passes through
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	// an = test on the same absent key never matches
	if got := resolveAll(t, ctx, ".ancestors::nosuchkey=5"); len(got) != 0 {
		t.Errorf("nosuchkey=5 = %v; want no matches", got)
	}
}

func TestVarOperand(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf).WithVars(map[string]any{"limit": 1})

	if got := resolveAll(t, ctx, ".ancestors::a=$limit"); !reflect.DeepEqual(got, []any{1}) {
		t.Errorf("a=$limit = %v; want [1]", got)
	}
	// unbound operand variable: only != holds
	if got := resolveAll(t, ctx, "servers::zone=$unbound"); len(got) != 0 {
		t.Errorf("zone=$unbound = %v; want no matches", got)
	}
	if got := resolveAll(t, ctx, "servers::zone!=$unbound"); !reflect.DeepEqual(got, []any{"us", "eu"}) {
		t.Errorf("zone!=$unbound = %v; want [us eu]", got)
	}
}

func TestVarStart(t *testing.T) {
	_, _, leaf := testTree()
	engine := NewEngine()
	ctx := engine.NewContext(leaf)

	ref, err := NewRef(map[string]any{
		"eval": "$doc::inner::x",
		"vars": map[string]any{
			"doc": map[string]any{"inner": map[string]any{"x": 42}},
		},
	}, nil)
	if err != nil {
		t.Fatalf("NewRef error: %v", err)
	}
	got, err := ref.ResolveOne(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != 42 {
		t.Errorf("$doc::inner::x = %v; want 42", got)
	}

	// bare variable reference yields the bound value itself
	one, err := NewRef(map[string]any{
		"eval": "$v",
		"vars": map[string]any{"v": []any{1, 2}},
	}, nil)
	if err != nil {
		t.Fatalf("NewRef error: %v", err)
	}
	v, err := one.ResolveOne(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(v, []any{1, 2}) {
		t.Errorf("$v = %v; want the bound list", v)
	}
}

func TestUnknownVariableFails(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	ref, err := NewRef("$nope::x", nil)
	if err != nil {
		t.Fatalf("NewRef error: %v", err)
	}
	if _, err := ref.Resolve(ctx); err == nil {
		t.Fatal("resolving an unknown variable should fail")
	}
}

func TestStartVariable(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	got, err := mustRef(t, "$start::port").ResolveOne(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != 8080 {
		t.Errorf("$start::port = %v; want 8080", got)
	}
}

func TestRootedExpression(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	if got := resolveAll(t, ctx, "::mid::a"); !reflect.DeepEqual(got, []any{1}) {
		t.Errorf("::mid::a = %v; want [1]", got)
	}
	if got := resolveAll(t, ctx, "::leaf::port"); !reflect.DeepEqual(got, []any{8080}) {
		t.Errorf("::leaf::port = %v; want [8080]", got)
	}
}

func TestFilters(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	// element-wise: flatten the list, then filter each element
	got := resolveAll(t, ctx, "servers::[zone=us]::name")
	if !reflect.DeepEqual(got, []any{"web1"}) {
		t.Errorf("servers::[zone=us]::name = %v; want [web1]", got)
	}
	// negated filter keeps elements where nothing matched
	got = resolveAll(t, ctx, "servers::[!zone=us]::name")
	if !reflect.DeepEqual(got, []any{"web2"}) {
		t.Errorf("servers::[!zone=us]::name = %v; want [web2]", got)
	}
	// whole-value filter: the looked-up list passes when any element
	// matches, and is dropped otherwise
	if got := resolveAll(t, ctx, "servers[name=web1]"); len(got) != 1 {
		t.Errorf("servers[name=web1] = %v; want the whole list", got)
	}
	if got := resolveAll(t, ctx, "servers[name=nope]"); len(got) != 0 {
		t.Errorf("servers[name=nope] = %v; want no matches", got)
	}
}

func TestFilterOnResources(t *testing.T) {
	root, _, _ := testTree()
	ctx := NewEngine().NewContext(root)

	got := resolveAll(t, ctx, ".descendents::[port]")
	if len(got) != 1 {
		t.Fatalf("descendents with port = %v; want one instance", got)
	}
	inst, ok := got[0].(*graph.Instance)
	if !ok || inst.Name() != "leaf" {
		t.Errorf("matched %v; want the leaf instance", got[0])
	}
}

func TestExternalValues(t *testing.T) {
	_, _, leaf := testTree()
	leaf.SetAttr("secret", OpaqueValue{V: "hunter2"})
	leaf.SetAttr("exlist", OpaqueValue{V: []any{10, 20}})
	engine := NewEngine()
	ctx := engine.NewContext(leaf)

	results, err := mustRef(t, "secret").Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(results) != 1 || !results[0].IsExternal() {
		t.Fatalf("secret = %v; want one external result", results)
	}
	if results[0].Resolved() != "hunter2" {
		t.Errorf("secret resolved = %v; want hunter2", results[0].Resolved())
	}

	// externals stay atomic: a name key never flattens into the
	// underlying list
	if got := resolveAll(t, ctx, "exlist::name"); len(got) != 0 {
		t.Errorf("exlist::name = %v; want no matches", got)
	}
	// but explicit indexing reaches inside
	if got := resolveAll(t, ctx, "exlist::1"); !reflect.DeepEqual(got, []any{20}) {
		t.Errorf("exlist::1 = %v; want [20]", got)
	}
}

func TestNestedExpressionExpansion(t *testing.T) {
	root, _, leaf := testTree()
	root.SetAttr("derived", map[string]any{
		"host": map[string]any{"eval": "conf::host"},
		"tag":  "static",
	})
	ctx := NewEngine().NewContext(leaf)

	got, err := mustRef(t, "derived").ResolveOne(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := map[string]any{"host": "db.internal", "tag": "static"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("derived = %v; want %v", got, want)
	}
}

func TestResultOwner(t *testing.T) {
	_, mid, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	results, err := mustRef(t, "a").Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Owner() != Resource(mid) {
		t.Errorf("owner = %v; want mid", results[0].Owner())
	}
}

func TestResolveOneShapes(t *testing.T) {
	_, _, leaf := testTree()
	ctx := NewEngine().NewContext(leaf)

	// no match
	v, err := mustRef(t, "nosuchkey").ResolveOne(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v != nil {
		t.Errorf("no match = %v; want nil", v)
	}
	// multiple matches come back as a list
	v, err = mustRef(t, ".ancestors::a").ResolveOne(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(v, []any{1, 2}) {
		t.Errorf("multi-match = %v; want [1 2]", v)
	}
}

func TestIsExpr(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{map[string]any{"eval": "a"}, true},
		{map[string]any{"ref": "a"}, true},
		{map[string]any{"eval": "a", "vars": map[string]any{}}, true},
		{map[string]any{"eval": "a", "foreach": "x"}, true},
		{map[string]any{"q": 1}, true},
		{map[string]any{"eval": "a", "extra": 1}, false},
		{map[string]any{"q": 1, "extra": 1}, false},
		{map[string]any{"other": "a"}, false},
		{"a::b", false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsExpr(tt.value); got != tt.want {
			t.Errorf("IsExpr(%v) = %v; want %v", tt.value, got, tt.want)
		}
	}
}

func mustRef(t *testing.T, exp any) *Ref {
	t.Helper()
	ref, err := NewRef(exp, nil)
	if err != nil {
		t.Fatalf("NewRef(%v) error: %v", exp, err)
	}
	return ref
}
