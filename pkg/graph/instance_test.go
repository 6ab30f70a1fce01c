package graph

import (
	"testing"
)

func buildTree() (*Instance, *Instance, *Instance) {
	root := New("root", map[string]any{"a": 2, "env": "prod"})
	mid := root.NewChild("mid", map[string]any{"a": 1})
	leaf := mid.NewChild("leaf", map[string]any{"port": 8080})
	return root, mid, leaf
}

func TestNavigationKeys(t *testing.T) {
	root, mid, leaf := buildTree()

	if v, ok := leaf.Lookup("."); !ok || v != leaf {
		t.Errorf("Lookup(.) = %v, %v; want leaf", v, ok)
	}
	if v, ok := leaf.Lookup(".."); !ok || v != mid {
		t.Errorf("Lookup(..) = %v, %v; want mid", v, ok)
	}
	if _, ok := root.Lookup(".."); ok {
		t.Error("Lookup(..) on root should not match")
	}
	if v, ok := leaf.Lookup(".root"); !ok || v != root {
		t.Errorf("Lookup(.root) = %v, %v; want root", v, ok)
	}

	ancestors, ok := leaf.Lookup(".ancestors")
	if !ok {
		t.Fatal("Lookup(.ancestors) should match")
	}
	seq := ancestors.([]any)
	if len(seq) != 3 || seq[0] != leaf || seq[1] != mid || seq[2] != root {
		t.Errorf("ancestors = %v; want [leaf mid root]", seq)
	}

	parents, _ := leaf.Lookup(".parents")
	if got := parents.([]any); len(got) != 2 || got[0] != mid || got[1] != root {
		t.Errorf("parents = %v; want [mid root]", got)
	}
}

func TestAllCollection(t *testing.T) {
	root, mid, leaf := buildTree()

	all, ok := leaf.Lookup(".all")
	if !ok {
		t.Fatal("Lookup(.all) should match")
	}
	m := all.(map[string]any)
	if len(m) != 3 {
		t.Fatalf("len(all) = %d; want 3", len(m))
	}
	if m["root"] != root || m["mid"] != mid || m["leaf"] != leaf {
		t.Errorf("all = %v; want every instance by name", m)
	}
}

func TestAttributeAndChildLookup(t *testing.T) {
	_, mid, leaf := buildTree()

	if v, ok := mid.Lookup("a"); !ok || v != 1 {
		t.Errorf("Lookup(a) = %v, %v; want 1", v, ok)
	}
	if v, ok := mid.Lookup("leaf"); !ok || v != leaf {
		t.Errorf("Lookup(leaf) = %v, %v; want child instance", v, ok)
	}
	if _, ok := leaf.Lookup("nope"); ok {
		t.Error("Lookup(nope) should not match")
	}
}

func TestDescendentsAndFind(t *testing.T) {
	root, mid, leaf := buildTree()

	ds := root.Descendents()
	if len(ds) != 3 || ds[0] != root || ds[1] != mid || ds[2] != leaf {
		t.Errorf("Descendents() = %v; want pre-order [root mid leaf]", ds)
	}
	if root.Find("leaf") != leaf {
		t.Error("Find(leaf) should return the leaf instance")
	}
	if root.Find("ghost") != nil {
		t.Error("Find(ghost) should return nil")
	}
}

func TestPathIdentity(t *testing.T) {
	_, _, leaf := buildTree()
	if got := leaf.Path(); got != "/root/mid/leaf" {
		t.Errorf("Path() = %q; want /root/mid/leaf", got)
	}
}

func TestSetAttr(t *testing.T) {
	root := New("root", nil)
	root.SetAttr("x", 42)
	if v, ok := root.Attr("x"); !ok || v != 42 {
		t.Errorf("Attr(x) = %v, %v; want 42", v, ok)
	}
}
