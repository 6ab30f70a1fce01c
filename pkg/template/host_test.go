package template

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/openchord/openchord/pkg/eval"
)

// mapSource is an in-memory lookup source for tests.
type mapSource map[string]any

func (m mapSource) Fetch(key string) (any, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func TestExpandPlainString(t *testing.T) {
	h := New()
	out, err := h.Expand("no actions here", nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if out != "no actions here" {
		t.Errorf("got %v, want input unchanged", out)
	}
}

func TestExpandVariables(t *testing.T) {
	h := New()
	out, err := h.Expand("{{ .name }}.{{ .zone }}", map[string]any{"name": "web1", "zone": "us"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if out != "web1.us" {
		t.Errorf("got %v, want web1.us", out)
	}
}

func TestExpandMissingVariableFails(t *testing.T) {
	h := New()
	if _, err := h.Expand("{{ .missing }}", map[string]any{}); err == nil {
		t.Fatal("expected an error for an unbound template variable")
	}
}

func TestExpandStructuredResult(t *testing.T) {
	h := New()
	out, err := h.Expand(`{"host": "{{ .host }}", "port": 5432}`, map[string]any{"host": "db"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := map[string]any{"host": "db", "port": 5432}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("got %#v, want %#v", out, want)
	}
}

func TestExpandLookupInTemplate(t *testing.T) {
	h := New(WithSource("test", mapSource{"region": "eu-west"}))
	out, err := h.Expand(`{{ lookup "test" "region" }}`, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if out != "eu-west" {
		t.Errorf("got %v, want eu-west", out)
	}
}

func TestExpandRefOutsideFunctionFails(t *testing.T) {
	h := New()
	if _, err := h.Expand(`{{ ref "a" }}`, nil); err == nil {
		t.Fatal("expected ref to fail without an evaluation context")
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv("CHORD_TEST_REGION", "us-east")
	v, found, err := EnvSource{}.Fetch("CHORD_TEST_REGION")
	if err != nil || !found {
		t.Fatalf("Fetch: found=%v err=%v", found, err)
	}
	if v != "us-east" {
		t.Errorf("got %v, want us-east", v)
	}
	if _, found, _ := (EnvSource{}).Fetch("CHORD_TEST_UNSET_VAR"); found {
		t.Error("expected a miss for an unset variable")
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "conf.yaml"), []byte("host: db\nport: 5432\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "motd.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	src := FileSource{Root: dir}

	v, found, err := src.Fetch("conf.yaml")
	if err != nil || !found {
		t.Fatalf("Fetch conf.yaml: found=%v err=%v", found, err)
	}
	want := map[string]any{"host": "db", "port": 5432}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("got %#v, want %#v", v, want)
	}

	v, found, err = src.Fetch("motd.txt")
	if err != nil || !found {
		t.Fatalf("Fetch motd.txt: found=%v err=%v", found, err)
	}
	if v != "hello" {
		t.Errorf("got %v, want hello", v)
	}

	if _, found, err := src.Fetch("nope.txt"); found || err != nil {
		t.Errorf("expected a soft miss, got found=%v err=%v", found, err)
	}
}

func newTestEngine(t *testing.T, h *Host) *eval.Engine {
	t.Helper()
	return eval.NewEngine(h.EngineOptions()...)
}

func resolveDoc(t *testing.T, engine *eval.Engine, root any, vars map[string]any, doc any) any {
	t.Helper()
	ref, err := eval.NewRef(doc, nil)
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	ctx := engine.NewContext(root)
	if vars != nil {
		ctx = ctx.WithVars(vars)
	}
	out, err := ref.ResolveOne(ctx)
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	return out
}

func TestTemplateFunction(t *testing.T) {
	h := New()
	engine := newTestEngine(t, h)
	out := resolveDoc(t, engine, map[string]any{}, map[string]any{"env": "prod"},
		map[string]any{"eval": map[string]any{"template": "{{ .env }}-cluster"}})
	if out != "prod-cluster" {
		t.Errorf("got %v, want prod-cluster", out)
	}
}

func TestTemplateRef(t *testing.T) {
	h := New()
	engine := newTestEngine(t, h)
	root := map[string]any{"conf": map[string]any{"host": "db.internal"}}
	out := resolveDoc(t, engine, root, nil,
		map[string]any{"eval": map[string]any{"template": `{{ ref "conf::host" }}:5432`}})
	if out != "db.internal:5432" {
		t.Errorf("got %v, want db.internal:5432", out)
	}
}

func TestTemplateProducesExpression(t *testing.T) {
	h := New()
	engine := newTestEngine(t, h)
	root := map[string]any{"conf": map[string]any{"host": "db.internal"}}
	out := resolveDoc(t, engine, root, map[string]any{"key": "host"},
		map[string]any{"eval": map[string]any{"template": `{"eval": "conf::{{ .key }}"}`}})
	if out != "db.internal" {
		t.Errorf("got %v, want db.internal", out)
	}
}

func TestLookupFunction(t *testing.T) {
	h := New(WithSource("test", mapSource{"region": "eu-west"}))
	engine := newTestEngine(t, h)
	out := resolveDoc(t, engine, map[string]any{}, nil,
		map[string]any{"eval": map[string]any{"lookup": map[string]any{"test": "region"}}})
	if out != "eu-west" {
		t.Errorf("got %v, want eu-west", out)
	}
}

func TestLookupListForm(t *testing.T) {
	h := New(WithSource("test", mapSource{"region": "eu-west"}))
	engine := newTestEngine(t, h)
	out := resolveDoc(t, engine, map[string]any{}, nil,
		map[string]any{"eval": map[string]any{"lookup": []any{"test", "region"}}})
	if out != "eu-west" {
		t.Errorf("got %v, want eu-west", out)
	}
}

func TestLookupMissResolvesToNull(t *testing.T) {
	h := New(WithSource("test", mapSource{}))
	engine := newTestEngine(t, h)
	out := resolveDoc(t, engine, map[string]any{}, nil,
		map[string]any{"eval": map[string]any{"lookup": map[string]any{"test": "absent"}}})
	if out != nil {
		t.Errorf("got %v, want nil for a lookup miss", out)
	}
}

func TestLookupUnknownSourceFails(t *testing.T) {
	h := New()
	engine := newTestEngine(t, h)
	ref, err := eval.NewRef(map[string]any{"eval": map[string]any{"lookup": map[string]any{"vault": "k"}}}, nil)
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	if _, err := ref.ResolveOne(engine.NewContext(map[string]any{})); err == nil {
		t.Fatal("expected an error for an unknown source")
	}
}

func TestEmbeddedTemplateExpansion(t *testing.T) {
	h := New()
	engine := newTestEngine(t, h)
	root := map[string]any{"greeting": "hello {{ .who }}"}
	ref, err := eval.NewRef("greeting", nil)
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	ctx := engine.NewContext(root).WithVars(map[string]any{"who": "world"})
	out, err := ref.ResolveOne(ctx)
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if out != "hello world" {
		t.Errorf("got %v, want hello world", out)
	}
}
