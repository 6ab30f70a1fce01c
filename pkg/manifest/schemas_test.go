package manifest

import (
	"testing"

	"github.com/openchord/openchord/pkg/eval"
)

func TestValidateNamedEndpoint(t *testing.T) {
	reg := NewSchemaRegistry()
	good := map[string]any{"host": "db.internal", "port": 5432}
	if err := reg.ValidateNamed("endpoint", good); err != nil {
		t.Errorf("expected a valid endpoint: %v", err)
	}
	bad := map[string]any{"host": "db.internal", "port": 99999}
	if err := reg.ValidateNamed("endpoint", bad); err == nil {
		t.Error("expected the out-of-range port to fail")
	}
	if err := reg.ValidateNamed("nosuch", good); err == nil {
		t.Error("expected an unknown schema name to fail")
	}
}

func TestRegisterInvalidSchema(t *testing.T) {
	reg := NewSchemaRegistry()
	if err := reg.Register("broken", "{ port: int &"); err == nil {
		t.Fatal("expected a compile error")
	}
}

func TestValidateByName(t *testing.T) {
	reg := NewSchemaRegistry()
	ok, err := reg.Validate(map[string]any{"host": "db", "port": 5432}, "endpoint")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok {
		t.Error("expected the document to conform")
	}
	ok, err = reg.Validate(map[string]any{"host": "db", "port": "not-a-port"}, "endpoint")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ok {
		t.Error("expected a type mismatch to report false")
	}
}

func TestValidateInlineSource(t *testing.T) {
	reg := NewSchemaRegistry()
	ok, err := reg.Validate(map[string]any{"n": 3}, "{ n: int & >0 }")
	if err != nil || !ok {
		t.Fatalf("inline schema: ok=%v err=%v", ok, err)
	}
	ok, err = reg.Validate(map[string]any{"n": -1}, "{ n: int & >0 }")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ok {
		t.Error("expected the constraint to fail")
	}
}

func TestValidateStructuredSchema(t *testing.T) {
	reg := NewSchemaRegistry()
	ok, err := reg.Validate(map[string]any{"port": 5432}, map[string]any{"port": 5432})
	if err != nil || !ok {
		t.Fatalf("matching structured schema: ok=%v err=%v", ok, err)
	}
	ok, err = reg.Validate(map[string]any{"port": 5432}, map[string]any{"port": 5433})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ok {
		t.Error("expected conflicting values to report false")
	}
}

func TestValidateThroughEngine(t *testing.T) {
	reg := NewSchemaRegistry()
	engine := eval.NewEngine(eval.WithSchemaValidator(reg))
	doc := map[string]any{
		"eval": map[string]any{
			"validate": []any{
				map[string]any{"q": map[string]any{"host": "db", "port": 5432}},
				map[string]any{"q": "endpoint"},
			},
		},
	}
	ref, err := eval.NewRef(doc, nil)
	if err != nil {
		t.Fatalf("NewRef: %v", err)
	}
	out, err := ref.ResolveOne(engine.NewContext(map[string]any{}))
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if out != true {
		t.Errorf("got %v, want true", out)
	}
}
