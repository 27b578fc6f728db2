package validator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/investigation"
	"github.com/nishad/isakit/internal/isajson"
	"github.com/nishad/isakit/internal/testutil"
)

func emittedBundle(t *testing.T) []byte {
	t.Helper()
	dir, cleanup := testutil.WriteBundle(t)
	defer cleanup()
	inv, err := investigation.Load(dir, investigation.Options{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	data, err := isajson.Marshal(inv, isajson.Options{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return data
}

func TestDefaultValidator(t *testing.T) {
	v := DefaultValidator()
	if v == nil {
		t.Fatal("DefaultValidator returned nil")
	}
	if !v.config.ValidateReferences {
		t.Error("expected ValidateReferences to be true")
	}
	if v.config.StrictMode {
		t.Error("expected StrictMode to be false")
	}
}

func TestEmittedDocumentConforms(t *testing.T) {
	result, err := DefaultValidator().Validate(emittedBundle(t))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.IsValid {
		t.Fatalf("emitted document is invalid: %+v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", result.Warnings)
	}
	if result.Stats.ReferencesChecked == 0 {
		t.Error("no references checked")
	}
	if err := result.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing studies", `{"identifier": "I1"}`},
		{"unknown key", `{"identifier": "I1", "studies": [], "colour": "blue"}`},
		{"wrong type", `{"identifier": "I1", "studies": [{"identifier": "S1", "filename": "s.txt", "assays": {}}]}`},
		{"bad material type", `{"identifier": "I1", "studies": [{"identifier": "S1", "filename": "s.txt",
			"materials": {"otherMaterials": [{"@id": "#m/1", "type": "Powder"}]}}]}`},
	}
	v := DefaultValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate([]byte(tt.doc))
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if result.IsValid {
				t.Fatal("expected document to be invalid")
			}
			if result.Stats.SchemaErrors == 0 {
				t.Error("expected schema errors to be counted")
			}
			if !isaerr.IsKind(result.Err(), isaerr.KindSchemaViolation) {
				t.Errorf("Err() = %v, want SchemaViolation", result.Err())
			}
		})
	}
}

func TestValidateNotJSON(t *testing.T) {
	_, err := DefaultValidator().Validate([]byte("{"))
	if !isaerr.IsKind(err, isaerr.KindMalformedDocument) {
		t.Errorf("expected MalformedDocument, got %v", err)
	}
}

const danglingProtocol = `{"identifier": "I1", "studies": [{"identifier": "S1", "filename": "s.txt",
	"materials": {"sources": [{"@id": "#source/a", "name": "a"}], "samples": [{"@id": "#sample/b", "name": "b"}]},
	"processSequence": [{"@id": "#process/s/1", "executesProtocol": {"@id": "#protocol/missing"},
		"inputs": [{"@id": "#source/a"}], "outputs": [{"@id": "#sample/b"}]}]}]}`

func TestReferenceChecks(t *testing.T) {
	result, err := DefaultValidator().Validate([]byte(danglingProtocol))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.IsValid {
		t.Errorf("dangling reference should only warn: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Field != "studies.0.processSequence.0.executesProtocol" {
		t.Errorf("warnings = %+v", result.Warnings)
	}

	strict, err := NewValidator(ValidationConfig{ValidateReferences: true, StrictMode: true})
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	result, err = strict.Validate([]byte(danglingProtocol))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.IsValid || len(result.Errors) != 1 || result.Errors[0].Type != "UNRESOLVED_REFERENCE" {
		t.Errorf("strict result = %+v", result)
	}
}

func TestExternalSchema(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.json")
	if err := os.WriteFile(schema, []byte(`{"type": "object", "required": ["title"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := NewValidator(ValidationConfig{SchemaPath: schema})
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	result, err := v.Validate([]byte(`{"identifier": "I1"}`))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.IsValid || !strings.Contains(result.Errors[0].Message, "title") {
		t.Errorf("result = %+v", result)
	}

	if _, err := NewValidator(ValidationConfig{SchemaPath: filepath.Join(dir, "none.json")}); !isaerr.IsKind(err, isaerr.KindIO) {
		t.Errorf("missing schema: expected IO error, got %v", err)
	}
}

func TestValidateFile(t *testing.T) {
	path, cleanup := testutil.TempFile(t, "investigation.json", string(emittedBundle(t)))
	defer cleanup()
	result, err := DefaultValidator().ValidateFile(path)
	if err != nil || !result.IsValid {
		t.Fatalf("ValidateFile() = %+v, %v", result, err)
	}
	if _, err := DefaultValidator().ValidateFile(path + ".missing"); !isaerr.IsKind(err, isaerr.KindIO) {
		t.Errorf("expected IO error, got %v", err)
	}
}

func TestEmbeddedSchemaIsJSON(t *testing.T) {
	var v map[string]any
	if err := json.Unmarshal(InvestigationSchema(), &v); err != nil {
		t.Fatalf("embedded schema: %v", err)
	}
	if _, ok := v["definitions"]; !ok {
		t.Error("embedded schema has no definitions")
	}
}
