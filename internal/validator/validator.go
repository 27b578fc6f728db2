// Package validator checks ISA-JSON documents against the investigation
// schema and verifies that the @id references inside them resolve.
package validator

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/isajson"
)

//go:embed schemas/investigation_schema.json
var investigationSchema []byte

// InvestigationSchema returns the embedded investigation schema.
func InvestigationSchema() []byte { return investigationSchema }

// Validator validates ISA-JSON documents
type Validator struct {
	config ValidationConfig
	schema *gojsonschema.Schema
}

// ValidationConfig holds validation configuration
type ValidationConfig struct {
	// SchemaPath names an external schema; empty selects the embedded one.
	// Relative $ref entries resolve against the schema's directory.
	SchemaPath         string
	ValidateReferences bool
	// StrictMode reports unresolved references as errors instead of warnings.
	StrictMode bool
}

// NewValidator creates a new validator
func NewValidator(config ValidationConfig) (*Validator, error) {
	const op isaerr.Op = "validator.NewValidator"

	var loader gojsonschema.JSONLoader
	if config.SchemaPath == "" {
		loader = gojsonschema.NewBytesLoader(investigationSchema)
	} else {
		abs, err := filepath.Abs(config.SchemaPath)
		if err != nil {
			return nil, isaerr.IO(op, config.SchemaPath, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, isaerr.IO(op, config.SchemaPath, err)
		}
		loader = gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs))
	}
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, isaerr.E(op, isaerr.KindConfig, isaerr.Pos{Path: config.SchemaPath}, err, "invalid schema")
	}
	return &Validator{config: config, schema: schema}, nil
}

// DefaultValidator creates a validator with the embedded schema and
// reference checks enabled.
func DefaultValidator() *Validator {
	v, err := NewValidator(ValidationConfig{ValidateReferences: true})
	if err != nil {
		// The embedded schema is part of the binary.
		panic(err)
	}
	return v
}

// ValidationResult contains validation results
type ValidationResult struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []ValidationError   `json:"errors,omitempty"`
	Warnings []ValidationWarning `json:"warnings,omitempty"`
	Stats    ValidationStats     `json:"stats"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Type    string `json:"type"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationWarning represents a validation warning
type ValidationWarning struct {
	Type    string `json:"type"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationStats contains validation statistics
type ValidationStats struct {
	SchemaErrors      int `json:"schema_errors"`
	ReferencesChecked int `json:"references_checked"`
}

// Err returns nil for a valid result and a KindSchemaViolation error
// summarising the errors otherwise.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		if e.Field != "" {
			msgs = append(msgs, e.Field+": "+e.Message)
		} else {
			msgs = append(msgs, e.Message)
		}
	}
	return isaerr.Errorf("validator.Validate", isaerr.KindSchemaViolation, isaerr.Pos{},
		"%d error(s): %s", len(r.Errors), strings.Join(msgs, "; "))
}

// Validate validates a JSON document. The error is non-nil only when data
// is not JSON at all; schema violations are reported in the result.
func (v *Validator) Validate(data []byte) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, isaerr.E(isaerr.Op("validator.Validate"), isaerr.KindMalformedDocument, err)
	}
	for _, desc := range res.Errors() {
		result.Errors = append(result.Errors, ValidationError{
			Type:    "SCHEMA_" + strings.ToUpper(desc.Type()),
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	result.Stats.SchemaErrors = len(result.Errors)

	if v.config.ValidateReferences && res.Valid() {
		doc, err := isajson.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		v.checkReferences(doc, result)
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// ValidateFile validates the JSON document stored at path.
func (v *Validator) ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, isaerr.IO("validator.ValidateFile", path, err)
	}
	result, err := v.Validate(data)
	if err != nil {
		return nil, isaerr.E(isaerr.Pos{Path: path}, err)
	}
	return result, nil
}

// idSet holds the @ids a reference may point at.
type idSet map[string]bool

func (s idSet) add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			s[id] = true
		}
	}
}

func (s idSet) with(other idSet) idSet {
	out := make(idSet, len(s)+len(other))
	for id := range s {
		out[id] = true
	}
	for id := range other {
		out[id] = true
	}
	return out
}

func (v *Validator) report(result *ValidationResult, field, msg string) {
	if v.config.StrictMode {
		result.Errors = append(result.Errors, ValidationError{Type: "UNRESOLVED_REFERENCE", Field: field, Message: msg})
		return
	}
	result.Warnings = append(result.Warnings, ValidationWarning{Type: "UNRESOLVED_REFERENCE", Field: field, Message: msg})
}

func (v *Validator) checkReferences(doc *isajson.Document, result *ValidationResult) {
	for si := range doc.Studies {
		s := &doc.Studies[si]
		prefix := fmt.Sprintf("studies.%d", si)

		protocols := idSet{}
		for _, p := range s.Protocols {
			protocols.add(p.ID)
			for _, param := range p.Parameters {
				protocols.add(param.ID)
			}
		}
		factors := idSet{}
		for _, f := range s.Factors {
			factors.add(f.ID)
		}

		nodes, categories, units := idSet{}, idSet{}, idSet{}
		for _, m := range s.Materials.Sources {
			nodes.add(m.ID)
		}
		for _, m := range s.Materials.Samples {
			nodes.add(m.ID)
		}
		for _, m := range s.Materials.OtherMaterials {
			nodes.add(m.ID)
		}
		for _, c := range s.CharacteristicCategories {
			categories.add(c.ID)
		}
		for _, u := range s.UnitCategories {
			units.add(u.ID)
		}

		scope := refScope{protocols: protocols, factors: factors, nodes: nodes, categories: categories, units: units}
		v.checkMaterials(result, prefix, scope, s.Materials.Sources, s.Materials.Samples, s.Materials.OtherMaterials)
		v.checkProcesses(result, prefix, scope, s.ProcessSequence)

		for ai := range s.Assays {
			a := &s.Assays[ai]
			ap := fmt.Sprintf("%s.assays.%d", prefix, ai)
			anodes, acats, aunits := idSet{}, idSet{}, idSet{}
			for _, m := range a.Materials.Samples {
				anodes.add(m.ID)
			}
			for _, m := range a.Materials.OtherMaterials {
				anodes.add(m.ID)
			}
			for _, d := range a.DataFiles {
				anodes.add(d.ID)
			}
			for _, c := range a.CharacteristicCategories {
				acats.add(c.ID)
			}
			for _, u := range a.UnitCategories {
				aunits.add(u.ID)
			}
			ascope := refScope{
				protocols:  protocols,
				factors:    factors,
				nodes:      nodes.with(anodes),
				categories: categories.with(acats),
				units:      units.with(aunits),
			}
			v.checkMaterials(result, ap, ascope, nil, a.Materials.Samples, a.Materials.OtherMaterials)
			v.checkProcesses(result, ap, ascope, a.ProcessSequence)
		}
	}
}

type refScope struct {
	protocols, factors, nodes, categories, units idSet
}

func (v *Validator) checkRef(result *ValidationResult, field, id string, set idSet, what string) {
	result.Stats.ReferencesChecked++
	if !set[id] {
		v.report(result, field, fmt.Sprintf("%s %q is not declared", what, id))
	}
}

func (v *Validator) checkValues(result *ValidationResult, field string, values []isajson.AttributeValue, categories, units idSet, what string) {
	for i, av := range values {
		f := fmt.Sprintf("%s.%d", field, i)
		v.checkRef(result, f+".category", av.Category.ID, categories, what)
		if av.Unit != nil {
			v.checkRef(result, f+".unit", av.Unit.ID, units, "unit")
		}
	}
}

func (v *Validator) checkMaterials(result *ValidationResult, prefix string, scope refScope, sources []isajson.Source, samples []isajson.Sample, others []isajson.Material) {
	for i, m := range sources {
		v.checkValues(result, fmt.Sprintf("%s.materials.sources.%d.characteristics", prefix, i),
			m.Characteristics, scope.categories, scope.units, "characteristic category")
	}
	for i, m := range samples {
		f := fmt.Sprintf("%s.materials.samples.%d", prefix, i)
		v.checkValues(result, f+".characteristics", m.Characteristics, scope.categories, scope.units, "characteristic category")
		v.checkValues(result, f+".factorValues", m.FactorValues, scope.factors, scope.units, "factor")
		for j, ref := range m.DerivesFrom {
			v.checkRef(result, fmt.Sprintf("%s.derivesFrom.%d", f, j), ref.ID, scope.nodes, "material")
		}
	}
	for i, m := range others {
		f := fmt.Sprintf("%s.materials.otherMaterials.%d", prefix, i)
		v.checkValues(result, f+".characteristics", m.Characteristics, scope.categories, scope.units, "characteristic category")
		for j, ref := range m.DerivesFrom {
			v.checkRef(result, fmt.Sprintf("%s.derivesFrom.%d", f, j), ref.ID, scope.nodes, "material")
		}
	}
}

func (v *Validator) checkProcesses(result *ValidationResult, prefix string, scope refScope, processes []isajson.Process) {
	ids := idSet{}
	for _, p := range processes {
		ids.add(p.ID)
	}
	for i, p := range processes {
		f := fmt.Sprintf("%s.processSequence.%d", prefix, i)
		if p.ExecutesProtocol != nil {
			v.checkRef(result, f+".executesProtocol", p.ExecutesProtocol.ID, scope.protocols, "protocol")
		}
		v.checkValues(result, f+".parameterValues", p.ParameterValues, scope.protocols, scope.units, "protocol parameter")
		for j, ref := range p.Inputs {
			v.checkRef(result, fmt.Sprintf("%s.inputs.%d", f, j), ref.ID, scope.nodes, "material or data file")
		}
		for j, ref := range p.Outputs {
			v.checkRef(result, fmt.Sprintf("%s.outputs.%d", f, j), ref.ID, scope.nodes, "material or data file")
		}
		if p.PreviousProcess != nil {
			v.checkRef(result, f+".previousProcess", p.PreviousProcess.ID, ids, "process")
		}
		if p.NextProcess != nil {
			v.checkRef(result, f+".nextProcess", p.NextProcess.ID, ids, "process")
		}
	}
}
