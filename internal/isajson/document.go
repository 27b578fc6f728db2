// Package isajson converts investigations to and from ISA-JSON documents.
package isajson

import (
	"bytes"
	"encoding/json"

	"github.com/nishad/isakit/internal/models"
)

// Document is the ISA-JSON investigation object.
type Document struct {
	ID                       string                    `json:"@id,omitempty"`
	Filename                 string                    `json:"filename"`
	Identifier               string                    `json:"identifier"`
	Title                    string                    `json:"title"`
	Description              string                    `json:"description"`
	SubmissionDate           string                    `json:"submissionDate"`
	PublicReleaseDate        string                    `json:"publicReleaseDate"`
	OntologySourceReferences []OntologySourceReference `json:"ontologySourceReferences"`
	Publications             []Publication             `json:"publications"`
	People                   []Person                  `json:"people"`
	Studies                  []Study                   `json:"studies"`
	Comments                 []Comment                 `json:"comments"`
}

// Comment is a named free-text value.
type Comment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Ref points at another object of the document by its @id.
type Ref struct {
	ID string `json:"@id"`
}

// Literal is a string that also accepts JSON numbers and booleans on input.
type Literal string

func (l *Literal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Literal(s)
		return nil
	}
	if string(b) == "null" {
		*l = ""
		return nil
	}
	*l = Literal(b)
	return nil
}

// OntologyAnnotation is a controlled term with its source and accession.
type OntologyAnnotation struct {
	ID              string    `json:"@id,omitempty"`
	AnnotationValue Literal   `json:"annotationValue"`
	TermSource      string    `json:"termSource"`
	TermAccession   string    `json:"termAccession"`
	Comments        []Comment `json:"comments,omitempty"`
}

// OntologySourceReference declares an ontology used by the document.
type OntologySourceReference struct {
	Name        string    `json:"name"`
	File        string    `json:"file"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Comments    []Comment `json:"comments"`
}

// Publication describes a paper.
type Publication struct {
	PubMedID   string             `json:"pubMedID"`
	DOI        string             `json:"doi"`
	AuthorList string             `json:"authorList"`
	Title      string             `json:"title"`
	Status     OntologyAnnotation `json:"status"`
	Comments   []Comment          `json:"comments"`
}

// Person is a contact of the investigation or a study.
type Person struct {
	LastName    string               `json:"lastName"`
	FirstName   string               `json:"firstName"`
	MidInitials string               `json:"midInitials"`
	Email       string               `json:"email"`
	Phone       string               `json:"phone"`
	Fax         string               `json:"fax"`
	Address     string               `json:"address"`
	Affiliation string               `json:"affiliation"`
	Roles       []OntologyAnnotation `json:"roles"`
	Comments    []Comment            `json:"comments"`
}

// ProtocolParameter is a parameter declared by a protocol.
type ProtocolParameter struct {
	ID            string             `json:"@id"`
	ParameterName OntologyAnnotation `json:"parameterName"`
}

// Component is an instrument, software or reagent used by a protocol.
type Component struct {
	ComponentName string             `json:"componentName"`
	ComponentType OntologyAnnotation `json:"componentType"`
}

// Protocol is a declared procedure.
type Protocol struct {
	ID           string              `json:"@id"`
	Name         string              `json:"name"`
	ProtocolType OntologyAnnotation  `json:"protocolType"`
	Description  string              `json:"description"`
	URI          string              `json:"uri"`
	Version      string              `json:"version"`
	Parameters   []ProtocolParameter `json:"parameters"`
	Components   []Component         `json:"components"`
	Comments     []Comment           `json:"comments"`
}

// Factor is a declared experimental factor.
type Factor struct {
	ID         string             `json:"@id"`
	FactorName string             `json:"factorName"`
	FactorType OntologyAnnotation `json:"factorType"`
	Comments   []Comment          `json:"comments"`
}

// CharacteristicCategory names a characteristic used by the materials of a study or assay.
type CharacteristicCategory struct {
	ID                 string             `json:"@id"`
	CharacteristicType OntologyAnnotation `json:"characteristicType"`
}

// AttributeValue is a characteristic, factor value or parameter value.
type AttributeValue struct {
	Category Ref   `json:"category"`
	Value    Value `json:"value"`
	Unit     *Ref  `json:"unit,omitempty"`
}

// Source is a source material.
type Source struct {
	ID              string           `json:"@id"`
	Name            string           `json:"name"`
	Characteristics []AttributeValue `json:"characteristics"`
	Comments        []Comment        `json:"comments"`
}

// Sample is a sample material.
type Sample struct {
	ID              string           `json:"@id"`
	Name            string           `json:"name"`
	Characteristics []AttributeValue `json:"characteristics"`
	FactorValues    []AttributeValue `json:"factorValues"`
	DerivesFrom     []Ref            `json:"derivesFrom"`
	Comments        []Comment        `json:"comments"`
}

// Material is an extract or a labeled extract.
type Material struct {
	ID              string           `json:"@id"`
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Characteristics []AttributeValue `json:"characteristics"`
	DerivesFrom     []Ref            `json:"derivesFrom"`
	Comments        []Comment        `json:"comments"`
}

// DataFile is a file produced by an assay.
type DataFile struct {
	ID       string    `json:"@id"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Comments []Comment `json:"comments"`
}

// StudyMaterials lists the materials of a study table.
type StudyMaterials struct {
	Sources        []Source   `json:"sources"`
	Samples        []Sample   `json:"samples"`
	OtherMaterials []Material `json:"otherMaterials"`
}

// AssayMaterials lists the materials of an assay table.
type AssayMaterials struct {
	Samples        []Sample   `json:"samples"`
	OtherMaterials []Material `json:"otherMaterials"`
}

// Process is one protocol execution. Processes of a chained execution are
// linked through previousProcess and nextProcess; only the first carries
// inputs and only the last carries outputs. A chain that ends in an empty
// node cell has no outputs.
type Process struct {
	ID               string           `json:"@id"`
	Name             *string          `json:"name,omitempty"`
	ExecutesProtocol *Ref             `json:"executesProtocol,omitempty"`
	ParameterValues  []AttributeValue `json:"parameterValues"`
	Performer        *string          `json:"performer,omitempty"`
	Date             *string          `json:"date,omitempty"`
	PreviousProcess  *Ref             `json:"previousProcess,omitempty"`
	NextProcess      *Ref             `json:"nextProcess,omitempty"`
	Inputs           []Ref            `json:"inputs"`
	Outputs          []Ref            `json:"outputs"`
	Comments         []Comment        `json:"comments"`
}

// Assay is one measurement stream of a study.
type Assay struct {
	Filename                 string                   `json:"filename"`
	MeasurementType          OntologyAnnotation       `json:"measurementType"`
	TechnologyType           OntologyAnnotation       `json:"technologyType"`
	TechnologyPlatform       string                   `json:"technologyPlatform"`
	DataFiles                []DataFile               `json:"dataFiles"`
	Materials                AssayMaterials           `json:"materials"`
	CharacteristicCategories []CharacteristicCategory `json:"characteristicCategories"`
	UnitCategories           []OntologyAnnotation     `json:"unitCategories"`
	ProcessSequence          []Process                `json:"processSequence"`
	Comments                 []Comment                `json:"comments"`
}

// Study is one experimental design.
type Study struct {
	ID                       string                   `json:"@id,omitempty"`
	Filename                 string                   `json:"filename"`
	Identifier               string                   `json:"identifier"`
	Title                    string                   `json:"title"`
	Description              string                   `json:"description"`
	SubmissionDate           string                   `json:"submissionDate"`
	PublicReleaseDate        string                   `json:"publicReleaseDate"`
	Publications             []Publication            `json:"publications"`
	People                   []Person                 `json:"people"`
	StudyDesignDescriptors   []OntologyAnnotation     `json:"studyDesignDescriptors"`
	Protocols                []Protocol               `json:"protocols"`
	Materials                StudyMaterials           `json:"materials"`
	ProcessSequence          []Process                `json:"processSequence"`
	Assays                   []Assay                  `json:"assays"`
	Factors                  []Factor                 `json:"factors"`
	CharacteristicCategories []CharacteristicCategory `json:"characteristicCategories"`
	UnitCategories           []OntologyAnnotation     `json:"unitCategories"`
	Comments                 []Comment                `json:"comments"`
}

// Value is an attribute value: a plain string, or an ontology annotation
// object when the value came from an annotated column. Numbers are accepted
// on input and kept in their textual form.
type Value struct {
	models.Value
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Annotated {
		return marshal(v.Term)
	}
	return marshal(OntologyAnnotation{
		AnnotationValue: Literal(v.Term),
		TermSource:      v.Source,
		TermAccession:   v.Accession,
	})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var oa OntologyAnnotation
		if err := json.Unmarshal(b, &oa); err != nil {
			return err
		}
		v.Value = models.Value{
			Term:      string(oa.AnnotationValue),
			Source:    oa.TermSource,
			Accession: oa.TermAccession,
			Annotated: true,
		}
		return nil
	}
	var l Literal
	if err := l.UnmarshalJSON(b); err != nil {
		return err
	}
	v.Value = models.Text(string(l))
	return nil
}

// marshal encodes without HTML escaping so values survive byte for byte.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func annotationOf(o models.OntologyAnnotation) OntologyAnnotation {
	return OntologyAnnotation{
		AnnotationValue: Literal(o.Term),
		TermSource:      o.Source,
		TermAccession:   o.Accession,
		Comments:        commentsOf(o.Comments),
	}
}

func (o OntologyAnnotation) model() models.OntologyAnnotation {
	return models.OntologyAnnotation{
		Term:      string(o.AnnotationValue),
		Source:    o.TermSource,
		Accession: o.TermAccession,
		Comments:  commentModels(o.Comments),
	}
}

func commentsOf(cs []models.Comment) []Comment {
	out := make([]Comment, len(cs))
	for i, c := range cs {
		out[i] = Comment{Name: c.Name, Value: c.Value}
	}
	return out
}

func commentModels(cs []Comment) []models.Comment {
	if len(cs) == 0 {
		return nil
	}
	out := make([]models.Comment, len(cs))
	for i, c := range cs {
		out[i] = models.Comment{Name: c.Name, Value: c.Value}
	}
	return out
}
