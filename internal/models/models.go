package models

import "strings"

// OntologyAnnotation is a controlled term with an optional source.
type OntologyAnnotation struct {
	Term      string    `json:"term"`
	Source    string    `json:"source,omitempty"`
	Accession string    `json:"accession,omitempty"`
	Comments  []Comment `json:"comments,omitempty"`
}

// IsZero reports whether the annotation carries no information.
func (o OntologyAnnotation) IsZero() bool {
	return o.Term == "" && o.Source == "" && o.Accession == "" && len(o.Comments) == 0
}

// Comment is a free-form named value attached to almost anything.
type Comment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OntologySource declares an ontology used by the investigation.
type OntologySource struct {
	Name        string    `json:"name"`
	File        string    `json:"file"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Comments    []Comment `json:"comments,omitempty"`
}

// Publication describes a paper attached to an investigation or study.
type Publication struct {
	PubMedID   string             `json:"pubmed_id"`
	DOI        string             `json:"doi"`
	AuthorList string             `json:"author_list"`
	Title      string             `json:"title"`
	Status     OntologyAnnotation `json:"status"`
	Comments   []Comment          `json:"comments,omitempty"`
}

// Person is a contact.
type Person struct {
	LastName    string               `json:"last_name"`
	FirstName   string               `json:"first_name"`
	MidInitials string               `json:"mid_initials"`
	Email       string               `json:"email"`
	Phone       string               `json:"phone"`
	Fax         string               `json:"fax"`
	Address     string               `json:"address"`
	Affiliation string               `json:"affiliation"`
	Roles       []OntologyAnnotation `json:"roles"`
	Comments    []Comment            `json:"comments,omitempty"`
}

// Component is an instrument, software or reagent used by a protocol.
type Component struct {
	Name string             `json:"name"`
	Type OntologyAnnotation `json:"type"`
}

// Protocol is a declared procedure with typed parameters.
type Protocol struct {
	Name        string               `json:"name"`
	Type        OntologyAnnotation   `json:"type"`
	Description string               `json:"description"`
	URI         string               `json:"uri"`
	Version     string               `json:"version"`
	Parameters  []OntologyAnnotation `json:"parameters"`
	Components  []Component          `json:"components"`
	Comments    []Comment            `json:"comments,omitempty"`
}

// HasParameter reports whether the protocol declares a parameter with the given name.
func (p *Protocol) HasParameter(name string) bool {
	for _, param := range p.Parameters {
		if param.Term == name {
			return true
		}
	}
	return false
}

// Factor is a declared experimental factor.
type Factor struct {
	Name     string             `json:"name"`
	Type     OntologyAnnotation `json:"type"`
	Comments []Comment          `json:"comments,omitempty"`
}

// Assay is one measurement stream on the samples of its study.
type Assay struct {
	Filename           string             `json:"filename"`
	MeasurementType    OntologyAnnotation `json:"measurement_type"`
	TechnologyType     OntologyAnnotation `json:"technology_type"`
	TechnologyPlatform string             `json:"technology_platform"`
	Comments           []Comment          `json:"comments,omitempty"`
	Graph              *Graph             `json:"-"`
}

// Study is one experimental design within an investigation.
type Study struct {
	Identifier        string               `json:"identifier"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	SubmissionDate    string               `json:"submission_date"`
	PublicReleaseDate string               `json:"public_release_date"`
	Filename          string               `json:"filename"`
	DesignDescriptors []OntologyAnnotation `json:"design_descriptors"`
	Publications      []Publication        `json:"publications"`
	Factors           []Factor             `json:"factors"`
	Assays            []*Assay             `json:"assays"`
	Protocols         []Protocol           `json:"protocols"`
	Contacts          []Person             `json:"contacts"`
	Comments          []Comment            `json:"comments,omitempty"`
	Graph             *Graph               `json:"-"`
}

// Protocol returns the declared protocol with the given name.
func (s *Study) Protocol(name string) (*Protocol, bool) {
	for i := range s.Protocols {
		if s.Protocols[i].Name == name {
			return &s.Protocols[i], true
		}
	}
	return nil, false
}

// Factor returns the declared factor with the given name.
func (s *Study) Factor(name string) (*Factor, bool) {
	for i := range s.Factors {
		if s.Factors[i].Name == name {
			return &s.Factors[i], true
		}
	}
	return nil, false
}

// Investigation is the top-level record of one submission.
type Investigation struct {
	Filename          string           `json:"filename"`
	Identifier        string           `json:"identifier"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	SubmissionDate    string           `json:"submission_date"`
	PublicReleaseDate string           `json:"public_release_date"`
	OntologySources   []OntologySource `json:"ontology_sources"`
	Publications      []Publication    `json:"publications"`
	Contacts          []Person         `json:"contacts"`
	Comments          []Comment        `json:"comments,omitempty"`
	Studies           []*Study         `json:"studies"`
}

// OntologySource returns the declared source with the given name.
func (inv *Investigation) OntologySource(name string) (*OntologySource, bool) {
	for i := range inv.OntologySources {
		if inv.OntologySources[i].Name == name {
			return &inv.OntologySources[i], true
		}
	}
	return nil, false
}

// StudyScope resolves the names a study or assay table may reference:
// protocols and factors of the study, ontology sources of the investigation.
type StudyScope struct {
	Investigation *Investigation
	Study         *Study
}

// Protocol implements the graph builder's scope.
func (s StudyScope) Protocol(name string) (*Protocol, bool) {
	if s.Study == nil {
		return nil, false
	}
	return s.Study.Protocol(name)
}

// HasFactor implements the graph builder's scope.
func (s StudyScope) HasFactor(name string) bool {
	if s.Study == nil {
		return false
	}
	_, ok := s.Study.Factor(name)
	return ok
}

// HasOntologySource implements the graph builder's scope.
func (s StudyScope) HasOntologySource(name string) bool {
	if s.Investigation == nil {
		return false
	}
	_, ok := s.Investigation.OntologySource(name)
	return ok
}

// SplitTerms splits a ';' separated cell as used for roles, parameters and
// components in the investigation file. Empty input yields nil.
func SplitTerms(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
