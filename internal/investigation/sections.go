package investigation

import (
	"strings"

	"github.com/nishad/isakit/internal/models"
)

// Section markers of an investigation file.
const (
	SectionOntologySources        = "ONTOLOGY SOURCE REFERENCE"
	SectionInvestigation          = "INVESTIGATION"
	SectionInvestigationPubs      = "INVESTIGATION PUBLICATIONS"
	SectionInvestigationContacts  = "INVESTIGATION CONTACTS"
	SectionStudy                  = "STUDY"
	SectionStudyDesignDescriptors = "STUDY DESIGN DESCRIPTORS"
	SectionStudyPubs              = "STUDY PUBLICATIONS"
	SectionStudyFactors           = "STUDY FACTORS"
	SectionStudyAssays            = "STUDY ASSAYS"
	SectionStudyProtocols         = "STUDY PROTOCOLS"
	SectionStudyContacts          = "STUDY CONTACTS"
)

var studySections = map[string]bool{
	SectionStudyDesignDescriptors: true,
	SectionStudyPubs:              true,
	SectionStudyFactors:           true,
	SectionStudyAssays:            true,
	SectionStudyProtocols:         true,
	SectionStudyContacts:          true,
}

var investigationSections = map[string]bool{
	SectionOntologySources:       true,
	SectionInvestigation:         true,
	SectionInvestigationPubs:     true,
	SectionInvestigationContacts: true,
}

func knownSection(name string) bool {
	return name == SectionStudy || studySections[name] || investigationSections[name]
}

const (
	accessionSuffix = " Term Accession Number"
	sourceSuffix    = " Term Source REF"
)

// field maps one investigation file key onto an entity.
type field[T any] struct {
	key string
	get func(*T) string
	set func(*T, string)
}

func text[T any](key string, p func(*T) *string) field[T] {
	return field[T]{
		key: key,
		get: func(t *T) string { return *p(t) },
		set: func(t *T, v string) { *p(t) = v },
	}
}

// annotation maps a key and its accession and source keys onto an ontology annotation.
func annotation[T any](key string, p func(*T) *models.OntologyAnnotation) []field[T] {
	return []field[T]{
		text(key, func(t *T) *string { return &p(t).Term }),
		text(key+accessionSuffix, func(t *T) *string { return &p(t).Accession }),
		text(key+sourceSuffix, func(t *T) *string { return &p(t).Source }),
	}
}

// listPart reads and writes one ';'-separated column of a list of annotations.
func listPart[T any](key string, p func(*T) *[]models.OntologyAnnotation, part func(*models.OntologyAnnotation) *string) field[T] {
	return field[T]{
		key: key,
		get: func(t *T) string {
			list := *p(t)
			parts := make([]string, len(list))
			for i := range list {
				parts[i] = *part(&list[i])
			}
			return strings.Join(parts, ";")
		},
		set: func(t *T, v string) {
			parts := models.SplitTerms(v)
			list := p(t)
			for len(*list) < len(parts) {
				*list = append(*list, models.OntologyAnnotation{})
			}
			for i, s := range parts {
				*part(&(*list)[i]) = s
			}
		},
	}
}

// terms maps a ';'-separated term list with its accession and source keys.
func terms[T any](key string, p func(*T) *[]models.OntologyAnnotation) []field[T] {
	return []field[T]{
		listPart(key, p, func(o *models.OntologyAnnotation) *string { return &o.Term }),
		listPart(key+accessionSuffix, p, func(o *models.OntologyAnnotation) *string { return &o.Accession }),
		listPart(key+sourceSuffix, p, func(o *models.OntologyAnnotation) *string { return &o.Source }),
	}
}

func concat[T any](groups ...[]field[T]) []field[T] {
	var out []field[T]
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// entity describes how one section maps onto a list of entities.
type entity[T any] struct {
	section  string
	fields   []field[T]
	comments func(*T) *[]models.Comment
}

func (e *entity[T]) keys() map[string]bool {
	m := make(map[string]bool, len(e.fields))
	for _, f := range e.fields {
		m[f.key] = true
	}
	return m
}

// decode builds one entity per value column of the block.
func (e *entity[T]) decode(b *block) []T {
	n := b.count()
	out := make([]T, n)
	for i := range out {
		t := &out[i]
		for _, f := range e.fields {
			f.set(t, b.get(f.key, i))
		}
		if e.comments != nil {
			*e.comments(t) = b.comments(i)
		}
	}
	return out
}

// encode renders entities as key rows followed by one Comment row per
// comment name seen on any entity.
func (e *entity[T]) encode(items []T) [][]string {
	rows := make([][]string, 0, len(e.fields))
	for _, f := range e.fields {
		row := []string{f.key}
		for i := range items {
			row = append(row, f.get(&items[i]))
		}
		rows = append(rows, row)
	}
	if e.comments == nil {
		return rows
	}
	var names []string
	seen := make(map[string]bool)
	for i := range items {
		for _, c := range *e.comments(&items[i]) {
			if !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}
	for _, name := range names {
		row := []string{"Comment[" + name + "]"}
		for i := range items {
			v := ""
			for _, c := range *e.comments(&items[i]) {
				if c.Name == name {
					v = c.Value
					break
				}
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return rows
}

var ontologySources = &entity[models.OntologySource]{
	section: SectionOntologySources,
	fields: []field[models.OntologySource]{
		text("Term Source Name", func(s *models.OntologySource) *string { return &s.Name }),
		text("Term Source File", func(s *models.OntologySource) *string { return &s.File }),
		text("Term Source Version", func(s *models.OntologySource) *string { return &s.Version }),
		text("Term Source Description", func(s *models.OntologySource) *string { return &s.Description }),
	},
	comments: func(s *models.OntologySource) *[]models.Comment { return &s.Comments },
}

var investigationInfo = &entity[models.Investigation]{
	section: SectionInvestigation,
	fields: []field[models.Investigation]{
		text("Investigation Identifier", func(i *models.Investigation) *string { return &i.Identifier }),
		text("Investigation Title", func(i *models.Investigation) *string { return &i.Title }),
		text("Investigation Description", func(i *models.Investigation) *string { return &i.Description }),
		text("Investigation Submission Date", func(i *models.Investigation) *string { return &i.SubmissionDate }),
		text("Investigation Public Release Date", func(i *models.Investigation) *string { return &i.PublicReleaseDate }),
	},
	comments: func(i *models.Investigation) *[]models.Comment { return &i.Comments },
}

func publications(section, prefix string) *entity[models.Publication] {
	type P = models.Publication
	return &entity[P]{
		section: section,
		fields: concat(
			[]field[P]{
				text(prefix+" PubMed ID", func(p *P) *string { return &p.PubMedID }),
				text(prefix+" Publication DOI", func(p *P) *string { return &p.DOI }),
				text(prefix+" Publication Author List", func(p *P) *string { return &p.AuthorList }),
				text(prefix+" Publication Title", func(p *P) *string { return &p.Title }),
			},
			annotation(prefix+" Publication Status", func(p *P) *models.OntologyAnnotation { return &p.Status }),
		),
		comments: func(p *P) *[]models.Comment { return &p.Comments },
	}
}

func contacts(section, prefix string) *entity[models.Person] {
	type P = models.Person
	return &entity[P]{
		section: section,
		fields: concat(
			[]field[P]{
				text(prefix+" Person Last Name", func(p *P) *string { return &p.LastName }),
				text(prefix+" Person First Name", func(p *P) *string { return &p.FirstName }),
				text(prefix+" Person Mid Initials", func(p *P) *string { return &p.MidInitials }),
				text(prefix+" Person Email", func(p *P) *string { return &p.Email }),
				text(prefix+" Person Phone", func(p *P) *string { return &p.Phone }),
				text(prefix+" Person Fax", func(p *P) *string { return &p.Fax }),
				text(prefix+" Person Address", func(p *P) *string { return &p.Address }),
				text(prefix+" Person Affiliation", func(p *P) *string { return &p.Affiliation }),
			},
			terms(prefix+" Person Roles", func(p *P) *[]models.OntologyAnnotation { return &p.Roles }),
		),
		comments: func(p *P) *[]models.Comment { return &p.Comments },
	}
}

var (
	investigationPubs     = publications(SectionInvestigationPubs, "Investigation")
	investigationContacts = contacts(SectionInvestigationContacts, "Investigation")
	studyPubs             = publications(SectionStudyPubs, "Study")
	studyContacts         = contacts(SectionStudyContacts, "Study")
)

var studyInfo = &entity[models.Study]{
	section: SectionStudy,
	fields: []field[models.Study]{
		text("Study Identifier", func(s *models.Study) *string { return &s.Identifier }),
		text("Study Title", func(s *models.Study) *string { return &s.Title }),
		text("Study Description", func(s *models.Study) *string { return &s.Description }),
		text("Study Submission Date", func(s *models.Study) *string { return &s.SubmissionDate }),
		text("Study Public Release Date", func(s *models.Study) *string { return &s.PublicReleaseDate }),
		text("Study File Name", func(s *models.Study) *string { return &s.Filename }),
	},
	comments: func(s *models.Study) *[]models.Comment { return &s.Comments },
}

var designDescriptors = &entity[models.OntologyAnnotation]{
	section: SectionStudyDesignDescriptors,
	fields: annotation("Study Design Type", func(o *models.OntologyAnnotation) *models.OntologyAnnotation { return o }),
	comments: func(o *models.OntologyAnnotation) *[]models.Comment { return &o.Comments },
}

var studyFactors = &entity[models.Factor]{
	section: SectionStudyFactors,
	fields: concat(
		[]field[models.Factor]{text("Study Factor Name", func(f *models.Factor) *string { return &f.Name })},
		annotation("Study Factor Type", func(f *models.Factor) *models.OntologyAnnotation { return &f.Type }),
	),
	comments: func(f *models.Factor) *[]models.Comment { return &f.Comments },
}

var studyAssays = &entity[models.Assay]{
	section: SectionStudyAssays,
	fields: concat(
		[]field[models.Assay]{text("Study Assay File Name", func(a *models.Assay) *string { return &a.Filename })},
		annotation("Study Assay Measurement Type", func(a *models.Assay) *models.OntologyAnnotation { return &a.MeasurementType }),
		annotation("Study Assay Technology Type", func(a *models.Assay) *models.OntologyAnnotation { return &a.TechnologyType }),
		[]field[models.Assay]{text("Study Assay Technology Platform", func(a *models.Assay) *string { return &a.TechnologyPlatform })},
	),
	comments: func(a *models.Assay) *[]models.Comment { return &a.Comments },
}

// componentPart reads and writes one ';'-separated column of protocol components.
func componentPart(key string, part func(*models.Component) *string) field[models.Protocol] {
	return field[models.Protocol]{
		key: key,
		get: func(p *models.Protocol) string {
			parts := make([]string, len(p.Components))
			for i := range p.Components {
				parts[i] = *part(&p.Components[i])
			}
			return strings.Join(parts, ";")
		},
		set: func(p *models.Protocol, v string) {
			parts := models.SplitTerms(v)
			for len(p.Components) < len(parts) {
				p.Components = append(p.Components, models.Component{})
			}
			for i, s := range parts {
				*part(&p.Components[i]) = s
			}
		},
	}
}

var studyProtocols = &entity[models.Protocol]{
	section: SectionStudyProtocols,
	fields: concat(
		[]field[models.Protocol]{text("Study Protocol Name", func(p *models.Protocol) *string { return &p.Name })},
		annotation("Study Protocol Type", func(p *models.Protocol) *models.OntologyAnnotation { return &p.Type }),
		[]field[models.Protocol]{
			text("Study Protocol Description", func(p *models.Protocol) *string { return &p.Description }),
			text("Study Protocol URI", func(p *models.Protocol) *string { return &p.URI }),
			text("Study Protocol Version", func(p *models.Protocol) *string { return &p.Version }),
		},
		terms("Study Protocol Parameters Name", func(p *models.Protocol) *[]models.OntologyAnnotation { return &p.Parameters }),
		[]field[models.Protocol]{
			componentPart("Study Protocol Components Name", func(c *models.Component) *string { return &c.Name }),
			componentPart("Study Protocol Components Type", func(c *models.Component) *string { return &c.Type.Term }),
			componentPart("Study Protocol Components Type"+accessionSuffix, func(c *models.Component) *string { return &c.Type.Accession }),
			componentPart("Study Protocol Components Type"+sourceSuffix, func(c *models.Component) *string { return &c.Type.Source }),
		},
	),
	comments: func(p *models.Protocol) *[]models.Comment { return &p.Comments },
}

// sectionKeys lists the known keys of every section.
var sectionKeys = map[string]map[string]bool{
	SectionOntologySources:        ontologySources.keys(),
	SectionInvestigation:          investigationInfo.keys(),
	SectionInvestigationPubs:      investigationPubs.keys(),
	SectionInvestigationContacts:  investigationContacts.keys(),
	SectionStudy:                  studyInfo.keys(),
	SectionStudyDesignDescriptors: designDescriptors.keys(),
	SectionStudyPubs:              studyPubs.keys(),
	SectionStudyFactors:           studyFactors.keys(),
	SectionStudyAssays:            studyAssays.keys(),
	SectionStudyProtocols:         studyProtocols.keys(),
	SectionStudyContacts:          studyContacts.keys(),
}
