package isajson

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/models"
)

// Options configures emission and ingestion.
type Options struct {
	Logger *slog.Logger
	// Indent is the per-level indentation of Marshal; two spaces if empty.
	Indent string
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Emit builds the ISA-JSON document of inv. Collections keep the order of
// the investigation file and of the tables; empty collections are emitted
// as empty lists. A study graph holding data files or an assay graph holding
// sources has no document form and fails with KindUnknownHeader.
func Emit(inv *models.Investigation, opts Options) (*Document, error) {
	doc := &Document{
		Filename:                 inv.Filename,
		Identifier:               inv.Identifier,
		Title:                    inv.Title,
		Description:              inv.Description,
		SubmissionDate:           inv.SubmissionDate,
		PublicReleaseDate:        inv.PublicReleaseDate,
		OntologySourceReferences: make([]OntologySourceReference, 0, len(inv.OntologySources)),
		Publications:             publicationsOf(inv.Publications),
		People:                   peopleOf(inv.Contacts),
		Studies:                  make([]Study, 0, len(inv.Studies)),
		Comments:                 commentsOf(inv.Comments),
	}
	for _, s := range inv.OntologySources {
		doc.OntologySourceReferences = append(doc.OntologySourceReferences, OntologySourceReference{
			Name:        s.Name,
			File:        s.File,
			Version:     s.Version,
			Description: s.Description,
			Comments:    commentsOf(s.Comments),
		})
	}
	for _, s := range inv.Studies {
		study, err := emitStudy(s)
		if err != nil {
			return nil, isaerr.E(isaerr.Op("isajson.Emit"), err)
		}
		doc.Studies = append(doc.Studies, study)
	}
	return doc, nil
}

// Encode writes doc as indented JSON without HTML escaping.
func Encode(w io.Writer, doc *Document) error {
	return EncodeIndent(w, doc, "  ")
}

// EncodeIndent is Encode with a chosen indentation.
func EncodeIndent(w io.Writer, doc *Document, indent string) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	return enc.Encode(doc)
}

// Marshal emits and encodes inv.
func Marshal(inv *models.Investigation, opts Options) ([]byte, error) {
	indent := opts.Indent
	if indent == "" {
		indent = "  "
	}
	doc, err := Emit(inv, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := EncodeIndent(&buf, doc, indent); err != nil {
		return nil, isaerr.E(isaerr.Op("isajson.Marshal"), isaerr.KindMalformedDocument, err)
	}
	return buf.Bytes(), nil
}

func publicationsOf(ps []models.Publication) []Publication {
	out := make([]Publication, len(ps))
	for i, p := range ps {
		out[i] = Publication{
			PubMedID:   p.PubMedID,
			DOI:        p.DOI,
			AuthorList: p.AuthorList,
			Title:      p.Title,
			Status:     annotationOf(p.Status),
			Comments:   commentsOf(p.Comments),
		}
	}
	return out
}

func annotationsOf(list []models.OntologyAnnotation) []OntologyAnnotation {
	out := make([]OntologyAnnotation, len(list))
	for i, o := range list {
		out[i] = annotationOf(o)
	}
	return out
}

func peopleOf(ps []models.Person) []Person {
	out := make([]Person, len(ps))
	for i, p := range ps {
		out[i] = Person{
			LastName:    p.LastName,
			FirstName:   p.FirstName,
			MidInitials: p.MidInitials,
			Email:       p.Email,
			Phone:       p.Phone,
			Fax:         p.Fax,
			Address:     p.Address,
			Affiliation: p.Affiliation,
			Roles:       annotationsOf(p.Roles),
			Comments:    commentsOf(p.Comments),
		}
	}
	return out
}

func protocolsOf(ps []models.Protocol) []Protocol {
	out := make([]Protocol, len(ps))
	for i, p := range ps {
		params := make([]ProtocolParameter, len(p.Parameters))
		for j, param := range p.Parameters {
			params[j] = ProtocolParameter{ID: parameterID(p.Name, param.Term), ParameterName: annotationOf(param)}
		}
		components := make([]Component, len(p.Components))
		for j, c := range p.Components {
			components[j] = Component{ComponentName: c.Name, ComponentType: annotationOf(c.Type)}
		}
		out[i] = Protocol{
			ID:           protocolID(p.Name),
			Name:         p.Name,
			ProtocolType: annotationOf(p.Type),
			Description:  p.Description,
			URI:          p.URI,
			Version:      p.Version,
			Parameters:   params,
			Components:   components,
			Comments:     commentsOf(p.Comments),
		}
	}
	return out
}

func factorsOf(fs []models.Factor) []Factor {
	out := make([]Factor, len(fs))
	for i, f := range fs {
		out[i] = Factor{
			ID:         factorID(f.Name),
			FactorName: f.Name,
			FactorType: annotationOf(f.Type),
			Comments:   commentsOf(f.Comments),
		}
	}
	return out
}

func emitStudy(s *models.Study) (Study, error) {
	out := Study{
		Filename:               s.Filename,
		Identifier:             s.Identifier,
		Title:                  s.Title,
		Description:            s.Description,
		SubmissionDate:         s.SubmissionDate,
		PublicReleaseDate:      s.PublicReleaseDate,
		Publications:           publicationsOf(s.Publications),
		People:                 peopleOf(s.Contacts),
		StudyDesignDescriptors: annotationsOf(s.DesignDescriptors),
		Protocols:              protocolsOf(s.Protocols),
		Assays:                 make([]Assay, 0, len(s.Assays)),
		Factors:                factorsOf(s.Factors),
		Comments:               commentsOf(s.Comments),
	}

	g := emitGraph(s.Graph, s.Filename)
	out.Materials = StudyMaterials{Sources: g.sources, Samples: g.samples, OtherMaterials: g.others}
	out.ProcessSequence = g.processes
	out.CharacteristicCategories = g.categories.list
	out.UnitCategories = g.units.list
	if len(g.data) > 0 {
		return Study{}, isaerr.Errorf("", isaerr.KindUnknownHeader, isaerr.Pos{Path: s.Filename},
			"study table holds %d data files, which study materials cannot list", len(g.data))
	}

	for _, a := range s.Assays {
		ag := emitGraph(a.Graph, a.Filename)
		if len(ag.sources) > 0 {
			return Study{}, isaerr.Errorf("", isaerr.KindUnknownHeader, isaerr.Pos{Path: a.Filename},
				"assay table holds %d sources, which assay materials cannot list", len(ag.sources))
		}
		out.Assays = append(out.Assays, Assay{
			Filename:                 a.Filename,
			MeasurementType:          annotationOf(a.MeasurementType),
			TechnologyType:           annotationOf(a.TechnologyType),
			TechnologyPlatform:       a.TechnologyPlatform,
			DataFiles:                ag.data,
			Materials:                AssayMaterials{Samples: ag.samples, OtherMaterials: ag.others},
			CharacteristicCategories: ag.categories.list,
			UnitCategories:           ag.units.list,
			ProcessSequence:          ag.processes,
			Comments:                 commentsOf(a.Comments),
		})
	}
	return out, nil
}

// emittedGraph holds the JSON objects derived from one table graph.
type emittedGraph struct {
	sources    []Source
	samples    []Sample
	others     []Material
	data       []DataFile
	processes  []Process
	categories *categoryRegistry
	units      *unitRegistry
}

func emitGraph(g *models.Graph, filename string) *emittedGraph {
	out := &emittedGraph{
		sources:    []Source{},
		samples:    []Sample{},
		others:     []Material{},
		data:       []DataFile{},
		processes:  []Process{},
		categories: &categoryRegistry{list: []CharacteristicCategory{}},
		units:      newUnitRegistry(),
	}
	out.units.list = []OntologyAnnotation{}
	if g == nil {
		return out
	}

	in := g.Incoming()
	derivesFrom := func(i int) []Ref {
		refs := []Ref{}
		seen := make(map[int]bool)
		for _, ei := range in[i] {
			src := g.Edges[ei].Input
			if !seen[src] {
				seen[src] = true
				refs = append(refs, Ref{ID: nodeID(&g.Nodes[src])})
			}
		}
		return refs
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		chars, factors, comments := out.attributes(n)
		switch n.Kind {
		case models.NodeSource:
			out.sources = append(out.sources, Source{ID: nodeID(n), Name: n.Name, Characteristics: chars, Comments: comments})
		case models.NodeSample:
			out.samples = append(out.samples, Sample{
				ID: nodeID(n), Name: n.Name, Characteristics: chars, FactorValues: factors,
				DerivesFrom: derivesFrom(i), Comments: comments,
			})
		case models.NodeExtract, models.NodeLabeledExtract:
			out.others = append(out.others, Material{
				ID: nodeID(n), Name: n.Name, Type: n.Label, Characteristics: chars,
				DerivesFrom: derivesFrom(i), Comments: comments,
			})
		case models.NodeDataFile:
			out.data = append(out.data, DataFile{ID: nodeID(n), Name: n.Name, Type: n.Label, Comments: comments})
		}
	}

	seq := 0
	for ei := range g.Edges {
		e := &g.Edges[ei]
		steps := e.Steps
		if len(steps) == 0 {
			steps = []models.Step{{}}
		}
		for k := range steps {
			seq++
			p := out.process(&steps[k], processID(filename, seq))
			if k == 0 {
				p.Inputs = []Ref{{ID: nodeID(&g.Nodes[e.Input])}}
			} else {
				p.PreviousProcess = &Ref{ID: processID(filename, seq-1)}
			}
			if k == len(steps)-1 {
				if !e.Open() {
					p.Outputs = []Ref{{ID: nodeID(&g.Nodes[e.Output])}}
				}
			} else {
				p.NextProcess = &Ref{ID: processID(filename, seq+1)}
			}
			out.processes = append(out.processes, p)
		}
	}
	return out
}

func (out *emittedGraph) value(a *models.Attribute, category Ref) AttributeValue {
	return AttributeValue{Category: category, Value: Value{a.Value}, Unit: out.units.ref(a.Unit)}
}

func (out *emittedGraph) attributes(n *models.Node) (chars, factors []AttributeValue, comments []Comment) {
	chars, factors, comments = []AttributeValue{}, []AttributeValue{}, []Comment{}
	for i := range n.Attributes {
		a := &n.Attributes[i]
		switch a.Kind {
		case models.AttrCharacteristic, models.AttrMaterialType:
			chars = append(chars, out.value(a, out.categories.ref(a.Label)))
		case models.AttrFactorValue:
			factors = append(factors, out.value(a, Ref{ID: factorID(a.Label)}))
		case models.AttrComment:
			comments = append(comments, Comment{Name: a.Label, Value: a.Value.Term})
		}
	}
	return chars, factors, comments
}

func (out *emittedGraph) process(st *models.Step, id string) Process {
	p := Process{
		ID:              id,
		ParameterValues: make([]AttributeValue, 0, len(st.Parameters)),
		Performer:       st.Performer,
		Date:            st.Date,
		Inputs:          []Ref{},
		Outputs:         []Ref{},
		Comments:        commentsOf(st.Comments),
	}
	if st.Protocol != "" {
		p.ExecutesProtocol = &Ref{ID: protocolID(st.Protocol)}
	}
	if st.NameHeader != "" {
		name := st.Name
		p.Name = &name
	}
	for i := range st.Parameters {
		a := &st.Parameters[i]
		p.ParameterValues = append(p.ParameterValues, out.value(a, Ref{ID: parameterID(st.Protocol, a.Label)}))
	}
	return p
}
