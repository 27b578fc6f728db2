package isajson

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"strings"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/graph"
	"github.com/nishad/isakit/internal/models"
)

// Decode reads one ISA-JSON document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, isaerr.E(isaerr.Op("isajson.Decode"), isaerr.KindMalformedDocument, err)
	}
	return &doc, nil
}

// Unmarshal decodes data as an ISA-JSON document.
func Unmarshal(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

// Ingest rebuilds the investigation described by doc, including the study
// and assay graphs. Every graph is checked for cycles.
func Ingest(doc *Document, opts Options) (*models.Investigation, error) {
	const op = isaerr.Op("isajson.Ingest")
	logger := opts.logger()

	inv := &models.Investigation{
		Filename:          doc.Filename,
		Identifier:        doc.Identifier,
		Title:             doc.Title,
		Description:       doc.Description,
		SubmissionDate:    doc.SubmissionDate,
		PublicReleaseDate: doc.PublicReleaseDate,
		Publications:      publicationModels(doc.Publications),
		Contacts:          personModels(doc.People),
		Comments:          commentModels(doc.Comments),
	}
	for _, s := range doc.OntologySourceReferences {
		inv.OntologySources = append(inv.OntologySources, models.OntologySource{
			Name:        s.Name,
			File:        s.File,
			Version:     s.Version,
			Description: s.Description,
			Comments:    commentModels(s.Comments),
		})
	}
	for i := range doc.Studies {
		s, err := ingestStudy(&doc.Studies[i], logger)
		if err != nil {
			return nil, isaerr.E(op, err)
		}
		inv.Studies = append(inv.Studies, s)
	}
	return inv, nil
}

func publicationModels(ps []Publication) []models.Publication {
	var out []models.Publication
	for _, p := range ps {
		out = append(out, models.Publication{
			PubMedID:   p.PubMedID,
			DOI:        p.DOI,
			AuthorList: p.AuthorList,
			Title:      p.Title,
			Status:     p.Status.model(),
			Comments:   commentModels(p.Comments),
		})
	}
	return out
}

func annotationModels(list []OntologyAnnotation) []models.OntologyAnnotation {
	var out []models.OntologyAnnotation
	for _, o := range list {
		out = append(out, o.model())
	}
	return out
}

func personModels(ps []Person) []models.Person {
	var out []models.Person
	for _, p := range ps {
		out = append(out, models.Person{
			LastName:    p.LastName,
			FirstName:   p.FirstName,
			MidInitials: p.MidInitials,
			Email:       p.Email,
			Phone:       p.Phone,
			Fax:         p.Fax,
			Address:     p.Address,
			Affiliation: p.Affiliation,
			Roles:       annotationModels(p.Roles),
			Comments:    commentModels(p.Comments),
		})
	}
	return out
}

// processHeader picks the process-name column for a protocol type.
func processHeader(protocolType string) string {
	t := strings.ToLower(protocolType)
	switch {
	case strings.Contains(t, "mass spectrometry"):
		return "MS Assay Name"
	case strings.Contains(t, "nmr spectroscopy"):
		return "NMR Assay Name"
	case strings.Contains(t, "nucleic acid hybridization"):
		return "Hybridization Assay Name"
	case strings.Contains(t, "data transformation"):
		return "Data Transformation Name"
	case strings.Contains(t, "normalization"):
		return "Normalization Name"
	case strings.Contains(t, "image acquisition"), strings.Contains(t, "scan"):
		return "Scan Name"
	}
	return "Assay Name"
}

// studyContext resolves the study-level names processes and values refer to.
type studyContext struct {
	logger     *slog.Logger
	protocols  map[string]*models.Protocol
	parameters map[string]string
	factors    map[string]string
	samples    map[string]*Sample
}

func ingestStudy(js *Study, logger *slog.Logger) (*models.Study, error) {
	s := &models.Study{
		Identifier:        js.Identifier,
		Title:             js.Title,
		Description:       js.Description,
		SubmissionDate:    js.SubmissionDate,
		PublicReleaseDate: js.PublicReleaseDate,
		Filename:          js.Filename,
		DesignDescriptors: annotationModels(js.StudyDesignDescriptors),
		Publications:      publicationModels(js.Publications),
		Contacts:          personModels(js.People),
		Comments:          commentModels(js.Comments),
	}
	ctx := &studyContext{
		logger:     logger,
		protocols:  make(map[string]*models.Protocol),
		parameters: make(map[string]string),
		factors:    make(map[string]string),
		samples:    make(map[string]*Sample),
	}
	for _, p := range js.Protocols {
		mp := models.Protocol{
			Name:        p.Name,
			Type:        p.ProtocolType.model(),
			Description: p.Description,
			URI:         p.URI,
			Version:     p.Version,
			Comments:    commentModels(p.Comments),
		}
		for _, param := range p.Parameters {
			mp.Parameters = append(mp.Parameters, param.ParameterName.model())
			if param.ID != "" {
				ctx.parameters[param.ID] = string(param.ParameterName.AnnotationValue)
			}
		}
		for _, c := range p.Components {
			mp.Components = append(mp.Components, models.Component{Name: c.ComponentName, Type: c.ComponentType.model()})
		}
		s.Protocols = append(s.Protocols, mp)
	}
	for i, p := range js.Protocols {
		ctx.protocols[p.ID] = &s.Protocols[i]
	}
	for _, f := range js.Factors {
		s.Factors = append(s.Factors, models.Factor{
			Name:     f.FactorName,
			Type:     f.FactorType.model(),
			Comments: commentModels(f.Comments),
		})
		ctx.factors[f.ID] = f.FactorName
	}
	for i := range js.Materials.Samples {
		ctx.samples[js.Materials.Samples[i].ID] = &js.Materials.Samples[i]
	}

	g, err := ctx.graph(&graphDoc{
		filename:   js.Filename,
		sources:    js.Materials.Sources,
		samples:    js.Materials.Samples,
		others:     js.Materials.OtherMaterials,
		processes:  js.ProcessSequence,
		categories: js.CharacteristicCategories,
		units:      js.UnitCategories,
	})
	if err != nil {
		return nil, err
	}
	s.Graph = g

	for i := range js.Assays {
		ja := &js.Assays[i]
		ag, err := ctx.graph(&graphDoc{
			filename:   ja.Filename,
			samples:    ja.Materials.Samples,
			others:     ja.Materials.OtherMaterials,
			data:       ja.DataFiles,
			processes:  ja.ProcessSequence,
			categories: ja.CharacteristicCategories,
			units:      ja.UnitCategories,
			assay:      true,
		})
		if err != nil {
			return nil, err
		}
		s.Assays = append(s.Assays, &models.Assay{
			Filename:           ja.Filename,
			MeasurementType:    ja.MeasurementType.model(),
			TechnologyType:     ja.TechnologyType.model(),
			TechnologyPlatform: ja.TechnologyPlatform,
			Comments:           commentModels(ja.Comments),
			Graph:              ag,
		})
	}
	return s, nil
}

// graphDoc is the part of a study or assay object that describes one graph.
type graphDoc struct {
	filename   string
	sources    []Source
	samples    []Sample
	others     []Material
	data       []DataFile
	processes  []Process
	categories []CharacteristicCategory
	units      []OntologyAnnotation
	assay      bool
}

// graphIngest holds the lookup tables used while rebuilding one graph.
type graphIngest struct {
	*studyContext
	doc        *graphDoc
	g          *models.Graph
	ids        map[string]int
	categories map[string]string
	units      map[string]models.OntologyAnnotation
}

func (ctx *studyContext) graph(doc *graphDoc) (*models.Graph, error) {
	gi := &graphIngest{
		studyContext: ctx,
		doc:          doc,
		g:            models.NewGraph(doc.filename),
		ids:          make(map[string]int),
		categories:   make(map[string]string),
		units:        make(map[string]models.OntologyAnnotation),
	}
	for _, c := range doc.categories {
		gi.categories[c.ID] = string(c.CharacteristicType.AnnotationValue)
	}
	for _, u := range doc.units {
		gi.units[u.ID] = u.model()
	}

	for _, s := range doc.sources {
		if err := gi.add(s.ID, models.Node{
			Kind: models.NodeSource, Label: models.HeaderSource, Name: s.Name,
			Attributes: gi.attributes(s.Characteristics, nil, s.Comments),
		}); err != nil {
			return nil, err
		}
	}
	for _, s := range doc.samples {
		if err := gi.add(s.ID, models.Node{
			Kind: models.NodeSample, Label: models.HeaderSample, Name: s.Name,
			Attributes: gi.attributes(s.Characteristics, s.FactorValues, s.Comments),
		}); err != nil {
			return nil, err
		}
	}
	for _, m := range doc.others {
		kind, label, err := materialKind(m.Type)
		if err != nil {
			return nil, isaerr.E(isaerr.Pos{Path: doc.filename}, err)
		}
		if err := gi.add(m.ID, models.Node{
			Kind: kind, Label: label, Name: m.Name,
			Attributes: gi.attributes(m.Characteristics, nil, m.Comments),
		}); err != nil {
			return nil, err
		}
	}
	for _, d := range doc.data {
		label := d.Type
		if label == "" {
			label = "Raw Data File"
			ctx.logger.Warn("data file without type", "file", doc.filename, "name", d.Name, "type", label)
		}
		if err := gi.add(d.ID, models.Node{
			Kind: models.NodeDataFile, Label: label, Name: d.Name,
			Attributes: gi.attributes(nil, nil, d.Comments),
		}); err != nil {
			return nil, err
		}
	}

	if err := gi.processes(); err != nil {
		return nil, err
	}
	if err := graph.Acyclic(gi.g); err != nil {
		return nil, err
	}
	return gi.g, nil
}

func materialKind(t string) (models.NodeKind, string, error) {
	switch strings.TrimSuffix(t, " Name") {
	case "Extract":
		return models.NodeExtract, models.HeaderExtract, nil
	case "Labeled Extract":
		return models.NodeLabeledExtract, models.HeaderLabeledExtract, nil
	}
	return 0, "", isaerr.Errorf("isajson.Ingest", isaerr.KindMalformedDocument, isaerr.Pos{},
		"unknown material type %q", t)
}

// add records the node behind a material or data file object. Objects with
// the same kind and name are one node and must carry the same attributes.
func (gi *graphIngest) add(id string, n models.Node) error {
	if i, ok := gi.g.Lookup(n.Key()); ok {
		if !models.SameAttributes(gi.g.Nodes[i].Attributes, n.Attributes) {
			return isaerr.Errorf("isajson.Ingest", isaerr.KindInconsistentNode, isaerr.Pos{Path: gi.doc.filename},
				"%s %q is listed more than once with different attributes", n.Label, n.Name)
		}
		gi.ids[id] = i
		return nil
	}
	gi.ids[id] = gi.g.AddNode(n)
	return nil
}

// resolve maps an input or output reference to a node. Study samples that an
// assay uses without listing them are added without attributes.
func (gi *graphIngest) resolve(id string) (int, error) {
	if i, ok := gi.ids[id]; ok {
		return i, nil
	}
	if gi.doc.assay {
		if s, ok := gi.samples[id]; ok {
			key := models.NodeKey{Label: models.HeaderSample, Name: s.Name}
			if i, ok := gi.g.Lookup(key); ok {
				gi.ids[id] = i
				return i, nil
			}
			gi.ids[id] = gi.g.AddNode(models.Node{Kind: models.NodeSample, Label: models.HeaderSample, Name: s.Name})
			return gi.ids[id], nil
		}
	}
	return 0, isaerr.Errorf("isajson.Ingest", isaerr.KindMalformedDocument, isaerr.Pos{Path: gi.doc.filename},
		"process refers to unknown material or data file %q", id)
}

func (gi *graphIngest) unit(ref *Ref) *models.OntologyAnnotation {
	if ref == nil {
		return nil
	}
	u, ok := gi.units[ref.ID]
	if !ok {
		u = models.OntologyAnnotation{Term: lastSegment(ref.ID)}
	}
	return &u
}

func (gi *graphIngest) attributes(chars, factors []AttributeValue, comments []Comment) []models.Attribute {
	var out []models.Attribute
	for _, c := range chars {
		label, ok := gi.categories[c.Category.ID]
		if !ok {
			label = lastSegment(c.Category.ID)
		}
		kind := models.AttrCharacteristic
		if label == models.MaterialTypeLabel {
			kind = models.AttrMaterialType
		}
		out = append(out, models.Attribute{Kind: kind, Label: label, Value: c.Value.Value, Unit: gi.unit(c.Unit)})
	}
	for _, f := range factors {
		label, ok := gi.factors[f.Category.ID]
		if !ok {
			label = lastSegment(f.Category.ID)
		}
		out = append(out, models.Attribute{Kind: models.AttrFactorValue, Label: label, Value: f.Value.Value, Unit: gi.unit(f.Unit)})
	}
	for _, c := range comments {
		out = append(out, models.Attribute{Kind: models.AttrComment, Label: c.Name, Value: models.Text(c.Value)})
	}
	return out
}

func (gi *graphIngest) step(p *Process) models.Step {
	st := models.Step{
		Performer: p.Performer,
		Date:      p.Date,
		Comments:  commentModels(p.Comments),
	}
	var protocolType string
	if p.ExecutesProtocol != nil {
		if proto, ok := gi.protocols[p.ExecutesProtocol.ID]; ok {
			st.Protocol = proto.Name
			protocolType = proto.Type.Term
		} else {
			st.Protocol = lastSegment(p.ExecutesProtocol.ID)
		}
	}
	if p.Name != nil {
		st.Name = *p.Name
		st.NameHeader = processHeader(protocolType)
	}
	for _, pv := range p.ParameterValues {
		label, ok := gi.parameters[pv.Category.ID]
		if !ok {
			label = lastSegment(pv.Category.ID)
		}
		st.Parameters = append(st.Parameters, models.Attribute{
			Kind: models.AttrParameterValue, Label: label, Value: pv.Value.Value, Unit: gi.unit(pv.Unit),
		})
	}
	return st
}

func blank(st *models.Step) bool {
	return st.Protocol == "" && st.NameHeader == "" && len(st.Parameters) == 0 &&
		st.Performer == nil && st.Date == nil && len(st.Comments) == 0
}

// processes turns every process chain into edges. A chain starts at a process
// with inputs and follows nextProcess until a process with outputs; a chain
// that ends without outputs becomes open edges.
func (gi *graphIngest) processes() error {
	byID := make(map[string]*Process, len(gi.doc.processes))
	for i := range gi.doc.processes {
		byID[gi.doc.processes[i].ID] = &gi.doc.processes[i]
	}
	malformed := func(format string, args ...any) error {
		return isaerr.Errorf("isajson.Ingest", isaerr.KindMalformedDocument, isaerr.Pos{Path: gi.doc.filename}, format, args...)
	}

	used := make(map[string]bool)
	for i := range gi.doc.processes {
		head := &gi.doc.processes[i]
		if len(head.Inputs) == 0 {
			continue
		}
		var steps []models.Step
		p := head
		for {
			if used[p.ID] && p != head {
				return malformed("process %q is part of more than one chain", p.ID)
			}
			used[p.ID] = true
			steps = append(steps, gi.step(p))
			if len(p.Outputs) > 0 || p.NextProcess == nil {
				break
			}
			next, ok := byID[p.NextProcess.ID]
			if !ok {
				return malformed("process %q refers to unknown next process %q", p.ID, p.NextProcess.ID)
			}
			if len(steps) > len(gi.doc.processes) {
				return malformed("process chain starting at %q does not end", head.ID)
			}
			p = next
		}
		if len(steps) == 1 && blank(&steps[0]) {
			steps = nil
		}
		if len(p.Outputs) == 0 && len(steps) == 0 {
			gi.logger.Warn("process chain has no outputs and no content, ignoring", "file", gi.doc.filename, "process", head.ID)
			continue
		}

		inputs := make([]int, 0, len(head.Inputs))
		for _, ref := range head.Inputs {
			n, err := gi.resolve(ref.ID)
			if err != nil {
				return err
			}
			inputs = append(inputs, n)
		}
		if len(p.Outputs) == 0 {
			for _, in := range inputs {
				gi.g.AddEdge(models.Edge{Input: in, Output: models.NoNode, Steps: slices.Clone(steps)})
			}
			continue
		}
		for _, ref := range p.Outputs {
			out, err := gi.resolve(ref.ID)
			if err != nil {
				return err
			}
			for _, in := range inputs {
				gi.g.AddEdge(models.Edge{Input: in, Output: out, Steps: slices.Clone(steps)})
			}
		}
	}

	for _, p := range gi.doc.processes {
		if !used[p.ID] {
			gi.logger.Warn("process not reachable from any input, ignoring", "file", gi.doc.filename, "process", p.ID)
		}
	}
	return nil
}
