// Package graph materialises the provenance graph of a study or assay table
// and turns graphs back into tables.
package graph

import (
	"log/slog"
	"strconv"
	"strings"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/header"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/tabular"
)

// Scope resolves the names a table references. models.StudyScope
// implements it.
type Scope interface {
	Protocol(name string) (*models.Protocol, bool)
	HasFactor(name string) bool
	HasOntologySource(name string) bool
}

// TableKind restricts the node columns a table may hold.
type TableKind uint8

const (
	AnyTable   TableKind = iota
	StudyTable           // no data-file columns
	AssayTable           // no Source Name column
)

// Options configures a build.
type Options struct {
	// Scope enables reference checks when non-nil.
	Scope  Scope
	Table  TableKind
	Logger *slog.Logger
}

// valuePlan lists the modifier columns of one value column; -1 means absent.
type valuePlan struct {
	unit, termSource, termAccession int
	unitSource, unitAccession       int
}

type builder struct {
	layout  *header.Layout
	opts    Options
	logger  *slog.Logger
	graph   *models.Graph
	nodes   []int
	owned   [][]int
	plans   map[int]*valuePlan
	edgeIdx map[string]int
}

// BuildTable classifies the header of t and builds its graph.
func BuildTable(t *tabular.Table, opts Options) (*models.Graph, error) {
	layout, err := header.Classify(t.Header, t.Path)
	if err != nil {
		return nil, err
	}
	return Build(layout, t.Rows, opts)
}

// Build materialises the graph of one table from its classified header and
// body rows. Nodes are de-duplicated by (column label, name); a repeated
// node must carry the same attributes. Consecutive non-empty node cells of a
// row are linked by an edge carrying the protocol steps found between them.
// No partial graph is returned on error.
func Build(layout *header.Layout, rows []tabular.Row, opts Options) (*models.Graph, error) {
	const op isaerr.Op = "graph.Build"

	b := &builder{
		layout:  layout,
		opts:    opts,
		logger:  opts.Logger,
		graph:   models.NewGraph(layout.Path),
		nodes:   layout.Nodes(),
		owned:   make([][]int, len(layout.Slots)),
		plans:   make(map[int]*valuePlan),
		edgeIdx: make(map[string]int),
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	if len(b.nodes) == 0 {
		return nil, isaerr.E(op, isaerr.KindUnknownHeader, isaerr.Pos{Path: layout.Path, Row: 1}, "table has no node column")
	}
	if err := checkColumns(layout, opts.Table); err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	if err := b.plan(); err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	for _, row := range rows {
		if row.Empty() {
			continue
		}
		if err := b.addRow(row); err != nil {
			return nil, isaerr.Wrap(op, err)
		}
	}
	if err := Acyclic(b.graph); err != nil {
		return nil, isaerr.Wrap(op, err)
	}
	return b.graph, nil
}

// checkColumns rejects node columns that the study or assay document
// model has no place for.
func checkColumns(layout *header.Layout, table TableKind) error {
	for _, i := range layout.Nodes() {
		s := layout.Slots[i]
		var where string
		switch {
		case table == StudyTable && s.Kind == header.DataFile:
			where = "a study"
		case table == AssayTable && s.Label == models.HeaderSource:
			where = "an assay"
		default:
			continue
		}
		return isaerr.Errorf("", isaerr.KindUnknownHeader, isaerr.Pos{Path: layout.Path, Row: 1, Col: i + 1},
			"%q is not allowed in %s table", s.Raw, where)
	}
	return nil
}

// plan indexes the ownership map and checks header-level references.
func (b *builder) plan() error {
	slots := b.layout.Slots
	for i := range slots {
		o := b.layout.OwnerOf(i)
		if o < 0 {
			continue
		}
		if !slots[i].Kind.IsModifier() {
			b.owned[o] = append(b.owned[o], i)
			continue
		}
		if slots[o].Kind == header.Unit {
			p := b.planFor(b.layout.OwnerOf(o))
			switch slots[i].Kind {
			case header.TermSourceRef:
				p.unitSource = i
			case header.TermAccession:
				p.unitAccession = i
			}
			continue
		}
		p := b.planFor(o)
		switch slots[i].Kind {
		case header.Unit:
			p.unit = i
		case header.TermSourceRef:
			p.termSource = i
		case header.TermAccession:
			p.termAccession = i
		}
	}

	if b.opts.Scope == nil {
		return nil
	}
	for _, s := range slots {
		if s.Kind == header.FactorValue && !b.opts.Scope.HasFactor(s.Label) {
			return isaerr.Errorf("", isaerr.KindUnresolvedReference,
				isaerr.Pos{Path: b.layout.Path, Row: 1, Col: s.Index + 1},
				"factor %q is not declared in the study", s.Label)
		}
	}
	return nil
}

func (b *builder) planFor(slot int) *valuePlan {
	p, ok := b.plans[slot]
	if !ok {
		p = &valuePlan{unit: -1, termSource: -1, termAccession: -1, unitSource: -1, unitAccession: -1}
		b.plans[slot] = p
	}
	return p
}

func (b *builder) pos(row tabular.Row, slot int) isaerr.Pos {
	return isaerr.Pos{Path: b.layout.Path, Row: row.Line, Col: slot + 1}
}

func (b *builder) addRow(row tabular.Row) error {
	var present []int
	hole := -1
	for _, slot := range b.nodes {
		if strings.TrimSpace(row.Cells[slot]) == "" {
			if hole < 0 {
				hole = slot
			}
			continue
		}
		if hole >= 0 {
			return isaerr.Errorf("", isaerr.KindDisconnectedRow, b.pos(row, slot),
				"%q is set but %q before it is empty", b.layout.Slots[slot].Raw, b.layout.Slots[hole].Raw)
		}
		present = append(present, slot)
	}
	if len(present) == 0 {
		return isaerr.Errorf("", isaerr.KindDisconnectedRow, b.pos(row, b.nodes[0]), "row has no node")
	}

	idx := make([]int, len(present))
	for k, slot := range present {
		i, err := b.node(row, slot)
		if err != nil {
			return err
		}
		idx[k] = i
	}

	for k := 1; k < len(present); k++ {
		steps, err := b.steps(row, present[k-1], present[k])
		if err != nil {
			return err
		}
		b.edge(models.Edge{Input: idx[k-1], Output: idx[k], Steps: steps, Row: row.Line})
	}

	// Steps after the last node end in an open edge: the empty node column
	// that follows them, or the end of the row.
	end, label := len(b.layout.Slots), ""
	if hole >= 0 {
		end, label = hole, b.layout.Slots[hole].Label
		after, err := b.steps(row, hole, len(b.layout.Slots))
		if err != nil {
			return err
		}
		if len(after) > 0 {
			return isaerr.Errorf("", isaerr.KindDisconnectedRow, b.pos(row, hole),
				"protocol cells follow the empty %q column", b.layout.Slots[hole].Raw)
		}
	}
	steps, err := b.steps(row, present[len(present)-1], end)
	if err != nil {
		return err
	}
	if len(steps) > 0 {
		b.edge(models.Edge{
			Input: idx[len(idx)-1], Output: models.NoNode, OutputLabel: label,
			Steps: steps, Row: row.Line,
		})
	}
	return nil
}

func (b *builder) node(row tabular.Row, slot int) (int, error) {
	s := b.layout.Slots[slot]
	name := strings.TrimSpace(row.Cells[slot])

	n := models.Node{Kind: models.NodeDataFile, Label: s.Label, Name: name, Row: row.Line}
	if s.Kind == header.Material {
		n.Kind, _ = models.MaterialKind(s.Label)
	}

	for _, j := range b.owned[slot] {
		a := b.layout.Slots[j]
		switch a.Kind {
		case header.Characteristic, header.MaterialType, header.FactorValue:
			attr, err := b.value(row, j)
			if err != nil {
				return 0, err
			}
			n.Attributes = append(n.Attributes, attr)
		case header.Comment:
			n.Attributes = append(n.Attributes, models.Attribute{
				Kind: models.AttrComment, Label: a.Label, Value: models.Text(row.Cells[j]),
			})
		}
	}

	if i, ok := b.graph.Lookup(n.Key()); ok {
		prev := &b.graph.Nodes[i]
		if !models.SameAttributes(prev.Attributes, n.Attributes) {
			pos := b.pos(row, slot)
			pos.Other = prev.Row
			return 0, isaerr.Errorf("", isaerr.KindInconsistentNode, pos,
				"%s %q has different attributes on rows %d and %d", s.Label, name, prev.Row, row.Line)
		}
		return i, nil
	}
	return b.graph.AddNode(n), nil
}

// value reads a value column and its modifiers into an attribute.
func (b *builder) value(row tabular.Row, slot int) (models.Attribute, error) {
	s := b.layout.Slots[slot]
	attr := models.Attribute{Label: s.Label, Value: models.Text(row.Cells[slot])}
	switch s.Kind {
	case header.Characteristic:
		attr.Kind = models.AttrCharacteristic
	case header.MaterialType:
		attr.Kind = models.AttrMaterialType
		attr.Label = models.MaterialTypeLabel
	case header.FactorValue:
		attr.Kind = models.AttrFactorValue
	case header.ParameterValue:
		attr.Kind = models.AttrParameterValue
	}

	p, ok := b.plans[slot]
	if !ok {
		return attr, nil
	}
	if p.termSource >= 0 || p.termAccession >= 0 {
		attr.Value.Annotated = true
		if p.termSource >= 0 {
			src := strings.TrimSpace(row.Cells[p.termSource])
			if err := b.checkSource(row, p.termSource, src); err != nil {
				return attr, err
			}
			attr.Value.Source = src
		}
		if p.termAccession >= 0 {
			attr.Value.Accession = strings.TrimSpace(row.Cells[p.termAccession])
		}
	}
	if p.unit >= 0 && strings.TrimSpace(row.Cells[p.unit]) != "" {
		u := &models.OntologyAnnotation{Term: strings.TrimSpace(row.Cells[p.unit])}
		if p.unitSource >= 0 {
			u.Source = strings.TrimSpace(row.Cells[p.unitSource])
			if err := b.checkSource(row, p.unitSource, u.Source); err != nil {
				return attr, err
			}
		}
		if p.unitAccession >= 0 {
			u.Accession = strings.TrimSpace(row.Cells[p.unitAccession])
		}
		attr.Unit = u
	}
	return attr, nil
}

func (b *builder) checkSource(row tabular.Row, slot int, name string) error {
	if name == "" || b.opts.Scope == nil || b.opts.Scope.HasOntologySource(name) {
		return nil
	}
	return isaerr.Errorf("", isaerr.KindUnresolvedReference, b.pos(row, slot),
		"ontology source %q is not declared in the investigation", name)
}

// steps collects the protocol steps between two node columns of a row.
func (b *builder) steps(row tabular.Row, from, to int) ([]models.Step, error) {
	var steps []models.Step
	cur := -1
	for j := from + 1; j < to; j++ {
		s := b.layout.Slots[j]
		if s.Kind != header.ProtocolRef && s.Kind != header.ProcessName {
			continue
		}
		cell := strings.TrimSpace(row.Cells[j])
		blank := cell == "" && b.ownedBlank(row, j)

		switch s.Kind {
		case header.ProtocolRef:
			if blank {
				cur = -1
				continue
			}
			if cell != "" && b.opts.Scope != nil {
				if _, ok := b.opts.Scope.Protocol(cell); !ok {
					return nil, isaerr.Errorf("", isaerr.KindUnresolvedReference, b.pos(row, j),
						"protocol %q is not declared in the study", cell)
				}
			}
			steps = append(steps, models.Step{Protocol: cell})
			cur = len(steps) - 1

		case header.ProcessName:
			switch {
			case cur >= 0 && steps[cur].NameHeader == "":
			case blank:
				continue
			default:
				steps = append(steps, models.Step{})
				cur = len(steps) - 1
			}
			steps[cur].Name = cell
			steps[cur].NameHeader = s.Label
		}

		if err := b.fill(row, j, &steps[cur]); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

func (b *builder) ownedBlank(row tabular.Row, anchor int) bool {
	for _, j := range b.owned[anchor] {
		if strings.TrimSpace(row.Cells[j]) != "" {
			return false
		}
	}
	return true
}

// fill copies the attributes owned by a protocol or process-name column onto a step.
func (b *builder) fill(row tabular.Row, anchor int, step *models.Step) error {
	for _, j := range b.owned[anchor] {
		s := b.layout.Slots[j]
		cell := row.Cells[j]
		switch s.Kind {
		case header.ParameterValue:
			if err := b.checkParameter(row, j, step.Protocol, s.Label); err != nil {
				return err
			}
			attr, err := b.value(row, j)
			if err != nil {
				return err
			}
			step.Parameters = append(step.Parameters, attr)
		case header.Performer:
			v := cell
			step.Performer = &v
		case header.Date:
			v := cell
			step.Date = &v
		case header.Comment:
			step.Comments = append(step.Comments, models.Comment{Name: s.Label, Value: cell})
		}
	}
	return nil
}

func (b *builder) checkParameter(row tabular.Row, slot int, protocol, param string) error {
	if b.opts.Scope == nil {
		return nil
	}
	if protocol == "" {
		return isaerr.Errorf("", isaerr.KindUnresolvedReference, b.pos(row, slot),
			"parameter %q has no protocol", param)
	}
	p, ok := b.opts.Scope.Protocol(protocol)
	if !ok || !p.HasParameter(param) {
		return isaerr.Errorf("", isaerr.KindUnresolvedReference, b.pos(row, slot),
			"parameter %q is not declared by protocol %q", param, protocol)
	}
	return nil
}

// edge adds e unless an edge with identical content already exists.
func (b *builder) edge(e models.Edge) {
	key := EdgeKey(&e)
	if _, ok := b.edgeIdx[key]; ok {
		return
	}
	b.edgeIdx[key] = b.graph.AddEdge(e)
}

// EdgeKey returns a key identifying an edge by its full content.
func EdgeKey(e *models.Edge) string {
	var sb strings.Builder
	field := func(s string) {
		sb.WriteString(s)
		sb.WriteByte('\x1f')
	}
	optional := func(p *string) {
		if p == nil {
			field("\x00")
			return
		}
		field(*p)
	}
	field(strconv.Itoa(e.Input))
	field(strconv.Itoa(e.Output))
	field(e.OutputLabel)
	for _, st := range e.Steps {
		sb.WriteByte('\x1e')
		field(st.Protocol)
		field(st.Name)
		field(st.NameHeader)
		for _, p := range st.Parameters {
			field(p.Label)
			field(p.Value.Term)
			field(p.Value.Source)
			field(p.Value.Accession)
			field(strconv.FormatBool(p.Value.Annotated))
			if p.Unit != nil {
				field(p.Unit.Term + "|" + p.Unit.Source + "|" + p.Unit.Accession)
			}
		}
		optional(st.Performer)
		optional(st.Date)
		for _, c := range st.Comments {
			field(c.Name)
			field(c.Value)
		}
	}
	return sb.String()
}
