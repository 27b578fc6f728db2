package graph

import (
	"log/slog"
	"strings"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/header"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/tabular"
)

// Path is one source-to-sink walk through a graph.
type Path struct {
	Nodes []int
	Edges []int // Edges[k] links Nodes[k] to Nodes[k+1]
	// Open is the open edge that ends the path after its last node, or -1.
	Open int
}

// Paths enumerates every walk from a root (a node without incoming edges)
// to a sink, depth first. Roots are visited in arena order and out-edges in
// insertion order. An open edge ends a walk of its own.
func Paths(g *models.Graph) []Path {
	out := g.Outgoing()
	in := g.Incoming()

	var paths []Path
	emit := func(nodes, edges []int, open int) {
		paths = append(paths, Path{
			Nodes: append([]int(nil), nodes...),
			Edges: append([]int(nil), edges...),
			Open:  open,
		})
	}
	var walk func(n int, nodes, edges []int)
	walk = func(n int, nodes, edges []int) {
		nodes = append(nodes, n)
		if len(out[n]) == 0 {
			emit(nodes, edges, -1)
			return
		}
		for _, ei := range out[n] {
			if g.Edges[ei].Open() {
				emit(nodes, edges, ei)
				continue
			}
			walk(g.Edges[ei].Output, nodes, append(edges, ei))
		}
	}
	for i := range g.Nodes {
		if len(in[i]) == 0 {
			walk(i, nil, nil)
		}
	}
	return paths
}

// materialOrder is the column order of material node kinds.
var materialOrder = []string{
	models.HeaderSource,
	models.HeaderSample,
	models.HeaderExtract,
	models.HeaderLabeledExtract,
}

// NodeColumns returns the node column labels of g in table order: material
// kinds first, then data-file labels in order of first appearance along
// the edges. Columns named only by open edges are included.
func NodeColumns(g *models.Graph) []string {
	present := make(map[string]bool)
	for _, n := range g.Nodes {
		present[n.Label] = true
	}
	for _, e := range g.Edges {
		if e.Open() && e.OutputLabel != "" {
			present[e.OutputLabel] = true
		}
	}
	var labels []string
	for _, l := range materialOrder {
		if present[l] {
			labels = append(labels, l)
		}
	}
	seen := make(map[string]bool)
	addLabel := func(label string) {
		if _, material := models.MaterialKind(label); !material && label != "" && !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	for _, e := range g.Edges {
		addLabel(g.Nodes[e.Input].Label)
		if e.Open() {
			addLabel(e.OutputLabel)
		} else {
			addLabel(g.Nodes[e.Output].Label)
		}
	}
	for i := range g.Nodes {
		addLabel(g.Nodes[i].Label)
	}
	return labels
}

// row context handed to cell renderers
type pathRow struct {
	nodes []*models.Node // by node column; nil when absent
	// edges[k] enters node column k; edges[len(nodes)] is an open edge
	// past the last column. nil when absent.
	edges []*models.Edge
}

type column struct {
	header string
	cell   func(r *pathRow) string
}

// valueShape records which modifier columns a value column needs.
type valueShape struct {
	annotated bool
	unit      bool
}

func (v *valueShape) observe(a models.Attribute) {
	v.annotated = v.annotated || a.Value.Annotated
	v.unit = v.unit || a.Unit != nil
}

// orderedShapes keeps value column labels in first-appearance order.
type orderedShapes struct {
	labels []string
	shapes map[string]*valueShape
}

func (o *orderedShapes) observe(a models.Attribute) {
	if o.shapes == nil {
		o.shapes = make(map[string]*valueShape)
	}
	s, ok := o.shapes[a.Label]
	if !ok {
		s = &valueShape{}
		o.shapes[a.Label] = s
		o.labels = append(o.labels, a.Label)
	}
	s.observe(a)
}

// valueColumns renders a value column followed by its modifier columns.
func valueColumns(head string, shape *valueShape, get func(r *pathRow) *models.Attribute) []column {
	text := func(f func(a *models.Attribute) string) func(r *pathRow) string {
		return func(r *pathRow) string {
			if a := get(r); a != nil {
				return f(a)
			}
			return ""
		}
	}
	cols := []column{{head, text(func(a *models.Attribute) string { return a.Value.Term })}}
	switch {
	case shape.unit:
		unit := func(f func(u *models.OntologyAnnotation) string) func(r *pathRow) string {
			return text(func(a *models.Attribute) string {
				if a.Unit == nil {
					return ""
				}
				return f(a.Unit)
			})
		}
		cols = append(cols,
			column{"Unit", unit(func(u *models.OntologyAnnotation) string { return u.Term })},
			column{"Term Source REF", unit(func(u *models.OntologyAnnotation) string { return u.Source })},
			column{"Term Accession Number", unit(func(u *models.OntologyAnnotation) string { return u.Accession })},
		)
	case shape.annotated:
		cols = append(cols,
			column{"Term Source REF", text(func(a *models.Attribute) string { return a.Value.Source })},
			column{"Term Accession Number", text(func(a *models.Attribute) string { return a.Value.Accession })},
		)
	}
	return cols
}

func findAttr(attrs []models.Attribute, kind models.AttrKind, label string) *models.Attribute {
	for i := range attrs {
		if attrs[i].Kind == kind && attrs[i].Label == label {
			return &attrs[i]
		}
	}
	return nil
}

func characteristicHeader(label string) string {
	if label == header.LabelHeader {
		return header.LabelHeader
	}
	return "Characteristics[" + label + "]"
}

// Tabulate lays g out as a table with one row per path. Column order is:
// for each node column, the protocol steps entering it (Protocol REF,
// parameter values, Performer, Date, comments, process name), then the
// node column, its characteristics in first-appearance order, Material
// Type, factor values and comments. Steps of open edges that run past the
// last node column come last. Rows that would not read back as the same
// graph are reported as KindDisconnectedRow.
func Tabulate(g *models.Graph, logger *slog.Logger) (*tabular.Table, error) {
	const op isaerr.Op = "graph.Tabulate"
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	labels := NodeColumns(g)
	slotOf := make(map[string]int, len(labels))
	for i, l := range labels {
		slotOf[l] = i
	}

	paths := Paths(g)
	rows := make([]*pathRow, 0, len(paths))
	for _, p := range paths {
		r := &pathRow{nodes: make([]*models.Node, len(labels)), edges: make([]*models.Edge, len(labels)+1)}
		first := slotOf[g.Nodes[p.Nodes[0]].Label]
		for k, ni := range p.Nodes {
			n := &g.Nodes[ni]
			slot := slotOf[n.Label]
			if slot != first+k || (k == 0 && slot != 0) {
				return nil, isaerr.Errorf(op, isaerr.KindDisconnectedRow, isaerr.Pos{Path: g.Filename},
					"path through %s %q does not fill node columns contiguously", n.Label, n.Name)
			}
			r.nodes[slot] = n
			if k > 0 {
				r.edges[slot] = &g.Edges[p.Edges[k-1]]
			}
		}
		if p.Open >= 0 {
			e := &g.Edges[p.Open]
			next := first + len(p.Nodes)
			if slot, ok := slotOf[e.OutputLabel]; ok && slot != next {
				n := &g.Nodes[e.Input]
				return nil, isaerr.Errorf(op, isaerr.KindDisconnectedRow, isaerr.Pos{Path: g.Filename},
					"open edge after %s %q skips node columns before %q", n.Label, n.Name, e.OutputLabel)
			}
			r.edges[next] = e
		}
		rows = append(rows, r)
	}

	var cols []column
	for slot, label := range labels {
		if slot > 0 {
			cols = append(cols, stepColumns(slot, rows)...)
		}
		cols = append(cols, nodeColumns(slot, label, rows)...)
	}
	cols = append(cols, stepColumns(len(labels), rows)...)

	t := &tabular.Table{Path: g.Filename, Header: make([]string, len(cols))}
	for i, c := range cols {
		t.Header[i] = c.header
	}
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = c.cell(r)
		}
		key := strings.Join(cells, "\t")
		if seen[key] {
			logger.Warn("dropping duplicate row", "path", g.Filename)
			continue
		}
		seen[key] = true
		t.Rows = append(t.Rows, tabular.Row{Line: len(t.Rows) + 2, Cells: cells})
	}
	return t, nil
}

func nodeColumns(slot int, label string, rows []*pathRow) []column {
	var chars, factors orderedShapes
	var materialType *valueShape
	var comments []string
	seenComment := make(map[string]bool)
	seenNode := make(map[*models.Node]bool)

	for _, r := range rows {
		n := r.nodes[slot]
		if n == nil || seenNode[n] {
			continue
		}
		seenNode[n] = true
		for _, a := range n.Attributes {
			switch a.Kind {
			case models.AttrCharacteristic:
				chars.observe(a)
			case models.AttrMaterialType:
				if materialType == nil {
					materialType = &valueShape{}
				}
				materialType.observe(a)
			case models.AttrFactorValue:
				factors.observe(a)
			case models.AttrComment:
				if !seenComment[a.Label] {
					seenComment[a.Label] = true
					comments = append(comments, a.Label)
				}
			}
		}
	}

	attrOf := func(kind models.AttrKind, label string) func(r *pathRow) *models.Attribute {
		return func(r *pathRow) *models.Attribute {
			if n := r.nodes[slot]; n != nil {
				return findAttr(n.Attributes, kind, label)
			}
			return nil
		}
	}

	cols := []column{{label, func(r *pathRow) string {
		if n := r.nodes[slot]; n != nil {
			return n.Name
		}
		return ""
	}}}
	for _, l := range chars.labels {
		cols = append(cols, valueColumns(characteristicHeader(l), chars.shapes[l], attrOf(models.AttrCharacteristic, l))...)
	}
	if materialType != nil {
		cols = append(cols, valueColumns(models.MaterialTypeLabel, materialType, attrOf(models.AttrMaterialType, models.MaterialTypeLabel))...)
	}
	for _, l := range factors.labels {
		cols = append(cols, valueColumns("Factor Value["+l+"]", factors.shapes[l], attrOf(models.AttrFactorValue, l))...)
	}
	for _, l := range comments {
		get := attrOf(models.AttrComment, l)
		cols = append(cols, column{"Comment[" + l + "]", func(r *pathRow) string {
			if a := get(r); a != nil {
				return a.Value.Term
			}
			return ""
		}})
	}
	return cols
}

func stepColumns(slot int, rows []*pathRow) []column {
	depth := 0
	for _, r := range rows {
		if e := r.edges[slot]; e != nil && len(e.Steps) > depth {
			depth = len(e.Steps)
		}
	}
	var cols []column
	for j := 0; j < depth; j++ {
		cols = append(cols, stepBlock(slot, j, rows)...)
	}
	return cols
}

// stepBlock renders the j-th protocol step of the edges entering a node column.
func stepBlock(slot, j int, rows []*pathRow) []column {
	var (
		params              orderedShapes
		comments            []string
		seenComment         = make(map[string]bool)
		hasProtocol         bool
		nameHeader          string
		performer, dateSeen bool
	)
	stepOf := func(r *pathRow) *models.Step {
		if e := r.edges[slot]; e != nil && j < len(e.Steps) {
			return &e.Steps[j]
		}
		return nil
	}
	for _, r := range rows {
		st := stepOf(r)
		if st == nil {
			continue
		}
		hasProtocol = hasProtocol || st.Protocol != ""
		if nameHeader == "" {
			nameHeader = st.NameHeader
		}
		for _, p := range st.Parameters {
			params.observe(p)
		}
		performer = performer || st.Performer != nil
		dateSeen = dateSeen || st.Date != nil
		for _, c := range st.Comments {
			if !seenComment[c.Name] {
				seenComment[c.Name] = true
				comments = append(comments, c.Name)
			}
		}
	}
	if nameHeader == "" {
		hasProtocol = true
	}

	text := func(f func(st *models.Step) string) func(r *pathRow) string {
		return func(r *pathRow) string {
			if st := stepOf(r); st != nil {
				return f(st)
			}
			return ""
		}
	}
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	var attrs []column
	for _, l := range params.labels {
		label := l
		attrs = append(attrs, valueColumns("Parameter Value["+label+"]", params.shapes[label], func(r *pathRow) *models.Attribute {
			if st := stepOf(r); st != nil {
				return findAttr(st.Parameters, models.AttrParameterValue, label)
			}
			return nil
		})...)
	}
	if performer {
		attrs = append(attrs, column{"Performer", text(func(st *models.Step) string { return deref(st.Performer) })})
	}
	if dateSeen {
		attrs = append(attrs, column{"Date", text(func(st *models.Step) string { return deref(st.Date) })})
	}
	for _, l := range comments {
		name := l
		attrs = append(attrs, column{"Comment[" + name + "]", text(func(st *models.Step) string {
			for _, c := range st.Comments {
				if c.Name == name {
					return c.Value
				}
			}
			return ""
		})})
	}

	nameCol := column{nameHeader, text(func(st *models.Step) string { return st.Name })}
	var cols []column
	if hasProtocol {
		cols = append(cols, column{"Protocol REF", text(func(st *models.Step) string { return st.Protocol })})
		cols = append(cols, attrs...)
		if nameHeader != "" {
			cols = append(cols, nameCol)
		}
		return cols
	}
	cols = append(cols, nameCol)
	return append(cols, attrs...)
}
