package models

import (
	"sort"
	"strings"
)

// NodeKind is the kind of a provenance graph vertex.
type NodeKind uint8

const (
	NodeSource NodeKind = iota
	NodeSample
	NodeExtract
	NodeLabeledExtract
	NodeDataFile
)

// Column headers of the material node kinds.
const (
	HeaderSource         = "Source Name"
	HeaderSample         = "Sample Name"
	HeaderExtract        = "Extract Name"
	HeaderLabeledExtract = "Labeled Extract Name"
)

func (k NodeKind) String() string {
	switch k {
	case NodeSource:
		return "source"
	case NodeSample:
		return "sample"
	case NodeExtract:
		return "extract"
	case NodeLabeledExtract:
		return "labeled-extract"
	case NodeDataFile:
		return "data-file"
	default:
		return "unknown"
	}
}

// MaterialKind maps a material column header to its node kind.
func MaterialKind(header string) (NodeKind, bool) {
	switch header {
	case HeaderSource:
		return NodeSource, true
	case HeaderSample:
		return NodeSample, true
	case HeaderExtract:
		return NodeExtract, true
	case HeaderLabeledExtract:
		return NodeLabeledExtract, true
	}
	return 0, false
}

// AttrKind is the kind of an attribute attached to a node or process step.
type AttrKind uint8

const (
	AttrCharacteristic AttrKind = iota
	AttrMaterialType
	AttrFactorValue
	AttrParameterValue
	AttrComment
)

func (k AttrKind) String() string {
	switch k {
	case AttrCharacteristic:
		return "characteristic"
	case AttrMaterialType:
		return "material-type"
	case AttrFactorValue:
		return "factor-value"
	case AttrParameterValue:
		return "parameter-value"
	case AttrComment:
		return "comment"
	default:
		return "unknown"
	}
}

// Label of the characteristic category that carries Material Type values.
const MaterialTypeLabel = "Material Type"

// Value is an attribute value. Annotated values came from a column followed
// by Term Source REF / Term Accession Number and are emitted as ontology
// annotations even when those cells are empty.
type Value struct {
	Term      string
	Source    string
	Accession string
	Annotated bool
}

// Text returns a plain value.
func Text(s string) Value { return Value{Term: s} }

func (v Value) normalized() string {
	if acc := strings.TrimSpace(v.Accession); acc != "" {
		return "@" + strings.TrimSpace(v.Source) + "|" + acc
	}
	return strings.TrimSpace(v.Term) + "|" + strings.TrimSpace(v.Source)
}

// Attribute is a named value attached to a node or a process step.
type Attribute struct {
	Kind  AttrKind
	Label string
	Value Value
	Unit  *OntologyAnnotation
}

// Normalized returns a comparison key that ignores surrounding whitespace and
// compares ontology terms by (source, accession) when an accession is present.
func (a Attribute) Normalized() string {
	var b strings.Builder
	b.WriteString(a.Kind.String())
	b.WriteByte('\x1f')
	b.WriteString(strings.TrimSpace(a.Label))
	b.WriteByte('\x1f')
	b.WriteString(a.Value.normalized())
	if a.Unit != nil {
		b.WriteByte('\x1f')
		b.WriteString(Value{Term: a.Unit.Term, Source: a.Unit.Source, Accession: a.Unit.Accession}.normalized())
	}
	return b.String()
}

// SameAttributes reports whether two attribute lists are equal as sets after
// normalisation.
func SameAttributes(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	ka := make([]string, len(a))
	kb := make([]string, len(b))
	for i := range a {
		ka[i] = a[i].Normalized()
		kb[i] = b[i].Normalized()
	}
	sort.Strings(ka)
	sort.Strings(kb)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

// NodeKey identifies a node within one table. Label is the column header,
// which distinguishes data-file kinds from each other.
type NodeKey struct {
	Label string
	Name  string
}

// Node is a vertex of the provenance graph.
type Node struct {
	Kind       NodeKind
	Label      string
	Name       string
	Attributes []Attribute
	// Row is the 1-based row that first defined the node; zero when the node
	// was not read from a table.
	Row int
}

// Key returns the identity of the node within its table.
func (n *Node) Key() NodeKey { return NodeKey{Label: n.Label, Name: n.Name} }

// AttributesOf returns the node attributes of one kind in order.
func (n *Node) AttributesOf(kind AttrKind) []Attribute {
	var out []Attribute
	for _, a := range n.Attributes {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Step is one protocol execution inside a process edge.
type Step struct {
	Protocol string
	// Name is the value of a process-name column such as Assay Name and
	// NameHeader that column's header.
	Name       string
	NameHeader string
	Parameters []Attribute
	Performer  *string
	Date       *string
	Comments   []Comment
}

// NoNode is the Output of an edge whose steps produced no recorded node.
const NoNode = -1

// Edge is a process edge linking two nodes through zero or more steps.
// An edge with Output NoNode ends in an empty node cell; OutputLabel names
// that column when it is known.
type Edge struct {
	Input       int
	Output      int
	OutputLabel string
	Steps       []Step
	Row         int
}

// Open reports whether the edge has no output node.
func (e *Edge) Open() bool { return e.Output < 0 }

// Protocol returns the most recent protocol reference of the edge, or "".
func (e *Edge) Protocol() string {
	for i := len(e.Steps) - 1; i >= 0; i-- {
		if e.Steps[i].Protocol != "" {
			return e.Steps[i].Protocol
		}
	}
	return ""
}

// Graph is the provenance graph of one study or assay table. Nodes live in
// an arena and edges refer to them by index.
type Graph struct {
	Filename string
	Nodes    []Node
	Edges    []Edge

	index map[NodeKey]int
}

// NewGraph returns an empty graph for the named table.
func NewGraph(filename string) *Graph {
	return &Graph{Filename: filename, index: make(map[NodeKey]int)}
}

// Lookup returns the arena index of the node with the given key.
func (g *Graph) Lookup(key NodeKey) (int, bool) {
	if g.index == nil {
		return 0, false
	}
	i, ok := g.index[key]
	return i, ok
}

// AddNode appends a node to the arena and returns its index. Callers check
// Lookup first; adding a duplicate key replaces the index entry.
func (g *Graph) AddNode(n Node) int {
	if g.index == nil {
		g.index = make(map[NodeKey]int)
	}
	g.Nodes = append(g.Nodes, n)
	i := len(g.Nodes) - 1
	g.index[n.Key()] = i
	return i
}

// AddEdge appends an edge and returns its index.
func (g *Graph) AddEdge(e Edge) int {
	g.Edges = append(g.Edges, e)
	return len(g.Edges) - 1
}

// Outgoing returns, for each node, the indices of edges leaving it in
// insertion order, open edges included.
func (g *Graph) Outgoing() [][]int {
	out := make([][]int, len(g.Nodes))
	for i, e := range g.Edges {
		out[e.Input] = append(out[e.Input], i)
	}
	return out
}

// Incoming returns, for each node, the indices of edges entering it in
// insertion order. Open edges enter no node.
func (g *Graph) Incoming() [][]int {
	in := make([][]int, len(g.Nodes))
	for i, e := range g.Edges {
		if e.Open() {
			continue
		}
		in[e.Output] = append(in[e.Output], i)
	}
	return in
}

// NodesOf returns the indices of nodes of one kind in arena order.
func (g *Graph) NodesOf(kind NodeKind) []int {
	var out []int
	for i := range g.Nodes {
		if g.Nodes[i].Kind == kind {
			out = append(out, i)
		}
	}
	return out
}
