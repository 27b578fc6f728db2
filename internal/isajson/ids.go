package isajson

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/nishad/isakit/internal/models"
)

func esc(s string) string { return url.PathEscape(s) }

func squeeze(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), ""))
}

func nodeID(n *models.Node) string {
	switch n.Kind {
	case models.NodeSource:
		return "#source/" + esc(n.Name)
	case models.NodeSample:
		return "#sample/" + esc(n.Name)
	case models.NodeExtract:
		return "#material/extract-" + esc(n.Name)
	case models.NodeLabeledExtract:
		return "#material/labeledextract-" + esc(n.Name)
	}
	return "#data/" + squeeze(n.Label) + "-" + esc(n.Name)
}

func processID(filename string, n int) string {
	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	return "#process/" + esc(stem) + "/" + strconv.Itoa(n)
}

func protocolID(name string) string { return "#protocol/" + esc(name) }

func parameterID(protocol, name string) string {
	return "#parameter/" + esc(protocol) + "/" + esc(name)
}

func factorID(name string) string { return "#factor/" + esc(name) }

func categoryID(label string) string { return "#characteristic_category/" + esc(label) }

// lastSegment recovers the name encoded in the final segment of an @id.
func lastSegment(id string) string {
	seg := id
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		seg = id[i+1:]
	}
	if s, err := url.PathUnescape(seg); err == nil {
		return s
	}
	return seg
}

// unitRegistry collects the unit categories of one study or assay.
type unitRegistry struct {
	list  []OntologyAnnotation
	byKey map[string]string
	taken map[string]bool
}

func newUnitRegistry() *unitRegistry {
	return &unitRegistry{byKey: make(map[string]string), taken: make(map[string]bool)}
}

func (u *unitRegistry) ref(o *models.OntologyAnnotation) *Ref {
	if o == nil {
		return nil
	}
	key := o.Term + "\x1f" + o.Source + "\x1f" + o.Accession
	if id, ok := u.byKey[key]; ok {
		return &Ref{ID: id}
	}
	base := "#unit/" + esc(o.Term)
	id := base
	for n := 2; u.taken[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	u.taken[id] = true
	u.byKey[key] = id
	oa := annotationOf(*o)
	oa.ID = id
	u.list = append(u.list, oa)
	return &Ref{ID: id}
}

// categoryRegistry collects characteristic categories in first-use order.
type categoryRegistry struct {
	list []CharacteristicCategory
	seen map[string]bool
}

func (c *categoryRegistry) ref(label string) Ref {
	id := categoryID(label)
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if !c.seen[id] {
		c.seen[id] = true
		c.list = append(c.list, CharacteristicCategory{
			ID:                 id,
			CharacteristicType: OntologyAnnotation{AnnotationValue: Literal(label)},
		})
	}
	return Ref{ID: id}
}
