package graph

import (
	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/models"
)

// Acyclic returns a KindCycle error when some node of g is reachable from itself.
func Acyclic(g *models.Graph) error {
	indegree := make([]int, len(g.Nodes))
	for _, e := range g.Edges {
		if !e.Open() {
			indegree[e.Output]++
		}
	}
	out := g.Outgoing()

	queue := make([]int, 0, len(g.Nodes))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	seen := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		seen++
		for _, ei := range out[n] {
			o := g.Edges[ei].Output
			if o < 0 {
				continue
			}
			indegree[o]--
			if indegree[o] == 0 {
				queue = append(queue, o)
			}
		}
	}
	if seen == len(g.Nodes) {
		return nil
	}
	for i, d := range indegree {
		if d > 0 {
			n := g.Nodes[i]
			return isaerr.Errorf("graph.Acyclic", isaerr.KindCycle,
				isaerr.Pos{Path: g.Filename, Row: n.Row},
				"%s %q is part of a cycle", n.Label, n.Name)
		}
	}
	return nil
}

// TopologicalOrder returns node indices so that every edge points forward.
// Ties keep arena order. g must be acyclic.
func TopologicalOrder(g *models.Graph) []int {
	indegree := make([]int, len(g.Nodes))
	for _, e := range g.Edges {
		if !e.Open() {
			indegree[e.Output]++
		}
	}
	out := g.Outgoing()
	order := make([]int, 0, len(g.Nodes))
	ready := make([]bool, len(g.Nodes))
	for i, d := range indegree {
		ready[i] = d == 0
	}
	for len(order) < len(g.Nodes) {
		next := -1
		for i := range g.Nodes {
			if ready[i] {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		ready[next] = false
		order = append(order, next)
		for _, ei := range out[next] {
			o := g.Edges[ei].Output
			if o < 0 {
				continue
			}
			indegree[o]--
			if indegree[o] == 0 {
				ready[o] = true
			}
		}
	}
	return order
}
