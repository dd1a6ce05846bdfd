package netlist

import (
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Component is a connected component of the gate graph, where two gates are
// adjacent when they share a net. Pads do not join components.
type Component struct {
	Index    int   // position in the slice returned by Components
	Gates    []int // member gate ids, ascending
	Anchored bool  // at least one member shares a net with a pad
}

// Components partitions the gates into connected components. Components are
// ordered by their smallest gate id so the result is deterministic.
//
// Each net contributes a path over its gates rather than a full clique; the
// reachability relation is identical and the graph stays linear in the
// number of pins.
func (nl *Netlist) Components() []Component {
	if len(nl.gates) == 0 {
		return nil
	}
	g := simple.NewUndirectedGraph()
	for i := range nl.gates {
		g.AddNode(simple.Node(int64(ID(i))))
	}
	for _, n := range nl.nets {
		for k := 1; k < len(n.Gates); k++ {
			from, to := n.Gates[k-1], n.Gates[k]
			if from == to {
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(int64(from)), T: simple.Node(int64(to))})
		}
	}

	raw := topo.ConnectedComponents(g)
	comps := make([]Component, 0, len(raw))
	for _, members := range raw {
		ids := make([]int, len(members))
		anchored := false
		for i, n := range members {
			ids[i] = int(n.ID())
			anchored = anchored || nl.Anchored(ids[i])
		}
		slices.Sort(ids)
		comps = append(comps, Component{Gates: ids, Anchored: anchored})
	}
	slices.SortFunc(comps, func(a, b Component) int { return a.Gates[0] - b.Gates[0] })
	for i := range comps {
		comps[i].Index = i
	}
	return comps
}
