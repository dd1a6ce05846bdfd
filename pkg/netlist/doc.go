// Package netlist provides the connectivity model shared by every placer:
// movable gates, fixed pads, and the multi-terminal nets that join them.
//
// # Identity
//
// Gates, pads and nets carry dense 1-based ids. Each collection is an
// array-backed arena and the id to storage mapping is always
//
//	index = id - 1
//
// via [Index] and [ID]. No entity holds a pointer to another; relations are
// expressed as id lists and resolved through the owning collection.
//
// # Topology and Geometry
//
// A [Netlist] is built once by [New] and its topology (which gate sits on
// which net, which pad anchors which net) never changes afterwards. Only the
// geometry mutates during placement: gate positions, the moved flag used by
// the zero-force-target pass, and the force/velocity state used by the
// force simulation. Pads never move.
//
// Renderers and other observers read placement state through [Netlist.Geometry],
// which returns a deep copy so that drawing code can never disturb a run.
//
// # Example
//
//	nl, err := netlist.New(2,
//	    []netlist.GateSpec{
//	        {ID: 1, Connectivity: 2, Nets: []int{1, 2}},
//	        {ID: 2, Connectivity: 1, Nets: []int{1}},
//	    },
//	    []netlist.PadSpec{{ID: 1, Net: 2, X: 0, Y: 0}},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	nl.Gate(2).Pos = r2.Vec{X: 10, Y: 10}
package netlist
