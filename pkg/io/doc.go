// Package io reads netlists and reads and writes placements.
//
// # Netlist Text Format
//
// A netlist file is a whitespace-separated list of numbers, one record per
// line:
//
//	G N              gate count, net count
//	id k n1 ... nk   one line per gate: id, connectivity, incident nets
//	P                pad count
//	id net x y       one line per pad: id, anchored net, fixed position
//
// Numbers may be written as decimals ("3.0"); ids and counts are truncated to
// integers, pad coordinates keep their fractional part. Blank lines are
// skipped. Nets are numbered 1..N and their membership follows declaration
// order. A file that ends after the gate section has no pads.
//
// Use [ReadNetlist] to parse from any io.Reader, or [ImportNetlist] to parse
// a file:
//
//	nl, err := io.ImportNetlist("benchmarks/toy1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Malformed records are reported as INVALID_FORMAT errors naming the line.
// Records that parse but describe an inconsistent netlist are reported by
// [netlist.New] as structural errors.
//
// # Placement JSON
//
// [Placement] is the exchange format for computed coordinates:
//
//	{
//	  "hpwl": 123.4,
//	  "gates": [{"id": 1, "x": 10, "y": 20}],
//	  "pads":  [{"id": 1, "net": 3, "x": 0, "y": 0}]
//	}
//
// [WriteJSON] and [ExportJSON] write the current placement of a netlist;
// [ReadJSON] and [ImportJSON] apply a stored placement to a netlist with the
// same gates, so a run can resume from an earlier result.
//
// # Listings
//
// [WriteListing] prints "id x y" lines ordered by position, x major, which
// is the conventional way to compare placements by eye.
package io
