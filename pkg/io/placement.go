package io

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/objective"
)

// Placement is the JSON form of a computed placement.
type Placement struct {
	HPWL  float64        `json:"hpwl"`
	Gates []GatePosition `json:"gates"`
	Pads  []PadPosition  `json:"pads,omitempty"`
}

// GatePosition is one placed gate.
type GatePosition struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PadPosition is one fixed pad.
type PadPosition struct {
	ID  int     `json:"id"`
	Net int     `json:"net"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// NewPlacement captures the current placement of nl in id order.
func NewPlacement(nl *netlist.Netlist) Placement {
	p := Placement{
		HPWL:  objective.HPWL(nl),
		Gates: make([]GatePosition, nl.GateCount()),
		Pads:  make([]PadPosition, nl.PadCount()),
	}
	for i, g := range nl.Gates() {
		p.Gates[i] = GatePosition{ID: g.ID, X: g.Pos.X, Y: g.Pos.Y}
	}
	for i, pad := range nl.Pads() {
		p.Pads[i] = PadPosition{ID: pad.ID, Net: pad.Net, X: pad.Pos.X, Y: pad.Pos.Y}
	}
	return p
}

// Apply writes the gate positions of p into nl. Gates absent from p keep
// their position. Pads are fixed and are not read back. Nothing is written
// when any entry is invalid.
func (p Placement) Apply(nl *netlist.Netlist) error {
	pos := nl.Positions()
	for _, g := range p.Gates {
		if nl.Gate(g.ID) == nil {
			return perrors.New(perrors.ErrCodeInvalidInput, "placement names unknown gate %d", g.ID)
		}
		v := r2.Vec{X: g.X, Y: g.Y}
		if !netlist.Finite(v) {
			return perrors.New(perrors.ErrCodeInvalidInput, "placement of gate %d is not finite", g.ID)
		}
		pos[netlist.Index(g.ID)] = v
	}
	return nl.SetPositions(pos)
}

// WriteJSON encodes the current placement of nl as indented JSON.
func WriteJSON(nl *netlist.Netlist, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewPlacement(nl)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes the current placement of nl to a JSON file at path.
func ExportJSON(nl *netlist.Netlist, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(nl, f)
}

// ReadJSON decodes a placement from r and applies it to nl.
// ReadJSON does not close r.
func ReadJSON(r io.Reader, nl *netlist.Netlist) error {
	p, err := DecodePlacement(r)
	if err != nil {
		return err
	}
	return p.Apply(nl)
}

// DecodePlacement decodes a placement from r without applying it.
func DecodePlacement(r io.Reader) (Placement, error) {
	var p Placement
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Placement{}, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "decode placement")
	}
	return p, nil
}

// LoadPlacement reads a placement file at path.
func LoadPlacement(path string) (Placement, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Placement{}, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "placement %s", path)
		}
		return Placement{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	p, err := DecodePlacement(f)
	if err != nil {
		return Placement{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ImportJSON reads a placement file at path and applies it to nl.
func ImportJSON(path string, nl *netlist.Netlist) error {
	p, err := LoadPlacement(path)
	if err != nil {
		return err
	}
	if err := p.Apply(nl); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// WriteListing writes one "id x y" line per gate ordered by
// [netlist.SortKey], ties broken by id.
func WriteListing(nl *netlist.Netlist, w io.Writer) error {
	gates := slices.Clone(nl.Gates())
	slices.SortStableFunc(gates, func(a, b netlist.Gate) int {
		return cmp.Compare(netlist.SortKey(a), netlist.SortKey(b))
	})
	bw := bufio.NewWriter(w)
	for _, g := range gates {
		fmt.Fprintf(bw, "%d %s %s\n", g.ID, formatFloat(g.Pos.X), formatFloat(g.Pos.Y))
	}
	return bw.Flush()
}
