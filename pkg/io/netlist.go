package io

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	perrors "github.com/matzehuels/netplace/pkg/errors"
	"github.com/matzehuels/netplace/pkg/netlist"
)

// ReadNetlist parses the netlist text format from r.
//
// ReadNetlist does not close r. Syntax errors carry ErrCodeInvalidFormat and
// the 1-based line number; topology errors come from [netlist.New].
func ReadNetlist(r io.Reader) (*netlist.Netlist, error) {
	s := &scanner{sc: bufio.NewScanner(r)}
	s.sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	header, err := s.record("header", 2)
	if err != nil {
		return nil, err
	}
	gateCount, err := s.integer(header[0], "gate count")
	if err != nil {
		return nil, err
	}
	netCount, err := s.integer(header[1], "net count")
	if err != nil {
		return nil, err
	}
	if gateCount < 0 || netCount < 0 {
		return nil, s.errorf("counts must not be negative")
	}
	if gateCount > netlist.MaxCount || netCount > netlist.MaxCount {
		return nil, s.errorf("counts %d %d exceed the limit of %d", gateCount, netCount, netlist.MaxCount)
	}

	// Declared counts are untrusted; slices grow with the records read.
	var gates []netlist.GateSpec
	for range gateCount {
		rec, err := s.record("gate", 2)
		if err != nil {
			return nil, err
		}
		var g netlist.GateSpec
		if g.ID, err = s.integer(rec[0], "gate id"); err != nil {
			return nil, err
		}
		if g.Connectivity, err = s.integer(rec[1], "connectivity"); err != nil {
			return nil, err
		}
		if g.Connectivity < 0 || len(rec)-2 < g.Connectivity {
			return nil, s.errorf("gate %d declares %d nets but lists %d", g.ID, g.Connectivity, len(rec)-2)
		}
		g.Nets = make([]int, g.Connectivity)
		for k := range g.Nets {
			if g.Nets[k], err = s.integer(rec[2+k], "net id"); err != nil {
				return nil, err
			}
		}
		gates = append(gates, g)
	}

	var pads []netlist.PadSpec
	rec, err := s.record("pad count", 1)
	switch {
	case err == io.EOF:
	case err != nil:
		return nil, err
	default:
		padCount, err := s.integer(rec[0], "pad count")
		if err != nil {
			return nil, err
		}
		if padCount < 0 || padCount > netlist.MaxCount {
			return nil, s.errorf("pad count %d out of range [0, %d]", padCount, netlist.MaxCount)
		}
		for range padCount {
			rec, err := s.record("pad", 4)
			if err != nil {
				return nil, err
			}
			var p netlist.PadSpec
			if p.ID, err = s.integer(rec[0], "pad id"); err != nil {
				return nil, err
			}
			if p.Net, err = s.integer(rec[1], "pad net"); err != nil {
				return nil, err
			}
			if p.X, err = s.number(rec[2], "pad x"); err != nil {
				return nil, err
			}
			if p.Y, err = s.number(rec[3], "pad y"); err != nil {
				return nil, err
			}
			pads = append(pads, p)
		}
	}

	return netlist.New(netCount, gates, pads)
}

// ImportNetlist reads a netlist file at path.
func ImportNetlist(path string) (*netlist.Netlist, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "netlist %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	nl, err := ReadNetlist(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nl, nil
}

// WriteNetlist writes nl in the text format accepted by [ReadNetlist].
func WriteNetlist(nl *netlist.Netlist, w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", nl.GateCount(), nl.NetCount())
	for _, g := range nl.Gates() {
		fmt.Fprintf(bw, "%d %d", g.ID, g.Connectivity)
		for _, n := range g.Nets {
			fmt.Fprintf(bw, " %d", n)
		}
		bw.WriteByte('\n')
	}
	fmt.Fprintf(bw, "%d\n", nl.PadCount())
	for _, p := range nl.Pads() {
		fmt.Fprintf(bw, "%d %d %s %s\n", p.ID, p.Net, formatFloat(p.Pos.X), formatFloat(p.Pos.Y))
	}
	return bw.Flush()
}

// scanner yields non-blank records and tracks the current line.
type scanner struct {
	sc   *bufio.Scanner
	line int
}

// record returns the fields of the next non-blank line. It returns io.EOF
// unwrapped when the input ends before any record, so callers can treat an
// optional trailing section as absent.
func (s *scanner) record(what string, minFields int) ([]string, error) {
	for s.sc.Scan() {
		s.line++
		fields := strings.Fields(s.sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < minFields {
			return nil, s.errorf("%s record needs %d fields, got %d", what, minFields, len(fields))
		}
		return fields, nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "read line %d", s.line+1)
	}
	if what == "pad count" {
		return nil, io.EOF
	}
	return nil, s.errorf("unexpected end of input, expected %s record", what)
}

func (s *scanner) number(field, what string) (float64, error) {
	v, err := strconv.ParseFloat(field, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, s.errorf("%s %q is not a finite number", what, field)
	}
	return v, nil
}

// integer parses a number and truncates it toward zero.
func (s *scanner) integer(field, what string) (int, error) {
	v, err := s.number(field, what)
	if err != nil {
		return 0, err
	}
	if math.Abs(v) > math.MaxInt32 {
		return 0, s.errorf("%s %q is out of range", what, field)
	}
	return int(v), nil
}

func (s *scanner) errorf(format string, args ...any) error {
	return perrors.New(perrors.ErrCodeInvalidFormat, "line %d: %s", s.line, fmt.Sprintf(format, args...))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
