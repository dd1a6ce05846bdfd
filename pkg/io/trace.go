package io

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/matzehuels/netplace/pkg/place/anneal"
)

// TraceCSV streams annealing trials as CSV rows with a header line.
type TraceCSV struct {
	w   *csv.Writer
	err error
}

// NewTraceCSV writes the header and returns a writer for trials.
func NewTraceCSV(w io.Writer) *TraceCSV {
	t := &TraceCSV{w: csv.NewWriter(w)}
	t.err = t.w.Write([]string{"trial", "round", "gate_i", "gate_j", "temperature", "delta", "hpwl", "accepted"})
	return t
}

// Write records one trial. It matches the anneal.Trial callback signature
// and keeps the first write error for [TraceCSV.Close].
func (t *TraceCSV) Write(tr anneal.Trial) {
	if t.err != nil {
		return
	}
	hpwl := tr.Before
	if tr.Accepted {
		hpwl = tr.After
	}
	t.err = t.w.Write([]string{
		strconv.Itoa(tr.Index),
		strconv.Itoa(tr.Round),
		strconv.Itoa(tr.I),
		strconv.Itoa(tr.J),
		formatFloat(tr.Temperature),
		formatFloat(tr.Delta),
		formatFloat(hpwl),
		strconv.FormatBool(tr.Accepted),
	})
}

// Close flushes buffered rows and returns the first error seen.
func (t *TraceCSV) Close() error {
	t.w.Flush()
	if t.err != nil {
		return t.err
	}
	return t.w.Error()
}
