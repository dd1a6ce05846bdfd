package errors

import (
	"fmt"
	"strings"
)

// StructuralKind identifies which structural rule a netlist violated.
type StructuralKind string

const (
	KindConnectivityMismatch StructuralKind = "connectivity_mismatch"
	KindUnknownNet           StructuralKind = "unknown_net"
	KindUnknownGate          StructuralKind = "unknown_gate"
	KindUnknownPad           StructuralKind = "unknown_pad"
	KindNonDenseID           StructuralKind = "non_dense_id"
	KindUnanchoredComponent  StructuralKind = "unanchored_component"
	KindPadMembership        StructuralKind = "pad_membership"
)

// StructuralError reports a netlist whose topology is inconsistent or that
// cannot be placed analytically. Ids are 1-based; zero means "not applicable".
type StructuralError struct {
	Kind      StructuralKind
	Gate      int
	Net       int
	Pad       int
	Component int   // connected component index, for KindUnanchoredComponent
	Gates     []int // member gates of the offending component
	Detail    string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrCodeStructural, e.Kind)
	if e.Gate > 0 {
		fmt.Fprintf(&b, " gate=%d", e.Gate)
	}
	if e.Net > 0 {
		fmt.Fprintf(&b, " net=%d", e.Net)
	}
	if e.Pad > 0 {
		fmt.Fprintf(&b, " pad=%d", e.Pad)
	}
	if e.Kind == KindUnanchoredComponent {
		fmt.Fprintf(&b, " component=%d size=%d", e.Component, len(e.Gates))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// Code returns ErrCodeStructural.
func (e *StructuralError) Code() Code { return ErrCodeStructural }

// NumericalError reports a failed or untrustworthy numerical step.
type NumericalError struct {
	Op             string  // "cg", "cholesky", "residual", "integrate"
	Axis           string  // "x" or "y" for linear solves
	Residual       float64 // relative residual ||Ax-b|| / ||b|| when known
	Iterations     int
	RankDeficiency int     // lower bound on n - rank(A), when known
	Cond           float64 // condition number estimate, when known
	Detail         string
}

// Error implements the error interface.
func (e *NumericalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrCodeNumerical, e.Op)
	if e.Axis != "" {
		fmt.Fprintf(&b, " axis=%s", e.Axis)
	}
	if e.Iterations > 0 {
		fmt.Fprintf(&b, " iterations=%d", e.Iterations)
	}
	if e.Residual > 0 {
		fmt.Fprintf(&b, " residual=%.3g", e.Residual)
	}
	if e.RankDeficiency > 0 {
		fmt.Fprintf(&b, " rank_deficiency>=%d", e.RankDeficiency)
	}
	if e.Cond > 0 {
		fmt.Fprintf(&b, " cond=%.3g", e.Cond)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	return b.String()
}

// Code returns ErrCodeNumerical.
func (e *NumericalError) Code() Code { return ErrCodeNumerical }

// Warning is a non-fatal diagnostic. Processing continues after a warning.
type Warning struct {
	Code      Code
	Net       int
	Terminals int
	Message   string
}

// String formats the warning for logs.
func (w Warning) String() string {
	return fmt.Sprintf("%s: net=%d terminals=%d: %s", w.Code, w.Net, w.Terminals, w.Message)
}
