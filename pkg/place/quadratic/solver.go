package quadratic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	perrors "github.com/matzehuels/netplace/pkg/errors"
)

// Solver names accepted by [Config].
const (
	SolverCG       = "cg"
	SolverCholesky = "cholesky"
)

// maxCond is the condition number above which a dense factorization is
// treated as numerically singular.
const maxCond = 1e14

// MaxDenseSize is the largest system the Cholesky solver accepts. The dense
// copy holds n² values, 128 MiB at this size.
const MaxDenseSize = 4096

// Solution is the result of one linear solve.
type Solution struct {
	X          []float64
	Iterations int
	Residual   float64 // relative residual ||A·x - b|| / ||b||
}

// Solver solves A·x = b for a symmetric positive definite A.
type Solver interface {
	Solve(a *CSR, b []float64) (Solution, error)
}

// NewSolver returns the solver registered under name.
func NewSolver(name string, cfg Config) (Solver, error) {
	switch name {
	case SolverCG, "":
		return CG{Tolerance: cfg.Tolerance, MaxIterations: cfg.MaxIterations}, nil
	case SolverCholesky:
		return Cholesky{}, nil
	default:
		return nil, perrors.New(perrors.ErrCodeInvalidConfig, "unknown solver %q (must be one of: cg, cholesky)", name)
	}
}

// CG is a Jacobi-preconditioned conjugate gradient solver working directly on
// the sparse matrix. It is deterministic for a fixed input.
type CG struct {
	Tolerance     float64 // relative residual target; default 1e-10
	MaxIterations int     // default max(100, 10·n)
}

// Solve implements Solver.
func (s CG) Solve(a *CSR, b []float64) (Solution, error) {
	n := a.Size()
	tol := s.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = max(100, 10*n)
	}

	x := make([]float64, n)
	bNorm := floats.Norm(b, 2)
	if bNorm == 0 {
		return Solution{X: x}, nil
	}

	inv := a.Diagonal()
	for i, d := range inv {
		if d <= 0 {
			return Solution{}, &perrors.NumericalError{
				Op:             "cg",
				RankDeficiency: 1,
				Detail:         fmt.Sprintf("non-positive diagonal %g at row %d", d, i),
			}
		}
		inv[i] = 1 / d
	}

	r := append([]float64(nil), b...) // r = b - A·0
	z := make([]float64, n)
	floats.MulTo(z, inv, r)
	p := append([]float64(nil), z...)
	ap := make([]float64, n)
	rz := floats.Dot(r, z)

	for it := 1; it <= maxIter; it++ {
		a.MulVecTo(ap, p)
		pap := floats.Dot(p, ap)
		if pap <= 0 || math.IsNaN(pap) {
			return Solution{}, &perrors.NumericalError{
				Op:             "cg",
				Iterations:     it,
				RankDeficiency: 1,
				Detail:         "matrix is not positive definite",
			}
		}
		alpha := rz / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)

		res := floats.Norm(r, 2) / bNorm
		if res <= tol {
			return Solution{X: x, Iterations: it, Residual: res}, nil
		}

		floats.MulTo(z, inv, r)
		rzNext := floats.Dot(r, z)
		beta := rzNext / rz
		rz = rzNext
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}

	return Solution{}, &perrors.NumericalError{
		Op:         "cg",
		Iterations: maxIter,
		Residual:   floats.Norm(r, 2) / bNorm,
		Detail:     "did not converge",
	}
}

// Cholesky factors a dense copy of the matrix. It is exact up to rounding
// and reports rank deficiency when the factorization fails, but its memory
// grows with the square of the gate count. Systems larger than MaxDenseSize
// are rejected as INVALID_CONFIG; use CG for those.
type Cholesky struct{}

// Solve implements Solver.
func (Cholesky) Solve(a *CSR, b []float64) (Solution, error) {
	n := a.Size()
	if n == 0 {
		return Solution{}, nil
	}
	if n > MaxDenseSize {
		return Solution{}, perrors.New(perrors.ErrCodeInvalidConfig,
			"cholesky solver supports at most %d gates, got %d (use cg)", MaxDenseSize, n)
	}
	sym := a.SymDense()

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		var svd mat.SVD
		deficiency := 1
		if svd.Factorize(sym, mat.SVDNone) {
			deficiency = max(1, n-svd.Rank(1e-12))
		}
		return Solution{}, &perrors.NumericalError{
			Op:             "cholesky",
			RankDeficiency: deficiency,
			Detail:         "matrix is not positive definite",
		}
	}
	if cond := chol.Cond(); cond > maxCond || math.IsInf(cond, 0) {
		return Solution{}, &perrors.NumericalError{Op: "cholesky", Cond: cond, Detail: "matrix is ill-conditioned"}
	}

	var x mat.VecDense
	if err := chol.SolveVecTo(&x, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		return Solution{}, &perrors.NumericalError{Op: "cholesky", Detail: err.Error()}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return Solution{X: out, Residual: Residual(a, out, b)}, nil
}

// Residual returns ||A·x - b|| / ||b||, or ||A·x|| when b is zero.
func Residual(a *CSR, x, b []float64) float64 {
	ax := make([]float64, a.Size())
	a.MulVecTo(ax, x)
	floats.Sub(ax, b)
	num := floats.Norm(ax, 2)
	if bNorm := floats.Norm(b, 2); bNorm > 0 {
		return num / bNorm
	}
	return num
}
