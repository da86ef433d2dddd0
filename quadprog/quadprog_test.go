package quadprog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSolveUnconstrained(t *testing.T) {
	h := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	res, err := Solve(h, []float64{-1, -2}, nil, nil)
	require.NoError(t, err)
	require.InDelta(t, 1, res.X[0], 1e-12)
	require.InDelta(t, 2, res.X[1], 1e-12)
	require.InDelta(t, -2.5, res.Objective, 1e-12)
	require.Zero(t, res.Iterations)
}

func TestSolveActiveConstraint(t *testing.T) {
	// min 1/2 |x|^2 s.t. x1 >= 1: the unconstrained minimum is the origin,
	// so the constraint is active and the solution sits on its boundary.
	h := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	a := mat.NewDense(1, 2, []float64{1, 0})
	res, err := Solve(h, []float64{0, 0}, a, []float64{1})
	require.NoError(t, err)
	require.InDelta(t, 1, res.X[0], 1e-10)
	require.InDelta(t, 0, res.X[1], 1e-10)
	require.InDelta(t, 1, res.Multipliers[0], 1e-10)
}

func TestSolveInactiveConstraintIgnored(t *testing.T) {
	// the unconstrained minimizer (1, 2) already satisfies x1 + x2 >= 1
	h := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	a := mat.NewDense(1, 2, []float64{1, 1})
	res, err := Solve(h, []float64{-1, -2}, a, []float64{1})
	require.NoError(t, err)
	require.InDelta(t, 1, res.X[0], 1e-12)
	require.InDelta(t, 2, res.X[1], 1e-12)
	require.Zero(t, res.Multipliers[0])
}

func TestSolveTwoActiveConstraints(t *testing.T) {
	// min 1/2 |x|^2 s.t. x1 >= 1, x2 >= 2
	h := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	a := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	res, err := Solve(h, []float64{0, 0}, a, []float64{1, 2})
	require.NoError(t, err)
	require.InDelta(t, 1, res.X[0], 1e-10)
	require.InDelta(t, 2, res.X[1], 1e-10)
}

func TestSolveInfeasible(t *testing.T) {
	// x >= 1 and -x >= 0 cannot both hold
	h := mat.NewSymDense(1, []float64{1})
	a := mat.NewDense(2, 1, []float64{1, -1})
	_, err := Solve(h, []float64{0}, a, []float64{1, 0})
	require.ErrorIs(t, err, ErrInfeasible)
}

func TestSolveRejectsIndefinite(t *testing.T) {
	h := mat.NewSymDense(2, []float64{1, 0, 0, -1})
	_, err := Solve(h, []float64{0, 0}, nil, nil)
	require.ErrorIs(t, err, ErrNotPositiveDefinite)
}

func TestSolveDimensionMismatch(t *testing.T) {
	h := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	_, err := Solve(h, []float64{0}, nil, nil)
	require.Error(t, err)

	a := mat.NewDense(1, 1, []float64{1})
	_, err = Solve(h, []float64{0, 0}, a, []float64{1})
	require.Error(t, err)
}
