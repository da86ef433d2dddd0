// Package quadprog solves strictly convex quadratic programs
//
//	minimize   1/2 x' H x + q' x
//	subject to A x >= b
//
// with a dense dual active-set method in the style of Goldfarb and Idnani:
// starting from the unconstrained minimizer, the most violated constraint is
// added to the working set one at a time, taking primal steps toward its
// boundary and dual steps that drop blocking constraints. The problems
// passed by the passivity enforcement are small, so the working-set
// equations are re-solved densely instead of maintaining factor updates.
package quadprog

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotPositiveDefinite is returned when H has no Cholesky factorization.
var ErrNotPositiveDefinite = errors.New("quadprog: quadratic term is not positive definite")

// ErrInfeasible is returned when the constraints admit no solution.
var ErrInfeasible = errors.New("quadprog: constraints are infeasible")

// Result holds the solution of a quadratic program.
type Result struct {
	// X is the minimizer.
	X []float64
	// Objective is 1/2 x' H x + q' x at the minimizer.
	Objective float64
	// Multipliers holds one Lagrange multiplier per constraint row;
	// nonzero entries mark active constraints.
	Multipliers []float64
	// Iterations is the number of active-set changes performed.
	Iterations int
}

const slackTol = 1e-10

// Solve minimizes 1/2 x' H x + q' x subject to A x >= b. A may be nil when
// there are no constraints. H must be symmetric positive definite.
func Solve(h *mat.SymDense, q []float64, a *mat.Dense, b []float64) (*Result, error) {
	n := h.SymmetricDim()
	if len(q) != n {
		return nil, errors.New("quadprog: dimension mismatch between H and q")
	}
	var nCons int
	if a != nil {
		var ca int
		nCons, ca = a.Dims()
		if ca != n || len(b) != nCons {
			return nil, errors.New("quadprog: dimension mismatch between constraint matrix and bounds")
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		return nil, ErrNotPositiveDefinite
	}

	// unconstrained minimizer x = -H^-1 q
	x := mat.NewVecDense(n, nil)
	qv := mat.NewVecDense(n, append([]float64(nil), q...))
	if err := chol.SolveVecTo(x, qv); err != nil {
		return nil, ErrNotPositiveDefinite
	}
	x.ScaleVec(-1, x)

	res := &Result{Multipliers: make([]float64, nCons)}
	if nCons == 0 {
		res.X = vecSlice(x)
		res.Objective = objective(h, q, res.X)
		return res, nil
	}

	active := []int{}
	u := []float64{} // multipliers of the active constraints, same order
	maxIter := 10 * (n + nCons)

	for iter := 0; iter < maxIter; iter++ {
		// most violated inactive constraint
		p, viol := -1, -slackTol
		for i := 0; i < nCons; i++ {
			if contains(active, i) {
				continue
			}
			s := rowDot(a, i, x) - b[i]
			if s < viol {
				viol = s
				p = i
			}
		}
		if p < 0 {
			break // feasible and optimal
		}
		res.Iterations++

		np := rowVec(a, p, n)
		z, r, err := stepDirections(&chol, a, active, np)
		if err != nil {
			return nil, err
		}

		// dual step length: first active constraint blocked by the
		// multiplier update
		t1 := math.Inf(1)
		drop := -1
		for j := range active {
			if r[j] > slackTol {
				if t := u[j] / r[j]; t < t1 {
					t1 = t
					drop = j
				}
			}
		}

		znp := dot(z, vecSlice(np))
		if znp <= slackTol*slackTol {
			// no primal progress possible in this direction
			if math.IsInf(t1, 1) {
				return nil, ErrInfeasible
			}
			for j := range u {
				u[j] -= t1 * r[j]
			}
			active = append(active[:drop], active[drop+1:]...)
			u = append(u[:drop], u[drop+1:]...)
			continue
		}

		t2 := -(rowDot(a, p, x) - b[p]) / znp
		t := math.Min(t1, t2)

		for i := 0; i < n; i++ {
			x.SetVec(i, x.AtVec(i)+t*z[i])
		}
		for j := range u {
			u[j] -= t * r[j]
		}
		if t == t2 {
			active = append(active, p)
			u = append(u, t)
		} else {
			// partial step; p stays inactive, blocking constraint leaves
			active = append(active[:drop], active[drop+1:]...)
			u = append(u[:drop], u[drop+1:]...)
		}
	}

	res.X = vecSlice(x)
	res.Objective = objective(h, q, res.X)
	for j, idx := range active {
		res.Multipliers[idx] = u[j]
	}
	return res, nil
}

// stepDirections computes the primal direction z (the projection of the new
// constraint normal onto the null space of the active normals, in the H
// metric) and the dual direction r for the active multipliers:
//
//	r = (N H^-1 N')^-1 N H^-1 np
//	z = H^-1 np - H^-1 N' r
func stepDirections(chol *mat.Cholesky, a *mat.Dense, active []int, np *mat.VecDense) (z, r []float64, err error) {
	n := np.Len()
	hinvNp := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(hinvNp, np); err != nil {
		return nil, nil, err
	}
	k := len(active)
	if k == 0 {
		return vecSlice(hinvNp), nil, nil
	}

	// N: k x n matrix of active constraint rows
	nMat := mat.NewDense(k, n, nil)
	for j, idx := range active {
		for c := 0; c < n; c++ {
			nMat.Set(j, c, a.At(idx, c))
		}
	}
	// H^-1 N'
	hinvNt := mat.NewDense(n, k, nil)
	col := mat.NewVecDense(n, nil)
	for j := 0; j < k; j++ {
		for c := 0; c < n; c++ {
			col.SetVec(c, nMat.At(j, c))
		}
		sol := mat.NewVecDense(n, nil)
		if err := chol.SolveVecTo(sol, col); err != nil {
			return nil, nil, err
		}
		for c := 0; c < n; c++ {
			hinvNt.Set(c, j, sol.AtVec(c))
		}
	}

	var gram mat.Dense // N H^-1 N'
	gram.Mul(nMat, hinvNt)
	rhs := mat.NewVecDense(k, nil)
	rhs.MulVec(nMat, hinvNp)

	rv := mat.NewVecDense(k, nil)
	if err := rv.SolveVec(&gram, rhs); err != nil {
		return nil, nil, errors.New("quadprog: degenerate active set")
	}

	zv := mat.NewVecDense(n, nil)
	zv.MulVec(hinvNt, rv)
	zv.SubVec(hinvNp, zv)
	return vecSlice(zv), vecSlice(rv), nil
}

func objective(h *mat.SymDense, q, x []float64) float64 {
	n := len(x)
	var obj float64
	for i := 0; i < n; i++ {
		obj += q[i] * x[i]
		for j := 0; j < n; j++ {
			obj += 0.5 * x[i] * h.At(i, j) * x[j]
		}
	}
	return obj
}

func rowDot(a *mat.Dense, i int, x *mat.VecDense) float64 {
	var sum float64
	for c := 0; c < x.Len(); c++ {
		sum += a.At(i, c) * x.AtVec(c)
	}
	return sum
}

func rowVec(a *mat.Dense, i, n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for c := 0; c < n; c++ {
		v.SetVec(c, a.At(i, c))
	}
	return v
}

func vecSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
