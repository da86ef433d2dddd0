package matext

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LstSq holds the diagnostics of an SVD-based least-squares solve.
type LstSq struct {
	// X is the minimum-norm solution, one column per right-hand side.
	X *mat.Dense
	// SingularValues of the coefficient matrix in descending order.
	SingularValues []float64
	// Cond is the 2-norm condition number, +Inf for a rank-deficient system.
	Cond float64
}

// SolveLstSq solves the least-squares problem min |a x - b|_2 for every
// column of b using a singular value decomposition. Singular values below
// rcond times the largest singular value are treated as zero. A negative
// rcond selects the machine-precision default.
func SolveLstSq(a, b *mat.Dense, rcond float64) (*LstSq, error) {
	m, n := a.Dims()
	mb, k := b.Dims()
	if m != mb {
		return nil, errors.New("matext: row dimension mismatch between coefficient matrix and right-hand side")
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.New("matext: SVD factorization failed")
	}
	sv := svd.Values(nil)

	if rcond < 0 {
		rcond = float64(max(m, n)) * 2.220446049250313e-16
	}
	cutoff := rcond * sv[0]

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// x = V diag(1/s) U^T b with small singular values zeroed
	r := len(sv)
	utb := mat.NewDense(r, k, nil)
	utb.Mul(u.T(), b)
	rank := 0
	for i := 0; i < r; i++ {
		if sv[i] > cutoff {
			rank++
			for j := 0; j < k; j++ {
				utb.Set(i, j, utb.At(i, j)/sv[i])
			}
		} else {
			for j := 0; j < k; j++ {
				utb.Set(i, j, 0)
			}
		}
	}
	x := mat.NewDense(n, k, nil)
	x.Mul(&v, utb)

	cond := math.Inf(1)
	if smin := sv[r-1]; smin > 0 {
		cond = sv[0] / smin
	}
	return &LstSq{X: x, SingularValues: sv, Cond: cond}, nil
}

// SolveLstSqVec is SolveLstSq for a single right-hand side vector.
func SolveLstSqVec(a *mat.Dense, b []float64, rcond float64) ([]float64, *LstSq, error) {
	res, err := SolveLstSq(a, mat.NewDense(len(b), 1, b), rcond)
	if err != nil {
		return nil, nil, err
	}
	n, _ := res.X.Dims()
	x := make([]float64, n)
	for i := range x {
		x[i] = res.X.At(i, 0)
	}
	return x, res, nil
}
