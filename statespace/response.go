package statespace

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// resolvent computes the real and imaginary parts of (j w I - A)^-1 through
// the real 2n x 2n block embedding of the complex system.
func (r *FullRealization) resolvent(omega float64) (x, y *mat.Dense, err error) {
	n := r.StateDim()
	k := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			// M = j w I - A, so Re(M) = -A and Im(M) = w I.
			k.Set(i, j, -r.A.At(i, j))
			k.Set(n+i, n+j, -r.A.At(i, j))
		}
		k.Set(i, n+i, -omega)
		k.Set(n+i, i, omega)
	}
	var kinv mat.Dense
	if err := kinv.Inverse(k); err != nil {
		return nil, nil, errors.New("statespace: resolvent is singular, a pole lies exactly on the evaluation frequency")
	}
	x = mat.NewDense(n, n, nil)
	y = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x.Set(i, j, kinv.At(i, j))
			y.Set(i, j, kinv.At(n+i, j))
		}
	}
	return x, y, nil
}

// ResolventB returns the real and imaginary parts of (j 2 pi f I - A)^-1 B,
// the per-frequency coefficient block used by the scattering enforcement
// least-squares solve.
func (r *FullRealization) ResolventB(f float64) (re, im *mat.Dense, err error) {
	if r.StateDim() == 0 {
		return nil, nil, errors.New("statespace: realization has no dynamic states")
	}
	x, y, err := r.resolvent(2 * math.Pi * f)
	if err != nil {
		return nil, nil, err
	}
	var reB, imB mat.Dense
	reB.Mul(x, r.B)
	imB.Mul(y, r.B)
	return &reB, &imB, nil
}

// Eval computes the model response matrix S(f) = C (j w I - A)^-1 B + D +
// j w E at the frequency f in Hz.
func (r *FullRealization) Eval(f float64) (*mat.CDense, error) {
	omega := 2 * math.Pi * f
	n := r.NumPorts()
	if r.StateDim() == 0 {
		s := mat.NewCDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				s.Set(i, j, complex(r.D.At(i, j), omega*r.E.At(i, j)))
			}
		}
		return s, nil
	}
	x, y, err := r.resolvent(omega)
	if err != nil {
		return nil, err
	}
	var tmp, sre, sim mat.Dense
	tmp.Mul(r.C, x)
	sre.Mul(&tmp, r.B)
	tmp.Mul(r.C, y)
	sim.Mul(&tmp, r.B)

	s := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s.Set(i, j, complex(
				sre.At(i, j)+r.D.At(i, j),
				sim.At(i, j)+omega*r.E.At(i, j),
			))
		}
	}
	return s, nil
}
