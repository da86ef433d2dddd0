package passivity

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/quadprog"
	"github.com/solvithrastar/vecfit/sample"
)

// frpTol is the clearance demanded from the passivity boundary by every
// perturbation constraint.
const frpTol = 1e-6

// outOfBandWeight de-emphasizes the anchor samples placed at pole
// frequencies outside the fitted band.
const outOfBandWeight = 1e-3

// frpInnerIterations constraint-accumulation passes per outer iteration.
const frpInnerIterations = 2

// EnforceAdmittance makes a one-port admittance model passive by fast
// residue perturbation: the violation extrema found by TestAdmittance become
// linear constraints Re(Y) >= frpTol on a residue update dx, and the update
// minimizing the weighted response change over the sample frequencies is
// found by quadratic programming. Iterates until the assessment is clean and
// the constant term is positive.
func EnforceAdmittance(m *model.Model, data *sample.Samples, cfg EnforceConfig) (*EnforceResult, error) {
	return enforceFRP(m, data, RouteAdmittance, cfg)
}

// EnforceReflection makes a one-port reflection model passive by fast
// residue perturbation. The non-convex magnitude bound |S| < 1 is
// approximated by four linear facets inscribed in the unit circle.
func EnforceReflection(m *model.Model, data *sample.Samples, cfg EnforceConfig) (*EnforceResult, error) {
	return enforceFRP(m, data, RouteReflection, cfg)
}

func enforceFRP(m *model.Model, data *sample.Samples, route Route, cfg EnforceConfig) (*EnforceResult, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.NumPorts() != 1 {
		return nil, fmt.Errorf("passivity: residue perturbation applies to one-port models, got %d ports", m.NumPorts())
	}
	if data == nil {
		return nil, errors.New("passivity: residue perturbation needs the sampled data to anchor the perturbation least squares")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 60
	}
	res := &EnforceResult{}
	fMax := data.MaxFreq()

	passive, err := IsPassive(m, route, fMax)
	if err != nil {
		return nil, err
	}
	if passive {
		if cfg.Logger != nil {
			cfg.Logger.Info("passivity enforcement: the model is already passive, nothing to do")
		}
		res.Passive = true
		return res, nil
	}

	s := make([]complex128, len(data.Freqs))
	for k, f := range data.Freqs {
		s[k] = complex(0, 2*math.Pi*f)
	}
	poles := m.AllPoles()
	cindex := conjugateIndex(poles)

	// expanded residue row matching the expanded pole set
	c0 := make([]complex128, 0, len(poles))
	for q, p := range m.Poles {
		r := m.Residues.At(0, q)
		if imag(p) == 0 {
			c0 = append(c0, r)
		} else {
			c0 = append(c0, r, cmplx.Conj(r))
		}
	}
	d0 := m.ConstantCoeff[0]

	var s3 []complex128
	d1 := d0
outer:
	for iterOut := 0; iterOut <= cfg.MaxIterations; iterOut++ {
		if cfg.Logger != nil {
			cfg.Logger.Debug("passivity enforcement", "iteration", iterOut)
		}
		s3 = s3[:0]
		for iterIn := 0; iterIn < frpInnerIterations; iterIn++ {
			var s2 []complex128
			if iterIn == 0 {
				bands, err := Test(m, route, fMax)
				if err != nil {
					return nil, err
				}
				if len(bands) == 0 && constantFeasible(d1, route) {
					break outer
				}
				pts, worst, err := violationExtrema(m, bands, route)
				if err != nil {
					return nil, err
				}
				if len(bands) > 0 {
					res.History = append(res.History, worst)
				}
				s2 = pts
				if len(s2) == 0 && constantFeasible(d1, route) {
					break
				}
			}
			c1, d1n, err := frpSolve(route, poles, cindex, c0, d0, s, s2, s3)
			if err != nil {
				return nil, err
			}
			d1 = d1n
			writeBackResponse(m, c1, d1)

			if iterIn != frpInnerIterations-1 {
				bands, err := Test(m, route, fMax)
				if err != nil {
					return nil, err
				}
				pts, _, err := violationExtrema(m, bands, route)
				if err != nil {
					return nil, err
				}
				s3 = append(s3, s2...)
				s3 = append(s3, pts...)
			} else {
				s3 = s3[:0]
				c0, d0 = c1, d1
			}
		}
		res.Iterations++
	}

	remaining, err := Test(m, route, fMax)
	if err != nil {
		return nil, err
	}
	res.RemainingBands = remaining
	res.Passive = len(remaining) == 0 && constantFeasible(m.ConstantCoeff[0], route)
	if !res.Passive {
		res.warnf(cfg.Logger, "passivity enforcement was not successful; the model is still non-passive after %d iterations", res.Iterations)
	}
	return res, nil
}

// constantFeasible checks the constant-term passivity condition: |d| < 1
// for reflection, d > 0 for admittance, matching IsPassive.
func constantFeasible(d float64, route Route) bool {
	if route == RouteReflection {
		return math.Abs(d) < 1
	}
	return d > 0
}

// conjugateIndex classifies the expanded pole set: 0 for a real pole, 1 for
// the first member of a conjugate pair, 2 for its partner.
func conjugateIndex(poles []complex128) []int {
	idx := make([]int, len(poles))
	for i := 0; i < len(poles); i++ {
		if imag(poles[i]) == 0 {
			continue
		}
		idx[i] = 1
		idx[i+1] = 2
		i++
	}
	return idx
}

// writeBackResponse folds an expanded residue row and constant back into the
// one-port model.
func writeBackResponse(m *model.Model, c1 []complex128, d1 float64) {
	z := 0
	for k := 0; k < len(c1); {
		if imag(m.Poles[z]) == 0 {
			m.Residues.Set(0, z, complex(real(c1[k]), 0))
			k++
		} else {
			m.Residues.Set(0, z, c1[k])
			k += 2
		}
		z++
	}
	m.ConstantCoeff[0] = d1
}

// frpSolve computes one constrained residue perturbation: it minimizes the
// weighted change of the response at the sample frequencies s subject to
// passivity constraints at the violation extrema in s2 and the accumulated
// points in s3, and returns the perturbed expanded residues and constant.
func frpSolve(route Route, poles []complex128, cindex []int, c0 []complex128, d0 float64, s, s2, s3 []complex128) ([]complex128, float64, error) {
	n := len(poles)
	// a constant exactly on the passivity boundary is perturbed too;
	// without its column no update could move it off the boundary
	dFlag := false
	if route == RouteReflection {
		dFlag = math.Abs(d0) >= 1
	} else {
		dFlag = d0 <= 0
	}
	nCols := n
	if dFlag {
		nCols++
	}

	yEval := func(sk complex128) complex128 {
		y := complex(d0, 0)
		for q, p := range poles {
			y += c0[q] / (sk - p)
		}
		return y
	}
	// partial derivative of the response with respect to the unknown of
	// column q: real residue, real part of a pair, imaginary part of a pair
	basis := func(sk complex128, q int) complex128 {
		switch cindex[q] {
		case 1:
			return 1/(sk-poles[q]) + 1/(sk-cmplx.Conj(poles[q]))
		case 2:
			return complex(0, 1)/(sk-cmplx.Conj(poles[q])) - complex(0, 1)/(sk-poles[q])
		}
		return 1 / (sk - poles[q])
	}

	// anchor samples at pole frequencies outside the sampled band
	wMin, wMax := imag(s[0]), imag(s[len(s)-1])
	var s4 []complex128
	for q, p := range poles {
		var w float64
		switch cindex[q] {
		case 0:
			w = cmplx.Abs(p)
		case 1:
			w = math.Abs(imag(p))
		default:
			continue
		}
		if w > wMax || w < wMin {
			s4 = append(s4, complex(0, w))
		}
	}

	nRows := len(s) + len(s4)
	a := mat.NewDense(2*nRows, nCols, nil)
	fill := func(row int, sk complex128, weight float64) {
		for q := 0; q < n; q++ {
			v := basis(sk, q)
			a.Set(row, q, weight*real(v))
			a.Set(nRows+row, q, weight*imag(v))
		}
		if dFlag {
			a.Set(row, n, weight)
		}
	}
	for k, sk := range s {
		fill(k, sk, 1/cmplx.Abs(yEval(sk)))
	}
	for k, sk := range s4 {
		fill(len(s)+k, sk, outOfBandWeight/cmplx.Abs(yEval(sk)))
	}

	// column equilibration keeps the normal matrix well conditioned
	escale := make([]float64, nCols)
	for c := 0; c < nCols; c++ {
		var norm float64
		for r := 0; r < 2*nRows; r++ {
			norm += a.At(r, c) * a.At(r, c)
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			norm = 1
		}
		escale[c] = norm
		for r := 0; r < 2*nRows; r++ {
			a.Set(r, c, a.At(r, c)/norm)
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	h := mat.NewSymDense(nCols, nil)
	for i := 0; i < nCols; i++ {
		for j := i; j < nCols; j++ {
			h.SetSym(i, j, 0.5*(ata.At(i, j)+ata.At(j, i)))
		}
	}

	// passivity constraints at the current and the accumulated violation
	// frequencies
	var consRows [][]float64
	var consB []float64
	addCons := func(row []float64, b float64) {
		consRows = append(consRows, row)
		consB = append(consB, b)
	}
	points := append(append([]complex128{}, s2...), s3...)
	for _, sk := range points {
		y := yEval(sk)
		dum := make([]complex128, nCols)
		for q := 0; q < n; q++ {
			dum[q] = basis(sk, q)
		}
		if dFlag {
			dum[n] = 1
		}
		if route == RouteReflection {
			if cmplx.Abs(y) <= 1 {
				continue
			}
			// |y + dy| < 1 approximated by the four facets
			// sigma Re(y+dy) + tau Im(y+dy) <= 1 - frpTol
			for _, st := range [...][2]float64{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}} {
				sg, tu := st[0], st[1]
				row := make([]float64, nCols)
				for c := 0; c < nCols; c++ {
					row[c] = -(sg*real(dum[c]) + tu*imag(dum[c]))
				}
				addCons(row, -(1 - frpTol - sg*real(y) - tu*imag(y)))
			}
		} else {
			if real(y) >= 0 {
				continue
			}
			row := make([]float64, nCols)
			for c := 0; c < nCols; c++ {
				row[c] = real(dum[c])
			}
			addCons(row, frpTol-real(y))
		}
	}
	if dFlag {
		if route == RouteReflection {
			lo := make([]float64, nCols)
			hi := make([]float64, nCols)
			hi[n] = -1
			lo[n] = 1
			addCons(hi, -(1 - d0 - frpTol)) // d0 + dx <= 1 - frpTol
			addCons(lo, frpTol-1-d0)        // d0 + dx >= -1 + frpTol
		} else {
			row := make([]float64, nCols)
			row[n] = 1
			addCons(row, frpTol-d0) // d0 + dx >= frpTol
		}
	}
	if len(consRows) == 0 {
		return append([]complex128(nil), c0...), d0, nil
	}

	cons := mat.NewDense(len(consRows), nCols, nil)
	for r, row := range consRows {
		for c := 0; c < nCols; c++ {
			cons.Set(r, c, row[c]/escale[c])
		}
	}

	dx, err := solveRegularized(h, cons, consB)
	if err != nil {
		return nil, 0, err
	}
	for c := 0; c < nCols; c++ {
		dx[c] /= escale[c]
	}

	c1 := append([]complex128(nil), c0...)
	for q := 0; q < n; q++ {
		switch cindex[q] {
		case 0:
			c1[q] += complex(dx[q], 0)
		case 1:
			r1 := real(c0[q]) + dx[q]
			r2 := imag(c0[q]) + dx[q+1]
			c1[q] = complex(r1, r2)
			c1[q+1] = complex(r1, -r2)
		}
	}
	d1 := d0
	if dFlag {
		d1 += dx[n]
	}
	return c1, d1, nil
}

// solveRegularized runs the quadratic program, adding a growing diagonal
// ridge when the normal matrix turns out numerically semidefinite.
func solveRegularized(h *mat.SymDense, cons *mat.Dense, consB []float64) ([]float64, error) {
	n := h.SymmetricDim()
	q := make([]float64, n)
	var maxDiag float64
	for i := 0; i < n; i++ {
		if v := h.At(i, i); v > maxDiag {
			maxDiag = v
		}
	}
	ridge := 0.0
	for attempt := 0; ; attempt++ {
		ht := mat.NewSymDense(n, nil)
		ht.CopySym(h)
		for i := 0; i < n; i++ {
			ht.SetSym(i, i, ht.At(i, i)+ridge)
		}
		res, err := quadprog.Solve(ht, q, cons, consB)
		if err == nil {
			return res.X, nil
		}
		if !errors.Is(err, quadprog.ErrNotPositiveDefinite) || attempt >= 4 {
			return nil, fmt.Errorf("passivity: perturbation quadratic program: %w", err)
		}
		if ridge == 0 {
			ridge = 1e-12 * math.Max(maxDiag, 1)
		} else {
			ridge *= 100
		}
	}
}
