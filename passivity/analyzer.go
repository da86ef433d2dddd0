package passivity

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/matext"
	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/statespace"
)

// Route selects the passivity assessment and enforcement strategy matching
// the representation of the fitted responses.
type Route string

const (
	// RouteScattering uses the algebraic half-size test matrix on the full
	// multi-port realization.
	RouteScattering Route = "s"
	// RouteAdmittance locates the crossover frequencies where an eigenvalue
	// of Re(Y) changes sign.
	RouteAdmittance Route = "y"
	// RouteReflection sweeps the magnitude of a one-port reflection
	// coefficient on a dense frequency grid.
	RouteReflection Route = "r"
)

// ErrRoute is returned for a route selector outside s/y/r.
var ErrRoute = errors.New("passivity: route must be one of s, y or r")

// ErrProportional is returned when the scattering route is applied to a
// model with nonzero proportional coefficients; such a model grows without
// bound and the half-size test does not apply. Refit without the
// proportional term first.
var ErrProportional = errors.New("passivity: scattering assessment requires zero proportional coefficients")

// dSingularTol classifies the constant-coefficient matrix of the admittance
// route as singular when an eigenvalue magnitude falls below this fraction
// of the largest one.
const dSingularTol = 1e-12

// Sweep parameters of the reflection route.
const (
	sweepPoints = 99999
	sweepFactor = 1.6
	// Widening applied to a violation detected at a single sweep sample,
	// so the band keeps a nonzero width for the extrema search.
	widenLow  = 7.0 / 8.0
	widenHigh = 9.0 / 8.0
)

// Test runs the assessment route matching the given selector. fMax bounds
// the sweep of the reflection route and is ignored by the other two; pass 0
// to derive it from the pole spectrum.
func Test(m *model.Model, route Route, fMax float64) ([]Band, error) {
	switch route {
	case RouteScattering:
		return TestScattering(m)
	case RouteAdmittance:
		return TestAdmittance(m)
	case RouteReflection:
		return TestReflection(m, fMax)
	}
	return nil, ErrRoute
}

// IsPassive reports whether the model passes the assessment route without
// violation bands. The admittance and reflection routes additionally require
// a feasible constant term (positive for admittance, magnitude below one for
// reflection), which no frequency band can express.
func IsPassive(m *model.Model, route Route, fMax float64) (bool, error) {
	bands, err := Test(m, route, fMax)
	if err != nil {
		return false, err
	}
	if len(bands) > 0 {
		return false, nil
	}
	switch route {
	case RouteAdmittance:
		for _, d := range m.ConstantCoeff {
			if d <= 0 {
				return false, nil
			}
		}
	case RouteReflection:
		for _, d := range m.ConstantCoeff {
			if math.Abs(d) >= 1 {
				return false, nil
			}
		}
	}
	return true, nil
}

// TestScattering locates the passivity violation bands of a scattering
// model through the half-size test matrix
//
//	P = (A - B (D - I)^-1 C) (A - B (D + I)^-1 C)
//
// whose purely imaginary eigenvalue square roots are the frequencies where
// a singular value of S crosses unity. The bands between consecutive
// crossings are then classified by sampling the singular values at the band
// centers.
func TestScattering(m *model.Model) ([]Band, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	for _, e := range m.ProportionalCoeff {
		if e != 0 {
			return nil, ErrProportional
		}
	}
	r, err := statespace.FromModel(m)
	if err != nil {
		return nil, err
	}
	n := r.NumPorts()

	if r.StateDim() == 0 {
		// constant model: S(f) = D everywhere
		sv, err := matext.SingularValues(denseToCDense(r.D))
		if err != nil {
			return nil, err
		}
		if sv[0] > 1 {
			return []Band{{Start: 0, Stop: math.Inf(1)}}, nil
		}
		return nil, nil
	}

	eye := matext.Eye(n)
	var dNeg, dPos mat.Dense
	dNeg.Sub(r.D, eye)
	dPos.Add(r.D, eye)
	var invNeg, invPos mat.Dense
	if err := invNeg.Inverse(&dNeg); err != nil {
		return nil, fmt.Errorf("passivity: D - I is singular, a singular value of S touches one at infinite frequency: %w", err)
	}
	if err := invPos.Inverse(&dPos); err != nil {
		return nil, fmt.Errorf("passivity: D + I is singular: %w", err)
	}

	var prodNeg, prodPos, facNeg, facPos, p mat.Dense
	prodNeg.Product(r.B, &invNeg, r.C)
	prodPos.Product(r.B, &invPos, r.C)
	facNeg.Sub(r.A, &prodNeg)
	facPos.Sub(r.A, &prodPos)
	p.Mul(&facNeg, &facPos)

	eigs, err := matext.Eigenvalues(&p)
	if err != nil {
		return nil, err
	}

	// purely imaginary square roots mark singular value crossings
	var crossings []float64
	haveZero := false
	for _, e := range eigs {
		sq := cmplx.Sqrt(e)
		if real(sq) == 0 {
			f := imag(sq) / (2 * math.Pi)
			crossings = append(crossings, f)
			if f == 0 {
				haveZero = true
			}
		}
	}
	if !haveZero {
		crossings = append(crossings, 0)
	}
	sort.Float64s(crossings)

	var bands []Band
	for i, f := range crossings {
		var stop, center float64
		if i == len(crossings)-1 {
			stop = math.Inf(1)
			center = 1.1 * f
		} else {
			stop = crossings[i+1]
			center = 0.5 * (f + stop)
		}
		s, err := r.Eval(center)
		if err != nil {
			return nil, err
		}
		sv, err := matext.SingularValues(s)
		if err != nil {
			return nil, err
		}
		if sv[0] > 1 {
			bands = append(bands, Band{Start: f, Stop: stop})
		}
	}
	return mergeBands(bands), nil
}

// TestAdmittance locates the violation bands of an admittance model. The
// frequencies where an eigenvalue of Re(Y) crosses zero are the real
// eigenvalue square roots of
//
//	S1 = A (B D^-1 C - A)
//
// computed on the inverse system when D is singular. The bands between
// consecutive crossings are classified by the eigenvalues of Re(Y) at the
// band midpoints.
func TestAdmittance(m *model.Model) ([]Band, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	r, err := statespace.FromModel(m)
	if err != nil {
		return nil, err
	}
	if r.StateDim() == 0 {
		// no dynamics; only the constant-term condition remains, which
		// IsPassive checks separately
		return nil, nil
	}
	a, b, c, d := r.A, r.B, r.C, r.D

	dEigs, err := matext.Eigenvalues(d)
	if err != nil {
		return nil, err
	}
	var dMax float64
	for _, e := range dEigs {
		if v := cmplx.Abs(e); v > dMax {
			dMax = v
		}
	}
	dSingular := false
	for _, e := range dEigs {
		if cmplx.Abs(e) <= dSingularTol*dMax {
			dSingular = true
			break
		}
	}
	if dSingular {
		// transform to the inverse system; the crossover frequencies of
		// the original are the reciprocals of those of the transform
		var aInv mat.Dense
		if err := aInv.Inverse(a); err != nil {
			return nil, fmt.Errorf("passivity: state matrix inversion: %w", err)
		}
		var bHat, cHat, dCorr, dHat mat.Dense
		bHat.Mul(&aInv, b)
		bHat.Scale(-1, &bHat)
		cHat.Mul(c, &aInv)
		dCorr.Product(c, &aInv, b)
		dHat.Sub(d, &dCorr)
		a, b, c, d = &aInv, &bHat, &cHat, &dHat
	}

	var dInv mat.Dense
	if err := dInv.Inverse(d); err != nil {
		return nil, fmt.Errorf("passivity: constant term is not invertible: %w", err)
	}
	var bdc, s1 mat.Dense
	bdc.Product(b, &dInv, c)
	bdc.Sub(&bdc, a)
	s1.Mul(a, &bdc)

	eigs, err := matext.Eigenvalues(&s1)
	if err != nil {
		return nil, err
	}
	var crossings []float64
	for _, e := range eigs {
		w := cmplx.Sqrt(e)
		if dSingular {
			w = 1 / w
		}
		if imag(w) == 0 && real(w) > 0 {
			crossings = append(crossings, real(w))
		}
	}
	if len(crossings) == 0 {
		return nil, nil
	}
	sort.Float64s(crossings)

	// classify the band on each side of every crossing at its midpoint
	mids := make([]float64, len(crossings)+1)
	mids[0] = crossings[0] / 2
	mids[len(mids)-1] = 2 * crossings[len(crossings)-1]
	for k := 0; k < len(crossings)-1; k++ {
		mids[k+1] = 0.5 * (crossings[k] + crossings[k+1])
	}

	var bands []Band
	for k, w := range mids {
		y := responseMatrix(m, w/(2*math.Pi))
		re, _ := matext.Parts(y)
		gEigs, err := matext.Eigenvalues(re)
		if err != nil {
			return nil, err
		}
		viol := false
		for _, g := range gEigs {
			if real(g) < 0 {
				viol = true
				break
			}
		}
		if !viol {
			continue
		}
		switch k {
		case 0:
			bands = append(bands, Band{Start: 0, Stop: crossings[0] / (2 * math.Pi)})
		case len(mids) - 1:
			bands = append(bands, Band{Start: crossings[k-1] / (2 * math.Pi), Stop: math.Inf(1)})
		default:
			bands = append(bands, Band{Start: crossings[k-1] / (2 * math.Pi), Stop: crossings[k] / (2 * math.Pi)})
		}
	}
	return mergeBands(bands), nil
}

// TestReflection locates the violation bands of a one-port reflection model
// by a dense magnitude sweep from dc to sweepFactor times fMax. fMax is
// usually the highest sample frequency; pass 0 to fall back to the highest
// pole frequency of the model.
func TestReflection(m *model.Model, fMax float64) ([]Band, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.NumPorts() != 1 {
		return nil, fmt.Errorf("passivity: reflection assessment applies to one-port models, got %d ports", m.NumPorts())
	}
	if fMax <= 0 {
		fMax = m.MaxPoleFreq()
	}
	if fMax <= 0 {
		return nil, errors.New("passivity: reflection assessment needs a positive frequency bound")
	}

	freqs := make([]float64, sweepPoints+1)
	freqs[0] = 0
	floats.Span(freqs[1:], 0.1, sweepFactor*fMax)
	resp, err := m.Response(0, 0, freqs)
	if err != nil {
		return nil, err
	}

	var bands []Band
	for i := 0; i <= sweepPoints; {
		if cmplx.Abs(resp[i]) < 1 {
			i++
			continue
		}
		i0 := i
		for i <= sweepPoints && cmplx.Abs(resp[i]) >= 1 {
			i++
		}
		i1 := i - 1

		start, stop := freqs[i0], freqs[i1]
		if i1 == sweepPoints {
			stop = math.Inf(1)
		}
		if i0 == i1 && !math.IsInf(stop, 1) {
			if i0 == 0 {
				stop = freqs[1]
			} else {
				start *= widenLow
				stop *= widenHigh
			}
		}
		bands = append(bands, Band{Start: start, Stop: stop})
	}
	return mergeBands(bands), nil
}

// responseMatrix evaluates the full complex response matrix at one frequency
// by direct pole-residue summation.
func responseMatrix(m *model.Model, f float64) *mat.CDense {
	n := m.NumPorts()
	s := complex(0, 2*math.Pi*f)
	y := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r := i*n + j
			h := complex(m.ConstantCoeff[r], 0) + s*complex(m.ProportionalCoeff[r], 0)
			for q, p := range m.Poles {
				res := m.Residues.At(r, q)
				if imag(p) == 0 {
					h += res / (s - p)
				} else {
					h += res/(s-p) + cmplx.Conj(res)/(s-cmplx.Conj(p))
				}
			}
			y.Set(i, j, h)
		}
	}
	return y
}

func denseToCDense(d *mat.Dense) *mat.CDense {
	r, c := d.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, complex(d.At(i, j), 0))
		}
	}
	return out
}

