// Package sample provides the sampled frequency-domain network data consumed
// by the fitting and passivity packages: per-frequency complex N x N response
// matrices in one of three representations (scattering, impedance or
// admittance), the sample frequency grid and the per-port reference
// impedances.
package sample

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/matext"
)

// ParameterType selects the representation of the response matrices.
type ParameterType string

const (
	Scattering ParameterType = "s"
	Impedance  ParameterType = "z"
	Admittance ParameterType = "y"
)

// ErrParameterType is returned for a selector outside s/z/y.
var ErrParameterType = errors.New("sample: parameter type must be one of s, z or y")

// Samples holds sampled multi-port network data on a frequency grid.
type Samples struct {
	// Freqs is the ascending sample frequency grid in Hz.
	Freqs []float64
	// Matrices holds one complex N x N response matrix per frequency.
	Matrices []*mat.CDense
	// Type is the representation of Matrices.
	Type ParameterType
	// Z0 holds the per-port reference impedances. Only the circuit
	// exporter consumes these; fitting is representation-agnostic.
	Z0 []float64
}

// New validates and wraps sampled data. Every matrix must be N x N with N
// equal to len(z0); z0 may be nil, defaulting to 50 ohm per port.
func New(freqs []float64, matrices []*mat.CDense, t ParameterType, z0 []float64) (*Samples, error) {
	switch t {
	case Scattering, Impedance, Admittance:
	default:
		return nil, ErrParameterType
	}
	if len(freqs) == 0 || len(freqs) != len(matrices) {
		return nil, fmt.Errorf("sample: %d frequencies for %d matrices", len(freqs), len(matrices))
	}
	n, c := matrices[0].Dims()
	if n != c {
		return nil, fmt.Errorf("sample: response matrices must be square, got %d x %d", n, c)
	}
	for _, m := range matrices {
		if r, c := m.Dims(); r != n || c != n {
			return nil, fmt.Errorf("sample: inconsistent matrix dimensions %d x %d, want %d x %d", r, c, n, n)
		}
	}
	if z0 == nil {
		z0 = make([]float64, n)
		for i := range z0 {
			z0[i] = 50
		}
	}
	if len(z0) != n {
		return nil, fmt.Errorf("sample: %d reference impedances for %d ports", len(z0), n)
	}
	return &Samples{Freqs: freqs, Matrices: matrices, Type: t, Z0: z0}, nil
}

// NumPorts returns N.
func (s *Samples) NumPorts() int {
	n, _ := s.Matrices[0].Dims()
	return n
}

// MaxFreq returns the highest sample frequency.
func (s *Samples) MaxFreq() float64 {
	return s.Freqs[len(s.Freqs)-1]
}

// Responses returns the sampled data in the requested representation,
// flattened row-major over the response matrix: resp[i*N+j][k] is response
// (i,j) at frequency k.
func (s *Samples) Responses(t ParameterType) ([][]complex128, error) {
	n := s.NumPorts()
	resp := make([][]complex128, n*n)
	for r := range resp {
		resp[r] = make([]complex128, len(s.Freqs))
	}
	for k := range s.Freqs {
		m, err := s.convert(s.Matrices[k], t)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				resp[i*n+j][k] = m.At(i, j)
			}
		}
	}
	return resp, nil
}

// convert maps one response matrix between the s/z/y representations using
// the real per-port reference impedances in Z0.
func (s *Samples) convert(m *mat.CDense, t ParameterType) (*mat.CDense, error) {
	if t == s.Type {
		return m, nil
	}
	switch t {
	case Scattering, Impedance, Admittance:
	default:
		return nil, ErrParameterType
	}

	z, err := s.toImpedance(m)
	if err != nil {
		return nil, err
	}
	switch t {
	case Impedance:
		return z, nil
	case Admittance:
		return matext.CInverse(z)
	}
	// Impedance to scattering: S = F (Z - Z0)(Z + Z0)^-1 F^-1 with
	// diagonal real Z0, for which F commutes and drops out.
	n := s.NumPorts()
	num := mat.NewCDense(n, n, nil)
	den := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := z.At(i, j)
			num.Set(i, j, v)
			den.Set(i, j, v)
		}
		num.Set(i, i, num.At(i, i)-complex(s.Z0[i], 0))
		den.Set(i, i, den.At(i, i)+complex(s.Z0[i], 0))
	}
	denInv, err := matext.CInverse(den)
	if err != nil {
		return nil, fmt.Errorf("sample: impedance to scattering conversion: %w", err)
	}
	return matext.CMul(num, denInv), nil
}

// toImpedance converts the stored representation to impedance parameters.
func (s *Samples) toImpedance(m *mat.CDense) (*mat.CDense, error) {
	n := s.NumPorts()
	switch s.Type {
	case Impedance:
		return m, nil
	case Admittance:
		return matext.CInverse(m)
	case Scattering:
		// Z = sqrt(Z0) (I - S)^-1 (I + S) sqrt(Z0)
		iMinus := mat.NewCDense(n, n, nil)
		iPlus := mat.NewCDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := m.At(i, j)
				iMinus.Set(i, j, -v)
				iPlus.Set(i, j, v)
			}
			iMinus.Set(i, i, iMinus.At(i, i)+1)
			iPlus.Set(i, i, iPlus.At(i, i)+1)
		}
		inv, err := matext.CInverse(iMinus)
		if err != nil {
			return nil, fmt.Errorf("sample: scattering to impedance conversion: %w", err)
		}
		z := matext.CMul(inv, iPlus)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				z.Set(i, j, z.At(i, j)*complex(math.Sqrt(s.Z0[i])*math.Sqrt(s.Z0[j]), 0))
			}
		}
		return z, nil
	}
	return nil, ErrParameterType
}

// IsPassive is the passivity oracle on the raw sampled data: true when no
// singular value of any sampled scattering matrix exceeds one.
func (s *Samples) IsPassive() (bool, error) {
	for k := range s.Freqs {
		m, err := s.convert(s.Matrices[k], Scattering)
		if err != nil {
			return false, err
		}
		sv, err := matext.SingularValues(m)
		if err != nil {
			return false, err
		}
		if sv[0] > 1 {
			return false, nil
		}
	}
	return true, nil
}

// MaxSingularValue returns the largest singular value over all sampled
// scattering matrices. The scattering enforcement route derives its target
// ceiling from this.
func (s *Samples) MaxSingularValue() (float64, error) {
	var worst float64
	for k := range s.Freqs {
		m, err := s.convert(s.Matrices[k], Scattering)
		if err != nil {
			return 0, err
		}
		sv, err := matext.SingularValues(m)
		if err != nil {
			return 0, err
		}
		if sv[0] > worst {
			worst = sv[0]
		}
	}
	return worst, nil
}
