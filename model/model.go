// Package model defines the rational pole-residue model
//
// H(s) = SUM_k r_k/(s - p_k) + conj(r_k)/(s - conj(p_k)) + d + s e
//
// shared by the fitting, passivity and export packages. Complex poles are
// stored once as their non-negative-imaginary representative; the conjugate
// partner is implied and never stored.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned when an operation requires model coefficients
// that have not been produced by a fit or loaded from a coefficient file.
var ErrNotFitted = errors.New("model: coefficients not initialized, run a fit or load a coefficient file first")

// Model holds one shared pole set and, per response, a residue row plus a
// constant and a proportional coefficient. Responses are flattened row-major
// over the N-port response matrix, so response index = row*N + col and there
// are N*N responses.
type Model struct {
	// Poles of the rational approximation. A pole is either real or the
	// non-negative-imaginary representative of a conjugate pair. After
	// fitting, every real part is negative.
	Poles []complex128
	// Residues holds one complex residue per (response, pole) pair as an
	// N*N by len(Poles) matrix. It is nil for a model without poles, which
	// reduces to its constant/proportional response.
	Residues *mat.CDense
	// ConstantCoeff holds the constant term d of each response.
	ConstantCoeff []float64
	// ProportionalCoeff holds the proportional term e of each response.
	ProportionalCoeff []float64
}

// Validate checks the shape invariant
// residues.rows == len(constants) == len(proportionals) == N*N. A model
// without poles is valid with a nil residue matrix.
func (m *Model) Validate() error {
	if m.ConstantCoeff == nil || m.ProportionalCoeff == nil {
		return ErrNotFitted
	}
	nResp := len(m.ConstantCoeff)
	if len(m.ProportionalCoeff) != nResp {
		return fmt.Errorf("model: %d constants, %d proportionals; both must be equal",
			nResp, len(m.ProportionalCoeff))
	}
	if len(m.Poles) > 0 || m.Residues != nil {
		if m.Residues == nil {
			return ErrNotFitted
		}
		rows, cols := m.Residues.Dims()
		if cols != len(m.Poles) {
			return fmt.Errorf("model: residue matrix has %d columns for %d poles", cols, len(m.Poles))
		}
		if rows != nResp {
			return fmt.Errorf("model: %d residue rows for %d constants; both must be equal", rows, nResp)
		}
	}
	n := int(math.Round(math.Sqrt(float64(nResp))))
	if n*n != nResp {
		return fmt.Errorf("model: %d responses is not a square number of ports", nResp)
	}
	return nil
}

// NumPorts returns N for the N-port model.
func (m *Model) NumPorts() int {
	return int(math.Round(math.Sqrt(float64(len(m.ConstantCoeff)))))
}

// NumResponses returns N*N.
func (m *Model) NumResponses() int {
	return len(m.ConstantCoeff)
}

// PoleCounts returns the number of real poles and of complex-conjugate
// pole pairs.
func (m *Model) PoleCounts() (nReal, nCmplx int) {
	for _, p := range m.Poles {
		if imag(p) == 0 {
			nReal++
		} else {
			nCmplx++
		}
	}
	return nReal, nCmplx
}

// AllPoles expands the stored pole set to the full set including the
// implied conjugate partners, keeping each pair adjacent.
func (m *Model) AllPoles() []complex128 {
	var all []complex128
	for _, p := range m.Poles {
		if imag(p) == 0 {
			all = append(all, p)
		} else {
			all = append(all, p, cmplx.Conj(p))
		}
	}
	return all
}

// Response evaluates the model response H_{i,j} at the given frequencies
// (in Hz) by direct pole-residue summation. This avoids the matrix
// inversion of the state-space route and is the cheap path for
// single-response queries. A model with zero poles reduces to its
// constant/proportional response.
func (m *Model) Response(i, j int, freqs []float64) ([]complex128, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	n := m.NumPorts()
	if i < 0 || i >= n || j < 0 || j >= n {
		return nil, fmt.Errorf("model: response index (%d,%d) out of range for %d ports", i, j, n)
	}
	r := i*n + j
	resp := make([]complex128, len(freqs))
	for k, f := range freqs {
		s := complex(0, 2*math.Pi*f)
		h := complex(m.ConstantCoeff[r], 0) + s*complex(m.ProportionalCoeff[r], 0)
		for q, p := range m.Poles {
			res := m.Residues.At(r, q)
			if imag(p) == 0 {
				h += res / (s - p)
			} else {
				h += res/(s-p) + cmplx.Conj(res)/(s-cmplx.Conj(p))
			}
		}
		resp[k] = h
	}
	return resp, nil
}

// MaxSampleFreq is a helper bound used by sweep-based passivity routines:
// the largest absolute pole frequency of the model, in Hz.
func (m *Model) MaxPoleFreq() float64 {
	var w float64
	for _, p := range m.Poles {
		if a := cmplx.Abs(p); a > w {
			w = a
		}
	}
	return w / (2 * math.Pi)
}
