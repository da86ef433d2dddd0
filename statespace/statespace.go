// Package statespace converts the pole-residue model into matrix
// realizations suited to passivity analysis. Two distinct forms exist and
// are chosen by the caller's intended use:
//
// FromModel builds the full multi-port real realization (A,B,C,D,E) with
//
//	S(f) = C (j 2 pi f I - A)^-1 B + D + j 2 pi f E
//
// where A carries real poles on the diagonal and a 2x2 rotation block per
// conjugate pair, repeated per port.
//
// CompactFromModel builds the reduced single-row complex form used by the
// admittance/reflection passivity routines, which process one response at a
// time: a diagonal of raw complex poles and a single output row of residues.
package statespace

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/model"
)

// FullRealization is the real multi-port state-space form (A,B,C,D,E).
// It is ephemeral: recomputed on demand from the model, never persisted.
type FullRealization struct {
	A *mat.Dense // state dynamics, block diagonal
	B *mat.Dense // indicator columns, 1 or 2 per pole type
	C *mat.Dense // residues positioned per response
	D *mat.Dense // constant terms
	E *mat.Dense // proportional terms
}

// StateDim returns the dimension of A. A realization of a model without
// poles has no dynamic states and a nil A, B and C.
func (r *FullRealization) StateDim() int {
	if r.A == nil {
		return 0
	}
	n, _ := r.A.Dims()
	return n
}

// NumPorts returns the port count of the realization.
func (r *FullRealization) NumPorts() int {
	n, _ := r.D.Dims()
	return n
}

// FromModel assembles the full multi-port real realization. It fails with a
// precondition error if the model coefficients are unset.
func FromModel(m *model.Model) (*FullRealization, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	nPorts := m.NumPorts()
	nReal, nCmplx := m.PoleCounts()
	perPort := nReal + 2*nCmplx
	dim := perPort * nPorts

	var a, b, c *mat.Dense
	if dim > 0 {
		a = mat.NewDense(dim, dim, nil)
		b = mat.NewDense(dim, nPorts, nil)
		iA := 0
		for j := 0; j < nPorts; j++ {
			for _, p := range m.Poles {
				if imag(p) == 0 {
					a.Set(iA, iA, real(p))
					b.Set(iA, j, 1)
					iA++
				} else {
					a.Set(iA, iA, real(p))
					a.Set(iA, iA+1, imag(p))
					a.Set(iA+1, iA, -imag(p))
					a.Set(iA+1, iA+1, real(p))
					b.Set(iA, j, 2)
					iA += 2
				}
			}
		}

		c = mat.NewDense(nPorts, dim, nil)
		for i := 0; i < nPorts; i++ {
			for j := 0; j < nPorts; j++ {
				resp := i*nPorts + j
				col := j * perPort
				for q, p := range m.Poles {
					res := m.Residues.At(resp, q)
					if imag(p) == 0 {
						c.Set(i, col, real(res))
						col++
					} else {
						c.Set(i, col, real(res))
						c.Set(i, col+1, imag(res))
						col += 2
					}
				}
			}
		}
	}

	d := mat.NewDense(nPorts, nPorts, nil)
	e := mat.NewDense(nPorts, nPorts, nil)
	for i := 0; i < nPorts; i++ {
		for j := 0; j < nPorts; j++ {
			resp := i*nPorts + j
			d.Set(i, j, m.ConstantCoeff[resp])
			e.Set(i, j, m.ProportionalCoeff[resp])
		}
	}

	return &FullRealization{A: a, B: b, C: c, D: d, E: e}, nil
}

// CompactRealization is the reduced single-row complex form: a diagonal of
// the expanded (conjugate-inclusive) poles with one residue per state.
type CompactRealization struct {
	Poles    []complex128 // expanded pole set, conjugate pairs adjacent
	Residues []complex128 // expanded residues of the selected response
	D        float64      // constant term of the selected response
}

// CompactFromModel assembles the reduced complex realization for one
// response index (row-major over the response matrix).
func CompactFromModel(m *model.Model, response int) (*CompactRealization, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if response < 0 || response >= m.NumResponses() {
		return nil, fmt.Errorf("statespace: response index %d out of range for %d responses", response, m.NumResponses())
	}
	var poles, residues []complex128
	for q, p := range m.Poles {
		res := m.Residues.At(response, q)
		if imag(p) == 0 {
			poles = append(poles, p)
			residues = append(residues, res)
		} else {
			poles = append(poles, p, cmplx.Conj(p))
			residues = append(residues, res, cmplx.Conj(res))
		}
	}
	return &CompactRealization{Poles: poles, Residues: residues, D: m.ConstantCoeff[response]}, nil
}

// Eval computes the compact response at the complex frequency s by direct
// summation; no matrix inversion is involved.
func (r *CompactRealization) Eval(s complex128) complex128 {
	h := complex(r.D, 0)
	for i, p := range r.Poles {
		h += r.Residues[i] / (s - p)
	}
	return h
}
