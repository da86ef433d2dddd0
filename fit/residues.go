package fit

import (
	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/matext"
	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/passivity"
)

// solveResidues solves one real-stacked least-squares system for the
// residues and the optional constant and proportional terms of every
// response, with the poles held fixed. A single solve suffices here; the
// QR compression of the relocation loop is not needed.
func solveResidues(poles []complex128, s []complex128, responses [][]complex128, cfg Config) (*model.Model, error) {
	nFreqs := len(s)
	nResp := len(responses)
	coeffs := basisColumns(poles, s)

	nCols := len(coeffs)
	idxConstant, idxProportional := -1, -1
	if cfg.FitConstant {
		idxConstant = nCols
		nCols++
	}
	if cfg.FitProportional {
		idxProportional = nCols
		nCols++
	}

	a := mat.NewDense(2*nFreqs, nCols, nil)
	b := mat.NewDense(2*nFreqs, nResp, nil)
	for k := 0; k < nFreqs; k++ {
		for c, col := range coeffs {
			a.Set(k, c, real(col[k]))
			a.Set(nFreqs+k, c, imag(col[k]))
		}
		if idxConstant >= 0 {
			a.Set(k, idxConstant, 1)
		}
		if idxProportional >= 0 {
			a.Set(k, idxProportional, real(s[k]))
			a.Set(nFreqs+k, idxProportional, imag(s[k]))
		}
		for r, resp := range responses {
			b.Set(k, r, real(resp[k]))
			b.Set(nFreqs+k, r, imag(resp[k]))
		}
	}

	ls, err := matext.SolveLstSq(a, b, -1)
	if err != nil {
		return nil, err
	}
	x := ls.X

	m := &model.Model{
		Poles:             poles,
		Residues:          mat.NewCDense(nResp, len(poles), nil),
		ConstantCoeff:     make([]float64, nResp),
		ProportionalCoeff: make([]float64, nResp),
	}
	for r := 0; r < nResp; r++ {
		col := 0
		for q, p := range poles {
			if imag(p) == 0 {
				m.Residues.Set(r, q, complex(x.At(col, r), 0))
				col++
			} else {
				m.Residues.Set(r, q, complex(x.At(col, r), x.At(col+1, r)))
				col += 2
			}
		}
		if idxConstant >= 0 {
			m.ConstantCoeff[r] = x.At(idxConstant, r)
		}
		if idxProportional >= 0 {
			m.ProportionalCoeff[r] = x.At(idxProportional, r)
		}
	}
	return m, nil
}

// denormalize maps the fitted coefficients from the normalized frequency
// scale back to physical frequencies.
func denormalize(m *model.Model, norm float64) {
	for i := range m.Poles {
		m.Poles[i] *= complex(norm, 0)
	}
	rows, cols := m.Residues.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Residues.Set(i, j, m.Residues.At(i, j)*complex(norm, 0))
		}
	}
	for i := range m.ProportionalCoeff {
		m.ProportionalCoeff[i] /= norm
	}
}

// modelScatteringPassive reports whether the half-size scattering test
// finds no violation bands.
func modelScatteringPassive(m *model.Model) (bool, error) {
	bands, err := passivity.TestScattering(m)
	if err != nil {
		return false, err
	}
	return len(bands) == 0, nil
}
