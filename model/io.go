package model

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// complexValue is the YAML representation of one complex coefficient.
type complexValue struct {
	Re float64 `yaml:"re"`
	Im float64 `yaml:"im"`
}

// coefficientFile is the on-disk layout of the four labeled coefficient
// arrays.
type coefficientFile struct {
	Poles         []complexValue   `yaml:"poles"`
	Residues      [][]complexValue `yaml:"residues"`
	Constants     []float64        `yaml:"constants"`
	Proportionals []float64        `yaml:"proportionals"`
}

// WriteCoefficients stores the model's poles, residues, constants and
// proportional coefficients as a labeled YAML file.
func WriteCoefficients(m *Model, path string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	f := coefficientFile{
		Poles:         make([]complexValue, len(m.Poles)),
		Constants:     append([]float64(nil), m.ConstantCoeff...),
		Proportionals: append([]float64(nil), m.ProportionalCoeff...),
	}
	for i, p := range m.Poles {
		f.Poles[i] = complexValue{Re: real(p), Im: imag(p)}
	}
	if m.Residues != nil {
		rows, cols := m.Residues.Dims()
		f.Residues = make([][]complexValue, rows)
		for i := 0; i < rows; i++ {
			f.Residues[i] = make([]complexValue, cols)
			for j := 0; j < cols; j++ {
				r := m.Residues.At(i, j)
				f.Residues[i][j] = complexValue{Re: real(r), Im: imag(r)}
			}
		}
	}
	out, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("model: encoding coefficients: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// ReadCoefficients loads a coefficient file written by WriteCoefficients.
// The shape invariant residues.rows == len(constants) == len(proportionals)
// == N*N is enforced; a mismatch is a data-consistency error.
func ReadCoefficients(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f coefficientFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("model: decoding coefficients: %w", err)
	}

	nResp := len(f.Constants)
	n := int(math.Round(math.Sqrt(float64(nResp))))
	if n*n != nResp || len(f.Proportionals) != nResp {
		return nil, fmt.Errorf("model: coefficient file %s is inconsistent: %d constants, "+
			"%d proportionals; both must equal a square port count", path, nResp, len(f.Proportionals))
	}

	m := &Model{
		Poles:             make([]complex128, len(f.Poles)),
		ConstantCoeff:     append([]float64(nil), f.Constants...),
		ProportionalCoeff: append([]float64(nil), f.Proportionals...),
	}
	for i, p := range f.Poles {
		m.Poles[i] = complex(p.Re, p.Im)
	}
	if len(f.Poles) > 0 {
		if len(f.Residues) != nResp {
			return nil, fmt.Errorf("model: coefficient file %s is inconsistent: %d residue rows for %d constants",
				path, len(f.Residues), nResp)
		}
		m.Residues = mat.NewCDense(nResp, len(f.Poles), nil)
	}
	for i, row := range f.Residues {
		if len(row) != len(f.Poles) {
			return nil, fmt.Errorf("model: coefficient file %s: residue row %d has %d entries for %d poles",
				path, i, len(row), len(f.Poles))
		}
		for j, r := range row {
			m.Residues.Set(i, j, complex(r.Re, r.Im))
		}
	}
	return m, m.Validate()
}
