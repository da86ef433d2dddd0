package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// onePort builds a 1-port model with one real pole, one complex pair and a
// constant term.
func onePort() *Model {
	return &Model{
		Poles: []complex128{
			complex(-2*math.Pi*100, 0),
			complex(-2*math.Pi*50, 2*math.Pi*1000),
		},
		Residues:          mat.NewCDense(1, 2, []complex128{complex(2*math.Pi*20, 0), complex(2*math.Pi*30, -2*math.Pi*5)}),
		ConstantCoeff:     []float64{0.1},
		ProportionalCoeff: []float64{0},
	}
}

func TestValidate(t *testing.T) {
	m := onePort()
	require.NoError(t, m.Validate())

	var empty Model
	require.ErrorIs(t, empty.Validate(), ErrNotFitted)

	bad := onePort()
	bad.ConstantCoeff = []float64{0.1, 0.2}
	require.Error(t, bad.Validate())

	bad = onePort()
	bad.Poles = bad.Poles[:1]
	require.Error(t, bad.Validate())
}

func TestPoleCountsAndAllPoles(t *testing.T) {
	m := onePort()
	nr, nc := m.PoleCounts()
	require.Equal(t, 1, nr)
	require.Equal(t, 1, nc)

	all := m.AllPoles()
	require.Len(t, all, 3)
	require.Equal(t, m.Poles[0], all[0])
	require.Equal(t, m.Poles[1], all[1])
	require.Equal(t, complex(real(m.Poles[1]), -imag(m.Poles[1])), all[2])
}

func TestResponseMatchesHandEvaluation(t *testing.T) {
	m := &Model{
		Poles:             []complex128{complex(-2*math.Pi*100, 0)},
		Residues:          mat.NewCDense(1, 1, []complex128{complex(2*math.Pi*40, 0)}),
		ConstantCoeff:     []float64{0.25},
		ProportionalCoeff: []float64{0},
	}
	resp, err := m.Response(0, 0, []float64{0})
	require.NoError(t, err)
	// at dc: d + r/(-p) = 0.25 + 40/100
	require.InDelta(t, 0.65, real(resp[0]), 1e-12)
	require.InDelta(t, 0, imag(resp[0]), 1e-12)

	_, err = m.Response(1, 0, []float64{0})
	require.Error(t, err)
}

func TestZeroPoleModel(t *testing.T) {
	m := &Model{
		ConstantCoeff:     []float64{0.5},
		ProportionalCoeff: []float64{1e-12},
	}
	require.NoError(t, m.Validate())
	require.Equal(t, 1, m.NumPorts())

	resp, err := m.Response(0, 0, []float64{0, 100})
	require.NoError(t, err)
	require.Equal(t, complex(0.5, 0), resp[0])
	require.InDelta(t, 0.5, real(resp[1]), 1e-15)
	require.InDelta(t, 2*math.Pi*100*1e-12, imag(resp[1]), 1e-18)

	// poles without a residue matrix stay invalid
	bad := &Model{
		Poles:             []complex128{complex(-1, 0)},
		ConstantCoeff:     []float64{0.5},
		ProportionalCoeff: []float64{0},
	}
	require.ErrorIs(t, bad.Validate(), ErrNotFitted)
}

func TestReadCoefficientsWithoutPoles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constant.yml")
	raw := []byte("poles: []\nconstants: [0.5]\nproportionals: [0.0]\n")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	m, err := ReadCoefficients(path)
	require.NoError(t, err)
	require.Empty(t, m.Poles)
	require.Nil(t, m.Residues)
	require.Equal(t, []float64{0.5}, m.ConstantCoeff)

	resp, err := m.Response(0, 0, []float64{1e9})
	require.NoError(t, err)
	require.Equal(t, complex(0.5, 0), resp[0])
}

func TestZeroPoleCoefficientsRoundTrip(t *testing.T) {
	m := &Model{
		Poles:             []complex128{},
		ConstantCoeff:     []float64{0.5},
		ProportionalCoeff: []float64{0},
	}
	path := filepath.Join(t.TempDir(), "coefficients.yml")
	require.NoError(t, WriteCoefficients(m, path))

	got, err := ReadCoefficients(path)
	require.NoError(t, err)
	require.Empty(t, got.Poles)
	require.Nil(t, got.Residues)
	require.Equal(t, m.ConstantCoeff, got.ConstantCoeff)
	require.Equal(t, m.ProportionalCoeff, got.ProportionalCoeff)
}

func TestMaxPoleFreq(t *testing.T) {
	m := onePort()
	want := math.Hypot(2*math.Pi*50, 2*math.Pi*1000) / (2 * math.Pi)
	require.InDelta(t, want, m.MaxPoleFreq(), 1e-9)
}

func TestCoefficientsRoundTrip(t *testing.T) {
	m := onePort()
	path := filepath.Join(t.TempDir(), "coefficients.yml")
	require.NoError(t, WriteCoefficients(m, path))

	got, err := ReadCoefficients(path)
	require.NoError(t, err)
	require.Equal(t, m.Poles, got.Poles)
	require.Equal(t, m.ConstantCoeff, got.ConstantCoeff)
	require.Equal(t, m.ProportionalCoeff, got.ProportionalCoeff)
	rows, cols := m.Residues.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			require.Equal(t, m.Residues.At(i, j), got.Residues.At(i, j))
		}
	}
}

func TestReadCoefficientsRejectsInconsistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	// two constants cannot belong to a square response matrix
	raw := []byte("poles:\n- re: -1.0\n  im: 0.0\nresidues:\n- - re: 1.0\n    im: 0.0\n- - re: 1.0\n    im: 0.0\nconstants: [0.1, 0.2]\nproportionals: [0.0, 0.0]\n")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	_, err := ReadCoefficients(path)
	require.Error(t, err)
}

func TestWriteCoefficientsRequiresFittedModel(t *testing.T) {
	var m Model
	err := WriteCoefficients(&m, filepath.Join(t.TempDir(), "x.yml"))
	require.ErrorIs(t, err, ErrNotFitted)
}
