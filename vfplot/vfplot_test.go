package vfplot

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/fit"
	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/sample"
)

func testModel() *model.Model {
	return &model.Model{
		Poles: []complex128{
			complex(-2*math.Pi*100, 0),
			complex(-2*math.Pi*50, 2*math.Pi*800),
		},
		Residues:          mat.NewCDense(1, 2, []complex128{complex(2*math.Pi*20, 0), complex(2*math.Pi*10, -2*math.Pi*3)}),
		ConstantCoeff:     []float64{0.1},
		ProportionalCoeff: []float64{0},
	}
}

func requirePNG(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestMagnitude(t *testing.T) {
	m := testModel()
	path := filepath.Join(t.TempDir(), "response.png")
	require.NoError(t, Magnitude(m, nil, 0, 0, path))
	requirePNG(t, path)
}

func TestMagnitudeWithSamples(t *testing.T) {
	m := testModel()
	freqs := []float64{10, 100, 500, 1000}
	matrices := make([]*mat.CDense, len(freqs))
	for k := range freqs {
		resp, err := m.Response(0, 0, freqs[k:k+1])
		require.NoError(t, err)
		matrices[k] = mat.NewCDense(1, 1, []complex128{resp[0]})
	}
	data, err := sample.New(freqs, matrices, sample.Scattering, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, Magnitude(m, data, 0, 0, path))
	requirePNG(t, path)
}

func TestSingularValues(t *testing.T) {
	m := testModel()
	path := filepath.Join(t.TempDir(), "sigma.png")
	require.NoError(t, SingularValues(m, 0, 2000, path))
	requirePNG(t, path)

	require.Error(t, SingularValues(m, 100, 100, path))
}

func TestConvergence(t *testing.T) {
	h := fit.History{DeltaMaxSigma: []float64{0.5, 1e-3, 0, 1e-9}}
	path := filepath.Join(t.TempDir(), "convergence.png")
	require.NoError(t, Convergence(h, path))
	requirePNG(t, path)

	require.Error(t, Convergence(fit.History{}, path))
}

func TestPassivation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passivation.png")
	require.NoError(t, Passivation([]float64{1.4, 1.1, 0.99}, path))
	requirePNG(t, path)

	require.Error(t, Passivation(nil, path))
}
