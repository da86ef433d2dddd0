package statespace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/model"
)

func twoPort() *model.Model {
	return &model.Model{
		Poles: []complex128{
			complex(-2*math.Pi*80, 0),
			complex(-2*math.Pi*40, 2*math.Pi*600),
		},
		Residues: mat.NewCDense(4, 2, []complex128{
			complex(2*math.Pi*10, 0), complex(2*math.Pi*5, -2*math.Pi*2),
			complex(-2*math.Pi*3, 0), complex(2*math.Pi*1, 2*math.Pi*4),
			complex(-2*math.Pi*3, 0), complex(2*math.Pi*1, 2*math.Pi*4),
			complex(2*math.Pi*8, 0), complex(2*math.Pi*6, -2*math.Pi*1),
		}),
		ConstantCoeff:     []float64{0.2, 0.05, 0.05, 0.1},
		ProportionalCoeff: []float64{0, 0, 0, 1e-6},
	}
}

func TestFromModelDimensions(t *testing.T) {
	r, err := FromModel(twoPort())
	require.NoError(t, err)

	// one real pole plus one conjugate pair occupy three states per port
	require.Equal(t, 6, r.StateDim())
	require.Equal(t, 2, r.NumPorts())

	br, bc := r.B.Dims()
	require.Equal(t, 6, br)
	require.Equal(t, 2, bc)
	require.Equal(t, 1.0, r.B.At(0, 0)) // real pole input
	require.Equal(t, 2.0, r.B.At(1, 0)) // pair input, doubled
	require.Equal(t, 0.0, r.B.At(2, 0)) // second pair state unforced
	require.Equal(t, 1.0, r.B.At(3, 1))

	// rotation block of the conjugate pair
	p := twoPort().Poles[1]
	require.Equal(t, real(p), r.A.At(1, 1))
	require.Equal(t, imag(p), r.A.At(1, 2))
	require.Equal(t, -imag(p), r.A.At(2, 1))
}

func TestFromModelWithoutPoles(t *testing.T) {
	m := &model.Model{
		ConstantCoeff:     []float64{0.5},
		ProportionalCoeff: []float64{1e-9},
	}
	r, err := FromModel(m)
	require.NoError(t, err)
	require.Equal(t, 0, r.StateDim())
	require.Equal(t, 1, r.NumPorts())

	s, err := r.Eval(100)
	require.NoError(t, err)
	require.InDelta(t, 0.5, real(s.At(0, 0)), 1e-15)
	require.InDelta(t, 2*math.Pi*100*1e-9, imag(s.At(0, 0)), 1e-15)

	_, _, err = r.ResolventB(100)
	require.Error(t, err)
}

func TestFromModelRequiresCoefficients(t *testing.T) {
	_, err := FromModel(&model.Model{})
	require.ErrorIs(t, err, model.ErrNotFitted)
}

func TestEvalMatchesPoleResidueSummation(t *testing.T) {
	m := twoPort()
	r, err := FromModel(m)
	require.NoError(t, err)

	for _, f := range []float64{0, 75, 333.3, 1500} {
		s, err := r.Eval(f)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				want, err := m.Response(i, j, []float64{f})
				require.NoError(t, err)
				require.InDelta(t, real(want[0]), real(s.At(i, j)), 1e-9)
				require.InDelta(t, imag(want[0]), imag(s.At(i, j)), 1e-9)
			}
		}
	}
}

func TestResolventBConsistentWithEval(t *testing.T) {
	m := twoPort()
	r, err := FromModel(m)
	require.NoError(t, err)

	f := 120.0
	re, im, err := r.ResolventB(f)
	require.NoError(t, err)

	// C (jwI - A)^-1 B + D + jwE must agree with Eval
	var cre, cim mat.Dense
	cre.Mul(r.C, re)
	cim.Mul(r.C, im)
	s, err := r.Eval(f)
	require.NoError(t, err)
	omega := 2 * math.Pi * f
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			require.InDelta(t, real(s.At(i, j)), cre.At(i, j)+r.D.At(i, j), 1e-9)
			require.InDelta(t, imag(s.At(i, j)), cim.At(i, j)+omega*r.E.At(i, j), 1e-9)
		}
	}
}

func TestCompactFromModel(t *testing.T) {
	m := twoPort()
	cr, err := CompactFromModel(m, 3)
	require.NoError(t, err)
	require.Len(t, cr.Poles, 3) // real pole plus expanded pair
	require.Equal(t, m.ConstantCoeff[3], cr.D)

	// direct summation must match the model response
	for _, f := range []float64{10, 200, 900} {
		want, err := m.Response(1, 1, []float64{f})
		require.NoError(t, err)
		got := cr.Eval(complex(0, 2*math.Pi*f))
		require.InDelta(t, real(want[0])-0, real(got), 1e-9)
		// the compact form carries no proportional term
		require.InDelta(t, imag(want[0])-2*math.Pi*f*m.ProportionalCoeff[3], imag(got), 1e-9)
	}

	_, err = CompactFromModel(m, 4)
	require.Error(t, err)
}
