package spice

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/model"
)

func testModel() *model.Model {
	return &model.Model{
		Poles: []complex128{
			complex(-2*math.Pi*100, 0),
			complex(-2*math.Pi*50, 2*math.Pi*800),
		},
		Residues:          mat.NewCDense(1, 2, []complex128{complex(2*math.Pi*20, 0), complex(2*math.Pi*10, -2*math.Pi*3)}),
		ConstantCoeff:     []float64{-0.2},
		ProportionalCoeff: []float64{0},
	}
}

func TestWriteSubcircuit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSubcircuit(testModel(), nil, &buf))
	out := buf.String()

	require.Contains(t, out, ".SUBCKT s_equivalent p1\n")
	require.Contains(t, out, ".ENDS s_equivalent")

	// port termination and wave recombination sources
	require.Contains(t, out, "R1 a1 0 50\n")
	require.Contains(t, out, "V1 p1 a1 0\n")
	require.Contains(t, out, "H1 nt1 nts1 V1 50\n")
	require.Contains(t, out, "E1 nts1 0 p1 0 1\n")
	require.Contains(t, out, "F11 0 a1 V11 20m\n")

	// the negative constant term lands on the inverting node
	require.Contains(t, out, "R11 nt11_inv 0 5\n")

	// one branch per pole plus both helper subcircuit definitions
	require.Contains(t, out, "X1 nt11 0 rl_admittance")
	require.Contains(t, out, "X2 nt11 0 rcl_vccs_admittance")
	require.Contains(t, out, ".SUBCKT rl_admittance n_pos n_neg")
	require.Contains(t, out, ".SUBCKT rcl_vccs_admittance n_pos n_neg")
}

func TestWriteSubcircuitNegativeResidueUsesInvertingNode(t *testing.T) {
	m := testModel()
	m.Residues.Set(0, 0, complex(-2*math.Pi*20, 0))
	var buf bytes.Buffer
	require.NoError(t, WriteSubcircuit(m, nil, &buf))
	require.Contains(t, buf.String(), "X1 nt11_inv 0 rl_admittance")
}

func TestWriteSubcircuitPortCount(t *testing.T) {
	m := testModel()
	var buf bytes.Buffer
	require.Error(t, WriteSubcircuit(m, []float64{50, 50}, &buf))

	require.Error(t, WriteSubcircuit(&model.Model{}, nil, &buf))
}

func TestWriteSubcircuitTwoPortPortList(t *testing.T) {
	m := &model.Model{
		Poles:             []complex128{complex(-2*math.Pi*100, 0)},
		Residues:          mat.NewCDense(4, 1, []complex128{1, 2, 2, 1}),
		ConstantCoeff:     []float64{0, 0, 0, 0},
		ProportionalCoeff: []float64{0, 0, 0, 0},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSubcircuit(m, []float64{50, 75}, &buf))
	out := buf.String()
	require.Contains(t, out, ".SUBCKT s_equivalent p1 p2\n")
	require.Contains(t, out, "R2 a2 0 75\n")
	// four transfer networks
	require.Equal(t, 4, strings.Count(out, "* transfer network for"))
}

func TestEng(t *testing.T) {
	require.Equal(t, "1.5k", eng(1500))
	require.Equal(t, "20m", eng(0.02))
	require.Equal(t, "2.2meg", eng(2.2e6))
	require.Equal(t, "3.3u", eng(3.3e-6))
	require.Equal(t, "0", eng(0))
}
