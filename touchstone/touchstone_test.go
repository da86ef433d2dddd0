package touchstone

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solvithrastar/vecfit/sample"
)

func TestParseOnePortRI(t *testing.T) {
	in := `! measured reflection data
# Hz S RI R 50
1e6  0.5 -0.1   ! trailing comment
2e6  0.4  0.2
`
	s, err := Parse(strings.NewReader(in), 1)
	require.NoError(t, err)
	require.Equal(t, sample.Scattering, s.Type)
	require.Equal(t, []float64{1e6, 2e6}, s.Freqs)
	require.Equal(t, []float64{50}, s.Z0)
	require.Equal(t, complex(0.5, -0.1), s.Matrices[0].At(0, 0))
	require.Equal(t, complex(0.4, 0.2), s.Matrices[1].At(0, 0))
}

func TestParseDefaultsToGHzMA(t *testing.T) {
	// without an option line: GHz, scattering, magnitude/angle, 50 ohm
	in := "1 1 90\n"
	s, err := Parse(strings.NewReader(in), 1)
	require.NoError(t, err)
	require.Equal(t, 1e9, s.Freqs[0])
	v := s.Matrices[0].At(0, 0)
	require.InDelta(t, 0, real(v), 1e-12)
	require.InDelta(t, 1, imag(v), 1e-12)
}

func TestParseDBFormat(t *testing.T) {
	in := "# MHz S DB\n10 -20 0\n"
	s, err := Parse(strings.NewReader(in), 1)
	require.NoError(t, err)
	require.Equal(t, 10e6, s.Freqs[0])
	require.InDelta(t, 0.1, real(s.Matrices[0].At(0, 0)), 1e-12)
}

func TestParseTwoPortColumnMajorOrder(t *testing.T) {
	// two-port rows are S11 S21 S12 S22
	in := "# Hz S RI R 50\n1  0.11 0  0.21 0  0.12 0  0.22 0\n"
	s, err := Parse(strings.NewReader(in), 2)
	require.NoError(t, err)
	m := s.Matrices[0]
	require.Equal(t, complex(0.11, 0), m.At(0, 0))
	require.Equal(t, complex(0.21, 0), m.At(1, 0))
	require.Equal(t, complex(0.12, 0), m.At(0, 1))
	require.Equal(t, complex(0.22, 0), m.At(1, 1))
}

func TestParseWrappedDataLines(t *testing.T) {
	// a frequency point may span several lines
	in := "# Hz S RI R 50\n1  0.11 0  0.21 0\n0.12 0  0.22 0\n"
	s, err := Parse(strings.NewReader(in), 2)
	require.NoError(t, err)
	require.Len(t, s.Freqs, 1)
	require.Equal(t, complex(0.22, 0), s.Matrices[0].At(1, 1))
}

func TestParseDenormalizesImpedance(t *testing.T) {
	in := "# Hz Z RI R 75\n1  1.5 0\n"
	s, err := Parse(strings.NewReader(in), 1)
	require.NoError(t, err)
	require.Equal(t, sample.Impedance, s.Type)
	require.InDelta(t, 112.5, real(s.Matrices[0].At(0, 0)), 1e-12)

	in = "# Hz Y RI R 50\n1  2.0 0\n"
	s, err = Parse(strings.NewReader(in), 1)
	require.NoError(t, err)
	require.Equal(t, sample.Admittance, s.Type)
	require.InDelta(t, 0.04, real(s.Matrices[0].At(0, 0)), 1e-12)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("# Hz G RI\n1 0 0\n"), 1)
	require.Error(t, err) // hybrid parameters unsupported

	_, err = Parse(strings.NewReader("# Hz S RI\n1 0.5\n"), 1)
	require.Error(t, err) // incomplete frequency point

	_, err = Parse(strings.NewReader("# Hz S RI\n2 0 0\n1 0 0\n"), 1)
	require.Error(t, err) // frequencies not ascending

	_, err = Parse(strings.NewReader("[Version] 2.0\n"), 1)
	require.Error(t, err) // v2 keywords rejected

	_, err = Parse(strings.NewReader("# Hz S RI R\n1 0 0\n"), 1)
	require.Error(t, err) // R without a value
}

func TestReadPortCountFromExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.s1p")
	require.NoError(t, os.WriteFile(path, []byte("# Hz S RI R 50\n1 0.5 0\n"), 0o644))

	s, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 1, s.NumPorts())

	_, err = Read(filepath.Join(dir, "device.txt"))
	require.Error(t, err)
}
