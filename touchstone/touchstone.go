// Package touchstone reads sampled network data from Touchstone .sNp files:
// an option line selecting frequency unit, parameter type, number format and
// reference impedance, followed by one row of 2 N^2 values per frequency
// point, possibly wrapped over several lines.
package touchstone

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/sample"
)

var extPorts = regexp.MustCompile(`(?i)\.s(\d+)p$`)

// Read parses the file at path. The port count is taken from the file
// extension (.s1p, .s2p, ...).
func Read(path string) (*sample.Samples, error) {
	match := extPorts.FindStringSubmatch(filepath.Base(path))
	if match == nil {
		return nil, fmt.Errorf("touchstone: cannot derive the port count from filename %q, want an .sNp extension", filepath.Base(path))
	}
	nPorts, err := strconv.Atoi(match[1])
	if err != nil || nPorts < 1 {
		return nil, fmt.Errorf("touchstone: invalid port count in filename %q", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, nPorts)
}

// Parse reads Touchstone data with a known port count.
func Parse(r io.Reader, nPorts int) (*sample.Samples, error) {
	freqScale := 1e9 // Touchstone defaults to GHz
	paramType := sample.Scattering
	format := "MA"
	z0 := 50.0
	haveOptions := false

	var values []float64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "!"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if haveOptions {
				continue // later option lines are ignored
			}
			haveOptions = true
			var err error
			freqScale, paramType, format, z0, err = parseOptions(line)
			if err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(line, "[") {
			return nil, fmt.Errorf("touchstone: version 2.0 keyword %q is not supported", line)
		}
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("touchstone: invalid number %q: %w", field, err)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	perPoint := 1 + 2*nPorts*nPorts
	if len(values) == 0 || len(values)%perPoint != 0 {
		return nil, fmt.Errorf("touchstone: %d values do not divide into %d-port frequency points of %d values each", len(values), nPorts, perPoint)
	}
	nFreqs := len(values) / perPoint

	freqs := make([]float64, nFreqs)
	matrices := make([]*mat.CDense, nFreqs)
	for k := 0; k < nFreqs; k++ {
		row := values[k*perPoint : (k+1)*perPoint]
		freqs[k] = row[0] * freqScale
		if k > 0 && freqs[k] <= freqs[k-1] {
			return nil, fmt.Errorf("touchstone: frequencies must be strictly ascending, got %g after %g", freqs[k], freqs[k-1])
		}
		m := mat.NewCDense(nPorts, nPorts, nil)
		for e := 0; e < nPorts*nPorts; e++ {
			v := decode(row[1+2*e], row[2+2*e], format)
			i, j := e/nPorts, e%nPorts
			if nPorts == 2 {
				// two-port files store the column-major order
				// S11 S21 S12 S22
				i, j = e%2, e/2
			}
			m.Set(i, j, v)
		}
		matrices[k] = m
	}

	// Touchstone stores impedance and admittance data normalized to the
	// reference impedance
	if paramType == sample.Impedance || paramType == sample.Admittance {
		for _, m := range matrices {
			for i := 0; i < nPorts; i++ {
				for j := 0; j < nPorts; j++ {
					if paramType == sample.Impedance {
						m.Set(i, j, m.At(i, j)*complex(z0, 0))
					} else {
						m.Set(i, j, m.At(i, j)/complex(z0, 0))
					}
				}
			}
		}
	}

	z0s := make([]float64, nPorts)
	for i := range z0s {
		z0s[i] = z0
	}
	return sample.New(freqs, matrices, paramType, z0s)
}

func parseOptions(line string) (freqScale float64, t sample.ParameterType, format string, z0 float64, err error) {
	freqScale, t, format, z0 = 1e9, sample.Scattering, "MA", 50
	fields := strings.Fields(strings.ToUpper(line[1:]))
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "HZ":
			freqScale = 1
		case "KHZ":
			freqScale = 1e3
		case "MHZ":
			freqScale = 1e6
		case "GHZ":
			freqScale = 1e9
		case "S":
			t = sample.Scattering
		case "Z":
			t = sample.Impedance
		case "Y":
			t = sample.Admittance
		case "G", "H":
			return 0, "", "", 0, fmt.Errorf("touchstone: hybrid parameter type %q is not supported", fields[i])
		case "RI", "MA", "DB":
			format = fields[i]
		case "R":
			if i+1 >= len(fields) {
				return 0, "", "", 0, fmt.Errorf("touchstone: option R without impedance value")
			}
			i++
			z0, err = strconv.ParseFloat(fields[i], 64)
			if err != nil || z0 <= 0 {
				return 0, "", "", 0, fmt.Errorf("touchstone: invalid reference impedance %q", fields[i])
			}
		default:
			return 0, "", "", 0, fmt.Errorf("touchstone: unknown option %q", fields[i])
		}
	}
	return freqScale, t, format, z0, nil
}

func decode(a, b float64, format string) complex128 {
	switch format {
	case "RI":
		return complex(a, b)
	case "DB":
		return cmplx.Rect(math.Pow(10, a/20), b*math.Pi/180)
	}
	// MA
	return cmplx.Rect(a, b*math.Pi/180)
}
