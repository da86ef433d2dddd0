// Package spice exports a fitted scattering model as an equivalent N-port
// SPICE subcircuit. The circuit follows the Antonini synthesis: each
// response is realized as a transfer admittance built from passive RL
// branches (real poles) and active RCL+VCCS branches (conjugate pairs),
// driven by controlled sources that recombine the incident and scattered
// waves at the reference impedance of each port.
package spice

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/solvithrastar/vecfit/model"
)

// WriteSubcircuitFile renders the model into a SPICE subcircuit file,
// usually with an .sp extension. z0 holds the per-port reference
// impedances; nil selects 50 ohm everywhere.
func WriteSubcircuitFile(m *model.Model, z0 []float64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSubcircuit(m, z0, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteSubcircuit renders the model as a SPICE subcircuit netlist.
func WriteSubcircuit(m *model.Model, z0 []float64, w io.Writer) error {
	if err := m.Validate(); err != nil {
		return err
	}
	n := m.NumPorts()
	if z0 == nil {
		z0 = make([]float64, n)
		for i := range z0 {
			z0[i] = 50
		}
	}
	if len(z0) != n {
		return fmt.Errorf("spice: %d reference impedances for %d ports", len(z0), n)
	}

	bw := bufio.NewWriter(w)
	subckt := 0
	nextSubckt := func() string {
		subckt++
		return fmt.Sprintf("X%d", subckt)
	}

	fmt.Fprintf(bw, "* EQUIVALENT CIRCUIT FOR A VECTOR FITTED S-MATRIX\n")
	fmt.Fprintf(bw, "*\n")

	ports := make([]string, n)
	for i := range ports {
		ports[i] = fmt.Sprintf("p%d", i+1)
	}
	fmt.Fprintf(bw, ".SUBCKT s_equivalent %s\n", strings.Join(ports, " "))

	for i := 0; i < n; i++ {
		fmt.Fprintf(bw, "*\n* port %d\n", i+1)
		// reference impedance and a dummy source measuring the port current
		fmt.Fprintf(bw, "R%d a%d 0 %s\n", i+1, i+1, eng(z0[i]))
		fmt.Fprintf(bw, "V%d p%d a%d 0\n", i+1, i+1, i+1)
		// incident wave a = V/2/sqrt(Z0) + I/2*sqrt(Z0) recombined by a
		// CCVS and a VCVS
		fmt.Fprintf(bw, "H%d nt%d nts%d V%d %s\n", i+1, i+1, i+1, i+1, eng(z0[i]))
		fmt.Fprintf(bw, "E%d nts%d 0 p%d 0 1\n", i+1, i+1, i+1)

		for j := 0; j < n; j++ {
			resp := i*n + j
			fmt.Fprintf(bw, "* transfer network for s%d%d\n", i+1, j+1)

			// scattered current injected back into the port, measured
			// through the dummy sources of the transfer admittance
			fmt.Fprintf(bw, "F%d%d 0 a%d V%d%d %s\n", i+1, j+1, i+1, i+1, j+1, eng(1/z0[i]))
			fmt.Fprintf(bw, "F%d%d_inv a%d 0 V%d%d_inv %s\n", i+1, j+1, i+1, i+1, j+1, eng(1/z0[i]))
			fmt.Fprintf(bw, "V%d%d nt%d nt%d%d 0\n", i+1, j+1, j+1, i+1, j+1)
			fmt.Fprintf(bw, "V%d%d_inv nt%d nt%d%d_inv 0\n", i+1, j+1, j+1, i+1, j+1)

			// constant term d maps to a conductance, proportional term e
			// to a capacitance
			g := m.ConstantCoeff[resp]
			c := m.ProportionalCoeff[resp]
			if g < 0 {
				fmt.Fprintf(bw, "R%d%d nt%d%d_inv 0 %s\n", i+1, j+1, i+1, j+1, eng(math.Abs(1/g)))
			} else if g > 0 {
				fmt.Fprintf(bw, "R%d%d nt%d%d 0 %s\n", i+1, j+1, i+1, j+1, eng(1/g))
			}
			if c < 0 {
				fmt.Fprintf(bw, "C%d%d nt%d%d_inv 0 %s\n", i+1, j+1, i+1, j+1, eng(math.Abs(c)))
			} else if c > 0 {
				fmt.Fprintf(bw, "C%d%d nt%d%d 0 %s\n", i+1, j+1, i+1, j+1, eng(c))
			}

			for q, pole := range m.Poles {
				residue := m.Residues.At(resp, q)
				node := fmt.Sprintf("%s nt%d%d", nextSubckt(), i+1, j+1)
				if real(residue) < 0 {
					// negate the branch and invert the transfer
					// current direction instead of synthesizing
					// negative elements
					residue = -residue
					node += "_inv"
				}
				if imag(pole) == 0 {
					l := 1 / real(residue)
					r := -real(pole) / real(residue)
					fmt.Fprintf(bw, "%s 0 rl_admittance res=%s ind=%s\n", node, eng(r), eng(l))
				} else {
					l := 1 / (2 * real(residue))
					b := -2 * (real(residue)*real(pole) + imag(residue)*imag(pole))
					r := -real(pole) / real(residue)
					cp := 2 * real(residue) / (cmplx.Abs(pole) * cmplx.Abs(pole))
					gm := b * l * cp
					mult := 1
					if gm < 0 {
						mult = -1
					}
					fmt.Fprintf(bw, "%s 0 rcl_vccs_admittance res=%s cap=%s ind=%s gm=%s mult=%d\n",
						node, eng(r), eng(cp), eng(l), eng(math.Abs(gm)), mult)
				}
			}
		}
	}
	fmt.Fprintf(bw, ".ENDS s_equivalent\n*\n")

	// active admittance of one conjugate pole-residue pair:
	// Y(s) = (s/L + b) / (s^2 + s R/L + 1/(L C))
	fmt.Fprintf(bw, ".SUBCKT rcl_vccs_admittance n_pos n_neg res=1k cap=1n ind=100p gm=1m mult=1\n")
	fmt.Fprintf(bw, "L1 n_pos 1 {ind}\n")
	fmt.Fprintf(bw, "C1 1 2 {cap}\n")
	fmt.Fprintf(bw, "R1 2 n_neg {res}\n")
	fmt.Fprintf(bw, "G1 n_pos n_neg 1 2 {gm} m={mult}\n")
	fmt.Fprintf(bw, ".ENDS rcl_vccs_admittance\n*\n")

	// passive admittance of one real pole-residue pair:
	// Y(s) = (1/L) / (s + R/L)
	fmt.Fprintf(bw, ".SUBCKT rl_admittance n_pos n_neg res=1k ind=100p\n")
	fmt.Fprintf(bw, "L1 n_pos 1 {ind}\n")
	fmt.Fprintf(bw, "R1 1 n_neg {res}\n")
	fmt.Fprintf(bw, ".ENDS rl_admittance\n")

	return bw.Flush()
}

// eng renders a value in SPICE engineering notation (1500 -> 1.5k). SPICE
// wants "meg" for mega and "u" for micro, and no space before the prefix.
func eng(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprintf("%g", v)
	}
	scaled, prefix := humanize.ComputeSI(v)
	switch prefix {
	case "M":
		prefix = "meg"
	case "µ":
		prefix = "u"
	}
	return fmt.Sprintf("%.4g%s", scaled, prefix)
}
