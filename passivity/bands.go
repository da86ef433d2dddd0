// Package passivity assesses and restores the passivity of fitted
// pole-residue models. Three assessment routes exist, selected by the
// representation of the fitted data: an algebraic half-size test matrix for
// scattering models, a crossover-frequency eigenvalue test for admittance
// models and a dense magnitude sweep for one-port reflection models. All
// routes report violations as sorted disjoint frequency bands in Hz.
//
// Two enforcement strategies repair a non-passive model by perturbing its
// residues and constants while leaving the poles untouched: an iterative
// singular value clamp for scattering models and a constrained fast residue
// perturbation for admittance and reflection models.
package passivity

import (
	"fmt"
	"math"
	"sort"
)

// Band is one contiguous frequency band of passivity violation, in Hz.
// Stop is +Inf when the violation extends to infinite frequency.
type Band struct {
	Start float64
	Stop  float64
}

// Unbounded reports whether the band extends to infinite frequency.
func (b Band) Unbounded() bool {
	return math.IsInf(b.Stop, 1)
}

func (b Band) String() string {
	if b.Unbounded() {
		return fmt.Sprintf("[%.6g Hz, inf)", b.Start)
	}
	return fmt.Sprintf("[%.6g Hz, %.6g Hz]", b.Start, b.Stop)
}

// mergeBands sorts bands by start frequency and joins bands that touch or
// overlap, so the result is sorted and disjoint.
func mergeBands(bands []Band) []Band {
	if len(bands) < 2 {
		return bands
	}
	sort.Slice(bands, func(i, j int) bool {
		if bands[i].Start != bands[j].Start {
			return bands[i].Start < bands[j].Start
		}
		return bands[i].Stop < bands[j].Stop
	})
	merged := bands[:1]
	for _, b := range bands[1:] {
		last := &merged[len(merged)-1]
		if b.Start <= last.Stop {
			if b.Stop > last.Stop {
				last.Stop = b.Stop
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}
