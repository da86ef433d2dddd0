package passivity

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/statespace"
)

// unboundedOmega stands in for the upper edge of an unbounded violation
// band during the extrema search, in rad/s.
const unboundedOmega = 2 * math.Pi * 1e16

// extremaSamples is the number of samples per spacing rule resolving each
// violation band in the extrema search.
const extremaSamples = 21

// violationExtrema samples each violation band on interleaved linear and
// logarithmic grids and collects the local extrema of the violation measure:
// local minima of Re(Y) below zero for the admittance route, local maxima of
// |Y| above one for the reflection route. The returned points are sorted
// purely imaginary frequencies s = jw; worst is the most negative Re(Y) or
// the largest |Y| seen across all bands.
func violationExtrema(m *model.Model, bands []Band, route Route) (points []complex128, worst float64, err error) {
	cr, err := statespace.CompactFromModel(m, 0)
	if err != nil {
		return nil, 0, err
	}
	if route == RouteReflection {
		worst = math.Inf(-1)
	} else {
		worst = math.Inf(1)
	}

	for _, band := range bands {
		w1 := 2 * math.Pi * band.Start
		w2 := unboundedOmega
		if !band.Unbounded() {
			w2 = 2 * math.Pi * band.Stop
		}

		grid := make([]float64, 0, 2*extremaSamples)
		for i := 0; i < extremaSamples; i++ {
			grid = append(grid, w1+(w2-w1)*float64(i)/float64(extremaSamples-1))
		}
		logLo := math.Log10(w1)
		if w1 == 0 {
			logLo = -8
		}
		logHi := math.Log10(w2)
		for i := 0; i < extremaSamples; i++ {
			grid = append(grid, math.Pow(10, logLo+(logHi-logLo)*float64(i)/float64(extremaSamples-1)))
		}
		sort.Float64s(grid)

		g := make([]float64, len(grid))
		for k, w := range grid {
			y := cr.Eval(complex(0, w))
			if route == RouteReflection {
				g[k] = cmplx.Abs(y)
				if g[k] > worst {
					worst = g[k]
				}
			} else {
				g[k] = real(y)
				if g[k] < worst {
					worst = g[k]
				}
			}
		}

		violates := func(v float64) bool {
			if route == RouteReflection {
				return v > 1
			}
			return v < 0
		}
		if violates(g[0]) {
			points = append(points, complex(0, grid[0]))
		}
		for k := 1; k < len(g)-1; k++ {
			if !violates(g[k]) {
				continue
			}
			if route == RouteReflection {
				if g[k] > g[k-1] && g[k] > g[k+1] {
					points = append(points, complex(0, grid[k]))
				}
			} else {
				if g[k] < g[k-1] && g[k] < g[k+1] {
					points = append(points, complex(0, grid[k]))
				}
			}
		}
	}

	sort.Slice(points, func(i, j int) bool { return imag(points[i]) < imag(points[j]) })
	return points, worst, nil
}
