package passivity

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/solvithrastar/vecfit/matext"
	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/sample"
	"github.com/solvithrastar/vecfit/statespace"
)

// EnforceConfig tunes the passivity enforcement.
type EnforceConfig struct {
	// NSamples is the number of linearly spaced evaluation frequencies of
	// the scattering route. Zero selects 200.
	NSamples int
	// FMax is the highest frequency of interest in Hz. It is only needed
	// when no sampled data is supplied; with data, the highest sample
	// frequency is used.
	FMax float64
	// MaxIterations bounds the perturbation loop: the singular value clamp
	// iterations of the scattering route (default 100) or the outer
	// iterations of the residue perturbation routes (default 60).
	MaxIterations int
	// Logger receives progress and warning records; nil disables logging.
	Logger *slog.Logger
}

// EnforceResult reports the outcome of a passivity enforcement run.
type EnforceResult struct {
	// Passive is true when the final assessment finds no violations.
	Passive bool
	// Iterations actually performed.
	Iterations int
	// History tracks the violation measure per iteration: the greatest
	// singular value for the scattering route, the worst eigenvalue of
	// Re(Y) or magnitude of the response for the perturbation routes.
	History []float64
	// RemainingBands holds any violation bands left after enforcement.
	RemainingBands []Band
	Warnings       []string
}

func (r *EnforceResult) warnf(logger *slog.Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	if logger != nil {
		logger.Warn(msg)
	}
}

// sigmaCeil is the largest admissible perturbation target for the clamped
// singular values when the sampled data gives no tighter bound.
const sigmaCeil = 0.999

// EnforceScattering perturbs the residues and constants of a non-passive
// scattering model until no singular value of S exceeds one, following the
// iterative clamp of Dhaene, Deschrijver and Stevens: on a linear frequency
// grid covering all violations, singular values above a target ceiling are
// clamped, the excess response is refit per port pair and subtracted from
// the coefficients. The poles are never moved. data supplies the frequency
// range and the ceiling and may be nil if cfg.FMax is set.
func EnforceScattering(m *model.Model, data *sample.Samples, cfg EnforceConfig) (*EnforceResult, error) {
	if cfg.NSamples <= 0 {
		cfg.NSamples = 200
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	res := &EnforceResult{}

	passive, err := IsPassive(m, RouteScattering, 0)
	if err != nil {
		return nil, err
	}
	if passive {
		if cfg.Logger != nil {
			cfg.Logger.Info("passivity enforcement: the model is already passive, nothing to do")
		}
		res.Passive = true
		return res, nil
	}
	bands, err := TestScattering(m)
	if err != nil {
		return nil, err
	}

	fViolMax := bands[len(bands)-1].Stop
	if math.IsInf(fViolMax, 1) {
		fViolMax = 1.5 * bands[len(bands)-1].Start
		res.warnf(cfg.Logger, "passivity enforcement: the passivity violations of this model are unbounded; enforcement might still work, but consider re-fitting with fewer poles or without the constant term")
	}
	var fSamplesMax float64
	switch {
	case data != nil:
		fSamplesMax = data.MaxFreq()
	case cfg.FMax > 0:
		fSamplesMax = cfg.FMax
	default:
		return nil, errors.New("passivity: enforcement needs either sampled data or an explicit frequency bound")
	}
	fEvalMax := 1.2 * math.Max(fViolMax, fSamplesMax)
	freqs := floats.Span(make([]float64, cfg.NSamples), 0, fEvalMax)

	r, err := statespace.FromModel(m)
	if err != nil {
		return nil, err
	}
	dim := r.StateDim()
	if dim == 0 {
		return nil, errors.New("passivity: a model without poles has no residues to perturb")
	}
	n := r.NumPorts()

	ct := mat.DenseCopyOf(r.C)
	var dt *mat.Dense
	for i := 0; i < n && dt == nil; i++ {
		for j := 0; j < n; j++ {
			if r.D.At(i, j) != 0 {
				dt = mat.DenseCopyOf(r.D)
				break
			}
		}
	}

	// perturbation target: clamp singular values down to the largest
	// sampled one, capped at sigmaCeil
	delta := sigmaCeil
	if data != nil {
		sv, err := data.MaxSingularValue()
		if err != nil {
			return nil, err
		}
		if sv < delta {
			delta = sv
		}
	}

	// the coefficient blocks (jwI - A)^-1 B depend only on the fixed poles
	coefRe := make([]*mat.Dense, len(freqs))
	coefIm := make([]*mat.Dense, len(freqs))
	for k, f := range freqs {
		coefRe[k], coefIm[k], err = r.ResolventB(f)
		if err != nil {
			return nil, err
		}
	}

	nCols := dim
	if dt != nil {
		nCols++
	}
	sViol := make([]*mat.CDense, len(freqs))
	for t := 0; t < cfg.MaxIterations; t++ {
		var sigmaMax float64
		anyViol := false
		for k := range freqs {
			var sre, sim mat.Dense
			sre.Mul(ct, coefRe[k])
			if dt != nil {
				sre.Add(&sre, dt)
			}
			sim.Mul(ct, coefIm[k])

			u, sv, v, err := matext.CSVD(matext.FromParts(&sre, &sim))
			if err != nil {
				return nil, err
			}
			if sv[0] > sigmaMax {
				sigmaMax = sv[0]
			}
			// response contributed by the clamped part of the spectrum
			viol := mat.NewCDense(n, n, nil)
			for q, sigma := range sv {
				if sigma <= delta {
					continue
				}
				anyViol = true
				excess := complex(sigma-delta, 0)
				for i := 0; i < n; i++ {
					for j := 0; j < n; j++ {
						viol.Set(i, j, viol.At(i, j)+u.At(i, q)*excess*cmplx.Conj(v.At(j, q)))
					}
				}
			}
			sViol[k] = viol
		}
		res.Iterations++
		res.History = append(res.History, sigmaMax)
		if cfg.Logger != nil {
			cfg.Logger.Debug("passivity enforcement", "iteration", res.Iterations, "max_sigma", sigmaMax)
		}
		if sigmaMax < 1 && !anyViol {
			break
		}

		// refit the excess per excitation port and subtract it
		for i := 0; i < n; i++ {
			a := mat.NewDense(2*len(freqs), nCols, nil)
			b := mat.NewDense(2*len(freqs), n, nil)
			for k := range freqs {
				for q := 0; q < dim; q++ {
					a.Set(k, q, coefRe[k].At(q, i))
					a.Set(len(freqs)+k, q, coefIm[k].At(q, i))
				}
				if dt != nil {
					a.Set(k, dim, 1)
				}
				for j := 0; j < n; j++ {
					v := sViol[k].At(j, i)
					b.Set(k, j, real(v))
					b.Set(len(freqs)+k, j, imag(v))
				}
			}
			ls, err := matext.SolveLstSq(a, b, -1)
			if err != nil {
				return nil, err
			}
			for j := 0; j < n; j++ {
				for q := 0; q < dim; q++ {
					ct.Set(j, q, ct.At(j, q)-ls.X.At(q, j))
				}
				if dt != nil {
					dt.Set(j, i, dt.At(j, i)-ls.X.At(dim, j))
				}
			}
		}

		if sigmaMax < 1 {
			break
		}
	}
	if res.Iterations == cfg.MaxIterations {
		res.warnf(cfg.Logger, "passivity enforcement: aborting after the maximum number of iterations (%d)", cfg.MaxIterations)
	}

	// fold the perturbed coefficients back into the model
	for i := 0; i < n; i++ {
		k := 0
		for j := 0; j < n; j++ {
			resp := i*n + j
			for z, p := range m.Poles {
				if imag(p) == 0 {
					m.Residues.Set(resp, z, complex(ct.At(i, k), 0))
					k++
				} else {
					m.Residues.Set(resp, z, complex(ct.At(i, k), ct.At(i, k+1)))
					k += 2
				}
			}
			if dt != nil {
				m.ConstantCoeff[resp] = dt.At(i, j)
			}
		}
	}

	remaining, err := TestScattering(m)
	if err != nil {
		return nil, err
	}
	res.RemainingBands = remaining
	res.Passive = len(remaining) == 0
	if !res.Passive {
		res.warnf(cfg.Logger, "passivity enforcement was not successful; the model is still non-passive in %d bands, try a larger number of samples", len(remaining))
	}
	return res, nil
}
