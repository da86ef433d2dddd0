// Package fit implements rational approximation of sampled frequency
// responses by iterative pole relocation, based on the vector fitting
// algorithm with relaxed non-triviality and fast QR block compression,
// followed by a linear residue solve with the poles held fixed.
package fit

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
)

// PoleSpacing selects the placement of the initial poles across the
// normalized frequency span.
type PoleSpacing string

const (
	Linear      PoleSpacing = "lin"
	Logarithmic PoleSpacing = "log"
)

// Config collects the fitting parameters. Zero values are filled in by
// NewConfig; a Config built by hand must set MaxIterations and Tolerance.
type Config struct {
	// NPolesReal and NPolesCmplx set the initial pole counts. Their sum
	// must be positive; a model with zero total poles is rejected.
	NPolesReal  int
	NPolesCmplx int
	// Spacing places the initial poles linearly or logarithmically. An
	// unsupported value degrades to linear with a warning.
	Spacing PoleSpacing
	// Parameter selects the sampled representation to fit (s, z or y).
	Parameter sample.ParameterType
	// FitConstant includes the constant term d in the fit.
	FitConstant bool
	// FitProportional includes the proportional term e in the fit.
	FitProportional bool
	// MaxIterations bounds the pole relocation loop.
	MaxIterations int
	// Tolerance is the relative convergence criterion on the largest
	// singular value of the relocation system.
	Tolerance float64
	// Logger receives progress and warning records; nil disables logging.
	Logger *slog.Logger
}

// NewConfig returns a Config with the default parameters.
func NewConfig() Config {
	return Config{
		NPolesReal:    2,
		NPolesCmplx:   2,
		Spacing:       Linear,
		Parameter:     sample.Scattering,
		FitConstant:   true,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// History holds the per-iteration diagnostic scalars of one fit call.
type History struct {
	// DRes is the shared denominator coefficient of each iteration.
	DRes []float64
	// DeltaMaxSigma is the relative change of the largest singular value
	// of the least-squares system per iteration; the convergence signal.
	DeltaMaxSigma []float64
	// CondA is the condition number of the compressed system per
	// iteration.
	CondA []float64
}

// Result is the outcome of one fit call. Diagnostics live here rather than
// in engine state, so unrelated fit invocations cannot leak history into
// each other.
type Result struct {
	Model      *model.Model
	Converged  bool
	Iterations int
	History    History
	Warnings   []string
}

func (r *Result) warnf(logger *slog.Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	if logger != nil {
		logger.Warn(msg)
	}
}

// dResTol is the clamp threshold for the shared denominator coefficient.
const dResTol = 1e-8

// Fit runs the pole relocation loop on the sampled data and solves for the
// residues with the final poles. The sampled frequencies are normalized by
// their average during the iterations to improve conditioning; the returned
// model is denormalized back to the physical frequency scale.
func Fit(data *sample.Samples, cfg Config) (*Result, error) {
	if cfg.NPolesReal < 0 || cfg.NPolesCmplx < 0 || cfg.NPolesReal+cfg.NPolesCmplx == 0 {
		return nil, errors.New("fit: at least one real or complex starting pole is required")
	}
	if cfg.MaxIterations <= 0 || cfg.Tolerance <= 0 {
		return nil, errors.New("fit: MaxIterations and Tolerance must be positive")
	}

	res := &Result{}

	responses, err := data.Responses(cfg.Parameter)
	if err != nil {
		return nil, err
	}
	nResp := len(responses)
	nFreqs := len(data.Freqs)
	nSamples := nResp * nFreqs

	// normalized frequency grid
	var norm float64
	for _, f := range data.Freqs {
		norm += f
	}
	norm /= float64(nFreqs)
	s := make([]complex128, nFreqs)
	fmin, fmax := math.Inf(1), math.Inf(-1)
	for k, f := range data.Freqs {
		fn := f / norm
		s[k] = complex(0, 2*math.Pi*fn)
		fmin = math.Min(fmin, fn)
		fmax = math.Max(fmax, fn)
	}

	poles := initialPoles(cfg, fmin, fmax, res)

	// responses are weighted by their inverse norm; one extra equation
	// enforces global non-triviality
	weights := make([]float64, nResp)
	var weightExtra float64
	for r, resp := range responses {
		var nrm float64
		for _, v := range resp {
			nrm += real(v)*real(v) + imag(v)*imag(v)
		}
		if nrm == 0 {
			// an identically zero response has no scale of its own and
			// contributes nothing to the non-triviality equation
			weights[r] = 1
			continue
		}
		weights[r] = 1 / math.Sqrt(nrm)
		weightExtra += nrm * weights[r] * weights[r]
	}
	weightExtra = math.Sqrt(weightExtra) / float64(nSamples)
	// the weights multiply samples that get squared during the solve
	for r := range weights {
		weights[r] = math.Sqrt(weights[r])
	}
	weightExtra = math.Sqrt(weightExtra)

	maxSingular := 1.0
	converged := false
	stop := false
	iter := 0
	for iter = 1; iter <= cfg.MaxIterations; iter++ {
		newPoles, dRes, sv, cond, err := relocate(poles, s, responses, weights, weightExtra, nSamples, cfg, res)
		if err != nil {
			return nil, err
		}
		res.History.DRes = append(res.History.DRes, dRes)
		res.History.CondA = append(res.History.CondA, cond)
		poles = newPoles

		delta := math.Abs(1 - sv/maxSingular)
		res.History.DeltaMaxSigma = append(res.History.DeltaMaxSigma, delta)
		maxSingular = sv
		if cfg.Logger != nil {
			cfg.Logger.Debug("pole relocation", "iteration", iter, "delta", delta, "cond", cond)
		}

		if delta < cfg.Tolerance {
			if converged {
				// two consecutive iterations below tolerance
				stop = true
			} else {
				converged = true
			}
		} else {
			converged = false
		}
		if stop {
			break
		}
	}
	res.Iterations = min(iter, cfg.MaxIterations)
	res.Converged = stop
	if !stop {
		var hint string
		maxCond := 0.0
		for _, c := range res.History.CondA {
			maxCond = math.Max(maxCond, c)
		}
		if maxCond > 1e10 {
			hint = fmt.Sprintf(" Hint: the linear system was ill-conditioned (max. condition number = %.3g); this often means that more poles are required.", maxCond)
		}
		if converged {
			res.warnf(cfg.Logger, "fit: the pole relocation process barely converged to tolerance within the iteration budget (%d).%s", cfg.MaxIterations, hint)
		} else {
			res.warnf(cfg.Logger, "fit: the pole relocation process stopped after reaching the maximum number of iterations (%d) without converging.%s", cfg.MaxIterations, hint)
		}
	}

	m, err := solveResidues(poles, s, responses, cfg)
	if err != nil {
		return nil, err
	}
	denormalize(m, norm)
	res.Model = m

	// advisory only: a passive source with a non-passive fit suggests
	// running passivity enforcement
	if cfg.Parameter == sample.Scattering && !cfg.FitProportional {
		if passive, err := data.IsPassive(); err == nil && passive {
			if fitPassive, err := modelScatteringPassive(m); err == nil && !fitPassive {
				res.warnf(cfg.Logger, "fit: the sampled network is passive but the fitted model is not; consider enforcing passivity before using it")
			}
		}
	}
	return res, nil
}

// initialPoles spreads the starting poles across the normalized span. Real
// poles are placed at -w, complex pairs at (-0.01 + j) w.
func initialPoles(cfg Config, fmin, fmax float64, res *Result) []complex128 {
	spacing := cfg.Spacing
	switch spacing {
	case Linear, Logarithmic:
	default:
		res.warnf(cfg.Logger, "fit: invalid initial pole spacing %q; proceeding with linear spacing", spacing)
		spacing = Linear
	}
	if fmin == 0 {
		// log spacing cannot start at dc; nudge the lower edge
		fmin += 0.1
	}

	space := func(n int) []float64 {
		if n == 0 {
			return nil
		}
		out := make([]float64, n)
		if n == 1 {
			out[0] = fmin
			return out
		}
		if spacing == Logarithmic {
			return floats.LogSpan(out, fmin, fmax)
		}
		return floats.Span(out, fmin, fmax)
	}

	poles := make([]complex128, 0, cfg.NPolesReal+cfg.NPolesCmplx)
	for _, f := range space(cfg.NPolesReal) {
		poles = append(poles, complex(-2*math.Pi*f, 0))
	}
	for _, f := range space(cfg.NPolesCmplx) {
		omega := 2 * math.Pi * f
		poles = append(poles, complex(-0.01*omega, omega))
	}
	return poles
}

// basisColumns returns the partial-fraction coefficient columns for the
// current pole set at the sample frequencies: one column per real pole and
// a real/imaginary column pair per conjugate pair.
//
// real pole p:            r' / (s - p')           -> 1/(s-p)
// conjugate pair (r, p):  r/(s-p) + conj(r)/(s-conj(p))
//
//	coefficient for r' is 1/(s-p) + 1/(s-conj(p))
//	coefficient for r'' is j/(s-p) - j/(s-conj(p))
func basisColumns(poles []complex128, s []complex128) [][]complex128 {
	var cols [][]complex128
	for _, p := range poles {
		if imag(p) == 0 {
			col := make([]complex128, len(s))
			for k, sk := range s {
				col[k] = 1 / (sk - p)
			}
			cols = append(cols, col)
		} else {
			re := make([]complex128, len(s))
			im := make([]complex128, len(s))
			pc := cmplx.Conj(p)
			for k, sk := range s {
				re[k] = 1/(sk-p) + 1/(sk-pc)
				im[k] = 1i/(sk-p) - 1i/(sk-pc)
			}
			cols = append(cols, re, im)
		}
	}
	return cols
}

// relocate performs one pole relocation step: per-response QR compression,
// a stacked weighted least-squares solve for the shared denominator
// coefficients, and eigenvalue extraction from the rank-1 corrected test
// matrix.
func relocate(poles []complex128, s []complex128, responses [][]complex128,
	weights []float64, weightExtra float64, nSamples int, cfg Config, res *Result,
) (newPoles []complex128, dRes float64, maxSigma, cond float64, err error) {
	nFreqs := len(s)
	coeffs := basisColumns(poles, s)
	nPoleCols := len(coeffs)

	nColsUnused := nPoleCols
	idxConstant, idxProportional := -1, -1
	if cfg.FitConstant {
		idxConstant = nColsUnused
		nColsUnused++
	}
	if cfg.FitProportional {
		idxProportional = nColsUnused
		nColsUnused++
	}
	nColsUsed := nPoleCols + 1
	nCols := nColsUnused + nColsUsed

	aFast := mat.NewDense(len(responses)*nColsUsed+1, nColsUsed, nil)
	for r, resp := range responses {
		// complex coefficient matrix of one response, stacked
		// [Re; Im] for the orthogonal factorization
		ar := mat.NewDense(2*nFreqs, nCols, nil)
		for k := 0; k < nFreqs; k++ {
			for c, col := range coeffs {
				ar.Set(k, c, real(col[k]))
				ar.Set(nFreqs+k, c, imag(col[k]))
				// duplicate block scaled by the negated response
				v := -resp[k] * col[k]
				ar.Set(k, nColsUnused+c, real(v))
				ar.Set(nFreqs+k, nColsUnused+c, imag(v))
			}
			if idxConstant >= 0 {
				ar.Set(k, idxConstant, 1)
			}
			if idxProportional >= 0 {
				ar.Set(k, idxProportional, real(s[k]))
				ar.Set(nFreqs+k, idxProportional, imag(s[k]))
			}
			// shared scalar denominator unknown
			ar.Set(k, nCols-1, real(-resp[k]))
			ar.Set(nFreqs+k, nCols-1, imag(-resp[k]))
		}

		// only the lower-right block of the triangular factor relates
		// the shared denominator unknowns (fast variant)
		var qr mat.QR
		qr.Factorize(ar)
		var rFull mat.Dense
		qr.RTo(&rFull)
		for i := 0; i < nColsUsed; i++ {
			for j := 0; j < nColsUsed; j++ {
				if nColsUnused+j >= nColsUnused+i {
					aFast.Set(r*nColsUsed+i, j, weights[r]*rFull.At(nColsUnused+i, nColsUnused+j))
				}
			}
		}
	}

	// extra equation to avoid the trivial zero solution: weighted sum over
	// samples equals the sample count
	last := len(responses) * nColsUsed
	for c, col := range coeffs {
		var sum float64
		for k := range s {
			sum += real(col[k])
		}
		aFast.Set(last, c, weightExtra*sum)
	}
	aFast.Set(last, nColsUsed-1, weightExtra*float64(nFreqs))

	b := make([]float64, len(responses)*nColsUsed+1)
	b[last] = weightExtra * float64(nSamples)

	x, ls, err := matext.SolveLstSqVec(aFast, b, -1)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	cRes := x[:nColsUsed-1]
	dRes = x[nColsUsed-1]

	// near-zero shared denominator would break the eigenvalue extraction;
	// clamp and warn (usually a sign that more starting poles are needed)
	if math.Abs(dRes) < dResTol {
		if dRes >= 0 {
			dRes = dResTol
		} else {
			dRes = -dResTol
		}
		res.warnf(cfg.Logger, "fit: clamped near-zero denominator coefficient to %g; more starting poles are probably required", dRes)
	}

	// test matrix with pole data on the block diagonal minus the rank-1
	// correction from the denominator coefficients; its eigenvalues are
	// the relocated poles
	h := mat.NewDense(nPoleCols, nPoleCols, nil)
	row := 0
	for _, p := range poles {
		if imag(p) == 0 {
			h.Set(row, row, real(p))
			for j := 0; j < nPoleCols; j++ {
				h.Set(row, j, h.At(row, j)-cRes[j]/dRes)
			}
			row++
		} else {
			h.Set(row, row, real(p))
			h.Set(row, row+1, imag(p))
			h.Set(row+1, row, -imag(p))
			h.Set(row+1, row+1, real(p))
			for j := 0; j < nPoleCols; j++ {
				h.Set(row, j, h.At(row, j)-2*cRes[j]/dRes)
			}
			row += 2
		}
	}
	eigs, err := matext.Eigenvalues(h)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	return matext.CanonicalPoles(eigs), dRes, ls.SingularValues[0], ls.Cond, nil
}
