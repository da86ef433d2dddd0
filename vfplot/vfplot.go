// Package vfplot renders diagnostic plots of fitted models with gonum/plot:
// response magnitudes against the sampled data, singular value sweeps for
// passivity inspection and convergence traces of the fitting and
// passivation iterations.
package vfplot

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/solvithrastar/vecfit/fit"
	"github.com/solvithrastar/vecfit/matext"
	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/sample"
	"github.com/solvithrastar/vecfit/statespace"
)

const curvePoints = 1000

// Magnitude plots the fitted response magnitude of one port pair in dB,
// overlaying the sampled data when present. data may be nil, in which case
// the frequency range is derived from the pole spectrum.
func Magnitude(m *model.Model, data *sample.Samples, i, j int, path string) error {
	freqs, err := curveGrid(m, data)
	if err != nil {
		return err
	}
	resp, err := m.Response(i, j, freqs)
	if err != nil {
		return err
	}
	fitted := make(plotter.XYs, len(freqs))
	for k, f := range freqs {
		fitted[k].X = f
		fitted[k].Y = db(cmplx.Abs(resp[k]))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Response (%d,%d)", i+1, j+1)
	p.X.Label.Text = "frequency (Hz)"
	p.Y.Label.Text = "magnitude (dB)"

	if data != nil {
		sampled, err := data.Responses(data.Type)
		if err != nil {
			return err
		}
		n := data.NumPorts()
		pts := make(plotter.XYs, len(data.Freqs))
		for k, f := range data.Freqs {
			pts[k].X = f
			pts[k].Y = db(cmplx.Abs(sampled[i*n+j][k]))
		}
		if err := plotutil.AddLines(p, "Fit", fitted, "Samples", pts); err != nil {
			return err
		}
	} else {
		if err := plotutil.AddLines(p, "Fit", fitted); err != nil {
			return err
		}
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// SingularValues plots the singular values of the model response matrix
// over [fMin, fMax] together with the unity bound, the visual counterpart
// of the scattering passivity assessment.
func SingularValues(m *model.Model, fMin, fMax float64, path string) error {
	if fMax <= fMin {
		return errors.New("vfplot: need fMax > fMin")
	}
	r, err := statespace.FromModel(m)
	if err != nil {
		return err
	}
	n := r.NumPorts()
	curves := make([]plotter.XYs, n)
	for q := range curves {
		curves[q] = make(plotter.XYs, curvePoints)
	}
	for k := 0; k < curvePoints; k++ {
		f := fMin + (fMax-fMin)*float64(k)/float64(curvePoints-1)
		s, err := r.Eval(f)
		if err != nil {
			return err
		}
		sv, err := matext.SingularValues(s)
		if err != nil {
			return err
		}
		for q := 0; q < n; q++ {
			curves[q][k].X = f
			curves[q][k].Y = sv[q]
		}
	}

	p := plot.New()
	p.Title.Text = "Singular values"
	p.X.Label.Text = "frequency (Hz)"
	p.Y.Label.Text = "singular value"

	args := make([]interface{}, 0, 2*n+2)
	for q := 0; q < n; q++ {
		args = append(args, fmt.Sprintf("sigma %d", q+1), curves[q])
	}
	bound := plotter.XYs{{X: fMin, Y: 1}, {X: fMax, Y: 1}}
	args = append(args, "unity", bound)
	if err := plotutil.AddLines(p, args...); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// Convergence plots the relative change of the largest singular value of
// the pole relocation system per iteration on a logarithmic axis.
func Convergence(h fit.History, path string) error {
	if len(h.DeltaMaxSigma) == 0 {
		return errors.New("vfplot: empty fit history")
	}
	pts := make(plotter.XYs, len(h.DeltaMaxSigma))
	for k, d := range h.DeltaMaxSigma {
		pts[k].X = float64(k + 1)
		if d <= 0 {
			d = 1e-16
		}
		pts[k].Y = d
	}
	p := plot.New()
	p.Title.Text = "Fit convergence"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "relative change"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	if err := plotutil.AddLines(p, "delta", pts); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// Passivation plots the violation measure recorded per passivity
// enforcement iteration.
func Passivation(history []float64, path string) error {
	if len(history) == 0 {
		return errors.New("vfplot: empty passivation history")
	}
	pts := make(plotter.XYs, len(history))
	for k, v := range history {
		pts[k].X = float64(k + 1)
		pts[k].Y = v
	}
	p := plot.New()
	p.Title.Text = "Passivity enforcement"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "violation measure"
	if err := plotutil.AddLines(p, "worst", pts); err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

func curveGrid(m *model.Model, data *sample.Samples) ([]float64, error) {
	var lo, hi float64
	if data != nil {
		lo, hi = data.Freqs[0], data.MaxFreq()
	} else {
		hi = 1.2 * m.MaxPoleFreq()
	}
	if hi <= lo {
		return nil, errors.New("vfplot: cannot derive a frequency range from the model")
	}
	freqs := make([]float64, curvePoints)
	for k := range freqs {
		freqs[k] = lo + (hi-lo)*float64(k)/float64(curvePoints-1)
	}
	return freqs, nil
}

func db(v float64) float64 {
	if v <= 0 {
		return -400
	}
	return 20 * math.Log10(v)
}
