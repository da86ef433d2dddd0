package main

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/solvithrastar/vecfit/fit"
	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/sample"
	"github.com/solvithrastar/vecfit/touchstone"
	"github.com/solvithrastar/vecfit/vfplot"
)

var (
	fitRealPoles    int
	fitCmplxPoles   int
	fitSpacing      string
	fitParameter    string
	fitSkipConstant bool
	fitProportional bool
	fitIterations   int
	fitTolerance    float64
	fitOutput       string
	fitPlot         string
)

var fitCmd = &cobra.Command{
	Use:   "fit <network.sNp>",
	Short: "Fit a pole-residue model to a Touchstone file",
	Long: `Fit reads sampled network data from a Touchstone file and approximates it
with a rational pole-residue model by iterative pole relocation. The fitted
coefficients are written to a YAML file.

Examples:
  vecfit fit my3port.s3p -o my3port.yml
  vecfit fit filter.s2p --real 0 --cmplx 6 --spacing log
  vecfit fit antenna.s1p --parameter s --proportional --plot ./plots`,
	Args: cobra.ExactArgs(1),
	RunE: runFit,
}

func init() {
	fitCmd.Flags().IntVar(&fitRealPoles, "real", 2, "number of initial real poles")
	fitCmd.Flags().IntVar(&fitCmplxPoles, "cmplx", 2, "number of initial complex-conjugate pole pairs")
	fitCmd.Flags().StringVar(&fitSpacing, "spacing", "lin", "initial pole spacing (lin or log)")
	fitCmd.Flags().StringVar(&fitParameter, "parameter", "s", "representation to fit (s, z or y)")
	fitCmd.Flags().BoolVar(&fitSkipConstant, "skip-constant", false, "fit without the constant term d")
	fitCmd.Flags().BoolVar(&fitProportional, "proportional", false, "include the proportional term e")
	fitCmd.Flags().IntVar(&fitIterations, "iterations", 100, "maximum pole relocation iterations")
	fitCmd.Flags().Float64Var(&fitTolerance, "tolerance", 1e-6, "relative convergence tolerance")
	fitCmd.Flags().StringVarP(&fitOutput, "output", "o", "coefficients.yml", "output coefficient file")
	fitCmd.Flags().StringVar(&fitPlot, "plot", "", "directory for diagnostic plots (disabled when empty)")
	rootCmd.AddCommand(fitCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	data, err := touchstone.Read(args[0])
	if err != nil {
		return err
	}

	cfg := fit.NewConfig()
	cfg.NPolesReal = fitRealPoles
	cfg.NPolesCmplx = fitCmplxPoles
	cfg.Spacing = fit.PoleSpacing(fitSpacing)
	cfg.Parameter = sample.ParameterType(fitParameter)
	cfg.FitConstant = !fitSkipConstant
	cfg.FitProportional = fitProportional
	cfg.MaxIterations = fitIterations
	cfg.Tolerance = fitTolerance
	cfg.Logger = slog.Default()

	res, err := fit.Fit(data, cfg)
	if err != nil {
		return err
	}
	rms, err := data.RMSError(res.Model, nil, nil, cfg.Parameter)
	if err != nil {
		return err
	}

	fmt.Printf("Fitted %d ports over %d samples up to %s\n",
		data.NumPorts(), len(data.Freqs), humanize.SIWithDigits(data.MaxFreq(), 3, "Hz"))
	fmt.Printf("Poles: %d, iterations: %d, converged: %v\n",
		len(res.Model.Poles), res.Iterations, res.Converged)
	fmt.Printf("RMS error: %.3e\n", rms)
	for _, w := range res.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	if err := model.WriteCoefficients(res.Model, fitOutput); err != nil {
		return err
	}
	fmt.Printf("Coefficients written to %s\n", fitOutput)

	if fitPlot != "" {
		n := data.NumPorts()
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				path := fmt.Sprintf("%s/response_%d%d.png", fitPlot, i+1, j+1)
				if err := vfplot.Magnitude(res.Model, data, i, j, path); err != nil {
					return err
				}
			}
		}
		if err := vfplot.Convergence(res.History, fmt.Sprintf("%s/convergence.png", fitPlot)); err != nil {
			return err
		}
		fmt.Printf("Plots written to %s\n", fitPlot)
	}
	return nil
}
