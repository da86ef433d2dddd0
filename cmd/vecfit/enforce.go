package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/passivity"
	"github.com/solvithrastar/vecfit/sample"
	"github.com/solvithrastar/vecfit/touchstone"
	"github.com/solvithrastar/vecfit/vfplot"
)

var (
	enforceRoute      string
	enforceSamples    int
	enforceFMaxFlag   float64
	enforceData       string
	enforceIterations int
	enforceOutput     string
	enforcePlot       string
)

var enforceCmd = &cobra.Command{
	Use:   "enforce <coefficients.yml>",
	Short: "Enforce the passivity of a fitted model",
	Long: `Enforce perturbs the residues and constants of a non-passive model until
the passivity assessment is clean, keeping the poles fixed. The scattering
route clamps singular values on a frequency grid; the admittance and
reflection routes solve constrained residue perturbation problems and need
the original Touchstone data via --data.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnforce,
}

func init() {
	enforceCmd.Flags().StringVar(&enforceRoute, "route", "s", "enforcement route (s, y or r)")
	enforceCmd.Flags().IntVar(&enforceSamples, "samples", 200, "evaluation samples of the scattering route")
	enforceCmd.Flags().Float64Var(&enforceFMaxFlag, "fmax", 0, "highest frequency of interest in Hz when no data is given")
	enforceCmd.Flags().StringVar(&enforceData, "data", "", "Touchstone file with the sampled data the model was fitted to")
	enforceCmd.Flags().IntVar(&enforceIterations, "iterations", 0, "iteration budget (0 selects the route default)")
	enforceCmd.Flags().StringVarP(&enforceOutput, "output", "o", "", "output coefficient file (defaults to overwriting the input)")
	enforceCmd.Flags().StringVar(&enforcePlot, "plot", "", "write a passivation history plot to this file")
	rootCmd.AddCommand(enforceCmd)
}

func runEnforce(cmd *cobra.Command, args []string) error {
	m, err := model.ReadCoefficients(args[0])
	if err != nil {
		return err
	}
	var data *sample.Samples
	if enforceData != "" {
		if data, err = touchstone.Read(enforceData); err != nil {
			return err
		}
	}

	cfg := passivity.EnforceConfig{
		NSamples:      enforceSamples,
		FMax:          enforceFMaxFlag,
		MaxIterations: enforceIterations,
		Logger:        slog.Default(),
	}
	var res *passivity.EnforceResult
	switch passivity.Route(enforceRoute) {
	case passivity.RouteScattering:
		res, err = passivity.EnforceScattering(m, data, cfg)
	case passivity.RouteAdmittance:
		res, err = passivity.EnforceAdmittance(m, data, cfg)
	case passivity.RouteReflection:
		res, err = passivity.EnforceReflection(m, data, cfg)
	default:
		return passivity.ErrRoute
	}
	if err != nil {
		return err
	}

	fmt.Printf("Enforcement finished after %d iteration(s), passive: %v\n", res.Iterations, res.Passive)
	for _, w := range res.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	out := enforceOutput
	if out == "" {
		out = args[0]
	}
	if err := model.WriteCoefficients(m, out); err != nil {
		return err
	}
	fmt.Printf("Coefficients written to %s\n", out)

	if enforcePlot != "" && len(res.History) > 0 {
		if err := vfplot.Passivation(res.History, enforcePlot); err != nil {
			return err
		}
	}
	return nil
}
