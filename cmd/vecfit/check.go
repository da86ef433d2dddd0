package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/passivity"
)

var (
	checkRoute string
	checkFMax  float64
)

var checkCmd = &cobra.Command{
	Use:   "check <coefficients.yml>",
	Short: "Assess the passivity of a fitted model",
	Long: `Check loads a coefficient file and reports the frequency bands in which
the model violates passivity. The route must match the representation the
model was fitted in: s (scattering, the default), y (admittance) or
r (one-port reflection).`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkRoute, "route", "s", "assessment route (s, y or r)")
	checkCmd.Flags().Float64Var(&checkFMax, "fmax", 0, "sweep bound in Hz for the reflection route (0 derives it from the poles)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	m, err := model.ReadCoefficients(args[0])
	if err != nil {
		return err
	}
	route := passivity.Route(checkRoute)
	bands, err := passivity.Test(m, route, checkFMax)
	if err != nil {
		return err
	}
	passive, err := passivity.IsPassive(m, route, checkFMax)
	if err != nil {
		return err
	}

	if len(bands) == 0 {
		fmt.Println("No passivity violation bands found.")
	} else {
		fmt.Printf("%d passivity violation band(s):\n", len(bands))
		for _, b := range bands {
			if b.Unbounded() {
				fmt.Printf("  from %s to infinity\n", humanize.SIWithDigits(b.Start, 4, "Hz"))
			} else {
				fmt.Printf("  from %s to %s\n",
					humanize.SIWithDigits(b.Start, 4, "Hz"), humanize.SIWithDigits(b.Stop, 4, "Hz"))
			}
		}
	}
	if passive {
		fmt.Println("Model is passive.")
	} else {
		fmt.Println("Model is NOT passive.")
	}
	return nil
}
