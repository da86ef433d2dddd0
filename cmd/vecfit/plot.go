package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/sample"
	"github.com/solvithrastar/vecfit/touchstone"
	"github.com/solvithrastar/vecfit/vfplot"
)

var (
	plotData   string
	plotDir    string
	plotFMax   float64
	plotSigmas bool
)

var plotCmd = &cobra.Command{
	Use:   "plot <coefficients.yml>",
	Short: "Render response and singular value plots of a fitted model",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlot,
}

func init() {
	plotCmd.Flags().StringVar(&plotData, "data", "", "Touchstone file to overlay on the response plots")
	plotCmd.Flags().StringVarP(&plotDir, "output", "o", ".", "output directory")
	plotCmd.Flags().Float64Var(&plotFMax, "fmax", 0, "upper frequency bound in Hz (0 derives it from the poles)")
	plotCmd.Flags().BoolVar(&plotSigmas, "singular", false, "also plot the singular value sweep")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	m, err := model.ReadCoefficients(args[0])
	if err != nil {
		return err
	}
	var data *sample.Samples
	if plotData != "" {
		if data, err = touchstone.Read(plotData); err != nil {
			return err
		}
	}

	n := m.NumPorts()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			path := fmt.Sprintf("%s/response_%d%d.png", plotDir, i+1, j+1)
			if err := vfplot.Magnitude(m, data, i, j, path); err != nil {
				return err
			}
		}
	}
	if plotSigmas {
		fMax := plotFMax
		if fMax <= 0 {
			if data != nil {
				fMax = 1.2 * data.MaxFreq()
			} else {
				fMax = 1.2 * m.MaxPoleFreq()
			}
		}
		if err := vfplot.SingularValues(m, 0, fMax, fmt.Sprintf("%s/singular_values.png", plotDir)); err != nil {
			return err
		}
	}
	fmt.Printf("Plots written to %s\n", plotDir)
	return nil
}
