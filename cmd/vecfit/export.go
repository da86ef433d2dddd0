package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solvithrastar/vecfit/model"
	"github.com/solvithrastar/vecfit/spice"
)

var (
	exportOutput string
	exportZ0     float64
)

var exportCmd = &cobra.Command{
	Use:   "export <coefficients.yml>",
	Short: "Export a fitted scattering model as a SPICE subcircuit",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "model.sp", "output SPICE netlist file")
	exportCmd.Flags().Float64Var(&exportZ0, "z0", 50, "reference impedance per port in ohm")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	m, err := model.ReadCoefficients(args[0])
	if err != nil {
		return err
	}
	z0 := make([]float64, m.NumPorts())
	for i := range z0 {
		z0[i] = exportZ0
	}
	if err := spice.WriteSubcircuitFile(m, z0, exportOutput); err != nil {
		return err
	}
	fmt.Printf("SPICE subcircuit written to %s\n", exportOutput)
	return nil
}
