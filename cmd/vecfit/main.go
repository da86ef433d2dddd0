// Command vecfit fits rational pole-residue models to sampled network data
// and assesses, enforces and exports their passivity.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "vecfit",
	Short: "Rational pole-residue fitting of sampled network responses",
	Long: `vecfit approximates sampled frequency responses of multi-port networks
with rational pole-residue models (vector fitting), assesses the passivity
of the fitted models and enforces it where needed. Models are stored as
YAML coefficient files and can be exported as SPICE subcircuits.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
