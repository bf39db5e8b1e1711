package main

import (
	"github.com/spf13/cobra"

	"tbnexplorer2/internal/version"
)

var (
	// Persistent flags shared by every subcommand.
	flagDebugPreserve bool
	flagRepoRoot      string
)

var rootCmd = &cobra.Command{
	Use:   "tbnexplorer2 <input.tbn>",
	Short: "Thermodynamic Binding Networks exploration toolkit",
	Long: `tbnexplorer2 computes the polymer basis, free energies, equilibrium
concentrations, canonical reactions, and IBOT off-target balancing for a
Thermodynamic Binding Network described in a .tbn file.

Run with a .tbn file to compute its polymer basis; see the ibot,
filter, canonical-reactions, and init subcommands for the rest of the
toolkit.`,
	Version: version.Version,
	Args:    cobra.ExactArgs(1),
	RunE:    runRun,
}

func init() {
	rootCmd.SetVersionTemplate("tbnexplorer2 version {{.Version}}\n")
	rootCmd.PersistentFlags().BoolVar(&flagDebugPreserve, "debug-preserve", false,
		"preserve solver input/output files under solver-inputs/")
	rootCmd.PersistentFlags().StringVar(&flagRepoRoot, "config-dir", ".",
		"directory containing .tbnexplorer2/config.json")

	registerRunFlags(rootCmd)
	rootCmd.AddCommand(ibotCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(canonicalReactionsCmd)
	rootCmd.AddCommand(initCmd)
}
