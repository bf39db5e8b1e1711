package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tbnexplorer2/internal/reactions"
	"tbnexplorer2/internal/tbnio"
)

var canonicalReactionsCmd = &cobra.Command{
	Use:   "canonical-reactions <input.tbn>",
	Short: "Enumerate irreducible canonical reactions over a TBN's polymer basis",
	Args:  cobra.ExactArgs(1),
	RunE:  runCanonicalReactions,
}

func init() {
	canonicalReactionsCmd.Flags().StringVar(&flagOnTarget, "on-target", "",
		"path to a .tbnpolys file listing the on-target polymers (required)")
	canonicalReactionsCmd.Flags().BoolVar(&flagUse4ti2, "use-4ti2", false,
		"use the 4ti2 lattice backend instead of Normaliz")
	canonicalReactionsCmd.Flags().StringArrayVar(&flagParams, "param", nil,
		"bind a {{expr}} variable as name=value (repeatable)")
	canonicalReactionsCmd.Flags().StringVar(&flagParamsFile, "params-file", "",
		"TOML file of {{expr}} variable bindings")
	_ = canonicalReactionsCmd.MarkFlagRequired("on-target")
}

func runCanonicalReactions(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	ctx := context.Background()

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	vars, err := resolveParams(flagParamsFile, flagParams)
	if err != nil {
		return err
	}
	parsed, err := tbnio.ParseTBN(inputPath, vars)
	if err != nil {
		return err
	}
	matrix := parsed.Matrix

	// A*c >= 0 is mandatory for every TBN, falling back to the all-ones
	// vector when concentrations are absent (spec.md §3/§4.1, §8 property 2).
	if err := matrix.CheckStarLimiting(matrix.Concentrations()); err != nil {
		return err
	}

	hash, err := matrix.CanonicalHash()
	if err != nil {
		return err
	}
	basis, err := resolveBasis(ctx, cfg, logger, matrix, hash)
	if err != nil {
		return err
	}

	onTargetPolys, err := tbnio.ParseTBNPolys(flagOnTarget, matrix)
	if err != nil {
		return err
	}
	onTarget, err := indexPolymers(basis.Polymers, onTargetPolys)
	if err != nil {
		return err
	}

	oracle := buildOracle(cfg, flagUse4ti2)
	debug := debugOptions(cfg, "reactions", "canonical-reactions")

	reactionList, err := reactions.ComputeAll(ctx, oracle, basis.Polymers, matrix.NumMonomers(), onTarget, debug)
	if err != nil {
		return err
	}
	if err := reactions.CheckDetailedBalance(reactionList, onTarget); err != nil {
		return err
	}

	for _, r := range reactionList {
		fmt.Println(r.String())
	}
	logger.Info("canonical reactions computed", map[string]interface{}{"count": len(reactionList)})
	return nil
}
