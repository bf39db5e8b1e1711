package main

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/ibot"
	"tbnexplorer2/internal/reactions"
	"tbnexplorer2/internal/tbn"
	"tbnexplorer2/internal/tbnio"
)

var (
	flagOnTarget      string
	flagBoundedTarget string
	flagGenerateTBN   string
)

var ibotCmd = &cobra.Command{
	Use:   "ibot <input.tbn>",
	Short: "Run the IBOT scheduler to assign off-target concentration exponents",
	Args:  cobra.ExactArgs(1),
	RunE:  runIBOT,
}

func init() {
	ibotCmd.Flags().StringVar(&flagOnTarget, "on-target", "", "path to a .tbnpolys file listing the on-target polymers (required)")
	ibotCmd.Flags().StringVar(&flagBoundedTarget, "bounded-target", "", "path to a .tbnpolys file listing off-target polymers to bound reaction enumeration to")
	ibotCmd.Flags().StringVar(&flagGenerateTBN, "generate-tbn", "", "c,units: synthesize monomer concentrations at total concentration c in the given units and write a new .tbn file")
	ibotCmd.Flags().BoolVar(&flagUse4ti2, "use-4ti2", false, "use the 4ti2 lattice backend instead of Normaliz")
	ibotCmd.Flags().StringArrayVar(&flagParams, "param", nil, "bind a {{expr}} variable as name=value (repeatable)")
	ibotCmd.Flags().StringVar(&flagParamsFile, "params-file", "", "TOML file of {{expr}} variable bindings")
	ibotCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output .tbnpolys path for the mu assignment (default: <input>.ibot.tbnpolys)")
	_ = ibotCmd.MarkFlagRequired("on-target")
}

func runIBOT(cmd *cobra.Command, args []string) error {
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
	debug := debugOptions(cfg, "reactions", "ibot")

	var reactionList []reactions.Reaction
	if flagBoundedTarget != "" {
		boundedPolys, berr := tbnio.ParseTBNPolys(flagBoundedTarget, matrix)
		if berr != nil {
			return berr
		}
		targetIdx, berr := indexPolymers(basis.Polymers, boundedPolys)
		if berr != nil {
			return berr
		}
		targets := make([]int, 0, len(targetIdx))
		for p := range targetIdx {
			targets = append(targets, p)
		}
		reactionList, err = reactions.ComputeForTargets(ctx, oracle, basis.Polymers, matrix.NumMonomers(), onTarget, targets, debug)
	} else {
		reactionList, err = reactions.ComputeAll(ctx, oracle, basis.Polymers, matrix.NumMonomers(), onTarget, debug)
	}
	if err != nil {
		return err
	}

	if err := reactions.CheckDetailedBalance(reactionList, onTarget); err != nil {
		return err
	}

	assignment, err := ibot.Run(reactionList, onTarget, len(basis.Polymers))
	if err != nil {
		return err
	}

	ibotLogger := logger.WithComponent("ibot")
	for i, muMin := range assignment.IterationMins {
		ibotLogger.LogIteration(i+1, muMin, map[string]interface{}{"assigned": assignment.IterationAssigned[i]})
	}

	order := ibot.OrderForOutput(len(basis.Polymers), onTarget, assignment)
	orderedPolymers := make([][]int64, len(order))
	orderedMus := make([]*big.Rat, len(order))
	for i, p := range order {
		orderedPolymers[i] = basis.Polymers[p]
		orderedMus[i] = assignment.Mu[p]
	}

	outPath := flagOutput
	if outPath == "" {
		outPath = inputPath + ".ibot.tbnpolys"
	}
	if err := tbnio.WriteTBNPolys(outPath, matrix, orderedPolymers, orderedMus); err != nil {
		return err
	}

	ibotLogger.Info("ibot assignment complete", map[string]interface{}{
		"assigned":    len(assignment.Mu),
		"unreachable": len(assignment.Unreachable),
		"output":      outPath,
	})
	if len(assignment.Unreachable) > 0 {
		ibotLogger.Warn("some off-target polymers were unreachable", map[string]interface{}{
			"count": len(assignment.Unreachable),
		})
	}

	if flagGenerateTBN != "" {
		c, unit, gerr := parseGenerateTBNFlag(flagGenerateTBN)
		if gerr != nil {
			return gerr
		}
		concs, gerr := ibot.SynthesizeConcentrations(basis.Polymers, matrix.NumMonomers(), assignment, c, unit)
		if gerr != nil {
			return gerr
		}
		genMatrix := withSynthesizedConcentrations(matrix, concs)
		genPath := inputPath + ".ibot.tbn"
		if err := tbnio.WriteTBN(genPath, genMatrix, unit); err != nil {
			return err
		}
		ibotLogger.Info("wrote synthesized monomer concentrations", map[string]interface{}{"output": genPath})
	}

	return nil
}

// indexPolymers matches each parsed polymer's monomer-count vector against
// the computed polymer basis and returns the set of matched basis indices.
func indexPolymers(basisPolymers [][]int64, polys []tbnio.Polymer) (map[int]bool, error) {
	lookup := make(map[string]int, len(basisPolymers))
	for i, p := range basisPolymers {
		lookup[countsKey(p)] = i
	}
	out := make(map[int]bool, len(polys))
	for _, p := range polys {
		idx, ok := lookup[countsKey(p.Counts)]
		if !ok {
			return nil, tbnerrors.New(tbnerrors.InvariantViolation, "ibot",
				"a declared on-target/bounded-target polymer is not present in the computed polymer basis")
		}
		out[idx] = true
	}
	return out, nil
}

func countsKey(v []int64) string {
	var b strings.Builder
	for _, c := range v {
		fmt.Fprintf(&b, "%d,", c)
	}
	return b.String()
}

func parseGenerateTBNFlag(s string) (float64, string, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("invalid --generate-tbn value %q, expected c,units", s)
	}
	c, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid --generate-tbn concentration %q: %w", parts[0], err)
	}
	unit := strings.TrimSpace(parts[1])
	if verr := tbn.ValidateUnit(unit); verr != nil {
		return 0, "", verr
	}
	return c, unit, nil
}

// withSynthesizedConcentrations returns a shallow copy of m with each
// column's concentration replaced by concs.
func withSynthesizedConcentrations(m *tbn.Matrix, concs []float64) *tbn.Matrix {
	out := &tbn.Matrix{SiteNames: m.SiteNames, ConcentrationsSet: true}
	out.Columns = make([]tbn.MonomerColumn, len(m.Columns))
	for i, col := range m.Columns {
		v := concs[i]
		out.Columns[i] = tbn.MonomerColumn{Name: col.Name, Vector: col.Vector, Concentration: &v}
	}
	return out
}
