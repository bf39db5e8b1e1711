package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tbnexplorer2/internal/cache"
	"tbnexplorer2/internal/config"
	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/energy"
	"tbnexplorer2/internal/equilibrium"
	"tbnexplorer2/internal/logging"
	"tbnexplorer2/internal/polymerbasis"
	"tbnexplorer2/internal/tbn"
	"tbnexplorer2/internal/tbnio"
)

var (
	flagDisableConcentrations bool
	flagDisableFreeEnergies   bool
	flagFriendlyBasis         bool
	flagUse4ti2               bool
	flagParams                []string
	flagParamsFile            string
	flagTemperature           float64
	flagGBimolecular          float64
	flagHBimolecular          float64
	flagOutput                string
)

// registerRunFlags attaches the default driver's flags directly to
// rootCmd, since `tbnexplorer2 <input.tbn>` runs with no subcommand
// (spec.md §6).
func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagDisableConcentrations, "disable-concentrations", false,
		"skip the equilibrium concentration solve even when monomer concentrations are declared")
	cmd.Flags().BoolVar(&flagDisableFreeEnergies, "disable-free-energies", false,
		"skip free energy computation for each polymer")
	cmd.Flags().BoolVar(&flagFriendlyBasis, "friendly-basis", false,
		"write polymer names instead of raw monomer indices in .tbnpolymat comments")
	cmd.Flags().BoolVar(&flagUse4ti2, "use-4ti2", false,
		"use the 4ti2 lattice backend instead of Normaliz")
	cmd.Flags().StringArrayVar(&flagParams, "param", nil,
		"bind a {{expr}} variable as name=value (repeatable)")
	cmd.Flags().StringVar(&flagParamsFile, "params-file", "",
		"TOML file of {{expr}} variable bindings")
	cmd.Flags().Float64Var(&flagTemperature, "temperature", 37.0,
		"equilibrium temperature in degrees Celsius")
	cmd.Flags().Float64Var(&flagGBimolecular, "g-bimolecular", 1.96,
		"empirical bimolecular association free energy constant (kcal/mol)")
	cmd.Flags().Float64Var(&flagHBimolecular, "h-bimolecular", 0.20,
		"empirical bimolecular association enthalpy constant (kcal/mol)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "",
		"output .tbnpolymat path (default: <input>polymat)")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	var freeEnergies []float64
	if !flagDisableFreeEnergies {
		params := &energy.Params{
			GBimolecular: flagGBimolecular,
			HBimolecular: flagHBimolecular,
			TempC:        flagTemperature,
		}
		freeEnergies = make([]float64, len(basis.Polymers))
		for i, p := range basis.Polymers {
			freeEnergies[i] = energy.FreeEnergy(matrix, p, params)
		}
	}

	var concentrations []float64
	concUnit := parsed.Unit
	if !flagDisableConcentrations && matrix.ConcentrationsSet && len(freeEnergies) > 0 {
		solver, serr := buildEquilibriumSolver(cfg)
		if serr != nil {
			logger.Warn("skipping equilibrium solve", map[string]interface{}{"error": serr.Error()})
		} else {
			monomerConcMolar := make([]float64, matrix.NumMonomers())
			for i, v := range matrix.Concentrations() {
				molar, cerr := tbn.ToMolar(v, parsed.Unit)
				if cerr != nil {
					return cerr
				}
				monomerConcMolar[i] = molar
			}
			concMolar, eerr := solver.Equilibrium(ctx, basis.Polymers, freeEnergies, monomerConcMolar, flagTemperature)
			if eerr != nil {
				return eerr
			}
			if concUnit == "" {
				concUnit = "M"
			}
			concentrations = make([]float64, len(concMolar))
			for i, v := range concMolar {
				out, cerr := tbn.FromMolar(v, concUnit)
				if cerr != nil {
					return cerr
				}
				concentrations[i] = out
			}
		}
	}

	outPath := flagOutput
	if outPath == "" {
		outPath = inputPath + "polymat"
	}

	pm := &tbnio.Polymat{
		NumMonomers:       matrix.NumMonomers(),
		Polymers:          basis.Polymers,
		FreeEnergies:      freeEnergies,
		Concentrations:    concentrations,
		ConcentrationUnit: concUnit,
		MatrixHash:        hash,
		Parameters:        stringifyParams(vars),
	}
	if flagFriendlyBasis {
		pm.MonomerNames = monomerDisplayNames(matrix)
	}
	if err := tbnio.WriteTBNPolymat(outPath, pm); err != nil {
		return err
	}

	logger.Info("wrote polymer basis", map[string]interface{}{
		"polymers": len(basis.Polymers),
		"output":   outPath,
	})
	return nil
}

func resolveBasis(ctx context.Context, cfg *config.Config, logger *logging.Logger, matrix *tbn.Matrix, hash string) (*polymerbasis.Basis, error) {
	opts := polymerbasis.Options{Debug: debugOptions(cfg, "polymerbasis", "run")}
	oracle := buildOracle(cfg, flagUse4ti2)

	if !cfg.Cache.Enabled {
		return polymerbasis.Compute(ctx, matrix, oracle, opts)
	}

	c, err := cache.Open(cfg.Cache.Path, logger)
	if err != nil {
		logger.Warn("failed to open cache, proceeding uncached", map[string]interface{}{"error": err.Error()})
		return polymerbasis.Compute(ctx, matrix, oracle, opts)
	}
	defer c.Close()

	if basis, ok, lerr := c.Lookup(hash); lerr == nil && ok {
		logger.Info("cache hit", map[string]interface{}{"hash": hash})
		return basis, nil
	}

	basis, err := polymerbasis.Compute(ctx, matrix, oracle, opts)
	if err != nil {
		return nil, err
	}
	if serr := c.Store(hash, basis); serr != nil {
		logger.Warn("failed to store basis in cache", map[string]interface{}{"error": serr.Error()})
	}
	return basis, nil
}

func buildEquilibriumSolver(cfg *config.Config) (equilibrium.Solver, error) {
	opts := equilibrium.Options{
		PreserveInputs: cfg.Debug.PreserveSolverInputs,
		Deadline:       solverTimeout(cfg.Equilibrium.TimeoutSeconds),
	}
	switch cfg.Equilibrium.Backend {
	case "nupack":
		s := &equilibrium.NupackSolver{Path: cfg.Equilibrium.NupackPath, Opts: opts}
		if !s.CheckAvailable() {
			return nil, tbnerrors.New(tbnerrors.MissingSolver, "equilibrium", "nupack binary not available")
		}
		return s, nil
	default:
		s := &equilibrium.COFFEESolver{Path: cfg.Equilibrium.CoffeeCLIPath, Opts: opts}
		if !s.CheckAvailable() {
			return nil, tbnerrors.New(tbnerrors.MissingSolver, "equilibrium", "coffee-cli binary not available")
		}
		return s, nil
	}
}

func stringifyParams(vars map[string]float64) map[string]string {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = fmt.Sprintf("%g", v)
	}
	return out
}
