package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tbnexplorer2/internal/config"
	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/lattice"
	"tbnexplorer2/internal/logging"
	"tbnexplorer2/internal/tbn"
	"tbnexplorer2/internal/tbnio"
)

// exitCodeFor maps any error this CLI returns to a process exit status
// (spec.md §7: one non-zero code per ErrorCode, 1 for anything else).
func exitCodeFor(err error) int {
	return tbnerrors.ExitCodeFor(err)
}

func loadRunConfig() (*config.Config, error) {
	result, err := config.LoadConfigWithDetails(flagRepoRoot)
	if err != nil {
		return nil, err
	}
	if flagDebugPreserve {
		result.Config.Debug.PreserveSolverInputs = true
	}
	return result.Config, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	format := logging.HumanFormat
	if cfg.Logging.Format == "json" {
		format = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: format,
		Level:  logging.LogLevel(cfg.Logging.Level),
	})
}

// buildOracle selects the lattice oracle per cfg.Solvers.Backend, overridden
// by --use-4ti2 (spec.md §6 "alternate lattice backend switch").
func buildOracle(cfg *config.Config, use4ti2 bool) lattice.Oracle {
	deadline := time.Duration(cfg.Solvers.TimeoutSeconds) * time.Second
	if use4ti2 || cfg.Solvers.Backend == "4ti2" {
		return &lattice.FourTiTwoOracle{InstallDir: cfg.Solvers.FourTi2Dir, Deadline: deadline}
	}
	return &lattice.NormalizOracle{Binary: cfg.Solvers.NormalizPath, Deadline: deadline}
}

func solverTimeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func debugOptions(cfg *config.Config, baseName, context string) lattice.DebugOptions {
	return lattice.DebugOptions{
		Enabled:  cfg.Debug.PreserveSolverInputs,
		BaseName: baseName,
		Context:  context,
	}
}

// parseParamFlags parses repeated "--param k=v" flag values into a
// variable map for .tbn {{expr}} substitution (spec.md §6).
func parseParamFlags(raw []string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --param value %q, expected k=v", kv)
		}
		name := strings.TrimSpace(parts[0])
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --param value %q: %w", kv, err)
		}
		out[name] = v
	}
	return out, nil
}

// resolveParams merges an optional TOML params file with repeated --param
// flags, the flags taking precedence (spec.md §6).
func resolveParams(paramsFile string, paramFlags []string) (map[string]float64, error) {
	var fromFile map[string]float64
	if paramsFile != "" {
		var err error
		fromFile, err = tbnio.LoadParamsFile(paramsFile)
		if err != nil {
			return nil, err
		}
	}
	fromFlags, err := parseParamFlags(paramFlags)
	if err != nil {
		return nil, err
	}
	return tbnio.MergeParams(fromFile, fromFlags), nil
}

// monomerDisplayNames returns one label per monomer column, falling back to
// a positional placeholder for unnamed columns (--friendly-basis).
func monomerDisplayNames(m *tbn.Matrix) []string {
	names := make([]string, m.NumMonomers())
	for i := 0; i < m.NumMonomers(); i++ {
		col := m.Columns[i]
		if col.Name != nil {
			names[i] = *col.Name
		} else {
			names[i] = fmt.Sprintf("monomer%d", i+1)
		}
	}
	return names
}

// splitCommaList splits a comma-separated flag value, trimming whitespace
// and dropping empty entries.
func splitCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
