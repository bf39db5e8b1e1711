// Package equilibrium implements the equilibrium bridge (C5): staging a
// polymer basis and monomer concentrations for an external equilibrium
// solver (COFFEE or NUPACK) and parsing its output back into polymer
// concentrations. Grounded on original_source/tbnexplorer2/coffee.py and
// nupack.py.
package equilibrium

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/solverexec"
)

// Solver computes equilibrium polymer concentrations from a polymer
// matrix, per-polymer free energies, and monomer concentrations (Molar).
type Solver interface {
	Equilibrium(ctx context.Context, polymerMatrix [][]int64, freeEnergies []float64, monomerConcMolar []float64, tempC float64) ([]float64, error)
}

// Options controls solver staging: where scratch files live and whether
// they are preserved for inspection after the run.
type Options struct {
	WorkDir        string
	PreserveInputs bool
	Deadline       time.Duration
}

const equilibriumComponent = "equilibrium"

// COFFEESolver invokes the COFFEE equilibrium concentrations CLI.
type COFFEESolver struct {
	Path string
	Opts Options
}

// CheckAvailable reports whether the COFFEE binary is present and
// executable.
func (s *COFFEESolver) CheckAvailable() bool {
	info, err := os.Stat(s.Path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

func (s *COFFEESolver) Equilibrium(ctx context.Context, polymerMatrix [][]int64, freeEnergies []float64, monomerConcMolar []float64, tempC float64) ([]float64, error) {
	if len(polymerMatrix) != len(freeEnergies) {
		return nil, tbnerrors.New(tbnerrors.ParseError, equilibriumComponent,
			fmt.Sprintf("polymer matrix has %d rows but %d free energies were given", len(polymerMatrix), len(freeEnergies)))
	}
	if !s.CheckAvailable() {
		return nil, tbnerrors.New(tbnerrors.MissingSolver, equilibriumComponent,
			fmt.Sprintf("COFFEE binary not found or not executable at %q", s.Path))
	}

	workDir, cleanup, err := stageWorkDir(s.Opts)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cfePath := filepath.Join(workDir, "input.cfe")
	conPath := filepath.Join(workDir, "input.con")
	outPath := filepath.Join(workDir, "output.cfe")

	if err := writeCFEFile(cfePath, polymerMatrix, freeEnergies); err != nil {
		return nil, err
	}
	if err := writeCONFile(conPath, monomerConcMolar); err != nil {
		return nil, err
	}

	if s.Opts.PreserveInputs {
		if err := preserveInputs("coffee", workDir, cfePath, conPath); err != nil {
			return nil, err
		}
	}

	if _, err := solverexec.Run(ctx, equilibriumComponent, s.Path, []string{cfePath, conPath, "-o", outPath}, s.Opts.Deadline); err != nil {
		return nil, err
	}

	concentrations, err := parseSpaceSeparatedFloats(outPath)
	if err != nil {
		return nil, err
	}
	if len(concentrations) != len(polymerMatrix) {
		return nil, tbnerrors.New(tbnerrors.LatticeSolverError, equilibriumComponent,
			fmt.Sprintf("COFFEE output has %d concentrations but expected %d", len(concentrations), len(polymerMatrix)))
	}
	return concentrations, nil
}

func writeCFEFile(path string, polymerMatrix [][]int64, freeEnergies []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()
	for i, row := range polymerMatrix {
		for _, c := range row {
			if _, err := fmt.Fprintf(w, "%d ", c); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%v\n", freeEnergies[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeCONFile(path string, monomerConcMolar []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, c := range monomerConcMolar {
		if _, err := fmt.Fprintf(w, "%v\n", c); err != nil {
			return err
		}
	}
	return nil
}

// NupackSolver invokes NUPACK's concentrations tool.
type NupackSolver struct {
	Path string
	Opts Options
}

// CheckAvailable reports whether the NUPACK concentrations binary is
// present and executable.
func (s *NupackSolver) CheckAvailable() bool {
	info, err := os.Stat(s.Path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

func (s *NupackSolver) Equilibrium(ctx context.Context, polymerMatrix [][]int64, freeEnergies []float64, monomerConcMolar []float64, tempC float64) ([]float64, error) {
	if len(polymerMatrix) != len(freeEnergies) {
		return nil, tbnerrors.New(tbnerrors.ParseError, equilibriumComponent,
			fmt.Sprintf("polymer matrix has %d rows but %d free energies were given", len(polymerMatrix), len(freeEnergies)))
	}
	if !s.CheckAvailable() {
		return nil, tbnerrors.New(tbnerrors.MissingSolver, equilibriumComponent,
			fmt.Sprintf("NUPACK binary not found or not executable at %q", s.Path))
	}

	workDir, cleanup, err := stageWorkDir(s.Opts)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	basePath := filepath.Join(workDir, "nupack_input")
	ocxPath := basePath + ".ocx"
	conPath := basePath + ".con"
	eqPath := basePath + ".eq"

	if err := writeOCXFile(ocxPath, polymerMatrix, freeEnergies); err != nil {
		return nil, err
	}
	if err := writeCONFile(conPath, monomerConcMolar); err != nil {
		return nil, err
	}

	if s.Opts.PreserveInputs {
		if err := preserveInputs("nupack", workDir, ocxPath, conPath); err != nil {
			return nil, err
		}
	}

	// -sort 0 preserves input order; NUPACK resolves basePath.ocx/.con itself.
	args := []string{"-sort", "0", "-T", strconv.FormatFloat(tempC, 'f', -1, 64), basePath}
	if _, err := solverexec.Run(ctx, equilibriumComponent, s.Path, args, s.Opts.Deadline); err != nil {
		return nil, err
	}

	concentrations, err := parseNupackEqFile(eqPath)
	if err != nil {
		return nil, err
	}
	if len(concentrations) != len(polymerMatrix) {
		return nil, tbnerrors.New(tbnerrors.LatticeSolverError, equilibriumComponent,
			fmt.Sprintf("NUPACK output has %d concentrations but expected %d", len(concentrations), len(polymerMatrix)))
	}
	return concentrations, nil
}

// writeOCXFile writes NUPACK's tab-delimited polymer-id/1/monomer-counts/
// free-energy format.
func writeOCXFile(path string, polymerMatrix [][]int64, freeEnergies []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()
	for i, row := range polymerMatrix {
		fields := make([]string, 0, len(row)+3)
		fields = append(fields, strconv.Itoa(i+1), "1")
		for _, c := range row {
			fields = append(fields, strconv.FormatInt(c, 10))
		}
		fields = append(fields, strconv.FormatFloat(freeEnergies[i], 'g', -1, 64))
		if _, err := w.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// parseNupackEqFile reads NUPACK's .eq output: tab-delimited rows mirroring
// the .ocx input with a trailing equilibrium-concentration column, "%" / "#"
// comment lines ignored.
func parseNupackEqFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.LatticeSolverError, equilibriumComponent, "failed to open NUPACK .eq output", err)
	}
	defer f.Close()

	var concentrations []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(parts[len(parts)-1], 64)
		if err != nil {
			continue
		}
		concentrations = append(concentrations, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(concentrations) == 0 {
		return nil, tbnerrors.New(tbnerrors.LatticeSolverError, equilibriumComponent, "NUPACK .eq file has no parseable concentration data")
	}
	return concentrations, nil
}

// parseSpaceSeparatedFloats parses COFFEE's output format: whitespace or
// newline separated floats, possibly in scientific notation.
func parseSpaceSeparatedFloats(path string) ([]float64, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.LatticeSolverError, equilibriumComponent, "failed to open COFFEE output", err)
	}
	fields := strings.Fields(string(content))
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, tbnerrors.Wrap(tbnerrors.LatticeSolverError, equilibriumComponent,
				fmt.Sprintf("cannot parse concentration value %q", field), err)
		}
		values = append(values, v)
	}
	return values, nil
}

// stageWorkDir returns a directory for scratch solver files: opts.WorkDir
// if set (caller-owned, not removed), otherwise a fresh temp directory
// removed by the returned cleanup func.
func stageWorkDir(opts Options) (dir string, cleanup func(), err error) {
	if opts.WorkDir != "" {
		if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
			return "", nil, err
		}
		return opts.WorkDir, func() {}, nil
	}
	dir, err = os.MkdirTemp("", "tbnexplorer2-equilibrium-")
	if err != nil {
		return "", nil, err
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func preserveInputs(backend, workDir string, paths ...string) error {
	debugDir, err := solverexec.DebugDir("equilibrium", backend)
	if err != nil {
		return err
	}
	for _, p := range paths {
		dst := filepath.Join(debugDir, filepath.Base(p))
		if err := copyFile(p, dst); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, content, 0o644)
}
