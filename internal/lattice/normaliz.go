package lattice

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

// NormalizOracle shells out to the Normaliz binary. Grounded on
// original_source/tbnexplorer2/normaliz.py's NormalizRunner.
type NormalizOracle struct {
	Binary   string
	Deadline time.Duration
}

var normalizTool = solverexec.Tool{Name: "normaliz", Binary: "", VersionArgs: []string{"--version"}}

func (o *NormalizOracle) binary() string {
	if o.Binary != "" {
		return o.Binary
	}
	return "normaliz"
}

// IsAvailable reports whether the normaliz binary is present on PATH,
// via the shared solverexec probe.
func (o *NormalizOracle) IsAvailable(ctx context.Context) (bool, string) {
	tool := normalizTool
	tool.Binary = o.binary()
	return solverexec.IsAvailable(ctx, tool)
}

// HilbertBasis implements Oracle.
func (o *NormalizOracle) HilbertBasis(ctx context.Context, p Problem, debug DebugOptions) ([][]int64, error) {
	if ok, _ := o.IsAvailable(ctx); !ok {
		return nil, tbnerrors.New(tbnerrors.MissingSolver, "lattice",
			fmt.Sprintf("normaliz binary %q not found on PATH", o.binary()))
	}

	tmp, err := os.MkdirTemp("", "tbnexplorer2-normaliz-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	inputPath := filepath.Join(tmp, "input.in")
	if err := writeNormalizInput(inputPath, p); err != nil {
		return nil, err
	}
	if debug.Enabled {
		if err := preserveDebugInput(inputPath, debug.BaseName, debug.Context, "normaliz"); err != nil {
			return nil, err
		}
	}

	if _, err := solverexec.Run(ctx, "lattice", o.binary(), []string{inputPath}, o.Deadline); err != nil {
		return nil, err
	}

	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".out"
	return parseNormalizHilbertBasis(outputPath)
}

// StrictSliceMinimalSolutions is unsupported by Normaliz for strict
// inequality problems (normaliz.py::compute_module_generators_for_slice).
func (o *NormalizOracle) StrictSliceMinimalSolutions(ctx context.Context, p Problem, sliceVar int, debug DebugOptions) ([][]int64, error) {
	return nil, tbnerrors.New(tbnerrors.LatticeSolverError, "lattice",
		"Normaliz does not properly support module generators for strict-inequality problems; use the 4ti2 backend (--use-4ti2) for bounded-target mode")
}

func writeNormalizInput(path string, p Problem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "/* Normaliz input for Hilbert basis computation */\n\n")
	fmt.Fprintf(w, "amb_space %d\n\n", p.Dim)

	if len(p.Equations) > 0 {
		fmt.Fprintf(w, "equations %d\n", len(p.Equations))
		for _, row := range p.Equations {
			writeRow(w, row)
		}
		fmt.Fprintln(w)
	}
	if len(p.Inequalities) > 0 {
		fmt.Fprintf(w, "inequalities %d\n", len(p.Inequalities))
		for _, row := range p.Inequalities {
			writeRow(w, row)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "HilbertBasis\n")
	return w.Flush()
}

func writeRow(w *bufio.Writer, row []int64) {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = strconv.FormatInt(v, 10)
	}
	fmt.Fprintln(w, strings.Join(parts, " "))
}

// parseNormalizHilbertBasis scans a Normaliz .out file for the Hilbert
// basis section. Normaliz's textual report format varies across versions,
// so several header spellings are recognized (normaliz.py::_parse_hilbert_basis).
func parseNormalizHilbertBasis(path string) ([][]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.LatticeSolverError, "lattice", "normaliz output not found", err)
	}
	defer f.Close()

	var basis [][]int64
	inSection := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	endMarkers := []string{"extreme rays:", "support hyperplanes:", "equations:", "basis elements of generated", "***"}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.Contains(line, "lattice points in polytope (Hilbert basis elements of degree 1):"),
			strings.Contains(line, "Hilbert basis elements:"),
			strings.Contains(line, "module generators:"):
			inSection = true
			continue
		case strings.Contains(line, "Hilbert basis elements of higher degree:"):
			continue
		case inSection && containsAny(line, endMarkers):
			inSection = false
		}
		if !inSection || line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		if !isIntVectorLine(line) {
			continue
		}
		fields := strings.Fields(line)
		vec := make([]int64, 0, len(fields))
		ok := true
		for _, f := range fields {
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				ok = false
				break
			}
			vec = append(vec, n)
		}
		if ok && len(vec) > 0 {
			basis = append(basis, vec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.LatticeSolverError, "lattice", "failed reading normaliz output", err)
	}
	return basis, nil
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func isIntVectorLine(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != ' ' && r != '-' {
			return false
		}
	}
	return true
}
