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

// FourTiTwoOracle shells out to 4ti2's `hilbert` and `zsolve` binaries.
// Grounded on original_source/tbnexplorer2/fourtitwo.py's FourTiTwoRunner.
// Unlike NormalizOracle, it supports bounded-target mode's strict-slice
// module generators (normaliz.py explicitly does not).
type FourTiTwoOracle struct {
	InstallDir string // directory containing bin/hilbert, bin/zsolve
	Deadline   time.Duration
}

func (o *FourTiTwoOracle) hilbertBin() string { return filepath.Join(o.InstallDir, "bin", "hilbert") }
func (o *FourTiTwoOracle) zsolveBin() string  { return filepath.Join(o.InstallDir, "bin", "zsolve") }

// HilbertBasis implements Oracle via 4ti2's `hilbert`, falling back to
// `zsolve` on failure exactly as fourtitwo.py does.
func (o *FourTiTwoOracle) HilbertBasis(ctx context.Context, p Problem, debug DebugOptions) ([][]int64, error) {
	tmp, err := os.MkdirTemp("", "tbnexplorer2-4ti2-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	base := filepath.Join(tmp, "problem")
	if err := writeFourTiTwoHomogeneous(base, p); err != nil {
		return nil, err
	}
	if debug.Enabled {
		if err := preserveDebugInput(base+".mat", debug.BaseName, debug.Context, "4ti2"); err != nil {
			return nil, err
		}
	}

	if _, err := solverexec.Run(ctx, "lattice", o.hilbertBin(), []string{base}, o.Deadline); err == nil {
		if basis, parseErr := parse4ti2VectorFile(base + ".hil"); parseErr == nil {
			return basis, nil
		}
	}
	if _, err := solverexec.Run(ctx, "lattice", o.zsolveBin(), []string{base}, o.Deadline); err != nil {
		return nil, err
	}
	if basis, err := parse4ti2VectorFile(base + ".zhom"); err == nil {
		return basis, nil
	}
	return parse4ti2VectorFile(base + ".zinhom")
}

// StrictSliceMinimalSolutions solves {E x = 0, I x >= 0, x[sliceVar] >= 1}
// via zsolve's inhomogeneous mode and returns the .zinhom module generators
// (spec.md §4.2 "minimal inhomogeneous solutions of a strict slice").
func (o *FourTiTwoOracle) StrictSliceMinimalSolutions(ctx context.Context, p Problem, sliceVar int, debug DebugOptions) ([][]int64, error) {
	tmp, err := os.MkdirTemp("", "tbnexplorer2-4ti2-slice-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	base := filepath.Join(tmp, "slice")
	if err := writeFourTiTwoInhomogeneous(base, p, sliceVar); err != nil {
		return nil, err
	}
	if debug.Enabled {
		if err := preserveDebugInput(base+".mat", debug.BaseName, debug.Context, "4ti2-slice"); err != nil {
			return nil, err
		}
	}

	if _, err := solverexec.Run(ctx, "reactions", o.zsolveBin(), []string{base}, o.Deadline); err != nil {
		return nil, err
	}
	return parse4ti2VectorFile(base + ".zinhom")
}

func writeFourTiTwoHomogeneous(base string, p Problem) error {
	if err := writeMat(base+".mat", p.Equations, p.Dim); err != nil {
		return err
	}
	if err := writeSign(base+".sign", p.Dim); err != nil {
		return err
	}
	return writeRel(base+".rel", len(p.Equations), "=")
}

func writeFourTiTwoInhomogeneous(base string, p Problem, sliceVar int) error {
	rows := make([][]int64, 0, len(p.Equations)+1)
	rows = append(rows, p.Equations...)
	slice := make([]int64, p.Dim)
	slice[sliceVar] = 1
	rows = append(rows, slice)

	if err := writeMat(base+".mat", rows, p.Dim); err != nil {
		return err
	}
	if err := writeSign(base+".sign", p.Dim); err != nil {
		return err
	}
	if err := writeRel(base+".rel", len(p.Equations), "="); err != nil {
		return err
	}
	return appendRelAndRHS(base, len(p.Equations))
}

func writeMat(path string, rows [][]int64, dim int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d %d\n", len(rows), dim)
	for _, row := range rows {
		writeRow(w, row)
	}
	return w.Flush()
}

func writeSign(path string, dim int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "1 %d\n", dim)
	signs := make([]string, dim)
	for i := range signs {
		signs[i] = "+"
	}
	fmt.Fprintln(w, strings.Join(signs, " "))
	return w.Flush()
}

func writeRel(path string, numEquations int, rel string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "1 %d\n", numEquations)
	rels := make([]string, numEquations)
	for i := range rels {
		rels[i] = rel
	}
	fmt.Fprintln(w, strings.Join(rels, " "))
	return w.Flush()
}

// appendRelAndRHS overwrites the .rel file to append the strict-slice row's
// ">=" relation and writes the matching .rhs file (equations get rhs 0, the
// slice row gets rhs 1).
func appendRelAndRHS(base string, numEquations int) error {
	relPath := base + ".rel"
	f, err := os.Create(relPath)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	total := numEquations + 1
	fmt.Fprintf(w, "1 %d\n", total)
	rels := make([]string, total)
	for i := 0; i < numEquations; i++ {
		rels[i] = "="
	}
	rels[numEquations] = ">"
	fmt.Fprintln(w, strings.Join(rels, " "))
	if err := w.Flush(); err != nil {
		return err
	}

	rhsPath := base + ".rhs"
	rf, err := os.Create(rhsPath)
	if err != nil {
		return err
	}
	defer rf.Close()
	rw := bufio.NewWriter(rf)
	fmt.Fprintf(rw, "1 %d\n", total)
	rhs := make([]string, total)
	for i := 0; i < numEquations; i++ {
		rhs[i] = "0"
	}
	rhs[numEquations] = "1" // x[sliceVar] >= 1: 4ti2's '>' relation is non-strict (>=)
	fmt.Fprintln(rw, strings.Join(rhs, " "))
	return rw.Flush()
}

func parse4ti2VectorFile(path string) ([][]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.LatticeSolverError, "lattice", "4ti2 output not found: "+path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		return nil, nil
	}
	header := strings.Fields(sc.Text())
	if len(header) != 2 {
		return nil, tbnerrors.New(tbnerrors.LatticeSolverError, "lattice", "invalid 4ti2 output header: "+path)
	}
	numVectors, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.LatticeSolverError, "lattice", "invalid 4ti2 vector count", err)
	}
	numVars, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.LatticeSolverError, "lattice", "invalid 4ti2 dimension", err)
	}

	basis := make([][]int64, 0, numVectors)
	for sc.Scan() && len(basis) < numVectors {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != numVars {
			continue
		}
		vec := make([]int64, numVars)
		for i, s := range fields {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				continue
			}
			vec[i] = n
		}
		basis = append(basis, vec)
	}
	return basis, sc.Err()
}
