package lattice

import (
	"io"
	"os"
	"path/filepath"

	"tbnexplorer2/internal/solverexec"
)

// preserveDebugInput copies the solver's raw input file to
// solver-inputs/<base>-<context>-<uuid>/<backend><ext> (a fresh directory
// from solverexec.DebugDir on every call) for later inspection
// (spec.md §6 "Debug mode writes solver-inputs/<base>-<purpose>.*").
func preserveDebugInput(inputPath, baseName, context, backend string) error {
	dir, err := solverexec.DebugDir(baseName, context)
	if err != nil {
		return err
	}
	dst := filepath.Join(dir, backend+filepath.Ext(inputPath))
	return copyFile(inputPath, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
