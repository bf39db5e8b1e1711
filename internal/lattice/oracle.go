// Package lattice implements the lattice oracle adapter (C2): converting
// in-memory cone/slice descriptions into an external solver's textual
// input, invoking it as a subprocess, and streaming integer vectors back.
package lattice

import (
	"context"
	"time"
)

// Problem describes a cone {x in Z^Dim_{>=0} : Equations*x = 0, Inequalities*x >= 0}.
type Problem struct {
	Dim          int
	Equations    [][]int64
	Inequalities [][]int64
}

// DebugOptions controls solver-input preservation (spec.md §6 "solver-inputs/").
type DebugOptions struct {
	Enabled  bool
	BaseName string
	Context  string
}

// Oracle is the abstract lattice solver interface; NormalizOracle and
// FourTiTwoOracle both implement it (spec.md §4.2).
type Oracle interface {
	// HilbertBasis returns all h in Z^Dim_{>=0} minimal under non-negative
	// integer addition such that E*h = 0 and I*h >= 0.
	HilbertBasis(ctx context.Context, p Problem, debug DebugOptions) ([][]int64, error)

	// StrictSliceMinimalSolutions returns all x in {E*x=0, I*x>=0, x[sliceVar]>=1}
	// not expressible as another such vector plus a non-zero recession-cone
	// element (the strict slice's module generators).
	StrictSliceMinimalSolutions(ctx context.Context, p Problem, sliceVar int, debug DebugOptions) ([][]int64, error)
}

// Deadline bundles a per-call timeout; zero means no deadline beyond ctx.
type Deadline = time.Duration
