// Package polymerbasis computes the polymer basis (C3): the Hilbert basis
// of the augmented monomer matrix, projected back to the original monomer
// coordinates and deduplicated. Grounded on
// original_source/tbnexplorer2/polymer_basis.py's PolymerBasisComputer.
package polymerbasis

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/fnv"
	"sort"

	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/lattice"
	"tbnexplorer2/internal/tbn"
)

// Options configures basis computation.
type Options struct {
	Debug lattice.DebugOptions
}

// Basis is the computed polymer basis: each row is a polymer's monomer
// multiplicity vector, in the original (non-augmented) monomer coordinates.
type Basis struct {
	Polymers [][]int64
}

// Compute poses the homogeneous Hilbert basis problem on the augmented
// matrix and post-processes the result per §4.3: project away the fake
// singleton-monomer columns, drop the all-zero vector, deduplicate, and
// sort lexicographically for a stable basis index.
func Compute(ctx context.Context, m *tbn.Matrix, oracle lattice.Oracle, opts Options) (*Basis, error) {
	augCols, numOriginal := m.AugmentedMatrix()
	if len(augCols) == 0 {
		return nil, tbnerrors.New(tbnerrors.InvariantViolation, "polymerbasis", "augmented matrix has no columns")
	}

	dim := len(augCols)
	problem := lattice.Problem{
		Dim:          dim,
		Equations:    rowsFromColumns(augCols, m.NumSites()),
		Inequalities: nil,
	}

	vectors, err := oracle.HilbertBasis(ctx, problem, opts.Debug)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, tbnerrors.New(tbnerrors.LatticeSolverError, "polymerbasis", "no Hilbert basis vectors found")
	}

	seen := make(map[uint64][][]int64)
	var polymers [][]int64
	for _, v := range vectors {
		projected := v[:numOriginal]
		if isZero(projected) {
			continue
		}
		key := fnvHash(projected)
		if bucket, ok := seen[key]; ok {
			duplicate := false
			for _, existing := range bucket {
				if vectorEqual(existing, projected) {
					duplicate = true
					break
				}
			}
			if duplicate {
				continue
			}
			seen[key] = append(bucket, projected)
		} else {
			seen[key] = [][]int64{projected}
		}
		polymers = append(polymers, projected)
	}

	sort.Slice(polymers, func(i, j int) bool { return lexLess(polymers[i], polymers[j]) })

	return &Basis{Polymers: polymers}, nil
}

// rowsFromColumns transposes the augmented matrix's column-major
// representation into row-major equations for the lattice oracle, which
// expects Equations[row][col].
func rowsFromColumns(cols [][]int64, numRows int) [][]int64 {
	rows := make([][]int64, numRows)
	for r := 0; r < numRows; r++ {
		row := make([]int64, len(cols))
		for c, col := range cols {
			row[c] = col[r]
		}
		rows[r] = row
	}
	return rows
}

func isZero(v []int64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func vectorEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lexLess(a, b []int64) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// fnvHash hashes a fixed-width little-endian byte encoding of v with FNV-1a.
func fnvHash(v []int64) uint64 {
	var buf bytes.Buffer
	tmp := make([]byte, 8)
	for _, x := range v {
		binary.LittleEndian.PutUint64(tmp, uint64(x))
		buf.Write(tmp)
	}
	h := fnv.New64a()
	h.Write(buf.Bytes())
	return h.Sum64()
}
