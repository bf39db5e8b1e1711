package tbn

import (
	"fmt"

	tbnerrors "tbnexplorer2/internal/errors"
)

// MonomerColumn is one column of the monomer matrix: a signed site-count
// vector plus the (possibly merged) name and summed concentration.
type MonomerColumn struct {
	Name          *string
	Vector        []int64
	Concentration *float64 // Molar-independent; in the file's declared units
}

// Matrix is the monomer matrix A: m binding sites by n monomers, columns in
// input order after duplicate collapsing.
type Matrix struct {
	SiteNames         []string
	siteIndex         map[string]int
	Columns           []MonomerColumn
	ConcentrationsSet bool
}

// NumSites returns m, the number of distinct binding sites.
func (m *Matrix) NumSites() int { return len(m.SiteNames) }

// NumMonomers returns n, the number of distinct monomer columns.
func (m *Matrix) NumMonomers() int { return len(m.Columns) }

// SiteIndex returns the index assigned to a binding-site base name.
func (m *Matrix) SiteIndex(name string) (int, bool) {
	i, ok := m.siteIndex[name]
	return i, ok
}

// Col returns the vector for monomer column j.
func (m *Matrix) Col(j int) []int64 { return m.Columns[j].Vector }

// Concentrations returns the per-monomer concentration vector in the file's
// declared units, or nil if any monomer lacks one.
func (m *Matrix) Concentrations() []float64 {
	if !m.ConcentrationsSet {
		return nil
	}
	out := make([]float64, len(m.Columns))
	for i, c := range m.Columns {
		if c.Concentration == nil {
			return nil
		}
		out[i] = *c.Concentration
	}
	return out
}

// MulVec computes A * c for a per-monomer weight vector c (length n),
// returning the per-binding-site excess (length m).
func (m *Matrix) MulVec(c []float64) []float64 {
	out := make([]float64, m.NumSites())
	for j, col := range m.Columns {
		w := c[j]
		if w == 0 {
			continue
		}
		for i, v := range col.Vector {
			out[i] += w * float64(v)
		}
	}
	return out
}

// CheckStarLimiting verifies A*c >= 0 componentwise. When c is nil, the
// all-ones vector is used (spec.md §4.1 / §3). Returns an InvariantViolation
// naming the first offending binding site.
func (m *Matrix) CheckStarLimiting(c []float64) error {
	if c == nil {
		c = make([]float64, m.NumMonomers())
		for i := range c {
			c[i] = 1
		}
	}
	excess := m.MulVec(c)
	for i, e := range excess {
		if e < 0 {
			return tbnerrors.New(tbnerrors.InvariantViolation, "tbn",
				fmt.Sprintf("binding site %q has negative excess %g: TBN is not star-limiting", m.SiteNames[i], e))
		}
	}
	return nil
}

// hasSingletonStar reports whether some column of the matrix already equals
// -e_i, the singleton consisting of a single star occurrence of site i.
func (m *Matrix) hasSingletonStar(siteIdx int) bool {
	for _, col := range m.Columns {
		var absSum int64
		for _, v := range col.Vector {
			if v < 0 {
				absSum -= v
			} else {
				absSum += v
			}
		}
		if absSum == 1 && col.Vector[siteIdx] == -1 {
			return true
		}
	}
	return false
}

// AugmentedMatrix builds A' (spec.md §4.3, steps 1-2): for every binding
// site lacking a singleton {x*} column, append a synthetic -e_i column.
// Returns the augmented column set and the count of original (non-synthetic)
// columns.
func (m *Matrix) AugmentedMatrix() (cols [][]int64, numOriginal int) {
	numOriginal = m.NumMonomers()
	cols = make([][]int64, 0, numOriginal+m.NumSites())
	for _, c := range m.Columns {
		cols = append(cols, c.Vector)
	}
	for i := range m.SiteNames {
		if m.hasSingletonStar(i) {
			continue
		}
		synthetic := make([]int64, m.NumSites())
		synthetic[i] = -1
		cols = append(cols, synthetic)
	}
	return cols, numOriginal
}
