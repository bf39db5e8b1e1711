// Package reactions implements the canonical reactions engine (C6):
// enumerating irreducible canonical reactions over a polymer basis via
// variable splitting, plus the bounded-target strict-slice variant.
// Grounded on original_source/extensions/canonical_reactions.py.
package reactions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/lattice"
)

const component = "reactions"

// Reaction is one irreducible canonical reaction: a signed vector over the
// polymer basis. Negative entries are reactants, positive are products;
// the no-catalyst invariant (disjoint supports) holds by construction
// because both sides are read straight off the vector's sign.
type Reaction struct {
	Vector []int64
}

// Reactants returns the (polymerIndex, multiplicity) pairs with negative
// vector entries, multiplicity reported as a positive count.
func (r Reaction) Reactants() []IndexedCount {
	return selectBySign(r.Vector, true)
}

// Products returns the (polymerIndex, multiplicity) pairs with positive
// vector entries.
func (r Reaction) Products() []IndexedCount {
	return selectBySign(r.Vector, false)
}

// IndexedCount pairs a polymer-basis index with a multiplicity.
type IndexedCount struct {
	Index        int
	Multiplicity int64
}

func selectBySign(v []int64, negative bool) []IndexedCount {
	var out []IndexedCount
	for i, c := range v {
		if negative && c < 0 {
			out = append(out, IndexedCount{Index: i, Multiplicity: -c})
		} else if !negative && c > 0 {
			out = append(out, IndexedCount{Index: i, Multiplicity: c})
		}
	}
	return out
}

// IsBalanced reports whether total reactant multiplicity equals total
// product multiplicity: 1^T r = 0 (spec.md §3 Reaction, §4.6 pre-check).
func (r Reaction) IsBalanced() bool {
	var sum int64
	for _, c := range r.Vector {
		sum += c
	}
	return sum == 0
}

// String renders the reaction in "2 P0 + P3 -> P1" form, labelling every
// polymer by its basis index (canonical_reactions.py's Reaction.__str__);
// Render substitutes polymer names.
func (r Reaction) String() string {
	return r.Render(nil)
}

// Render formats the reaction using polymerNames[i] in place of "Pi" when
// a non-empty name is present at that index.
func (r Reaction) Render(polymerNames []string) string {
	format := func(side []IndexedCount) string {
		if len(side) == 0 {
			return "0"
		}
		terms := make([]string, len(side))
		for i, ic := range side {
			label := fmt.Sprintf("P%d", ic.Index)
			if ic.Index < len(polymerNames) && polymerNames[ic.Index] != "" {
				label = polymerNames[ic.Index]
			}
			if ic.Multiplicity == 1 {
				terms[i] = label
			} else {
				terms[i] = fmt.Sprintf("%d %s", ic.Multiplicity, label)
			}
		}
		return strings.Join(terms, " + ")
	}
	return fmt.Sprintf("%s -> %s", format(r.Reactants()), format(r.Products()))
}

// liftedSystem is the variable-split encoding of {B r = 0, S r >= 0}: every
// on-target polymer column is split into a non-negative positive/negative
// pair, every off-target polymer stays a single non-negative variable, so
// posing the plain non-negative Hilbert basis on B_lifted implicitly
// enforces S r >= 0 with no explicit S matrix (canonical_reactions.py).
type liftedSystem struct {
	dim          int
	equations    [][]int64 // m rows (monomer count conservation), dim columns
	onTargetList []int     // sorted on-target polymer indices
	offTargetList []int    // sorted off-target polymer indices
	numPolymers  int
}

// buildLiftedSystem builds B_lifted from the monomer-count matrix B
// (B[i][p] = count of monomer i in polymer p) and the on-target index set.
func buildLiftedSystem(monomerCounts [][]int64, onTarget map[int]bool, numPolymers int) liftedSystem {
	var onList, offList []int
	for p := 0; p < numPolymers; p++ {
		if onTarget[p] {
			onList = append(onList, p)
		} else {
			offList = append(offList, p)
		}
	}
	sort.Ints(onList)
	sort.Ints(offList)

	numRows := len(monomerCounts)
	dim := 2*len(onList) + len(offList)
	eq := make([][]int64, numRows)
	for r := 0; r < numRows; r++ {
		row := make([]int64, dim)
		for i, p := range onList {
			row[i] = monomerCounts[r][p]
			row[len(onList)+i] = -monomerCounts[r][p]
		}
		for i, p := range offList {
			row[2*len(onList)+i] = monomerCounts[r][p]
		}
		eq[r] = row
	}

	return liftedSystem{
		dim:           dim,
		equations:     eq,
		onTargetList:  onList,
		offTargetList: offList,
		numPolymers:   numPolymers,
	}
}

// unlift reconstructs an original-space reaction vector from a lifted
// Hilbert-basis / module-generator vector h.
func (s liftedSystem) unlift(h []int64) []int64 {
	r := make([]int64, s.numPolymers)
	n := len(s.onTargetList)
	for i, p := range s.onTargetList {
		r[p] = h[i] - h[n+i]
	}
	for i, p := range s.offTargetList {
		r[p] = h[2*n+i]
	}
	return r
}

// offTargetSliceVar returns the lifted-space coordinate for off-target
// polymer p, for StrictSliceMinimalSolutions's sliceVar argument.
func (s liftedSystem) offTargetSliceVar(p int) (int, bool) {
	n := len(s.onTargetList)
	for i, q := range s.offTargetList {
		if q == p {
			return 2*n + i, true
		}
	}
	return 0, false
}

// BuildMonomerCountMatrix builds B[i][p] = count of monomer i in polymer p
// from a polymer basis (row-major polymer vectors, each length numMonomers).
func BuildMonomerCountMatrix(polymers [][]int64, numMonomers int) [][]int64 {
	b := make([][]int64, numMonomers)
	for i := range b {
		row := make([]int64, len(polymers))
		for p, poly := range polymers {
			row[p] = poly[i]
		}
		b[i] = row
	}
	return b
}

func isZeroVec(v []int64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func vecKey(v []int64) string {
	b := make([]byte, 0, len(v)*4)
	for _, x := range v {
		b = append(b, []byte(fmt.Sprintf("%d,", x))...)
	}
	return string(b)
}

// ComputeAll enumerates every irreducible canonical reaction over the full
// polymer basis: pose the lifted Hilbert basis problem and unlift each
// result (spec.md §4.6, first paragraph).
func ComputeAll(ctx context.Context, oracle lattice.Oracle, polymers [][]int64, numMonomers int, onTarget map[int]bool, debug lattice.DebugOptions) ([]Reaction, error) {
	b := BuildMonomerCountMatrix(polymers, numMonomers)
	sys := buildLiftedSystem(b, onTarget, len(polymers))

	problem := lattice.Problem{Dim: sys.dim, Equations: sys.equations}
	vectors, err := oracle.HilbertBasis(ctx, problem, debug)
	if err != nil {
		return nil, err
	}

	var out []Reaction
	for _, h := range vectors {
		r := sys.unlift(h)
		if isZeroVec(r) {
			continue
		}
		out = append(out, Reaction{Vector: r})
	}
	return out, nil
}

// ComputeForTargets implements bounded-target mode (spec.md §4.6): for
// each off-target polymer in targets, solve the strict-slice minimal
// inhomogeneous solutions of the lifted system with that polymer's
// coordinate >= 1, then union and dedupe across targets. Requires an
// oracle whose StrictSliceMinimalSolutions is actually implemented
// (FourTiTwoOracle; NormalizOracle declines per spec.md §4.2/§9).
func ComputeForTargets(ctx context.Context, oracle lattice.Oracle, polymers [][]int64, numMonomers int, onTarget map[int]bool, targets []int, debug lattice.DebugOptions) ([]Reaction, error) {
	for _, t := range targets {
		if onTarget[t] {
			return nil, tbnerrors.New(tbnerrors.InvariantViolation, component,
				fmt.Sprintf("bounded-target polymer %d is on-target; targets must be off-target", t))
		}
		if t < 0 || t >= len(polymers) {
			return nil, tbnerrors.New(tbnerrors.InvariantViolation, component,
				fmt.Sprintf("bounded-target polymer index %d is out of range", t))
		}
	}

	b := BuildMonomerCountMatrix(polymers, numMonomers)
	sys := buildLiftedSystem(b, onTarget, len(polymers))
	problem := lattice.Problem{Dim: sys.dim, Equations: sys.equations}

	seen := make(map[string]bool)
	var out []Reaction
	for _, target := range targets {
		sliceVar, ok := sys.offTargetSliceVar(target)
		if !ok {
			return nil, tbnerrors.New(tbnerrors.InvariantViolation, component,
				fmt.Sprintf("bounded-target polymer %d has no lifted-space coordinate", target))
		}
		gens, err := oracle.StrictSliceMinimalSolutions(ctx, problem, sliceVar, debug)
		if err != nil {
			return nil, err
		}
		for _, h := range gens {
			r := sys.unlift(h)
			if isZeroVec(r) {
				continue
			}
			key := vecKey(r)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Reaction{Vector: r})
		}
	}
	return out, nil
}

// CheckDetailedBalance implements the detailed-balance pre-check (spec.md
// §4.6): every irreducible canonical reaction whose support is entirely
// on-target must have equal reactant/product multiplicity. Returns an
// OnTargetImbalance error rendered with the offending reaction on the
// first violation found (canonical_reactions.py::check_on_target_detailed_balance).
func CheckDetailedBalance(reactions []Reaction, onTarget map[int]bool) error {
	for _, r := range reactions {
		allOnTarget := true
		for i, c := range r.Vector {
			if c != 0 && !onTarget[i] {
				allOnTarget = false
				break
			}
		}
		if allOnTarget && !r.IsBalanced() {
			return tbnerrors.New(tbnerrors.OnTargetImbalance, component,
				fmt.Sprintf("on-target-only reaction is not balanced: %s", r.String()))
		}
	}
	return nil
}
