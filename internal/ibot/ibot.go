// Package ibot implements the IBOT scheduler (C7): iterative assignment of
// concentration exponents mu(p) to off-target polymers by global min-ratio
// selection over irreducible canonical reactions, maintaining detailed
// balance. Grounded on original_source/extensions/ibot.py, refined per
// spec.md §4.7/§9 to use exact rational arithmetic (math/big.Rat) instead
// of ibot.py's float64 comparisons, and a container/heap priority queue
// with lazy invalidation instead of ibot.py's per-iteration full rescan.
package ibot

import (
	"container/heap"
	"math"
	"math/big"
	"sort"

	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/reactions"
	"tbnexplorer2/internal/tbn"
)

const component = "ibot"

// Assignment is the result of a completed (or partial, on error) IBOT run:
// Mu holds every assigned exponent (on-target polymers fixed at 1, plus
// every off-target polymer IBOT reached), Unreachable lists off-target
// polymers that stayed at the unassigned sentinel and were removed from
// the assignment (spec.md §3 ExponentAssignment, §4.7 "Termination and
// unreachables").
type Assignment struct {
	Mu            map[int]*big.Rat
	Unreachable   []int
	IterationMins []*big.Rat // mu_min value selected at each iteration, in order
	// IterationAssigned is the count of polymers newly assigned at each
	// iteration, parallel to IterationMins — grounded on
	// original_source/extensions/ibot.py:129's per-iteration progress line
	// ("Assigned mu=... to N polymers").
	IterationAssigned []int
}

// reactionState tracks one reaction's current novelty/imbalance and the
// heap-entry generation at which they were last pushed.
type reactionState struct {
	novelty    int
	imbalance  *big.Rat // k(r)
	generation int
	dead       bool // novelty has reached 0; novelty is monotonically non-increasing, so this is permanent
}

type heapEntry struct {
	reactionIdx int
	ratio       *big.Rat
	generation  int
}

type ratioHeap []heapEntry

func (h ratioHeap) Len() int { return len(h) }
func (h ratioHeap) Less(i, j int) bool {
	c := h[i].ratio.Cmp(h[j].ratio)
	if c != 0 {
		return c < 0
	}
	return h[i].reactionIdx < h[j].reactionIdx
}
func (h ratioHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *ratioHeap) Push(x interface{}) { *h = append(*h, x.(heapEntry)) }
func (h *ratioHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// computeMetrics computes novelty ℓ(r) and imbalance k(r) for a reaction
// vector given the current exponent assignment (spec.md §4.7 definitions).
// mu[i] == nil means "unassigned" (the sentinel); unassigned contributes 0
// to k(r), matching mu(p)=0 at initialization.
func computeMetrics(vector []int64, mu map[int]*big.Rat, unassigned map[int]bool) (novelty int, k *big.Rat) {
	k = new(big.Rat)
	for i, c := range vector {
		if c == 0 {
			continue
		}
		if unassigned[i] {
			novelty++
		}
		m := mu[i]
		if m == nil {
			continue
		}
		weighted := new(big.Rat).Mul(new(big.Rat).SetInt64(absInt64(c)), m)
		if c < 0 {
			k.Add(k, weighted)
		} else {
			k.Sub(k, weighted)
		}
	}
	return novelty, k
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Run executes the IBOT scheduler to completion (spec.md §4.7 Iteration).
func Run(reactionList []reactions.Reaction, onTarget map[int]bool, numPolymers int) (Assignment, error) {
	mu := make(map[int]*big.Rat, numPolymers)
	unassigned := make(map[int]bool)
	for p := 0; p < numPolymers; p++ {
		if onTarget[p] {
			mu[p] = big.NewRat(1, 1)
		} else {
			unassigned[p] = true
		}
	}

	states := make([]reactionState, len(reactionList))
	invertedIndex := make(map[int][]int) // polymer index -> reaction indices touching it

	pq := &ratioHeap{}
	heap.Init(pq)

	for idx, r := range reactionList {
		for i, c := range r.Vector {
			if c != 0 {
				invertedIndex[i] = append(invertedIndex[i], idx)
			}
		}
		novelty, k := computeMetrics(r.Vector, mu, unassigned)
		states[idx] = reactionState{novelty: novelty, imbalance: k, generation: 0}
		if novelty > 0 {
			heap.Push(pq, heapEntry{reactionIdx: idx, ratio: ratio(k, novelty), generation: 0})
		} else {
			states[idx].dead = true
		}
	}

	var iterationMins []*big.Rat
	var iterationAssigned []int

	for len(unassigned) > 0 {
		minRatio, minReactions := popCurrentMinimum(pq, states)
		if minRatio == nil {
			break // no reaction with novelty > 0 survives; remaining off-targets are unreachable
		}
		iterationMins = append(iterationMins, minRatio)

		var newlyAssigned []int
		for _, idx := range minReactions {
			for i, c := range reactionList[idx].Vector {
				if c != 0 && unassigned[i] {
					mu[i] = minRatio
					delete(unassigned, i)
					newlyAssigned = append(newlyAssigned, i)
				}
			}
		}
		if len(newlyAssigned) == 0 {
			// Defensive: a reaction selected at novelty>0 must touch at least
			// one unassigned polymer; this would indicate a bookkeeping bug.
			return Assignment{}, tbnerrors.New(tbnerrors.ArithmeticOverflow, component,
				"IBOT selected a minimum-ratio reaction that assigned no polymer")
		}
		iterationAssigned = append(iterationAssigned, len(newlyAssigned))

		touched := make(map[int]bool)
		for _, p := range newlyAssigned {
			for _, idx := range invertedIndex[p] {
				touched[idx] = true
			}
		}
		for idx := range touched {
			st := &states[idx]
			if st.dead {
				continue
			}
			novelty, k := computeMetrics(reactionList[idx].Vector, mu, unassigned)
			st.novelty = novelty
			st.imbalance = k
			st.generation++
			if novelty > 0 {
				heap.Push(pq, heapEntry{reactionIdx: idx, ratio: ratio(k, novelty), generation: st.generation})
			} else {
				st.dead = true
			}
		}
	}

	var unreachable []int
	for p := range unassigned {
		unreachable = append(unreachable, p)
	}
	sort.Ints(unreachable)

	return Assignment{
		Mu:                mu,
		Unreachable:       unreachable,
		IterationMins:     iterationMins,
		IterationAssigned: iterationAssigned,
	}, nil
}

// popCurrentMinimum pops every stale entry (generation mismatch or dead
// reaction) off the heap, then returns the minimum ratio and every reaction
// index that attains it, consuming exactly those entries.
func popCurrentMinimum(pq *ratioHeap, states []reactionState) (*big.Rat, []int) {
	var minRatio *big.Rat
	var idxs []int
	for pq.Len() > 0 {
		top := (*pq)[0]
		st := &states[top.reactionIdx]
		if st.dead || st.generation != top.generation {
			heap.Pop(pq) // stale: superseded by a later recomputation, or reaction died
			continue
		}
		if minRatio == nil {
			minRatio = top.ratio
			idxs = append(idxs, top.reactionIdx)
			heap.Pop(pq)
			continue
		}
		if top.ratio.Cmp(minRatio) == 0 {
			idxs = append(idxs, top.reactionIdx)
			heap.Pop(pq)
			continue
		}
		break // heap-ordered ascending: everything remaining is strictly larger
	}
	return minRatio, idxs
}

func ratio(k *big.Rat, novelty int) *big.Rat {
	return new(big.Rat).Quo(k, new(big.Rat).SetInt64(int64(novelty)))
}

// OrderForOutput returns the basis indices to emit, in spec.md §4.7's
// output order: every on-target polymer first (in basis-index order), then
// every reachable off-target polymer sorted by mu ascending with ties
// broken by basis index, with unreachable off-targets dropped entirely
// (§4.7 "Termination and unreachables"; scenario S6). Grounded on
// original_source/extensions/ibot.py:143-189's separate on/off-target
// lists and np.argsort(off_target_mus).
func OrderForOutput(numPolymers int, onTarget map[int]bool, assignment Assignment) []int {
	unreachable := make(map[int]bool, len(assignment.Unreachable))
	for _, p := range assignment.Unreachable {
		unreachable[p] = true
	}

	var onList, offList []int
	for p := 0; p < numPolymers; p++ {
		switch {
		case onTarget[p]:
			onList = append(onList, p)
		case !unreachable[p]:
			offList = append(offList, p)
		}
	}

	sort.Slice(offList, func(i, j int) bool {
		a, b := offList[i], offList[j]
		c := assignment.Mu[a].Cmp(assignment.Mu[b])
		if c != 0 {
			return c < 0
		}
		return a < b
	})

	return append(onList, offList...)
}

// SynthesizeConcentrations implements the monomer concentration synthesis
// of spec.md §4.7 ("--generate-tbn c, units"): f = c'/rho_H2O in Molar,
// then monomer i gets rho_H2O * sum over assigned polymers p of
// x_p[i] * f^mu(p), converted back to the requested units.
func SynthesizeConcentrations(polymers [][]int64, numMonomers int, assignment Assignment, c float64, unit string) ([]float64, error) {
	cMolar, err := tbn.ToMolar(c, unit)
	if err != nil {
		return nil, err
	}
	f := cMolar / tbn.RhoWater

	totals := make([]float64, numMonomers)
	for p, poly := range polymers {
		m, ok := assignment.Mu[p]
		if !ok {
			continue // unreachable/unassigned polymer contributes nothing
		}
		muFloat, _ := m.Float64()
		factor := math.Pow(f, muFloat)
		for i, count := range poly {
			if count > 0 {
				totals[i] += float64(count) * factor
			}
		}
	}

	out := make([]float64, numMonomers)
	for i, molarTotal := range totals {
		scaled := tbn.RhoWater * molarTotal
		converted, err := tbn.FromMolar(scaled, unit)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}
