package polymerbasis

import (
	"context"
	"testing"

	"tbnexplorer2/internal/lattice"
	"tbnexplorer2/internal/tbn"
)

type fakeOracle struct {
	vectors [][]int64
	err     error
}

func (f *fakeOracle) HilbertBasis(ctx context.Context, p lattice.Problem, debug lattice.DebugOptions) ([][]int64, error) {
	return f.vectors, f.err
}

func (f *fakeOracle) StrictSliceMinimalSolutions(ctx context.Context, p lattice.Problem, sliceVar int, debug lattice.DebugOptions) ([][]int64, error) {
	return nil, nil
}

func TestRowsFromColumnsTransposes(t *testing.T) {
	cols := [][]int64{{1, 2}, {3, 4}, {5, 6}}
	rows := rowsFromColumns(cols, 2)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	want0 := []int64{1, 3, 5}
	want1 := []int64{2, 4, 6}
	if !vectorEqual(rows[0], want0) {
		t.Errorf("rows[0] = %v, want %v", rows[0], want0)
	}
	if !vectorEqual(rows[1], want1) {
		t.Errorf("rows[1] = %v, want %v", rows[1], want1)
	}
}

func TestFnvHashStableAndDiscriminating(t *testing.T) {
	a := []int64{1, 2, 3}
	b := []int64{1, 2, 3}
	c := []int64{3, 2, 1}

	if fnvHash(a) != fnvHash(b) {
		t.Error("equal vectors should hash equal")
	}
	if fnvHash(a) == fnvHash(c) {
		t.Error("different vectors are unlikely to collide in this test fixture")
	}
}

func TestLexLessOrdersByFirstDifference(t *testing.T) {
	if !lexLess([]int64{1, 2}, []int64{1, 3}) {
		t.Error("[1 2] should be lexLess than [1 3]")
	}
	if lexLess([]int64{2, 0}, []int64{1, 9}) {
		t.Error("[2 0] should not be lexLess than [1 9]")
	}
}

func TestIsZero(t *testing.T) {
	if !isZero([]int64{0, 0, 0}) {
		t.Error("all-zero vector should report isZero")
	}
	if isZero([]int64{0, 1, 0}) {
		t.Error("vector with a nonzero entry should not report isZero")
	}
}

func buildTwoMonomerMatrix(t *testing.T) *tbn.Matrix {
	t.Helper()
	records := []tbn.MonomerRecord{
		{Name: "a", Sites: []tbn.BindingSite{{Name: "x", Star: false}}},
		{Name: "b", Sites: []tbn.BindingSite{{Name: "x", Star: true}}},
	}
	m, err := tbn.Build(records, false)
	if err != nil {
		t.Fatalf("tbn.Build: %v", err)
	}
	return m
}

func TestComputeProjectsDedupsAndSorts(t *testing.T) {
	m := buildTwoMonomerMatrix(t)
	oracle := &fakeOracle{vectors: [][]int64{
		{1, 1, 0, 0}, // a+b duplex, fake-monomer components zero
		{1, 1, 0, 0}, // duplicate of the above
		{0, 0, 0, 0}, // zero vector, must be dropped
		{2, 2, 0, 0},
	}}

	basis, err := Compute(context.Background(), m, oracle, Options{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(basis.Polymers) != 2 {
		t.Fatalf("len(Polymers) = %d, want 2", len(basis.Polymers))
	}
	if !vectorEqual(basis.Polymers[0], []int64{1, 1}) {
		t.Errorf("Polymers[0] = %v, want [1 1]", basis.Polymers[0])
	}
	if !vectorEqual(basis.Polymers[1], []int64{2, 2}) {
		t.Errorf("Polymers[1] = %v, want [2 2]", basis.Polymers[1])
	}
}

func TestComputeNoVectorsIsError(t *testing.T) {
	m := buildTwoMonomerMatrix(t)
	oracle := &fakeOracle{vectors: nil}

	if _, err := Compute(context.Background(), m, oracle, Options{}); err == nil {
		t.Fatal("expected an error when the oracle returns no vectors")
	}
}
