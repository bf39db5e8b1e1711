package filter

import "testing"

func rec(idx int, counts map[string]int64, other bool, conc *float64) Record {
	return Record{Index: idx, NameCounts: counts, OtherNonzero: other, Concentration: conc}
}

func f(v float64) *float64 { return &v }

func TestFilterContains(t *testing.T) {
	records := []Record{
		rec(0, map[string]int64{"A": 2, "B": 1}, false, nil),
		rec(1, map[string]int64{"A": 1}, false, nil),
		rec(2, map[string]int64{"A": 3, "B": 2}, true, nil),
	}
	constraints := []Constraint{{Type: Contains, MonomerNames: []string{"A", "A"}}}

	got := Filter(records, constraints)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 2 {
		t.Errorf("got indices %d, %d, want 0, 2", got[0].Index, got[1].Index)
	}
}

func TestFilterExactly(t *testing.T) {
	records := []Record{
		rec(0, map[string]int64{"A": 1}, false, nil),
		rec(1, map[string]int64{"A": 1, "B": 1}, false, nil),
		rec(2, map[string]int64{"A": 1}, true, nil),
	}
	constraints := []Constraint{{Type: Exactly, MonomerNames: []string{"A"}}}

	got := Filter(records, constraints)
	if len(got) != 1 || got[0].Index != 0 {
		t.Fatalf("got %v, want only index 0", got)
	}
}

func TestFilterORCombination(t *testing.T) {
	records := []Record{
		rec(0, map[string]int64{"A": 1}, false, nil),
		rec(1, map[string]int64{"B": 1}, false, nil),
		rec(2, map[string]int64{"C": 1}, false, nil),
	}
	constraints := []Constraint{
		{Type: Contains, MonomerNames: []string{"A"}},
		{Type: Contains, MonomerNames: []string{"B"}},
	}

	got := Filter(records, constraints)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}

func TestFilterEmptyConstraintsReturnsAll(t *testing.T) {
	records := []Record{rec(0, nil, false, nil), rec(1, nil, false, nil)}
	got := Filter(records, nil)
	if len(got) != 2 {
		t.Errorf("len(got) = %d, want 2", len(got))
	}
}

func TestTruncateMaxCountKeepsHighestConcentration(t *testing.T) {
	records := []Record{
		rec(0, nil, false, f(1.0)),
		rec(1, nil, false, f(5.0)),
		rec(2, nil, false, f(3.0)),
	}
	result := Truncate(records, TruncateOptions{MaxCount: 2})
	if len(result.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(result.Records))
	}
	if result.Records[0].Index != 1 || result.Records[1].Index != 2 {
		t.Errorf("got indices %d, %d, want 1, 2 (highest concentration first)", result.Records[0].Index, result.Records[1].Index)
	}
	if result.DroppedByCap != 1 {
		t.Errorf("DroppedByCap = %d, want 1", result.DroppedByCap)
	}
}

func TestTruncateMinConcentrationFloor(t *testing.T) {
	records := []Record{
		rec(0, nil, false, f(0.5)),
		rec(1, nil, false, f(5.0)),
	}
	result := Truncate(records, TruncateOptions{MinConcentration: 1.0})
	if len(result.Records) != 1 || result.Records[0].Index != 1 {
		t.Fatalf("got %v, want only index 1", result.Records)
	}
	if result.DroppedByConc != 1 {
		t.Errorf("DroppedByConc = %d, want 1", result.DroppedByConc)
	}
}

func TestTruncatePercentOfTotalFloor(t *testing.T) {
	records := []Record{
		rec(0, nil, false, f(1.0)),
		rec(1, nil, false, f(99.0)),
	}
	// total = 100; record 0 is 1% of total
	result := Truncate(records, TruncateOptions{MinPercentOfTotal: 2.0})
	if len(result.Records) != 1 || result.Records[0].Index != 1 {
		t.Fatalf("got %v, want only index 1", result.Records)
	}
	if result.DroppedByPct != 1 {
		t.Errorf("DroppedByPct = %d, want 1", result.DroppedByPct)
	}
}

func TestTruncateAllThreeBoundsStack(t *testing.T) {
	records := []Record{
		rec(0, nil, false, f(0.1)),  // dropped by conc floor
		rec(1, nil, false, f(50.0)), // survives floors
		rec(2, nil, false, f(49.9)), // survives floors
	}
	result := Truncate(records, TruncateOptions{MaxCount: 1, MinConcentration: 1.0, MinPercentOfTotal: 1.0})
	if len(result.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(result.Records))
	}
	if result.Records[0].Index != 1 {
		t.Errorf("Records[0].Index = %d, want 1", result.Records[0].Index)
	}
	if result.DroppedByConc != 1 {
		t.Errorf("DroppedByConc = %d, want 1", result.DroppedByConc)
	}
	if result.DroppedByCap != 1 {
		t.Errorf("DroppedByCap = %d, want 1", result.DroppedByCap)
	}
}

func TestFormatConcentration(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "0.00 nM"},
		{0.0001, "1.00e-04 nM"},
		{0.005, "0.0050 nM"},
		{0.05, "0.050 nM"},
		{5, "5.00 nM"},
		{99.9, "99.9 nM"},
		{5000, "5000 nM"},
		{100000, "1.00e+05 nM"},
		{-5, "-5.00 nM"},
	}
	for _, tt := range tests {
		if got := FormatConcentration(tt.value, "nM"); got != tt.want {
			t.Errorf("FormatConcentration(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
