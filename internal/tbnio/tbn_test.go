package tbnio

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempTBN(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.tbn")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseTBNNameForm(t *testing.T) {
	path := writeTempTBN(t, "# comment\nA: a b*\nB: a*\n")
	res, err := ParseTBN(path, nil)
	if err != nil {
		t.Fatalf("ParseTBN: %v", err)
	}
	if res.Matrix.NumMonomers() != 2 {
		t.Fatalf("NumMonomers = %d, want 2", res.Matrix.NumMonomers())
	}
	if res.UnitsHeader {
		t.Error("UnitsHeader should be false without a \\UNITS: header")
	}
}

func TestParseTBNArrowForm(t *testing.T) {
	path := writeTempTBN(t, "a b* > A\n")
	res, err := ParseTBN(path, nil)
	if err != nil {
		t.Fatalf("ParseTBN: %v", err)
	}
	col := res.Matrix.Columns[0]
	if col.Name == nil || *col.Name != "A" {
		t.Errorf("Name = %v, want A", col.Name)
	}
}

func TestParseTBNBareSitesForm(t *testing.T) {
	path := writeTempTBN(t, "a b*\nc*\n")
	res, err := ParseTBN(path, nil)
	if err != nil {
		t.Fatalf("ParseTBN: %v", err)
	}
	if res.Matrix.NumMonomers() != 2 {
		t.Fatalf("NumMonomers = %d, want 2", res.Matrix.NumMonomers())
	}
}

func TestParseTBNUnitsHeaderAndConcentration(t *testing.T) {
	path := writeTempTBN(t, "\\UNITS: nM\nA: a, 10\nB: a*, 5\n")
	res, err := ParseTBN(path, nil)
	if err != nil {
		t.Fatalf("ParseTBN: %v", err)
	}
	if !res.UnitsHeader || res.Unit != "nM" {
		t.Fatalf("UnitsHeader=%v Unit=%q, want true/nM", res.UnitsHeader, res.Unit)
	}
	concs := res.Matrix.Concentrations()
	if concs == nil || concs[0] != 10 || concs[1] != 5 {
		t.Errorf("Concentrations = %v, want [10 5]", concs)
	}
}

func TestParseTBNParamTokenInConcentration(t *testing.T) {
	path := writeTempTBN(t, "\\UNITS: nM\nA: a, {{c * 2}}\n")
	res, err := ParseTBN(path, map[string]float64{"c": 5})
	if err != nil {
		t.Fatalf("ParseTBN: %v", err)
	}
	concs := res.Matrix.Concentrations()
	if concs[0] != 10 {
		t.Errorf("Concentration = %v, want 10", concs[0])
	}
}

func TestParseTBNInvalidUnit(t *testing.T) {
	path := writeTempTBN(t, "\\UNITS: banana\nA: a\n")
	if _, err := ParseTBN(path, nil); err == nil {
		t.Fatal("expected error for invalid units")
	}
}

func TestParseTBNNoMonomers(t *testing.T) {
	path := writeTempTBN(t, "# just a comment\n")
	if _, err := ParseTBN(path, nil); err == nil {
		t.Fatal("expected error for a file with no monomers")
	}
}

func TestWriteTBNRoundTrip(t *testing.T) {
	path := writeTempTBN(t, "\\UNITS: nM\nA: a b*, 10\nB: a*, 5\n")
	res, err := ParseTBN(path, nil)
	if err != nil {
		t.Fatalf("ParseTBN: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "out.tbn")
	if err := WriteTBN(outPath, res.Matrix, res.Unit); err != nil {
		t.Fatalf("WriteTBN: %v", err)
	}

	res2, err := ParseTBN(outPath, nil)
	if err != nil {
		t.Fatalf("ParseTBN(round-trip): %v", err)
	}
	if res2.Matrix.NumMonomers() != res.Matrix.NumMonomers() {
		t.Fatalf("round trip NumMonomers mismatch: %d vs %d", res2.Matrix.NumMonomers(), res.Matrix.NumMonomers())
	}
	concs := res2.Matrix.Concentrations()
	if concs[0] != 10 || concs[1] != 5 {
		t.Errorf("round trip Concentrations = %v, want [10 5]", concs)
	}
}
