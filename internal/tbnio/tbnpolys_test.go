package tbnio

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"tbnexplorer2/internal/tbn"
)

func buildTestMatrix(t *testing.T) *tbn.Matrix {
	t.Helper()
	path := writeTempTBN(t, "A: a b*\nB: a*\nC: b\n")
	res, err := ParseTBN(path, nil)
	if err != nil {
		t.Fatalf("ParseTBN: %v", err)
	}
	return res.Matrix
}

func writeTempPolys(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tbnpolys")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseTBNPolysNameForm(t *testing.T) {
	m := buildTestMatrix(t)
	path := writeTempPolys(t, "A\nB\n\nC\n")
	polys, err := ParseTBNPolys(path, m)
	if err != nil {
		t.Fatalf("ParseTBNPolys: %v", err)
	}
	if len(polys) != 2 {
		t.Fatalf("len(polys) = %d, want 2", len(polys))
	}
	if polys[0].Counts[0] != 1 || polys[0].Counts[1] != 1 {
		t.Errorf("polys[0].Counts = %v, want [1 1 0]", polys[0].Counts)
	}
	if polys[1].Counts[2] != 1 {
		t.Errorf("polys[1].Counts = %v, want [0 0 1]", polys[1].Counts)
	}
}

func TestParseTBNPolysMultiplicityPrefix(t *testing.T) {
	m := buildTestMatrix(t)
	path := writeTempPolys(t, "2 | A\nB\n")
	polys, err := ParseTBNPolys(path, m)
	if err != nil {
		t.Fatalf("ParseTBNPolys: %v", err)
	}
	if polys[0].Counts[0] != 2 {
		t.Errorf("Counts[0] = %d, want 2", polys[0].Counts[0])
	}
}

func TestParseTBNPolysSitesForm(t *testing.T) {
	m := buildTestMatrix(t)
	path := writeTempPolys(t, "a b*\n")
	polys, err := ParseTBNPolys(path, m)
	if err != nil {
		t.Fatalf("ParseTBNPolys: %v", err)
	}
	if polys[0].Counts[0] != 1 {
		t.Errorf("Counts = %v, want monomer A assigned", polys[0].Counts)
	}
}

func TestParseTBNPolysMuTrailer(t *testing.T) {
	m := buildTestMatrix(t)
	path := writeTempPolys(t, "A\n# mu: 3/2\n")
	polys, err := ParseTBNPolys(path, m)
	if err != nil {
		t.Fatalf("ParseTBNPolys: %v", err)
	}
	if polys[0].Mu == nil || polys[0].Mu.Cmp(big.NewRat(3, 2)) != 0 {
		t.Errorf("Mu = %v, want 3/2", polys[0].Mu)
	}
}

func TestParseTBNPolysUnresolvedMonomer(t *testing.T) {
	m := buildTestMatrix(t)
	path := writeTempPolys(t, "Z\n")
	if _, err := ParseTBNPolys(path, m); err == nil {
		t.Fatal("expected error for unresolvable monomer")
	}
}

func TestWriteTBNPolysRoundTrip(t *testing.T) {
	m := buildTestMatrix(t)
	polymers := [][]int64{{2, 1, 0}, {0, 0, 3}}
	mus := []*big.Rat{big.NewRat(1, 1), nil}

	path := filepath.Join(t.TempDir(), "out.tbnpolys")
	if err := WriteTBNPolys(path, m, polymers, mus); err != nil {
		t.Fatalf("WriteTBNPolys: %v", err)
	}

	parsed, err := ParseTBNPolys(path, m)
	if err != nil {
		t.Fatalf("ParseTBNPolys(round-trip): %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("len(parsed) = %d, want 2", len(parsed))
	}
	if parsed[0].Counts[0] != 2 || parsed[0].Counts[1] != 1 {
		t.Errorf("parsed[0].Counts = %v, want [2 1 0]", parsed[0].Counts)
	}
	if parsed[0].Mu == nil || parsed[0].Mu.Cmp(big.NewRat(1, 1)) != 0 {
		t.Errorf("parsed[0].Mu = %v, want 1", parsed[0].Mu)
	}
	if parsed[1].Counts[2] != 3 {
		t.Errorf("parsed[1].Counts = %v, want [0 0 3]", parsed[1].Counts)
	}
}
