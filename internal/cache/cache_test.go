package cache

import (
	"os"
	"path/filepath"
	"testing"

	"tbnexplorer2/internal/polymerbasis"
)

func TestOpenCreatesSchemaAndDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cache.db")

	c, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("cache db file not created: %v", err)
	}
}

func TestStoreAndLookupRoundTrip(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	basis := &polymerbasis.Basis{Polymers: [][]int64{{1, 2, 0}, {0, 1, 3}}}
	if err := c.Store("hash-1", basis); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok, err := c.Lookup("hash-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("Lookup should report a hit after Store")
	}
	if len(got.Polymers) != 2 || got.Polymers[0][1] != 2 {
		t.Errorf("got %v, want round-tripped basis", got.Polymers)
	}
}

func TestLookupMissReturnsNoError(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	got, ok, err := c.Lookup("does-not-exist")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok || got != nil {
		t.Errorf("Lookup of missing key should report (nil, false, nil), got (%v, %v)", got, ok)
	}
}

func TestLookupCorruptBlobReturnsStaleNotError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if _, err := c.conn.Exec(
		`INSERT INTO polymer_basis_cache (matrix_hash, basis_blob) VALUES (?, ?)`,
		"corrupt", []byte{0xde, 0xad, 0xbe, 0xef},
	); err != nil {
		t.Fatalf("seeding corrupt row: %v", err)
	}

	got, ok, err := c.Lookup("corrupt")
	if err != nil {
		t.Fatalf("Lookup should not return an error for a corrupt blob, got %v", err)
	}
	if ok || got != nil {
		t.Errorf("Lookup of a corrupt blob should report (nil, false, nil), got (%v, %v)", got, ok)
	}
}

func TestStoreOverwritesExistingEntry(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.Store("hash-1", &polymerbasis.Basis{Polymers: [][]int64{{1}}}); err != nil {
		t.Fatalf("Store 1: %v", err)
	}
	if err := c.Store("hash-1", &polymerbasis.Basis{Polymers: [][]int64{{9}}}); err != nil {
		t.Fatalf("Store 2: %v", err)
	}

	got, ok, err := c.Lookup("hash-1")
	if err != nil || !ok {
		t.Fatalf("Lookup after overwrite: ok=%v err=%v", ok, err)
	}
	if got.Polymers[0][0] != 9 {
		t.Errorf("got %v, want overwritten value [9]", got.Polymers)
	}
}

func TestEncodeDecodeBasisBlobEmptyBasis(t *testing.T) {
	blob, err := encodeBasisBlob(&polymerbasis.Basis{})
	if err != nil {
		t.Fatalf("encodeBasisBlob: %v", err)
	}
	basis, err := decodeBasisBlob(blob)
	if err != nil {
		t.Fatalf("decodeBasisBlob: %v", err)
	}
	if len(basis.Polymers) != 0 {
		t.Errorf("len(Polymers) = %d, want 0", len(basis.Polymers))
	}
}
