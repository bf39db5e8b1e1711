// Package cache implements the content-addressed artifact cache (C8): a
// single-table sqlite store keyed by the monomer matrix's canonical hash,
// holding zstd-compressed polymer-basis blobs. Grounded on the teacher's
// internal/storage/db.go (pragma-tuned sql.Open, WAL journal mode,
// modernc.org/sqlite driver), repurposed from a general-purpose project
// database to this single cache table.
package cache

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"tbnexplorer2/internal/logging"
	"tbnexplorer2/internal/polymerbasis"
)

// Cache wraps a sqlite-backed polymer basis store.
type Cache struct {
	conn   *sql.DB
	logger *logging.Logger
	path   string
}

// Open opens or creates the cache database at path, creating its parent
// directory and schema as needed.
func Open(path string, logger *logging.Logger) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS polymer_basis_cache (
		matrix_hash TEXT PRIMARY KEY,
		basis_blob BLOB NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Cache{conn: conn, logger: logger, path: path}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Lookup returns the cached basis for matrixHash. A missing entry, or a
// blob that fails to decompress or decode, yields (nil, false, nil) — not
// an error — so the caller recomputes (§4.8/§7's CacheStale policy). Any
// other query failure (for example a table with different columns) is
// returned as an error.
func (c *Cache) Lookup(matrixHash string) (*polymerbasis.Basis, bool, error) {
	var blob []byte
	err := c.conn.QueryRow(
		`SELECT basis_blob FROM polymer_basis_cache WHERE matrix_hash = ?`, matrixHash,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	basis, err := decodeBasisBlob(blob)
	if err != nil {
		c.logInfo("cache entry failed to decode, treating as stale", matrixHash, err)
		return nil, false, nil
	}
	return basis, true, nil
}

// Store writes basis under matrixHash, guarded by an advisory sibling lock
// file: a Store that finds the lock already held returns an error instead
// of waiting (readers never check it).
func (c *Cache) Store(matrixHash string, basis *polymerbasis.Basis) error {
	unlock, err := c.acquireWriteLock()
	if err != nil {
		return err
	}
	defer unlock()

	blob, err := encodeBasisBlob(basis)
	if err != nil {
		return err
	}

	_, err = c.conn.Exec(
		`INSERT INTO polymer_basis_cache (matrix_hash, basis_blob) VALUES (?, ?)
		 ON CONFLICT(matrix_hash) DO UPDATE SET basis_blob = excluded.basis_blob, created_at = datetime('now')`,
		matrixHash, blob,
	)
	return err
}

func (c *Cache) logInfo(msg, hash string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, map[string]interface{}{"matrix_hash": hash, "error": err.Error()})
}

func (c *Cache) lockPath() string {
	return c.path + ".lock"
}

// acquireWriteLock creates c.path+".lock" exclusively and fails if it
// already exists, so a concurrent Store is rejected rather than queued;
// readers do not coordinate with it.
func (c *Cache) acquireWriteLock() (func(), error) {
	f, err := os.OpenFile(c.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cache write lock held by another process: %w", err)
	}
	return func() {
		f.Close()
		os.Remove(c.lockPath())
	}, nil
}

// encodeBasisBlob serializes a Basis as a dense row-major int64 buffer
// (row count, column count, then values) and zstd-compresses it.
func encodeBasisBlob(basis *polymerbasis.Basis) ([]byte, error) {
	numRows := len(basis.Polymers)
	numCols := 0
	if numRows > 0 {
		numCols = len(basis.Polymers[0])
	}

	raw := make([]byte, 16+numRows*numCols*8)
	binary.LittleEndian.PutUint64(raw[0:8], uint64(numRows))
	binary.LittleEndian.PutUint64(raw[8:16], uint64(numCols))
	offset := 16
	for _, row := range basis.Polymers {
		for _, v := range row {
			binary.LittleEndian.PutUint64(raw[offset:offset+8], uint64(v))
			offset += 8
		}
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decodeBasisBlob(blob []byte) (*polymerbasis.Basis, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) < 16 {
		return nil, fmt.Errorf("cache blob too short: %d bytes", len(raw))
	}

	numRows := int(binary.LittleEndian.Uint64(raw[0:8]))
	numCols := int(binary.LittleEndian.Uint64(raw[8:16]))
	expected := 16 + numRows*numCols*8
	if len(raw) != expected {
		return nil, fmt.Errorf("cache blob length %d does not match header (want %d)", len(raw), expected)
	}

	polymers := make([][]int64, numRows)
	offset := 16
	for r := 0; r < numRows; r++ {
		row := make([]int64, numCols)
		for col := 0; col < numCols; col++ {
			row[col] = int64(binary.LittleEndian.Uint64(raw[offset : offset+8]))
			offset += 8
		}
		polymers[r] = row
	}

	return &polymerbasis.Basis{Polymers: polymers}, nil
}
