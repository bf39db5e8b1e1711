package tbn

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// CanonicalHash computes a deterministic hash over the content-sorted
// column multiset plus the ordered binding-site name list (spec.md §4.1,
// §4.8, §9). Two matrices differing only by column permutation hash
// identically; changing any column's vector, or the binding-site name
// ordering, changes the hash.
//
// The original Python prototype hashes the matrix's raw column-order bytes
// (tobytes()), which is NOT permutation-invariant; spec.md requires
// permutation invariance explicitly, so this implementation sorts the
// column byte-keys before hashing.
func (m *Matrix) CanonicalHash() (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}

	for _, name := range m.SiteNames {
		_, _ = h.Write([]byte(name))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte{0xff})

	keys := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		keys[i] = vectorKey(col.Vector)
	}
	sort.Strings(keys)

	var lenBuf [8]byte
	for _, k := range keys {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(k)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write([]byte(k))
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
