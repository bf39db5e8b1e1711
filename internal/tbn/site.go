// Package tbn implements the monomer/matrix model (C1): signed integer
// monomer vectors, the monomer matrix A, the star-limiting invariant, and
// the canonical column-permutation-invariant matrix hash that keys the
// artifact cache.
package tbn

import (
	"strings"

	tbnerrors "tbnexplorer2/internal/errors"
)

// reservedChars may not appear in a binding-site or monomer name.
const reservedChars = ",>*|:\\"

// ValidateName rejects names containing reserved characters or whitespace.
func ValidateName(name string) error {
	if name == "" {
		return tbnerrors.New(tbnerrors.ParseError, "tbn", "name must not be empty")
	}
	if strings.ContainsAny(name, reservedChars) {
		return tbnerrors.New(tbnerrors.ParseError, "tbn", "name "+name+" contains a reserved character ("+reservedChars+")")
	}
	for _, r := range name {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return tbnerrors.New(tbnerrors.ParseError, "tbn", "name "+name+" contains whitespace")
		}
	}
	return nil
}

// BindingSite is a named, typed token: a base name plus a star/unstar flag.
// `a` and `a*` are the complementary pair on base name "a".
type BindingSite struct {
	Name string
	Star bool
}

// String renders the site the way it appears in .tbn source: "a" or "a*".
func (s BindingSite) String() string {
	if s.Star {
		return s.Name + "*"
	}
	return s.Name
}
