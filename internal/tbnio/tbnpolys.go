package tbnio

import (
	"bufio"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strconv"
	"strings"

	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/tbn"
)

// multiplicityLineRe matches the optional "n | " prefix (spec.md §6).
var multiplicityLineRe = regexp.MustCompile(`^(\d+)\s*\|\s*(.+)$`)

// muTrailerRe matches an IBOT "# mu: value" trailer line. The ASCII
// spelling "mu" is accepted alongside the Greek "μ" since source files are
// plain-text and editors vary in how they enter the character.
var muTrailerRe = regexp.MustCompile(`^#\s*(?:μ|mu)\s*:\s*(.+)$`)

// Polymer is one parsed polymer: counts over the monomer matrix's columns,
// plus an optional IBOT mu trailer value.
type Polymer struct {
	Counts []int64
	Mu     *big.Rat
}

// ParseTBNPolys parses a .tbnpolys file against a monomer matrix, resolving
// each line's name-or-sites spec to a column index (spec.md §6;
// original_source/tbnexplorer2/tbnpolys_io.py).
func ParseTBNPolys(path string, m *tbn.Matrix) ([]Polymer, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent, "failed to open .tbnpolys file", err)
	}

	nameIndex := make(map[string]int, m.NumMonomers())
	for j, col := range m.Columns {
		if col.Name != nil {
			nameIndex[*col.Name] = j
		}
	}
	sitesIndex := make(map[string]int, m.NumMonomers())
	for j, col := range m.Columns {
		sitesIndex[sitesKey(m.SiteNames, col.Vector)] = j
	}

	var polymers []Polymer
	var current []int64
	var currentMu *big.Rat
	hasCurrent := false

	flush := func() {
		if hasCurrent {
			polymers = append(polymers, Polymer{Counts: current, Mu: currentMu})
		}
		current = make([]int64, m.NumMonomers())
		currentMu = nil
		hasCurrent = false
	}
	current = make([]int64, m.NumMonomers())

	lines := strings.Split(string(content), "\n")
	for lineNo, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		isCommentOnly := strings.HasPrefix(trimmed, "#")

		if isCommentOnly {
			if mu := muTrailerRe.FindStringSubmatch(trimmed); mu != nil {
				v, ok := new(big.Rat).SetString(strings.TrimSpace(mu[1]))
				if !ok {
					f, err := strconv.ParseFloat(strings.TrimSpace(mu[1]), 64)
					if err != nil {
						return nil, tbnerrors.New(tbnerrors.ParseError, tbnComponent,
							fmt.Sprintf("line %d: invalid mu trailer value %q", lineNo+1, mu[1]))
					}
					v = new(big.Rat).SetFloat64(f)
				}
				currentMu = v
			}
			continue
		}

		line := trimmed
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		if line == "" {
			flush()
			continue
		}

		mult := int64(1)
		spec := line
		if match := multiplicityLineRe.FindStringSubmatch(line); match != nil {
			n, err := strconv.ParseInt(match[1], 10, 64)
			if err != nil {
				return nil, tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent,
					fmt.Sprintf("line %d: invalid multiplicity", lineNo+1), err)
			}
			mult = n
			spec = strings.TrimSpace(match[2])
		}

		j, err := resolveMonomerSpec(spec, nameIndex, sitesIndex, m.SiteNames)
		if err != nil {
			return nil, tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent, fmt.Sprintf("line %d", lineNo+1), err)
		}
		current[j] += mult
		hasCurrent = true
	}
	flush()

	if len(polymers) == 0 {
		return nil, tbnerrors.New(tbnerrors.ParseError, tbnComponent, ".tbnpolys file declares no polymers")
	}
	return polymers, nil
}

// resolveMonomerSpec resolves a monomer token to a column index, accepting
// a bare name, a "name: sites" form with cross-validation, or a bare
// binding-site occurrence list in any order
// (tbnpolys_io.py::_resolve_monomer).
func resolveMonomerSpec(spec string, nameIndex, sitesIndex map[string]int, siteNames []string) (int, error) {
	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		name := strings.TrimSpace(spec[:idx])
		sitesStr := strings.TrimSpace(spec[idx+1:])
		j, ok := nameIndex[name]
		if !ok {
			return 0, tbnerrors.New(tbnerrors.ParseError, tbnComponent, fmt.Sprintf("monomer name %q not found", name))
		}
		sites, err := parseSites(sitesStr)
		if err != nil {
			return 0, err
		}
		wantKey := sitesKey(siteNames, vectorFromSites(siteNames, sites))
		if j2, ok := sitesIndex[wantKey]; !ok || j2 != j {
			return 0, tbnerrors.New(tbnerrors.ParseError, tbnComponent,
				fmt.Sprintf("monomer %q's declared binding sites do not match its definition in the .tbn file", name))
		}
		return j, nil
	}

	if j, ok := nameIndex[spec]; ok {
		return j, nil
	}

	sites, err := parseSites(spec)
	if err != nil {
		return 0, err
	}
	key := sitesKey(siteNames, vectorFromSites(siteNames, sites))
	if j, ok := sitesIndex[key]; ok {
		return j, nil
	}
	return 0, tbnerrors.New(tbnerrors.ParseError, tbnComponent, fmt.Sprintf("cannot resolve monomer %q", spec))
}

func vectorFromSites(siteNames []string, sites []tbn.BindingSite) []int64 {
	idx := make(map[string]int, len(siteNames))
	for i, n := range siteNames {
		idx[n] = i
	}
	v := make([]int64, len(siteNames))
	for _, s := range sites {
		i, ok := idx[s.Name]
		if !ok {
			continue // unknown site name never matches any column; caller reports "cannot resolve"
		}
		if s.Star {
			v[i]--
		} else {
			v[i]++
		}
	}
	return v
}

// sitesKey produces a canonical key for a signed count vector, matching
// tbn.vectorKey's role but local to this package (unexported there).
func sitesKey(siteNames []string, v []int64) string {
	var b strings.Builder
	for _, c := range v {
		fmt.Fprintf(&b, "%d,", c)
	}
	return b.String()
}

// WriteTBNPolys writes polymers in the .tbnpolys format (spec.md §6),
// preferring each polymer's declared name when present, multiplicity
// prefixes for counts > 1, and an optional "# mu: value" trailer per
// polymer when mus is non-nil.
func WriteTBNPolys(path string, m *tbn.Matrix, polymers [][]int64, mus []*big.Rat) error {
	f, err := os.Create(path)
	if err != nil {
		return tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent, "failed to create .tbnpolys file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	for i, poly := range polymers {
		for j, count := range poly {
			if count == 0 {
				continue
			}
			spec := monomerSpec(m, j)
			if count == 1 {
				if _, err := fmt.Fprintln(w, spec); err != nil {
					return err
				}
			} else if _, err := fmt.Fprintf(w, "%d | %s\n", count, spec); err != nil {
				return err
			}
		}
		if mus != nil && i < len(mus) && mus[i] != nil {
			if _, err := fmt.Fprintf(w, "# mu: %s\n", mus[i].RatString()); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func monomerSpec(m *tbn.Matrix, j int) string {
	col := m.Columns[j]
	if col.Name != nil {
		return *col.Name
	}
	return renderSites(m.SiteNames, col.Vector)
}
