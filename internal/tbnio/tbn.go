package tbnio

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	tbnerrors "tbnexplorer2/internal/errors"
	"tbnexplorer2/internal/tbn"
)

const tbnComponent = "tbnio"

var paramTokenRe = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// ParseResult is everything ParseTBN recovers from a .tbn file beyond the
// matrix itself: the declared concentration unit (if any) and whether a
// units header was present at all (spec.md §4.1's unitsDeclared flag).
type ParseResult struct {
	Matrix      *tbn.Matrix
	Unit        string
	UnitsHeader bool
}

// ParseTBN reads a .tbn file (spec.md §6): `#` line comments, an optional
// `\UNITS: {nM|pM|uM|mM|M}` header, and monomer lines in any of the three
// forms `name: sites[, conc]`, `sites > name[, conc]`, or `sites[, conc]`.
// `{{expr}}` tokens within the concentration field are substituted via
// vars before parsing the numeric value.
func ParseTBN(path string, vars map[string]float64) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent, "failed to open .tbn file", err)
	}
	defer f.Close()

	var unit string
	var unitsHeader bool
	var records []tbn.MonomerRecord

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := stripComment(raw)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, `\UNITS:`) {
			if unitsHeader {
				return nil, tbnerrors.New(tbnerrors.ParseError, tbnComponent,
					fmt.Sprintf("line %d: duplicate \\UNITS: header", lineNo))
			}
			u := strings.TrimSpace(strings.TrimPrefix(trimmed, `\UNITS:`))
			if err := tbn.ValidateUnit(u); err != nil {
				return nil, tbnerrors.New(tbnerrors.ParseError, tbnComponent,
					fmt.Sprintf("line %d: %v", lineNo, err))
			}
			unit = u
			unitsHeader = true
			continue
		}

		rec, err := parseMonomerLine(trimmed, vars)
		if err != nil {
			return nil, tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent,
				fmt.Sprintf("line %d", lineNo), err)
		}
		rec.OriginalLine = raw
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent, "failed to read .tbn file", err)
	}
	if len(records) == 0 {
		return nil, tbnerrors.New(tbnerrors.ParseError, tbnComponent, ".tbn file declares no monomers")
	}

	m, err := tbn.Build(records, unitsHeader)
	if err != nil {
		return nil, err
	}
	return &ParseResult{Matrix: m, Unit: unit, UnitsHeader: unitsHeader}, nil
}

// stripComment removes a trailing `#...` comment, respecting none of the
// three monomer-line forms' syntax (no format uses `#` as a token).
func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// parseMonomerLine parses one of the three forms (spec.md §6):
//
//	name: site ...[, conc]
//	site ... > name[, conc]
//	site ...[, conc]
func parseMonomerLine(line string, vars map[string]float64) (tbn.MonomerRecord, error) {
	body, concField, hasConcField := splitConcentration(line)

	var name string
	var sitesStr string
	switch {
	case strings.Contains(body, ":"):
		parts := strings.SplitN(body, ":", 2)
		name = strings.TrimSpace(parts[0])
		sitesStr = strings.TrimSpace(parts[1])
	case strings.Contains(body, ">"):
		parts := strings.SplitN(body, ">", 2)
		sitesStr = strings.TrimSpace(parts[0])
		name = strings.TrimSpace(parts[1])
	default:
		sitesStr = strings.TrimSpace(body)
	}

	if name != "" {
		if err := tbn.ValidateName(name); err != nil {
			return tbn.MonomerRecord{}, err
		}
	}

	sites, err := parseSites(sitesStr)
	if err != nil {
		return tbn.MonomerRecord{}, err
	}
	if len(sites) == 0 {
		return tbn.MonomerRecord{}, tbnerrors.New(tbnerrors.ParseError, tbnComponent, "monomer line declares no binding sites")
	}

	rec := tbn.MonomerRecord{Name: name, Sites: sites}
	if hasConcField {
		resolved, err := resolveParamTokens(concField, vars)
		if err != nil {
			return tbn.MonomerRecord{}, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(resolved), 64)
		if err != nil {
			return tbn.MonomerRecord{}, tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent,
				fmt.Sprintf("invalid concentration field %q", concField), err)
		}
		rec.Concentration = &v
	}
	return rec, nil
}

// splitConcentration splits "sites-or-name-part, conc" on the last
// top-level comma (site/name tokens themselves never contain commas per
// the reserved-character set).
func splitConcentration(line string) (body string, concField string, has bool) {
	idx := strings.LastIndexByte(line, ',')
	if idx < 0 {
		return strings.TrimSpace(line), "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func parseSites(s string) ([]tbn.BindingSite, error) {
	fields := strings.Fields(s)
	sites := make([]tbn.BindingSite, 0, len(fields))
	for _, f := range fields {
		star := strings.HasSuffix(f, "*")
		name := f
		if star {
			name = strings.TrimSuffix(f, "*")
		}
		if err := tbn.ValidateName(name); err != nil {
			return nil, err
		}
		sites = append(sites, tbn.BindingSite{Name: name, Star: star})
	}
	return sites, nil
}

// resolveParamTokens substitutes every `{{expr}}` token in s with the
// result of evaluating expr against vars (spec.md §6).
func resolveParamTokens(s string, vars map[string]float64) (string, error) {
	var firstErr error
	out := paramTokenRe.ReplaceAllStringFunc(s, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		inner := paramTokenRe.FindStringSubmatch(tok)[1]
		v, err := EvalExpr(strings.TrimSpace(inner), vars)
		if err != nil {
			firstErr = err
			return tok
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// WriteTBN writes a .tbn file from a matrix, one monomer per line as
// "sites", prefixed with "name: " when the column is named and followed by
// ", conc" when it has a concentration.
func WriteTBN(path string, m *tbn.Matrix, unit string) error {
	f, err := os.Create(path)
	if err != nil {
		return tbnerrors.Wrap(tbnerrors.ParseError, tbnComponent, "failed to create .tbn file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	if m.ConcentrationsSet {
		if err := tbn.ValidateUnit(unit); err != nil {
			return tbnerrors.New(tbnerrors.ParseError, tbnComponent, err.Error())
		}
		if _, err := fmt.Fprintf(w, "\\UNITS: %s\n", unit); err != nil {
			return err
		}
	}

	for j := 0; j < m.NumMonomers(); j++ {
		col := m.Columns[j]
		sitesStr := renderSites(m.SiteNames, col.Vector)

		var line string
		if col.Name != nil {
			line = fmt.Sprintf("%s: %s", *col.Name, sitesStr)
		} else {
			line = sitesStr
		}
		if col.Concentration != nil {
			line = fmt.Sprintf("%s, %s", line, strconv.FormatFloat(*col.Concentration, 'g', -1, 64))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// renderSites reconstructs a "site site* ..." occurrence string from a
// signed count vector: a positive count emits that many unstarred
// occurrences, a negative count that many starred occurrences.
func renderSites(siteNames []string, vector []int64) string {
	var tokens []string
	for i, c := range vector {
		if c == 0 {
			continue
		}
		count := c
		suffix := ""
		if count < 0 {
			suffix = "*"
			count = -count
		}
		for k := int64(0); k < count; k++ {
			tokens = append(tokens, siteNames[i]+suffix)
		}
	}
	return strings.Join(tokens, " ")
}
