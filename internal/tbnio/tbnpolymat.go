package tbnio

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	tbnerrors "tbnexplorer2/internal/errors"
)

// Polymat is a parsed .tbnpolymat artifact: one row per polymer, each row's
// first n_monomers fields its monomer counts, plus optional per-row free
// energy and concentration columns (spec.md §6; grounded on
// original_source/tbnexplorer2/polymat_io.py's PolymatData).
type Polymat struct {
	NumMonomers       int
	Polymers          [][]int64
	FreeEnergies      []float64 // nil if not present
	Concentrations    []float64 // nil if not present
	ConcentrationUnit string
	MatrixHash        string
	Parameters        map[string]string
	MonomerNames      []string // optional, used only for --friendly-basis comment rendering
}

const polymatComponent = "tbnio"

// ParseTBNPolymat reads a .tbnpolymat artifact (spec.md §6): header comment
// lines plus the `\MATRIX-HASH:` and `\PARAMETERS:` keyword lines (no "#"
// prefix), followed by whitespace-separated data rows.
func ParseTBNPolymat(path string) (*Polymat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.ParseError, polymatComponent, "failed to open .tbnpolymat file", err)
	}
	defer f.Close()

	pm := &Polymat{Parameters: map[string]string{}}
	var numMonomers = -1
	// singleColumnIsConcentration disambiguates a lone trailing data column
	// (free energy vs. concentration) once, from the first data row seen,
	// and is then applied consistently to every row (a file never mixes
	// the two single-column meanings row to row).
	var singleColumnIsConcentration *bool

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "#"):
			body := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			if v, ok := headerValue(body, "Number of monomers:"); ok {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, tbnerrors.New(tbnerrors.ParseError, polymatComponent,
						fmt.Sprintf("line %d: invalid monomer count %q", lineNo, v))
				}
				numMonomers = n
			} else if v, ok := headerValue(body, "Concentration units:"); ok {
				pm.ConcentrationUnit = v
			}
			continue

		case strings.HasPrefix(trimmed, `\MATRIX-HASH:`):
			pm.MatrixHash = strings.TrimSpace(strings.TrimPrefix(trimmed, `\MATRIX-HASH:`))
			continue

		case strings.HasPrefix(trimmed, `\PARAMETERS:`):
			body := strings.TrimSpace(strings.TrimPrefix(trimmed, `\PARAMETERS:`))
			for _, kv := range strings.Fields(body) {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) == 2 {
					pm.Parameters[parts[0]] = parts[1]
				}
			}
			continue

		case strings.HasPrefix(trimmed, `\UNITS:`):
			pm.ConcentrationUnit = strings.TrimSpace(strings.TrimPrefix(trimmed, `\UNITS:`))
			continue
		}

		if numMonomers < 0 {
			return nil, tbnerrors.New(tbnerrors.ParseError, polymatComponent,
				fmt.Sprintf("line %d: data row encountered before monomer-count header", lineNo))
		}

		fields := strings.Fields(trimmed)
		if len(fields) < numMonomers {
			return nil, tbnerrors.New(tbnerrors.ParseError, polymatComponent,
				fmt.Sprintf("line %d: expected at least %d fields, got %d", lineNo, numMonomers, len(fields)))
		}

		counts := make([]int64, numMonomers)
		for i := 0; i < numMonomers; i++ {
			c, err := strconv.ParseInt(fields[i], 10, 64)
			if err != nil {
				return nil, tbnerrors.Wrap(tbnerrors.ParseError, polymatComponent,
					fmt.Sprintf("line %d: invalid monomer count field", lineNo), err)
			}
			counts[i] = c
		}
		pm.Polymers = append(pm.Polymers, counts)

		extra := fields[numMonomers:]
		switch len(extra) {
		case 0:
		case 1:
			v, err := strconv.ParseFloat(extra[0], 64)
			if err != nil {
				return nil, tbnerrors.Wrap(tbnerrors.ParseError, polymatComponent,
					fmt.Sprintf("line %d: invalid trailing value", lineNo), err)
			}
			if singleColumnIsConcentration == nil {
				isConc := pm.ConcentrationUnit != ""
				singleColumnIsConcentration = &isConc
			}
			if *singleColumnIsConcentration {
				pm.Concentrations = append(pm.Concentrations, v)
			} else {
				pm.FreeEnergies = append(pm.FreeEnergies, v)
			}
		case 2:
			dg, err := strconv.ParseFloat(extra[0], 64)
			if err != nil {
				return nil, tbnerrors.Wrap(tbnerrors.ParseError, polymatComponent,
					fmt.Sprintf("line %d: invalid free energy field", lineNo), err)
			}
			conc, err := strconv.ParseFloat(extra[1], 64)
			if err != nil {
				return nil, tbnerrors.Wrap(tbnerrors.ParseError, polymatComponent,
					fmt.Sprintf("line %d: invalid concentration field", lineNo), err)
			}
			pm.FreeEnergies = append(pm.FreeEnergies, dg)
			pm.Concentrations = append(pm.Concentrations, conc)
		default:
			return nil, tbnerrors.New(tbnerrors.ParseError, polymatComponent,
				fmt.Sprintf("line %d: too many trailing fields", lineNo))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.ParseError, polymatComponent, "failed to read .tbnpolymat file", err)
	}
	if numMonomers < 0 {
		return nil, tbnerrors.New(tbnerrors.ParseError, polymatComponent, ".tbnpolymat file missing monomer-count header")
	}
	pm.NumMonomers = numMonomers
	return pm, nil
}

func headerValue(body, key string) (string, bool) {
	if !strings.HasPrefix(body, key) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(body, key)), true
}

// WriteTBNPolymat writes a .tbnpolymat artifact (spec.md §6; grounded on
// polymat_io.py's PolymatWriter). Concentrations are formatted with
// FormatConcentration's exponent-range rule.
func WriteTBNPolymat(path string, pm *Polymat) error {
	f, err := os.Create(path)
	if err != nil {
		return tbnerrors.Wrap(tbnerrors.ParseError, polymatComponent, "failed to create .tbnpolymat file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	fmt.Fprintln(w, "# TBN Polymer Matrix")
	fmt.Fprintf(w, "# Number of polymers: %d\n", len(pm.Polymers))
	fmt.Fprintf(w, "# Number of monomers: %d\n", pm.NumMonomers)
	if pm.MatrixHash != "" {
		fmt.Fprintf(w, "\\MATRIX-HASH: %s\n", pm.MatrixHash)
	}
	if len(pm.Parameters) > 0 {
		keys := make([]string, 0, len(pm.Parameters))
		for k := range pm.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, pm.Parameters[k])
		}
		fmt.Fprintf(w, "\\PARAMETERS: %s\n", strings.Join(parts, " "))
	}
	if pm.ConcentrationUnit != "" {
		fmt.Fprintf(w, "\\UNITS: %s\n", pm.ConcentrationUnit)
	}
	fmt.Fprintln(w, "# Columns: monomer counts, [free energy], [concentration]")
	fmt.Fprintln(w, "#")

	for i, row := range pm.Polymers {
		if len(pm.MonomerNames) == len(row) {
			fmt.Fprintf(w, "# %s\n", friendlyPolymerComment(pm.MonomerNames, row))
		}
		fields := make([]string, 0, len(row)+2)
		for _, c := range row {
			fields = append(fields, strconv.FormatInt(c, 10))
		}
		if pm.FreeEnergies != nil && i < len(pm.FreeEnergies) {
			fields = append(fields, strconv.FormatFloat(pm.FreeEnergies[i], 'g', -1, 64))
		}
		if pm.Concentrations != nil && i < len(pm.Concentrations) {
			fields = append(fields, formatPolymatConcentration(pm.Concentrations[i]))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

// formatPolymatConcentration formats a concentration in plain decimal when
// the exponent lies in [-3, 3] (spec.md §6), with 2-exponent decimals: 3
// significant digits, except at exponent 3, where the whole number is
// printed (1200). Other values use scientific notation with 3 significant
// digits.
func formatPolymatConcentration(v float64) string {
	if v == 0 {
		return "0.00"
	}
	abs := v
	if abs < 0 {
		abs = -abs
	}
	exp := exponentOf(abs)
	if exp >= -3 && exp <= 3 {
		decimals := 2 - exp
		if decimals < 0 {
			decimals = 0
		}
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}
	return strconv.FormatFloat(v, 'e', 2, 64)
}

// friendlyPolymerComment renders "2 hairpinA + 1 linkerB"-style text for a
// polymer's monomer counts (spec.md §6 --friendly-basis).
func friendlyPolymerComment(names []string, counts []int64) string {
	var parts []string
	for i, c := range counts {
		if c == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", c, names[i]))
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, " + ")
}

func exponentOf(abs float64) int {
	exp := 0
	for abs >= 10 {
		abs /= 10
		exp++
	}
	for abs < 1 {
		abs *= 10
		exp--
	}
	return exp
}
