package tbn

import (
	"fmt"

	tbnerrors "tbnexplorer2/internal/errors"
)

// MonomerRecord is a single parsed monomer line: an optional name, the
// ordered binding-site occurrence list as written, and an optional
// concentration in the file's declared units.
type MonomerRecord struct {
	Name          string // "" if anonymous
	Sites         []BindingSite
	Concentration *float64
	OriginalLine  string
}

// Vector converts the record's site occurrence list into the signed count
// vector over the given binding-site index: v[i] = (#unstar at i) - (#star at i).
func (r MonomerRecord) Vector(siteIndex map[string]int) []int64 {
	v := make([]int64, len(siteIndex))
	for _, s := range r.Sites {
		idx := siteIndex[s.Name]
		if s.Star {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	return v
}

func vectorKey(v []int64) string {
	b := make([]byte, 0, len(v)*8)
	for _, x := range v {
		u := uint64(x)
		for i := 0; i < 8; i++ {
			b = append(b, byte(u>>(8*i)))
		}
	}
	return string(b)
}

// siteIndexFrom collects distinct binding-site base names across records, in
// first-occurrence order, and returns the name->index map alongside the
// ordered name slice.
func siteIndexFrom(records []MonomerRecord) ([]string, map[string]int) {
	var names []string
	index := make(map[string]int)
	for _, r := range records {
		for _, s := range r.Sites {
			if _, ok := index[s.Name]; !ok {
				index[s.Name] = len(names)
				names = append(names, s.Name)
			}
		}
	}
	return names, index
}

// Build assigns a stable column index to each distinct monomer vector.
// When unitsDeclared is true, records with identical vectors are collapsed
// into one column with summed concentration; duplicate groups must agree on
// any non-empty name, and the declared-concentration presence must be
// consistent across every record. See SPEC_FULL.md §5.1 / spec.md §4.1.
func Build(records []MonomerRecord, unitsDeclared bool) (*Matrix, error) {
	siteNames, siteIndex := siteIndexFrom(records)

	monomerNames := make(map[string]bool)
	for _, r := range records {
		if r.Name != "" {
			monomerNames[r.Name] = true
		}
	}
	for name := range monomerNames {
		if _, isSite := siteIndex[name]; isSite {
			return nil, tbnerrors.New(tbnerrors.InvariantViolation, "tbn",
				fmt.Sprintf("token %q is used both as a monomer name and a binding-site name", name))
		}
	}

	if unitsDeclared {
		haveConc, missingConc := false, false
		for _, r := range records {
			if r.Concentration != nil {
				haveConc = true
			} else {
				missingConc = true
			}
		}
		if haveConc && missingConc {
			return nil, tbnerrors.New(tbnerrors.InvariantViolation, "tbn",
				"some monomers declare a concentration and others do not, under declared units")
		}
	}

	type group struct {
		vector  []int64
		name    string
		conc    *float64
		firstAt int
	}
	order := make([]string, 0, len(records))
	groups := make(map[string]*group)

	// Duplicate monomer vectors are only collapsed into one column when
	// units are declared (spec.md §4.1): declared concentrations sum across
	// the duplicate group, so the collapse is meaningful. With no declared
	// units there is nothing to sum, and collapsing would silently change n
	// and the polymer basis (scenario S3); each record keeps its own key so
	// distinct lines always become distinct columns.
	for i, r := range records {
		v := r.Vector(siteIndex)
		key := vectorKey(v)
		if !unitsDeclared {
			key = fmt.Sprintf("%s#%d", key, i)
		}
		g, ok := groups[key]
		if !ok {
			g = &group{vector: v, firstAt: i}
			groups[key] = g
			order = append(order, key)
		}
		if r.Name != "" {
			if g.name != "" && g.name != r.Name {
				return nil, tbnerrors.New(tbnerrors.InvariantViolation, "tbn",
					fmt.Sprintf("monomers %q and %q are equal as vectors but carry conflicting names", g.name, r.Name))
			}
			g.name = r.Name
		}
		if unitsDeclared && r.Concentration != nil {
			if g.conc == nil {
				zero := 0.0
				g.conc = &zero
			}
			*g.conc += *r.Concentration
		}
	}

	cols := make([]MonomerColumn, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.conc != nil && *g.conc < 0 {
			label := g.name
			if label == "" {
				label = "(anonymous)"
			}
			return nil, tbnerrors.New(tbnerrors.InvariantViolation, "tbn",
				fmt.Sprintf("summed concentration for monomer %s is negative (%g)", label, *g.conc))
		}
		col := MonomerColumn{Vector: g.vector, Concentration: g.conc}
		if g.name != "" {
			name := g.name
			col.Name = &name
		}
		cols = append(cols, col)
	}

	return &Matrix{
		SiteNames:         siteNames,
		siteIndex:         siteIndex,
		Columns:           cols,
		ConcentrationsSet: unitsDeclared,
	}, nil
}
