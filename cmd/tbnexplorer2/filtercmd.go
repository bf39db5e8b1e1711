package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tbnexplorer2/internal/filter"
	"tbnexplorer2/internal/tbnio"
)

var (
	flagContains         []string
	flagExactly          []string
	flagMaxCount         int
	flagMinConcentration float64
	flagPercentOfTotal   float64
)

var filterCmd = &cobra.Command{
	Use:   "filter <input.tbn> <input.tbnpolymat>",
	Short: "Query and truncate a computed polymer matrix by monomer content and concentration",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilter,
}

func init() {
	filterCmd.Flags().StringArrayVar(&flagContains, "contains", nil,
		"comma-separated monomer names a polymer must contain (repeatable; OR-combined across repeats)")
	filterCmd.Flags().StringArrayVar(&flagExactly, "exactly", nil,
		"comma-separated monomer names a polymer must consist of exactly (repeatable; OR-combined across repeats)")
	filterCmd.Flags().IntVar(&flagMaxCount, "max-count", 0, "cap the result to the N most concentrated polymers (0 = unbounded)")
	filterCmd.Flags().Float64Var(&flagMinConcentration, "min-concentration", 0, "drop polymers below this absolute concentration")
	filterCmd.Flags().Float64Var(&flagPercentOfTotal, "percent-of-total", 0, "drop polymers below this percent of total concentration")
	filterCmd.Flags().StringArrayVar(&flagParams, "param", nil, "bind a {{expr}} variable as name=value (repeatable)")
	filterCmd.Flags().StringVar(&flagParamsFile, "params-file", "", "TOML file of {{expr}} variable bindings")
}

func runFilter(cmd *cobra.Command, args []string) error {
	vars, err := resolveParams(flagParamsFile, flagParams)
	if err != nil {
		return err
	}
	parsed, err := tbnio.ParseTBN(args[0], vars)
	if err != nil {
		return err
	}
	pm, err := tbnio.ParseTBNPolymat(args[1])
	if err != nil {
		return err
	}

	names := monomerDisplayNames(parsed.Matrix)
	records := recordsFromPolymat(pm, names)

	var constraints []filter.Constraint
	for _, c := range flagContains {
		constraints = append(constraints, filter.Constraint{Type: filter.Contains, MonomerNames: splitCommaList(c)})
	}
	for _, e := range flagExactly {
		constraints = append(constraints, filter.Constraint{Type: filter.Exactly, MonomerNames: splitCommaList(e)})
	}

	filtered := records
	if len(constraints) > 0 {
		filtered = filter.Filter(records, constraints)
	}

	result := filter.Truncate(filtered, filter.TruncateOptions{
		MaxCount:          flagMaxCount,
		MinConcentration:  flagMinConcentration,
		MinPercentOfTotal: flagPercentOfTotal,
	})

	for _, r := range result.Records {
		fmt.Printf("polymer %d: %s\n", r.Index, formatRecord(r, pm.ConcentrationUnit))
	}
	fmt.Printf("# %d of %d polymers matched (dropped: %d by cap, %d by concentration, %d by percent)\n",
		len(result.Records), result.OriginalCount, result.DroppedByCap, result.DroppedByConc, result.DroppedByPct)
	return nil
}

func recordsFromPolymat(pm *tbnio.Polymat, names []string) []filter.Record {
	records := make([]filter.Record, len(pm.Polymers))
	for i, row := range pm.Polymers {
		counts := make(map[string]int64, len(row))
		for j, c := range row {
			if c != 0 && j < len(names) {
				counts[names[j]] = c
			}
		}
		r := filter.Record{Index: i, NameCounts: counts}
		if pm.FreeEnergies != nil && i < len(pm.FreeEnergies) {
			r.FreeEnergy = pm.FreeEnergies[i]
		}
		if pm.Concentrations != nil && i < len(pm.Concentrations) {
			v := pm.Concentrations[i]
			r.Concentration = &v
		}
		records[i] = r
	}
	return records
}

func formatRecord(r filter.Record, unit string) string {
	if r.Concentration == nil {
		return fmt.Sprintf("ΔG=%.3f", r.FreeEnergy)
	}
	return fmt.Sprintf("ΔG=%.3f conc=%s", r.FreeEnergy, filter.FormatConcentration(*r.Concentration, unit))
}
