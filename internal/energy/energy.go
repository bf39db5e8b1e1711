// Package energy computes a polymer's free energy functional: its bond
// count (from the monomer matrix's paired/unpaired site arithmetic) plus
// an optional association-energy penalty. Grounded on
// original_source/tbnexplorer2/polymer_basis.py's compute_assoc_energy_penalty
// and Polymer.compute_free_energy, refined per spec.md §4.4 to compute the
// bond term explicitly rather than treating it as always zero.
package energy

import (
	"math"

	"tbnexplorer2/internal/tbn"
)

// boltzmannConstant is kB in kcal/mol/K.
const boltzmannConstant = 0.001987204259

// Bonds returns the number of bonds formed by polymer x: (total_sites(x) -
// unpaired_excess(x)) / 2, where total_sites(x) = 1^T |A| x and
// unpaired_excess(x) = 1^T A x (spec.md §4.4). The result is always an
// integer by construction; any fractional remainder indicates a caller
// bug (x outside the matrix's column count) rather than a real half-bond.
func Bonds(m *tbn.Matrix, x []int64) int64 {
	var totalSites, unpairedExcess int64
	for j, count := range x {
		if count == 0 {
			continue
		}
		col := m.Col(j)
		var colSum, colAbsSum int64
		for _, v := range col {
			colSum += v
			colAbsSum += absInt64(v)
		}
		totalSites += colAbsSum * count
		unpairedExcess += colSum * count
	}
	return (totalSites - unpairedExcess) / 2
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// waterDensityMolPerLiter implements the Tanaka et al. correlation for
// water's molar density at temp_c degrees Celsius.
func waterDensityMolPerLiter(tempC float64) float64 {
	const (
		a1 = -3.983035
		a2 = 301.797
		a3 = 522_528.9
		a4 = 69.34881
		a5 = 999.974950
	)
	t := tempC
	densityGPerL := a5 * (1.0 - (t+a1)*(t+a1)*(t+a2)/a3/(t+a4))
	return densityGPerL / 18.0152
}

func celsiusToKelvin(tempC float64) float64 { return tempC + 273.15 }

// bimolecular computes the temperature-dependent bimolecular association
// term (kcal/mol) from empirical constants gBimolecular/hBimolecular.
func bimolecular(tempC, gBimolecular, hBimolecular float64) float64 {
	waterDensity := waterDensityMolPerLiter(tempC)
	tempK := celsiusToKelvin(tempC)
	return (gBimolecular-hBimolecular)*tempK/310.15 + hBimolecular - boltzmannConstant*tempK*math.Log(waterDensity)
}

// AssocPenalty computes the association energy penalty (kcal/mol) for a
// complex of totalMonomers monomers at tempC, using empirical constants
// gBimolecular/hBimolecular (e.g. NUPACK's 1.96/0.20).
func AssocPenalty(totalMonomers int, tempC, gBimolecular, hBimolecular float64) float64 {
	return bimolecular(tempC, gBimolecular, hBimolecular) * float64(totalMonomers-1)
}

// Params bundles the optional association-energy constants; a nil Params
// disables the penalty term entirely, matching the teacher-grounded default
// deltaG=None behavior.
type Params struct {
	GBimolecular float64
	HBimolecular float64
	TempC        float64
}

// FreeEnergy computes Delta G(x) = -bonds(x) + penalty(size(x), T), with
// the penalty term omitted (zero) when params is nil.
func FreeEnergy(m *tbn.Matrix, x []int64, params *Params) float64 {
	bonds := Bonds(m, x)
	if params == nil {
		return -float64(bonds)
	}
	var totalMonomers int64
	for _, c := range x {
		totalMonomers += c
	}
	penalty := AssocPenalty(int(totalMonomers), params.TempC, params.GBimolecular, params.HBimolecular)
	return -float64(bonds) + penalty
}
