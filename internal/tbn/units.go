package tbn

import (
	"fmt"
	"strings"
)

// UnitToMolar gives the exact conversion factor from each supported
// concentration unit to Molar.
var UnitToMolar = map[string]float64{
	"pM": 1e-12,
	"nM": 1e-9,
	"uM": 1e-6,
	"mM": 1e-3,
	"M":  1.0,
}

// ValidUnits lists the supported concentration unit abbreviations, in the
// canonical display order.
var ValidUnits = []string{"pM", "nM", "uM", "mM", "M"}

// RhoWater is rho_H2O, the reference water density (55.14 M) used for
// mole-fraction conversion in IBOT's monomer concentration synthesis.
const RhoWater = 55.14

// ValidateUnit returns an error if unit is not one of ValidUnits.
func ValidateUnit(unit string) error {
	if _, ok := UnitToMolar[unit]; !ok {
		return fmt.Errorf("invalid concentration unit %q, supported units: %s", unit, strings.Join(ValidUnits, ", "))
	}
	return nil
}

// ToMolar converts a value expressed in fromUnit to Molar.
func ToMolar(value float64, fromUnit string) (float64, error) {
	if err := ValidateUnit(fromUnit); err != nil {
		return 0, err
	}
	return value * UnitToMolar[fromUnit], nil
}

// FromMolar converts a value in Molar to toUnit.
func FromMolar(value float64, toUnit string) (float64, error) {
	if err := ValidateUnit(toUnit); err != nil {
		return 0, err
	}
	return value / UnitToMolar[toUnit], nil
}

// ConvertConcentration converts value from fromUnit to toUnit via Molar.
func ConvertConcentration(value float64, fromUnit, toUnit string) (float64, error) {
	if fromUnit == toUnit {
		if err := ValidateUnit(fromUnit); err != nil {
			return 0, err
		}
		return value, nil
	}
	molar, err := ToMolar(value, fromUnit)
	if err != nil {
		return 0, err
	}
	return FromMolar(molar, toUnit)
}

// UnitDisplayName returns the long-form display name for a unit abbreviation.
func UnitDisplayName(unit string) (string, error) {
	if err := ValidateUnit(unit); err != nil {
		return "", err
	}
	names := map[string]string{
		"pM": "picoMolar (pM)",
		"nM": "nanoMolar (nM)",
		"uM": "microMolar (uM)",
		"mM": "milliMolar (mM)",
		"M":  "Molar (M)",
	}
	return names[unit], nil
}
