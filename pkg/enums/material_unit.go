package enums

import (
	"fmt"
	"strings"
)

// MaterialUnit is the unit of measure a material quantity is expressed in.
type MaterialUnit string

const (
	MaterialUnitPiece    MaterialUnit = "pc"
	MaterialUnitPieces   MaterialUnit = "pcs"
	MaterialUnitMeter    MaterialUnit = "m"
	MaterialUnitGram     MaterialUnit = "g"
	MaterialUnitKilogram MaterialUnit = "kg"
)

// DefaultMaterialUnit applies when a unit is absent or not accepted.
const DefaultMaterialUnit = MaterialUnitPiece

var validMaterialUnits = []MaterialUnit{
	MaterialUnitPiece,
	MaterialUnitPieces,
	MaterialUnitMeter,
	MaterialUnitGram,
	MaterialUnitKilogram,
}

// String implements fmt.Stringer.
func (u MaterialUnit) String() string {
	return string(u)
}

// IsValid reports whether the value is a known MaterialUnit.
func (u MaterialUnit) IsValid() bool {
	for _, candidate := range validMaterialUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseMaterialUnit converts raw input into a MaterialUnit. Matching ignores
// case and surrounding whitespace.
func ParseMaterialUnit(value string) (MaterialUnit, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validMaterialUnits {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid material unit %q", value)
}

// MaterialUnitOrDefault returns the parsed unit, or pc when value is blank or
// not an accepted unit.
func MaterialUnitOrDefault(value string) MaterialUnit {
	unit, err := ParseMaterialUnit(value)
	if err != nil {
		return DefaultMaterialUnit
	}
	return unit
}
