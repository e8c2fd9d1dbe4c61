package domain

import (
	"path"
	"strings"
)

// Unit is the physical unit family of a dataset or of a requested display.
type Unit string

const (
	UnitUnknown  Unit = ""
	UnitKm3      Unit = "km³"
	UnitMM       Unit = "mm"
	UnitM3PerSec Unit = "m³/s"
)

func (u Unit) String() string {
	if u == UnitUnknown {
		return "unknown"
	}
	return string(u)
}

// ParseUnit accepts the display labels and their ASCII spellings. An empty
// string parses to UnitUnknown, which callers treat as "keep native units".
func ParseUnit(s string) (Unit, error) {
	switch strings.TrimSpace(s) {
	case "":
		return UnitUnknown, nil
	case "km³", "km3":
		return UnitKm3, nil
	case "mm":
		return UnitMM, nil
	case "m³/s", "m3/s", "m3":
		return UnitM3PerSec, nil
	default:
		return UnitUnknown, invalidf("units", s, "must be one of km³, mm, m³/s")
	}
}

// ClassifyUnit derives a dataset's native unit from its filename. The match
// is a case-sensitive substring test, km3 before mm; anything else is taken
// to be a flow rate.
func ClassifyUnit(filename string) Unit {
	name := path.Base(filename)
	switch {
	case strings.Contains(name, "km3"):
		return UnitKm3
	case strings.Contains(name, "mm"):
		return UnitMM
	default:
		return UnitM3PerSec
	}
}

// Variable is the hydrological quantity held by a dataset.
type Variable string

const (
	VariableRunoff       Variable = "Runoff"
	VariableStreamflow   Variable = "Streamflow"
	VariableActualET     Variable = "Actual ET"
	VariablePotentialET  Variable = "Potential ET"
	VariableUnknownValue Variable = "unknown"
)

// ClassifyVariable reads the variable from the first underscore-delimited
// filename token.
func ClassifyVariable(filename string) Variable {
	token, _, _ := strings.Cut(path.Base(filename), "_")
	switch token {
	case "q":
		return VariableRunoff
	case "avgchflow":
		return VariableStreamflow
	case "aet":
		return VariableActualET
	case "pet":
		return VariablePotentialET
	default:
		return VariableUnknownValue
	}
}

// UnitOptions lists the display units offered for a variable. Streamflow is
// only ever shown as a flow rate.
func UnitOptions(v Variable) []Unit {
	if v == VariableStreamflow {
		return []Unit{UnitM3PerSec}
	}
	return []Unit{UnitKm3, UnitMM}
}

type unitPair struct{ from, to Unit }

// conversions holds one handler per supported (from, to) pair. Identity
// pairs are handled before the lookup.
var conversions = map[unitPair]func(value, hectares float64) float64{
	{UnitKm3, UnitMM}: func(v, ha float64) float64 { return (v * 1e6) / (ha / 100) },
	{UnitMM, UnitKm3}: func(v, ha float64) float64 { return (v / 1e6) * (ha / 100) },
}

// ConvertUnit converts value from one unit family to another over the given
// surface area. Exactly one conversion is applied per call.
func ConvertUnit(value float64, from, to Unit, areaHectares float64) (float64, error) {
	if to == UnitUnknown || from == to {
		return value, nil
	}
	convert, ok := conversions[unitPair{from, to}]
	if !ok {
		return 0, &UnsupportedUnitConversionError{From: from, To: to}
	}
	if areaHectares <= 0 {
		return 0, invalidf("area_hectares", "", "must be positive to convert %s to %s", from.String(), to.String())
	}
	return convert(value, areaHectares), nil
}
