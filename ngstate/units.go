package ngstate

import (
	"strconv"
	"strings"
)

var siPrefixes = map[string]float64{
	"":  1,
	"G": 1e9,
	"M": 1e6,
	"k": 1e3,
	"c": 1e-2,
	"m": 1e-3,
	"u": 1e-6,
	"µ": 1e-6,
	"n": 1e-9,
	"p": 1e-12,
	"f": 1e-15,
}

var baseUnits = []string{"Hz", "m", "s"}

// SplitUnit returns the SI prefix multiplier and base unit of a unit string,
// e.g., "nm" gives (1e-9, "m").  The empty unit is dimensionless.
func SplitUnit(unit string) (factor float64, base string, err error) {
	if unit == "" {
		return 1, "", nil
	}
	for _, b := range baseUnits {
		if !strings.HasSuffix(unit, b) {
			continue
		}
		prefix := strings.TrimSuffix(unit, b)
		if f, found := siPrefixes[prefix]; found {
			return f, b, nil
		}
	}
	return 0, "", Validationf("unsupported unit %q", unit)
}

// ToBaseUnit expresses a scale given in unit in the unit's SI base unit,
// e.g., (4, "nm") gives (4e-9, "m").
func ToBaseUnit(scale float64, unit string) (float64, string, error) {
	f, base, err := SplitUnit(unit)
	if err != nil {
		return 0, "", err
	}
	return RoundSignificant(scale * f), base, nil
}

// FromBaseUnit expresses a scale given in a base unit in the target unit,
// e.g., (4e-9, "m", "nm") gives 4.
func FromBaseUnit(scale float64, base, target string) (float64, error) {
	f, tbase, err := SplitUnit(target)
	if err != nil {
		return 0, err
	}
	if tbase != base {
		return 0, Validationf("can't express %q in %q", base, target)
	}
	return RoundSignificant(scale / f), nil
}

// RoundSignificant rounds to 12 significant digits, removing the noise left by
// multiplying with decimal SI prefixes.
func RoundSignificant(f float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', 12, 64), 64)
	if err != nil {
		return f
	}
	return r
}
