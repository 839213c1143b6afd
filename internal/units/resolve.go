// Package units maps raw unit strings onto a KPI's canonical units.
package units

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Resolution is the outcome of resolving a raw unit.
type Resolution struct {
	Unit       string
	Multiplier float64
	OK         bool
}

type alias struct {
	target string
	mult   float64
}

// aliases maps normalized raw units to a normalized target and the factor
// that converts a value in the raw unit into the target unit.
var aliases = map[string]alias{
	"tco2e":        {"tco2e", 1},
	"tco2":         {"tco2e", 1},
	"t_co2e":       {"tco2e", 1},
	"tco2eq":       {"tco2e", 1},
	"tco2-eq":      {"tco2e", 1},
	"tonsco2e":     {"tco2e", 1},
	"tonnesco2e":   {"tco2e", 1},
	"ktco2e":       {"tco2e", 1e3},
	"ktco2":        {"tco2e", 1e3},
	"mtco2e":       {"tco2e", 1e6},
	"mtco2":        {"tco2e", 1e6},
	"kt":           {"t", 1e3},
	"mt":           {"t", 1e6},
	"tonnes":       {"t", 1},
	"tons":         {"t", 1},
	"mwh":          {"mwh", 1},
	"kwh":          {"mwh", 1e-3},
	"gwh":          {"mwh", 1e3},
	"twh":          {"mwh", 1e6},
	"m3":           {"m3", 1},
	"cubicmeters":  {"m3", 1},
	"cubicmetres":  {"m3", 1},
	"thousandm3":   {"m3", 1e3},
	"millionm3":    {"m3", 1e6},
	"megaliters":   {"m3", 1e3},
	"megalitres":   {"m3", 1e3},
	"thousandsm3":  {"m3", 1e3},
	"millionsofm3": {"m3", 1e6},
}

// Normalize lowercases a unit, drops whitespace and folds superscript digits.
func Normalize(u string) string {
	u = strings.NewReplacer("\u00b3", "3", "\u00b2", "2", "\u2082", "2").Replace(u)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, u)
}

// Resolve maps raw onto one of canonical (ordered, first is the base unit).
// An empty raw unit resolves only when canonical has exactly one entry.
// When no mapping applies it returns OK=false rather than guessing.
func Resolve(raw string, canonical []string) Resolution {
	if len(canonical) == 0 {
		return Resolution{Multiplier: 1, OK: raw == ""}
	}

	norm := Normalize(raw)
	if norm != "" {
		if norm == Normalize(canonical[0]) {
			return Resolution{Unit: canonical[0], Multiplier: 1, OK: true}
		}
		if a, ok := aliases[norm]; ok {
			for _, c := range canonical {
				if Normalize(c) == a.target {
					return Resolution{Unit: c, Multiplier: a.mult, OK: true}
				}
			}
		}
		for _, c := range canonical[1:] {
			if norm == Normalize(c) {
				return Resolution{Unit: c, Multiplier: 1, OK: true}
			}
		}
	}

	if len(canonical) == 1 {
		return Resolution{Unit: canonical[0], Multiplier: 1, OK: true}
	}

	zap.L().Warn("units: unresolved unit",
		zap.String("raw_unit", raw),
		zap.Strings("canonical", canonical),
	)
	return Resolution{Multiplier: 1}
}
