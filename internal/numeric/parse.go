// Package numeric parses locale-ambiguous number tokens found in reports.
package numeric

import (
	"regexp"
	"strconv"
	"strings"
)

var spaceReplacer = strings.NewReplacer(
	"\u00a0", " ",
	"\u2007", " ",
	"\u202f", " ",
	"\t", " ",
)

var (
	magnitudeRe = regexp.MustCompile(`(?i)^(.*?[\d.,])\s*(thousand|million|billion|k)\.?$`)
	groupedRe   = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
	spacedRe    = regexp.MustCompile(`^\d{1,3}(?: \d{3})+(?:[.,]\d+)?$`)
	integerRe   = regexp.MustCompile(`^\d+$`)
	decimalRe   = regexp.MustCompile(`^\d+[.,]\d+$`)
)

var magnitudes = map[string]float64{
	"thousand": 1e3,
	"k":        1e3,
	"million":  1e6,
	"billion":  1e9,
}

// Parse converts a number token such as "123,400", "1.200.000",
// "1 200 000" or "1.2 million" into a float. It reports false when no
// number can be recovered.
func Parse(s string) (float64, bool) {
	s = strings.TrimSpace(spaceReplacer.Replace(s))
	if s == "" {
		return 0, false
	}

	mult := 1.0
	if m := magnitudeRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
		mult = magnitudes[strings.ToLower(m[2])]
	}

	v, ok := ParseLocale(s)
	if !ok {
		return 0, false
	}
	return v * mult, true
}

// ParseLocale parses a bare number core without magnitude words.
func ParseLocale(s string) (float64, bool) {
	s = strings.TrimSpace(spaceReplacer.Replace(s))
	s = strings.TrimRight(s, ".")

	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "\u2212"):
		sign = -1
		s = strings.TrimSpace(strings.TrimPrefix(s, "\u2212"))
	case strings.HasPrefix(s, "+"):
		s = strings.TrimSpace(s[1:])
	}
	if s == "" {
		return 0, false
	}

	core, ok := normalizeCore(s)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(core, 64)
	if err != nil {
		return 0, false
	}
	return sign * v, true
}

// normalizeCore rewrites the digits and separators of s into a form
// strconv.ParseFloat accepts.
func normalizeCore(s string) (string, bool) {
	switch {
	case groupedRe.MatchString(s) && singleSeparator(s):
		return stripChars(s, ".,"), true
	case spacedRe.MatchString(s):
		return strings.Replace(stripChars(s, " "), ",", ".", 1), true
	case integerRe.MatchString(s):
		return s, true
	case decimalRe.MatchString(s):
		return strings.Replace(s, ",", ".", 1), true
	}

	if core, ok := mixedSeparators(s); ok {
		return core, true
	}

	stripped := stripChars(s, ".,' ")
	if integerRe.MatchString(stripped) {
		return stripped, true
	}
	return "", false
}

// mixedSeparators handles "1,234.56" and "1.234,56": the last separator is
// the decimal mark and every earlier one groups thousands.
func mixedSeparators(s string) (string, bool) {
	last := strings.LastIndexAny(s, ".,")
	if last <= 0 || last == len(s)-1 {
		return "", false
	}
	intPart, frac := s[:last], s[last+1:]
	if !integerRe.MatchString(frac) {
		return "", false
	}
	dec := s[last]
	if strings.IndexByte(intPart, dec) >= 0 {
		return "", false
	}
	intPart = strings.ReplaceAll(intPart, " ", "")
	if !integerRe.MatchString(intPart) && !groupedRe.MatchString(intPart) {
		return "", false
	}
	return stripChars(intPart, ".,") + "." + frac, true
}

func singleSeparator(s string) bool {
	return !(strings.Contains(s, ",") && strings.Contains(s, "."))
}

func stripChars(s, chars string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}
