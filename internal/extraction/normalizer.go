package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// unitAliases maps lower-cased unit spellings to their canonical form.
var unitAliases = map[string]string{
	"mg/dl":         "mg/dL",
	"mg%":           "mg/dL",
	"mgs/dl":        "mg/dL",
	"g/dl":          "g/dL",
	"gm/dl":         "g/dL",
	"gms/dl":        "g/dL",
	"g/l":           "g/L",
	"mg/l":          "mg/L",
	"mmol/l":        "mmol/L",
	"meq/l":         "mEq/L",
	"umol/l":        "umol/L",
	"µmol/l":        "umol/L",
	"μmol/l":        "umol/L",
	"u/l":           "U/L",
	"iu/l":          "IU/L",
	"miu/l":         "mIU/L",
	"uiu/ml":        "mIU/L",
	"µiu/ml":        "mIU/L",
	"μiu/ml":        "mIU/L",
	"miu/ml":        "mIU/mL",
	"ng/ml":         "ng/mL",
	"ng/dl":         "ng/dL",
	"pg/ml":         "pg/mL",
	"ug/dl":         "ug/dL",
	"µg/dl":         "ug/dL",
	"μg/dl":         "ug/dL",
	"mcg/dl":        "ug/dL",
	"mm/hr":         "mm/hr",
	"mm/h":          "mm/hr",
	"mm/1st hr":     "mm/hr",
	"ml/min/1.73m2": "mL/min/1.73m2",
	"ml/min":        "mL/min",
	"mmhg":          "mmHg",
	"bpm":           "bpm",
	"%":             "%",
	"x10^3/ul":      "x10^3/uL",
	"10^3/ul":       "x10^3/uL",
	"x10³/ul":       "x10^3/uL",
	"k/ul":          "x10^3/uL",
	"thou/mm3":      "x10^3/uL",
	"x10^6/ul":      "x10^6/uL",
	"mill/mm3":      "x10^6/uL",
	"/cumm":         "/cumm",
	"cells/cumm":    "/cumm",
	"lakhs/cumm":    "lakhs/cumm",
	"fl":            "fL",
	"pg":            "pg",
}

// unitWords are bare unit spellings accepted after a number in free text.
var unitWords = map[string]bool{
	"mg": true, "g": true, "mcg": true, "ml": true, "iu": true, "u": true, "units": true,
	"kg": true, "cm": true, "sec": true, "seconds": true, "ratio": true,
}

// flagTokens are result flags that sometimes sit where a unit is expected.
var flagTokens = map[string]bool{
	"h": true, "l": true, "hi": true, "lo": true, "high": true, "low": true, "*": true, "c": true,
}

var (
	leadingNumber = regexp.MustCompile(`^[<>≤≥=~]?\s*(-?\d+(?:,\d{3})*(?:\.\d+)?|-?\.\d+)`)
	listMarker    = regexp.MustCompile(`^\s*(?:[-*•·]+|\d{1,2}[.)])\s*`)
	innerSpace    = regexp.MustCompile(`\s+`)
)

// NormalizeUnit returns the canonical spelling of a unit. Unknown units are
// returned trimmed but otherwise untouched.
func NormalizeUnit(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), ".,;:")
	if trimmed == "" {
		return ""
	}
	if canonical, ok := unitAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// looksLikeUnit reports whether s reads as a measurement unit rather than
// the next word of a sentence.
func looksLikeUnit(s string) bool {
	l := strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".,;:"))
	if l == "" {
		return false
	}
	if _, ok := unitAliases[l]; ok {
		return true
	}
	return unitWords[l] || strings.ContainsAny(l, "/%^µμ")
}

// isFlagToken reports whether s is an H/L style result flag rather than a unit.
func isFlagToken(s string) bool {
	return flagTokens[strings.ToLower(strings.TrimSpace(s))]
}

// ParseNumber reads the leading number of s, tolerating comparison prefixes
// ("<5") and thousands separators ("1,250").
func ParseNumber(s string) (float64, bool) {
	m := leadingNumber.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// cleanParameterName trims list markers, trailing separators and repeated
// whitespace from a parameter label.
func cleanParameterName(raw string) string {
	s := listMarker.ReplaceAllString(raw, "")
	s = innerSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ":=-.,"))
}

// FormatDrugName formats a raw drug name for display.
func FormatDrugName(raw string) string {
	caser := cases.Title(language.English)
	words := strings.Fields(strings.TrimSpace(raw))
	for i, word := range words {
		if len(word) > 2 {
			words[i] = caser.String(strings.ToLower(word))
		} else {
			words[i] = strings.ToUpper(word)
		}
	}

	result := strings.Join(words, " ")
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}

// dateFormats to try when normalizing report dates.
var dateFormats = []string{
	"02/01/2006", // DD/MM/YYYY
	"2/1/2006",   // D/M/YYYY
	"02-01-2006", // DD-MM-YYYY
	"02.01.2006", // DD.MM.YYYY
	"2006-01-02", // YYYY-MM-DD
	"2006/01/02", // YYYY/MM/DD
	"02-Jan-2006",
	"Jan 02 2006",
	"Jan 2 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 02, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"02/01/06", // DD/MM/YY
	"2/1/06",   // D/M/YY
}

// NormalizeDate renders a recognized date as YYYY-MM-DD. Unrecognized input
// is returned trimmed.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
