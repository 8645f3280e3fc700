package extraction

import (
	"regexp"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

const (
	tabularConfidence    = 0.90
	tabularLabConfidence = 0.90
)

var (
	// "Hemoglobin      13.5    g/dL     12.0-17.5" with two or more spaces or tabs after the name.
	columnLabPattern = regexp.MustCompile(`^\s*(?:[-*•]\s*)?(` + nameExpr + `)(?:[ \t]{2,}|\t)([<>]?\s*` + numberExpr + `)\s*(` + unitExpr + `)?(.*)$`)
	// "Glucose Fasting 92 mg/dL 70-100" with single spaces; the name must be known.
	spacedLabPattern = regexp.MustCompile(`^\s*(?:[-*•]\s*)?(` + nameExpr + `)\s+([<>]?\s*` + numberExpr + `)\s*(` + unitExpr + `)?(.*)$`)
)

// extractTabular reads lab tables line by line; the first matching line form wins.
func extractTabular(d *draft) {
	d.base = tabularConfidence
	d.method = MethodTabular

	for _, line := range splitLines(d.text) {
		if strings.TrimSpace(line.text) == "" {
			continue
		}
		lv, start, end, ok := matchTabularLine(line.text)
		if !ok {
			continue
		}
		d.addLab(lv, line.start+start, line.start+end, tabularLabConfidence)
	}
}

func matchTabularLine(line string) (medical.LabValue, int, int, bool) {
	if strings.Count(line, "|") >= 2 {
		return matchPipeRow(line)
	}
	if lv, start, end, ok := matchColonLab(line); ok {
		return lv, start, end, true
	}
	if lv, start, end, ok := matchColumnLab(line, columnLabPattern, false); ok {
		return lv, start, end, true
	}
	return matchColumnLab(line, spacedLabPattern, true)
}

// matchPipeRow parses "| name | value | unit | range |". Rows whose value
// cell is not numeric (headers, separators) are skipped.
func matchPipeRow(line string) (medical.LabValue, int, int, bool) {
	cells := strings.Split(line, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	for len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	if len(cells) < 2 {
		return medical.LabValue{}, 0, 0, false
	}

	name := cells[0]
	if name == "" || !isLetter(name[0]) || isNonLab(name) {
		return medical.LabValue{}, 0, 0, false
	}

	var unit, rng string
	switch {
	case len(cells) >= 4:
		unit, rng = cells[2], cells[3]
	case len(cells) == 3:
		if _, ok := medical.ParseRange(cells[2]); ok {
			rng = cells[2]
		} else {
			unit = cells[2]
		}
	}

	lv, ok := buildLab(name, cells[1], unit, rng)
	if !ok {
		return medical.LabValue{}, 0, 0, false
	}
	start, end := trimmedBounds(line, 0, len(line))
	return lv, start, end, true
}

func matchColumnLab(line string, pattern *regexp.Regexp, mustResolve bool) (medical.LabValue, int, int, bool) {
	m := pattern.FindStringSubmatchIndex(line)
	if m == nil {
		return medical.LabValue{}, 0, 0, false
	}
	name := line[m[2]:m[3]]
	rest := line[m[8]:m[9]]
	if isNonLab(name) || continuedNumber.MatchString(rest) || attachedDate.MatchString(line[m[5]:]) {
		return medical.LabValue{}, 0, 0, false
	}
	if mustResolve {
		if _, ok := medical.Resolve(name); !ok {
			return medical.LabValue{}, 0, 0, false
		}
	}
	unit := ""
	if m[6] >= 0 {
		unit = line[m[6]:m[7]]
	}
	lv, ok := buildLab(name, line[m[4]:m[5]], unit, rangeFrom(rest))
	if !ok {
		return medical.LabValue{}, 0, 0, false
	}
	start, end := trimmedBounds(line, m[2], len(line))
	return lv, start, end, true
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
