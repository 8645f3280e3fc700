package extraction

import (
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

// verifyCandidates keeps findings whose text occurs in the source,
// compared case-insensitively. This catches fabricated matches; it cannot
// tell whether a correctly named parameter was paired with the wrong value.
func verifyCandidates(lowerSource string, candidates []candidate) []candidate {
	retained := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		text := strings.TrimSpace(c.finding.Text)
		if text == "" || !strings.Contains(lowerSource, strings.ToLower(text)) {
			continue
		}
		retained = append(retained, c)
	}
	return retained
}

// traceEntry describes where a retained finding came from.
func traceEntry(c candidate, method string) medical.TraceabilityEntry {
	database, reference := sourceFor(c)
	return medical.TraceabilityEntry{
		Claim:      c.claim,
		SourceText: c.finding.Text,
		Start:      c.finding.Start,
		End:        c.finding.End,
		Confidence: c.finding.Confidence,
		Database:   database,
		Reference:  reference,
		Method:     method,
	}
}

func sourceFor(c candidate) (string, string) {
	switch {
	case c.loinc != "":
		return "LOINC", "LOINC 2.76 " + c.loinc
	case c.finding.Kind == medical.FindingLab:
		return "Vitalis reference intervals", "Vitalis parameter catalog v1"
	case c.finding.Kind == medical.FindingMedication:
		return "Prescription text", "Vitalis medication patterns"
	case c.finding.Kind == medical.FindingVital:
		return "Vital signs", "Vitalis vital-sign patterns"
	default:
		return "Clinical narrative", "Vitalis narrative rules"
	}
}
