package extraction

import (
	"regexp"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

const (
	handwrittenConfidence    = 0.80
	medicationConfidence     = 0.85
	handwrittenLabConfidence = 0.75
)

var (
	medicationPattern = regexp.MustCompile(`(?i)\b(tab(?:let)?s?|cap(?:sule)?s?|syrup|syp|inj(?:ection)?)\.?\s+([a-z][a-z0-9\-]*(?:\s+[a-z][a-z0-9\-]*)??)\s+(\d+(?:\.\d+)?)\s*((?:mg|mcg|µg|g|ml|iu|units?)\b|%)`)
	frequencyPattern  = regexp.MustCompile(`(?i)\b(\d\s*-\s*\d\s*-\s*\d|once\s+(?:a\s+)?daily|twice\s+(?:a\s+)?daily|thrice\s+daily|three\s+times\s+(?:a\s+)?(?:day|daily)|once\s+a\s+day|twice\s+a\s+day|every\s+\d+\s+hours|at\s+bedtime|at\s+night|od|bd|bid|tds|tid|qid|qds|hs|sos|prn|stat|daily|weekly)\b`)
)

// medicationForms maps dosage-form abbreviations to display names.
var medicationForms = map[string]string{
	"tab": "tablet", "tabs": "tablet", "tablet": "tablet", "tablets": "tablet",
	"cap": "capsule", "caps": "capsule", "capsule": "capsule", "capsules": "capsule",
	"syrup": "syrup", "syp": "syrup",
	"inj": "injection", "injection": "injection",
}

// extractHandwritten reads prescription-style notes: medication lines,
// loose "Name: value unit" labs, and labeled diagnosis and advice sections.
func extractHandwritten(d *draft) {
	d.base = handwrittenConfidence
	d.method = MethodHandwritten

	for _, line := range splitLines(d.text) {
		if matches := medicationPattern.FindAllStringSubmatchIndex(line.text, -1); matches != nil {
			for i, m := range matches {
				// frequency is read up to the next medication on the same line
				tailEnd := len(line.text)
				if i+1 < len(matches) {
					tailEnd = matches[i+1][0]
				}
				addMedication(d, line, m, line.text[m[1]:tailEnd])
			}
			continue
		}
		if lv, start, end, ok := matchColonLab(line.text); ok {
			d.addLab(lv, line.start+start, line.start+end, handwrittenLabConfidence)
		}
	}

	extractLabeledSections(d, medicationConfidence)
}

func addMedication(d *draft, line lineSpan, m []int, tail string) {
	form := medicationForms[strings.ToLower(line.text[m[2]:m[3]])]
	med := medical.Medication{
		Name:   FormatDrugName(line.text[m[4]:m[5]]),
		Dosage: line.text[m[6]:m[7]],
		Unit:   strings.ToLower(line.text[m[8]:m[9]]),
		Form:   form,
	}
	if med.Unit == "iu" {
		med.Unit = "IU"
	}
	if f := frequencyPattern.FindString(tail); f != "" {
		med.Frequency = strings.ToUpper(strings.Join(strings.Fields(f), " "))
		if len(med.Frequency) > 4 && !strings.ContainsAny(med.Frequency, "0123456789") {
			med.Frequency = strings.ToLower(med.Frequency)
		}
	}

	d.data.Medications = append(d.data.Medications, med)
	claim := strings.TrimSpace(med.Name + " " + med.Dosage + " " + med.Unit + " " + med.Frequency)
	d.addSpan(medical.FindingMedication, line.start+m[0], line.start+m[1], medicationConfidence, claim, "")
}
