package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

const (
	vitalConfidence = 0.85
	maxAge          = 130
)

const vitalLead = `\s*[:\-=|]?\s*(?:(?:of|was|is|at)\s+)?`

var (
	bpValuePattern = regexp.MustCompile(`(\d{2,3})\s*/\s*(\d{2,3})`)

	bpPattern          = regexp.MustCompile(`(?i)\b(?:bp|blood\s+pressure)` + vitalLead + `(\d{2,3})\s*/\s*(\d{2,3})(?:\s*mm\s*hg)?`)
	bareBPPattern      = regexp.MustCompile(`(?i)\b(\d{2,3})\s*/\s*(\d{2,3})\s*mm\s*hg\b`)
	heartRatePattern   = regexp.MustCompile(`(?i)\b(?:heart\s+rate|pulse(?:\s+rate)?|hr)` + vitalLead + `(\d{2,3})(?:\s*(?:bpm|/\s*min|beats(?:\s+per\s+minute)?))?`)
	temperaturePattern = regexp.MustCompile(`(?i)\b(?:temperature|temp)` + vitalLead + `(\d{2,3}(?:\.\d+)?)\s*(?:°\s*)?([CF])?\b`)
	spo2Pattern        = regexp.MustCompile(`(?i)\b(?:spo2|sp02|o2\s+sat(?:uration)?|oxygen\s+saturation)` + vitalLead + `(\d{2,3})\s*%?`)
	respRatePattern    = regexp.MustCompile(`(?i)\b(?:respiratory\s+rate|resp\.?\s+rate|rr)` + vitalLead + `(\d{1,2})\b`)
	weightPattern      = regexp.MustCompile(`(?i)\b(?:weight|wt)` + vitalLead + `(\d{2,3}(?:\.\d+)?)\s*(kg|kgs|lbs?)?\b`)
	heightPattern      = regexp.MustCompile(`(?i)\b(?:height|ht)` + vitalLead + `(\d{2,3}(?:\.\d+)?)\s*(cm|m|in)?\b`)
	bmiPattern         = regexp.MustCompile(`(?i)\bbmi` + vitalLead + `(\d{1,2}(?:\.\d+)?)\b`)

	patientNamePattern = regexp.MustCompile(`(?im)^\s*(?:patient(?:'s)?\s+name|patient|name)\s*[:\-]\s*(?:(?:mr|mrs|ms|miss|dr)\.?\s+)?([A-Za-z][A-Za-z.'\-]*(?: [A-Za-z][A-Za-z.'\-]*){0,4})`)
	agePattern         = regexp.MustCompile(`(?i)\bage\s*[:\-/]?\s*(\d{1,3})\b`)
	yearsOldPattern    = regexp.MustCompile(`(?i)\b(\d{1,3})\s*[- ]?(?:years?|yrs?|y)[- ]?(?:old|/o)\b`)
	genderPattern      = regexp.MustCompile(`(?i)\b(?:sex|gender)\s*[:\-]?\s*(male|female|m|f|other)\b`)
	ageSexPattern      = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:y|yrs?|years?)?\s*/\s*(m|f|male|female)\b`)
	reportDatePattern  = regexp.MustCompile(`(?i)\b(?:report(?:ed)?\s+(?:date|on)|date\s+of\s+report|collected\s+on|collection\s+date|date)\s*[:\-]?\s*(\d{1,4}[/\-.]\d{1,2}[/\-.]\d{1,4}|\d{1,2}[\s\-][A-Za-z]{3,9}[\s\-,]+\d{4}|[A-Za-z]{3,9}\s+\d{1,2},?\s+\d{4})`)
)

func (d *draft) vitals() *medical.VitalSigns {
	if d.data.VitalSigns == nil {
		d.data.VitalSigns = &medical.VitalSigns{}
	}
	return d.data.VitalSigns
}

func (d *draft) patient() *medical.PatientInfo {
	if d.data.PatientInfo == nil {
		d.data.PatientInfo = &medical.PatientInfo{}
	}
	return d.data.PatientInfo
}

// extractVitals reads vital signs mentioned anywhere in the text. Values
// outside physiological limits are ignored. Fields already set by the
// format strategy are kept.
func extractVitals(d *draft) {
	if m := firstMatch(d.text, bpPattern, bareBPPattern); m != nil {
		sys, _ := strconv.ParseFloat(d.text[m[2]:m[3]], 64)
		dia, _ := strconv.ParseFloat(d.text[m[4]:m[5]], 64)
		if sys >= 60 && sys <= 260 && dia >= 30 && dia <= 160 && sys > dia {
			if vs := d.vitals(); vs.BloodPressure == nil {
				vs.BloodPressure = &medical.BloodPressure{Systolic: sys, Diastolic: dia}
				d.addSpan(medical.FindingVital, m[0], m[1], vitalConfidence,
					"blood pressure "+d.text[m[2]:m[3]]+"/"+d.text[m[4]:m[5]]+" mmHg", "")
			}
		}
	}

	readVital(d, heartRatePattern, "heart rate", 20, 250, func(vs *medical.VitalSigns) **float64 { return &vs.HeartRate })
	readVital(d, spo2Pattern, "oxygen saturation", 50, 100, func(vs *medical.VitalSigns) **float64 { return &vs.OxygenSaturation })
	readVital(d, respRatePattern, "respiratory rate", 4, 60, func(vs *medical.VitalSigns) **float64 { return &vs.RespiratoryRate })
	readVital(d, heightPattern, "height", 40, 250, func(vs *medical.VitalSigns) **float64 { return &vs.Height })
	readVital(d, bmiPattern, "bmi", 10, 70, func(vs *medical.VitalSigns) **float64 { return &vs.BMI })

	if m := temperaturePattern.FindStringSubmatchIndex(d.text); m != nil {
		v, _ := strconv.ParseFloat(d.text[m[2]:m[3]], 64)
		fahrenheit := (m[4] >= 0 && strings.EqualFold(d.text[m[4]:m[5]], "F")) || v > 45
		if fahrenheit {
			v = round1((v - 32) * 5 / 9)
		}
		if v >= 30 && v <= 45 {
			setVital(d, m, "temperature", v, func(vs *medical.VitalSigns) **float64 { return &vs.Temperature })
		}
	}

	if m := weightPattern.FindStringSubmatchIndex(d.text); m != nil {
		v, _ := strconv.ParseFloat(d.text[m[2]:m[3]], 64)
		if m[4] >= 0 && strings.HasPrefix(strings.ToLower(d.text[m[4]:m[5]]), "lb") {
			v = round1(v * 0.45359237)
		}
		if v >= 2 && v <= 400 {
			setVital(d, m, "weight", v, func(vs *medical.VitalSigns) **float64 { return &vs.Weight })
		}
	}
}

func readVital(d *draft, pattern *regexp.Regexp, label string, lo, hi float64, field func(*medical.VitalSigns) **float64) {
	m := pattern.FindStringSubmatchIndex(d.text)
	if m == nil {
		return
	}
	v, err := strconv.ParseFloat(d.text[m[2]:m[3]], 64)
	if err != nil || v < lo || v > hi {
		return
	}
	setVital(d, m, label, v, field)
}

func setVital(d *draft, m []int, label string, v float64, field func(*medical.VitalSigns) **float64) {
	dst := field(d.vitals())
	if *dst != nil {
		return
	}
	*dst = &v
	d.addSpan(medical.FindingVital, m[0], m[1], vitalConfidence, label+" "+formatValue(v), "")
}

func firstMatch(text string, patterns ...*regexp.Regexp) []int {
	for _, p := range patterns {
		if m := p.FindStringSubmatchIndex(text); m != nil {
			return m
		}
	}
	return nil
}

// extractPatient reads the demographic header. Patient details are not
// recorded as findings.
func extractPatient(d *draft) {
	p := d.patient()

	if p.Name == "" {
		if m := patientNamePattern.FindStringSubmatch(d.text); m != nil {
			name := strings.TrimSpace(m[1])
			// "Name: John Smith Age: 45" keeps only the name
			if i := strings.Index(strings.ToLower(name), " age"); i > 0 {
				name = name[:i]
			}
			p.Name = name
		}
	}

	ageSex := ageSexPattern.FindStringSubmatch(d.text)

	if p.Age == nil {
		raw := firstSubmatch(d.text, agePattern, yearsOldPattern)
		if raw == "" && ageSex != nil {
			raw = ageSex[1]
		}
		if age, err := strconv.Atoi(raw); err == nil && age <= maxAge {
			p.Age = &age
		}
	}

	if p.Gender == "" {
		if m := genderPattern.FindStringSubmatch(d.text); m != nil {
			p.Gender = normalizeGender(m[1])
		} else if ageSex != nil {
			p.Gender = normalizeGender(ageSex[2])
		}
	}

	if p.ReportDate == "" {
		if m := reportDatePattern.FindStringSubmatch(d.text); m != nil {
			p.ReportDate = NormalizeDate(m[1])
		}
	}
}

func firstSubmatch(text string, patterns ...*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func normalizeGender(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return "male"
	case "f", "female":
		return "female"
	case "":
		return ""
	default:
		return "other"
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
