package extraction

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

const (
	structuredConfidence         = 0.95
	structuredFallbackConfidence = 0.70
)

var quotedPairPattern = regexp.MustCompile(`"([^"\\\n]{1,60})"\s*:\s*"?(-?\d+(?:\.\d+)?)"?`)

// Keys are compared after folding: lower-cased with non-alphanumerics removed.
var (
	labListKeys        = []string{"labresults", "labvalues", "labs", "results", "tests", "testresults"}
	labNameKeys        = []string{"parameter", "name", "test", "testname"}
	labUnitKeys        = []string{"unit", "units"}
	labRangeKeys       = []string{"normalrange", "referencerange", "range", "refrange"}
	medicationListKeys = []string{"medications", "medicines", "prescriptions", "drugs"}
	diagnosisKeys      = []string{"diagnoses", "diagnosis", "impression", "conditions"}
	recommendationKeys = []string{"recommendations", "recommendation", "advice", "plan"}
	vitalsKeys         = []string{"vitals", "vitalsigns"}
	patientKeys        = []string{"patient", "patientinfo"}
)

func foldKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// object is a decoded JSON object with folded key lookup. A key spelled
// exactly as wanted wins; otherwise keys are tried in sorted order so that
// "Name" and "name" in one object always resolve the same way.
type object map[string]any

func (o object) get(keys ...string) (any, bool) {
	var sorted []string
	for _, want := range keys {
		if v, ok := o[want]; ok {
			return v, true
		}
		if sorted == nil {
			sorted = make([]string, 0, len(o))
			for k := range o {
				sorted = append(sorted, k)
			}
			sort.Strings(sorted)
		}
		for _, k := range sorted {
			if foldKey(k) == want {
				return o[k], true
			}
		}
	}
	return nil, false
}

func (o object) str(keys ...string) string {
	v, ok := o.get(keys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// extractStructured decodes JSON reports. On a decode failure it falls back
// to scanning "key": value pairs whose key is a known parameter.
func extractStructured(d *draft) {
	var doc any
	dec := json.NewDecoder(strings.NewReader(d.text))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		d.warn("JSON decode failed, falling back to key scan: %v", err)
		extractQuotedPairs(d)
		return
	}
	doc = normalizeNumbers(doc)

	d.base = structuredConfidence
	d.method = MethodStructuredJSON

	switch root := doc.(type) {
	case []any:
		readLabList(d, root)
	case map[string]any:
		readStructuredObject(d, object(root))
	default:
		d.warn("JSON document is neither an object nor an array")
	}
}

// normalizeNumbers turns json.Number into float64 throughout.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case []any:
		for i := range t {
			t[i] = normalizeNumbers(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalizeNumbers(t[k])
		}
		return t
	}
	return v
}

func readStructuredObject(d *draft, root object) {
	if v, ok := root.get(labListKeys...); ok {
		if list, ok := v.([]any); ok {
			readLabList(d, list)
		} else {
			d.warn("labResults is not an array")
		}
	}
	if v, ok := root.get(medicationListKeys...); ok {
		readMedications(d, v)
	}
	if v, ok := root.get(diagnosisKeys...); ok {
		for _, s := range stringList(v) {
			d.data.Diagnoses = append(d.data.Diagnoses, s)
			d.addText(medical.FindingDiagnosis, s, structuredConfidence, "diagnosis: "+s, "")
		}
	}
	if v, ok := root.get(recommendationKeys...); ok {
		for _, s := range stringList(v) {
			d.data.Recommendations = append(d.data.Recommendations, s)
			d.addText(medical.FindingObservation, s, structuredConfidence, "recommendation: "+s, "")
		}
	}
	if v, ok := root.get(vitalsKeys...); ok {
		if obj, ok := v.(map[string]any); ok {
			readStructuredVitals(d, object(obj))
		}
	}
	if v, ok := root.get(patientKeys...); ok {
		if obj, ok := v.(map[string]any); ok {
			readStructuredPatient(d, object(obj))
		}
	}

	// Remaining top-level numbers become labs when the key is a known parameter.
	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value, ok := numeric(root[k])
		if !ok {
			continue
		}
		if _, known := medical.Resolve(k); !known {
			continue
		}
		lv, ok := buildLab(k, strconv.FormatFloat(value, 'f', -1, 64), "", "")
		if !ok {
			continue
		}
		d.data.LabValues = append(d.data.LabValues, lv)
		d.addText(medical.FindingLab, k, structuredConfidence, labClaim(lv), lv.LOINCCode)
	}
}

// readLabList produces exactly one LabValue per entry that is an object.
func readLabList(d *draft, list []any) {
	for i, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			d.warn("lab entry %d is not an object", i)
			continue
		}
		lv := structuredLab(d, i, object(obj))
		d.data.LabValues = append(d.data.LabValues, lv)
		d.addText(medical.FindingLab, lv.Parameter, structuredConfidence, labClaim(lv), lv.LOINCCode)
	}
}

// structuredLab keeps parameter and unit exactly as given. A value that is
// not numeric becomes 0 with a warning.
func structuredLab(d *draft, i int, obj object) medical.LabValue {
	lv := medical.LabValue{
		Parameter: obj.str(labNameKeys...),
		Unit:      obj.str(labUnitKeys...),
	}
	if lv.Parameter == "" {
		d.warn("lab entry %d has no parameter name", i)
	}

	raw, _ := obj.get("value", "result")
	if v, ok := numeric(raw); ok {
		lv.Value = v
	} else {
		d.warn("lab entry %d (%s) has non-numeric value %v", i, lv.Parameter, raw)
	}

	info, known := medical.Resolve(lv.Parameter)
	if known {
		lv.ParameterID = info.ID
		lv.LOINCCode = info.LOINC
	}

	var rng medical.ReferenceRange
	rawRange, hasRange := obj.get(labRangeKeys...)
	switch r := rawRange.(type) {
	case string:
		if parsed, ok := medical.ParseRange(r); ok {
			rng = parsed
			lv.NormalRange = rng.String()
		} else {
			lv.NormalRange = strings.TrimSpace(r)
		}
	case map[string]any:
		ro := object(r)
		lo, hasLo := numeric(ro["min"])
		hi, hasHi := numeric(ro["max"])
		switch {
		case hasLo && hasHi && lo <= hi:
			rng = medical.Between(lo, hi)
		case hasHi:
			rng = medical.AtMost(hi)
		case hasLo:
			rng = medical.AtLeast(lo)
		}
		lv.NormalRange = rng.String()
	}
	if !hasRange && known && info.AcceptsUnit(lv.Unit) {
		rng = info.Range
		lv.NormalRange = rng.String()
	}

	lv.Status, lv.Flagged = medical.EvaluateLab(lv.Value, rng)
	return lv
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return ParseNumber(t)
	}
	return 0, false
}

func stringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ";") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range t {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if s := object(it).str("name", "text", "description", "diagnosis"); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func readMedications(d *draft, v any) {
	list, ok := v.([]any)
	if !ok {
		list = []any{v}
	}
	for _, item := range list {
		var med medical.Medication
		switch it := item.(type) {
		case string:
			med.Name = strings.TrimSpace(it)
		case map[string]any:
			o := object(it)
			med = medical.Medication{
				Name:      o.str("name", "drug", "medication"),
				Dosage:    o.str("dosage", "dose", "strength"),
				Unit:      o.str("unit"),
				Form:      o.str("form"),
				Frequency: o.str("frequency", "schedule"),
			}
		}
		if med.Name == "" {
			continue
		}
		d.data.Medications = append(d.data.Medications, med)
		d.addText(medical.FindingMedication, med.Name, structuredConfidence,
			strings.TrimSpace(med.Name+" "+med.Dosage+" "+med.Unit), "")
	}
}

func readStructuredVitals(d *draft, o object) {
	vs := d.vitals()
	if v, ok := o.get("bloodpressure", "bp"); ok {
		switch t := v.(type) {
		case string:
			if m := bpValuePattern.FindStringSubmatch(t); m != nil {
				sys, _ := strconv.ParseFloat(m[1], 64)
				dia, _ := strconv.ParseFloat(m[2], 64)
				vs.BloodPressure = &medical.BloodPressure{Systolic: sys, Diastolic: dia}
			}
		case map[string]any:
			bo := object(t)
			sys, okS := numeric(bo["systolic"])
			dia, okD := numeric(bo["diastolic"])
			if okS && okD {
				vs.BloodPressure = &medical.BloodPressure{Systolic: sys, Diastolic: dia}
			}
		}
	}
	set := func(dst **float64, keys ...string) {
		if v, ok := o.get(keys...); ok {
			if f, ok := numeric(v); ok {
				*dst = &f
			}
		}
	}
	set(&vs.HeartRate, "heartrate", "pulse", "hr")
	set(&vs.Temperature, "temperature", "temp")
	set(&vs.OxygenSaturation, "oxygensaturation", "spo2")
	set(&vs.RespiratoryRate, "respiratoryrate", "rr")
	set(&vs.Weight, "weight")
	set(&vs.Height, "height")
	set(&vs.BMI, "bmi")
}

func readStructuredPatient(d *draft, o object) {
	p := d.patient()
	p.Name = o.str("name")
	if v, ok := o.get("age"); ok {
		if f, ok := numeric(v); ok && f >= 0 && f <= maxAge {
			age := int(f)
			p.Age = &age
		}
	}
	p.Gender = normalizeGender(o.str("gender", "sex"))
	if date := o.str("reportdate", "date"); date != "" {
		p.ReportDate = NormalizeDate(date)
	}
}

// extractQuotedPairs scans "key": value pairs in text that is not valid JSON.
func extractQuotedPairs(d *draft) {
	d.base = structuredFallbackConfidence
	d.method = MethodStructuredRegex

	for _, m := range quotedPairPattern.FindAllStringSubmatchIndex(d.text, -1) {
		key := d.text[m[2]:m[3]]
		if _, known := medical.Resolve(key); !known {
			continue
		}
		lv, ok := buildLab(key, d.text[m[4]:m[5]], "", "")
		if !ok {
			continue
		}
		d.addLab(lv, m[0], m[1], structuredFallbackConfidence)
	}
	if len(d.data.LabValues) == 0 {
		d.warn("no known parameters found in %d bytes of malformed JSON", len(d.text))
	}
}
