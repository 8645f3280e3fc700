package extraction

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

const (
	confidenceFloor = 0.10
	scanDiscount    = 0.85
)

// Parsing methods reported on the result.
const (
	MethodStructuredJSON  = "structured_json"
	MethodStructuredRegex = "structured_regex_fallback"
	MethodTabular         = "tabular_regex"
	MethodHandwritten     = "handwritten_regex"
	MethodNarrative       = "narrative_rules"
	MethodScan            = "scan_narrative"
)

// Shared regex fragments for "name value unit" style lines.
const (
	numberExpr = `-?\d+(?:,\d{3})*(?:\.\d+)?`
	unitExpr   = `(?:[A-Za-zµμ%]|/[A-Za-z])[A-Za-z0-9µμ%/^.*³]*`
	nameExpr   = `[A-Za-z][A-Za-z0-9 ()/,.'+\-]*?`
)

var (
	colonLabPattern = regexp.MustCompile(`^\s*(?:[-*•]\s*)?(` + nameExpr + `)\s*[:=]\s*([<>]?\s*` + numberExpr + `)\s*(` + unitExpr + `)?(.*)$`)
	rangeAnnotation = regexp.MustCompile(`(?i)(?:normal(?:\s+range)?|bio\.?\s*ref(?:\.|erence)?\s*(?:interval|range)?|ref(?:erence)?(?:\s+(?:range|interval))?|range)\s*[:=\-]?\s*([^)\]]+)`)
	bareRange       = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:-|–|to)\s*\d+(?:\.\d+)?|[<>≤≥]=?\s*\d+(?:\.\d+)?`)
	continuedNumber = regexp.MustCompile(`^\s*[/:]\s*\d`)
	// "12-Mar-2024", "15/01/2024", "10:30" directly after the value
	attachedDate = regexp.MustCompile(`^(?:[/:.\-]\d|-[A-Za-z]{3})`)
)

// nonLabNames are labels that look like "name: number" but are not lab values.
var nonLabNames = map[string]bool{
	"age": true, "sex": true, "gender": true, "name": true, "patient": true, "patient name": true,
	"patient id": true, "id": true, "date": true, "report date": true, "dob": true, "date of birth": true,
	"time": true, "page": true, "phone": true, "mobile": true, "mrn": true, "uhid": true, "bed": true,
	"ward": true, "room": true, "ref no": true, "sample id": true, "lab no": true, "pin": true,
	"pulse": true, "pulse rate": true, "heart rate": true, "hr": true, "temperature": true, "temp": true,
	"weight": true, "wt": true, "height": true, "ht": true, "bmi": true, "spo2": true, "sp02": true,
	"oxygen saturation": true, "o2 saturation": true, "o2 sat": true, "respiratory rate": true, "rr": true,
	"bp": true, "blood pressure": true,
}

func isNonLab(name string) bool {
	n := medical.NormalizeName(name)
	if n == "" || nonLabNames[n] {
		return true
	}
	return strings.HasPrefix(n, "date ") || strings.HasPrefix(n, "patient ") || strings.HasSuffix(n, " date")
}

// Extractor turns classified report text into structured medical data.
// It is stateless and deterministic: equal input gives equal output.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract runs the strategy selected by c, then the vitals and patient passes,
// then drops findings that cannot be located in text. Scans have every
// confidence discounted once all passes are done. It never fails; input
// with nothing recognizable yields empty data at the confidence floor.
func (e *Extractor) Extract(text string, c Classification) *medical.OmniExtractionResult {
	d := newDraft(text)

	switch c.Format {
	case medical.FormatStructured:
		extractStructured(d)
	case medical.FormatTabular:
		extractTabular(d)
	case medical.FormatHandwritten:
		extractHandwritten(d)
	case medical.FormatScan:
		extractNarrative(d)
		d.method = MethodScan
	default:
		extractNarrative(d)
	}

	extractVitals(d)
	extractPatient(d)

	if c.Format == medical.FormatScan {
		d.discount(scanDiscount)
	}
	return d.finalize(c)
}

// candidate is a finding together with what it claims, pending validation.
type candidate struct {
	finding medical.Finding
	claim   string
	loinc   string
}

// draft accumulates one extraction pass.
type draft struct {
	text       string
	lower      string
	data       *medical.ExtractedMedicalData
	candidates []candidate
	warnings   []string
	base       float64
	method     string
}

func newDraft(text string) *draft {
	return &draft{
		text:  text,
		lower: strings.ToLower(text),
		data:  medical.NewExtractedMedicalData(),
	}
}

func (d *draft) warn(format string, args ...any) {
	d.warnings = append(d.warnings, fmt.Sprintf(format, args...))
}

// addSpan records a finding for text[start:end].
func (d *draft) addSpan(kind medical.FindingKind, start, end int, conf float64, claim, loinc string) *medical.Finding {
	d.candidates = append(d.candidates, candidate{
		finding: medical.Finding{
			Text:       d.text[start:end],
			Kind:       kind,
			Polarity:   medical.PolarityPositive,
			Confidence: conf,
			Start:      start,
			End:        end,
		},
		claim: claim,
		loinc: loinc,
	})
	return &d.candidates[len(d.candidates)-1].finding
}

// addText records a finding whose position is not known; it is located by a
// case-insensitive search, and stays unlocated (-1) if absent.
func (d *draft) addText(kind medical.FindingKind, text string, conf float64, claim, loinc string) {
	start, end := -1, -1
	if text != "" {
		if i := strings.Index(d.lower, strings.ToLower(text)); i >= 0 {
			start, end = i, i+len(text)
		}
	}
	d.candidates = append(d.candidates, candidate{
		finding: medical.Finding{
			Text:       text,
			Kind:       kind,
			Polarity:   medical.PolarityPositive,
			Confidence: conf,
			Start:      start,
			End:        end,
		},
		claim: claim,
		loinc: loinc,
	})
}

func (d *draft) addLab(lv medical.LabValue, start, end int, conf float64) {
	d.data.LabValues = append(d.data.LabValues, lv)
	d.addSpan(medical.FindingLab, start, end, conf, labClaim(lv), lv.LOINCCode)
}

func (d *draft) discount(factor float64) {
	d.base *= factor
	for i := range d.candidates {
		d.candidates[i].finding.Confidence *= factor
	}
}

func labClaim(lv medical.LabValue) string {
	claim := fmt.Sprintf("%s = %s", lv.Parameter, formatValue(lv.Value))
	if lv.Unit != "" {
		claim += " " + lv.Unit
	}
	if lv.NormalRange != "" {
		claim += fmt.Sprintf(" (ref %s)", lv.NormalRange)
	}
	return claim
}

func formatValue(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// buildLab assembles a LabValue from captured text. The catalog supplies the
// parameter id, LOINC code, and a default unit and range when the source
// line has none. The default range is skipped for values in another unit.
func buildLab(name, rawValue, rawUnit, rawRange string) (medical.LabValue, bool) {
	name = cleanParameterName(name)
	value, ok := ParseNumber(rawValue)
	if name == "" || !ok {
		return medical.LabValue{}, false
	}

	unit := NormalizeUnit(rawUnit)
	if isFlagToken(unit) {
		unit = ""
	}

	lv := medical.LabValue{Parameter: name, Value: value, Unit: unit}
	info, known := medical.Resolve(name)
	if known {
		lv.ParameterID = info.ID
		lv.LOINCCode = info.LOINC
		if lv.Unit == "" {
			lv.Unit = info.Unit
		}
	}

	var rng medical.ReferenceRange
	rawRange = strings.TrimSpace(rawRange)
	switch parsed, ok := medical.ParseRange(rawRange); {
	case ok:
		rng = parsed
		lv.NormalRange = rng.String()
	case rawRange != "":
		lv.NormalRange = rawRange
	case known && info.AcceptsUnit(lv.Unit):
		rng = info.Range
		lv.NormalRange = rng.String()
	}

	lv.Status, lv.Flagged = medical.EvaluateLab(value, rng)
	return lv, true
}

// rangeFrom finds a reference range in the remainder of a lab line.
func rangeFrom(rest string) string {
	if m := rangeAnnotation.FindStringSubmatch(rest); m != nil {
		if r := bareRange.FindString(m[1]); r != "" {
			return r
		}
		return strings.TrimSpace(m[1])
	}
	return bareRange.FindString(rest)
}

// matchColonLab parses "Name: value unit (Normal: range)" and returns the
// lab and the byte span of the match within line.
func matchColonLab(line string) (medical.LabValue, int, int, bool) {
	m := colonLabPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return medical.LabValue{}, 0, 0, false
	}
	name := line[m[2]:m[3]]
	rest := line[m[8]:m[9]]
	if isNonLab(name) || continuedNumber.MatchString(rest) || attachedDate.MatchString(line[m[5]:]) {
		return medical.LabValue{}, 0, 0, false
	}
	unit := ""
	if m[6] >= 0 {
		unit = line[m[6]:m[7]]
		if !looksLikeUnit(unit) && !isFlagToken(unit) {
			unit, rest = "", line[m[6]:m[9]]
		}
	}
	lv, ok := buildLab(name, line[m[4]:m[5]], unit, rangeFrom(rest))
	if !ok {
		return medical.LabValue{}, 0, 0, false
	}
	start, end := trimmedBounds(line, m[2], len(line))
	return lv, start, end, true
}

// trimmedBounds narrows [start,end) of s to exclude surrounding whitespace.
func trimmedBounds(s string, start, end int) (int, int) {
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// lineSpan is a line of the input with its byte offset.
type lineSpan struct {
	text  string
	start int
}

func splitLines(text string) []lineSpan {
	var lines []lineSpan
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			lines = append(lines, lineSpan{text: strings.TrimSuffix(text[start:i], "\r"), start: start})
			start = i + 1
		}
	}
	return lines
}

// finalize validates findings, computes confidence and fills derived data.
func (d *draft) finalize(c Classification) *medical.OmniExtractionResult {
	retained := verifyCandidates(d.lower, d.candidates)

	confidence := confidenceFloor
	if total := len(d.candidates); total > 0 {
		confidence = math.Max(confidenceFloor, d.base*float64(len(retained))/float64(total))
	}
	if dropped := len(d.candidates) - len(retained); dropped > 0 {
		d.warn("%d finding(s) not found in source text were discarded", dropped)
	}

	d.data.TestResults = deriveTestResults(d.data.LabValues)
	if d.data.VitalSigns.IsEmpty() {
		d.data.VitalSigns = nil
	}
	if d.data.PatientInfo.IsEmpty() {
		d.data.PatientInfo = nil
	}

	findings := make([]medical.Finding, 0, len(retained))
	trace := make([]medical.TraceabilityEntry, 0, len(retained))
	for _, cand := range retained {
		findings = append(findings, cand.finding)
		trace = append(trace, traceEntry(cand, d.method))
	}

	return &medical.OmniExtractionResult{
		Data:          d.data,
		Confidence:    round4(confidence),
		ParsingMethod: d.method,
		Format:        c.Format,
		DocumentType:  c.DocumentType,
		Findings:      findings,
		Traceability:  trace,
		Warnings:      d.warnings,
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// deriveTestResults reshapes lab values for category display.
func deriveTestResults(labs []medical.LabValue) []medical.TestResult {
	results := make([]medical.TestResult, 0, len(labs))
	for _, lv := range labs {
		category := "General"
		name := lv.Parameter
		if info, ok := medical.Lookup(lv.ParameterID); ok {
			category = info.Panel
		}
		rng, hasRange := medical.ParseRange(lv.NormalRange)
		status := medical.TestStatusNormal
		if hasRange {
			status = medical.DeriveTestStatus(lv.Value, rng)
		}
		results = append(results, medical.TestResult{
			Category:       category,
			TestName:       name,
			Value:          lv.Value,
			Unit:           lv.Unit,
			ReferenceRange: lv.NormalRange,
			Status:         status,
			Interpretation: medical.Interpretation(status, hasRange),
		})
	}
	return results
}
