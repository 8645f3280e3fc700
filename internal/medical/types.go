// Package medical defines the records produced by report extraction and the
// closed vocabulary of lab parameters they are resolved against.
package medical

// LabStatus is the coarse status of a single lab value.
type LabStatus string

const (
	LabStatusNormal   LabStatus = "normal"
	LabStatusAbnormal LabStatus = "abnormal"
	LabStatusCritical LabStatus = "critical"
)

// TestStatus is the display-oriented status of a test result.
type TestStatus string

const (
	TestStatusNormal     TestStatus = "normal"
	TestStatusHigh       TestStatus = "high"
	TestStatusLow        TestStatus = "low"
	TestStatusCritical   TestStatus = "critical"
	TestStatusBorderline TestStatus = "borderline"
)

// LabValue is a single named measurement pulled out of a report.
type LabValue struct {
	Parameter   string      `json:"parameter" firestore:"parameter"`
	ParameterID ParameterID `json:"parameterId,omitempty" firestore:"parameterId,omitempty"`
	Value       float64     `json:"value" firestore:"value"`
	Unit        string      `json:"unit" firestore:"unit"`
	NormalRange string      `json:"normalRange" firestore:"normalRange"`
	Status      LabStatus   `json:"status" firestore:"status"`
	Flagged     bool        `json:"flagged" firestore:"flagged"`
	LOINCCode   string      `json:"loincCode,omitempty" firestore:"loincCode,omitempty"`
}

// TestResult is a LabValue reshaped for category-based display.
type TestResult struct {
	Category       string     `json:"category" firestore:"category"`
	TestName       string     `json:"testName" firestore:"testName"`
	Value          float64    `json:"value" firestore:"value"`
	Unit           string     `json:"unit" firestore:"unit"`
	ReferenceRange string     `json:"referenceRange" firestore:"referenceRange"`
	Status         TestStatus `json:"status" firestore:"status"`
	Interpretation string     `json:"interpretation" firestore:"interpretation"`
}

// Medication is a prescribed drug line.
type Medication struct {
	Name      string `json:"name" firestore:"name"`
	Dosage    string `json:"dosage,omitempty" firestore:"dosage,omitempty"`
	Unit      string `json:"unit,omitempty" firestore:"unit,omitempty"`
	Form      string `json:"form,omitempty" firestore:"form,omitempty"`
	Frequency string `json:"frequency,omitempty" firestore:"frequency,omitempty"`
}

// BloodPressure is a systolic/diastolic pair in mmHg.
type BloodPressure struct {
	Systolic  float64 `json:"systolic" firestore:"systolic"`
	Diastolic float64 `json:"diastolic" firestore:"diastolic"`
}

// VitalSigns holds whichever vitals a report mentions.
type VitalSigns struct {
	BloodPressure    *BloodPressure `json:"bloodPressure,omitempty" firestore:"bloodPressure,omitempty"`
	HeartRate        *float64       `json:"heartRate,omitempty" firestore:"heartRate,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty" firestore:"temperature,omitempty"`
	OxygenSaturation *float64       `json:"oxygenSaturation,omitempty" firestore:"oxygenSaturation,omitempty"`
	RespiratoryRate  *float64       `json:"respiratoryRate,omitempty" firestore:"respiratoryRate,omitempty"`
	Weight           *float64       `json:"weight,omitempty" firestore:"weight,omitempty"`
	Height           *float64       `json:"height,omitempty" firestore:"height,omitempty"`
	BMI              *float64       `json:"bmi,omitempty" firestore:"bmi,omitempty"`
}

// IsEmpty reports whether no vital sign was captured.
func (v *VitalSigns) IsEmpty() bool {
	return v == nil || (v.BloodPressure == nil && v.HeartRate == nil && v.Temperature == nil &&
		v.OxygenSaturation == nil && v.RespiratoryRate == nil && v.Weight == nil &&
		v.Height == nil && v.BMI == nil)
}

// PatientInfo is the demographic header of a report.
type PatientInfo struct {
	Name       string `json:"name,omitempty" firestore:"name,omitempty"`
	Age        *int   `json:"age,omitempty" firestore:"age,omitempty"`
	Gender     string `json:"gender,omitempty" firestore:"gender,omitempty"`
	ReportDate string `json:"reportDate,omitempty" firestore:"reportDate,omitempty"`
}

// IsEmpty reports whether no patient field was captured.
func (p *PatientInfo) IsEmpty() bool {
	return p == nil || (p.Name == "" && p.Age == nil && p.Gender == "" && p.ReportDate == "")
}

// ExtractedMedicalData is the flat structured record extracted from one
// report. Duplicate parameters are allowed.
type ExtractedMedicalData struct {
	LabValues       []LabValue   `json:"labValues" firestore:"labValues"`
	TestResults     []TestResult `json:"testResults" firestore:"testResults"`
	Medications     []Medication `json:"medications" firestore:"medications"`
	Diagnoses       []string     `json:"diagnoses" firestore:"diagnoses"`
	Recommendations []string     `json:"recommendations" firestore:"recommendations"`
	VitalSigns      *VitalSigns  `json:"vitalSigns,omitempty" firestore:"vitalSigns,omitempty"`
	PatientInfo     *PatientInfo `json:"patientInfo,omitempty" firestore:"patientInfo,omitempty"`
}

// NewExtractedMedicalData returns a record whose lists are empty rather than nil,
// so it always serializes as arrays.
func NewExtractedMedicalData() *ExtractedMedicalData {
	return &ExtractedMedicalData{
		LabValues:       []LabValue{},
		TestResults:     []TestResult{},
		Medications:     []Medication{},
		Diagnoses:       []string{},
		Recommendations: []string{},
	}
}

// IsEmpty reports whether nothing at all was extracted.
func (d *ExtractedMedicalData) IsEmpty() bool {
	return d == nil || (len(d.LabValues) == 0 && len(d.Medications) == 0 && len(d.Diagnoses) == 0 &&
		len(d.Recommendations) == 0 && d.VitalSigns.IsEmpty() && d.PatientInfo.IsEmpty())
}

// Lab returns the first lab value resolved to id.
func (d *ExtractedMedicalData) Lab(id ParameterID) (LabValue, bool) {
	if d == nil {
		return LabValue{}, false
	}
	for _, lv := range d.LabValues {
		if lv.ParameterID == id {
			return lv, true
		}
	}
	return LabValue{}, false
}

// Format is the parsing strategy selected for a document.
type Format string

const (
	FormatStructured  Format = "structured"
	FormatHandwritten Format = "handwritten"
	FormatTabular     Format = "tabular"
	FormatNarrative   Format = "narrative"
	FormatScan        Format = "scan"
)

// FindingKind says what a finding was extracted as.
type FindingKind string

const (
	FindingLab         FindingKind = "lab"
	FindingMedication  FindingKind = "medication"
	FindingDiagnosis   FindingKind = "diagnosis"
	FindingObservation FindingKind = "observation"
	FindingVital       FindingKind = "vital"
)

// Polarity distinguishes affirmed from negated findings.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegated  Polarity = "negated"
)

// Finding is a raw match with its position in the source text.
// Trend is +1 improved, -1 worsened, 0 stable or unknown; TrendLabel is empty
// when no trend word was present.
type Finding struct {
	Text       string      `json:"text" firestore:"text"`
	Kind       FindingKind `json:"kind" firestore:"kind"`
	Polarity   Polarity    `json:"polarity" firestore:"polarity"`
	Trend      int         `json:"trend" firestore:"trend"`
	TrendLabel string      `json:"trendLabel,omitempty" firestore:"trendLabel,omitempty"`
	Confidence float64     `json:"confidence" firestore:"confidence"`
	Start      int         `json:"start" firestore:"start"`
	End        int         `json:"end" firestore:"end"`
}

// TraceabilityEntry ties an extracted claim back to its source span.
type TraceabilityEntry struct {
	Claim      string  `json:"claim" firestore:"claim"`
	SourceText string  `json:"sourceText" firestore:"sourceText"`
	Start      int     `json:"start" firestore:"start"`
	End        int     `json:"end" firestore:"end"`
	Confidence float64 `json:"confidence" firestore:"confidence"`
	Database   string  `json:"database" firestore:"database"`
	Reference  string  `json:"reference" firestore:"reference"`
	Method     string  `json:"method" firestore:"method"`
}

// OmniExtractionResult wraps the extracted record with provenance.
type OmniExtractionResult struct {
	Data          *ExtractedMedicalData `json:"data" firestore:"data"`
	Confidence    float64               `json:"confidence" firestore:"confidence"`
	ParsingMethod string                `json:"parsingMethod" firestore:"parsingMethod"`
	Format        Format                `json:"format" firestore:"format"`
	DocumentType  string                `json:"documentType" firestore:"documentType"`
	Findings      []Finding             `json:"findings" firestore:"findings"`
	Traceability  []TraceabilityEntry   `json:"traceability" firestore:"traceability"`
	Warnings      []string              `json:"warnings,omitempty" firestore:"warnings,omitempty"`
}
