package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
	"github.com/vitalis-health/vitalis/backend/internal/scoring"
)

const systemPrompt = `You are a clinical report assistant. You explain lab results to patients in plain language.
You are given values extracted from a medical report and health scores that were already computed.
Do not invent lab values, diagnoses, or scores that are not in the input.

Return ONLY a valid JSON object with this structure:
{
  "overallScore": 0-100,
  "riskLevel": "low" | "moderate" | "high",
  "summary": "two or three sentences",
  "keyFindings": ["..."],
  "concerns": ["..."],
  "recommendations": [{"category": "cardiovascular", "priority": "high" | "medium" | "low", "text": "..."}],
  "confidence": 0.0-1.0
}`

// buildPrompt renders the extracted data and local scores as the user turn.
func buildPrompt(ext *medical.OmniExtractionResult, report *scoring.HealthReport) string {
	var b strings.Builder
	data := medical.NewExtractedMedicalData()
	if ext != nil && ext.Data != nil {
		data = ext.Data
		fmt.Fprintf(&b, "Report format: %s (%s), extraction confidence %.2f\n\n", ext.Format, ext.DocumentType, ext.Confidence)
	}

	if p := data.PatientInfo; !p.IsEmpty() {
		b.WriteString("Patient:")
		if p.Age != nil {
			fmt.Fprintf(&b, " age %d", *p.Age)
		}
		if p.Gender != "" {
			fmt.Fprintf(&b, " %s", p.Gender)
		}
		b.WriteString("\n\n")
	}

	b.WriteString("Lab values:\n")
	if len(data.LabValues) == 0 {
		b.WriteString("- none\n")
	}
	for _, lv := range data.LabValues {
		fmt.Fprintf(&b, "- %s: %s %s", lv.Parameter, strconv.FormatFloat(lv.Value, 'f', -1, 64), lv.Unit)
		if lv.NormalRange != "" {
			fmt.Fprintf(&b, " (reference %s)", lv.NormalRange)
		}
		fmt.Fprintf(&b, " [%s]\n", lv.Status)
	}

	if vs := data.VitalSigns; !vs.IsEmpty() {
		b.WriteString("\nVital signs:\n")
		if vs.BloodPressure != nil {
			fmt.Fprintf(&b, "- blood pressure %.0f/%.0f mmHg\n", vs.BloodPressure.Systolic, vs.BloodPressure.Diastolic)
		}
		writeVital(&b, "heart rate", vs.HeartRate, "bpm")
		writeVital(&b, "temperature", vs.Temperature, "")
		writeVital(&b, "oxygen saturation", vs.OxygenSaturation, "%")
		writeVital(&b, "respiratory rate", vs.RespiratoryRate, "/min")
		writeVital(&b, "weight", vs.Weight, "kg")
		writeVital(&b, "BMI", vs.BMI, "")
	}

	if len(data.Medications) > 0 {
		b.WriteString("\nMedications:\n")
		for _, m := range data.Medications {
			fmt.Fprintf(&b, "- %s %s%s %s\n", m.Name, m.Dosage, m.Unit, m.Frequency)
		}
	}
	writeList(&b, "Diagnoses", data.Diagnoses)
	writeList(&b, "Clinician recommendations", data.Recommendations)

	if report != nil {
		fmt.Fprintf(&b, "\nComputed overall health score: %d/100 (%s)\n", report.OverallScore, report.Status)
		for _, c := range report.Components {
			note := ""
			if !c.DataAvailable {
				note = ", no data"
			}
			fmt.Fprintf(&b, "- %s: %d (%s%s)\n", c.Category, c.Score, c.Status, note)
		}
	}
	return b.String()
}

func writeVital(b *strings.Builder, name string, v *float64, unit string) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "- %s %s%s\n", name, strconv.FormatFloat(*v, 'f', -1, 64), unit)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
