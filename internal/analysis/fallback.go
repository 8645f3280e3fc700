package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
	"github.com/vitalis-health/vitalis/backend/internal/scoring"
)

// maxListedFindings caps how many lab lines go into KeyFindings.
const maxListedFindings = 8

// RuleBasedAnalysis derives an analysis from the extraction and the local
// scorer only. It is deterministic; GeneratedAt is left for the caller.
// A nil report gives FallbackAnalysis.
func RuleBasedAnalysis(ext *medical.OmniExtractionResult, report *scoring.HealthReport) *MedicalAIAnalysis {
	if report == nil {
		return FallbackAnalysis()
	}
	data := medical.NewExtractedMedicalData()
	confidence := 0.0
	if ext != nil && ext.Data != nil {
		data = ext.Data
		confidence = ext.Confidence
	}

	var flagged, critical []medical.LabValue
	for _, lv := range data.LabValues {
		if lv.Flagged {
			flagged = append(flagged, lv)
		}
		if lv.Status == medical.LabStatusCritical {
			critical = append(critical, lv)
		}
	}

	a := &MedicalAIAnalysis{
		Source:          SourceRuleBased,
		OverallScore:    report.OverallScore,
		RiskLevel:       riskFor(report.OverallScore),
		KeyFindings:     []string{},
		Concerns:        []string{},
		Recommendations: append([]scoring.Recommendation(nil), report.Recommendations...),
		CategoryScores:  append([]scoring.CategoryScore(nil), report.Components...),
		Confidence:      math.Round(confidence*100) / 100,
		Disclaimer:      Disclaimer,
	}
	predictions := report.Predictions
	a.Predictions = &predictions

	a.Summary = fmt.Sprintf("Overall health score is %d/100 (%s). %d lab %s reviewed, %d outside the reference range.",
		report.OverallScore, report.Status, len(data.LabValues), plural(len(data.LabValues), "value", "values"), len(flagged))
	if len(data.LabValues) == 0 {
		a.Summary = fmt.Sprintf("Overall health score is %d/100 (%s). No lab values could be read from this report, so category scores reflect defaults.",
			report.OverallScore, report.Status)
	}

	for i, lv := range flagged {
		if i == maxListedFindings {
			a.KeyFindings = append(a.KeyFindings, fmt.Sprintf("%d more values outside the reference range", len(flagged)-i))
			break
		}
		a.KeyFindings = append(a.KeyFindings, describeLab(lv))
	}
	if len(flagged) == 0 && len(data.LabValues) > 0 {
		a.KeyFindings = append(a.KeyFindings, "All measured lab values are within their reference ranges")
	}
	for _, d := range data.Diagnoses {
		a.KeyFindings = append(a.KeyFindings, "Documented diagnosis: "+d)
	}

	for _, lv := range critical {
		a.Concerns = append(a.Concerns, fmt.Sprintf("%s is far outside the reference range and should be reviewed promptly", lv.Parameter))
	}
	for _, c := range report.Components {
		if c.DataAvailable && c.Status == scoring.StatusPoor {
			a.Concerns = append(a.Concerns, fmt.Sprintf("%s score is poor (%d/100)", titleCase(string(c.Category)), c.Score))
		}
	}
	return a
}

// FallbackAnalysis is the static analysis used when no scorer output exists.
func FallbackAnalysis() *MedicalAIAnalysis {
	return &MedicalAIAnalysis{
		Source:       SourceRuleBased,
		OverallScore: 75,
		RiskLevel:    RiskModerate,
		Summary:      "Your report was received, but an automated analysis could not be completed. Please review the extracted values with your healthcare provider.",
		KeyFindings:  []string{"Report processed; detailed analysis unavailable"},
		Concerns:     []string{},
		Recommendations: []scoring.Recommendation{
			{Category: "general", Priority: scoring.PriorityMedium, Text: "Review these results with your healthcare provider."},
		},
		CategoryScores: []scoring.CategoryScore{},
		Confidence:     0.5,
		Disclaimer:     Disclaimer,
	}
}

func describeLab(lv medical.LabValue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", lv.Parameter, strconv.FormatFloat(lv.Value, 'f', -1, 64))
	if lv.Unit != "" {
		b.WriteString(" " + lv.Unit)
	}
	fmt.Fprintf(&b, " is %s", lv.Status)
	if lv.NormalRange != "" {
		fmt.Fprintf(&b, " (reference %s)", lv.NormalRange)
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
