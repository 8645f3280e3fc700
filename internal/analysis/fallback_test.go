package analysis

import (
	"reflect"
	"strings"
	"testing"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
	"github.com/vitalis-health/vitalis/backend/internal/scoring"
)

func TestRuleBasedAnalysis_FlaggedLab(t *testing.T) {
	ext, report := glucoseReport(t)
	a := RuleBasedAnalysis(ext, report)

	if a.Source != SourceRuleBased {
		t.Errorf("Source = %s", a.Source)
	}
	if a.OverallScore != report.OverallScore || a.RiskLevel != riskFor(report.OverallScore) {
		t.Errorf("score = %d risk = %s", a.OverallScore, a.RiskLevel)
	}
	wantSummary := "Overall health score is 83/100 (good). 1 lab value reviewed, 1 outside the reference range."
	if a.Summary != wantSummary {
		t.Errorf("Summary = %q, want %q", a.Summary, wantSummary)
	}
	if len(a.KeyFindings) != 1 || a.KeyFindings[0] != "Glucose 250 mg/dL is critical (reference 70-100)" {
		t.Errorf("KeyFindings = %q", a.KeyFindings)
	}
	if len(a.Concerns) != 1 || !strings.HasPrefix(a.Concerns[0], "Glucose is far outside") {
		t.Errorf("Concerns = %q", a.Concerns)
	}
	if len(a.CategoryScores) != 7 || a.Predictions == nil {
		t.Errorf("category scores = %d, predictions = %v", len(a.CategoryScores), a.Predictions)
	}
	if len(a.Recommendations) != 1 || a.Recommendations[0].Category != string(medical.CategoryMetabolic) {
		t.Errorf("Recommendations = %+v", a.Recommendations)
	}
	if a.Disclaimer == "" {
		t.Error("Disclaimer empty")
	}
}

func TestRuleBasedAnalysis_Deterministic(t *testing.T) {
	ext, report := glucoseReport(t)
	if !reflect.DeepEqual(RuleBasedAnalysis(ext, report), RuleBasedAnalysis(ext, report)) {
		t.Error("RuleBasedAnalysis is not deterministic")
	}
}

func TestRuleBasedAnalysis_EmptyReport(t *testing.T) {
	ext := &medical.OmniExtractionResult{Data: medical.NewExtractedMedicalData(), Confidence: 0.1}
	report := scoring.NewScorer().Score(ext.Data)

	a := RuleBasedAnalysis(ext, report)
	if !strings.Contains(a.Summary, "No lab values") {
		t.Errorf("Summary = %q", a.Summary)
	}
	if len(a.KeyFindings) != 0 || len(a.Concerns) != 0 {
		t.Errorf("KeyFindings = %q Concerns = %q", a.KeyFindings, a.Concerns)
	}
	if a.Confidence != 0.1 {
		t.Errorf("Confidence = %v", a.Confidence)
	}
}

func TestRuleBasedAnalysis_PoorCategoryConcern(t *testing.T) {
	data := medical.NewExtractedMedicalData()
	for _, lv := range []medical.LabValue{
		{Parameter: "Creatinine", ParameterID: medical.ParamCreatinine, Value: 2.1, Status: medical.LabStatusCritical, Flagged: true},
		{Parameter: "eGFR", ParameterID: medical.ParamEGFR, Value: 40, Status: medical.LabStatusAbnormal, Flagged: true},
		{Parameter: "BUN", ParameterID: medical.ParamBUN, Value: 22, Status: medical.LabStatusAbnormal, Flagged: true},
	} {
		data.LabValues = append(data.LabValues, lv)
	}
	data.Diagnoses = append(data.Diagnoses, "Chronic kidney disease stage 3")
	ext := &medical.OmniExtractionResult{Data: data, Confidence: 0.9}

	a := RuleBasedAnalysis(ext, scoring.NewScorer().Score(data))

	if !containsString(a.Concerns, "Kidney score is poor (35/100)") {
		t.Errorf("Concerns = %q", a.Concerns)
	}
	if !containsString(a.KeyFindings, "Documented diagnosis: Chronic kidney disease stage 3") {
		t.Errorf("KeyFindings = %q", a.KeyFindings)
	}
	if len(a.KeyFindings) != 4 {
		t.Errorf("got %d key findings, want 4", len(a.KeyFindings))
	}
}

func TestRuleBasedAnalysis_NilReport(t *testing.T) {
	got := RuleBasedAnalysis(nil, nil)
	if !reflect.DeepEqual(got, FallbackAnalysis()) {
		t.Errorf("RuleBasedAnalysis(nil, nil) = %+v, want FallbackAnalysis", got)
	}
}

func TestFallbackAnalysis(t *testing.T) {
	a := FallbackAnalysis()
	if a.Source != SourceRuleBased || a.Summary == "" || len(a.Recommendations) == 0 {
		t.Errorf("FallbackAnalysis() = %+v", a)
	}
	if a.KeyFindings == nil || a.Concerns == nil || a.CategoryScores == nil {
		t.Error("FallbackAnalysis has nil lists")
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
