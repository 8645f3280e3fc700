package analysis

import (
	"time"

	"github.com/vitalis-health/vitalis/backend/internal/scoring"
)

// Source tags which producer wrote an analysis.
type Source string

const (
	SourceAIGenerated Source = "ai_generated"
	SourceRuleBased   Source = "rule_based"
)

// RiskLevel is the coarse overall risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Disclaimer is attached to every analysis.
const Disclaimer = "This analysis is generated automatically for informational purposes only and is not a medical diagnosis. Discuss your results with a qualified healthcare provider."

// MedicalAIAnalysis is the narrative analysis returned with an upload. Both
// sources share one shape; Source tells them apart.
type MedicalAIAnalysis struct {
	Source          Source                   `json:"source" firestore:"source"`
	Model           string                   `json:"model,omitempty" firestore:"model,omitempty"`
	OverallScore    int                      `json:"overallScore" firestore:"overallScore"`
	RiskLevel       RiskLevel                `json:"riskLevel" firestore:"riskLevel"`
	Summary         string                   `json:"summary" firestore:"summary"`
	KeyFindings     []string                 `json:"keyFindings" firestore:"keyFindings"`
	Concerns        []string                 `json:"concerns" firestore:"concerns"`
	Recommendations []scoring.Recommendation `json:"recommendations" firestore:"recommendations"`
	CategoryScores  []scoring.CategoryScore  `json:"categoryScores" firestore:"categoryScores"`
	Predictions     *scoring.Predictions     `json:"predictions,omitempty" firestore:"predictions,omitempty"`
	Confidence      float64                  `json:"confidence" firestore:"confidence"`
	Disclaimer      string                   `json:"disclaimer" firestore:"disclaimer"`
	GeneratedAt     time.Time                `json:"generatedAt" firestore:"generatedAt"`
}

// IsAIGenerated reports whether a completion provider wrote the narrative.
func (a *MedicalAIAnalysis) IsAIGenerated() bool {
	return a != nil && a.Source == SourceAIGenerated
}

// riskFor maps an overall score to a risk level.
func riskFor(score int) RiskLevel {
	switch {
	case score >= 75:
		return RiskLow
	case score >= 60:
		return RiskModerate
	default:
		return RiskHigh
	}
}
