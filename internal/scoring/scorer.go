// Package scoring turns extracted report data into weighted category health
// scores, an overall score, projections, and follow-up recommendations.
package scoring

import (
	"math"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

// Status buckets a 0-100 score.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusFair      Status = "fair"
	StatusPoor      Status = "poor"
)

// Trajectory is the projected direction of the overall score.
type Trajectory string

const (
	TrajectoryImproving Trajectory = "improving"
	TrajectoryStable    Trajectory = "stable"
	TrajectoryDeclining Trajectory = "declining"
)

// Priority of a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// DefaultAge is used for biological age when the report has no patient age.
const DefaultAge = 40

// CategoryScore is one weighted component of the overall score.
// DataAvailable is false when none of the category's parameters were present
// and the score is the category base.
type CategoryScore struct {
	Category      medical.ScoringCategory `json:"category" firestore:"category"`
	Score         int                     `json:"score" firestore:"score"`
	Weight        int                     `json:"weight" firestore:"weight"`
	Status        Status                  `json:"status" firestore:"status"`
	Impact        string                  `json:"impact" firestore:"impact"`
	Color         string                  `json:"color" firestore:"color"`
	DataAvailable bool                    `json:"dataAvailable" firestore:"dataAvailable"`
	Factors       []string                `json:"factors" firestore:"factors"`
}

// RiskProjection is a five-year risk estimate for one condition.
type RiskProjection struct {
	Condition   string                  `json:"condition" firestore:"condition"`
	Category    medical.ScoringCategory `json:"category" firestore:"category"`
	Probability float64                 `json:"probability" firestore:"probability"`
	Horizon     string                  `json:"horizon" firestore:"horizon"`
}

// Predictions are the score-derived projections.
type Predictions struct {
	CurrentAge        int              `json:"currentAge" firestore:"currentAge"`
	BiologicalAge     float64          `json:"biologicalAge" firestore:"biologicalAge"`
	Trajectory        Trajectory       `json:"trajectory" firestore:"trajectory"`
	ProjectedScore12m int              `json:"projectedScore12m" firestore:"projectedScore12m"`
	Risks             []RiskProjection `json:"risks" firestore:"risks"`
}

// Recommendation is a canned follow-up suggestion.
type Recommendation struct {
	Category string   `json:"category" firestore:"category"`
	Priority Priority `json:"priority" firestore:"priority"`
	Text     string   `json:"text" firestore:"text"`
}

// HealthReport is the full scorer output.
type HealthReport struct {
	OverallScore          int              `json:"overallScore" firestore:"overallScore"`
	Status                Status           `json:"status" firestore:"status"`
	Components            []CategoryScore  `json:"components" firestore:"components"`
	CholesterolPercentile *float64         `json:"cholesterolPercentile,omitempty" firestore:"cholesterolPercentile,omitempty"`
	Predictions           Predictions      `json:"predictions" firestore:"predictions"`
	Recommendations       []Recommendation `json:"recommendations" firestore:"recommendations"`
}

// Component returns the score for category.
func (r *HealthReport) Component(category medical.ScoringCategory) (CategoryScore, bool) {
	if r == nil {
		return CategoryScore{}, false
	}
	for _, c := range r.Components {
		if c.Category == category {
			return c, true
		}
	}
	return CategoryScore{}, false
}

// Scorer applies the fixed category rules. It holds no per-call state and is
// safe for concurrent use.
type Scorer struct {
	categories []categorySpec
}

// NewScorer returns a scorer with the standard categories.
func NewScorer() *Scorer {
	return &Scorer{categories: standardCategories}
}

// Score computes the health report for data. A nil record scores as empty.
func (s *Scorer) Score(data *medical.ExtractedMedicalData) *HealthReport {
	if data == nil {
		data = medical.NewExtractedMedicalData()
	}
	readings := collectReadings(data)

	components := make([]CategoryScore, 0, len(s.categories))
	for _, spec := range s.categories {
		components = append(components, spec.score(readings))
	}

	overall := aggregate(components)
	report := &HealthReport{
		OverallScore: overall,
		Status:       statusFor(overall),
		Components:   components,
	}
	if tc, ok := readings[medical.ParamTotalCholesterol]; ok && acceptsUnit(medical.ParamTotalCholesterol, tc.unit) {
		p := cholesterolPercentile(tc.value)
		report.CholesterolPercentile = &p
	}
	report.Predictions = predict(overall, patientAge(data), components)
	report.Recommendations = recommend(components)
	return report
}

// collectReadings picks the first lab value per parameter, then fills blood
// pressure from vital signs when the report did not list it as a lab.
func collectReadings(data *medical.ExtractedMedicalData) map[medical.ParameterID]reading {
	readings := make(map[medical.ParameterID]reading)
	for _, lv := range data.LabValues {
		if lv.ParameterID == "" {
			continue
		}
		if _, seen := readings[lv.ParameterID]; seen {
			continue
		}
		rd := reading{value: lv.Value, unit: lv.Unit}
		if rng, ok := medical.ParseRange(lv.NormalRange); ok {
			rd.labRange = &rng
		}
		readings[lv.ParameterID] = rd
	}
	if vs := data.VitalSigns; vs != nil && vs.BloodPressure != nil {
		if _, ok := readings[medical.ParamSystolicBP]; !ok {
			readings[medical.ParamSystolicBP] = reading{value: vs.BloodPressure.Systolic}
		}
		if _, ok := readings[medical.ParamDiastolicBP]; !ok {
			readings[medical.ParamDiastolicBP] = reading{value: vs.BloodPressure.Diastolic}
		}
	}
	return readings
}

// aggregate is the weight-averaged score, clamped and rounded.
func aggregate(components []CategoryScore) int {
	var sum, weights float64
	for _, c := range components {
		sum += float64(c.Score * c.Weight)
		weights += float64(c.Weight)
	}
	if weights == 0 {
		return 0
	}
	return clampScore(int(math.Round(sum / weights)))
}

func clampScore(v int) int {
	return max(0, min(100, v))
}

func statusFor(score int) Status {
	switch {
	case score >= 90:
		return StatusExcellent
	case score >= 75:
		return StatusGood
	case score >= 60:
		return StatusFair
	default:
		return StatusPoor
	}
}

var statusColors = map[Status]string{
	StatusExcellent: "#10b981",
	StatusGood:      "#3b82f6",
	StatusFair:      "#f59e0b",
	StatusPoor:      "#ef4444",
}

var statusImpact = map[Status]string{
	StatusExcellent: "Optimal range, keep up current habits",
	StatusGood:      "Within healthy limits",
	StatusFair:      "Some markers need attention",
	StatusPoor:      "Requires medical follow-up",
}

// cholesterolPercentile places total cholesterol on a normal distribution
// with mean 200 and standard deviation 40.
func cholesterolPercentile(x float64) float64 {
	return round1(50 * (1 + math.Erf((x-200)/(40*math.Sqrt2))))
}

func patientAge(data *medical.ExtractedMedicalData) int {
	if data.PatientInfo != nil && data.PatientInfo.Age != nil && *data.PatientInfo.Age > 0 {
		return *data.PatientInfo.Age
	}
	return DefaultAge
}

var riskConditions = []struct {
	condition string
	category  medical.ScoringCategory
}{
	{"Cardiovascular disease", medical.CategoryCardiovascular},
	{"Type 2 diabetes", medical.CategoryMetabolic},
	{"Chronic kidney disease", medical.CategoryKidney},
	{"Fatty liver disease", medical.CategoryLiver},
}

func predict(overall, age int, components []CategoryScore) Predictions {
	p := Predictions{
		CurrentAge:        age,
		BiologicalAge:     round1(float64(age) - float64(overall-75)*0.2),
		ProjectedScore12m: clampScore(int(math.Round(float64(overall) + float64(overall-70)*0.1))),
	}
	switch {
	case overall >= 80:
		p.Trajectory = TrajectoryImproving
	case overall >= 60:
		p.Trajectory = TrajectoryStable
	default:
		p.Trajectory = TrajectoryDeclining
	}

	scores := make(map[medical.ScoringCategory]int, len(components))
	for _, c := range components {
		scores[c.Category] = c.Score
	}
	p.Risks = make([]RiskProjection, 0, len(riskConditions))
	for _, rc := range riskConditions {
		prob := math.Max(2, math.Min(95, float64(100-scores[rc.category])*0.6))
		p.Risks = append(p.Risks, RiskProjection{
			Condition:   rc.condition,
			Category:    rc.category,
			Probability: round1(prob),
			Horizon:     "5 years",
		})
	}
	return p
}

var categoryAdvice = map[medical.ScoringCategory]string{
	medical.CategoryCardiovascular: "Review lipid levels and blood pressure with your physician; limit saturated fat and aim for 150 minutes of aerobic activity per week.",
	medical.CategoryMetabolic:      "Discuss blood sugar control with your physician; reduce refined carbohydrates and recheck HbA1c in three months.",
	medical.CategoryKidney:         "Stay well hydrated, avoid routine NSAID use, and repeat kidney function tests.",
	medical.CategoryLiver:          "Limit alcohol and review medications that affect the liver; repeat liver enzymes in six to eight weeks.",
	medical.CategoryInflammation:   "Elevated inflammation markers warrant a physician review to look for infection or chronic inflammation.",
	medical.CategoryNutrition:      "Consider dietary changes or supplementation for low vitamin, iron, or hemoglobin levels after consulting your physician.",
	medical.CategoryHormonal:       "Thyroid values are outside the reference range; schedule an endocrinology follow-up.",
}

const maintenanceAdvice = "Maintain current diet and activity levels and repeat routine screening annually."

func recommend(components []CategoryScore) []Recommendation {
	recs := []Recommendation{}
	for _, c := range components {
		var priority Priority
		switch c.Status {
		case StatusPoor:
			priority = PriorityHigh
		case StatusFair:
			priority = PriorityMedium
		default:
			continue
		}
		recs = append(recs, Recommendation{
			Category: string(c.Category),
			Priority: priority,
			Text:     categoryAdvice[c.Category],
		})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{Category: "general", Priority: PriorityLow, Text: maintenanceAdvice})
	}
	return recs
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
