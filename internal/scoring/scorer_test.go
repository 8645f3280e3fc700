package scoring

import (
	"math"
	"testing"

	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

func labs(pairs ...any) *medical.ExtractedMedicalData {
	data := medical.NewExtractedMedicalData()
	for i := 0; i+1 < len(pairs); i += 2 {
		data.LabValues = append(data.LabValues, medical.LabValue{
			ParameterID: pairs[i].(medical.ParameterID),
			Value:       pairs[i+1].(float64),
		})
	}
	return data
}

func component(t *testing.T, r *HealthReport, c medical.ScoringCategory) CategoryScore {
	t.Helper()
	cs, ok := r.Component(c)
	if !ok {
		t.Fatalf("no %s component", c)
	}
	return cs
}

func TestScore_EmptyKeepsBaseScores(t *testing.T) {
	for _, data := range []*medical.ExtractedMedicalData{nil, medical.NewExtractedMedicalData()} {
		r := NewScorer().Score(data)

		wantBase := map[medical.ScoringCategory]int{
			medical.CategoryCardiovascular: 85,
			medical.CategoryMetabolic:      90,
			medical.CategoryKidney:         90,
			medical.CategoryLiver:          90,
			medical.CategoryInflammation:   85,
			medical.CategoryNutrition:      85,
			medical.CategoryHormonal:       90,
		}
		if len(r.Components) != len(wantBase) {
			t.Fatalf("got %d components, want %d", len(r.Components), len(wantBase))
		}
		for _, c := range r.Components {
			if c.Score != wantBase[c.Category] {
				t.Errorf("%s score = %d, want %d", c.Category, c.Score, wantBase[c.Category])
			}
			if c.DataAvailable {
				t.Errorf("%s DataAvailable = true on empty data", c.Category)
			}
			if c.Factors == nil {
				t.Errorf("%s Factors is nil", c.Category)
			}
		}
		if r.OverallScore != 88 {
			t.Errorf("OverallScore = %d, want 88", r.OverallScore)
		}
		if r.Status != StatusGood {
			t.Errorf("Status = %s, want good", r.Status)
		}
		if r.CholesterolPercentile != nil {
			t.Errorf("CholesterolPercentile = %v, want nil", *r.CholesterolPercentile)
		}
		if len(r.Recommendations) != 1 || r.Recommendations[0].Category != "general" || r.Recommendations[0].Priority != PriorityLow {
			t.Errorf("Recommendations = %+v, want single maintenance entry", r.Recommendations)
		}
	}
}

func TestScore_PenaltyTiers(t *testing.T) {
	tests := []struct {
		name     string
		data     *medical.ExtractedMedicalData
		category medical.ScoringCategory
		want     int
	}{
		{"glucose high", labs(medical.ParamGlucose, 250.0), medical.CategoryMetabolic, 65},
		{"glucose prediabetic", labs(medical.ParamGlucose, 110.0), medical.CategoryMetabolic, 80},
		{"glucose low", labs(medical.ParamGlucose, 60.0), medical.CategoryMetabolic, 80},
		{"glucose normal", labs(medical.ParamGlucose, 90.0), medical.CategoryMetabolic, 90},
		{"hba1c boundary", labs(medical.ParamHbA1c, 6.5), medical.CategoryMetabolic, 65},
		{"only first ldl tier", labs(medical.ParamLDL, 170.0), medical.CategoryCardiovascular, 65},
		{"ldl second tier", labs(medical.ParamLDL, 140.0), medical.CategoryCardiovascular, 75},
		{"low hdl", labs(medical.ParamHDL, 35.0), medical.CategoryCardiovascular, 70},
		{"egfr moderate", labs(medical.ParamEGFR, 72.0), medical.CategoryKidney, 80},
		{"egfr severe", labs(medical.ParamEGFR, 45.0), medical.CategoryKidney, 65},
		{"liver enzymes", labs(medical.ParamALT, 80.0, medical.ParamAST, 60.0), medical.CategoryLiver, 60},
		{"crp high", labs(medical.ParamCRP, 12.0), medical.CategoryInflammation, 60},
		{"low wbc", labs(medical.ParamWBC, 3.0), medical.CategoryInflammation, 75},
		{"vitamin d deficient", labs(medical.ParamVitaminD, 15.0), medical.CategoryNutrition, 65},
		{"low tsh", labs(medical.ParamTSH, 0.2), medical.CategoryHormonal, 70},
		{"t4 outside catalog range", labs(medical.ParamT4, 13.0), medical.CategoryHormonal, 80},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewScorer().Score(tc.data)
			cs := component(t, r, tc.category)
			if cs.Score != tc.want {
				t.Errorf("score = %d, want %d (factors %q)", cs.Score, tc.want, cs.Factors)
			}
			if !cs.DataAvailable {
				t.Error("DataAvailable = false, want true")
			}
		})
	}
}

func TestScore_FactorText(t *testing.T) {
	r := NewScorer().Score(labs(medical.ParamGlucose, 250.0))
	cs := component(t, r, medical.CategoryMetabolic)
	if len(cs.Factors) != 1 || cs.Factors[0] != "Glucose 250 above 125 (-25)" {
		t.Errorf("Factors = %q", cs.Factors)
	}
}

func TestScore_GlucoseFromExtraction(t *testing.T) {
	extractor := extraction.NewExtractor()
	score := func(text string) *HealthReport {
		res := extractor.Extract(text, extraction.Classify("", "", text))
		return NewScorer().Score(res.Data)
	}

	high := score("Glucose: 250 mg/dL (Normal: 70-100)")
	normal := score("Glucose: 90 mg/dL (Normal: 70-100)")

	hi := component(t, high, medical.CategoryMetabolic)
	lo := component(t, normal, medical.CategoryMetabolic)
	if hi.Score >= lo.Score {
		t.Errorf("metabolic score with glucose 250 = %d, want below %d", hi.Score, lo.Score)
	}
	if high.OverallScore != 83 {
		t.Errorf("OverallScore = %d, want 83", high.OverallScore)
	}
}

func TestScore_ThyroidUsesLabRange(t *testing.T) {
	extractor := extraction.NewExtractor()
	text := "Free T4: 1.2 ng/dL (Normal: 0.8-1.8)\nTSH: 2.1 mIU/L (Normal: 0.4-4.5)"
	res := extractor.Extract(text, extraction.Classify("", "", text))

	if len(res.Data.LabValues) != 2 || res.Data.LabValues[0].ParameterID != medical.ParamFreeT4 {
		t.Fatalf("LabValues = %+v, want free_t4 then tsh", res.Data.LabValues)
	}
	cs := component(t, NewScorer().Score(res.Data), medical.CategoryHormonal)
	if cs.Score != 90 || len(cs.Factors) != 0 {
		t.Errorf("hormonal score = %d factors %q, want 90 with none", cs.Score, cs.Factors)
	}

	// A total T4 inside the printed interval is not judged by the default one.
	data := medical.NewExtractedMedicalData()
	data.LabValues = append(data.LabValues, medical.LabValue{ParameterID: medical.ParamT4, Value: 13, Unit: "ug/dL", NormalRange: "5-14"})
	if cs := component(t, NewScorer().Score(data), medical.CategoryHormonal); cs.Score != 90 {
		t.Errorf("t4 inside lab range score = %d, want 90", cs.Score)
	}

	data.LabValues[0].Value = 15
	cs = component(t, NewScorer().Score(data), medical.CategoryHormonal)
	if cs.Score != 80 || len(cs.Factors) != 1 || cs.Factors[0] != "Total T4 15 outside 5-14 (-10)" {
		t.Errorf("t4 outside lab range score = %d factors %q", cs.Score, cs.Factors)
	}
}

func TestScore_ForeignUnits(t *testing.T) {
	extractor := extraction.NewExtractor()
	text := "Glucose: 5.4 mmol/L"
	res := extractor.Extract(text, extraction.Classify("", "", text))
	if len(res.Data.LabValues) != 1 {
		t.Fatalf("LabValues = %+v", res.Data.LabValues)
	}
	lv := res.Data.LabValues[0]
	if lv.Flagged || lv.NormalRange != "" {
		t.Errorf("lab = %+v, want unflagged with no default range", lv)
	}

	cs := component(t, NewScorer().Score(res.Data), medical.CategoryMetabolic)
	if cs.Score != 90 || !cs.DataAvailable {
		t.Errorf("metabolic score = %d available %v, want 90 true", cs.Score, cs.DataAvailable)
	}

	// With a printed interval the value is judged against it at the mildest tier.
	data := medical.NewExtractedMedicalData()
	data.LabValues = append(data.LabValues, medical.LabValue{ParameterID: medical.ParamGlucose, Value: 9.1, Unit: "mmol/L", NormalRange: "3.9-5.6"})
	cs = component(t, NewScorer().Score(data), medical.CategoryMetabolic)
	if cs.Score != 80 || len(cs.Factors) != 1 || cs.Factors[0] != "Glucose 9.1 outside 3.9-5.6 (-10)" {
		t.Errorf("score = %d factors %q, want 80 with lab-range factor", cs.Score, cs.Factors)
	}

	// IU/L and U/L share a scale.
	data = labs(medical.ParamALT, 80.0)
	data.LabValues[0].Unit = "IU/L"
	if cs := component(t, NewScorer().Score(data), medical.CategoryLiver); cs.Score != 75 {
		t.Errorf("liver score with IU/L = %d, want 75", cs.Score)
	}
}

func TestScore_BloodPressureFromVitals(t *testing.T) {
	data := medical.NewExtractedMedicalData()
	data.VitalSigns = &medical.VitalSigns{BloodPressure: &medical.BloodPressure{Systolic: 150, Diastolic: 95}}

	cs := component(t, NewScorer().Score(data), medical.CategoryCardiovascular)
	if cs.Score != 60 {
		t.Errorf("score = %d, want 60", cs.Score)
	}
	if cs.Status != StatusFair {
		t.Errorf("status = %s, want fair", cs.Status)
	}

	// A systolic lab value wins over the vitals reading.
	data.LabValues = append(data.LabValues, medical.LabValue{ParameterID: medical.ParamSystolicBP, Value: 118})
	cs = component(t, NewScorer().Score(data), medical.CategoryCardiovascular)
	if cs.Score != 75 {
		t.Errorf("score with systolic lab = %d, want 75", cs.Score)
	}
}

func TestScore_UnresolvedLabsIgnored(t *testing.T) {
	data := medical.NewExtractedMedicalData()
	data.LabValues = append(data.LabValues, medical.LabValue{Parameter: "Mystery Marker", Value: 9999})

	r := NewScorer().Score(data)
	if r.OverallScore != 88 {
		t.Errorf("OverallScore = %d, want 88", r.OverallScore)
	}
}

func TestScore_FirstLabPerParameterWins(t *testing.T) {
	r := NewScorer().Score(labs(medical.ParamGlucose, 90.0, medical.ParamGlucose, 250.0))
	if cs := component(t, r, medical.CategoryMetabolic); cs.Score != 90 {
		t.Errorf("score = %d, want 90", cs.Score)
	}
}

func TestScore_ClampsCategoryAtZero(t *testing.T) {
	data := labs(
		medical.ParamTotalCholesterol, 300.0,
		medical.ParamLDL, 200.0,
		medical.ParamHDL, 30.0,
		medical.ParamTriglycerides, 300.0,
		medical.ParamSystolicBP, 160.0,
		medical.ParamDiastolicBP, 100.0,
	)
	r := NewScorer().Score(data)
	cs := component(t, r, medical.CategoryCardiovascular)
	if cs.Score != 0 {
		t.Errorf("score = %d, want 0", cs.Score)
	}
	if cs.Status != StatusPoor || cs.Color != statusColors[StatusPoor] {
		t.Errorf("status = %s color = %s", cs.Status, cs.Color)
	}
	if len(cs.Factors) != 6 {
		t.Errorf("got %d factors, want 6", len(cs.Factors))
	}
	if r.OverallScore < 0 || r.OverallScore > 100 {
		t.Errorf("OverallScore = %d out of range", r.OverallScore)
	}

	var found bool
	for _, rec := range r.Recommendations {
		if rec.Category == string(medical.CategoryCardiovascular) {
			found = true
			if rec.Priority != PriorityHigh {
				t.Errorf("priority = %s, want high", rec.Priority)
			}
		}
	}
	if !found {
		t.Error("no cardiovascular recommendation for a poor score")
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name       string
		components []CategoryScore
		want       int
	}{
		{"none", nil, 0},
		{"all zero", []CategoryScore{{Score: 0, Weight: 25}, {Score: 0, Weight: 75}}, 0},
		{"weighted", []CategoryScore{{Score: 100, Weight: 25}, {Score: 60, Weight: 75}}, 70},
		{"rounds half up", []CategoryScore{{Score: 87, Weight: 1}, {Score: 88, Weight: 1}}, 88},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := aggregate(tc.components); got != tc.want {
				t.Errorf("aggregate() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		score int
		want  Status
	}{
		{100, StatusExcellent},
		{90, StatusExcellent},
		{89, StatusGood},
		{75, StatusGood},
		{74, StatusFair},
		{60, StatusFair},
		{59, StatusPoor},
		{0, StatusPoor},
	}
	for _, tc := range tests {
		if got := statusFor(tc.score); got != tc.want {
			t.Errorf("statusFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestCholesterolPercentile(t *testing.T) {
	tests := []struct {
		x, want float64
	}{
		{200, 50},
		{240, 84.1},
		{160, 15.9},
	}
	for _, tc := range tests {
		if got := cholesterolPercentile(tc.x); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("cholesterolPercentile(%v) = %v, want %v", tc.x, got, tc.want)
		}
	}

	r := NewScorer().Score(labs(medical.ParamTotalCholesterol, 240.0))
	if r.CholesterolPercentile == nil || *r.CholesterolPercentile != 84.1 {
		t.Errorf("CholesterolPercentile = %v", r.CholesterolPercentile)
	}
}

func TestPredictions(t *testing.T) {
	t.Run("default age", func(t *testing.T) {
		p := NewScorer().Score(nil).Predictions
		if p.CurrentAge != DefaultAge {
			t.Errorf("CurrentAge = %d, want %d", p.CurrentAge, DefaultAge)
		}
		if p.BiologicalAge != 37.4 {
			t.Errorf("BiologicalAge = %v, want 37.4", p.BiologicalAge)
		}
		if p.Trajectory != TrajectoryImproving {
			t.Errorf("Trajectory = %s, want improving", p.Trajectory)
		}
		if p.ProjectedScore12m != 90 {
			t.Errorf("ProjectedScore12m = %d, want 90", p.ProjectedScore12m)
		}
		if len(p.Risks) != 4 {
			t.Fatalf("got %d risks, want 4", len(p.Risks))
		}
		if p.Risks[0].Probability != 9 || p.Risks[1].Probability != 6 {
			t.Errorf("risks = %+v", p.Risks)
		}
	})

	t.Run("patient age", func(t *testing.T) {
		data := medical.NewExtractedMedicalData()
		age := 52
		data.PatientInfo = &medical.PatientInfo{Age: &age}
		p := NewScorer().Score(data).Predictions
		if p.CurrentAge != 52 || p.BiologicalAge != 49.4 {
			t.Errorf("CurrentAge = %d BiologicalAge = %v", p.CurrentAge, p.BiologicalAge)
		}
	})

	t.Run("stable and declining", func(t *testing.T) {
		p := predict(60, 52, nil)
		if p.Trajectory != TrajectoryStable || p.BiologicalAge != 55 || p.ProjectedScore12m != 59 {
			t.Errorf("predict(60) = %+v", p)
		}
		p = predict(40, 52, nil)
		if p.Trajectory != TrajectoryDeclining || p.ProjectedScore12m != 37 {
			t.Errorf("predict(40) = %+v", p)
		}
	})

	t.Run("risk bounds", func(t *testing.T) {
		p := predict(50, 40, []CategoryScore{
			{Category: medical.CategoryCardiovascular, Score: 100},
			{Category: medical.CategoryMetabolic, Score: 0},
		})
		if p.Risks[0].Probability != 2 {
			t.Errorf("cardiovascular risk = %v, want floor 2", p.Risks[0].Probability)
		}
		if p.Risks[1].Probability != 60 {
			t.Errorf("diabetes risk = %v, want 60", p.Risks[1].Probability)
		}
	})
}

func TestScore_Deterministic(t *testing.T) {
	data := labs(medical.ParamGlucose, 130.0, medical.ParamLDL, 150.0, medical.ParamVitaminD, 25.0)
	a := NewScorer().Score(data)
	b := NewScorer().Score(data)
	if a.OverallScore != b.OverallScore || len(a.Recommendations) != len(b.Recommendations) {
		t.Errorf("scores differ: %d vs %d", a.OverallScore, b.OverallScore)
	}
	for i := range a.Components {
		if a.Components[i].Score != b.Components[i].Score {
			t.Errorf("component %d differs", i)
		}
	}
}
