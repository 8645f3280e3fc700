package scoring

import (
	"fmt"
	"strconv"

	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

// reading is the value a rule judges, with the reporting lab's own reference
// interval when the line printed one.
type reading struct {
	value    float64
	unit     string
	labRange *medical.ReferenceRange
}

// tier is one threshold of a parameter rule. The first matching tier wins.
type tier struct {
	match   func(r reading) bool
	penalty int
	reason  func(r reading) string
}

type rule struct {
	param medical.ParameterID
	tiers []tier
}

type categorySpec struct {
	category medical.ScoringCategory
	weight   int
	base     int
	rules    []rule
}

func fixed(reason string) func(reading) string {
	return func(reading) string { return reason }
}

func above(limit float64, penalty int) tier {
	return tier{func(r reading) bool { return r.value > limit }, penalty, fixed("above " + formatNumber(limit))}
}

func atLeast(limit float64, penalty int) tier {
	return tier{func(r reading) bool { return r.value >= limit }, penalty, fixed("at or above " + formatNumber(limit))}
}

func below(limit float64, penalty int) tier {
	return tier{func(r reading) bool { return r.value < limit }, penalty, fixed("below " + formatNumber(limit))}
}

// outsideReferenceRange prefers the lab's printed interval and falls back to
// the parameter's default one.
func outsideReferenceRange(id medical.ParameterID, penalty int) tier {
	var fallback medical.ReferenceRange
	if info, ok := medical.Lookup(id); ok {
		fallback = info.Range
	}
	pick := func(r reading) medical.ReferenceRange {
		if r.labRange != nil {
			return *r.labRange
		}
		return fallback
	}
	return tier{
		match: func(r reading) bool {
			rng := pick(r)
			return !rng.IsZero() && !rng.Contains(r.value)
		},
		penalty: penalty,
		reason:  func(r reading) string { return "outside " + pick(r).String() },
	}
}

var standardCategories = []categorySpec{
	{
		category: medical.CategoryCardiovascular, weight: 25, base: 85,
		rules: []rule{
			{medical.ParamTotalCholesterol, []tier{above(240, 20), above(200, 10)}},
			{medical.ParamLDL, []tier{above(160, 20), above(130, 10)}},
			{medical.ParamHDL, []tier{below(40, 15)}},
			{medical.ParamTriglycerides, []tier{above(200, 15), above(150, 8)}},
			{medical.ParamSystolicBP, []tier{atLeast(140, 15), atLeast(130, 8)}},
			{medical.ParamDiastolicBP, []tier{atLeast(90, 10), atLeast(80, 5)}},
		},
	},
	{
		category: medical.CategoryMetabolic, weight: 20, base: 90,
		rules: []rule{
			{medical.ParamGlucose, []tier{above(125, 25), above(100, 10), below(70, 10)}},
			{medical.ParamHbA1c, []tier{atLeast(6.5, 25), atLeast(5.7, 10)}},
		},
	},
	{
		category: medical.CategoryKidney, weight: 15, base: 90,
		rules: []rule{
			{medical.ParamCreatinine, []tier{above(1.3, 20)}},
			{medical.ParamBUN, []tier{above(20, 10)}},
			{medical.ParamEGFR, []tier{below(60, 25), below(90, 10)}},
			{medical.ParamUricAcid, []tier{above(7, 8)}},
		},
	},
	{
		category: medical.CategoryLiver, weight: 15, base: 90,
		rules: []rule{
			{medical.ParamALT, []tier{above(56, 15)}},
			{medical.ParamAST, []tier{above(40, 15)}},
			{medical.ParamALP, []tier{above(147, 10)}},
			{medical.ParamBilirubin, []tier{above(1.2, 10)}},
			{medical.ParamAlbumin, []tier{below(3.5, 10)}},
		},
	},
	{
		category: medical.CategoryInflammation, weight: 10, base: 85,
		rules: []rule{
			{medical.ParamCRP, []tier{above(10, 25), above(3, 12)}},
			{medical.ParamESR, []tier{above(20, 10)}},
			{medical.ParamWBC, []tier{above(11, 10), below(4, 10)}},
		},
	},
	{
		category: medical.CategoryNutrition, weight: 10, base: 85,
		rules: []rule{
			{medical.ParamVitaminD, []tier{below(20, 20), below(30, 10)}},
			{medical.ParamVitaminB12, []tier{below(200, 15)}},
			{medical.ParamHemoglobin, []tier{below(12, 15)}},
			{medical.ParamFerritin, []tier{below(15, 10)}},
			{medical.ParamIron, []tier{below(60, 8)}},
		},
	},
	{
		category: medical.CategoryHormonal, weight: 5, base: 90,
		rules: []rule{
			{medical.ParamTSH, []tier{above(4.5, 20), below(0.4, 20)}},
			{medical.ParamT4, []tier{outsideReferenceRange(medical.ParamT4, 10)}},
			{medical.ParamFreeT4, []tier{outsideReferenceRange(medical.ParamFreeT4, 10)}},
		},
	},
}

func (spec categorySpec) score(readings map[medical.ParameterID]reading) CategoryScore {
	score := spec.base
	factors := []string{}
	available := false

	for _, r := range spec.rules {
		rd, ok := readings[r.param]
		if !ok {
			continue
		}
		available = true
		tiers := r.tiers
		if !acceptsUnit(r.param, rd.unit) {
			// Fixed thresholds assume the default unit; only the lab's own
			// interval can judge a value reported in another one.
			tiers = nil
			if rd.labRange != nil {
				tiers = []tier{outsideLabRange(mildest(r.tiers))}
			}
		}
		for _, t := range tiers {
			if t.match(rd) {
				score -= t.penalty
				factors = append(factors, fmt.Sprintf("%s %s %s (-%d)", displayName(r.param), formatNumber(rd.value), t.reason(rd), t.penalty))
				break
			}
		}
	}

	score = clampScore(score)
	status := statusFor(score)
	return CategoryScore{
		Category:      spec.category,
		Score:         score,
		Weight:        spec.weight,
		Status:        status,
		Impact:        statusImpact[status],
		Color:         statusColors[status],
		DataAvailable: available,
		Factors:       factors,
	}
}

func outsideLabRange(penalty int) tier {
	return tier{
		match:   func(r reading) bool { return r.labRange != nil && !r.labRange.Contains(r.value) },
		penalty: penalty,
		reason:  func(r reading) string { return "outside " + r.labRange.String() },
	}
}

func mildest(tiers []tier) int {
	p := 0
	for i, t := range tiers {
		if i == 0 || t.penalty < p {
			p = t.penalty
		}
	}
	return p
}

func acceptsUnit(id medical.ParameterID, unit string) bool {
	info, ok := medical.Lookup(id)
	return !ok || info.AcceptsUnit(unit)
}

func displayName(id medical.ParameterID) string {
	if info, ok := medical.Lookup(id); ok {
		return info.DisplayName
	}
	return string(id)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
