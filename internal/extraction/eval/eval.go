// Package eval provides an evaluation framework for comparing extraction
// strategies against ground-truth lab report fixtures.
package eval

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/medical"
)

// GroundTruth represents expected extraction output for a test fixture.
type GroundTruth struct {
	Name   string        `json:"name"`
	Format string        `json:"format"`
	Labs   []ExpectedLab `json:"labs"`
}

// ExpectedLab is a single expected lab value.
type ExpectedLab struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Status    string  `json:"status"`
}

// EvalResult holds metrics from running one strategy on one fixture.
type EvalResult struct {
	Strategy       string
	Fixture        string
	LabCount       CountMetrics
	ValueAccuracy  float64
	UnitAccuracy   float64
	StatusAccuracy float64
	NameSim        float64
	Confidence     float64
	OverallScore   float64
	Duration       time.Duration
	Error          string // non-empty if the strategy failed
}

// CountMetrics measures lab detection performance.
type CountMetrics struct {
	Expected  int
	Extracted int
	Matched   int
	Precision float64
	Recall    float64
	F1        float64
}

// labPair is a matched pair of extracted and ground-truth lab values.
type labPair struct {
	extracted medical.LabValue
	truth     ExpectedLab
}

// StrategyFunc is the signature for an extraction strategy.
type StrategyFunc func(ctx context.Context, filename, text string) (*medical.OmniExtractionResult, error)

// --- Metric Functions ---

// ComputeMetrics compares extracted lab values against ground truth.
func ComputeMetrics(
	strategy string,
	fixture string,
	extracted []medical.LabValue,
	truth *GroundTruth,
	duration time.Duration,
) *EvalResult {
	result := &EvalResult{
		Strategy: strategy,
		Fixture:  fixture,
		Duration: duration,
	}

	matched := matchLabs(extracted, truth.Labs)

	result.LabCount = CountMetrics{
		Expected:  len(truth.Labs),
		Extracted: len(extracted),
		Matched:   len(matched),
	}
	if len(extracted) > 0 {
		result.LabCount.Precision = float64(len(matched)) / float64(len(extracted))
	}
	if len(truth.Labs) > 0 {
		result.LabCount.Recall = float64(len(matched)) / float64(len(truth.Labs))
	}
	p := result.LabCount.Precision
	r := result.LabCount.Recall
	if p+r > 0 {
		result.LabCount.F1 = 2 * p * r / (p + r)
	}

	if len(matched) > 0 {
		var valueOK, unitOK, statusOK int
		var nameSimSum float64
		for _, pair := range matched {
			if valueMatch(pair.extracted.Value, pair.truth.Value) {
				valueOK++
			}
			if unitMatch(pair.extracted.Unit, pair.truth.Unit) {
				unitOK++
			}
			if strings.EqualFold(string(pair.extracted.Status), pair.truth.Status) {
				statusOK++
			}
			nameSimSum += nameSimilarity(pair.extracted.Parameter, pair.truth.Parameter)
		}
		n := float64(len(matched))
		result.ValueAccuracy = float64(valueOK) / n
		result.UnitAccuracy = float64(unitOK) / n
		result.StatusAccuracy = float64(statusOK) / n
		result.NameSim = nameSimSum / n
	}

	result.OverallScore = 0.35*result.LabCount.F1 +
		0.30*result.ValueAccuracy +
		0.15*result.StatusAccuracy +
		0.10*result.UnitAccuracy +
		0.10*result.NameSim

	return result
}

// matchLabs pairs each extracted lab with at most one ground-truth lab. A
// pair needs the same parameter; value agreement breaks ties.
func matchLabs(extracted []medical.LabValue, truth []ExpectedLab) []labPair {
	truthUsed := make([]bool, len(truth))
	var matched []labPair

	for _, ext := range extracted {
		bestIdx := -1
		bestScore := -1.0

		for j, tr := range truth {
			if truthUsed[j] || !sameParameter(ext.Parameter, tr.Parameter) {
				continue
			}
			score := 1.0
			if valueMatch(ext.Value, tr.Value) {
				score += 1.0
			}
			score += nameSimilarity(ext.Parameter, tr.Parameter) * 0.5
			if score > bestScore {
				bestScore = score
				bestIdx = j
			}
		}

		if bestIdx >= 0 {
			truthUsed[bestIdx] = true
			matched = append(matched, labPair{extracted: ext, truth: truth[bestIdx]})
		}
	}
	return matched
}

// sameParameter compares two names through the parameter vocabulary, and
// by spelling when either name is unknown.
func sameParameter(a, b string) bool {
	ia, okA := medical.Resolve(a)
	ib, okB := medical.Resolve(b)
	if okA && okB {
		return ia.ID == ib.ID
	}
	return medical.NormalizeName(a) == medical.NormalizeName(b)
}

// valueMatch returns true if values are within 0.01 or 1%.
func valueMatch(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= 0.01 {
		return true
	}
	return b != 0 && diff/math.Abs(b) < 0.01
}

func unitMatch(a, b string) bool {
	return strings.EqualFold(extraction.NormalizeUnit(a), extraction.NormalizeUnit(b))
}

// nameSimilarity returns a 0-1 similarity score using normalized Levenshtein distance.
func nameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}

	lenA := utf8.RuneCountInString(a)
	lenB := utf8.RuneCountInString(b)
	if lenA == 0 && lenB == 0 {
		return 1.0
	}

	dist := levenshtein(a, b)
	return 1.0 - float64(dist)/float64(max(lenA, lenB))
}

// levenshtein computes the Levenshtein edit distance between two strings.
func levenshtein(a, b string) int {
	runesA := []rune(a)
	runesB := []rune(b)
	la := len(runesA)
	lb := len(runesB)

	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if runesA[i-1] == runesB[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev = curr
	}

	return prev[lb]
}

// --- Strategies ---

// AutoStrategy classifies each fixture and extracts with the chosen format.
func AutoStrategy() StrategyFunc {
	extractor := extraction.NewExtractor()
	return func(_ context.Context, filename, text string) (*medical.OmniExtractionResult, error) {
		return extractor.Extract(text, extraction.Classify(filename, "", text)), nil
	}
}

// FixedStrategy skips classification and always extracts as format.
func FixedStrategy(format medical.Format) StrategyFunc {
	extractor := extraction.NewExtractor()
	return func(_ context.Context, _ string, text string) (*medical.OmniExtractionResult, error) {
		c := extraction.Classification{Format: format, DocumentType: extraction.DocTypeGeneralMedical, Confidence: 1}
		return extractor.Extract(text, c), nil
	}
}

// --- Runner ---

// RunEval executes all strategies against all fixtures and returns results.
func RunEval(
	ctx context.Context,
	strategies map[string]StrategyFunc,
	fixtures []*Fixture,
) []*EvalResult {
	var results []*EvalResult

	for _, fixture := range fixtures {
		for name, strategy := range strategies {
			start := time.Now()
			extracted, err := strategy(ctx, fixture.Name, fixture.Text)
			elapsed := time.Since(start)

			if err != nil {
				results = append(results, &EvalResult{
					Strategy: name,
					Fixture:  fixture.Name,
					Duration: elapsed,
					Error:    err.Error(),
				})
				continue
			}

			result := ComputeMetrics(name, fixture.Name, extracted.Data.LabValues, fixture.GroundTruth, elapsed)
			result.Confidence = extracted.Confidence
			results = append(results, result)
		}
	}

	return results
}

// --- Summary Printer ---

// PrintSummary outputs a formatted comparison table to an io.Writer.
func PrintSummary(w io.Writer, results []*EvalResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "Strategy\tFixture\tF1\tValue%\tUnit%\tStatus%\tName~\tConf\tScore\tTime\tMatch\tError")
	fmt.Fprintln(tw, "--------\t-------\t--\t------\t-----\t-------\t-----\t----\t-----\t----\t-----\t-----")

	for _, r := range results {
		errStr := ""
		if r.Error != "" {
			errStr = truncate(r.Error, 30)
		}

		matchStr := fmt.Sprintf("%d/%d", r.LabCount.Matched, r.LabCount.Expected)

		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.0f%%\t%.0f%%\t%.0f%%\t%.2f\t%.2f\t%.2f\t%s\t%s\t%s\n",
			r.Strategy,
			r.Fixture,
			r.LabCount.F1,
			r.ValueAccuracy*100,
			r.UnitAccuracy*100,
			r.StatusAccuracy*100,
			r.NameSim,
			r.Confidence,
			r.OverallScore,
			r.Duration.Round(time.Microsecond),
			matchStr,
			errStr,
		)
	}

	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Strategy Averages ===")

	strategyScores := make(map[string][]float64)
	strategyF1s := make(map[string][]float64)
	for _, r := range results {
		if r.Error == "" {
			strategyScores[r.Strategy] = append(strategyScores[r.Strategy], r.OverallScore)
			strategyF1s[r.Strategy] = append(strategyF1s[r.Strategy], r.LabCount.F1)
		}
	}

	if len(strategyScores) == 0 {
		fmt.Fprintln(w, "no successful runs")
		return
	}

	tw2 := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw2, "Strategy\tAvg Score\tAvg F1\tFixtures")
	fmt.Fprintln(tw2, "--------\t---------\t------\t--------")

	for strategy, scores := range strategyScores {
		fmt.Fprintf(tw2, "%s\t%.3f\t%.3f\t%d/%d\n",
			strategy, avg(scores), avg(strategyF1s[strategy]), len(scores), len(results)/len(strategyScores))
	}
	tw2.Flush()
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
