package analysis

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vitalis-health/vitalis/backend/internal/scoring"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var replySchema []byte

// aiReply is the part of a completion the model is allowed to author.
type aiReply struct {
	OverallScore    float64  `json:"overallScore"`
	RiskLevel       string   `json:"riskLevel"`
	Summary         string   `json:"summary"`
	KeyFindings     []string `json:"keyFindings"`
	Concerns        []string `json:"concerns"`
	Recommendations []struct {
		Category string `json:"category"`
		Priority string `json:"priority"`
		Text     string `json:"text"`
	} `json:"recommendations"`
	Confidence *float64 `json:"confidence"`
}

// replyValidator checks completion JSON against the embedded schema.
type replyValidator struct {
	schema *gojsonschema.Schema
}

func newReplyValidator() (*replyValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(replySchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply schema: %w", err)
	}
	return &replyValidator{schema: schema}, nil
}

func (v *replyValidator) validate(doc []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return fmt.Errorf("reply does not match schema: %s", strings.Join(problems, "; "))
	}
	return nil
}

// parseReply pulls the JSON object out of a completion, validates it, and
// converts it to an analysis. Provider tags the error.
func (v *replyValidator) parseReply(provider, text string) (*MedicalAIAnalysis, error) {
	doc, err := extractJSON(text)
	if err != nil {
		return nil, invalidResponse(provider, "no JSON object in completion", err)
	}
	if err := v.validate(doc); err != nil {
		return nil, invalidResponse(provider, "completion failed schema validation", err)
	}

	var reply aiReply
	if err := json.Unmarshal(doc, &reply); err != nil {
		return nil, invalidResponse(provider, "decode completion", err)
	}

	a := &MedicalAIAnalysis{
		Source:          SourceAIGenerated,
		OverallScore:    int(math.Round(reply.OverallScore)),
		RiskLevel:       RiskLevel(reply.RiskLevel),
		Summary:         strings.TrimSpace(reply.Summary),
		KeyFindings:     cleanList(reply.KeyFindings),
		Concerns:        cleanList(reply.Concerns),
		Recommendations: make([]scoring.Recommendation, 0, len(reply.Recommendations)),
		CategoryScores:  []scoring.CategoryScore{},
		Confidence:      0.8,
	}
	if reply.Confidence != nil {
		a.Confidence = *reply.Confidence
	}
	for _, r := range reply.Recommendations {
		rec := scoring.Recommendation{
			Category: r.Category,
			Priority: scoring.Priority(r.Priority),
			Text:     strings.TrimSpace(r.Text),
		}
		if rec.Category == "" {
			rec.Category = "general"
		}
		if rec.Priority == "" {
			rec.Priority = scoring.PriorityMedium
		}
		a.Recommendations = append(a.Recommendations, rec)
	}
	return a, nil
}

// extractJSON returns the first balanced JSON object in text. Code fences and
// surrounding prose are skipped, and braces inside strings are ignored.
func extractJSON(text string) ([]byte, error) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := objectEnd(text[start:]); end > 0 {
			candidate := text[start : start+end]
			if json.Valid([]byte(candidate)) {
				return []byte(candidate), nil
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += 1 + next
	}
	return nil, errors.New("no JSON object found in response")
}

// objectEnd returns the length of the balanced object at the start of s, or
// 0 when it never closes.
func objectEnd(s string) int {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return 0
}

func cleanList(s []string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
