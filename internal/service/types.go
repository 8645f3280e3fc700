package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"github.com/vitalis-health/vitalis/backend/internal/medical"
	"github.com/vitalis-health/vitalis/backend/internal/scoring"
	"github.com/vitalis-health/vitalis/backend/internal/search"
	"github.com/vitalis-health/vitalis/backend/internal/store"
)

// Mode selects how much of the pipeline runs.
type Mode string

const (
	// ModeFull extracts, scores, and analyzes.
	ModeFull Mode = "full"
	// ModeExtract stops after scoring; the response has no analysis.
	ModeExtract Mode = "extract"
)

var (
	ErrInvalidMode = errors.New("mode must be full or extract")
	// ErrArchiveDisabled is returned by report reads when no store is configured.
	ErrArchiveDisabled = errors.New("report archive is not configured")
	// ErrSearchDisabled is returned when no search index is configured.
	ErrSearchDisabled = errors.New("report search is not configured")
)

// ParseMode accepts "", "full", and "extract". Empty means full.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeExtract:
		return ModeExtract, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidMode, s)
}

// UploadRequest is one document submitted for analysis.
type UploadRequest struct {
	UserID      string
	Filename    string
	ContentType string
	Data        []byte
	Mode        Mode
}

// ExtractionSummary is the extraction metadata returned alongside the data.
type ExtractionSummary struct {
	Format        medical.Format              `json:"format"`
	DocumentType  string                      `json:"documentType"`
	ParsingMethod string                      `json:"parsingMethod"`
	Confidence    float64                     `json:"confidence"`
	Findings      []medical.Finding           `json:"findings"`
	Traceability  []medical.TraceabilityEntry `json:"traceability"`
	Warnings      []string                    `json:"warnings,omitempty"`
}

func summarize(ext *medical.OmniExtractionResult) *ExtractionSummary {
	return &ExtractionSummary{
		Format:        ext.Format,
		DocumentType:  ext.DocumentType,
		ParsingMethod: ext.ParsingMethod,
		Confidence:    ext.Confidence,
		Findings:      ext.Findings,
		Traceability:  ext.Traceability,
		Warnings:      ext.Warnings,
	}
}

// UploadResponse is the envelope for upload results and upload errors.
type UploadResponse struct {
	Success       bool                          `json:"success"`
	ReportID      string                        `json:"reportId,omitempty"`
	Analysis      *analysis.MedicalAIAnalysis   `json:"analysis,omitempty"`
	ExtractedData *medical.ExtractedMedicalData `json:"extractedData,omitempty"`
	Extraction    *ExtractionSummary            `json:"extraction,omitempty"`
	HealthScore   *scoring.HealthReport         `json:"healthScore,omitempty"`
	Warnings      []string                      `json:"warnings,omitempty"`
	Error         string                        `json:"error,omitempty"`
	ErrorCode     string                        `json:"errorCode,omitempty"`
}

// ReportSummary is a list entry for an archived report.
type ReportSummary struct {
	ID           string             `json:"id"`
	Filename     string             `json:"filename"`
	Format       medical.Format     `json:"format"`
	DocumentType string             `json:"documentType"`
	OverallScore int                `json:"overallScore"`
	RiskLevel    analysis.RiskLevel `json:"riskLevel,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func summarizeReport(r *store.Report) ReportSummary {
	s := ReportSummary{
		ID:           r.ID,
		Filename:     r.Filename,
		Format:       r.Format,
		DocumentType: r.DocumentType,
		CreatedAt:    r.CreatedAt,
	}
	if r.HealthScore != nil {
		s.OverallScore = r.HealthScore.OverallScore
	}
	if r.Analysis != nil {
		s.RiskLevel = r.Analysis.RiskLevel
	}
	return s
}

// ListReportsResponse is a page of the caller's reports.
type ListReportsResponse struct {
	Success       bool            `json:"success"`
	Reports       []ReportSummary `json:"reports"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

// GetReportResponse wraps one archived report.
type GetReportResponse struct {
	Success bool          `json:"success"`
	Report  *store.Report `json:"report"`
}

// DeleteReportResponse reports a deletion; cleanup failures become warnings.
type DeleteReportResponse struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings,omitempty"`
}

// SearchReportsResponse wraps search results.
type SearchReportsResponse struct {
	Success bool `json:"success"`
	*search.SearchResponse
}
