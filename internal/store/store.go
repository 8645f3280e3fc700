package store

import (
	"context"
	"encoding/base64"
	"errors"
	"path"
	"time"

	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"github.com/vitalis-health/vitalis/backend/internal/medical"
	"github.com/vitalis-health/vitalis/backend/internal/scoring"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=store

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 20

// MaxPageSize caps list requests.
const MaxPageSize = 100

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("report not found")

// Report is an archived analysis of one uploaded document.
type Report struct {
	ID           string                        `json:"id" firestore:"id"`
	UserID       string                        `json:"userId" firestore:"userId"`
	Filename     string                        `json:"filename" firestore:"filename"`
	ContentType  string                        `json:"contentType" firestore:"contentType"`
	Format       medical.Format                `json:"format" firestore:"format"`
	DocumentType string                        `json:"documentType" firestore:"documentType"`
	Extraction   *medical.OmniExtractionResult `json:"extraction" firestore:"extraction"`
	HealthScore  *scoring.HealthReport         `json:"healthScore,omitempty" firestore:"healthScore,omitempty"`
	Analysis     *analysis.MedicalAIAnalysis   `json:"analysis,omitempty" firestore:"analysis,omitempty"`
	DocumentPath string                        `json:"documentPath,omitempty" firestore:"documentPath,omitempty"`
	CreatedAt    time.Time                     `json:"createdAt" firestore:"createdAt"`
}

// Store defines the interface for all report persistence used by the service
type Store interface {
	CreateReport(ctx context.Context, report *Report) error
	GetReport(ctx context.Context, reportID string) (*Report, error)
	// ListReports returns the user's reports newest first.
	ListReports(ctx context.Context, userID string, pageSize int32, pageToken string) ([]*Report, string, error)
	DeleteReport(ctx context.Context, reportID string) error
}

// DocumentPath is the archive object path for a report's source document.
func DocumentPath(userID, reportID, filename string) string {
	name := path.Base(filename)
	if name == "." || name == "/" {
		name = "document"
	}
	return path.Join("reports", userID, reportID, name)
}

func clampPageSize(pageSize int32) int32 {
	if pageSize <= 0 {
		return DefaultPageSize
	}
	return min(pageSize, MaxPageSize)
}

// EncodePageToken encodes a document ID into a page token.
func EncodePageToken(docID string) string {
	if docID == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(docID))
}

// DecodePageToken decodes a page token back to a document ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
