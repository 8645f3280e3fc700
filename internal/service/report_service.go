package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"github.com/vitalis-health/vitalis/backend/internal/auth"
	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/scoring"
	"github.com/vitalis-health/vitalis/backend/internal/search"
	"github.com/vitalis-health/vitalis/backend/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SearchIndex is the report search backend.
type SearchIndex interface {
	IndexReport(ctx context.Context, report *store.Report) error
	DeleteReport(ctx context.Context, reportID string) error
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResponse, error)
}

// ReportService runs uploads through decode, classify, extract, score, and
// analyze, then archives the result.
type ReportService struct {
	decoder   *extraction.Decoder
	extractor *extraction.Extractor
	scorer    *scoring.Scorer
	analyzer  *analysis.Analyzer

	// Optional sinks
	store   store.Store
	archive store.DocumentArchive
	index   SearchIndex

	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a ReportService.
type Option func(*ReportService)

func WithStore(s store.Store) Option { return func(r *ReportService) { r.store = s } }

func WithArchive(a store.DocumentArchive) Option { return func(r *ReportService) { r.archive = a } }

func WithSearchIndex(idx SearchIndex) Option { return func(r *ReportService) { r.index = idx } }

func WithLogger(l *zap.Logger) Option { return func(r *ReportService) { r.logger = l } }

func WithClock(now func() time.Time) Option { return func(r *ReportService) { r.now = now } }

func WithIDGenerator(newID func() string) Option { return func(r *ReportService) { r.newID = newID } }

// NewReportService creates the service. A nil decoder or analyzer gets a
// default one (no OCR, rule-based analysis only).
func NewReportService(decoder *extraction.Decoder, analyzer *analysis.Analyzer, opts ...Option) *ReportService {
	s := &ReportService{
		decoder:   decoder,
		extractor: extraction.NewExtractor(),
		scorer:    scoring.NewScorer(),
		analyzer:  analyzer,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.decoder == nil {
		s.decoder = extraction.NewDecoder(nil, 0, s.logger)
	}
	if s.analyzer == nil {
		s.analyzer = analysis.NewAnalyzer(nil, analysis.WithLogger(s.logger))
	}
	return s
}

// MaxUploadBytes is the decoder's size limit.
func (s *ReportService) MaxUploadBytes() int64 {
	return s.decoder.MaxBytes()
}

// AnalyzeDocument runs the full pipeline on one upload. Only decoding errors
// and an invalid mode are returned; analysis failures fall back to the
// rule-based analysis and persistence failures become warnings.
func (s *ReportService) AnalyzeDocument(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	start := s.now()

	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	doc, err := s.decoder.Decode(ctx, req.Data, req.Filename, req.ContentType)
	if err != nil {
		return nil, err
	}

	classification := extraction.ClassifyDocument(doc)
	ext := s.extractor.Extract(doc.Text, classification)
	report := s.scorer.Score(ext.Data)

	resp := &UploadResponse{
		Success:       true,
		ExtractedData: ext.Data,
		Extraction:    summarize(ext),
		HealthScore:   report,
	}
	resp.Warnings = append(resp.Warnings, doc.Warnings...)

	if mode == ModeFull {
		resp.Analysis = s.analyzer.Analyze(ctx, ext, report)
	}

	if req.UserID != "" && (s.store != nil || s.archive != nil || s.index != nil) {
		record := &store.Report{
			ID:           s.newID(),
			UserID:       req.UserID,
			Filename:     req.Filename,
			ContentType:  req.ContentType,
			Format:       ext.Format,
			DocumentType: ext.DocumentType,
			Extraction:   ext,
			HealthScore:  report,
			Analysis:     resp.Analysis,
			CreatedAt:    s.now().UTC(),
		}
		stored, warnings := s.persist(ctx, record, req.Data)
		if stored {
			resp.ReportID = record.ID
		}
		resp.Warnings = append(resp.Warnings, warnings...)
	}

	analysisSource := "none"
	if resp.Analysis != nil {
		analysisSource = string(resp.Analysis.Source)
	}
	s.logger.Info("Report analyzed",
		zap.String("user_id", req.UserID),
		zap.String("format", string(ext.Format)),
		zap.String("parsing_method", ext.ParsingMethod),
		zap.Int("lab_values", len(ext.Data.LabValues)),
		zap.Int("medications", len(ext.Data.Medications)),
		zap.Float64("confidence", ext.Confidence),
		zap.Int("overall_score", report.OverallScore),
		zap.String("analysis_source", analysisSource),
		zap.Int("warnings", len(resp.Warnings)),
		zap.Duration("duration", s.now().Sub(start)))

	return resp, nil
}

// persist writes the report to every configured sink concurrently. It
// reports whether the store write succeeded plus one warning per failed sink.
func (s *ReportService) persist(ctx context.Context, record *store.Report, data []byte) (bool, []string) {
	type sink struct {
		name string
		run  func(context.Context) error
	}

	var sinks []sink
	if s.archive != nil {
		record.DocumentPath = store.DocumentPath(record.UserID, record.ID, record.Filename)
		sinks = append(sinks, sink{"document archive", func(ctx context.Context) error {
			return s.archive.Put(ctx, record.DocumentPath, record.ContentType, data)
		}})
	}
	if s.store != nil {
		sinks = append(sinks, sink{"report store", func(ctx context.Context) error {
			return s.store.CreateReport(ctx, record)
		}})
	}
	if s.index != nil {
		sinks = append(sinks, sink{"search index", func(ctx context.Context) error {
			return s.index.IndexReport(ctx, record)
		}})
	}

	// Sinks are independent: one failure must not cancel the others, so
	// each goroutine records its own error and returns nil.
	errs := make([]error, len(sinks))
	var g errgroup.Group
	for i, sk := range sinks {
		g.Go(func() error {
			errs[i] = sk.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	stored := s.store != nil
	var warnings []string
	for i, err := range errs {
		if err == nil {
			continue
		}
		if sinks[i].name == "report store" {
			stored = false
		}
		s.logger.Warn("Failed to persist report",
			zap.String("report_id", record.ID),
			zap.String("sink", sinks[i].name),
			zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("%s unavailable: report was analyzed but not saved there", sinks[i].name))
	}
	return stored, warnings
}

// ListReports returns a page of the caller's archived reports, newest first.
func (s *ReportService) ListReports(ctx context.Context, pageSize int32, pageToken string) (*ListReportsResponse, error) {
	claims, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}

	reports, next, err := s.store.ListReports(ctx, claims.UID, pageSize, pageToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	resp := &ListReportsResponse{Success: true, Reports: make([]ReportSummary, 0, len(reports)), NextPageToken: next}
	for _, r := range reports {
		resp.Reports = append(resp.Reports, summarizeReport(r))
	}
	return resp, nil
}

// GetReport returns one archived report owned by the caller.
func (s *ReportService) GetReport(ctx context.Context, reportID string) (*store.Report, error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}

	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if _, err := auth.RequireUserAccess(ctx, report.UserID); err != nil {
		return nil, err
	}
	return report, nil
}

// DeleteReport removes an archived report, its document, and its search
// record. Only the store delete can fail the call.
func (s *ReportService) DeleteReport(ctx context.Context, reportID string) (*DeleteReportResponse, error) {
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteReport(ctx, reportID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to delete report: %w", err)
	}

	resp := &DeleteReportResponse{Success: true}
	if s.archive != nil && report.DocumentPath != "" {
		if err := s.archive.Delete(ctx, report.DocumentPath); err != nil {
			s.logger.Warn("Failed to delete archived document", zap.String("report_id", reportID), zap.Error(err))
			resp.Warnings = append(resp.Warnings, "document archive cleanup failed")
		}
	}
	if s.index != nil {
		if err := s.index.DeleteReport(ctx, reportID); err != nil {
			s.logger.Warn("Failed to remove report from search index", zap.String("report_id", reportID), zap.Error(err))
			resp.Warnings = append(resp.Warnings, "search index cleanup failed")
		}
	}
	return resp, nil
}

// SearchReports searches the caller's reports. The user filter is always
// taken from the authenticated claims.
func (s *ReportService) SearchReports(ctx context.Context, params search.SearchParams) (*SearchReportsResponse, error) {
	claims, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if s.index == nil {
		return nil, ErrSearchDisabled
	}

	params.UserID = claims.UID
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search reports: %w", err)
	}
	return &SearchReportsResponse{Success: true, SearchResponse: res}, nil
}
