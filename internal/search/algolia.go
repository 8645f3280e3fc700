package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/algolia/algoliasearch-client-go/v4/algolia/search"
	"github.com/vitalis-health/vitalis/backend/internal/store"
	"go.uber.org/zap"
)

// DefaultIndexName is used when no index name is configured.
const DefaultIndexName = "vitalis_reports"

// Config holds Algolia configuration.
type Config struct {
	AppID     string
	APIKey    string // Needs addObject/deleteObject as well as search
	IndexName string
}

// SearchParams defines the input for an Algolia search.
type SearchParams struct {
	Query     string
	UserID    string
	Format    string
	RiskLevel string
	// Overall score range, inclusive. Zero means unbounded.
	MinScore int
	MaxScore int
	// Pagination (offset-based)
	Page     int
	PageSize int
}

// Result is one matching report.
type Result struct {
	ReportID     string    `json:"reportId"`
	Filename     string    `json:"filename"`
	Format       string    `json:"format"`
	DocumentType string    `json:"documentType"`
	OverallScore int       `json:"overallScore"`
	RiskLevel    string    `json:"riskLevel"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SearchResponse holds results from Algolia.
type SearchResponse struct {
	Results    []Result `json:"results"`
	TotalCount int      `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
	Page       int      `json:"page"`
}

// Backend is the slice of the Algolia API the index uses.
type Backend interface {
	SaveRecord(ctx context.Context, record map[string]any) error
	DeleteRecord(ctx context.Context, objectID string) error
	Query(ctx context.Context, query, filters string, page, hitsPerPage int) (*QueryResult, error)
}

// QueryResult is a raw page of hits.
type QueryResult struct {
	Hits       []map[string]any
	TotalCount int
	TotalPages int
}

// AlgoliaIndex indexes archived reports for full-text search.
type AlgoliaIndex struct {
	backend Backend
	logger  *zap.Logger
}

// NewAlgoliaIndex creates a report index backed by Algolia.
func NewAlgoliaIndex(cfg Config, logger *zap.Logger) (*AlgoliaIndex, error) {
	backend, err := newAlgoliaBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewIndex(backend, logger), nil
}

// NewIndex creates a report index over an arbitrary backend.
func NewIndex(backend Backend, logger *zap.Logger) *AlgoliaIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlgoliaIndex{backend: backend, logger: logger}
}

// IndexReport upserts the search record for a report.
func (idx *AlgoliaIndex) IndexReport(ctx context.Context, report *store.Report) error {
	if err := idx.backend.SaveRecord(ctx, reportToRecord(report)); err != nil {
		return fmt.Errorf("index report %s: %w", report.ID, err)
	}
	return nil
}

// DeleteReport removes a report's search record.
func (idx *AlgoliaIndex) DeleteReport(ctx context.Context, reportID string) error {
	if err := idx.backend.DeleteRecord(ctx, reportID); err != nil {
		return fmt.Errorf("unindex report %s: %w", reportID, err)
	}
	return nil
}

// Search performs a full-text search over the caller's reports.
func (idx *AlgoliaIndex) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	if params.UserID == "" {
		return nil, fmt.Errorf("search requires a user id")
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	if pageSize > 100 {
		pageSize = 100
	}

	page := max(params.Page, 0)

	res, err := idx.backend.Query(ctx, params.Query, buildFilters(params), page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("algolia search: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		result, ok := hitToResult(hit)
		if !ok {
			idx.logger.Warn("Skipping search hit with no objectID")
			continue
		}
		results = append(results, result)
	}

	return &SearchResponse{
		Results:    results,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
		Page:       page,
	}, nil
}

// reportToRecord flattens a report into the attributes configured by
// scripts/algolia-setup.
func reportToRecord(r *store.Report) map[string]any {
	record := map[string]any{
		"objectID":      r.ID,
		"UserId":        r.UserID,
		"Filename":      r.Filename,
		"Format":        string(r.Format),
		"DocumentType":  r.DocumentType,
		"CreatedAtUnix": r.CreatedAt.Unix(),
	}

	diagnoses := []string{}
	parameters := []string{}
	flagged := []string{}
	if r.Extraction != nil && r.Extraction.Data != nil {
		diagnoses = append(diagnoses, r.Extraction.Data.Diagnoses...)
		seen := map[string]bool{}
		for _, lv := range r.Extraction.Data.LabValues {
			if seen[lv.Parameter] {
				continue
			}
			seen[lv.Parameter] = true
			parameters = append(parameters, lv.Parameter)
			if lv.Flagged {
				flagged = append(flagged, lv.Parameter)
			}
		}
	}
	record["Diagnoses"] = diagnoses
	record["Parameters"] = parameters
	record["FlaggedParameters"] = flagged

	if r.HealthScore != nil {
		record["OverallScore"] = r.HealthScore.OverallScore
	}
	if r.Analysis != nil {
		record["OverallScore"] = r.Analysis.OverallScore
		record["RiskLevel"] = string(r.Analysis.RiskLevel)
		record["Summary"] = r.Analysis.Summary
	}
	return record
}

// buildFilters constructs Algolia filter string from search params.
// UserId is always enforced for security.
func buildFilters(params SearchParams) string {
	parts := []string{fmt.Sprintf("UserId:%q", params.UserID)}

	if params.Format != "" {
		parts = append(parts, fmt.Sprintf("Format:%q", params.Format))
	}
	if params.RiskLevel != "" {
		parts = append(parts, fmt.Sprintf("RiskLevel:%q", params.RiskLevel))
	}
	if params.MinScore > 0 {
		parts = append(parts, fmt.Sprintf("OverallScore >= %d", params.MinScore))
	}
	if params.MaxScore > 0 {
		parts = append(parts, fmt.Sprintf("OverallScore <= %d", params.MaxScore))
	}

	return strings.Join(parts, " AND ")
}

// hitToResult converts an Algolia hit to a Result.
func hitToResult(props map[string]any) (Result, bool) {
	var result Result

	if v, ok := props["objectID"].(string); ok {
		result.ReportID = v
	}
	if v, ok := props["Filename"].(string); ok {
		result.Filename = v
	}
	if v, ok := props["Format"].(string); ok {
		result.Format = v
	}
	if v, ok := props["DocumentType"].(string); ok {
		result.DocumentType = v
	}
	if v, ok := props["RiskLevel"].(string); ok {
		result.RiskLevel = v
	}
	if v, ok := props["Summary"].(string); ok {
		result.Summary = v
	}
	// Numbers come back from JSON as float64.
	if v, ok := props["OverallScore"].(float64); ok {
		result.OverallScore = int(v)
	}
	if v, ok := props["CreatedAtUnix"].(float64); ok && v > 0 {
		result.CreatedAt = time.Unix(int64(v), 0).UTC()
	}

	return result, result.ReportID != ""
}

// algoliaBackend wraps the Algolia search API client.
type algoliaBackend struct {
	client    *search.APIClient
	indexName string
}

func newAlgoliaBackend(cfg Config) (*algoliaBackend, error) {
	if cfg.AppID == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("algolia AppID and APIKey are required")
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}

	client, err := search.NewClient(cfg.AppID, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating algolia client: %w", err)
	}

	return &algoliaBackend{
		client:    client,
		indexName: cfg.IndexName,
	}, nil
}

func (b *algoliaBackend) SaveRecord(ctx context.Context, record map[string]any) error {
	_, err := b.client.SaveObject(b.client.NewApiSaveObjectRequest(b.indexName, record))
	return err
}

func (b *algoliaBackend) DeleteRecord(ctx context.Context, objectID string) error {
	_, err := b.client.DeleteObject(b.client.NewApiDeleteObjectRequest(b.indexName, objectID))
	return err
}

func (b *algoliaBackend) Query(ctx context.Context, query, filters string, page, hitsPerPage int) (*QueryResult, error) {
	searchParams := search.SearchParamsObjectAsSearchParams(
		search.NewSearchParamsObject().
			SetQuery(query).
			SetHitsPerPage(int32(hitsPerPage)).
			SetPage(int32(page)).
			SetFilters(filters),
	)

	resp, err := b.client.SearchSingleIndex(b.client.NewApiSearchSingleIndexRequest(b.indexName).WithSearchParams(searchParams))
	if err != nil {
		return nil, err
	}

	res := &QueryResult{Hits: make([]map[string]any, 0, len(resp.Hits))}
	for _, hit := range resp.Hits {
		props := hit.AdditionalProperties
		if props == nil {
			props = map[string]any{}
		}
		if _, ok := props["objectID"]; !ok && hit.ObjectID != "" {
			props["objectID"] = hit.ObjectID
		}
		res.Hits = append(res.Hits, props)
	}
	if resp.NbHits != nil {
		res.TotalCount = int(*resp.NbHits)
	}
	if resp.NbPages != nil {
		res.TotalPages = int(*resp.NbPages)
	}
	return res, nil
}
