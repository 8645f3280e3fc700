package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"github.com/vitalis-health/vitalis/backend/internal/medical"
	"github.com/vitalis-health/vitalis/backend/internal/store"
)

type fakeBackend struct {
	saved   []map[string]any
	deleted []string
	filters string
	page    int
	perPage int
	result  *QueryResult
	err     error
}

func (f *fakeBackend) SaveRecord(_ context.Context, record map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeBackend) DeleteRecord(_ context.Context, objectID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, objectID)
	return nil
}

func (f *fakeBackend) Query(_ context.Context, _, filters string, page, hitsPerPage int) (*QueryResult, error) {
	f.filters, f.page, f.perPage = filters, page, hitsPerPage
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func sampleReport() *store.Report {
	data := medical.NewExtractedMedicalData()
	data.LabValues = append(data.LabValues,
		medical.LabValue{Parameter: "Glucose", Value: 250, Flagged: true},
		medical.LabValue{Parameter: "HDL", Value: 55},
		medical.LabValue{Parameter: "Glucose", Value: 240, Flagged: true},
	)
	data.Diagnoses = append(data.Diagnoses, "Type 2 diabetes")

	return &store.Report{
		ID:           "r1",
		UserID:       "alice",
		Filename:     "labs.pdf",
		Format:       medical.FormatTabular,
		DocumentType: "lab_report",
		Extraction:   &medical.OmniExtractionResult{Data: data},
		Analysis: &analysis.MedicalAIAnalysis{
			OverallScore: 83,
			RiskLevel:    analysis.RiskLow,
			Summary:      "Glucose is elevated.",
		},
		CreatedAt: time.Unix(1710000000, 0),
	}
}

func TestIndexReport_Record(t *testing.T) {
	backend := &fakeBackend{}
	idx := NewIndex(backend, nil)

	require.NoError(t, idx.IndexReport(context.Background(), sampleReport()))
	require.Len(t, backend.saved, 1)

	rec := backend.saved[0]
	assert.Equal(t, "r1", rec["objectID"])
	assert.Equal(t, "alice", rec["UserId"])
	assert.Equal(t, "tabular", rec["Format"])
	assert.Equal(t, 83, rec["OverallScore"])
	assert.Equal(t, "low", rec["RiskLevel"])
	assert.Equal(t, []string{"Glucose", "HDL"}, rec["Parameters"])
	assert.Equal(t, []string{"Glucose"}, rec["FlaggedParameters"])
	assert.Equal(t, []string{"Type 2 diabetes"}, rec["Diagnoses"])
	assert.Equal(t, int64(1710000000), rec["CreatedAtUnix"])
}

func TestIndexReport_WithoutExtraction(t *testing.T) {
	backend := &fakeBackend{}
	idx := NewIndex(backend, nil)

	require.NoError(t, idx.IndexReport(context.Background(), &store.Report{ID: "r2", UserID: "bob"}))
	rec := backend.saved[0]
	assert.Equal(t, []string{}, rec["Parameters"])
	assert.NotContains(t, rec, "RiskLevel")
}

func TestDeleteReport(t *testing.T) {
	backend := &fakeBackend{}
	idx := NewIndex(backend, nil)

	require.NoError(t, idx.DeleteReport(context.Background(), "r1"))
	assert.Equal(t, []string{"r1"}, backend.deleted)

	backend.err = errors.New("boom")
	err := idx.DeleteReport(context.Background(), "r1")
	assert.ErrorContains(t, err, "unindex report r1")
}

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name   string
		params SearchParams
		want   string
	}{
		{"user only", SearchParams{UserID: "alice"}, `UserId:"alice"`},
		{
			"all filters",
			SearchParams{UserID: "alice", Format: "tabular", RiskLevel: "high", MinScore: 10, MaxScore: 60},
			`UserId:"alice" AND Format:"tabular" AND RiskLevel:"high" AND OverallScore >= 10 AND OverallScore <= 60`,
		},
		{"quotes escaped", SearchParams{UserID: `a"b`}, `UserId:"a\"b"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, buildFilters(tc.params))
		})
	}
}

func TestSearch(t *testing.T) {
	backend := &fakeBackend{result: &QueryResult{
		Hits: []map[string]any{
			{"objectID": "r1", "Filename": "labs.pdf", "OverallScore": float64(83), "RiskLevel": "low", "CreatedAtUnix": float64(1710000000)},
			{"Filename": "orphan.pdf"},
		},
		TotalCount: 2,
		TotalPages: 1,
	}}
	idx := NewIndex(backend, nil)

	resp, err := idx.Search(context.Background(), SearchParams{Query: "glucose", UserID: "alice", PageSize: 500, Page: -3})
	require.NoError(t, err)

	assert.Equal(t, 100, backend.perPage)
	assert.Equal(t, 0, backend.page)
	assert.Equal(t, `UserId:"alice"`, backend.filters)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, Result{
		ReportID:     "r1",
		Filename:     "labs.pdf",
		OverallScore: 83,
		RiskLevel:    "low",
		CreatedAt:    time.Unix(1710000000, 0).UTC(),
	}, resp.Results[0])
	assert.Equal(t, 2, resp.TotalCount)
}

func TestSearch_RequiresUser(t *testing.T) {
	idx := NewIndex(&fakeBackend{}, nil)
	_, err := idx.Search(context.Background(), SearchParams{Query: "glucose"})
	assert.Error(t, err)
}

func TestNewAlgoliaIndex_RequiresCredentials(t *testing.T) {
	_, err := NewAlgoliaIndex(Config{}, nil)
	assert.Error(t, err)
}
