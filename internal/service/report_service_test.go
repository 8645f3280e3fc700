package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"github.com/vitalis-health/vitalis/backend/internal/auth"
	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/medical"
	"github.com/vitalis-health/vitalis/backend/internal/search"
	"github.com/vitalis-health/vitalis/backend/internal/store"
	"go.uber.org/mock/gomock"
)

const glucoseText = "Glucose: 250 mg/dL (Normal: 70-100)"

var fixedNow = time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC)

type fakeIndex struct {
	mu      sync.Mutex
	indexed []*store.Report
	deleted []string
	params  search.SearchParams
	err     error
}

func (f *fakeIndex) IndexReport(_ context.Context, r *store.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, r)
	return nil
}

func (f *fakeIndex) DeleteReport(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, p search.SearchParams) (*search.SearchResponse, error) {
	f.params = p
	if f.err != nil {
		return nil, f.err
	}
	return &search.SearchResponse{Results: []search.Result{{ReportID: "report-1"}}, TotalCount: 1, TotalPages: 1}, nil
}

func newTestService(opts ...Option) *ReportService {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "report-1" }),
	}, opts...)
	return NewReportService(nil, nil, opts...)
}

func textUpload(userID string, mode Mode) UploadRequest {
	return UploadRequest{
		UserID:      userID,
		Filename:    "labs.txt",
		ContentType: "text/plain",
		Data:        []byte(glucoseText),
		Mode:        mode,
	}
}

func TestAnalyzeDocument_FullPipeline(t *testing.T) {
	svc := newTestService()

	resp, err := svc.AnalyzeDocument(context.Background(), textUpload("", ModeFull))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.Len(t, resp.ExtractedData.LabValues, 1)
	lab := resp.ExtractedData.LabValues[0]
	assert.Equal(t, "Glucose", lab.Parameter)
	assert.Equal(t, 250.0, lab.Value)
	assert.Equal(t, "mg/dL", lab.Unit)
	assert.Equal(t, "70-100", lab.NormalRange)
	assert.True(t, lab.Flagged)

	assert.Equal(t, medical.FormatTabular, resp.Extraction.Format)
	require.NotNil(t, resp.HealthScore)
	metabolic, ok := resp.HealthScore.Component(medical.CategoryMetabolic)
	require.True(t, ok)
	assert.Equal(t, 65, metabolic.Score)

	require.NotNil(t, resp.Analysis)
	assert.Equal(t, analysis.SourceRuleBased, resp.Analysis.Source)
	assert.Equal(t, resp.HealthScore.OverallScore, resp.Analysis.OverallScore)
	assert.Empty(t, resp.ReportID)
}

func TestAnalyzeDocument_ExtractMode(t *testing.T) {
	svc := newTestService()

	resp, err := svc.AnalyzeDocument(context.Background(), textUpload("", ModeExtract))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Analysis)
	assert.NotNil(t, resp.ExtractedData)
	assert.NotNil(t, resp.HealthScore)
}

func TestAnalyzeDocument_EmptyTextHasBaseScores(t *testing.T) {
	svc := newTestService()

	req := textUpload("", ModeFull)
	req.Data = []byte("   \n")
	resp, err := svc.AnalyzeDocument(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, resp.ExtractedData.LabValues)
	assert.Equal(t, 0.10, resp.Extraction.Confidence)
	for _, c := range resp.HealthScore.Components {
		assert.False(t, c.DataAvailable, c.Category)
	}
}

func TestAnalyzeDocument_Errors(t *testing.T) {
	svc := newTestService()

	_, err := svc.AnalyzeDocument(context.Background(), UploadRequest{Mode: "summary", Data: []byte(glucoseText)})
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = svc.AnalyzeDocument(context.Background(), UploadRequest{})
	docErr, ok := extraction.AsDocumentError(err)
	require.True(t, ok)
	assert.Equal(t, extraction.ErrEmptyDocument, docErr.Code)
}

func TestAnalyzeDocument_PersistsToEverySink(t *testing.T) {
	st := store.NewMemoryStore()
	archive := store.NewMemoryArchive()
	index := &fakeIndex{}
	svc := newTestService(WithStore(st), WithArchive(archive), WithSearchIndex(index))

	resp, err := svc.AnalyzeDocument(context.Background(), textUpload("alice", ModeFull))
	require.NoError(t, err)
	assert.Equal(t, "report-1", resp.ReportID)
	assert.Empty(t, resp.Warnings)

	saved, err := st.GetReport(context.Background(), "report-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", saved.UserID)
	assert.Equal(t, fixedNow, saved.CreatedAt)
	assert.Equal(t, "reports/alice/report-1/labs.txt", saved.DocumentPath)
	assert.Same(t, resp.Analysis, saved.Analysis)

	obj, ok := archive.Object("reports/alice/report-1/labs.txt")
	require.True(t, ok)
	assert.Equal(t, glucoseText, string(obj.Data))

	require.Len(t, index.indexed, 1)
	assert.Equal(t, "report-1", index.indexed[0].ID)
}

func TestAnalyzeDocument_AnonymousUploadIsNotPersisted(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	// No EXPECT: any store call fails the test.
	svc := newTestService(WithStore(mockStore))

	resp, err := svc.AnalyzeDocument(context.Background(), textUpload("", ModeFull))
	require.NoError(t, err)
	assert.Empty(t, resp.ReportID)
}

func TestAnalyzeDocument_SinkFailuresAreWarnings(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().
		CreateReport(gomock.Any(), gomock.Any()).
		Return(errors.New("firestore unavailable"))
	index := &fakeIndex{err: errors.New("algolia down")}
	svc := newTestService(WithStore(mockStore), WithSearchIndex(index))

	resp, err := svc.AnalyzeDocument(context.Background(), textUpload("alice", ModeFull))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Analysis)
	assert.Empty(t, resp.ReportID)
	assert.ElementsMatch(t, []string{
		"report store unavailable: report was analyzed but not saved there",
		"search index unavailable: report was analyzed but not saved there",
	}, resp.Warnings)
}

func TestAnalyzeDocument_ArchiveFailureKeepsReportID(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().CreateReport(gomock.Any(), gomock.Any()).Return(nil)
	svc := newTestService(WithStore(mockStore), WithArchive(failingArchive{}))

	resp, err := svc.AnalyzeDocument(context.Background(), textUpload("alice", ModeExtract))
	require.NoError(t, err)
	assert.Equal(t, "report-1", resp.ReportID)
	assert.Len(t, resp.Warnings, 1)
}

type failingArchive struct{}

func (failingArchive) Put(context.Context, string, string, []byte) error {
	return errors.New("bucket missing")
}

func (failingArchive) Delete(context.Context, string) error {
	return errors.New("bucket missing")
}

func TestGetReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	svc := newTestService(WithStore(mockStore))

	t.Run("owner can read", func(t *testing.T) {
		mockStore.EXPECT().GetReport(gomock.Any(), "r1").Return(&store.Report{ID: "r1", UserID: "alice"}, nil)
		r, err := svc.GetReport(testContextWithUser("alice"), "r1")
		require.NoError(t, err)
		assert.Equal(t, "r1", r.ID)
	})

	t.Run("other users are denied", func(t *testing.T) {
		mockStore.EXPECT().GetReport(gomock.Any(), "r1").Return(&store.Report{ID: "r1", UserID: "alice"}, nil)
		_, err := svc.GetReport(testContextWithUser("bob"), "r1")
		assert.ErrorIs(t, err, auth.ErrPermissionDenied)
	})

	t.Run("missing report", func(t *testing.T) {
		mockStore.EXPECT().GetReport(gomock.Any(), "nope").Return(nil, store.ErrNotFound)
		_, err := svc.GetReport(testContextWithUser("alice"), "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := svc.GetReport(context.Background(), "r1")
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})
}

func TestGetReport_NoStore(t *testing.T) {
	svc := newTestService()
	_, err := svc.GetReport(testContextWithUser("alice"), "r1")
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestListReports(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().
		ListReports(gomock.Any(), "alice", int32(10), "tok").
		Return([]*store.Report{{ID: "r2", UserID: "alice", Filename: "b.pdf"}}, "next", nil)
	svc := newTestService(WithStore(mockStore))

	resp, err := svc.ListReports(testContextWithUser("alice"), 10, "tok")
	require.NoError(t, err)
	assert.Equal(t, "next", resp.NextPageToken)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "b.pdf", resp.Reports[0].Filename)
}

func TestDeleteReport_CleansUpSinks(t *testing.T) {
	st := store.NewMemoryStore()
	archive := store.NewMemoryArchive()
	index := &fakeIndex{}
	svc := newTestService(WithStore(st), WithArchive(archive), WithSearchIndex(index))

	_, err := svc.AnalyzeDocument(context.Background(), textUpload("alice", ModeExtract))
	require.NoError(t, err)
	require.Equal(t, 1, archive.Len())

	_, err = svc.DeleteReport(testContextWithUser("bob"), "report-1")
	assert.ErrorIs(t, err, auth.ErrPermissionDenied)

	resp, err := svc.DeleteReport(testContextWithUser("alice"), "report-1")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, 0, archive.Len())
	assert.Equal(t, []string{"report-1"}, index.deleted)

	_, err = st.GetReport(context.Background(), "report-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteReport_CleanupFailuresAreWarnings(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateReport(context.Background(), &store.Report{ID: "r1", UserID: "alice", DocumentPath: "reports/alice/r1/a.pdf"}))
	svc := newTestService(WithStore(st), WithArchive(failingArchive{}), WithSearchIndex(&fakeIndex{err: errors.New("down")}))

	resp, err := svc.DeleteReport(testContextWithUser("alice"), "r1")
	require.NoError(t, err)
	assert.Len(t, resp.Warnings, 2)
}

func TestSearchReports(t *testing.T) {
	t.Run("disabled without index", func(t *testing.T) {
		_, err := newTestService().SearchReports(testContextWithUser("alice"), search.SearchParams{Query: "glucose"})
		assert.ErrorIs(t, err, ErrSearchDisabled)
	})

	t.Run("user filter comes from claims", func(t *testing.T) {
		index := &fakeIndex{}
		svc := newTestService(WithSearchIndex(index))

		resp, err := svc.SearchReports(testContextWithUser("alice"), search.SearchParams{Query: "glucose", UserID: "mallory"})
		require.NoError(t, err)
		assert.Equal(t, "alice", index.params.UserID)
		assert.Equal(t, 1, resp.TotalCount)
	})
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeFull, false},
		{"full", ModeFull, false},
		{"extract", ModeExtract, false},
		{"FULL", "", true},
		{"analyze", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
