package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReport(id, userID string, createdAt time.Time) *Report {
	return &Report{ID: id, UserID: userID, Filename: id + ".pdf", CreatedAt: createdAt}
}

func TestMemoryStore_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := newReport("r1", "alice", time.Now())

	require.NoError(t, s.CreateReport(ctx, r))

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Same(t, r, got)

	require.NoError(t, s.DeleteReport(ctx, "r1"))
	_, err = s.GetReport(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteReport(ctx, "r1"), ErrNotFound)
}

func TestMemoryStore_ListNewestFirstPerUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateReport(ctx, newReport("old", "alice", base)))
	require.NoError(t, s.CreateReport(ctx, newReport("new", "alice", base.Add(2*time.Hour))))
	require.NoError(t, s.CreateReport(ctx, newReport("mid", "alice", base.Add(time.Hour))))
	require.NoError(t, s.CreateReport(ctx, newReport("other", "bob", base.Add(3*time.Hour))))

	reports, next, err := s.ListReports(ctx, "alice", 0, "")
	require.NoError(t, err)
	assert.Empty(t, next)

	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestMemoryStore_Pagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateReport(ctx, newReport(fmt.Sprintf("r%d", i), "alice", base.Add(time.Duration(i)*time.Minute))))
	}

	var seen []string
	token := ""
	pages := 0
	for {
		reports, next, err := s.ListReports(ctx, "alice", 2, token)
		require.NoError(t, err)
		for _, r := range reports {
			seen = append(seen, r.ID)
		}
		pages++
		if next == "" {
			break
		}
		token = next
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"r4", "r3", "r2", "r1", "r0"}, seen)
}

func TestMemoryStore_PageSizeClamped(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < MaxPageSize+5; i++ {
		require.NoError(t, s.CreateReport(ctx, newReport(fmt.Sprintf("r%03d", i), "alice", time.Unix(int64(i), 0))))
	}

	reports, next, err := s.ListReports(ctx, "alice", 1000, "")
	require.NoError(t, err)
	assert.Len(t, reports, MaxPageSize)
	assert.NotEmpty(t, next)
}

func TestMemoryStore_SameInstantOrderIsStable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"b", "c", "a"} {
		require.NoError(t, s.CreateReport(ctx, newReport(id, "alice", at)))
	}

	first, _, err := s.ListReports(ctx, "alice", 10, "")
	require.NoError(t, err)
	second, _, err := s.ListReports(ctx, "alice", 10, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "c", first[0].ID)
}

func TestPageToken(t *testing.T) {
	assert.Empty(t, EncodePageToken(""))

	id, err := DecodePageToken(EncodePageToken("report-123"))
	require.NoError(t, err)
	assert.Equal(t, "report-123", id)

	_, err = DecodePageToken("%%%")
	assert.Error(t, err)
}

func TestDocumentPath(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "labs.pdf", "reports/alice/r1/labs.pdf"},
		{"directory stripped", "../../etc/passwd", "reports/alice/r1/passwd"},
		{"empty", "", "reports/alice/r1/document"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DocumentPath("alice", "r1", tc.filename))
		})
	}
}

func TestMemoryArchive(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive()
	data := []byte("%PDF-1.4")

	require.NoError(t, a.Put(ctx, "reports/alice/r1/labs.pdf", "application/pdf", data))
	data[0] = 'X'

	obj, ok := a.Object("reports/alice/r1/labs.pdf")
	require.True(t, ok)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, "%PDF-1.4", string(obj.Data))

	require.NoError(t, a.Delete(ctx, "reports/alice/r1/labs.pdf"))
	require.NoError(t, a.Delete(ctx, "missing"))
	assert.Equal(t, 0, a.Len())
}
