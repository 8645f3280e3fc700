package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store interface with in-memory storage
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*Report),
	}
}

func (m *MemoryStore) CreateReport(ctx context.Context, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reports[report.ID] = report
	return nil
}

func (m *MemoryStore) GetReport(ctx context.Context, reportID string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report, ok := m.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	return report, nil
}

func (m *MemoryStore) ListReports(ctx context.Context, userID string, pageSize int32, pageToken string) ([]*Report, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matching []*Report
	for _, report := range m.reports {
		if userID != "" && report.UserID != userID {
			continue
		}
		matching = append(matching, report)
	}
	sortNewestFirst(matching)

	page, nextToken := paginateReports(matching, clampPageSize(pageSize), pageToken)
	return page, nextToken, nil
}

func (m *MemoryStore) DeleteReport(ctx context.Context, reportID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[reportID]; !ok {
		return ErrNotFound
	}
	delete(m.reports, reportID)
	return nil
}

// sortNewestFirst orders by CreatedAt descending, then ID descending so
// reports created in the same instant still have a stable order.
func sortNewestFirst(reports []*Report) {
	sort.Slice(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// paginateReports applies cursor-based pagination to a sorted slice.
// The token names the last report of the previous page; an unknown or
// malformed token starts from the beginning.
func paginateReports(reports []*Report, pageSize int32, pageToken string) ([]*Report, string) {
	start := 0
	if pageToken != "" {
		if cursorID, err := DecodePageToken(pageToken); err == nil {
			for i, r := range reports {
				if r.ID == cursorID {
					start = i + 1
					break
				}
			}
		}
	}
	reports = reports[start:]

	var nextToken string
	if int32(len(reports)) > pageSize {
		reports = reports[:pageSize]
		nextToken = EncodePageToken(reports[pageSize-1].ID)
	}
	return reports, nextToken
}
