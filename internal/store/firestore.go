package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReportsCollection is the Firestore collection holding archived reports.
const ReportsCollection = "reports"

// FirestoreStore implements the Store interface using Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{
		client: client,
	}
}

// applyCreatedAtPagination orders newest first and resumes after the cursor
// document. Firestore needs both the CreatedAt value and the document ID
// for a composite StartAfter.
func (s *FirestoreStore) applyCreatedAtPagination(ctx context.Context, query firestore.Query, pageSize int32, pageToken string) (firestore.Query, error) {
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return query, fmt.Errorf("invalid page token: %w", err)
		}
		cursorDoc, err := s.client.Collection(ReportsCollection).Doc(docID).Get(ctx)
		if err != nil {
			return query, fmt.Errorf("failed to fetch cursor document: %w", err)
		}
		query = query.StartAfter(cursorDoc.Data()["createdAt"], docID)
	}

	return query.Limit(int(pageSize) + 1), nil // +1 to detect next page
}

// CreateReport writes a report keyed by its ID.
func (s *FirestoreStore) CreateReport(ctx context.Context, report *Report) error {
	_, err := s.client.Collection(ReportsCollection).Doc(report.ID).Set(ctx, report)
	return err
}

// GetReport retrieves a report from Firestore
func (s *FirestoreStore) GetReport(ctx context.Context, reportID string) (*Report, error) {
	doc, err := s.client.Collection(ReportsCollection).Doc(reportID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report Report
	if err := doc.DataTo(&report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListReports lists a user's reports from Firestore
func (s *FirestoreStore) ListReports(ctx context.Context, userID string, pageSize int32, pageToken string) ([]*Report, string, error) {
	pageSize = clampPageSize(pageSize)

	query := s.client.Collection(ReportsCollection).Query
	if userID != "" {
		query = query.Where("userId", "==", userID)
	}

	query, err := s.applyCreatedAtPagination(ctx, query, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list reports: %w", err)
	}

	var nextPageToken string
	if len(docs) > int(pageSize) {
		docs = docs[:pageSize]
		nextPageToken = EncodePageToken(docs[pageSize-1].Ref.ID)
	}

	reports := make([]*Report, 0, len(docs))
	for _, doc := range docs {
		var report Report
		if err := doc.DataTo(&report); err != nil {
			return nil, "", fmt.Errorf("failed to parse report: %w", err)
		}
		reports = append(reports, &report)
	}
	return reports, nextPageToken, nil
}

// DeleteReport removes a report. Deleting a missing report is ErrNotFound.
func (s *FirestoreStore) DeleteReport(ctx context.Context, reportID string) error {
	ref := s.client.Collection(ReportsCollection).Doc(reportID)
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}
