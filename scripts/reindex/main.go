// reindex rebuilds the Algolia report index from the Firestore report
// archive.
//
// This script is idempotent: records are upserted by report ID, so it can be
// rerun after index settings change or after an Algolia outage left reports
// unindexed.
//
// Usage:
//
//	export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account.json
//	export GOOGLE_CLOUD_PROJECT=your-project-id
//	export ALGOLIA_APP_ID=... ALGOLIA_ADMIN_KEY=...
//	go run ./scripts/reindex/
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/vitalis-health/vitalis/backend/internal/search"
	"github.com/vitalis-health/vitalis/backend/internal/store"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

func main() {
	ctx := context.Background()

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		log.Fatal("GOOGLE_CLOUD_PROJECT environment variable is required")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer client.Close()

	index, err := search.NewAlgoliaIndex(search.Config{
		AppID:     os.Getenv("ALGOLIA_APP_ID"),
		APIKey:    os.Getenv("ALGOLIA_ADMIN_KEY"),
		IndexName: os.Getenv("ALGOLIA_INDEX_NAME"),
	}, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to create Algolia client: %v", err)
	}

	processed, indexed, err := reindex(ctx, client, index)
	if err != nil {
		log.Fatalf("Reindex stopped after %d reports: %v", processed, err)
	}
	fmt.Printf("[%s] Processed %d reports, indexed %d\n", store.ReportsCollection, processed, indexed)
	fmt.Println("\nReindex complete.")
}

// reindex walks every archived report and upserts its search record.
// Returns (processed count, indexed count, error).
func reindex(ctx context.Context, client *firestore.Client, index *search.AlgoliaIndex) (int, int, error) {
	iter := client.Collection(store.ReportsCollection).Documents(ctx)
	defer iter.Stop()

	processed := 0
	indexed := 0

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return processed, indexed, fmt.Errorf("iterating %s: %w", store.ReportsCollection, err)
		}
		processed++

		var report store.Report
		if err := doc.DataTo(&report); err != nil {
			log.Printf("Skipping unreadable report %s: %v", doc.Ref.ID, err)
			continue
		}
		if report.ID == "" {
			report.ID = doc.Ref.ID
		}
		if report.UserID == "" {
			log.Printf("Skipping report %s with no owner", doc.Ref.ID)
			continue
		}

		if err := index.IndexReport(ctx, &report); err != nil {
			log.Printf("Failed to index report %s: %v", doc.Ref.ID, err)
			continue
		}
		indexed++
	}

	return processed, indexed, nil
}
