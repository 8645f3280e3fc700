// algolia-setup configures the Algolia index that backs report search.
// This is the IaC definition for the Algolia search index.
//
// Usage:
//
//	ALGOLIA_APP_ID=... ALGOLIA_ADMIN_KEY=... go run ./scripts/algolia-setup
//	ALGOLIA_APP_ID=... ALGOLIA_ADMIN_KEY=... ALGOLIA_INDEX_NAME=vitalis_reports_dev go run ./scripts/algolia-setup
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/algolia/algoliasearch-client-go/v4/algolia/search"
	vsearch "github.com/vitalis-health/vitalis/backend/internal/search"
)

func int32Ptr(v int32) *int32 { return &v }

func main() {
	appID := os.Getenv("ALGOLIA_APP_ID")
	adminKey := os.Getenv("ALGOLIA_ADMIN_KEY")
	indexName := os.Getenv("ALGOLIA_INDEX_NAME")

	if appID == "" || adminKey == "" {
		log.Fatal("ALGOLIA_APP_ID and ALGOLIA_ADMIN_KEY are required")
	}
	if indexName == "" {
		indexName = vsearch.DefaultIndexName
	}

	client, err := search.NewClient(appID, adminKey)
	if err != nil {
		log.Fatalf("Failed to create Algolia client: %v", err)
	}

	log.Printf("Configuring Algolia index %q (app: %s)...", indexName, appID)

	settings := &search.IndexSettings{
		// Searchable attributes in priority order
		SearchableAttributes: []string{
			"Diagnoses",
			"Parameters",
			"Filename",
			"Summary",
		},

		// filterOnly() = can filter but values not returned as facets
		// searchable() = can also search within facet values
		AttributesForFaceting: []string{
			"filterOnly(UserId)",
			"searchable(Format)",
			"filterOnly(RiskLevel)",
			"searchable(FlaggedParameters)",
			"filterOnly(DocumentType)",
		},

		NumericAttributesForFiltering: []string{
			"OverallScore",
			"CreatedAtUnix",
		},

		// Newest reports first after text relevance
		CustomRanking: []string{
			"desc(CreatedAtUnix)",
		},

		// UserId is a filter-only field for tenant isolation and is never
		// returned in results.
		AttributesToRetrieve: []string{
			"objectID",
			"Filename",
			"Format",
			"DocumentType",
			"OverallScore",
			"RiskLevel",
			"Summary",
			"CreatedAtUnix",
		},

		AttributesToHighlight: []string{
			"Diagnoses",
			"Parameters",
			"Summary",
		},

		HitsPerPage:       int32Ptr(25),
		MaxValuesPerFacet: int32Ptr(100),

		// Lab parameter names are short; keep typo tolerance tight.
		MinWordSizefor1Typo:  int32Ptr(4),
		MinWordSizefor2Typos: int32Ptr(8),
	}

	req := client.NewApiSetSettingsRequest(indexName, settings)
	resp, err := client.SetSettings(req)
	if err != nil {
		log.Fatalf("Failed to set index settings: %v", err)
	}

	log.Printf("Index settings applied (taskID: %d, updatedAt: %s)", resp.TaskID, resp.UpdatedAt)

	fmt.Println()
	fmt.Println("=== Algolia Index Configuration ===")
	fmt.Printf("Index:              %s\n", indexName)
	fmt.Printf("App ID:             %s\n", appID)
	fmt.Println()
	fmt.Println("Searchable attrs:   Diagnoses, Parameters, Filename, Summary")
	fmt.Println("Facet filters:      UserId, Format, RiskLevel, FlaggedParameters, DocumentType")
	fmt.Println("Numeric filters:    OverallScore, CreatedAtUnix")
	fmt.Println("Custom ranking:     desc(CreatedAtUnix)")
	fmt.Println("Hits per page:      25")
	fmt.Println()
	fmt.Println("Done. Settings are applied asynchronously and are active within seconds.")
}
