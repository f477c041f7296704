// One-shot importer for the dog-places dataset. Runs the dogPlaces pipeline
// synchronously against Google Places (and Foursquare when enabled) and
// prints a report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dogspots-bxl/data-importer/internal/business/pipeline"
	"github.com/dogspots-bxl/data-importer/internal/platform/config"
	firestoreclient "github.com/dogspots-bxl/data-importer/internal/platform/firestore"
	"github.com/dogspots-bxl/data-importer/internal/platform/foursquare"
	"github.com/dogspots-bxl/data-importer/internal/platform/places"
	"github.com/dogspots-bxl/data-importer/internal/repository"
	"github.com/dogspots-bxl/data-importer/pkg/model"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Fetch and validate without writing to Firestore")
	flag.Parse()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx := context.Background()
	client, credsSource, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("firestore init: %v", err)
	}
	defer client.Close()
	log.Printf("connected to Firestore project %s using %s credentials", cfg.FirebaseProjectID, credsSource)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := pipeline.NewRegistry()
	registry.Register(model.ProviderGoogle, places.New(nil, places.Config{APIKey: cfg.GooglePlacesAPIKey}))
	registry.Register(model.ProviderFoursquare, foursquare.New(nil, foursquare.Config{APIKey: cfg.FoursquareAPIKey}))

	var persister pipeline.Persister = repository.NewStore(client)
	if *dryRun {
		persister = discardPersister{}
	}

	service := pipeline.NewService(registry, pipeline.NewVersionService(), persister, nil, nil, logger)
	if err := service.InitializePipelines(time.Now(), pipeline.BuildPipelines(cfg)); err != nil {
		log.Fatalf("initialize pipelines: %v", err)
	}

	result, err := service.ExecutePipeline(ctx, string(model.DataTypeDogPlaces))
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	fmt.Println("=== Dog-places import report ===")
	fmt.Printf("Sources used:      %v\n", result.SourcesUsed)
	fmt.Printf("Records processed: %d\n", result.RecordsProcessed)
	fmt.Printf("Records persisted: %d\n", result.RecordsPersisted)
	fmt.Printf("Records skipped:   %d\n", result.RecordsSkipped)
	fmt.Printf("Quality score:     %.1f\n", result.QualityScore)
	fmt.Printf("Duration:          %s\n", result.Duration.Round(time.Millisecond))
	if result.Unchanged {
		fmt.Println("Dataset unchanged since last import, nothing written.")
	}
}

// discardPersister satisfies the persister contract for dry runs.
type discardPersister struct{}

func (discardPersister) BatchUpsert(_ context.Context, records []model.Record, _ model.DataType) (int, int, error) {
	return 0, len(records), nil
}
