// One-shot importer for the addresses dataset. Runs the addresses pipeline
// synchronously against the configured geodata providers and prints a
// report. With -seed-fallback it skips the providers entirely and writes a
// small built-in list of known dog-friendly streets, useful for bootstrapping
// a fresh project.
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
	"github.com/dogspots-bxl/data-importer/internal/platform/overpass"
	"github.com/dogspots-bxl/data-importer/internal/platform/urbis"
	"github.com/dogspots-bxl/data-importer/internal/repository"
	"github.com/dogspots-bxl/data-importer/pkg/model"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Fetch and validate without writing to Firestore")
	seedFallback := flag.Bool("seed-fallback", false, "Skip providers and import the built-in seed list")
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

	store := repository.NewStore(client)

	if *seedFallback {
		importSeed(ctx, store, *dryRun)
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	registry := pipeline.NewRegistry()
	registry.Register(model.ProviderURBIS, urbis.New(nil, urbis.Config{BaseURL: cfg.URBISBaseURL}))
	registry.Register(model.ProviderOSM, overpass.New(nil, overpass.Config{BaseURL: cfg.OverpassBaseURL}))

	var persister pipeline.Persister = store
	if *dryRun {
		persister = discardPersister{}
	}

	service := pipeline.NewService(registry, pipeline.NewVersionService(), persister, nil, nil, logger)
	pipelines := pipeline.BuildPipelines(cfg)
	if err := service.InitializePipelines(time.Now(), pipelines); err != nil {
		log.Fatalf("initialize pipelines: %v", err)
	}

	result, err := service.ExecutePipeline(ctx, string(model.DataTypeAddresses))
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	fmt.Println("=== Address import report ===")
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

func importSeed(ctx context.Context, store *repository.Store, dryRun bool) {
	seed := seedAddresses()
	if dryRun {
		log.Printf("dry run: would import %d seed addresses", len(seed))
		return
	}
	persisted, err := store.Addresses().BatchUpsert(ctx, seed)
	if err != nil {
		log.Fatalf("seed import failed: %v", err)
	}
	log.Printf("imported %d seed addresses", persisted)
}

// seedAddresses is the last-resort bootstrap list of central Brussels
// streets near well-known dog areas.
func seedAddresses() []model.AddressData {
	now := time.Now().UTC()
	rows := []struct {
		street, number, municipality, postal string
		lat, lng                             float64
	}{
		{"Avenue Louise", "1", "Bruxelles", "1050", 50.8270, 4.3630},
		{"Rue de la Loi", "16", "Bruxelles", "1000", 50.8465, 4.3650},
		{"Chaussée d'Ixelles", "100", "Ixelles", "1050", 50.8330, 4.3670},
		{"Avenue de Tervueren", "12", "Etterbeek", "1040", 50.8400, 4.3920},
		{"Parvis de Saint-Gilles", "5", "Saint-Gilles", "1060", 50.8290, 4.3450},
		{"Place Flagey", "1", "Ixelles", "1050", 50.8275, 4.3720},
		{"Boulevard Anspach", "85", "Bruxelles", "1000", 50.8470, 4.3500},
		{"Rue Haute", "200", "Bruxelles", "1000", 50.8370, 4.3430},
	}

	addrs := make([]model.AddressData, 0, len(rows))
	for _, row := range rows {
		a := model.AddressData{
			Street:       row.street,
			Number:       row.number,
			Municipality: row.municipality,
			PostalCode:   row.postal,
			Location:     model.GeoPoint{Latitude: row.lat, Longitude: row.lng},
			Source:       model.ProviderOSM,
			Active:       true,
			LastUpdated:  now,
		}
		a.Formatted = fmt.Sprintf("%s %s, %s %s", a.Street, a.Number, a.PostalCode, a.Municipality)
		addrs = append(addrs, a)
	}
	return addrs
}

// discardPersister satisfies the persister contract for dry runs.
type discardPersister struct{}

func (discardPersister) BatchUpsert(_ context.Context, records []model.Record, _ model.DataType) (int, int, error) {
	return 0, len(records), nil
}
