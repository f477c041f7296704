// Prints a validation report for one of the stored datasets: record counts,
// completeness/coordinate checks and a per-municipality (or per-category)
// breakdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/joho/godotenv"

	"github.com/dogspots-bxl/data-importer/internal/platform/config"
	firestoreclient "github.com/dogspots-bxl/data-importer/internal/platform/firestore"
	"github.com/dogspots-bxl/data-importer/internal/repository"
	"github.com/dogspots-bxl/data-importer/pkg/model"
)

func main() {
	dataset := flag.String("dataset", "addresses", "Which dataset to report on: addresses or dogPlaces")
	flag.Parse()

	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx := context.Background()
	client, _, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("firestore init: %v", err)
	}
	defer client.Close()

	store := repository.NewStore(client)

	switch *dataset {
	case string(model.DataTypeAddresses):
		reportAddresses(ctx, store)
	case string(model.DataTypeDogPlaces):
		reportPlaces(ctx, store)
	default:
		log.Fatalf("unknown dataset %q", *dataset)
	}
}

func reportAddresses(ctx context.Context, store *repository.Store) {
	addrs, err := store.Addresses().FetchAll(ctx)
	if err != nil {
		log.Fatalf("fetch addresses: %v", err)
	}

	var missingStreet, missingPostal, badCoords, inactive int
	byMunicipality := make(map[string]int)
	for _, a := range addrs {
		if a.Street == "" {
			missingStreet++
		}
		if a.PostalCode == "" {
			missingPostal++
		}
		if a.Location.Latitude < -90 || a.Location.Latitude > 90 ||
			a.Location.Longitude < -180 || a.Location.Longitude > 180 {
			badCoords++
		}
		if !a.Active {
			inactive++
		}
		byMunicipality[orUnknown(a.Municipality)]++
	}

	fmt.Println("=== Addresses dataset report ===")
	fmt.Printf("Total records:       %d\n", len(addrs))
	fmt.Printf("Missing street:      %d\n", missingStreet)
	fmt.Printf("Missing postal code: %d\n", missingPostal)
	fmt.Printf("Bad coordinates:     %d\n", badCoords)
	fmt.Printf("Inactive:            %d\n", inactive)
	fmt.Println("By municipality:")
	printBreakdown(byMunicipality)
}

func reportPlaces(ctx context.Context, store *repository.Store) {
	placesData, err := store.Places().FetchAll(ctx)
	if err != nil {
		log.Fatalf("fetch places: %v", err)
	}

	var missingName, badCoords, inactive int
	byCategory := make(map[string]int)
	bySource := make(map[string]int)
	for _, p := range placesData {
		if p.Name == "" {
			missingName++
		}
		if p.Location.Latitude < -90 || p.Location.Latitude > 90 ||
			p.Location.Longitude < -180 || p.Location.Longitude > 180 {
			badCoords++
		}
		if !p.Active {
			inactive++
		}
		byCategory[orUnknown(p.Category)]++
		bySource[orUnknown(string(p.Source))]++
	}

	fmt.Println("=== Dog-places dataset report ===")
	fmt.Printf("Total records:   %d\n", len(placesData))
	fmt.Printf("Missing name:    %d\n", missingName)
	fmt.Printf("Bad coordinates: %d\n", badCoords)
	fmt.Printf("Inactive:        %d\n", inactive)
	fmt.Println("By category:")
	printBreakdown(byCategory)
	fmt.Println("By source:")
	printBreakdown(bySource)
}

func orUnknown(s string) string {
	if s == "" {
		return "<unknown>"
	}
	return s
}

func printBreakdown(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-24s %d\n", k, counts[k])
	}
}
