package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dogspots-bxl/data-importer/pkg/model"
	"github.com/dogspots-bxl/data-importer/pkg/util"
	"google.golang.org/api/iterator"
)

const placeCollection = "dog_places"

// PlaceRepository handles Firestore read/write for dog places.
type PlaceRepository struct {
	client *firestore.Client
}

func NewPlaceRepository(client *firestore.Client) *PlaceRepository {
	return &PlaceRepository{client: client}
}

// FetchAll loads every stored place.
func (r *PlaceRepository) FetchAll(ctx context.Context) ([]model.DogPlaceData, error) {
	iter := r.client.Collection(placeCollection).Documents(ctx)
	var result []model.DogPlaceData
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate places: %w", err)
		}
		var p model.DogPlaceData
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("decode place %s: %w", doc.Ref.ID, err)
		}
		if p.ID == "" {
			p.ID = doc.Ref.ID
		}
		result = append(result, p)
	}
	return result, nil
}

// BatchUpsert merge-writes places in batches to reduce round trips.
func (r *PlaceRepository) BatchUpsert(ctx context.Context, places []model.DogPlaceData) (int, error) {
	if len(places) == 0 {
		return 0, nil
	}
	const batchSize = 400

	written := 0
	for start := 0; start < len(places); start += batchSize {
		end := start + batchSize
		if end > len(places) {
			end = len(places)
		}
		batch := r.client.Batch()
		for _, p := range places[start:end] {
			docID := placeDocID(p)
			if p.ID == "" {
				p.ID = docID
			}
			ref := r.client.Collection(placeCollection).Doc(docID)
			batch.Set(ref, p, firestore.MergeAll)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return written, fmt.Errorf("commit place batch [%d:%d]: %w", start, end, err)
		}
		written += end - start
	}
	return written, nil
}

func placeDocID(p model.DogPlaceData) string {
	if p.ID != "" {
		return p.ID
	}
	if p.PlaceID != "" {
		return p.PlaceID
	}
	return util.HashString(fmt.Sprintf("%s|%.6f|%.6f", p.Name, p.Location.Latitude, p.Location.Longitude))
}
