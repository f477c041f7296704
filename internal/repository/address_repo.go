package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dogspots-bxl/data-importer/pkg/model"
	"github.com/dogspots-bxl/data-importer/pkg/util"
	"google.golang.org/api/iterator"
)

const addressCollection = "addresses"

// AddressRepository handles Firestore read/write for street addresses.
type AddressRepository struct {
	client *firestore.Client
}

func NewAddressRepository(client *firestore.Client) *AddressRepository {
	return &AddressRepository{client: client}
}

// FetchAll loads every stored address.
func (r *AddressRepository) FetchAll(ctx context.Context) ([]model.AddressData, error) {
	iter := r.client.Collection(addressCollection).Documents(ctx)
	var result []model.AddressData
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate addresses: %w", err)
		}
		var a model.AddressData
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("decode address %s: %w", doc.Ref.ID, err)
		}
		if a.ID == "" {
			a.ID = doc.Ref.ID
		}
		result = append(result, a)
	}
	return result, nil
}

// BatchUpsert merge-writes addresses in batches to reduce round trips.
func (r *AddressRepository) BatchUpsert(ctx context.Context, addrs []model.AddressData) (int, error) {
	if len(addrs) == 0 {
		return 0, nil
	}
	const batchSize = 400

	written := 0
	for start := 0; start < len(addrs); start += batchSize {
		end := start + batchSize
		if end > len(addrs) {
			end = len(addrs)
		}
		batch := r.client.Batch()
		for _, a := range addrs[start:end] {
			docID := addressDocID(a)
			if a.ID == "" {
				a.ID = docID
			}
			ref := r.client.Collection(addressCollection).Doc(docID)
			batch.Set(ref, a, firestore.MergeAll)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return written, fmt.Errorf("commit address batch [%d:%d]: %w", start, end, err)
		}
		written += end - start
	}
	return written, nil
}

func addressDocID(a model.AddressData) string {
	if a.ID != "" {
		return a.ID
	}
	if a.Formatted != "" {
		return util.HashString(a.Formatted)
	}
	return util.HashString(fmt.Sprintf("%s|%s|%s", a.Street, a.Number, a.PostalCode))
}
