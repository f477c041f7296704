package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// Store dispatches pipeline batches to the dataset repositories. It
// implements the pipeline core's Persister contract.
type Store struct {
	addresses *AddressRepository
	places    *PlaceRepository
}

func NewStore(client *firestore.Client) *Store {
	return &Store{
		addresses: NewAddressRepository(client),
		places:    NewPlaceRepository(client),
	}
}

// Addresses exposes the address repository for the CLIs.
func (s *Store) Addresses() *AddressRepository { return s.addresses }

// Places exposes the place repository for the CLIs.
func (s *Store) Places() *PlaceRepository { return s.places }

// BatchUpsert writes one validated pipeline batch. Records that unwrap to
// neither dataset are counted as skipped.
func (s *Store) BatchUpsert(ctx context.Context, records []model.Record, dataType model.DataType) (int, int, error) {
	addrs, places := model.SplitRecords(records)
	skipped := len(records) - len(addrs) - len(places)

	switch dataType {
	case model.DataTypeAddresses:
		persisted, err := s.addresses.BatchUpsert(ctx, addrs)
		if err != nil {
			return persisted, skipped, err
		}
		return persisted, skipped + len(places), nil
	case model.DataTypeDogPlaces:
		persisted, err := s.places.BatchUpsert(ctx, places)
		if err != nil {
			return persisted, skipped, err
		}
		return persisted, skipped + len(addrs), nil
	default:
		return 0, 0, fmt.Errorf("unknown data type %q", dataType)
	}
}
