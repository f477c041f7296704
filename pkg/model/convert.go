package model

// AddressRecords wraps address rows in the pipeline's common record view.
func AddressRecords(addrs []AddressData) []Record {
	records := make([]Record, 0, len(addrs))
	for i := range addrs {
		a := &addrs[i]
		records = append(records, Record{
			ID:          a.ID,
			Location:    a.Location,
			LastUpdated: a.LastUpdated,
			KeyField:    a.Formatted,
			Address:     a,
		})
	}
	return records
}

// DogPlaceRecords wraps place rows in the pipeline's common record view.
func DogPlaceRecords(places []DogPlaceData) []Record {
	records := make([]Record, 0, len(places))
	for i := range places {
		p := &places[i]
		records = append(records, Record{
			ID:          p.ID,
			PlaceID:     p.PlaceID,
			Location:    p.Location,
			LastUpdated: p.LastUpdated,
			KeyField:    p.Name,
			DogPlace:    p,
		})
	}
	return records
}

// SplitRecords unwraps records back into their dataset slices. A record
// belongs to exactly one of the two datasets.
func SplitRecords(records []Record) ([]AddressData, []DogPlaceData) {
	var addrs []AddressData
	var places []DogPlaceData
	for _, r := range records {
		switch {
		case r.Address != nil:
			addrs = append(addrs, *r.Address)
		case r.DogPlace != nil:
			places = append(places, *r.DogPlace)
		}
	}
	return addrs, places
}
