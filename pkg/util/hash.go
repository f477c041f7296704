package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// HashRecords fingerprints a fetched dataset. Each record contributes its id,
// location, last-updated instant and type-specific key field; the canonical
// lines are sorted before hashing so record order does not affect the result.
func HashRecords(records []model.Record) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, canonicalLine(r))
	}
	sort.Strings(lines)
	return HashString(strings.Join(lines, "\n"))
}

func canonicalLine(r model.Record) string {
	return fmt.Sprintf("%s|%.7f|%.7f|%d|%s",
		strings.TrimSpace(strings.ToLower(r.ID)),
		r.Location.Latitude,
		r.Location.Longitude,
		r.LastUpdated.UTC().Unix(),
		strings.TrimSpace(strings.ToLower(r.KeyField)),
	)
}

// HashString returns the hex SHA-256 of an arbitrary string.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
