package shelter

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/mr1hm/go-shelter-finder/internal/geo"
	"github.com/mr1hm/go-shelter-finder/internal/models"
)

// DefaultLimit is the number of shelters returned when the caller has no preference.
const DefaultLimit = 3

var (
	ErrInvalidLimit      = errors.New("limit must be >= 0")
	ErrInvalidCoordinate = errors.New("invalid reference coordinate")
)

// ResolveNearest returns up to limit copies of shelters, each annotated with
// its distance from ref, nearest first. Shelters at equal distance keep their
// input order. The input slice is not modified. A shelter without a valid
// coordinate fails the whole call with ErrInvalidCoordinate, since it cannot
// be ordered.
func ResolveNearest(ref models.Coordinate, shelters []models.Shelter, limit int) ([]models.Shelter, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	if !ref.Valid() {
		return nil, ErrInvalidCoordinate
	}

	ranked := make([]models.Shelter, 0, len(shelters))
	for _, s := range shelters {
		if !s.Coordinate().Valid() {
			return nil, fmt.Errorf("%w: shelter %s/%s", ErrInvalidCoordinate, s.Source, s.ID)
		}
		c := s.Clone()
		d := geo.Distance(ref, c.Coordinate())
		c.Distance = &d
		ranked = append(ranked, c)
	}

	slices.SortStableFunc(ranked, func(a, b models.Shelter) int {
		return cmp.Compare(*a.Distance, *b.Distance)
	})

	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Dedupe drops shelters that repeat an earlier entry's name, address and
// coordinate, keeping the first occurrence.
func Dedupe(shelters []models.Shelter) []models.Shelter {
	type key struct {
		name, address string
		lat, lng      float64
	}
	seen := make(map[key]bool, len(shelters))
	out := make([]models.Shelter, 0, len(shelters))
	for _, s := range shelters {
		k := key{s.Name, s.Address, s.Latitude, s.Longitude}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
