package api

import (
	"github.com/mr1hm/go-shelter-finder/internal/geo"
	"github.com/mr1hm/go-shelter-finder/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(shelters []models.Shelter) FeatureCollection {
	features := make([]Feature, 0, len(shelters))

	for _, s := range shelters {
		props := map[string]any{
			"id":             s.ID,
			"source":         s.Source,
			"name":           s.Name,
			"address":        s.Address,
			"phone":          s.Phone,
			"types":          hazardNames(s.Types),
			"types_inferred": s.TypesInferred,
		}
		if s.Distance != nil {
			props["distance_km"] = geo.Round(*s.Distance, 1)
		}
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{s.Longitude, s.Latitude},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}

// ShelterResponse is the plain JSON view of a shelter.
type ShelterResponse struct {
	ID            string   `json:"id"`
	Source        string   `json:"source"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Phone         string   `json:"phone"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Types         []string `json:"types"`
	TypesInferred bool     `json:"types_inferred"`
	DistanceKm    *float64 `json:"distance_km,omitempty"`
}

func toResponse(s models.Shelter) ShelterResponse {
	r := ShelterResponse{
		ID:            s.ID,
		Source:        s.Source,
		Name:          s.Name,
		Address:       s.Address,
		Phone:         s.Phone,
		Latitude:      s.Latitude,
		Longitude:     s.Longitude,
		Types:         hazardNames(s.Types),
		TypesInferred: s.TypesInferred,
	}
	if s.Distance != nil {
		d := geo.Round(*s.Distance, 1)
		r.DistanceKm = &d
	}
	return r
}

func hazardNames(types []models.HazardType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
