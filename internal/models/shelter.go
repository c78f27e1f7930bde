package models

import "slices"

type HazardType string

const (
	HazardEarthquake HazardType = "earthquake"
	HazardFlood      HazardType = "flood"
	HazardTsunami    HazardType = "tsunami"
	HazardLandslide  HazardType = "landslide"
	HazardFire       HazardType = "fire"
	HazardStorm      HazardType = "storm"
)

// DefaultHazards is applied to records that carry no hazard metadata of their own.
var DefaultHazards = []HazardType{HazardEarthquake, HazardFlood}

type Shelter struct {
	ID            string // 1-based record position within a single parse
	Source        string // dataset the record came from, set by ingestion
	Name          string
	Address       string
	Phone         string
	Latitude      float64
	Longitude     float64
	Types         []HazardType
	TypesInferred bool     // Types came from the fallback policy, not the record
	Distance      *float64 // km from the reference coordinate; nil until ranked
}

func (s Shelter) Coordinate() Coordinate {
	return Coordinate{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
	}
}

func (s Shelter) HasType(t HazardType) bool {
	return slices.Contains(s.Types, t)
}

// Clone returns a copy that shares no slices or pointers with s.
func (s Shelter) Clone() Shelter {
	out := s
	out.Types = slices.Clone(s.Types)
	if s.Distance != nil {
		d := *s.Distance
		out.Distance = &d
	}
	return out
}
