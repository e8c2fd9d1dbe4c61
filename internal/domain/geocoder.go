package domain

import "context"

// Place is the best reverse geocoding match for a coordinate.
type Place struct {
	Name      string
	FullName  string
	Relevance float64 // 0.0–1.0 provider relevance score
}

// Geocoder names the place under a map coordinate.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}
