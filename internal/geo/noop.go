// Package geo holds geocoding implementations. Only a no-op exists today; a
// real geocoding provider slots in behind property.Geocoder.
package geo

import "context"

// Noop is a Geocoder that never resolves coordinates. Extracted listings
// keep absent latitude/longitude rather than fabricated values.
type Noop struct{}

// NewNoop creates a new Noop geocoder.
func NewNoop() *Noop {
	return &Noop{}
}

// Geocode always reports no coordinates and no error.
func (Noop) Geocode(_ context.Context, _ string) (*float64, *float64, error) {
	return nil, nil, nil
}
