// Package geocode resolves birth place names to coordinates.
package geocode

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
)

// Geocoder resolves a free-text place name to latitude/longitude.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (lat, lon float64, err error)
}

// MapsGeocoder implements Geocoder on the Google Maps Geocoding API.
type MapsGeocoder struct {
	client *maps.Client
}

// NewMapsGeocoder creates a geocoder with the given API key.
func NewMapsGeocoder(apiKey string) (*MapsGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &MapsGeocoder{client: client}, nil
}

var _ Geocoder = (*MapsGeocoder)(nil)

// Geocode returns the coordinates of the best match for the place name.
func (g *MapsGeocoder) Geocode(ctx context.Context, place string) (float64, float64, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: place})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: geocoding: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("%w: place %q", apperrors.ErrNotFound, place)
	}

	loc := results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

// MockGeocoder is a configurable mock for tests.
type MockGeocoder struct {
	GeocodeFunc  func(ctx context.Context, place string) (float64, float64, error)
	GeocodeCalls int
}

var _ Geocoder = (*MockGeocoder)(nil)

// Geocode implements Geocoder.
func (m *MockGeocoder) Geocode(ctx context.Context, place string) (float64, float64, error) {
	m.GeocodeCalls++
	if m.GeocodeFunc != nil {
		return m.GeocodeFunc(ctx, place)
	}
	return 0, 0, nil
}
