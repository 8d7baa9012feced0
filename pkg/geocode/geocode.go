// Package geocode implements the optional reverse-geocoding supplement
// (S4): attaching a human-readable place name to a threat's location.
// Disabled unless an API key is configured; grounded on
// original_source/cellular_remote_server.py's optional enrichment of
// exported threat records with location context.
package geocode

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

// Config configures the optional geocoder. Geocoding is a no-op unless
// APIKey is non-empty.
type Config struct {
	APIKey  string `json:"api_key"`
	Enabled bool   `json:"enabled"`
}

// Geocoder reverse-geocodes a Location into a short place description.
type Geocoder struct {
	client  *maps.Client
	enabled bool
}

// New creates a Geocoder. When cfg.Enabled is false or cfg.APIKey is
// empty, the returned Geocoder's Reverse calls are no-ops returning "".
func New(cfg Config) (*Geocoder, error) {
	if !cfg.Enabled || cfg.APIKey == "" {
		return &Geocoder{enabled: false}, nil
	}
	client, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("geocode: new client: %w", err)
	}
	return &Geocoder{client: client, enabled: true}, nil
}

// Reverse returns a short formatted address for loc, or "" if geocoding
// is disabled or the lookup fails. Failure is deliberately swallowed:
// geocoding is cosmetic enrichment, never load-bearing for detection.
func (g *Geocoder) Reverse(ctx context.Context, loc cellular.Location) string {
	if !g.enabled {
		return ""
	}
	resp, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: loc.Latitude, Lng: loc.Longitude},
	})
	if err != nil || len(resp) == 0 {
		return ""
	}
	return resp[0].FormattedAddress
}
