package geocode

import (
	"context"
	"testing"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

func TestDisabledGeocoderReturnsEmptyString(t *testing.T) {
	g, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Reverse(context.Background(), cellular.Location{Latitude: 1, Longitude: 2}); got != "" {
		t.Fatalf("expected empty string from a disabled geocoder, got %q", got)
	}
}

func TestMissingAPIKeyIsTreatedAsDisabled(t *testing.T) {
	g, err := New(Config{Enabled: true, APIKey: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := g.Reverse(context.Background(), cellular.Location{}); got != "" {
		t.Fatalf("expected empty string with no api key configured, got %q", got)
	}
}
