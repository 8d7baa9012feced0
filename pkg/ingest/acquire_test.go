package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

type fakeSource struct {
	name string
	m    *cellular.Measurement
	err  error
}

func (f fakeSource) Name() string { return f.name }
func (f fakeSource) Read(ctx context.Context) (*cellular.Measurement, error) {
	return f.m, f.err
}

func TestAcquireFallsBackThroughSources(t *testing.T) {
	want := &cellular.Measurement{SignalStrength: -70}
	a := New(nil,
		fakeSource{name: "first", err: errors.New("unavailable")},
		fakeSource{name: "second", m: want},
		fakeSource{name: "third", m: &cellular.Measurement{SignalStrength: -99}},
	)

	got, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected the second source's reading, got %v", got)
	}
}

func TestAcquireReturnsNilNilWhenExhausted(t *testing.T) {
	a := New(nil,
		fakeSource{name: "first", err: errors.New("unavailable")},
		fakeSource{name: "second", err: errors.New("unavailable")},
	)

	got, err := a.Acquire(context.Background())
	if got != nil || err != nil {
		t.Fatalf("expected (nil, nil) when every source fails, got (%v, %v)", got, err)
	}
}

func TestAcquireWithNoSourcesReturnsNilNil(t *testing.T) {
	a := New(nil)
	got, err := a.Acquire(context.Background())
	if got != nil || err != nil {
		t.Fatalf("expected (nil, nil) with no sources configured, got (%v, %v)", got, err)
	}
}
