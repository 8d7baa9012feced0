// Package towers implements the Tower Registry (C2): deduplication of
// cellular towers by (cell_id, LAC) and per-tower signal history.
package towers

import (
	"errors"
	"sync"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

// ErrInvalidTowerID is returned when a measurement's tower has an empty
// cell_id.
var ErrInvalidTowerID = errors.New("towers: cell_id is empty")

// maxSignalHistory caps the per-tower signal strength history, matching
// pkg/gps/local_cell_database.go's bounded-retention discipline.
const maxSignalHistory = 1000

// Registry deduplicates towers by (cell_id, LAC) and tracks per-tower
// signal history. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	towers map[cellular.TowerID]*cellular.Tower
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{towers: make(map[cellular.TowerID]*cellular.Tower)}
}

// Observe inserts or updates the tower carried by a measurement. On
// insert, identity fields (cell_id, LAC, MCC, MNC) are fixed for the
// life of the tower. On update, LastSeen advances and the measurement's
// signal strength is appended to the history (capped).
func (r *Registry) Observe(m *cellular.Measurement) (*cellular.Tower, error) {
	if m.Tower.CellID == "" {
		return nil, ErrInvalidTowerID
	}

	id := m.Tower.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.towers[id]
	if !ok {
		t := m.Tower
		if t.FirstSeen.IsZero() {
			t.FirstSeen = m.Timestamp
		}
		t.LastSeen = m.Timestamp
		t.SignalHistory = append([]int(nil), m.SignalStrength)
		r.towers[id] = &t
		return &t, nil
	}

	if m.Timestamp.After(existing.LastSeen) {
		existing.LastSeen = m.Timestamp
	}
	existing.SignalHistory = append(existing.SignalHistory, m.SignalStrength)
	if len(existing.SignalHistory) > maxSignalHistory {
		existing.SignalHistory = existing.SignalHistory[len(existing.SignalHistory)-maxSignalHistory:]
	}
	return existing, nil
}

// Get returns the tower for an id, if known.
func (r *Registry) Get(id cellular.TowerID) (*cellular.Tower, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.towers[id]
	return t, ok
}

// Count returns the number of distinct towers observed.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.towers)
}

// All returns every observed tower, in no particular order, for export
// operations (S2).
func (r *Registry) All() []*cellular.Tower {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*cellular.Tower, 0, len(r.towers))
	for _, t := range r.towers {
		out = append(out, t)
	}
	return out
}

// TechnologyCounts returns the number of towers observed per technology
// tag, grounded on original_source/cellular_security.py::generate_report's
// tower-technology breakdown (S1 report generator).
func (r *Registry) TechnologyCounts() map[cellular.TechTag]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[cellular.TechTag]int)
	for _, t := range r.towers {
		counts[t.Technology]++
	}
	return counts
}

// ChangesInWindow counts tower transitions among measurements whose
// timestamp falls within [now-window, now], given the timestamps and
// tower ids of measurements in chronological order. Grounded on
// original_source/cellular_security.py::_count_tower_changes.
func ChangesInWindow(history []HistoryPoint, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	changes := 0
	var previous string
	first := true
	for _, h := range history {
		if h.Timestamp.Before(cutoff) {
			continue
		}
		if !first && previous != h.TowerKey {
			changes++
		}
		previous = h.TowerKey
		first = false
	}
	return changes
}

// HistoryPoint is a minimal (timestamp, tower key) pair used for
// tower-churn calculations without requiring the full Measurement.
type HistoryPoint struct {
	Timestamp time.Time
	TowerKey  string
}
