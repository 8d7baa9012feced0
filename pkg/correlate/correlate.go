// Package correlate implements the Cross-device Correlator (C10):
// high-priority fan-out and coordinated-IMSI-catcher-attack detection
// across devices, grounded on
// original_source/cellular_remote_server.py::analyze_threat_patterns
// and on pkg/notifications/deduplicator.go's fingerprint-map +
// background-cleanup-goroutine idiom for the idempotency state.
package correlate

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/logx"
)

// coordinatedAttackWindow is how far back related-device threats are
// considered for the coordinated-attack check.
const coordinatedAttackWindow = 60 * time.Minute

// minRelatedDevices is the minimum count of other, distinct devices
// with an IMSI-flavoured threat within the window required to declare
// a coordinated attack (so the total distinct device count, including
// the triggering device, is minRelatedDevices+1).
const minRelatedDevices = 2

// idempotencyRetention bounds how long a fired idempotency key is
// remembered before the background cleanup evicts it.
const idempotencyRetention = 2 * coordinatedAttackWindow

// DeviceThreat pairs a threat with the device that reported it.
type DeviceThreat struct {
	DeviceID string
	Threat   cellular.Threat
}

// Fanout is implemented by the session layer: broadcast delivers a
// typed server->client message to every Active session.
type Fanout interface {
	BroadcastHighPriorityAlert(threat DeviceThreat)
	BroadcastCoordinatedAttack(primary DeviceThreat, related []DeviceThreat)
}

// Correlator tracks recent threats per device to support the
// coordinated-attack check, and owns in-memory idempotency state so the
// same device trio is never re-alerted within the window.
type Correlator struct {
	mu sync.Mutex

	recent []DeviceThreat
	fired  map[string]time.Time

	fanout Fanout
	logger *logx.Logger
}

// New creates a Correlator and starts its background idempotency
// cleanup goroutine.
func New(fanout Fanout, logger *logx.Logger) *Correlator {
	c := &Correlator{
		fired:  make(map[string]time.Time),
		fanout: fanout,
		logger: logger,
	}
	go c.cleanupLoop()
	return c
}

// Ingest records a newly persisted threat from deviceID and runs the
// fan-out and coordinated-attack logic against it.
func (c *Correlator) Ingest(deviceID string, threat cellular.Threat) {
	dt := DeviceThreat{DeviceID: deviceID, Threat: threat}

	if threat.Severity == cellular.SeverityHigh || threat.Severity == cellular.SeverityCritical {
		c.fanout.BroadcastHighPriorityAlert(dt)
	}

	c.mu.Lock()
	c.recent = append(c.recent, dt)
	related := c.relatedIMSIThreats(dt)
	var key string
	shouldAlert := false
	if isIMSIFlavoured(threat.ThreatType) && distinctDeviceCount(deviceID, related) >= minRelatedDevices+1 {
		key = idempotencyKey(deviceID, related)
		if _, already := c.fired[key]; !already {
			c.fired[key] = time.Now()
			shouldAlert = true
		}
	}
	c.mu.Unlock()

	if shouldAlert {
		c.fanout.BroadcastCoordinatedAttack(dt, related)
	}
}

// relatedIMSIThreats returns every other-device IMSI-flavoured threat
// received within coordinatedAttackWindow of dt, by wall-clock
// timestamp. Caller must hold c.mu.
func (c *Correlator) relatedIMSIThreats(dt DeviceThreat) []DeviceThreat {
	if !isIMSIFlavoured(dt.Threat.ThreatType) {
		return nil
	}
	cutoff := dt.Threat.Timestamp.Add(-coordinatedAttackWindow)
	var related []DeviceThreat
	for _, r := range c.recent {
		if r.DeviceID == dt.DeviceID {
			continue
		}
		if !isIMSIFlavoured(r.Threat.ThreatType) {
			continue
		}
		if r.Threat.Timestamp.Before(cutoff) {
			continue
		}
		related = append(related, r)
	}
	return related
}

func isIMSIFlavoured(t cellular.ThreatType) bool {
	return strings.Contains(strings.ToUpper(string(t)), "IMSI")
}

// distinctDeviceIDs is the set of distinct device_ids involved: the
// triggering device plus every related device. related may contain
// several threats from the same device, so this is not simply
// len(related)+1.
func distinctDeviceIDs(deviceID string, related []DeviceThreat) map[string]bool {
	set := map[string]bool{deviceID: true}
	for _, r := range related {
		set[r.DeviceID] = true
	}
	return set
}

// distinctDeviceCount is the number of distinct devices that would be
// involved in a coordinated-attack alert triggered by deviceID.
func distinctDeviceCount(deviceID string, related []DeviceThreat) int {
	return len(distinctDeviceIDs(deviceID, related))
}

// idempotencyKey is the sorted set of distinct device_ids involved, so
// the same device set never re-fires within the retention window.
func idempotencyKey(deviceID string, related []DeviceThreat) string {
	set := distinctDeviceIDs(deviceID, related)
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

func (c *Correlator) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.cleanup()
	}
}

func (c *Correlator) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-idempotencyRetention)
	for k, t := range c.fired {
		if t.Before(cutoff) {
			delete(c.fired, k)
		}
	}

	retainFrom := now.Add(-coordinatedAttackWindow)
	kept := c.recent[:0]
	for _, dt := range c.recent {
		if !dt.Threat.Timestamp.Before(retainFrom) {
			kept = append(kept, dt)
		}
	}
	c.recent = kept
}
