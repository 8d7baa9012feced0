package session

import (
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/correlate"
)

// BroadcastHighPriorityAlert implements correlate.Fanout: send to every
// Active session. Best-effort per spec §5 — a send failure drops that
// session from the table rather than aborting the broadcast.
func (s *Server) BroadcastHighPriorityAlert(threat correlate.DeviceThreat) {
	msg := highPriorityAlertMsg{
		Type:       msgHighPriorityAlert,
		Threat:     toThreatRecord(threat.Threat),
		AlertLevel: "URGENT",
		Message:    "High severity cellular security threat detected",
		Timestamp:  time.Now(),
	}
	s.broadcast(msg)
	s.store.RecordEvent("high_priority_alert", threat.DeviceID, map[string]interface{}{"threat_id": threat.Threat.ThreatID}, time.Now())
}

// BroadcastCoordinatedAttack implements correlate.Fanout.
func (s *Server) BroadcastCoordinatedAttack(primary correlate.DeviceThreat, related []correlate.DeviceThreat) {
	deviceSet := map[string]bool{primary.DeviceID: true}
	relatedRecords := make([]threatRecord, 0, len(related))
	for _, r := range related {
		deviceSet[r.DeviceID] = true
		relatedRecords = append(relatedRecords, toThreatRecord(r.Threat))
	}

	msg := coordinatedAttackMsg{
		Type:           msgCoordinatedAttackDetected,
		PrimaryThreat:  toThreatRecord(primary.Threat),
		RelatedThreats: relatedRecords,
		AttackPattern:  "coordinated_imsi_catcher",
		DeviceCount:    len(deviceSet),
		Message:        "Coordinated IMSI catcher activity detected across multiple devices",
		Timestamp:      time.Now(),
	}
	s.broadcast(msg)
	s.store.RecordEvent("coordinated_attack_detected", primary.DeviceID, map[string]interface{}{"device_count": len(deviceSet)}, time.Now())
}

func (s *Server) broadcast(msg interface{}) {
	var failed []string
	s.registry.Each(func(sess *Session) {
		if sess.State() != StateActive {
			return
		}
		if err := sess.send(msg); err != nil {
			failed = append(failed, sess.DeviceID())
		}
	})
	// Removal happens outside Each's read lock to avoid recursive
	// locking on Registry.mu.
	for _, id := range failed {
		s.registry.Remove(id)
	}
}

func toThreatRecord(t cellular.Threat) threatRecord {
	rec := threatRecord{
		ThreatID:    t.ThreatID,
		ThreatType:  string(t.ThreatType),
		Severity:    string(t.Severity),
		Timestamp:   t.Timestamp,
		Description: t.Description,
		Confidence:  t.Confidence,
	}
	if t.Location != nil {
		rec.Location = &locationPayload{Latitude: t.Location.Latitude, Longitude: t.Location.Longitude}
	}
	return rec
}
