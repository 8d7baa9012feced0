// Package store implements the Server Threat Store (C9): three SQL
// relations (cellular_threats, device_sessions, monitoring_events) over
// database/sql + mattn/go-sqlite3, grounded on
// pkg/gps/local_cell_database.go's sql.Open + CREATE TABLE IF NOT
// EXISTS + indexed-query conventions.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

const schema = `
CREATE TABLE IF NOT EXISTS cellular_threats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id TEXT NOT NULL,
	threat_id TEXT NOT NULL UNIQUE,
	threat_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	location_lat REAL,
	location_lon REAL,
	cellular_data_blob TEXT,
	description TEXT,
	confidence REAL NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cellular_threats_device ON cellular_threats(device_id);
CREATE INDEX IF NOT EXISTS idx_cellular_threats_timestamp ON cellular_threats(timestamp);
CREATE INDEX IF NOT EXISTS idx_cellular_threats_type ON cellular_threats(threat_type);

CREATE TABLE IF NOT EXISTS device_sessions (
	device_id TEXT PRIMARY KEY,
	device_name TEXT NOT NULL,
	last_seen DATETIME NOT NULL,
	connection_count INTEGER NOT NULL DEFAULT 0,
	threat_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS monitoring_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	device_id TEXT NOT NULL,
	event_data_blob TEXT,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitoring_events_device ON monitoring_events(device_id);
`

// Store wraps the SQL connection and exposes the operations the
// session layer and correlator need.
type Store struct {
	db *sql.DB
}

// Open creates (if absent) the database file at path, applies schema,
// and limits the connection pool to 1 per spec §5's single-writer
// discipline for the store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// SaveThreat inserts a threat, or replaces the existing row with the
// same threat_id (idempotent re-submission), per spec §4.7/§8.
func (s *Store) SaveThreat(deviceID string, t cellular.Threat) error {
	var lat, lon sql.NullFloat64
	if t.Location != nil {
		lat = sql.NullFloat64{Float64: t.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: t.Location.Longitude, Valid: true}
	}

	evidence, err := json.Marshal(t.Evidence)
	if err != nil {
		return fmt.Errorf("store: marshal evidence: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO cellular_threats
			(device_id, threat_id, threat_type, severity, timestamp, location_lat, location_lon, cellular_data_blob, description, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(threat_id) DO UPDATE SET
			device_id=excluded.device_id,
			threat_type=excluded.threat_type,
			severity=excluded.severity,
			timestamp=excluded.timestamp,
			location_lat=excluded.location_lat,
			location_lon=excluded.location_lon,
			cellular_data_blob=excluded.cellular_data_blob,
			description=excluded.description,
			confidence=excluded.confidence
	`,
		deviceID, t.ThreatID, string(t.ThreatType), string(t.Severity), t.Timestamp,
		lat, lon, string(evidence), t.Description, t.Confidence, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: save threat: %w", err)
	}
	return nil
}

// ThreatByID looks up a persisted threat by threat_id.
func (s *Store) ThreatByID(threatID string) (*cellular.Threat, string, error) {
	row := s.db.QueryRow(`
		SELECT device_id, threat_id, threat_type, severity, timestamp, location_lat, location_lon, cellular_data_blob, description, confidence
		FROM cellular_threats WHERE threat_id = ?`, threatID)

	var deviceID, tType, severity, blob, description string
	var ts time.Time
	var lat, lon sql.NullFloat64
	var confidence float64
	var tid string
	if err := row.Scan(&deviceID, &tid, &tType, &severity, &ts, &lat, &lon, &blob, &description, &confidence); err != nil {
		if err == sql.ErrNoRows {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("store: scan threat: %w", err)
	}

	var evidence map[string]interface{}
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), &evidence); err != nil {
			return nil, "", fmt.Errorf("store: unmarshal evidence: %w", err)
		}
	}

	t := &cellular.Threat{
		ThreatID:    tid,
		ThreatType:  cellular.ThreatType(tType),
		Severity:    cellular.Severity(severity),
		Timestamp:   ts,
		Description: description,
		Evidence:    evidence,
		Confidence:  confidence,
	}
	if lat.Valid && lon.Valid {
		t.Location = &cellular.Location{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return t, deviceID, nil
}

// ThreatCountSince counts persisted threats with timestamp >= since.
func (s *Store) ThreatCountSince(since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cellular_threats WHERE timestamp >= ?`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count threats: %w", err)
	}
	return count, nil
}

// ThreatCountsByType returns a count per threat_type for threats with
// timestamp >= since, for the statistics endpoint (C11).
func (s *Store) ThreatCountsByType(since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT threat_type, COUNT(*) FROM cellular_threats
		WHERE timestamp >= ? GROUP BY threat_type`, since)
	if err != nil {
		return nil, fmt.Errorf("store: threat counts by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tType string
		var count int
		if err := rows.Scan(&tType, &count); err != nil {
			return nil, fmt.Errorf("store: scan threat count: %w", err)
		}
		counts[tType] = count
	}
	return counts, rows.Err()
}

// RecentThreats returns the most recent limit threats, newest first,
// for the export operation (S2).
func (s *Store) RecentThreats(limit int) ([]cellular.Threat, error) {
	rows, err := s.db.Query(`
		SELECT threat_id, threat_type, severity, timestamp, location_lat, location_lon, cellular_data_blob, description, confidence
		FROM cellular_threats ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent threats: %w", err)
	}
	defer rows.Close()

	var out []cellular.Threat
	for rows.Next() {
		var tid, tType, severity, blob, description string
		var ts time.Time
		var lat, lon sql.NullFloat64
		var confidence float64
		if err := rows.Scan(&tid, &tType, &severity, &ts, &lat, &lon, &blob, &description, &confidence); err != nil {
			return nil, fmt.Errorf("store: scan recent threat: %w", err)
		}
		var evidence map[string]interface{}
		if blob != "" {
			json.Unmarshal([]byte(blob), &evidence)
		}
		t := cellular.Threat{
			ThreatID:    tid,
			ThreatType:  cellular.ThreatType(tType),
			Severity:    cellular.Severity(severity),
			Timestamp:   ts,
			Description: description,
			Evidence:    evidence,
			Confidence:  confidence,
		}
		if lat.Valid && lon.Valid {
			t.Location = &cellular.Location{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertDeviceSession registers a device on connect: increments
// connection_count by 1 on re-register and preserves threat_count, per
// spec §4.7.
func (s *Store) UpsertDeviceSession(deviceID, deviceName string, lastSeen time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO device_sessions (device_id, device_name, last_seen, connection_count, threat_count)
		VALUES (?, ?, ?, 1, 0)
		ON CONFLICT(device_id) DO UPDATE SET
			device_name=excluded.device_name,
			last_seen=excluded.last_seen,
			connection_count=connection_count + 1
	`, deviceID, deviceName, lastSeen)
	if err != nil {
		return fmt.Errorf("store: upsert device session: %w", err)
	}
	return nil
}

// TouchDeviceSession updates last_seen on heartbeat.
func (s *Store) TouchDeviceSession(deviceID string, lastSeen time.Time) error {
	_, err := s.db.Exec(`UPDATE device_sessions SET last_seen = ? WHERE device_id = ?`, lastSeen, deviceID)
	if err != nil {
		return fmt.Errorf("store: touch device session: %w", err)
	}
	return nil
}

// IncrementThreatCount bumps a device's threat_count by one.
func (s *Store) IncrementThreatCount(deviceID string) error {
	_, err := s.db.Exec(`UPDATE device_sessions SET threat_count = threat_count + 1 WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("store: increment threat count: %w", err)
	}
	return nil
}

// ConnectedDeviceCount counts devices whose last_seen is within the
// staleness window.
func (s *Store) ConnectedDeviceCount(staleAfter time.Duration) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM device_sessions WHERE last_seen >= ?`, time.Now().Add(-staleAfter)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: connected device count: %w", err)
	}
	return count, nil
}

// RecordEvent inserts a monitoring_events row (S5 audit trail).
func (s *Store) RecordEvent(eventType, deviceID string, data map[string]interface{}, ts time.Time) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: marshal event data: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO monitoring_events (event_type, device_id, event_data_blob, timestamp)
		VALUES (?, ?, ?, ?)
	`, eventType, deviceID, string(blob), ts)
	if err != nil {
		return fmt.Errorf("store: record event: %w", err)
	}
	return nil
}
