package session

import (
	"encoding/json"
	"net/http"
	"time"
)

type statisticsResponse struct {
	ConnectedDevices int            `json:"connected_devices"`
	LastHour         map[string]int `json:"last_hour"`
	Last24Hours      map[string]int `json:"last_24_hours"`
	Last7Days        map[string]int `json:"last_7_days"`
	ServerUptime     float64        `json:"server_uptime"`
}

// handleStats serves the C11 statistics endpoint: threat counts by
// type over 1h/24h/7d windows plus connected-device count.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	hourly, err := s.store.ThreatCountsByType(now.Add(-time.Hour))
	if err != nil {
		http.Error(w, "statistics unavailable", http.StatusInternalServerError)
		return
	}
	daily, err := s.store.ThreatCountsByType(now.Add(-24 * time.Hour))
	if err != nil {
		http.Error(w, "statistics unavailable", http.StatusInternalServerError)
		return
	}
	weekly, err := s.store.ThreatCountsByType(now.Add(-7 * 24 * time.Hour))
	if err != nil {
		http.Error(w, "statistics unavailable", http.StatusInternalServerError)
		return
	}

	resp := statisticsResponse{
		ConnectedDevices: s.registry.Count(),
		LastHour:         hourly,
		Last24Hours:      daily,
		Last7Days:        weekly,
		ServerUptime:     time.Since(s.startTime).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type exportPayload struct {
	ExportTimestamp  time.Time      `json:"export_timestamp"`
	TotalThreats     int            `json:"total_threats"`
	ConnectedDevices int            `json:"connected_devices"`
	Threats          []threatRecord `json:"threats"`
}

// handleExport serves the S2 export operation: the last 100 threats as
// newline-free JSON.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	recent, err := s.store.RecentThreats(100)
	if err != nil {
		http.Error(w, "export unavailable", http.StatusInternalServerError)
		return
	}
	records := make([]threatRecord, 0, len(recent))
	for _, t := range recent {
		records = append(records, toThreatRecord(t))
	}
	payload := exportPayload{
		ExportTimestamp:  time.Now(),
		TotalThreats:     len(records),
		ConnectedDevices: s.registry.Count(),
		Threats:          records,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
