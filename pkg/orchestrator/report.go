package orchestrator

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

// Report is the human-readable summary produced by the --report flag
// (S1), grounded on
// original_source/cellular_security.py::generate_report.
type Report struct {
	GeneratedAt      time.Time                    `json:"generated_at"`
	TowerCount       int                          `json:"tower_count"`
	TowersByTech     map[cellular.TechTag]int     `json:"towers_by_technology"`
	ThreatCounts     map[cellular.ThreatType]int  `json:"threat_counts_by_type"`
	RecentHighSeverityThreats []cellular.Threat   `json:"recent_high_severity_threats"`
}

// recentThreatsLimit bounds how many high-severity threats the report
// carries.
const recentThreatsLimit = 20

// Report summarizes the orchestrator's accumulated tower and threat
// state. seenThreats is every threat emitted since startup, oldest
// first.
func (o *Orchestrator) Report(seenThreats []cellular.Threat) Report {
	counts := make(map[cellular.ThreatType]int)
	var highSeverity []cellular.Threat
	for _, t := range seenThreats {
		counts[t.ThreatType]++
		if t.Severity == cellular.SeverityHigh || t.Severity == cellular.SeverityCritical {
			highSeverity = append(highSeverity, t)
		}
	}
	sort.Slice(highSeverity, func(i, j int) bool {
		return highSeverity[i].Timestamp.After(highSeverity[j].Timestamp)
	})
	if len(highSeverity) > recentThreatsLimit {
		highSeverity = highSeverity[:recentThreatsLimit]
	}

	return Report{
		GeneratedAt:               time.Now(),
		TowerCount:                o.detectCtx.Towers.Count(),
		TowersByTech:              o.detectCtx.Towers.TechnologyCounts(),
		ThreatCounts:              counts,
		RecentHighSeverityThreats: highSeverity,
	}
}

// WriteReport marshals r as indented JSON to path.
func WriteReport(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
