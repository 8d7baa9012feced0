package orchestrator

import (
	"encoding/json"
	"os"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

// ExportPayload is the edge agent's on-demand data export (S2),
// grounded on original_source/cellular_security.py::export_data:
// towers, threats, and the active configuration snapshot, timestamped.
type ExportPayload struct {
	ExportTimestamp time.Time                 `json:"export_timestamp"`
	Towers          []*cellular.Tower         `json:"towers"`
	Threats         []cellular.Threat         `json:"threats"`
	Config          interface{}               `json:"config"`
}

// WriteExport marshals an ExportPayload as indented JSON to path.
func WriteExport(path string, towers []*cellular.Tower, threats []cellular.Threat, cfg interface{}) error {
	payload := ExportPayload{
		ExportTimestamp: time.Now(),
		Towers:          towers,
		Threats:         threats,
		Config:          cfg,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
