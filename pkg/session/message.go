package session

import "time"

// messageType is the required "type" discriminator on every wire
// frame, per spec §6's message table.
type messageType string

const (
	msgRegisterDevice           messageType = "register_device"
	msgRegistrationSuccess      messageType = "registration_success"
	msgCellularThreat           messageType = "cellular_threat"
	msgThreatAcknowledged       messageType = "threat_acknowledged"
	msgHeartbeat                messageType = "heartbeat"
	msgHeartbeatAck             messageType = "heartbeat_ack"
	msgGetStatus                messageType = "get_status"
	msgStatusResponse           messageType = "status_response"
	msgHighPriorityAlert        messageType = "high_priority_alert"
	msgCoordinatedAttackDetected messageType = "coordinated_attack_detected"
	msgError                    messageType = "error"
)

// envelope is decoded first to read the discriminator before decoding
// the full payload into a type-specific struct.
type envelope struct {
	Type messageType `json:"type"`
}

type registerDeviceMsg struct {
	Type     messageType `json:"type"`
	DeviceID string      `json:"device_id"`
	DeviceName string    `json:"device_name"`
	APIKey   string      `json:"api_key"`
}

type registrationSuccessMsg struct {
	Type             messageType `json:"type"`
	DeviceID         string      `json:"device_id"`
	ServerTime       time.Time   `json:"server_time"`
	MonitoringStatus string      `json:"monitoring_status"`
}

type locationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type cellularThreatMsg struct {
	Type         messageType            `json:"type"`
	ThreatID     string                 `json:"threat_id"`
	ThreatType   string                 `json:"threat_type"`
	Severity     string                 `json:"severity"`
	Timestamp    time.Time              `json:"timestamp"`
	Location     *locationPayload       `json:"location,omitempty"`
	CellularData map[string]interface{} `json:"cellular_data,omitempty"`
	Description  string                 `json:"description"`
	Confidence   float64                `json:"confidence"`
}

type threatAcknowledgedMsg struct {
	Type        messageType `json:"type"`
	ThreatID    string      `json:"threat_id"`
	ProcessedAt time.Time   `json:"processed_at"`
}

type heartbeatAckMsg struct {
	Type      messageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

type statusResponseMsg struct {
	Type              messageType `json:"type"`
	ConnectedDevices  int         `json:"connected_devices"`
	TotalThreatsToday int         `json:"total_threats_today"`
	ServerUptime      float64     `json:"server_uptime"`
	MonitoringActive  bool        `json:"monitoring_active"`
}

type threatRecord struct {
	ThreatID    string           `json:"threat_id"`
	ThreatType  string           `json:"threat_type"`
	Severity    string           `json:"severity"`
	Timestamp   time.Time        `json:"timestamp"`
	Location    *locationPayload `json:"location,omitempty"`
	Description string           `json:"description"`
	Confidence  float64          `json:"confidence"`
}

type highPriorityAlertMsg struct {
	Type       messageType  `json:"type"`
	Threat     threatRecord `json:"threat"`
	AlertLevel string       `json:"alert_level"`
	Message    string       `json:"message"`
	Timestamp  time.Time    `json:"timestamp"`
}

type coordinatedAttackMsg struct {
	Type           messageType    `json:"type"`
	PrimaryThreat  threatRecord   `json:"primary_threat"`
	RelatedThreats []threatRecord `json:"related_threats"`
	AttackPattern  string         `json:"attack_pattern"`
	DeviceCount    int            `json:"device_count"`
	Message        string         `json:"message"`
	Timestamp      time.Time      `json:"timestamp"`
}

type errorMsg struct {
	Type      messageType `json:"type"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}
