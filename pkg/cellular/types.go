// Package cellular defines the domain types shared by every detector,
// the signature matcher, the anomaly model, and the server: towers,
// measurements, threats and their closed enumerations.
package cellular

import "time"

// TechTag is the closed set of radio access technologies a Measurement
// can report.
type TechTag string

const (
	TechUnknown TechTag = "Unknown"
	Tech2G      TechTag = "2G"
	TechGSM     TechTag = "GSM"
	Tech3G      TechTag = "3G"
	Tech4G      TechTag = "4G"
	TechLTE     TechTag = "LTE"
	Tech5G      TechTag = "5G"
)

// EncryptionTag is the closed set of GSM/UMTS/LTE ciphering suites a
// Measurement can report.
type EncryptionTag string

const (
	EncA53     EncryptionTag = "A5/3"
	EncA51     EncryptionTag = "A5/1"
	EncA50     EncryptionTag = "A5/0"
	EncNone    EncryptionTag = "None"
	EncUnknown EncryptionTag = "Unknown"
)

// Severity is the closed set of threat severities.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ThreatType enumerates every threat type any detector, the signature
// matcher, or the anomaly model can emit.
type ThreatType string

const (
	ThreatTimingAdvanceZero           ThreatType = "TIMING_ADVANCE_ZERO"
	ThreatImpossibleTAChange          ThreatType = "IMPOSSIBLE_TIMING_ADVANCE_CHANGE"
	ThreatRFFingerprintAnomaly        ThreatType = "RF_FINGERPRINT_ANOMALY"
	ThreatSuspiciousRFSignature       ThreatType = "SUSPICIOUS_RF_SIGNATURE"
	ThreatInvalidPCI                  ThreatType = "INVALID_PHYSICAL_CELL_ID"
	ThreatNoNeighborCells             ThreatType = "NO_NEIGHBOR_CELLS"
	ThreatExcessiveNeighborCells      ThreatType = "EXCESSIVE_NEIGHBOR_CELLS"
	ThreatFrequencyOutOfBand          ThreatType = "FREQUENCY_OUT_OF_BAND"
	ThreatSuspiciousFrequencyHopping  ThreatType = "SUSPICIOUS_FREQUENCY_HOPPING"
	ThreatSuspiciousPowerControl      ThreatType = "SUSPICIOUS_POWER_CONTROL"
	ThreatPotentialJamming            ThreatType = "POTENTIAL_JAMMING"
	ThreatIMSICatcherSuspected        ThreatType = "IMSI_CATCHER_SUSPECTED"
	ThreatEncryptionDowngrade         ThreatType = "ENCRYPTION_DOWNGRADE"
	ThreatForcedTechnologyDowngrade   ThreatType = "FORCED_TECHNOLOGY_DOWNGRADE"
	ThreatExcessiveTowerChanges       ThreatType = "EXCESSIVE_TOWER_CHANGES"
	ThreatImpossibleMovementSpeed     ThreatType = "IMPOSSIBLE_MOVEMENT_SPEED"
	ThreatSignalStrengthAnomaly       ThreatType = "SIGNAL_STRENGTH_ANOMALY"
	ThreatSophisticatedIMSICatcher    ThreatType = "SOPHISTICATED_IMSI_CATCHER"
	ThreatMLSignalManipulation        ThreatType = "ML_SIGNAL_MANIPULATION"
	ThreatMLFrequentHandovers         ThreatType = "ML_FREQUENT_HANDOVERS"
	ThreatMLCloseRangeThreat          ThreatType = "ML_CLOSE_RANGE_THREAT"
	ThreatMLSignalInstability         ThreatType = "ML_SIGNAL_INSTABILITY"
	ThreatMLGeneralAnomaly            ThreatType = "ML_GENERAL_ANOMALY"
	ThreatMLBehavioralAnomaly         ThreatType = "ML_BEHAVIORAL_ANOMALY"
)

// Location is a geodetic position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TowerID is the (cell_id, LAC) identity key of a Tower.
type TowerID struct {
	CellID string
	LAC    string
}

func (t TowerID) String() string {
	return t.CellID + "|" + t.LAC
}

// Tower represents a cellular base station. Identity fields are
// immutable after first insertion; LastSeen is monotonically
// non-decreasing.
type Tower struct {
	CellID     string
	LAC        string
	MCC        string
	MNC        string
	Technology TechTag
	FrequencyMHz *float64
	Position     *Location
	FirstSeen    time.Time
	LastSeen     time.Time

	// SignalHistory is capped at 1,000 entries (dBm), oldest evicted first.
	SignalHistory []int
}

// ID returns the tower's identity key.
func (t *Tower) ID() TowerID {
	return TowerID{CellID: t.CellID, LAC: t.LAC}
}

// NeighborCell is a neighbour-tower descriptor attached to a Measurement.
type NeighborCell struct {
	CellID         string
	SignalStrength int
}

// Measurement is a timestamped cellular radio snapshot. The Advanced
// fields are all optional; detectors that need one skip the sample when
// it is absent (a nil pointer).
type Measurement struct {
	Timestamp      time.Time
	Tower          Tower
	SignalStrength int // dBm
	SignalQuality  *int
	Technology     TechTag
	Encryption     EncryptionTag
	ServingTower   bool
	NeighborCells  []NeighborCell
	Position       *Location

	Advanced *AdvancedFields
}

// AdvancedFields carries the optional radio-layer measurements used by
// D1-D6 and the anomaly model's richer features.
type AdvancedFields struct {
	TimingAdvance      *int     // 0-63
	FrameNumber        *int
	ARFCN              *int
	PCI                *int     // 0-503
	RSRP               *float64 // dBm
	RSRQ               *float64 // dB
	SINR               *float64 // dB
	CQI                *int
	UplinkPowerDBm     *int
	DownlinkFrequencyMHz *float64
	UplinkFrequencyMHz   *float64
	Band                 string
	CABands              []string
}

// TimingAdvance returns the measurement's timing advance and whether it
// is present.
func (m *Measurement) TimingAdvance() (int, bool) {
	if m.Advanced == nil || m.Advanced.TimingAdvance == nil {
		return 0, false
	}
	return *m.Advanced.TimingAdvance, true
}

// Threat is a single detection emitted by a detector, the signature
// matcher, or the anomaly model.
type Threat struct {
	ThreatID         string
	ThreatType       ThreatType
	Severity         Severity
	Timestamp        time.Time
	Description      string
	Evidence         map[string]interface{}
	Confidence       float64
	Location         *Location
	AffectedTowers   []string
	MitigationAdvice string
}

// ProtocolDeviation is a closed tag describing a rogue-BTS behavioral
// fingerprint. fake_paging and location_update_reject are reserved: the
// signature matcher parses but never scores them.
type ProtocolDeviation string

const (
	DeviationInvalidLAC              ProtocolDeviation = "invalid_lac"
	DeviationForced2G                ProtocolDeviation = "forced_2g"
	DeviationEncryptionDowngrade     ProtocolDeviation = "encryption_downgrade"
	DeviationFakePaging              ProtocolDeviation = "fake_paging"
	DeviationLocationUpdateReject    ProtocolDeviation = "location_update_reject"
)

// PowerVariationClass is the qualitative power-variation classification
// used by signature profiles.
type PowerVariationClass string

const (
	PowerVariationHigh   PowerVariationClass = "high"
	PowerVariationMedium PowerVariationClass = "medium"
	PowerVariationLow    PowerVariationClass = "low"
)

// Signature is a named rogue-BTS profile scored by the signature
// matcher.
type Signature struct {
	Name                string
	TimingAdvanceZeroPattern []int // bitmask-as-slice, e.g. [0,1,0,1]
	PowerVariationClass      PowerVariationClass
	ProtocolDeviations       []ProtocolDeviation
}

// EncryptionRank ranks encryption tags by strength for downgrade
// detection. Unknown ranks below None so a transition into Unknown is
// never treated as a downgrade.
func EncryptionRank(tag EncryptionTag) int {
	switch tag {
	case EncA53:
		return 3
	case EncA51:
		return 2
	case EncA50:
		return 1
	case EncNone:
		return 0
	default:
		return -1
	}
}

// TechnologyScore converts a technology tag to the numerical score used
// by the anomaly model's feature vector.
func TechnologyScore(tag TechTag) float64 {
	switch tag {
	case Tech5G:
		return 5.0
	case Tech4G, TechLTE:
		return 4.0
	case Tech3G:
		return 3.0
	case Tech2G:
		return 2.0
	case TechGSM:
		return 1.0
	default:
		return 0.0
	}
}

// EncryptionScore converts an encryption tag to the numerical score used
// by the anomaly model's feature vector (distinct scale from
// EncryptionRank, matching the original's separate enc_scores table).
func EncryptionScore(tag EncryptionTag) float64 {
	switch tag {
	case EncA53:
		return 3.0
	case EncA51:
		return 1.0
	default:
		return 0.0
	}
}
