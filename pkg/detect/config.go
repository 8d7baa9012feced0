package detect

// Config holds the per-detector thresholds. Every field defaults to
// the value specified in SPEC_FULL.md §4; all are overridable from the
// edge agent's configuration file.
type Config struct {
	MaxPlausibleSpeedKmh    float64 // D1: km/h used to bound timing-advance change
	MetersPerTAUnit         float64 // D1: ~554m per timing-advance unit
	TAImpossibleMultiplier  float64 // D1: fire when ΔTA > multiplier * max_plausible

	RFFingerprintStdDB float64 // D2: RSRQ std threshold
	RFRatioHigh        float64 // D2: RSRP/RSRQ ratio upper bound
	RFRatioLow         float64 // D2: RSRP/RSRQ ratio lower bound

	PCIMin int // D3
	PCIMax int // D3
	MaxNeighborCells int // D3

	PowerControlJumpDB float64 // D5

	JammingSINRDB float64 // D6

	SignalJumpDB float64 // D7

	TowerChurnThreshold int // D9

	ImpossibleSpeedKmh float64 // D10

	SignalStdAnomalyDB float64 // D11
}

// DefaultConfig returns the thresholds specified in SPEC_FULL.md §4.
func DefaultConfig() Config {
	return Config{
		MaxPlausibleSpeedKmh:   300,
		MetersPerTAUnit:        554,
		TAImpossibleMultiplier: 2,

		RFFingerprintStdDB: 10,
		RFRatioHigh:        50,
		RFRatioLow:         0.1,

		PCIMin:           0,
		PCIMax:           503,
		MaxNeighborCells: 20,

		PowerControlJumpDB: 10,

		JammingSINRDB: -10,

		SignalJumpDB: 20,

		TowerChurnThreshold: 5,

		ImpossibleSpeedKmh: 500,

		SignalStdAnomalyDB: 15,
	}
}
