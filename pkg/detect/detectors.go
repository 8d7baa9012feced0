package detect

import (
	"math"
	"time"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/stats"
)

// detectorFunc is the pure-function contract every D1-D11 check
// implements: (sample, history, stats, config) -> []Threat. history is
// the buffer's contents *including* sample as its last element (the
// caller pushes before calling RunDetectors).
type detectorFunc func(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat

// detectors lists every rule-based check in the order they run. None
// depend on another's output; every one that matches emits.
var detectors = []detectorFunc{
	detectTimingAdvance,
	detectRFFingerprint,
	detectProtocol,
	detectFrequency,
	detectPowerControl,
	detectJamming,
	detectIMSICatcherBasic,
	detectEncryptionTransition,
	detectTowerChurn,
	detectImpossibleMovement,
	detectSignalVariation,
}

// RunDetectors pushes sample into ctx.Buffer and ctx.Towers, rolls the
// streaming statistics forward, then runs every detector against the
// resulting history. Detectors never deduplicate against one another.
func RunDetectors(ctx *DetectorContext, sample cellular.Measurement) []cellular.Threat {
	ctx.Buffer.Push(sample)
	ctx.Towers.Observe(&sample)
	ctx.Stats.Push(stats.ChannelSignal, float64(sample.SignalStrength))
	if ta, ok := sample.TimingAdvance(); ok {
		ctx.Stats.Push(stats.ChannelTimingAdvance, float64(ta))
	}
	if sample.Advanced != nil && sample.Advanced.UplinkPowerDBm != nil {
		ctx.Stats.Push(stats.ChannelUplinkPower, float64(*sample.Advanced.UplinkPowerDBm))
	}

	history := ctx.Buffer.All()

	var threats []cellular.Threat
	for _, d := range detectors {
		threats = append(threats, d(ctx, &sample, history)...)
	}
	return threats
}

func newThreat(detector string, t cellular.ThreatType, sev cellular.Severity, ts time.Time, description string, evidence map[string]interface{}, confidence float64, loc *cellular.Location) cellular.Threat {
	return cellular.Threat{
		ThreatID:    cellular.NewThreatID(detector, t, ts),
		ThreatType:  t,
		Severity:    sev,
		Timestamp:   ts,
		Description: description,
		Evidence:    evidence,
		Confidence:  confidence,
		Location:    loc,
	}
}

func previousOf(history []cellular.Measurement) (cellular.Measurement, bool) {
	if len(history) < 2 {
		return cellular.Measurement{}, false
	}
	return history[len(history)-2], true
}

// D1 Timing-Advance anomalies.
func detectTimingAdvance(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat

	ta, ok := sample.TimingAdvance()
	if !ok {
		return out
	}

	if ta == 0 {
		out = append(out, newThreat("D1", cellular.ThreatTimingAdvanceZero, cellular.SeverityMedium, sample.Timestamp,
			"Timing advance reported as zero",
			map[string]interface{}{"timing_advance": ta}, 0.6, sample.Position))
	}

	prev, ok := previousOf(history)
	if !ok {
		return out
	}
	prevTA, ok := prev.TimingAdvance()
	if !ok {
		return out
	}

	dt := sample.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 {
		return out
	}
	dTA := math.Abs(float64(ta - prevTA))
	metersPerSecond := ctx.Config.MaxPlausibleSpeedKmh / 3.6
	maxPlausible := (metersPerSecond * dt) / ctx.Config.MetersPerTAUnit
	if dTA > ctx.Config.TAImpossibleMultiplier*maxPlausible {
		out = append(out, newThreat("D1", cellular.ThreatImpossibleTAChange, cellular.SeverityHigh, sample.Timestamp,
			"Timing advance changed faster than physically plausible",
			map[string]interface{}{
				"delta_ta":      dTA,
				"delta_t_s":     dt,
				"max_plausible": maxPlausible,
			}, 0.9, sample.Position))
	}
	return out
}

// D2 RF-fingerprint anomalies.
func detectRFFingerprint(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat

	if len(history) >= 10 {
		window := history[len(history)-10:]
		var rsrq []float64
		for _, m := range window {
			if m.Advanced != nil && m.Advanced.RSRQ != nil {
				rsrq = append(rsrq, *m.Advanced.RSRQ)
			}
		}
		if len(rsrq) >= 2 {
			std := stats.PopulationStd(rsrq)
			if std > ctx.Config.RFFingerprintStdDB {
				out = append(out, newThreat("D2", cellular.ThreatRFFingerprintAnomaly, cellular.SeverityMedium, sample.Timestamp,
					"Unusual RF signal quality variation",
					map[string]interface{}{"rsrq_std": std, "recent_rsrq": rsrq}, 0.5, sample.Position))
			}
		}
	}

	if sample.Advanced != nil && sample.Advanced.RSRP != nil && sample.Advanced.RSRQ != nil && *sample.Advanced.RSRQ != 0 {
		ratio := *sample.Advanced.RSRP / *sample.Advanced.RSRQ
		if ratio > ctx.Config.RFRatioHigh || ratio < ctx.Config.RFRatioLow {
			out = append(out, newThreat("D2", cellular.ThreatSuspiciousRFSignature, cellular.SeverityMedium, sample.Timestamp,
				"Suspicious RSRP/RSRQ ratio",
				map[string]interface{}{"rsrp": *sample.Advanced.RSRP, "rsrq": *sample.Advanced.RSRQ, "ratio": ratio}, 0.6, sample.Position))
		}
	}
	return out
}

// D3 Protocol anomalies.
func detectProtocol(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat

	if sample.Advanced != nil && sample.Advanced.PCI != nil {
		pci := *sample.Advanced.PCI
		if pci < ctx.Config.PCIMin || pci > ctx.Config.PCIMax {
			out = append(out, newThreat("D3", cellular.ThreatInvalidPCI, cellular.SeverityHigh, sample.Timestamp,
				"Physical cell id outside valid range",
				map[string]interface{}{"pci": pci}, 0.9, sample.Position))
		}
	}

	if sample.NeighborCells != nil {
		n := len(sample.NeighborCells)
		if n == 0 {
			out = append(out, newThreat("D3", cellular.ThreatNoNeighborCells, cellular.SeverityMedium, sample.Timestamp,
				"No neighbour cells reported",
				map[string]interface{}{"neighbor_count": n}, 0.4, sample.Position))
		} else if n > ctx.Config.MaxNeighborCells {
			out = append(out, newThreat("D3", cellular.ThreatExcessiveNeighborCells, cellular.SeverityMedium, sample.Timestamp,
				"Excessive neighbour cell count",
				map[string]interface{}{"neighbor_count": n}, 0.5, sample.Position))
		}
	}
	return out
}

type band struct {
	name     string
	minMHz   float64
	maxMHz   float64
}

// bands are the accepted downlink frequency ranges, grounded on
// advanced_cellular_security.py's LTE band table.
var bands = []band{
	{"B1", 1920, 1980},
	{"B3", 1710, 1785},
	{"B7", 2500, 2570},
	{"B8", 880, 915},
	{"B20", 832, 862},
}

// D4 Frequency anomalies.
func detectFrequency(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat

	if sample.Advanced != nil && sample.Advanced.DownlinkFrequencyMHz != nil {
		f := *sample.Advanced.DownlinkFrequencyMHz
		inBand := false
		for _, b := range bands {
			if f >= b.minMHz && f <= b.maxMHz {
				inBand = true
				break
			}
		}
		if !inBand {
			out = append(out, newThreat("D4", cellular.ThreatFrequencyOutOfBand, cellular.SeverityHigh, sample.Timestamp,
				"Downlink frequency outside any accepted band",
				map[string]interface{}{"downlink_frequency_mhz": f}, 0.8, sample.Position))
		}
	}

	var recentFreq []float64
	for i := len(history) - 1; i >= 0 && len(recentFreq) < 5; i-- {
		m := history[i]
		if m.Advanced != nil && m.Advanced.DownlinkFrequencyMHz != nil {
			recentFreq = append(recentFreq, *m.Advanced.DownlinkFrequencyMHz)
		}
	}
	if len(recentFreq) >= 3 && allDistinct(recentFreq) {
		out = append(out, newThreat("D4", cellular.ThreatSuspiciousFrequencyHopping, cellular.SeverityMedium, sample.Timestamp,
			"Frequency changed on every recent sample",
			map[string]interface{}{"recent_frequencies_mhz": recentFreq}, 0.6, sample.Position))
	}
	return out
}

func allDistinct(values []float64) bool {
	seen := make(map[float64]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// D5 Power-control anomalies.
func detectPowerControl(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat

	var recentPower []float64
	for i := len(history) - 1; i >= 0 && len(recentPower) < 3; i-- {
		m := history[i]
		if m.Advanced != nil && m.Advanced.UplinkPowerDBm != nil {
			recentPower = append([]float64{float64(*m.Advanced.UplinkPowerDBm)}, recentPower...)
		}
	}
	if len(recentPower) < 2 {
		return out
	}
	maxDiff := 0.0
	for i := 1; i < len(recentPower); i++ {
		d := math.Abs(recentPower[i] - recentPower[i-1])
		if d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff > ctx.Config.PowerControlJumpDB {
		out = append(out, newThreat("D5", cellular.ThreatSuspiciousPowerControl, cellular.SeverityMedium, sample.Timestamp,
			"Uplink power changed sharply between recent samples",
			map[string]interface{}{"recent_uplink_power_dbm": recentPower, "max_delta_db": maxDiff}, 0.5, sample.Position))
	}
	return out
}

// D6 Jamming.
func detectJamming(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat
	if sample.Advanced != nil && sample.Advanced.SINR != nil && *sample.Advanced.SINR < ctx.Config.JammingSINRDB {
		out = append(out, newThreat("D6", cellular.ThreatPotentialJamming, cellular.SeverityHigh, sample.Timestamp,
			"SINR below jamming threshold",
			map[string]interface{}{"sinr_db": *sample.Advanced.SINR}, 0.7, sample.Position))
	}
	return out
}

// D7 Basic IMSI-catcher indicators.
func detectIMSICatcherBasic(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat

	if prev, ok := previousOf(history); ok {
		deltaSignal := float64(sample.SignalStrength - prev.SignalStrength)
		if deltaSignal > ctx.Config.SignalJumpDB {
			out = append(out, newThreat("D7", cellular.ThreatIMSICatcherSuspected, cellular.SeverityHigh, sample.Timestamp,
				"Signal strength jumped sharply",
				map[string]interface{}{"delta_signal_db": deltaSignal}, 0.7, sample.Position))
		}
	}

	if sample.Encryption == cellular.EncNone || sample.Encryption == cellular.EncA50 {
		out = append(out, newThreat("D7", cellular.ThreatEncryptionDowngrade, cellular.SeverityHigh, sample.Timestamp,
			"No usable encryption in effect",
			map[string]interface{}{"encryption": sample.Encryption}, 0.8, sample.Position))
	}

	if sample.Technology == cellular.Tech2G || sample.Technology == cellular.TechGSM {
		window := lastN(history, 6)
		for _, m := range window[:len(window)-1] {
			if m.Technology == cellular.Tech4G || m.Technology == cellular.TechLTE || m.Technology == cellular.Tech5G {
				out = append(out, newThreat("D7", cellular.ThreatForcedTechnologyDowngrade, cellular.SeverityMedium, sample.Timestamp,
					"Serving technology dropped to 2G/GSM after recent higher-generation service",
					map[string]interface{}{"current_technology": sample.Technology, "prior_technology": m.Technology}, 0.6, sample.Position))
				break
			}
		}
	}
	return out
}

// lastN returns up to n trailing elements of history, oldest first.
func lastN(history []cellular.Measurement, n int) []cellular.Measurement {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// D8 Encryption transitions.
func detectEncryptionTransition(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat
	prev, ok := previousOf(history)
	if !ok {
		return out
	}
	prevRank := cellular.EncryptionRank(prev.Encryption)
	currRank := cellular.EncryptionRank(sample.Encryption)
	if currRank >= 0 && currRank < prevRank {
		out = append(out, newThreat("D8", cellular.ThreatEncryptionDowngrade, cellular.SeverityMedium, sample.Timestamp,
			"Encryption strength decreased between consecutive samples",
			map[string]interface{}{"previous_encryption": prev.Encryption, "current_encryption": sample.Encryption}, 0.7, sample.Position))
	}
	return out
}

// D9 Tower churn.
func detectTowerChurn(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat
	window := lastN(history, 10)
	distinct := make(map[string]bool)
	for _, m := range window {
		distinct[m.Tower.ID().String()] = true
	}
	if len(distinct) > ctx.Config.TowerChurnThreshold {
		out = append(out, newThreat("D9", cellular.ThreatExcessiveTowerChanges, cellular.SeverityMedium, sample.Timestamp,
			"Too many distinct towers seen in a short window",
			map[string]interface{}{"distinct_towers": len(distinct), "window_size": len(window)}, 0.6, sample.Position))
	}
	return out
}

// D10 Location impossibility.
func detectImpossibleMovement(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat
	prev, ok := previousOf(history)
	if !ok || prev.Position == nil || sample.Position == nil {
		return out
	}
	hours := sample.Timestamp.Sub(prev.Timestamp).Hours()
	if hours <= 0 {
		return out
	}
	distanceKm := HaversineKm(prev.Position.Latitude, prev.Position.Longitude, sample.Position.Latitude, sample.Position.Longitude)
	speed := distanceKm / hours
	if speed > ctx.Config.ImpossibleSpeedKmh {
		out = append(out, newThreat("D10", cellular.ThreatImpossibleMovementSpeed, cellular.SeverityHigh, sample.Timestamp,
			"Implied movement speed between consecutive fixes is physically impossible",
			map[string]interface{}{"distance_km": distanceKm, "elapsed_hours": hours, "speed_kmh": speed}, 0.9, sample.Position))
	}
	return out
}

// D11 Signal-variation anomaly.
func detectSignalVariation(ctx *DetectorContext, sample *cellular.Measurement, history []cellular.Measurement) []cellular.Threat {
	var out []cellular.Threat
	if len(history) < 10 {
		return out
	}
	window := lastN(history, 10)
	values := make([]float64, len(window))
	for i, m := range window {
		values[i] = float64(m.SignalStrength)
	}
	std := stats.PopulationStd(values)
	if std > ctx.Config.SignalStdAnomalyDB {
		out = append(out, newThreat("D11", cellular.ThreatSignalStrengthAnomaly, cellular.SeverityMedium, sample.Timestamp,
			"Signal strength unusually volatile over recent samples",
			map[string]interface{}{"signal_std": std, "recent_signal": values}, 0.5, sample.Position))
	}
	return out
}
