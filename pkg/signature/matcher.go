// Package signature implements the Signature Matcher (C5): a catalog of
// known rogue-BTS fingerprints scored against the detection buffer,
// grounded on
// original_source/advanced_cellular_security.py::_load_known_imsi_catchers
// and _detect_sophisticated_imsi_catchers.
package signature

import (
	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/stats"
)

// minBufferedSamples is the minimum buffer depth required before the
// matcher will score anything.
const minBufferedSamples = 20

// scoreThreshold is the similarity score above which a match becomes a
// SOPHISTICATED_IMSI_CATCHER threat.
const scoreThreshold = 0.85

// Catalog is the built-in set of known rogue-BTS signatures.
var Catalog = []cellular.Signature{
	{
		Name:                     "StingRay",
		TimingAdvanceZeroPattern: []int{0, 1, 0, 1},
		PowerVariationClass:      cellular.PowerVariationHigh,
		ProtocolDeviations:       []cellular.ProtocolDeviation{cellular.DeviationInvalidLAC, cellular.DeviationForced2G},
	},
	{
		Name:                     "Hailstorm",
		TimingAdvanceZeroPattern: []int{0, 0, 1, 1},
		PowerVariationClass:      cellular.PowerVariationMedium,
		ProtocolDeviations:       []cellular.ProtocolDeviation{cellular.DeviationEncryptionDowngrade},
	},
	{
		Name:                     "DRT Box",
		TimingAdvanceZeroPattern: []int{1, 0, 0, 0},
		PowerVariationClass:      cellular.PowerVariationLow,
		ProtocolDeviations:       []cellular.ProtocolDeviation{cellular.DeviationFakePaging, cellular.DeviationLocationUpdateReject},
	},
}

// Matcher scores buffered history against Catalog.
type Matcher struct {
	catalog []cellular.Signature
}

// New creates a Matcher with the built-in catalog.
func New() *Matcher {
	return &Matcher{catalog: Catalog}
}

// matchDetail records a per-signature score for evidence.
type matchDetail struct {
	Name  string
	Score float64
}

// Evaluate scores every catalog signature against the buffered history
// and returns a SOPHISTICATED_IMSI_CATCHER threat for each signature
// whose score exceeds scoreThreshold. history must be oldest-first and
// include the current sample as its last element.
func (m *Matcher) Evaluate(history []cellular.Measurement) []cellular.Threat {
	if len(history) < minBufferedSamples {
		return nil
	}

	taZeroCount := 0
	var signals []float64
	has2GOrGSM := false
	for _, s := range history {
		if ta, ok := s.TimingAdvance(); ok && ta == 0 {
			taZeroCount++
		}
		signals = append(signals, float64(s.SignalStrength))
		if s.Technology == cellular.Tech2G || s.Technology == cellular.TechGSM {
			has2GOrGSM = true
		}
	}
	sigma := stats.PopulationStd(signals)

	current := history[len(history)-1]

	var out []cellular.Threat
	for _, sig := range m.catalog {
		score, matched, applicable := scoreSignature(sig, taZeroCount, len(history), sigma, has2GOrGSM)
		if applicable == 0 {
			continue
		}
		if score > scoreThreshold {
			out = append(out, cellular.Threat{
				ThreatID:    cellular.NewThreatID("C5:"+sig.Name, cellular.ThreatSophisticatedIMSICatcher, current.Timestamp),
				ThreatType:  cellular.ThreatSophisticatedIMSICatcher,
				Severity:    cellular.SeverityCritical,
				Timestamp:   current.Timestamp,
				Description: "Buffered history matches known rogue base station signature " + sig.Name,
				Evidence: map[string]interface{}{
					"signature":        sig.Name,
					"score":            score,
					"matched_checks":   matched,
					"ta_zero_count":    taZeroCount,
					"signal_std":       sigma,
					"buffer_size":      len(history),
				},
				Confidence: score,
				Location:   current.Position,
			})
		}
	}
	return out
}

// scoreSignature returns the similarity score, the list of checks that
// contributed, and the number of applicable contributions (0 means the
// signature carries nothing this matcher can evaluate).
func scoreSignature(sig cellular.Signature, taZeroCount, bufferLen int, sigma float64, has2GOrGSM bool) (float64, []string, int) {
	var total float64
	var matched []string
	applicable := 0

	e := 0
	for _, bit := range sig.TimingAdvanceZeroPattern {
		if bit == 0 {
			e++
		}
	}
	if e > 0 {
		applicable++
		contribution := float64(taZeroCount) / float64(e)
		if contribution > 1.0 {
			contribution = 1.0
		}
		total += contribution
		if contribution > 0 {
			matched = append(matched, "ta_zero_pattern")
		}
	}

	if sig.PowerVariationClass != "" {
		applicable++
		var contribution float64
		switch sig.PowerVariationClass {
		case cellular.PowerVariationHigh:
			if sigma > 10 {
				contribution = 1.0
			}
		case cellular.PowerVariationMedium:
			if sigma >= 5 && sigma <= 15 {
				contribution = 1.0
			}
		case cellular.PowerVariationLow:
			if sigma < 5 {
				contribution = 1.0
			}
		}
		total += contribution
		if contribution > 0 {
			matched = append(matched, "power_variation_class")
		}
	}

	if hasForced2G(sig.ProtocolDeviations) {
		applicable++
		if has2GOrGSM {
			total += 1.0
			matched = append(matched, "forced_2g")
		}
	}

	if applicable == 0 {
		return 0, nil, 0
	}
	return total / float64(applicable), matched, applicable
}

func hasForced2G(deviations []cellular.ProtocolDeviation) bool {
	for _, d := range deviations {
		if d == cellular.DeviationForced2G {
			return true
		}
	}
	return false
}
