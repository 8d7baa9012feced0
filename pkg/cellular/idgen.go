package cellular

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// NewThreatID derives a threat_id deterministic in (detector, threat
// type, timestamp), satisfying spec §4.3's "threat_id is unique per
// (detector, timestamp)" requirement without a shared counter. Hashed
// with blake2b rather than concatenated raw, so identical detector+
// type+timestamp inputs are reproducible for the round-trip test property in
// §8 while keeping the id a fixed-width opaque token.
func NewThreatID(detector string, t ThreatType, ts time.Time) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(detector))
	h.Write([]byte{0})
	h.Write([]byte(t))
	h.Write([]byte{0})
	b, _ := ts.MarshalBinary()
	h.Write(b)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
