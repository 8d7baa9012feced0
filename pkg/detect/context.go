package detect

import (
	"github.com/MdrnDme/clutch/pkg/stats"
	"github.com/MdrnDme/clutch/pkg/towers"
)

// DetectorContext bundles the mutable state detectors read, replacing
// the "mutable global monitor" the original carries with an explicit,
// borrowed value per spec §9's redesign note. Every detector function
// treats it as read-only except for the embedded Buffer, which the
// caller pushes the current sample into before dispatch so D1-D11 can
// see it as the last element of history.
type DetectorContext struct {
	Towers *towers.Registry
	Stats  *stats.Engine
	Buffer *Buffer
	Config Config
}

// NewContext wires a DetectorContext with default thresholds.
func NewContext() *DetectorContext {
	return &DetectorContext{
		Towers: towers.New(),
		Stats:  stats.NewEngine(),
		Buffer: NewBuffer(BufferCapacity),
		Config: DefaultConfig(),
	}
}
