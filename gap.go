package rftrx

// GapPolicy decides how long the line may stay silent after a stored pulse
// before the train is considered finished. Gap runs in interrupt context
// after pulse n of the given width was stored; end is the configured
// signal end timeout. dynamic reports that the policy shortened it.
type GapPolicy interface {
	Reset()
	Gap(width uint32, n int, end uint32) (gap uint32, dynamic bool)
}

// FixedGap always waits for the full signal end timeout.
type FixedGap struct{}

func (FixedGap) Reset() {}

func (FixedGap) Gap(_ uint32, _ int, end uint32) (uint32, bool) {
	return end, false
}

// AdaptiveGap ends trains early once their pulse widths are known: after
// MinPulses pulses the silence timeout drops to Factor times the widest
// pulse seen so far.
type AdaptiveGap struct {
	MinPulses int
	Factor    uint32

	widest uint32
}

func (g *AdaptiveGap) Reset() {
	g.widest = 0
}

func (g *AdaptiveGap) Gap(width uint32, n int, end uint32) (uint32, bool) {
	if width > g.widest {
		g.widest = width
	}
	if g.Factor == 0 || n < g.MinPulses {
		return end, false
	}
	gap := g.widest * g.Factor
	if gap >= end {
		return end, false
	}
	return gap, true
}
