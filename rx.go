package rftrx

import "sync/atomic"

type captureState uint32

const (
	stateIdle captureState = iota
	stateSeeking
	stateCapturing
	stateDone
)

func (s captureState) String() string {
	switch s {
	case stateSeeking:
		return "seeking"
	case stateCapturing:
		return "capturing"
	case stateDone:
		return "done"
	}
	return "idle"
}

// syncPollInterval is the pin sampling period of a synchronous fetch, in
// microseconds. It is well below the narrowest pulse worth keeping.
const syncPollInterval = 10

// RxDevice turns edges on the receiver's data pin into pulse widths stored
// in a RawSignal.
//
// In async mode the edge handler and the silence timeout drive it from
// interrupt context; in sync mode Fetch polls the pin and drives the same
// transitions. Either way no work per edge is unbounded and nothing is
// allocated.
type RxDevice struct {
	hal    HAL
	pin    Pin
	signal *RawSignal
	t      timings
	async  bool

	slicer  slicer
	variant Slicer
	gap     GapPolicy

	state      atomic.Uint32
	lastReason atomic.Uint32
	noise      atomic.Uint32
	running    bool

	lastEdge uint32
	dynamic  bool
	clamped  bool

	// silence armed after the last edge; an expiry before it has passed
	// is stale
	window uint32

	// sync mode deadline, stands in for the HAL timeout
	armed    bool
	deadline uint32

	onEdge    func()
	onTimeout func()
}

// NewRxDevice creates a capture on pin writing into sig. It starts idle and
// detached; call Start to attach it to the edge interrupt.
func NewRxDevice(h HAL, pin Pin, sig *RawSignal, p Params) *RxDevice {
	rx := &RxDevice{
		hal:     h,
		pin:     pin,
		signal:  sig,
		slicer:  legacySlicer{},
		variant: SlicerLegacy,
		gap:     FixedGap{},
	}
	rx.onEdge = rx.interruptHandler
	rx.onTimeout = rx.timeoutHandler
	rx.apply(p)
	return rx
}

func (rx *RxDevice) apply(p Params) {
	rx.t = p.timings()
	rx.async = p.AsyncMode
}

// SetGapPolicy replaces the silence timeout policy. Like the parameters it
// must only be changed while no capture runs.
func (rx *RxDevice) SetGapPolicy(g GapPolicy) {
	if g == nil {
		g = FixedGap{}
	}
	rx.gap = g
}

func (rx *RxDevice) setSlicer(s slicer, v Slicer) {
	rx.slicer = s
	rx.variant = v
}

func (rx *RxDevice) Slicer() Slicer {
	return rx.variant
}

func (rx *RxDevice) current() captureState {
	return captureState(rx.state.Load())
}

func (rx *RxDevice) set(s captureState) {
	rx.state.Store(uint32(s))
}

// Busy reports whether a capture is between its first edge and its end.
func (rx *RxDevice) Busy() bool {
	s := rx.current()
	return s == stateSeeking || s == stateCapturing
}

// Running reports whether the edge handler is attached.
func (rx *RxDevice) Running() bool {
	return rx.running
}

// LastEndReason is the end reason of the most recent capture, kept or not.
func (rx *RxDevice) LastEndReason() EndReason {
	return EndReason(rx.lastReason.Load())
}

// Noise counts trains that ended with fewer than MinRawPulses pulses and
// were discarded without reaching the consumer.
func (rx *RxDevice) Noise() uint32 {
	return rx.noise.Load()
}

// Start sets the interrupt handler and thus starts processing edges.
func (rx *RxDevice) Start() {
	if rx.running {
		return
	}
	rx.running = true
	rx.hal.SetEdgeHandler(rx.pin, rx.onEdge)
}

// Stop detaches the interrupt handler. A capture in flight is abandoned; a
// finished capture that has not been consumed stays in the buffer.
func (rx *RxDevice) Stop() {
	rx.hal.SetEdgeHandler(rx.pin, nil)
	rx.hal.CancelTimeout()
	rx.armed = false
	rx.running = false
	if rx.current() != stateDone {
		rx.set(stateIdle)
	}
}

// Release hands the buffer back to the capture side. It is called by the
// consumer once it is done reading the pulses.
func (rx *RxDevice) Release() {
	rx.set(stateIdle)
	rx.signal.ready.Store(false)
}

func (rx *RxDevice) interruptHandler() {
	rx.edge(rx.hal.Micros())
}

func (rx *RxDevice) timeoutHandler() {
	rx.expire(rx.hal.Micros())
}

func (rx *RxDevice) edge(now uint32) {
	switch rx.current() {
	case stateIdle:
		if rx.signal.Ready() {
			// previous train not consumed yet: drop rather than overwrite
			return
		}
		rx.lastEdge = now
		rx.signal.Number = 0
		rx.signal.RSSI = 0
		rx.signal.EndReason = EndUnknown
		rx.gap.Reset()
		rx.set(stateSeeking)
		rx.arm(now, rx.t.signalEnd)

	case stateSeeking:
		width := now - rx.lastEdge
		rx.lastEdge = now
		if !rx.slicer.confirm(rx, width) {
			// too short for a preamble, measure again from this edge
			rx.arm(now, rx.t.signalEnd)
			return
		}
		rx.set(stateCapturing)
		rx.store(now, width)

	case stateCapturing:
		width := now - rx.lastEdge
		if width < rx.t.minPulseLen {
			// glitch: neither the index nor the silence baseline move
			return
		}
		rx.lastEdge = now
		rx.store(now, width)
	}
}

func (rx *RxDevice) store(now, width uint32) {
	n := rx.signal.Number + 1
	rx.signal.Pulses[n] = clampPulse(width / rx.t.multiply)
	rx.signal.Number = n
	rx.slicer.sample(rx)
	if n >= RawBufferSize {
		rx.finish(now, EndTooLong)
		return
	}
	gap, dynamic := rx.gap.Gap(width, n, rx.t.signalEnd)
	rx.dynamic = dynamic
	rx.arm(now, gap)
}

func (rx *RxDevice) arm(now, gap uint32) {
	rx.clamped = false
	if gap > rx.t.maxPulse {
		gap = rx.t.maxPulse
		rx.clamped = true
	}
	rx.window = gap
	if rx.async {
		rx.hal.ArmTimeout(gap, rx.onTimeout)
		return
	}
	rx.armed = true
	rx.deadline = now + gap
}

func (rx *RxDevice) disarm() {
	if rx.async {
		rx.hal.CancelTimeout()
	}
	rx.armed = false
}

func (rx *RxDevice) expire(now uint32) {
	if now-rx.lastEdge < rx.window {
		return
	}
	rx.armed = false
	switch rx.current() {
	case stateSeeking:
		// a lone edge never confirmed as a preamble
		rx.abandon()
	case stateCapturing:
		reason := EndSignalEndTimeout
		switch {
		case rx.clamped:
			reason = EndReachedLongPulseTimeOut
		case rx.dynamic:
			reason = EndDynamicGapLengthReached
		}
		rx.finish(now, reason)
	}
}

func (rx *RxDevice) abandon() {
	rx.disarm()
	rx.lastReason.Store(uint32(EndAttemptedNoiseFilter))
	rx.set(stateIdle)
}

func (rx *RxDevice) finish(now uint32, reason EndReason) {
	rx.disarm()
	rx.signal.EndReason = reason
	rx.lastReason.Store(uint32(reason))
	if rx.signal.Number < rx.t.minRawPulses {
		rx.noise.Add(1)
		rx.set(stateIdle)
		return
	}
	rx.signal.Time = now
	rx.signal.Multiply = uint16(rx.t.multiply)
	rx.set(stateDone)
	// publishes the pulses written above to the consumer
	rx.signal.ready.Store(true)
}

// Fetch runs one synchronous capture by polling the data pin. While no
// preamble shows up it gives up after the seek timeout, dropping edges that
// never confirmed; once a train is being captured it runs until the train
// ends. It reports whether the buffer holds a train ready for decoding.
func (rx *RxDevice) Fetch() bool {
	if rx.signal.Ready() {
		return true
	}
	start := rx.hal.Micros()
	level := rx.hal.ReadPin(rx.pin)
	for {
		now := rx.hal.Micros()
		if l := rx.hal.ReadPin(rx.pin); l != level {
			level = l
			rx.edge(now)
		}
		if rx.armed && int32(now-rx.deadline) >= 0 {
			rx.expire(now)
		}
		switch rx.current() {
		case stateDone:
			return true
		case stateIdle:
			if now-start >= rx.t.seek {
				return false
			}
		case stateSeeking:
			if now-start >= rx.t.seek {
				rx.abandon()
				return false
			}
		}
		rx.hal.SleepMicros(syncPollInterval)
	}
}
