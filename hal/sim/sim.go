// Package sim is a discrete event rftrx.HAL. Time only moves when the caller
// (or code under test, through SleepMicros) advances it, and scheduled edges
// and timeouts fire in order as it does. It lets the capture and transmit
// state machines be driven deterministically off hardware.
package sim

import (
	"sort"
	"sync"

	"github.com/sparques/rftrx"
)

// Write is one SetPin call as recorded in the journal.
type Write struct {
	At   uint64
	Pin  rftrx.Pin
	High bool
}

type edge struct {
	at  uint64
	pin rftrx.Pin
}

// HAL implements rftrx.HAL and rftrx.RSSIReader.
type HAL struct {
	mu sync.Mutex

	now      uint64
	modes    map[rftrx.Pin]rftrx.PinMode
	out      map[rftrx.Pin]bool
	lines    map[rftrx.Pin]bool
	handlers map[rftrx.Pin]func()
	edges    []edge

	timerSet bool
	timerAt  uint64
	timerFn  func()

	journal []Write
	rssi    float32

	// OnWrite, when set, is called after every SetPin. It runs without the
	// HAL's lock held and may inspect pin levels.
	OnWrite func(Write)
}

func New() *HAL {
	return &HAL{
		modes:    make(map[rftrx.Pin]rftrx.PinMode),
		out:      make(map[rftrx.Pin]bool),
		lines:    make(map[rftrx.Pin]bool),
		handlers: make(map[rftrx.Pin]func()),
	}
}

func (h *HAL) ConfigurePin(p rftrx.Pin, mode rftrx.PinMode) {
	h.mu.Lock()
	h.modes[p] = mode
	h.mu.Unlock()
}

// Mode returns the mode p was last configured with.
func (h *HAL) Mode(p rftrx.Pin) (rftrx.PinMode, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modes[p]
	return m, ok
}

func (h *HAL) SetPin(p rftrx.Pin, high bool) {
	h.mu.Lock()
	h.out[p] = high
	w := Write{At: h.now, Pin: p, High: high}
	h.journal = append(h.journal, w)
	cb := h.OnWrite
	h.mu.Unlock()
	if cb != nil {
		cb(w)
	}
}

// Level reports whether p is configured as an output and driven high.
func (h *HAL) Level(p rftrx.Pin) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.modes[p] == rftrx.PinOutput && h.out[p]
}

// ReadPin returns the driven level of an output and the external line
// level of an input. An input with pull-up that nothing drives reads high.
func (h *HAL) ReadPin(p rftrx.Pin) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.modes[p] {
	case rftrx.PinOutput:
		return h.out[p]
	case rftrx.PinInputPullup:
		if v, ok := h.lines[p]; ok {
			return v
		}
		return true
	}
	return h.lines[p]
}

// Journal returns a copy of every SetPin call so far.
func (h *HAL) Journal() []Write {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Write(nil), h.journal...)
}

// Transitions lists the times at which writes to p changed its level,
// relative to the first change. Repeated writes of the same level are
// skipped. Scheduling the result on another HAL loops a transmission back
// into a receiver.
func (h *HAL) Transitions(p rftrx.Pin) []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var (
		out    []uint64
		level  bool
		origin uint64
	)
	for _, w := range h.journal {
		if w.Pin != p || w.High == level {
			continue
		}
		if out == nil {
			origin = w.At
		}
		level = w.High
		out = append(out, w.At-origin)
	}
	return out
}

func (h *HAL) ClearJournal() {
	h.mu.Lock()
	h.journal = h.journal[:0]
	h.mu.Unlock()
}

func (h *HAL) Micros() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint32(h.now)
}

// Now is the simulated clock without wrap around.
func (h *HAL) Now() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *HAL) SleepMicros(us uint32) {
	h.Advance(us)
}

func (h *HAL) ArmTimeout(us uint32, fn func()) {
	h.mu.Lock()
	h.timerSet = true
	h.timerAt = h.now + uint64(us)
	h.timerFn = fn
	h.mu.Unlock()
}

func (h *HAL) CancelTimeout() {
	h.mu.Lock()
	h.timerSet = false
	h.timerFn = nil
	h.mu.Unlock()
}

// TimeoutArmed reports whether a timeout is pending.
func (h *HAL) TimeoutArmed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timerSet
}

func (h *HAL) SetEdgeHandler(p rftrx.Pin, fn func()) {
	h.mu.Lock()
	if fn == nil {
		delete(h.handlers, p)
	} else {
		h.handlers[p] = fn
	}
	h.mu.Unlock()
}

func (h *HAL) SetRSSI(v float32) {
	h.mu.Lock()
	h.rssi = v
	h.mu.Unlock()
}

func (h *HAL) RSSI() float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rssi
}

// SetLine sets the external level of p without firing its edge handler.
func (h *HAL) SetLine(p rftrx.Pin, high bool) {
	h.mu.Lock()
	h.lines[p] = high
	h.mu.Unlock()
}

// Edge toggles the external level of p now and runs its edge handler.
func (h *HAL) Edge(p rftrx.Pin) {
	h.mu.Lock()
	fn := h.toggle(p)
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *HAL) toggle(p rftrx.Pin) func() {
	h.lines[p] = !h.lines[p]
	return h.handlers[p]
}

// Schedule queues a toggle of p at the given absolute time.
func (h *HAL) Schedule(at uint64, p rftrx.Pin) {
	h.mu.Lock()
	h.schedule(at, p)
	h.mu.Unlock()
}

func (h *HAL) schedule(at uint64, p rftrx.Pin) {
	i := sort.Search(len(h.edges), func(i int) bool { return h.edges[i].at > at })
	h.edges = append(h.edges, edge{})
	copy(h.edges[i+1:], h.edges[i:])
	h.edges[i] = edge{at: at, pin: p}
}

// Train queues an edge on p now and one more after each width, so n widths
// describe n pulses. It returns the time of the last edge.
func (h *HAL) Train(p rftrx.Pin, widths ...uint32) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	at := h.now
	h.schedule(at, p)
	for _, w := range widths {
		at += uint64(w)
		h.schedule(at, p)
	}
	return at
}

// Idle reports whether no edge or timeout is pending.
func (h *HAL) Idle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.edges) == 0 && !h.timerSet
}

// Advance moves the clock forward by us, firing every edge and timeout
// that falls due on the way. Edges fire before a timeout due at the same
// instant.
func (h *HAL) Advance(us uint32) {
	h.mu.Lock()
	target := h.now + uint64(us)
	for {
		var fn func()
		switch {
		case len(h.edges) > 0 && h.edges[0].at <= target &&
			(!h.timerSet || h.edges[0].at <= h.timerAt):
			e := h.edges[0]
			h.edges = h.edges[1:]
			h.now = e.at
			fn = h.toggle(e.pin)
		case h.timerSet && h.timerAt <= target:
			h.now = h.timerAt
			fn = h.timerFn
			h.timerSet = false
			h.timerFn = nil
		default:
			h.now = target
			h.mu.Unlock()
			return
		}
		if fn != nil {
			h.mu.Unlock()
			fn()
			h.mu.Lock()
		}
	}
}

// Drain advances until nothing is pending, or until limit microseconds
// have passed.
func (h *HAL) Drain(limit uint32) {
	end := h.Now() + uint64(limit)
	for !h.Idle() {
		now := h.Now()
		if now >= end {
			return
		}
		step := end - now
		h.mu.Lock()
		if len(h.edges) > 0 && h.edges[0].at-now < step {
			step = h.edges[0].at - now
		}
		if h.timerSet && h.timerAt-now < step {
			step = h.timerAt - now
		}
		h.mu.Unlock()
		h.Advance(uint32(step))
	}
}
