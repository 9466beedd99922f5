//go:build tinygo

// Package board runs rftrx on a microcontroller through TinyGo's machine
// package. Pin numbers are machine.Pin values.
//
// Most 433MHz transmitters key the carrier themselves and their data pin is
// driven as a plain output. WithCarrier instead modulates the TX data pin
// with a PWM carrier while it is high, for transmitters (IR LEDs, some ASK
// bridges) that expect a subcarrier:
//
//	b := board.New(board.WithCarrier(machine.D5, 38_000))
//
// WithRSSI samples an analog RSSI output for the RSSI slicer.
package board

import (
	"machine"
	"runtime/interrupt"
	"time"

	"github.com/sparques/pwm"
	"github.com/sparques/rftrx"
)

// timeoutPoll is how often, in microseconds, the timeout watcher looks at
// an armed deadline. Timeouts fire at most this late.
const timeoutPoll = 250

type Option func(*HAL)

// HAL implements rftrx.HAL on real hardware.
type HAL struct {
	boot time.Time

	// armed timeout, shared with the edge interrupt
	fn       func()
	deadline uint32

	carrierPin  rftrx.Pin
	carrierFreq uint64
	pgroup      pwm.Group
	ch          uint8
	duty        uint32
	keyed       bool

	rssi     machine.ADC
	hasRSSI  bool
	rssiLow  float32
	rssiHigh float32
}

// WithCarrier modulates pin with a freq Hz carrier whenever it is set high.
func WithCarrier(pin machine.Pin, freq uint64) Option {
	return func(h *HAL) {
		h.carrierPin = rftrx.Pin(pin)
		h.carrierFreq = freq
	}
}

// WithRSSI reads the receiver's RSSI output on an ADC pin and maps the
// full scale reading linearly onto low..high dBm.
func WithRSSI(pin machine.Pin, low, high float32) Option {
	return func(h *HAL) {
		h.rssi = machine.ADC{Pin: pin}
		h.hasRSSI = true
		h.rssiLow = low
		h.rssiHigh = high
	}
}

func New(opts ...Option) *HAL {
	h := &HAL{
		boot:       time.Now(),
		carrierPin: rftrx.NoPin,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.hasRSSI {
		machine.InitADC()
		h.rssi.Configure(machine.ADCConfig{})
	}
	go h.watch()
	return h
}

func (h *HAL) ConfigurePin(p rftrx.Pin, mode rftrx.PinMode) {
	pin := machine.Pin(p)
	switch {
	case p == h.carrierPin && mode == rftrx.PinOutput:
		pin.Configure(machine.PinConfig{Mode: machine.PinPWM})
		h.pgroup = pwm.Get(pin)
		h.pgroup.Configure(machine.PWMConfig{Period: uint64(1e9) / h.carrierFreq})
		h.ch, _ = h.pgroup.Channel(pin)
		h.pgroup.Set(h.ch, 0)
		h.duty = h.pgroup.Top() / 2
		h.keyed = true
	case mode == rftrx.PinOutput:
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	case mode == rftrx.PinInputPullup:
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	default:
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	}
}

func (h *HAL) SetPin(p rftrx.Pin, high bool) {
	if p == h.carrierPin && h.keyed {
		if high {
			h.pgroup.Set(h.ch, h.duty)
		} else {
			h.pgroup.Set(h.ch, 0)
		}
		return
	}
	machine.Pin(p).Set(high)
}

func (h *HAL) ReadPin(p rftrx.Pin) bool {
	return machine.Pin(p).Get()
}

func (h *HAL) Micros() uint32 {
	return uint32(time.Since(h.boot).Microseconds())
}

func (h *HAL) SleepMicros(us uint32) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// ArmTimeout only records the deadline, so it is safe to call from the
// edge interrupt. The watcher goroutine fires it.
func (h *HAL) ArmTimeout(us uint32, fn func()) {
	state := interrupt.Disable()
	h.fn = fn
	h.deadline = h.Micros() + us
	interrupt.Restore(state)
}

func (h *HAL) CancelTimeout() {
	state := interrupt.Disable()
	h.fn = nil
	interrupt.Restore(state)
}

// watch runs armed timeouts with interrupts disabled, so a callback never
// interleaves with the edge handler.
func (h *HAL) watch() {
	for {
		wait := uint32(timeoutPoll)
		state := interrupt.Disable()
		if h.fn != nil {
			left := int32(h.deadline - h.Micros())
			if left <= 0 {
				fn := h.fn
				h.fn = nil
				fn()
			} else if uint32(left) < wait {
				wait = uint32(left)
			}
		}
		interrupt.Restore(state)
		time.Sleep(time.Duration(wait) * time.Microsecond)
	}
}

func (h *HAL) SetEdgeHandler(p rftrx.Pin, fn func()) {
	pin := machine.Pin(p)
	if fn == nil {
		pin.SetInterrupt(0, nil)
		return
	}
	pin.SetInterrupt(machine.PinToggle, func(machine.Pin) { fn() })
}

// rssiHAL exposes RSSI only when a pin was configured, so that the RSSI
// slicer is refused on boards without one.
type rssiHAL struct {
	*HAL
}

func (r rssiHAL) RSSI() float32 {
	v := float32(r.rssi.Get()) / 0xFFFF
	return r.rssiLow + v*(r.rssiHigh-r.rssiLow)
}

// Device is the HAL to hand to rftrx.NewScanner.
func (h *HAL) Device() rftrx.HAL {
	if h.hasRSSI {
		return rssiHAL{h}
	}
	return h
}
