package rftrx

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// signatureQuantum is the bucket width, in microseconds, pulses are rounded
// to before hashing a train's shape. Jitter inside a bucket does not change
// the signature.
const signatureQuantum = 128

// idleSleep is how long Run waits, in microseconds, after a cycle that
// produced nothing.
const idleSleep = 1000

// Scanner owns the raw signal buffer, the radio and the capture, and runs
// the decode side of the handoff: one ScanEvent call consumes at most one
// captured train.
//
// Except for Counters, Scanner methods belong to the main loop and must not
// be called concurrently.
type Scanner struct {
	// Signal is the process wide buffer shared by capture, decoders and
	// transmit.
	Signal *RawSignal

	hal     HAL
	radio   *Radio
	rx      *RxDevice
	tx      *TxDevice
	decoder Decoder
	handler EventHandler
	params  Params
	logger  *log.Logger

	pendingParams *Params
	pendingSlicer Slicer

	// repeat filter
	signalCRC      uint32
	prevCRC        uint32
	signalHash     uint8
	prevHash       uint8
	lastSignature  uint64
	repeatStart    uint32
	accepted       bool
	signatureState *xxhash.Digest
	scratch        [2]byte

	received   atomic.Uint32
	decoded    atomic.Uint32
	rejected   atomic.Uint32
	suppressed atomic.Uint32
}

// NewScanner wires a capture and a transmitter to the radio described by
// pins. The radio stays UNSET until SetRadioMode is called.
func NewScanner(h HAL, pins Pins, p Params, dec Decoder, handler EventHandler) (*Scanner, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if dec == nil {
		dec = Chain()
	}
	sig := &RawSignal{Multiply: 1}
	radio := NewRadio(h, pins)
	return &Scanner{
		Signal:         sig,
		hal:            h,
		radio:          radio,
		rx:             NewRxDevice(h, pins.RX.Data, sig, p),
		tx:             NewTxDevice(h, radio),
		decoder:        dec,
		handler:        handler,
		params:         p,
		pendingSlicer:  SlicerDefault,
		signatureState: xxhash.New(),
	}, nil
}

// SetLogger enables verbose output of the fetch loop. A nil logger turns
// it off.
func (s *Scanner) SetLogger(l *log.Logger) {
	s.logger = l
}

func (s *Scanner) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func (s *Scanner) Radio() *Radio {
	return s.radio
}

func (s *Scanner) Rx() *RxDevice {
	return s.rx
}

func (s *Scanner) Params() Params {
	return s.params
}

// SetRadioMode powers the front end into state. Entering RX starts the
// capture in async mode; leaving RX stops it first.
func (s *Scanner) SetRadioMode(state RadioState) {
	if state == RadioUnset {
		return
	}
	if state != RadioRX {
		s.rx.Stop()
		s.radio.SetMode(state)
		return
	}
	s.radio.SetMode(RadioRX)
	if s.params.AsyncMode {
		s.rx.Start()
	}
}

// ScanEvent runs one dispatch cycle. In sync mode it first polls the
// receiver for a train; in async mode it only looks at what the interrupt
// captured. It reports whether an event was emitted.
func (s *Scanner) ScanEvent() bool {
	s.applyPending()
	s.expireRepeat(s.hal.Micros())

	if s.params.AsyncMode {
		if !s.Signal.Ready() {
			return false
		}
	} else {
		if s.radio.State() != RadioRX || !s.rx.Fetch() {
			return false
		}
	}
	defer s.rx.Release()

	s.received.Add(1)
	now := s.hal.Micros()
	sig := s.signature()
	s.logf("[scan] %d pulses, end reason %s", s.Signal.Number, s.Signal.EndReason)

	if s.withinRepeat(now) && sig == s.lastSignature {
		s.suppressed.Add(1)
		s.logf("[scan] same train as last event, skipped")
		return false
	}

	ev, ok := s.decoder.Decode(s.Signal)
	if !ok {
		s.rejected.Add(1)
		s.logf("[scan] no decoder matched")
		return false
	}
	if ev.CRC == 0 {
		ev.CRC = crc32.ChecksumIEEE(ev.Payload)
	}
	if ev.RSSI == 0 {
		ev.RSSI = s.Signal.RSSI
	}
	s.signalCRC, s.signalHash = ev.CRC, ev.Plugin

	if s.signalCRC == s.prevCRC && s.signalHash == s.prevHash && s.withinRepeat(now) {
		s.suppressed.Add(1)
		s.logf("[scan] repeat of plugin %d crc %08x suppressed", ev.Plugin, ev.CRC)
		return false
	}

	s.decoded.Add(1)
	s.prevCRC, s.prevHash = s.signalCRC, s.signalHash
	s.lastSignature = sig
	s.repeatStart = now
	s.accepted = true
	if s.handler != nil {
		s.handler(ev)
	}
	return true
}

// expireRepeat closes the repeat window once it has elapsed, so that a wrap
// of the microsecond clock cannot reopen it.
func (s *Scanner) expireRepeat(now uint32) {
	if s.accepted && now-s.repeatStart >= s.rx.t.repeat {
		s.accepted = false
	}
}

func (s *Scanner) withinRepeat(now uint32) bool {
	s.expireRepeat(now)
	return s.accepted
}

// signature hashes the shape of the train: its length and every pulse
// rounded to signatureQuantum. It is cheap enough to run before decoding.
func (s *Scanner) signature() uint64 {
	d := s.signatureState
	d.Reset()
	n := s.Signal.Number
	s.scratch[0], s.scratch[1] = byte(n>>8), byte(n)
	_, _ = d.Write(s.scratch[:])
	for i := 1; i <= n; i++ {
		q := (s.Signal.Pulse(i) + signatureQuantum/2) / signatureQuantum
		s.scratch[0], s.scratch[1] = byte(q>>8), byte(q)
		_, _ = d.Write(s.scratch[:])
	}
	return d.Sum64()
}

// RawSend transmits sig. Capture is paused for the duration; when sig is
// the scanner's own buffer any capture it held is dropped.
func (s *Scanner) RawSend(sig *RawSignal) error {
	if s.radio.State() == RadioUnset {
		return ErrRadioUnset
	}
	s.rx.Stop()
	err := s.tx.Send(sig)
	if sig == s.Signal {
		s.rx.Release()
	}
	if s.params.AsyncMode && s.radio.State() == RadioRX {
		s.rx.Start()
	}
	if err != nil {
		return fmt.Errorf("raw send: %w", err)
	}
	return nil
}

// SendCommand encodes a command into the scanner's buffer and transmits
// it. A received train still waiting in the buffer is discarded.
func (s *Scanner) SendCommand(enc Encoder) error {
	if s.radio.State() == RadioUnset {
		return ErrRadioUnset
	}
	s.rx.Stop()
	s.rx.Release()
	s.Signal.Reset()
	if err := enc.MarshalSignal(s.Signal); err != nil {
		if s.params.AsyncMode && s.radio.State() == RadioRX {
			s.rx.Start()
		}
		return fmt.Errorf("encode: %w", err)
	}
	return s.RawSend(s.Signal)
}

// reconfigure runs fn with the receiver powered down. It refuses while a
// capture is in flight.
func (s *Scanner) reconfigure(fn func()) error {
	if s.rx.Busy() {
		return ErrDeferred
	}
	wasRX := s.radio.State() == RadioRX
	if wasRX {
		s.SetRadioMode(RadioOff)
	}
	fn()
	if wasRX {
		s.SetRadioMode(RadioRX)
	}
	return nil
}

// RefreshParams applies new timing parameters. While a capture is running
// it returns ErrDeferred and the next ScanEvent applies them instead.
func (s *Scanner) RefreshParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := s.reconfigure(func() { s.applyParams(p) })
	if errors.Is(err, ErrDeferred) {
		s.pendingParams = &p
	}
	return err
}

func (s *Scanner) applyParams(p Params) {
	s.params = p
	s.rx.apply(p)
	s.pendingParams = nil
}

// UpdateSlicer switches the capture algorithm. Like RefreshParams it is
// deferred while a capture is running.
func (s *Scanner) UpdateSlicer(v Slicer) error {
	impl, resolved, err := newSlicer(v, s.hal)
	if err != nil {
		return err
	}
	err = s.reconfigure(func() {
		s.rx.setSlicer(impl, resolved)
		s.pendingSlicer = SlicerDefault
	})
	if errors.Is(err, ErrDeferred) {
		s.pendingSlicer = resolved
	}
	return err
}

// SetGapPolicy replaces the capture's silence timeout policy.
func (s *Scanner) SetGapPolicy(g GapPolicy) error {
	return s.reconfigure(func() { s.rx.SetGapPolicy(g) })
}

func (s *Scanner) applyPending() {
	if p := s.pendingParams; p != nil {
		if s.reconfigure(func() { s.applyParams(*p) }) == nil {
			s.logf("[scan] deferred parameters applied")
		}
	}
	if v := s.pendingSlicer; v != SlicerDefault {
		_ = s.UpdateSlicer(v)
	}
}

// Run calls ScanEvent until ctx is cancelled, running background every
// ScanHighTime. It is the main loop of a device with nothing else to do.
func (s *Scanner) Run(ctx context.Context, background func()) {
	interval := micros(s.params.ScanHighTime)
	last := s.hal.Micros()
	for ctx.Err() == nil {
		emitted := s.ScanEvent()
		if now := s.hal.Micros(); background != nil && now-last >= interval {
			last = now
			background()
		}
		// a synchronous fetch in RX already waited on the pin
		if !emitted && (s.params.AsyncMode || s.radio.State() != RadioRX) {
			s.hal.SleepMicros(idleSleep)
		}
	}
}
