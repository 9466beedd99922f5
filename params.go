package rftrx

import (
	"fmt"
	"time"
)

// Params are the timing parameters of the capture and scan loop. They are
// applied as a whole through Scanner.RefreshParams, never while a capture
// is running.
type Params struct {
	// AsyncMode captures from the edge interrupt. When false, ScanEvent
	// polls the data pin itself for up to SeekTimeout.
	AsyncMode bool
	// SampleRate divides pulse widths before they are stored, so trains
	// with pulses above 65ms still fit in 16 bits.
	SampleRate uint16
	// MinRawPulses is the shortest train worth decoding. Shorter trains
	// are noise.
	MinRawPulses int
	// SeekTimeout bounds one synchronous fetch while no signal is present.
	SeekTimeout time.Duration
	// MinPreamble is the width the first pulse needs before the capture
	// commits to a signal.
	MinPreamble time.Duration
	// MinPulseLen: narrower pulses are glitches and are dropped.
	MinPulseLen time.Duration
	// SignalEndTimeout is the silence that ends a train.
	SignalEndTimeout time.Duration
	// SignalRepeatTime is the window in which an identical decode is
	// treated as a retransmission.
	SignalRepeatTime time.Duration
	// ScanHighTime is the interval of background work in Run.
	ScanHighTime time.Duration
	// RSSIThreshold is the strength, in dBm, the RSSI slicer requires to
	// confirm a preamble.
	RSSIThreshold float32
}

func DefaultParams() Params {
	return Params{
		AsyncMode:        true,
		SampleRate:       1,
		MinRawPulses:     24,
		SeekTimeout:      25 * time.Millisecond,
		MinPreamble:      100 * time.Microsecond,
		MinPulseLen:      90 * time.Microsecond,
		SignalEndTimeout: 5000 * time.Microsecond,
		SignalRepeatTime: 250 * time.Millisecond,
		ScanHighTime:     50 * time.Millisecond,
		RSSIThreshold:    -85,
	}
}

// Validate checks the parameters are usable together.
func (p Params) Validate() error {
	switch {
	case p.SampleRate == 0:
		return fmt.Errorf("%w: sample rate must be at least 1", ErrInvalidParams)
	case p.MinRawPulses < 1 || p.MinRawPulses > RawBufferSize:
		return fmt.Errorf("%w: min raw pulses %d outside 1..%d", ErrInvalidParams, p.MinRawPulses, RawBufferSize)
	case p.MinPulseLen <= 0:
		return fmt.Errorf("%w: min pulse length must be positive", ErrInvalidParams)
	case p.MinPreamble < 0:
		return fmt.Errorf("%w: min preamble must not be negative", ErrInvalidParams)
	case p.SignalEndTimeout <= p.MinPulseLen:
		return fmt.Errorf("%w: signal end timeout %v must exceed min pulse length %v", ErrInvalidParams, p.SignalEndTimeout, p.MinPulseLen)
	case p.SignalEndTimeout > time.Second:
		return fmt.Errorf("%w: signal end timeout %v above 1s", ErrInvalidParams, p.SignalEndTimeout)
	case !p.AsyncMode && p.SeekTimeout <= 0:
		return fmt.Errorf("%w: seek timeout required in synchronous mode", ErrInvalidParams)
	case p.SignalRepeatTime < 0:
		return fmt.Errorf("%w: repeat time must not be negative", ErrInvalidParams)
	}
	return nil
}

// timings is Params reduced to the integer microseconds the capture
// interrupt works with.
type timings struct {
	multiply      uint32
	minRawPulses  int
	seek          uint32
	minPreamble   uint32
	minPulseLen   uint32
	signalEnd     uint32
	maxPulse      uint32
	repeat        uint32
	rssiThreshold float32
}

func micros(d time.Duration) uint32 {
	return uint32(d / time.Microsecond)
}

func (p Params) timings() timings {
	mult := uint32(p.SampleRate)
	if mult == 0 {
		mult = 1
	}
	return timings{
		multiply:      mult,
		minRawPulses:  p.MinRawPulses,
		seek:          micros(p.SeekTimeout),
		minPreamble:   micros(p.MinPreamble),
		minPulseLen:   micros(p.MinPulseLen),
		signalEnd:     micros(p.SignalEndTimeout),
		maxPulse:      0xFFFF * mult,
		repeat:        micros(p.SignalRepeatTime),
		rssiThreshold: p.RSSIThreshold,
	}
}
