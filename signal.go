package rftrx

import (
	"sync/atomic"
	"time"
)

// EndReason records why a capture stopped accepting pulses.
type EndReason uint8

const (
	EndUnknown EndReason = iota
	// EndReachedLongPulseTimeOut: the line stayed quiet longer than the
	// widest pulse the buffer can hold.
	EndReachedLongPulseTimeOut
	// EndAttemptedNoiseFilter: an edge started a seek but no preamble
	// followed before the silence timeout.
	EndAttemptedNoiseFilter
	// EndDynamicGapLengthReached: the gap policy shortened the silence
	// timeout and it expired.
	EndDynamicGapLengthReached
	EndSignalEndTimeout
	EndTooLong
)

var endReasonNames = [...]string{
	EndUnknown:                 "Unknown",
	EndReachedLongPulseTimeOut: "ReachedLongPulseTimeOut",
	EndAttemptedNoiseFilter:    "AttemptedNoiseFilter",
	EndDynamicGapLengthReached: "DynamicGapLengthReached",
	EndSignalEndTimeout:        "SignalEndTimeout",
	EndTooLong:                 "TooLong",
}

func (r EndReason) String() string {
	if int(r) < len(endReasonNames) {
		return endReasonNames[r]
	}
	return "Unknown"
}

// RawSignal holds one captured, or to-be-transmitted, pulse train.
//
// A single RawSignal is shared between the capture interrupt (writer) and
// the scan loop (reader). The ready flag is the handoff: the capture side
// fills Pulses and Number and then sets it, the scan side reads them and
// then clears it. Neither side touches the pulses while the other owns
// them, so no lock is involved.
type RawSignal struct {
	// Number of pulses, counting marks and spaces separately.
	Number int
	// Repeats is how many times the train is sent on transmit.
	Repeats uint8
	// Delay in milliseconds between two repeats on transmit.
	Delay uint8
	// Multiply scales Pulses to microseconds.
	Multiply uint16
	// Time is the Micros() reading when the capture completed.
	Time      uint32
	RSSI      float32
	EndReason EndReason

	// Pulses[0] is reserved for out of band use such as the id of the
	// plugin that encoded the train. The first pulse is at index 1.
	Pulses [RawBufferSize + 1]uint16

	ready atomic.Bool
}

// Ready reports whether the signal holds a finished capture that has not
// been consumed yet.
func (s *RawSignal) Ready() bool {
	return s.ready.Load()
}

func (s *RawSignal) multiply() uint32 {
	if s.Multiply == 0 {
		return 1
	}
	return uint32(s.Multiply)
}

// Pulse returns pulse i in microseconds.
func (s *RawSignal) Pulse(i int) uint32 {
	return uint32(s.Pulses[i]) * s.multiply()
}

// Reset clears the pulse count and metadata. It does not touch the ready
// flag; that belongs to whoever owns the buffer.
func (s *RawSignal) Reset() {
	s.Number = 0
	s.Repeats = 0
	s.Delay = 0
	s.Multiply = 1
	s.Time = 0
	s.RSSI = 0
	s.EndReason = EndUnknown
	s.Pulses[0] = 0
}

// SetPairs appends mark-space pairs to the train. Pulses wider than the
// buffer can represent are clamped.
func (s *RawSignal) SetPairs(pairs ...TimePair) error {
	if s.Number+2*len(pairs) > RawBufferSize {
		return ErrSignalTooLong
	}
	for _, p := range pairs {
		s.push(p[0])
		s.push(p[1])
	}
	return nil
}

// AppendPulse appends a single pulse, e.g. a trailing mark.
func (s *RawSignal) AppendPulse(d time.Duration) error {
	if s.Number+1 > RawBufferSize {
		return ErrSignalTooLong
	}
	s.push(d)
	return nil
}

func (s *RawSignal) push(d time.Duration) {
	s.Number++
	s.Pulses[s.Number] = clampPulse(uint32(d/time.Microsecond) / s.multiply())
}

func clampPulse(v uint32) uint16 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
