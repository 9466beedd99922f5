package rftrx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Counters are monotonic for the lifetime of a Scanner.
type Counters struct {
	// Received counts every finished train, including the ones discarded
	// as noise.
	Received   uint32 `json:"receivedSignalsCount"`
	// Decoded counts trains that were decoded and emitted as an event.
	// A repeat is counted as Suppressed only, whether it was caught
	// before or after decoding, so every received train lands in exactly
	// one of Decoded, Rejected, Suppressed and Noise.
	Decoded    uint32 `json:"successfullyDecodedSignalsCount"`
	Rejected   uint32 `json:"rejectedSignalsCount"`
	Suppressed uint32 `json:"suppressedRepeatsCount"`
	Noise      uint32 `json:"noiseSignalsCount"`
}

// Counters may be called from any goroutine.
func (s *Scanner) Counters() Counters {
	noise := s.rx.Noise()
	return Counters{
		Received:   s.received.Load() + noise,
		Decoded:    s.decoded.Load(),
		Rejected:   s.rejected.Load(),
		Suppressed: s.suppressed.Load(),
		Noise:      noise,
	}
}

// Status is the observability snapshot of a Scanner.
type Status struct {
	Counters
	Slicer        string `json:"slicer"`
	AsyncMode     bool   `json:"asyncMode"`
	Scanning      bool   `json:"scanning"`
	Capture       string `json:"capture"`
	Radio         string `json:"radio"`
	LastEndReason string `json:"lastEndReason"`
}

// Status must be called from the main loop.
func (s *Scanner) Status() Status {
	scanning := s.radio.State() == RadioRX
	if s.params.AsyncMode {
		scanning = scanning && s.rx.Running()
	}
	return Status{
		Counters:      s.Counters(),
		Slicer:        s.rx.Slicer().String(),
		AsyncMode:     s.params.AsyncMode,
		Scanning:      scanning,
		Capture:       s.rx.current().String(),
		Radio:         s.radio.State().String(),
		LastEndReason: s.rx.LastEndReason().String(),
	}
}

// DisplaySignal writes sig as one line in the format RF gateways print raw
// captures in:
//
//	Pulses=4;Pulses(uSec)=400,800,400,5200;RSSI=-72;EndReason=SignalEndTimeout;
//
// RSSI is omitted when the front end did not sample it.
func DisplaySignal(w io.Writer, sig *RawSignal) error {
	bw := bufio.NewWriter(w)
	var num [10]byte
	fmt.Fprintf(bw, "Pulses=%d;Pulses(uSec)=", sig.Number)
	for i := 1; i <= sig.Number; i++ {
		if i > 1 {
			bw.WriteByte(',')
		}
		bw.Write(strconv.AppendUint(num[:0], uint64(sig.Pulse(i)), 10))
	}
	bw.WriteByte(';')
	if sig.RSSI != 0 {
		fmt.Fprintf(bw, "RSSI=%.0f;", sig.RSSI)
	}
	fmt.Fprintf(bw, "EndReason=%s;\n", sig.EndReason)
	return bw.Flush()
}

// DisplaySignal prints the scanner's buffer.
func (s *Scanner) DisplaySignal(w io.Writer) error {
	return DisplaySignal(w, s.Signal)
}
