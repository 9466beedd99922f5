package rftrx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/sparques/rftrx"
)

func TestRepeatSuppression(t *testing.T) {
	tests := []struct {
		name          string
		second        uint32
		wantDecoded   uint32
		wantSupressed uint32
	}{
		// identical trains never reach the decoder a second time
		{name: "same train", second: 400, wantDecoded: 1, wantSupressed: 1},
		// different trains decoding to the same payload are caught after
		// decode and counted the same way
		{name: "same payload", second: 600, wantDecoded: 1, wantSupressed: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []rftrx.Event
			h, s := newScanner(t, rftrx.DefaultParams(), acceptAll(3, 0x12, 0x34), func(ev rftrx.Event) {
				events = append(events, ev)
			})

			h.Train(rxData, repeatWidth(400, 30)...)
			h.Drain(20000)
			if !s.ScanEvent() {
				t.Fatal("first train not emitted")
			}

			h.Train(rxData, repeatWidth(tt.second, 30)...)
			h.Drain(30000)
			if s.ScanEvent() {
				t.Error("repeat within the window was emitted")
			}
			c := s.Counters()
			if c.Decoded != tt.wantDecoded || c.Suppressed != tt.wantSupressed {
				t.Errorf("counters = %+v", c)
			}

			h.Advance(300000)
			h.Train(rxData, repeatWidth(400, 30)...)
			h.Drain(20000)
			if !s.ScanEvent() {
				t.Error("repeat after the window was not emitted")
			}
			if len(events) != 2 {
				t.Errorf("got %d events, want 2", len(events))
			}
		})
	}
}

func TestRepeatWindowSurvivesClockWrap(t *testing.T) {
	events := 0
	h, s := newScanner(t, rftrx.DefaultParams(), acceptAll(3, 0x12), func(rftrx.Event) { events++ })

	h.Train(rxData, repeatWidth(400, 30)...)
	h.Drain(20000)
	if !s.ScanEvent() {
		t.Fatal("first train not emitted")
	}

	h.Advance(300000)
	s.ScanEvent()
	// the microsecond clock is back where the window opened
	h.Advance(1<<32 - 300000)

	h.Train(rxData, repeatWidth(400, 30)...)
	h.Drain(20000)
	if !s.ScanEvent() {
		t.Error("train after a clock wrap was suppressed as a repeat")
	}
	if c := s.Counters(); events != 2 || c.Suppressed != 0 {
		t.Errorf("events = %d, counters = %+v", events, c)
	}
}

func TestEventCRC(t *testing.T) {
	var got rftrx.Event
	h, s := newScanner(t, rftrx.DefaultParams(), acceptAll(1, 1, 2, 3), func(ev rftrx.Event) { got = ev })
	h.Train(rxData, repeatWidth(400, 30)...)
	h.Drain(20000)
	s.ScanEvent()
	if got.CRC != 0x55bc801d {
		t.Errorf("CRC = %08x, want crc32 of the payload", got.CRC)
	}
}

func TestDifferentPluginsAreNotRepeats(t *testing.T) {
	plugin := uint8(1)
	dec := rftrx.DecoderFunc(func(*rftrx.RawSignal) (rftrx.Event, bool) {
		return rftrx.Event{Plugin: plugin, Payload: []byte{7}}, true
	})
	n := 0
	h, s := newScanner(t, rftrx.DefaultParams(), dec, func(rftrx.Event) { n++ })

	h.Train(rxData, repeatWidth(400, 30)...)
	h.Drain(20000)
	s.ScanEvent()

	plugin = 2
	h.Train(rxData, repeatWidth(500, 30)...)
	h.Drain(20000)
	s.ScanEvent()

	if n != 2 {
		t.Errorf("emitted %d events, want 2", n)
	}
}

func TestChainOrder(t *testing.T) {
	var tried []int
	mk := func(id int, match bool) rftrx.Decoder {
		return rftrx.DecoderFunc(func(*rftrx.RawSignal) (rftrx.Event, bool) {
			tried = append(tried, id)
			return rftrx.Event{Plugin: uint8(id)}, match
		})
	}
	dec := rftrx.Chain(mk(1, false), mk(2, true), mk(3, true))
	ev, ok := dec.Decode(&rftrx.RawSignal{})
	if !ok || ev.Plugin != 2 {
		t.Errorf("Decode() = %v, %v; want plugin 2", ev.Plugin, ok)
	}
	if len(tried) != 2 {
		t.Errorf("tried %v, want [1 2]", tried)
	}
}

func TestRefreshDeferredDuringCapture(t *testing.T) {
	h, s := newScanner(t, rftrx.DefaultParams(), rejectAll(), nil)

	h.Train(rxData, 400, 400, 400)
	h.Advance(900)
	if !s.Rx().Busy() {
		t.Fatal("expected a capture in flight")
	}

	p := rftrx.DefaultParams()
	p.MinRawPulses = 2
	if err := s.RefreshParams(p); !errors.Is(err, rftrx.ErrDeferred) {
		t.Fatalf("RefreshParams() error = %v, want ErrDeferred", err)
	}
	if s.Params().MinRawPulses != 24 {
		t.Error("parameters changed under a running capture")
	}

	h.Drain(10000)
	s.ScanEvent()
	if s.Params().MinRawPulses != 2 {
		t.Errorf("deferred parameters not applied, MinRawPulses = %d", s.Params().MinRawPulses)
	}
	if s.Radio().State() != rftrx.RadioRX || !s.Rx().Running() {
		t.Error("receiver not restarted after reconfiguration")
	}

	h.Train(rxData, 400, 400, 400)
	h.Drain(10000)
	if !s.Signal.Ready() || s.Signal.Number != 3 {
		t.Errorf("new minimum not in effect: ready %v, %d pulses", s.Signal.Ready(), s.Signal.Number)
	}
}

func TestRefreshRejectsInvalid(t *testing.T) {
	_, s := newScanner(t, rftrx.DefaultParams(), rejectAll(), nil)
	p := rftrx.DefaultParams()
	p.SampleRate = 0
	if err := s.RefreshParams(p); !errors.Is(err, rftrx.ErrInvalidParams) {
		t.Errorf("RefreshParams() error = %v, want ErrInvalidParams", err)
	}
}

func TestRefreshSwitchesToSync(t *testing.T) {
	_, s := newScanner(t, rftrx.DefaultParams(), rejectAll(), nil)
	p := rftrx.DefaultParams()
	p.AsyncMode = false
	if err := s.RefreshParams(p); err != nil {
		t.Fatal(err)
	}
	if s.Rx().Running() {
		t.Error("edge handler still attached in sync mode")
	}
	if st := s.Status(); st.AsyncMode || !st.Scanning {
		t.Errorf("status = %+v", st)
	}
}

func TestRun(t *testing.T) {
	p := rftrx.DefaultParams()
	events := 0
	h, s := newScanner(t, p, acceptAll(5, 1), func(rftrx.Event) { events++ })
	h.Train(rxData, repeatWidth(400, 30)...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ticks := 0
	start := h.Now()
	s.Run(ctx, func() {
		ticks++
		if ticks == 3 {
			cancel()
		}
	})

	if events != 1 {
		t.Errorf("events = %d, want 1", events)
	}
	if elapsed := h.Now() - start; elapsed < 150000 || elapsed > 152000 {
		t.Errorf("three background runs took %dus, want about 150ms", elapsed)
	}
}

func TestRunSyncRadioOff(t *testing.T) {
	p := rftrx.DefaultParams()
	p.AsyncMode = false
	h, s := newScanner(t, p, rejectAll(), nil)
	s.SetRadioMode(rftrx.RadioOff)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	start := h.Now()
	s.Run(ctx, cancel)

	// the loop only reaches the background call if it sleeps
	if elapsed := h.Now() - start; elapsed < 50000 {
		t.Errorf("background ran after %dus, want one ScanHighTime", elapsed)
	}
}

func TestVerboseLogging(t *testing.T) {
	var buf bytes.Buffer
	h, s := newScanner(t, rftrx.DefaultParams(), rejectAll(), nil)
	s.SetLogger(log.New(&buf, "", 0))
	h.Train(rxData, repeatWidth(400, 30)...)
	h.Drain(20000)
	s.ScanEvent()
	if !strings.Contains(buf.String(), "[scan] 30 pulses") || !strings.Contains(buf.String(), "no decoder matched") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestStatusJSON(t *testing.T) {
	h, s := newScanner(t, rftrx.DefaultParams(), rejectAll(), nil)
	h.Train(rxData, repeatWidth(400, 30)...)
	h.Drain(20000)
	s.ScanEvent()

	b, err := json.Marshal(s.Status())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"receivedSignalsCount":            1.0,
		"successfullyDecodedSignalsCount": 0.0,
		"rejectedSignalsCount":            1.0,
		"slicer":                          "Legacy",
		"asyncMode":                       true,
		"scanning":                        true,
		"radio":                           "RX",
		"lastEndReason":                   "SignalEndTimeout",
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}
}

func TestSendCommand(t *testing.T) {
	h, s := newScanner(t, rftrx.DefaultParams(), rejectAll(), nil)
	enc := encoderFunc(func(sig *rftrx.RawSignal) error {
		sig.Pulses[0] = 42
		return sig.SetPairs(
			rftrx.TimePair{300 * time.Microsecond, 900 * time.Microsecond},
			rftrx.TimePair{900 * time.Microsecond, 300 * time.Microsecond},
		)
	})
	if err := s.SendCommand(enc); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	trains, _ := txTrains(h.Journal(), 4)
	want := []uint64{300, 900, 900, 300}
	if len(trains) != 1 || !equalPulses(trains[0], want) {
		t.Errorf("sent %v, want [%v]", trains, want)
	}
	if !s.Rx().Running() {
		t.Error("capture not resumed after transmit")
	}

	failing := encoderFunc(func(*rftrx.RawSignal) error { return rftrx.ErrSignalTooLong })
	if err := s.SendCommand(failing); !errors.Is(err, rftrx.ErrSignalTooLong) {
		t.Errorf("SendCommand() error = %v", err)
	}
	if !s.Rx().Running() {
		t.Error("capture not resumed after a failed encode")
	}
}
