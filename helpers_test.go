package rftrx_test

import (
	"testing"

	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/hal/sim"
)

const (
	rxData rftrx.Pin = 2
	rxVCC  rftrx.Pin = 3
	rxNMOS rftrx.Pin = 4
	txData rftrx.Pin = 5
	txVCC  rftrx.Pin = 6
	txNMOS rftrx.Pin = 7
)

func testPins() rftrx.Pins {
	p := rftrx.DefaultPins()
	p.RX.Data = rxData
	p.RX.VCC = rxVCC
	p.RX.NMOS = rxNMOS
	p.TX.Data = txData
	p.TX.VCC = txVCC
	p.TX.NMOS = txNMOS
	return p
}

func repeatWidth(w uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = w
	}
	return out
}

// newScanner returns a scanner already in RX with an empty journal.
func newScanner(t *testing.T, p rftrx.Params, dec rftrx.Decoder, handler rftrx.EventHandler) (*sim.HAL, *rftrx.Scanner) {
	t.Helper()
	h := sim.New()
	s, err := rftrx.NewScanner(h, testPins(), p, dec, handler)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	s.SetRadioMode(rftrx.RadioRX)
	h.ClearJournal()
	return h, s
}

func rejectAll() rftrx.Decoder {
	return rftrx.Chain()
}

func acceptAll(plugin uint8, payload ...byte) rftrx.Decoder {
	return rftrx.DecoderFunc(func(sig *rftrx.RawSignal) (rftrx.Event, bool) {
		return rftrx.Event{Plugin: plugin, Protocol: "test", Payload: payload}, true
	})
}

type encoderFunc func(*rftrx.RawSignal) error

func (f encoderFunc) MarshalSignal(sig *rftrx.RawSignal) error {
	return f(sig)
}
