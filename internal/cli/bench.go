package cli

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/hal/sim"
	"github.com/sparques/rftrx/internal/config"
	"github.com/sparques/rftrx/internal/recording"
	"github.com/sparques/rftrx/ook"
	"github.com/spf13/viper"
)

// scanStep is how far the simulated clock moves between two scans.
const scanStep = 1000

// bench is a scanner attached to a simulated radio. Trains that arrive from
// a serial sniffer or a recording are played into it as edges on the data
// pin, so they go through the same capture and decode path as on a device.
type bench struct {
	mu       sync.Mutex
	hal      *sim.HAL
	scanner  *rftrx.Scanner
	pins     rftrx.Pins
	async    bool
	lastFeed time.Time
}

func newBench(cfg *config.Config, handler rftrx.EventHandler) (*bench, []*ook.Protocol, error) {
	pins, err := cfg.Radio.Pins()
	if err != nil {
		return nil, nil, err
	}
	dec, protos, err := cfg.Decoders()
	if err != nil {
		return nil, nil, err
	}
	h := sim.New()
	s, err := rftrx.NewScanner(h, pins, cfg.Signal.Params(), dec, handler)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	s.Radio().SetSettleDelay(cfg.Radio.SettleDelay())
	if viper.GetBool("verbose") {
		s.SetLogger(log.New(os.Stderr, "", log.LstdFlags))
	}

	slicer, err := cfg.Signal.SlicerVariant()
	if err != nil {
		return nil, nil, err
	}
	if err := s.UpdateSlicer(slicer); err != nil {
		return nil, nil, fmt.Errorf("failed to set slicer: %w", err)
	}
	if err := s.SetGapPolicy(cfg.Signal.GapPolicy()); err != nil {
		return nil, nil, fmt.Errorf("failed to set gap policy: %w", err)
	}
	s.SetRadioMode(rftrx.RadioRX)

	return &bench{
		hal:     h,
		scanner: s,
		pins:    pins,
		async:   cfg.Signal.AsyncModeEnabled,
	}, protos, nil
}

// Status is safe to call while trains are being fed.
func (b *bench) Status() rftrx.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scanner.Status()
}

// drain scans until every scheduled edge has gone through the receiver.
func (b *bench) drain() {
	for !b.hal.Idle() {
		if b.async {
			b.hal.Advance(scanStep)
		}
		b.scanner.ScanEvent()
	}
	b.scanner.ScanEvent()
}

// feed plays one train of pulse widths, in microseconds. The simulated time
// between two trains follows the wall clock, and is never less than
// recording.DefaultGap so that trains cannot merge.
func (b *bench) feed(pulses []uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gap := uint64(recording.DefaultGap)
	if !b.lastFeed.IsZero() {
		if since := time.Since(b.lastFeed).Microseconds(); since > int64(gap) {
			gap = uint64(min(since, int64(time.Hour/time.Microsecond)))
		}
	}
	b.lastFeed = time.Now()

	at := b.hal.Now() + gap
	b.hal.Schedule(at, b.pins.RX.Data)
	for _, w := range pulses {
		at += uint64(w)
		b.hal.Schedule(at, b.pins.RX.Data)
	}
	b.drain()
}

// play runs a whole recording through the receiver in simulated time.
func (b *bench) play(rec *recording.Recording) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec.Play(b.hal, b.pins.RX.Data)
	b.drain()
}

// send transmits enc and returns the level changes on the TX data pin.
func (b *bench) send(enc rftrx.Encoder) ([]uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hal.ClearJournal()
	if err := b.scanner.SendCommand(enc); err != nil {
		return nil, err
	}
	return b.hal.Transitions(b.pins.TX.Data), nil
}

// transmit sends train i of rec and returns the level changes on the TX
// data pin.
func (b *bench) transmit(rec *recording.Recording, i int) ([]uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sig := &rftrx.RawSignal{}
	if err := rec.Signal(i, sig); err != nil {
		return nil, err
	}
	b.hal.ClearJournal()
	if err := b.scanner.RawSend(sig); err != nil {
		return nil, err
	}
	return b.hal.Transitions(b.pins.TX.Data), nil
}

// loopback plays transitions captured from a transmission into the receiver.
func (b *bench) loopback(transitions []uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	base := b.hal.Now() + recording.DefaultGap
	for _, at := range transitions {
		b.hal.Schedule(base+at, b.pins.RX.Data)
	}
	b.drain()
}
