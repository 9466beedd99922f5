// Package recording stores pulse trains as YAML and plays them back into a
// simulated receiver.
package recording

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/hal/sim"
	"gopkg.in/yaml.v3"
)

// DefaultGap separates trains whose gap is left out. It is well above any
// signal end timeout, so each train is captured on its own.
const DefaultGap = 50000

type Recording struct {
	Name   string  `yaml:"name,omitempty"`
	Trains []Train `yaml:"trains"`
}

// Train is one burst of pulses, in microseconds, starting with a mark.
type Train struct {
	// GapUs is the silence before the train.
	GapUs     uint32   `yaml:"gap_us,omitempty"`
	Pulses    []uint32 `yaml:"pulses,flow"`
	EndReason string   `yaml:"end_reason,omitempty"`
	RSSI      float32  `yaml:"rssi,omitempty"`
}

func Load(r io.Reader) (*Recording, error) {
	var rec Recording
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode recording: %w", err)
	}
	for i, t := range rec.Trains {
		if len(t.Pulses) == 0 {
			return nil, fmt.Errorf("train %d has no pulses", i)
		}
		for j, w := range t.Pulses {
			if w == 0 {
				return nil, fmt.Errorf("train %d: pulse %d is zero", i, j+1)
			}
		}
	}
	return &rec, nil
}

func LoadFile(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (rec *Recording) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode recording: %w", err)
	}
	return enc.Close()
}

// Add appends a copy of pulses, in microseconds, as a train that follows
// gap microseconds of silence.
func (rec *Recording) Add(gap uint32, pulses []uint32) {
	rec.Trains = append(rec.Trains, Train{
		GapUs:  gap,
		Pulses: append([]uint32(nil), pulses...),
	})
}

// Signal fills sig with train i for transmission.
func (rec *Recording) Signal(i int, sig *rftrx.RawSignal) error {
	if i < 0 || i >= len(rec.Trains) {
		return fmt.Errorf("no train %d in recording", i)
	}
	sig.Reset()
	for _, w := range rec.Trains[i].Pulses {
		if err := sig.AppendPulse(time.Duration(w) * time.Microsecond); err != nil {
			return err
		}
	}
	return nil
}

// Play schedules every train as edges on pin, starting at the current
// simulated time. Each pulse is the time between two edges, so a train of
// n pulses is n+1 edges. It returns the time of the last edge.
func (rec *Recording) Play(h *sim.HAL, pin rftrx.Pin) uint64 {
	at := h.Now()
	for i, t := range rec.Trains {
		gap := t.GapUs
		if gap == 0 && i > 0 {
			gap = DefaultGap
		}
		at += uint64(gap)
		h.Schedule(at, pin)
		for _, w := range t.Pulses {
			at += uint64(w)
			h.Schedule(at, pin)
		}
	}
	return at
}
