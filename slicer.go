package rftrx

import (
	"fmt"
	"strings"
)

// Slicer selects the algorithm that turns raw edge timing into pulses.
type Slicer int8

const (
	SlicerDefault Slicer = iota - 1
	SlicerLegacy
	SlicerRSSIAdvanced
)

func (s Slicer) String() string {
	switch s {
	case SlicerLegacy:
		return "Legacy"
	case SlicerRSSIAdvanced:
		return "RSSI_Advanced"
	case SlicerDefault:
		return "Default"
	}
	return fmt.Sprintf("Slicer(%d)", int8(s))
}

// ParseSlicer accepts the names printed by String, case insensitively.
func ParseSlicer(name string) (Slicer, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
	case "", "default":
		return SlicerDefault, nil
	case "legacy":
		return SlicerLegacy, nil
	case "rssi_advanced", "rssi":
		return SlicerRSSIAdvanced, nil
	}
	return SlicerDefault, fmt.Errorf("%w: %q", ErrInvalidSlicer, name)
}

// slicer is one capture algorithm variant. confirm decides whether the
// pulse that ends the seek phase starts a capture; sample runs after every
// stored pulse. Both run in interrupt context.
type slicer interface {
	confirm(rx *RxDevice, width uint32) bool
	sample(rx *RxDevice)
}

type legacySlicer struct{}

func (legacySlicer) confirm(rx *RxDevice, width uint32) bool {
	return width >= rx.t.minPreamble
}

func (legacySlicer) sample(*RxDevice) {}

// rssiSlicer only commits to a capture when the front end reports a signal
// above the threshold, and keeps the peak strength seen during the train.
type rssiSlicer struct {
	reader RSSIReader
}

func (s rssiSlicer) confirm(rx *RxDevice, width uint32) bool {
	if width < rx.t.minPreamble {
		return false
	}
	v := s.reader.RSSI()
	if v < rx.t.rssiThreshold {
		return false
	}
	rx.signal.RSSI = v
	return true
}

func (s rssiSlicer) sample(rx *RxDevice) {
	if v := s.reader.RSSI(); v > rx.signal.RSSI {
		rx.signal.RSSI = v
	}
}

// newSlicer resolves a variant against the HAL's capabilities.
func newSlicer(v Slicer, h HAL) (slicer, Slicer, error) {
	switch v {
	case SlicerDefault, SlicerLegacy:
		return legacySlicer{}, SlicerLegacy, nil
	case SlicerRSSIAdvanced:
		r, ok := h.(RSSIReader)
		if !ok {
			return nil, v, ErrRSSIUnsupported
		}
		return rssiSlicer{reader: r}, v, nil
	}
	return nil, v, fmt.Errorf("%w: %d", ErrInvalidSlicer, int8(v))
}
