// Package rftrx captures, classifies and replays the OOK pulse trains sent
// by sub-gigahertz home-automation devices: remotes, door and window
// sensors, weather stations.
//
// Receiving is split in two halves. An RxDevice runs from the data pin's
// edge interrupt and records pulse widths into a RawSignal; a Scanner runs
// from the main loop, picks up finished captures, hands them to a chain of
// Decoders and filters out retransmissions. Transmitting goes the other
// way: an Encoder fills a RawSignal and a TxDevice replays it on the
// transmitter's data pin.
//
// All hardware access goes through the HAL interface. The hal/sim package
// provides a simulated clock and edge source, hal/board the real thing.
package rftrx

import "time"

// TimePair encodes two durations used to encode a mark-space amount of time.
type TimePair [2]time.Duration

// Encoder defines an interface for marshalling a command into a RawSignal
// ready to be transmitted.
type Encoder interface {
	MarshalSignal(*RawSignal) error
}
