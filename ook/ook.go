/*
Package ook decodes and encodes generic on-off keyed pulse width protocols.

Most cheap 315/433MHz remotes, doorbells and sensors send a frame like this:

	sync mark, sync space, then one mark/space pair per bit, then an optional footer mark

A bit is told apart by the widths of its pair. With the usual encoding a
zero is a short mark followed by a long space and a one is a long mark
followed by a short space, but any two distinguishable pairs work.

A Protocol describes such a frame by its timings and bit count. It is both a
rftrx.Decoder (for a Scanner's decoder chain) and, through Command, a source
of trains to transmit.

## Capture alignment

A capture starts on the rising edge of the first mark, so pulse 1 is a mark
and marks sit on odd indexes. The silence that ends a capture is not stored,
which means the space of the last bit is usually missing. For that last
pair the mark alone decides, so protocols without a footer need marks of
different width for zero and one.

## Example

	doorbell := &ook.Protocol{
		ID:      20,
		Name:    "Doorbell",
		Sync:    rftrx.TimePair{350 * time.Microsecond, 3850 * time.Microsecond},
		Zero:    rftrx.TimePair{350 * time.Microsecond, 1050 * time.Microsecond},
		One:     rftrx.TimePair{1050 * time.Microsecond, 350 * time.Microsecond},
		Bits:    24,
		Repeats: 8,
		Delay:   10,
	}
	scanner, err := rftrx.NewScanner(hal, pins, params, rftrx.Chain(doorbell), onEvent)
	...
	err = scanner.SendCommand(doorbell.Command(0x5A5A5A))
*/
package ook

import (
	"errors"
	"fmt"
	"time"

	"github.com/sparques/rftrx"
)

// DefaultTolerance is the accepted deviation from a nominal width, in
// percent, when Protocol.Tolerance is zero.
const DefaultTolerance = 25

var (
	ErrTooManyBits = errors.New("ook: more than 64 bits")
	ErrNoBits      = errors.New("ook: protocol has no bits")
)

type Protocol struct {
	// ID is reported as the event's plugin id and stored in Pulses[0] of
	// encoded trains.
	ID   uint8
	Name string

	// Sync precedes the bits. A zero Sync means frames start with the
	// first bit.
	Sync rftrx.TimePair
	Zero rftrx.TimePair
	One  rftrx.TimePair
	// Footer is a closing mark after the last bit, zero for none.
	Footer time.Duration

	Bits      int
	Tolerance int

	// Repeats and Delay are copied into encoded trains.
	Repeats uint8
	Delay   uint8
}

func (p *Protocol) tolerance() uint32 {
	if p.Tolerance <= 0 {
		return DefaultTolerance
	}
	return uint32(p.Tolerance)
}

func us(d time.Duration) uint32 {
	return uint32(d / time.Microsecond)
}

func (p *Protocol) near(got uint32, want time.Duration) bool {
	w := us(want)
	diff := got - w
	if got < w {
		diff = w - got
	}
	return diff*100 <= w*p.tolerance()
}

func (p *Protocol) hasSync() bool {
	return p.Sync != rftrx.TimePair{}
}

// bit classifies the pair at index i. When the train ends before the pair's
// space, the mark decides alone.
func (p *Protocol) bit(sig *rftrx.RawSignal, i int) (one bool, ok bool) {
	mark := sig.Pulse(i)
	if i+1 > sig.Number {
		isZero, isOne := p.near(mark, p.Zero[0]), p.near(mark, p.One[0])
		if isZero == isOne {
			return false, false
		}
		return isOne, true
	}
	space := sig.Pulse(i + 1)
	switch {
	case p.near(mark, p.One[0]) && p.near(space, p.One[1]):
		return true, true
	case p.near(mark, p.Zero[0]) && p.near(space, p.Zero[1]):
		return false, true
	}
	return false, false
}

// frameAt decodes a frame whose first pair (sync or first bit) is at i.
func (p *Protocol) frameAt(sig *rftrx.RawSignal, i int) (uint64, bool) {
	if p.hasSync() {
		if i+1 > sig.Number || !p.near(sig.Pulse(i), p.Sync[0]) || !p.near(sig.Pulse(i+1), p.Sync[1]) {
			return 0, false
		}
		i += 2
	}
	if i+2*(p.Bits-1) > sig.Number {
		return 0, false
	}
	var v uint64
	for b := 0; b < p.Bits; b++ {
		one, ok := p.bit(sig, i+2*b)
		if !ok {
			return 0, false
		}
		v <<= 1
		if one {
			v |= 1
		}
	}
	return v, true
}

// DecodeValue finds the first complete frame in sig.
func (p *Protocol) DecodeValue(sig *rftrx.RawSignal) (uint64, bool) {
	if p.Bits <= 0 || p.Bits > 64 {
		return 0, false
	}
	if !p.hasSync() {
		return p.frameAt(sig, 1)
	}
	for i := 1; i < sig.Number; i += 2 {
		if v, ok := p.frameAt(sig, i); ok {
			return v, true
		}
	}
	return 0, false
}

// Decode implements rftrx.Decoder.
func (p *Protocol) Decode(sig *rftrx.RawSignal) (rftrx.Event, bool) {
	v, ok := p.DecodeValue(sig)
	if !ok {
		return rftrx.Event{}, false
	}
	n := (p.Bits + 7) / 8
	payload := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		payload[i] = byte(v)
		v >>= 8
	}
	return rftrx.Event{
		Plugin:   p.ID,
		Protocol: p.Name,
		Payload:  payload,
		Message:  fmt.Sprintf("%s;ID=%0*X;", p.Name, 2*n, payload),
		RSSI:     sig.RSSI,
	}, true
}

// Encode writes one frame carrying the low Bits bits of v into sig, most
// significant bit first. Whatever sig held before is discarded.
func (p *Protocol) Encode(sig *rftrx.RawSignal, v uint64) error {
	switch {
	case p.Bits <= 0:
		return ErrNoBits
	case p.Bits > 64:
		return ErrTooManyBits
	}
	sig.Reset()
	sig.Pulses[0] = uint16(p.ID)
	sig.Repeats = p.Repeats
	sig.Delay = p.Delay
	if p.hasSync() {
		if err := sig.SetPairs(p.Sync); err != nil {
			return err
		}
	}
	for b := p.Bits - 1; b >= 0; b-- {
		pair := p.Zero
		if (v>>b)&1 == 1 {
			pair = p.One
		}
		if err := sig.SetPairs(pair); err != nil {
			return err
		}
	}
	if p.Footer > 0 {
		return sig.AppendPulse(p.Footer)
	}
	return nil
}

// Command is a value bound to a protocol, ready to be handed to
// Scanner.SendCommand.
type Command struct {
	Protocol *Protocol
	Value    uint64
}

func (p *Protocol) Command(v uint64) Command {
	return Command{Protocol: p, Value: v}
}

// MarshalSignal implements rftrx.Encoder.
func (c Command) MarshalSignal(sig *rftrx.RawSignal) error {
	return c.Protocol.Encode(sig, c.Value)
}
