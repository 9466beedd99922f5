package rftrx

// Event is what a decoder makes of a pulse train.
type Event struct {
	// Plugin identifies the decoder that produced the event.
	Plugin   uint8  `json:"plugin"`
	Protocol string `json:"protocol"`
	// Payload is the decoded bit stream. Unless the decoder sets CRC
	// itself, its checksum identifies repeats of the same transmission.
	Payload []byte  `json:"payload,omitempty"`
	Message string  `json:"message"`
	CRC     uint32  `json:"crc"`
	RSSI    float32 `json:"rssi,omitempty"`
}

// Decoder recognises a pulse train. Decode runs on the main loop with the
// buffer owned by the caller and must not keep a reference to it.
type Decoder interface {
	Decode(sig *RawSignal) (Event, bool)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(sig *RawSignal) (Event, bool)

func (f DecoderFunc) Decode(sig *RawSignal) (Event, bool) {
	return f(sig)
}

type decoderChain []Decoder

func (c decoderChain) Decode(sig *RawSignal) (Event, bool) {
	for _, d := range c {
		if ev, ok := d.Decode(sig); ok {
			return ev, true
		}
	}
	return Event{}, false
}

// Chain accepts a list of Decoders in priority order and returns a Decoder
// that tries each of them in turn. The first one to recognise the train
// wins.
// E.G.:
//
//	dec := rftrx.Chain(doorbell, weather, rftrx.DecoderFunc(catchAll))
//	scanner, err := rftrx.NewScanner(hal, pins, params, dec, onEvent)
func Chain(decoders ...Decoder) Decoder {
	return decoderChain(decoders)
}

// EventHandler receives the events a Scanner emits.
type EventHandler func(Event)
