package rftrx

// Pin identifies a GPIO line on the board.
type Pin uint8

// NoPin marks a role that is not wired, e.g. a receiver whose supply is
// hard-wired to VCC. Operations on NoPin are skipped.
const NoPin Pin = 0xFF

type PinMode uint8

const (
	PinInput PinMode = iota
	PinInputPullup
	PinOutput
)

// HAL is the hardware surface the state machines run against.
//
// Functions passed to SetEdgeHandler and ArmTimeout run in interrupt
// context: they must not block and must not allocate.
type HAL interface {
	ConfigurePin(p Pin, mode PinMode)
	SetPin(p Pin, high bool)
	ReadPin(p Pin) bool

	// Micros returns a free running microsecond clock. It is expected to
	// wrap; callers only ever subtract two readings.
	Micros() uint32
	SleepMicros(us uint32)

	// ArmTimeout schedules fn once, us microseconds from now, replacing any
	// timeout armed earlier.
	ArmTimeout(us uint32, fn func())
	CancelTimeout()

	// SetEdgeHandler calls fn on both edges of p. A nil fn detaches the
	// handler; once SetEdgeHandler returns the old handler is not running.
	SetEdgeHandler(p Pin, fn func())
}

// RSSIReader is implemented by front ends that can sample the received
// signal strength, in dBm.
type RSSIReader interface {
	RSSI() float32
}

// RxPins are the receiver's lines. VCC/GND power the module directly,
// PMOS/NMOS drive high/low side switches in front of it.
type RxPins struct {
	Data       Pin
	VCC        Pin
	GND        Pin
	PMOS       Pin
	NMOS       Pin
	NA         Pin
	PullupData bool
}

// TxPins are the transmitter's lines.
type TxPins struct {
	Data Pin
	VCC  Pin
	GND  Pin
	PMOS Pin
	NMOS Pin
}

type Pins struct {
	RX RxPins
	TX TxPins
}

// DefaultPins returns a pin set with every role unwired.
func DefaultPins() Pins {
	return Pins{
		RX: RxPins{Data: NoPin, VCC: NoPin, GND: NoPin, PMOS: NoPin, NMOS: NoPin, NA: NoPin},
		TX: TxPins{Data: NoPin, VCC: NoPin, GND: NoPin, PMOS: NoPin, NMOS: NoPin},
	}
}
