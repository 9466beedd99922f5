package rftrx

import "time"

// RadioState is the power state of the analog front end.
type RadioState uint8

const (
	// RadioUnset is the state before the first SetMode. It is never
	// entered by a transition.
	RadioUnset RadioState = iota
	RadioOff
	RadioRX
	RadioTX
)

func (s RadioState) String() string {
	switch s {
	case RadioOff:
		return "OFF"
	case RadioRX:
		return "RX"
	case RadioTX:
		return "TX"
	}
	return "UNSET"
}

// DefaultSettleDelay is how long receiver and transmitter modules need
// after a power change before their data pin can be trusted.
const DefaultSettleDelay = 500 * time.Microsecond

// Radio switches power between the receiver and the transmitter. The two
// are never powered at the same time: entering one role always powers the
// other down first.
//
// Radio is only used from the main loop.
type Radio struct {
	hal    HAL
	pins   Pins
	state  RadioState
	settle uint32
}

func NewRadio(h HAL, pins Pins) *Radio {
	return &Radio{
		hal:    h,
		pins:   pins,
		settle: micros(DefaultSettleDelay),
	}
}

func (r *Radio) SetSettleDelay(d time.Duration) {
	r.settle = micros(d)
}

func (r *Radio) State() RadioState {
	return r.state
}

func (r *Radio) Pins() Pins {
	return r.pins
}

// SetMode moves the front end to state. It blocks for the settle delay of
// every role it powers up or down.
func (r *Radio) SetMode(state RadioState) {
	if state == r.state || state == RadioUnset {
		return
	}
	switch state {
	case RadioOff:
		r.disableTX()
		r.disableRX()
	case RadioRX:
		r.disableTX()
		r.enableRX()
	case RadioTX:
		r.disableRX()
		r.enableTX()
	}
	r.state = state
}

func (r *Radio) mode(p Pin, m PinMode) {
	if p != NoPin {
		r.hal.ConfigurePin(p, m)
	}
}

func (r *Radio) write(p Pin, high bool) {
	if p != NoPin {
		r.hal.SetPin(p, high)
	}
}

func (r *Radio) enableRX() {
	rx := r.pins.RX
	r.mode(rx.NA, PinInput)
	r.mode(rx.Data, PinInput)
	// ground switch first, then supply
	r.mode(rx.NMOS, PinOutput)
	r.mode(rx.PMOS, PinOutput)
	r.write(rx.NMOS, true)
	r.write(rx.PMOS, false)
	r.mode(rx.GND, PinOutput)
	r.mode(rx.VCC, PinOutput)
	r.write(rx.GND, false)
	r.write(rx.VCC, true)
	if rx.PullupData {
		r.mode(rx.Data, PinInputPullup)
	}
	r.hal.SleepMicros(r.settle)
}

func (r *Radio) disableRX() {
	rx := r.pins.RX
	r.hal.SleepMicros(r.settle)
	r.mode(rx.Data, PinInput)
	r.mode(rx.NA, PinInput)
	r.mode(rx.PMOS, PinOutput)
	r.mode(rx.NMOS, PinOutput)
	r.write(rx.PMOS, true)
	r.write(rx.NMOS, false)
	r.mode(rx.VCC, PinInput)
	r.mode(rx.GND, PinInput)
}

func (r *Radio) enableTX() {
	tx := r.pins.TX
	// data low before the transmitter gets power
	r.mode(tx.Data, PinOutput)
	r.write(tx.Data, false)
	r.mode(tx.NMOS, PinOutput)
	r.mode(tx.PMOS, PinOutput)
	r.write(tx.NMOS, true)
	r.write(tx.PMOS, false)
	r.mode(tx.GND, PinOutput)
	r.mode(tx.VCC, PinOutput)
	r.write(tx.GND, false)
	r.write(tx.VCC, true)
	r.hal.SleepMicros(r.settle)
}

func (r *Radio) disableTX() {
	tx := r.pins.TX
	r.hal.SleepMicros(r.settle)
	r.write(tx.Data, false)
	r.mode(tx.Data, PinInput)
	r.mode(tx.NMOS, PinOutput)
	r.mode(tx.PMOS, PinOutput)
	r.write(tx.PMOS, true)
	r.write(tx.NMOS, false)
	r.mode(tx.VCC, PinInput)
	r.mode(tx.GND, PinInput)
}
