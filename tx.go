package rftrx

import "time"

// TxDevice replays pulse trains on the transmitter's data pin.
type TxDevice struct {
	hal   HAL
	radio *Radio
	pin   Pin
}

func NewTxDevice(h HAL, radio *Radio) *TxDevice {
	return &TxDevice{
		hal:   h,
		radio: radio,
		pin:   radio.Pins().TX.Data,
	}
}

// sendTrain plays pulses 1..Number, starting with a mark. Index 0 is
// metadata and never sent.
func (tx *TxDevice) sendTrain(sig *RawSignal) {
	high := true
	for i := 1; i <= sig.Number; i++ {
		tx.hal.SetPin(tx.pin, high)
		tx.hal.SleepMicros(sig.Pulse(i))
		high = !high
	}
	tx.hal.SetPin(tx.pin, false)
}

// Send takes the transmitter, plays the train sig.Repeats times (at least
// once) with sig.Delay milliseconds between repeats and hands the radio
// back in the mode it was in before.
//
// Send cannot be interrupted. A train cut short on air can leave other
// receivers in a half-decoded state, so once started it always completes.
func (tx *TxDevice) Send(sig *RawSignal) error {
	if sig.Number <= 0 {
		return ErrEmptySignal
	}
	if sig.Number > RawBufferSize {
		return ErrSignalTooLong
	}
	prev := tx.radio.State()
	if prev == RadioUnset {
		return ErrRadioUnset
	}

	tx.radio.SetMode(RadioTX)
	repeats := int(sig.Repeats)
	if repeats < 1 {
		repeats = 1
	}
	delay := micros(time.Duration(sig.Delay) * time.Millisecond)
	for r := 0; r < repeats; r++ {
		if r > 0 {
			tx.hal.SleepMicros(delay)
		}
		tx.sendTrain(sig)
	}
	tx.radio.SetMode(prev)
	return nil
}
