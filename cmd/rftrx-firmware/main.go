//go:build tinygo

package main

import (
	"context"
	"machine"
	"os"
	"time"

	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/hal/board"
	"github.com/sparques/rftrx/ook"
)

// Wiring of the reference board: receiver data on D2 with its supply
// switched through an NMOS on D4, transmitter data on D5 powered from D6.
var pins = rftrx.Pins{
	RX: rftrx.RxPins{
		Data: rftrx.Pin(machine.D2),
		VCC:  rftrx.NoPin,
		GND:  rftrx.NoPin,
		PMOS: rftrx.NoPin,
		NMOS: rftrx.Pin(machine.D4),
		NA:   rftrx.NoPin,
	},
	TX: rftrx.TxPins{
		Data: rftrx.Pin(machine.D5),
		VCC:  rftrx.Pin(machine.D6),
		GND:  rftrx.NoPin,
		PMOS: rftrx.NoPin,
		NMOS: rftrx.NoPin,
	},
}

var doorbell = &ook.Protocol{
	ID:      10,
	Name:    "OOK10",
	Sync:    rftrx.TimePair{350 * time.Microsecond, 3850 * time.Microsecond},
	Zero:    rftrx.TimePair{350 * time.Microsecond, 1050 * time.Microsecond},
	One:     rftrx.TimePair{1050 * time.Microsecond, 350 * time.Microsecond},
	Bits:    24,
	Repeats: 4,
	Delay:   10,
}

func main() {
	time.Sleep(2 * time.Second)

	hal := board.New()
	scanner, err := rftrx.NewScanner(hal.Device(), pins, rftrx.DefaultParams(), rftrx.Chain(doorbell), func(ev rftrx.Event) {
		println(ev.Message)
	})
	if err != nil {
		println("Failed to create scanner:", err.Error())
		return
	}
	scanner.SetRadioMode(rftrx.RadioRX)
	println("rftrx ready")

	var last rftrx.Counters
	scanner.Run(context.Background(), func() {
		// show the last buffer when something went undecoded
		c := scanner.Counters()
		if c.Rejected != last.Rejected {
			scanner.DisplaySignal(os.Stdout)
		}
		last = c
	})
}
