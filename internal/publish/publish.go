// Package publish forwards decoded events to the outside world.
package publish

import (
	"errors"
	"log"
	"time"

	"github.com/sparques/rftrx"
)

// Publisher delivers events. Publish must be safe to call from the scan
// loop and should not block for long.
type Publisher interface {
	Publish(ev rftrx.Event) error
	Close() error
}

// Message is the envelope events travel in
type Message struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data rftrx.Event `json:"data"`
}

func NewMessage(ev rftrx.Event) Message {
	return Message{Type: "event", Time: time.Now().UTC(), Data: ev}
}

// Multi fans an event out to several publishers
type Multi []Publisher

func (m Multi) Publish(ev rftrx.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handler adapts a publisher to a scanner's event handler. Failures are
// logged, never returned to the scan loop.
func Handler(p Publisher) rftrx.EventHandler {
	return func(ev rftrx.Event) {
		if err := p.Publish(ev); err != nil {
			log.Printf("Publish: %v", err)
		}
	}
}
