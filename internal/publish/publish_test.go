package publish

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/internal/config"
)

type recorder struct {
	events []rftrx.Event
	err    error
	closed bool
}

func (r *recorder) Publish(ev rftrx.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{}, &recorder{err: boom}
	m := Multi{a, b}

	err := m.Publish(rftrx.Event{Plugin: 1})
	if !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v, want %v", err, boom)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events delivered: a=%d b=%d", len(a.events), len(b.events))
	}
	if err := m.Close(); err != nil || !a.closed || !b.closed {
		t.Errorf("Close() = %v, closed a=%v b=%v", err, a.closed, b.closed)
	}
}

// fakeToken completes immediately
type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	sent []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	return fakeToken{}
}

func TestMQTTPublish(t *testing.T) {
	fc := &fakeClient{}
	mp := newMQTTPublisher(fc, config.MQTTConfig{Topic: "rftrx/events/", QoS: 1, Retain: true})

	tests := []struct {
		ev    rftrx.Event
		topic string
	}{
		{rftrx.Event{Plugin: 10, Protocol: "Door Bell", CRC: 7}, "rftrx/events/door_bell"},
		{rftrx.Event{Plugin: 3}, "rftrx/events/plugin3"},
	}
	for _, tt := range tests {
		if err := mp.Publish(tt.ev); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		got := fc.sent[len(fc.sent)-1]
		if got.topic != tt.topic || got.qos != 1 || !got.retain {
			t.Errorf("published to %q qos %d retain %v", got.topic, got.qos, got.retain)
		}
		var msg Message
		if err := json.Unmarshal(got.payload, &msg); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		if msg.Type != "event" || msg.Data.Plugin != tt.ev.Plugin || msg.Data.CRC != tt.ev.CRC {
			t.Errorf("payload = %+v", msg)
		}
	}
}

func TestClientID(t *testing.T) {
	a, b := generateClientID(), generateClientID()
	if !strings.HasPrefix(a, "rftrx_") || a == b {
		t.Errorf("client ids %q %q", a, b)
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conns := make([]*websocket.Conn, 2)
	for i := range conns {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		defer c.Close()
		conns[i] = c
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want 2", hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}

	ev := rftrx.Event{Plugin: 10, Protocol: "OOK10", Message: "OOK10;ID=ABCDEF;", CRC: 42}
	if err := hub.Publish(ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	for i, c := range conns {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := c.ReadJSON(&msg); err != nil {
			t.Fatalf("client %d: ReadJSON() error = %v", i, err)
		}
		if msg.Data.Message != ev.Message || msg.Data.CRC != 42 {
			t.Errorf("client %d got %+v", i, msg.Data)
		}
	}

	conns[0].Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() after disconnect = %d, want 1", hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
