package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/internal/config"
)

const publishTimeout = 5 * time.Second

// MQTTPublisher publishes every event as JSON under <topic>/<protocol>
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	retain bool
}

// generateClientID creates a unique client ID for the MQTT connection
func generateClientID() string {
	return "rftrx_" + uuid.NewString()
}

// NewMQTTPublisher connects to the configured broker
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = generateClientID()
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: Connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("MQTT: Attempting to reconnect...")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Printf("MQTT: Successfully connected to broker: %s as %s", cfg.Broker, clientID)

	return newMQTTPublisher(client, cfg), nil
}

func newMQTTPublisher(client mqtt.Client, cfg config.MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		topic:  strings.TrimSuffix(cfg.Topic, "/"),
		qos:    cfg.QoS,
		retain: cfg.Retain,
	}
}

// Topic is where ev is published
func (mp *MQTTPublisher) Topic(ev rftrx.Event) string {
	name := ev.Protocol
	if name == "" {
		name = fmt.Sprintf("plugin%d", ev.Plugin)
	}
	return mp.topic + "/" + strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

func (mp *MQTTPublisher) Publish(ev rftrx.Event) error {
	payload, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	token := mp.client.Publish(mp.Topic(ev), mp.qos, mp.retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish failed: %w", err)
	}
	return nil
}

func (mp *MQTTPublisher) Close() error {
	mp.client.Disconnect(250)
	log.Println("MQTT: Disconnected")
	return nil
}
