package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTBus implements Bus over an MQTT topic. The broker subscription is made
// once per connection and fanned out locally to Subscribe callers.
type MQTTBus struct {
	client mqtt.Client
	topic  string
	local  *InMemory
}

// NewMQTTBus connects to broker and subscribes to topic.
func NewMQTTBus(broker, topic string) (*MQTTBus, error) {
	if topic == "" {
		topic = "attendance/events"
	}
	b := &MQTTBus{topic: topic, local: NewInMemory(16)}

	clientID := "attendance-console-" + uuid.NewString()
	log.Println("Connecting to MQTT", broker, "with client ID:", clientID)
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(c mqtt.Client) {
		if token := c.Subscribe(b.topic, 1, b.handle); token.Wait() && token.Error() != nil {
			log.Printf("events: mqtt subscribe %s failed: %v", b.topic, token.Error())
			return
		}
		log.Println("Connected to MQTT, subscribed to", b.topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("events: mqtt connection lost: %v", err)
	}

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return b, nil
}

func (b *MQTTBus) handle(_ mqtt.Client, m mqtt.Message) {
	evt, err := decode(m.Payload())
	if err != nil {
		log.Printf("events: mqtt %s: %v", m.Topic(), err)
		return
	}
	if err := b.local.Publish(context.Background(), evt); err != nil {
		log.Printf("events: mqtt relay: %v", err)
	}
}

// Publish sends evt at QoS 1 and waits for the broker acknowledgement or ctx.
func (b *MQTTBus) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	token := b.client.Publish(b.topic, 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe streams events received on the topic.
func (b *MQTTBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	return b.local.Subscribe(ctx)
}

// Close unsubscribes and disconnects.
func (b *MQTTBus) Close() error {
	_ = b.local.Close()
	if b.client == nil || !b.client.IsConnected() {
		return nil
	}
	b.client.Unsubscribe(b.topic).WaitTimeout(time.Second)
	b.client.Disconnect(250)
	return nil
}
