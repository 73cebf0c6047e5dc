package widgets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gitlab.com/tinyland/lab/i3pulse/pkg/config"
	"gitlab.com/tinyland/lab/i3pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/i3pulse/pkg/widget"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttDisconnectWait = 250 // ms
)

// MQTT shows the latest payload published on a topic.
type MQTT struct {
	topic    string
	every    time.Duration
	payloads chan string
}

// NewMQTT returns a widget for topic. It receives nothing until it is
// attached to a Broker.
func NewMQTT(topic string, every time.Duration) *MQTT {
	return &MQTT{
		topic:    topic,
		every:    orDefault(every, defaultInterval),
		payloads: make(chan string, 1),
	}
}

// Topic returns the subscribed topic.
func (m *MQTT) Topic() string { return m.topic }

func (m *MQTT) Poll() (widget.Outcome, bool) {
	if p, ok := latest(m.payloads); ok {
		return widget.Update(m.every, protocol.Text(p))
	}
	return widget.Reschedule(m.every)
}

func (m *MQTT) deliver(payload []byte) {
	offer(m.payloads, firstLine(payload))
}

// Subscriber is the part of mqtt.Client the broker needs to subscribe.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Broker owns the MQTT connection shared by every mqtt widget. Topics are
// subscribed on every (re)connect.
type Broker struct {
	logger *slog.Logger
	client mqtt.Client

	mu     sync.Mutex
	topics map[string][]*MQTT
}

// NewBroker configures a client for cfg.Broker without connecting.
func NewBroker(cfg config.MQTTConfig, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		logger: logger,
		topics: make(map[string][]*MQTT),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) { b.subscribeAll(c) })
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warn("mqtt connection lost", "error", err)
	})
	b.client = mqtt.NewClient(opts)
	return b
}

// Attach routes messages on w's topic to w. Widgets attached after Connect
// are subscribed on the next reconnect.
func (b *Broker) Attach(w *MQTT) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[w.topic] = append(b.topics[w.topic], w)
}

// Connect starts connecting. The client keeps retrying in the background,
// so a broker that is down at startup only delays the mqtt widgets; Connect
// returns once connected, after a timeout, or when ctx is done.
func (b *Broker) Connect(ctx context.Context) error {
	token := b.client.Connect()
	timer := time.NewTimer(mqttConnectTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-timer.C:
		b.logger.Warn("mqtt broker not reachable yet, retrying in background")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Close disconnects from the broker.
func (b *Broker) Close() {
	b.client.Disconnect(mqttDisconnectWait)
}

func (b *Broker) subscribeAll(s Subscriber) {
	b.mu.Lock()
	topics := make([]string, 0, len(b.topics))
	for t := range b.topics {
		topics = append(topics, t)
	}
	b.mu.Unlock()

	for _, topic := range topics {
		token := s.Subscribe(topic, 0, b.handler(topic))
		if token.Wait() && token.Error() != nil {
			b.logger.Warn("mqtt subscribe failed", "topic", topic, "error", token.Error())
			continue
		}
		b.logger.Debug("mqtt subscribed", "topic", topic)
	}
}

func (b *Broker) handler(topic string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		b.mu.Lock()
		ws := b.topics[topic]
		b.mu.Unlock()
		for _, w := range ws {
			w.deliver(msg.Payload())
		}
	}
}
