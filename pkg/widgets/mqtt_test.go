package widgets

import (
	"errors"
	"sort"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/go-cmp/cmp"

	"gitlab.com/tinyland/lab/i3pulse/pkg/config"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeSubscriber struct {
	fail     map[string]bool
	handlers map[string]mqtt.MessageHandler
}

func (s *fakeSubscriber) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	if s.fail[topic] {
		return &fakeToken{err: errors.New("not authorized")}
	}
	s.handlers[topic] = cb
	return &fakeToken{}
}

func (s *fakeSubscriber) publish(topic, payload string) {
	s.handlers[topic](nil, &fakeMessage{topic: topic, payload: []byte(payload)})
}

func newTestBroker() *Broker {
	return NewBroker(config.MQTTConfig{Broker: "tcp://127.0.0.1:1883", ClientID: "test"}, nil)
}

func TestBrokerRoutesMessages(t *testing.T) {
	b := newTestBroker()
	temp1 := NewMQTT("home/temp", 0)
	temp2 := NewMQTT("home/temp", 0)
	door := NewMQTT("home/door", 0)
	for _, w := range []*MQTT{temp1, temp2, door} {
		b.Attach(w)
	}

	sub := &fakeSubscriber{handlers: make(map[string]mqtt.MessageHandler)}
	b.subscribeAll(sub)

	var topics []string
	for topic := range sub.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	if diff := cmp.Diff([]string{"home/door", "home/temp"}, topics); diff != "" {
		t.Errorf("subscriptions mismatch (-want +got):\n%s", diff)
	}

	sub.publish("home/temp", "21.5\n")
	for _, w := range []*MQTT{temp1, temp2} {
		if text, updated := pollText(t, w); !updated || text != "21.5" {
			t.Errorf("temp widget = %q, %v; want 21.5", text, updated)
		}
	}
	if _, updated := pollText(t, door); updated {
		t.Error("door widget received a temp message")
	}

	// Only the newest payload survives between polls.
	sub.publish("home/door", "open")
	sub.publish("home/door", "closed")
	if text, _ := pollText(t, door); text != "closed" {
		t.Errorf("door widget = %q, want closed", text)
	}
	if _, updated := pollText(t, door); updated {
		t.Error("door widget re-delivered a payload")
	}
}

func TestBrokerSubscribeFailureSkipsTopic(t *testing.T) {
	b := newTestBroker()
	b.Attach(NewMQTT("denied", 0))
	b.Attach(NewMQTT("allowed", 0))

	sub := &fakeSubscriber{
		fail:     map[string]bool{"denied": true},
		handlers: make(map[string]mqtt.MessageHandler),
	}
	b.subscribeAll(sub)

	if _, ok := sub.handlers["allowed"]; !ok {
		t.Error("allowed topic not subscribed after a failure on another topic")
	}
	if _, ok := sub.handlers["denied"]; ok {
		t.Error("denied topic recorded a handler")
	}
}

func TestMQTTInterval(t *testing.T) {
	w := NewMQTT("t", 5*time.Second)
	if w.Topic() != "t" {
		t.Errorf("Topic() = %q", w.Topic())
	}
	out, ok := w.Poll()
	if !ok || out.Segment != nil || out.Next != 5*time.Second {
		t.Errorf("Poll() = %+v, %v", out, ok)
	}
}
