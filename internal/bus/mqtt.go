package bus

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// qosAtMostOnce je MQTT QoS 0: bez potvrzení, bez opakovaného doručení.
const qosAtMostOnce byte = 0

// MQTTSource převádí callbacky paho klienta na frontu událostí.
type MQTTSource struct {
	client mqtt.Client
	topic  string

	events   chan Event
	firstSub chan error
	done     chan struct{}
	once     sync.Once
}

// NewMQTTSource připraví klienta, ale ještě se nepřipojuje.
// Client ID lze přepsat query parametrem client_id v URL.
func NewMQTTSource(busURL, topic, clientID string) (*MQTTSource, error) {
	s := &MQTTSource{
		topic:    topic,
		events:   make(chan Event, eventBuffer),
		firstSub: make(chan error, 1),
		done:     make(chan struct{}),
	}

	opts, err := s.clientOptions(busURL, clientID)
	if err != nil {
		return nil, err
	}
	s.client = mqtt.NewClient(opts)
	return s, nil
}

func (s *MQTTSource) clientOptions(busURL, clientID string) (*mqtt.ClientOptions, error) {
	u, err := url.Parse(busURL)
	if err != nil {
		return nil, fmt.Errorf("neplatná MQTT URL: %w", err)
	}
	if id := u.Query().Get("client_id"); id != "" {
		clientID = id
	}
	u.RawQuery = ""

	opts := mqtt.NewClientOptions()
	// Jméno a heslo z URL si paho převezme samo.
	opts.AddBroker(u.String())
	opts.SetClientID(clientID)
	opts.SetKeepAlive(KeepAlive)
	opts.SetCleanSession(true)

	// Reconnect řeší knihovna. Po každém připojení znovu přihlásíme odběr,
	// protože clean session odběry na brokeru nedrží.
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		s.emit(Event{Kind: KindProtocol, Detail: "reconnecting"})
	})
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		s.emit(Event{Kind: KindProtocol, Detail: "unsolicited publish on " + msg.Topic()})
	})
	return opts, nil
}

// Connect se připojí k brokeru a počká na první přihlášení odběru.
func (s *MQTTSource) Connect(ctx context.Context) error {
	token := s.client.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect selhal: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-s.firstSub:
		return err
	}
}

func (s *MQTTSource) onConnect(c mqtt.Client) {
	token := c.Subscribe(s.topic, qosAtMostOnce, s.onMessage)
	token.Wait()
	err := token.Error()
	if err != nil {
		err = fmt.Errorf("subscribe %q selhal: %w", s.topic, err)
	}

	// Connect čeká jen na výsledek prvního připojení.
	select {
	case s.firstSub <- err:
	default:
	}

	s.emit(Event{Kind: KindProtocol, Detail: "connected"})
	if err != nil {
		s.emit(Event{Kind: KindError, Err: err})
		return
	}
	s.emit(Event{Kind: KindProtocol, Detail: "subscribed " + s.topic})
}

func (s *MQTTSource) onConnectionLost(_ mqtt.Client, err error) {
	s.emit(Event{Kind: KindError, Err: fmt.Errorf("spojení s brokerem ztraceno: %w", err)})
}

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.emit(Event{Kind: KindMessage, Message: Message{Topic: msg.Topic(), Payload: msg.Payload()}})
}

// emit blokuje, dokud smyčka událost nepřevezme nebo se zdroj nezavře.
func (s *MQTTSource) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Receive vrátí další událost.
func (s *MQTTSource) Receive(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-s.done:
		return Event{}, ErrClosed
	case ev := <-s.events:
		return ev, nil
	}
}

// Publish odešle zprávu s QoS 0 a nečeká na token.
func (s *MQTTSource) Publish(topic string, payload []byte) {
	s.client.Publish(topic, qosAtMostOnce, false, payload)
}

// Close odpojí klienta (timeout 250 ms) a uvolní čekající callbacky.
func (s *MQTTSource) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.client.Disconnect(250)
	})
	return nil
}
