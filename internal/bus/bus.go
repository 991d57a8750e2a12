// Package bus převádí odběr jednoho topicu na sekvenci událostí.
// Podporuje MQTT (paho) a Kafku (kafka-go), vždy s doručením "at most once".
package bus

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// KeepAlive je pevný keep-alive interval spojení se sběrnicí.
const KeepAlive = 5 * time.Second

// eventBuffer je kapacita fronty mezi klientskou knihovnou a smyčkou.
// Plná fronta blokuje paho router včetně obsluhy keep-alive.
const eventBuffer = 1024

var (
	// ErrUnsupportedScheme vrací Open pro neznámé schéma URL.
	ErrUnsupportedScheme = errors.New("unsupported bus scheme")

	// ErrClosed vrací Receive po zavření zdroje.
	ErrClosed = errors.New("bus source closed")
)

// Kind rozlišuje typ události.
type Kind int

const (
	// KindMessage je příchozí zpráva na odebíraném topicu.
	KindMessage Kind = iota
	// KindProtocol je protokolová událost (připojeno, reconnect...), smyčka ji ignoruje.
	KindProtocol
	// KindError je chyba na úrovni spojení.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindProtocol:
		return "protocol"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message je syrová zpráva ze sběrnice.
type Message struct {
	Topic   string
	Payload []byte
}

// Event je jedna položka proudu událostí.
type Event struct {
	Kind    Kind
	Message Message // jen pro KindMessage
	Detail  string  // jen pro KindProtocol
	Err     error   // jen pro KindError
}

// Source je odběr jednoho topicu.
type Source interface {
	// Receive blokuje do další události. Chybu vrací jen při zrušení kontextu
	// nebo po Close, chyby spojení přicházejí jako KindError.
	Receive(ctx context.Context) (Event, error)
	Close() error
}

// Publisher umí fire-and-forget publikaci (používá ji logger).
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Open připojí zdroj podle schématu URL a přihlásí odběr topicu.
func Open(ctx context.Context, busURL, topic, clientID string) (Source, error) {
	u, err := url.Parse(busURL)
	if err != nil {
		return nil, fmt.Errorf("neplatná URL sběrnice: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "kafka":
		return NewKafkaSource(strings.Split(u.Host, ","), topic, clientID), nil
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
		src, err := NewMQTTSource(busURL, topic, clientID)
		if err != nil {
			return nil, err
		}
		if err := src.Connect(ctx); err != nil {
			src.Close()
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
