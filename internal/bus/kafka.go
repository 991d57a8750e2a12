package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSource čte jednu partition bez consumer group.
// Offsety se necommitují a čte se od nejnovější zprávy, takže po restartu
// se nic nepřehrává (at most once).
type KafkaSource struct {
	reader *kafka.Reader
}

// NewKafkaSource vytvoří reader pro partition 0 daného topicu.
func NewKafkaSource(brokers []string, topic, clientID string) *KafkaSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6, // 10MB
		MaxWait:   time.Second,
		Dialer: &kafka.Dialer{
			ClientID:  clientID,
			Timeout:   10 * time.Second,
			KeepAlive: KeepAlive,
		},
	})
	// Chyba nastane jen u readeru s GroupID.
	_ = r.SetOffset(kafka.LastOffset)
	return &KafkaSource{reader: r}
}

// Receive vrátí další zprávu. Chyby čtení hlásí jako KindError.
func (s *KafkaSource) Receive(ctx context.Context) (Event, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Event{}, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return Event{}, ErrClosed
		}
		return Event{Kind: KindError, Err: fmt.Errorf("kafka read selhal: %w", err)}, nil
	}
	return Event{Kind: KindMessage, Message: Message{Topic: msg.Topic, Payload: msg.Value}}, nil
}

// Close zavře reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
