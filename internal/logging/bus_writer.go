package logging

import (
	"fmt"
	"strings"

	"aqi-bridge/internal/bus"
)

// BusWriter implementuje io.Writer. Každý zapsaný řádek logu odešle na sběrnici.
type BusWriter struct {
	pub   bus.Publisher
	topic string
}

// NewBusWriter vytvoří writer pro topic "<prefix>/<service>", např. logs/aqi-bridge.
func NewBusWriter(pub bus.Publisher, prefix, service string) *BusWriter {
	return &BusWriter{
		pub:   pub,
		topic: fmt.Sprintf("%s/%s", strings.TrimSuffix(prefix, "/"), service),
	}
}

// Topic vrací cílový topic.
func (w *BusWriter) Topic() string {
	return w.topic
}

// Write nečeká na potvrzení (fire-and-forget), logování nesmí brzdit zpracování.
func (w *BusWriter) Write(p []byte) (n int, err error) {
	// slog buffer po návratu znovu použije, proto kopie.
	payload := make([]byte, len(p))
	copy(payload, p)

	w.pub.Publish(w.topic, payload)
	return len(p), nil
}
