// Package ingest obsahuje jádro mostu: smyčku odběru a zpracování jedné zprávy.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aqi-bridge/internal/aqi"
)

// Writer uloží jedno měření (v produkci *store.Repository).
type Writer interface {
	Write(ctx context.Context, r aqi.Reading) error
}

// Outcome je výsledek zpracování jedné zprávy.
type Outcome int

const (
	OutcomeStored Outcome = iota
	OutcomeParseFailed
	OutcomeWriteFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeParseFailed:
		return "parse_failed"
	case OutcomeWriteFailed:
		return "write_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Handler zpracuje jednu zprávu: parse -> časové razítko -> zápis.
// Nemá žádný stav mezi zprávami, jedna instance slouží všem goroutinám.
type Handler struct {
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler vytvoří handler s reálnými hodinami.
func NewHandler(w Writer, logger *slog.Logger) *Handler {
	return &Handler{writer: w, logger: logger, now: time.Now}
}

// Handle zpracuje payload. Každý konec zaloguje právě jednou a nic nepropaguje ven.
// Ani panic v zápisu neopustí tuto funkci.
func (h *Handler) Handle(ctx context.Context, payload []byte) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic při zpracování zprávy zachycen", "panic", r)
			outcome = OutcomeWriteFailed
		}
	}()

	// =========================================================================
	// KROK 1: Parsing
	// =========================================================================
	// Nevalidní zpráva se zaloguje a zahodí. Do DB se nic nezapisuje.
	packet, err := aqi.ParsePacket(payload)
	if err != nil {
		h.logger.Warn("Zpráva odmítnuta", "payload", loggedPayload(payload), "size", len(payload), "error", err)
		return OutcomeParseFailed
	}

	// =========================================================================
	// KROK 2: Časové razítko
	// =========================================================================
	// Čas zpracování, ne čas příjmu ani čas ze senzoru (ten ho ani neposílá).
	reading := aqi.NewReading(packet, h.now())

	// =========================================================================
	// KROK 3: Zápis
	// =========================================================================
	// Jeden pokus, bez opakování. Při chybě je měření ztracené (at most once).
	if err := h.writer.Write(ctx, reading); err != nil {
		h.logger.Error("Chyba při ukládání měření", "pm25", reading.PM25, "error", err)
		return OutcomeWriteFailed
	}

	h.logger.Info("Měření uloženo", "pm25", reading.PM25, "time", reading.Time)
	return OutcomeStored
}

// maxLoggedPayload omezuje, kolik bajtů odmítnuté zprávy se dostane do logu
// (a tedy případně i zpět na sběrnici).
const maxLoggedPayload = 256

// loggedPayload vrátí začátek payloadu jako text pro log.
func loggedPayload(payload []byte) string {
	if len(payload) > maxLoggedPayload {
		payload = payload[:maxLoggedPayload]
	}
	return string(payload)
}
