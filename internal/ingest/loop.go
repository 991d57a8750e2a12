package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"aqi-bridge/internal/bus"
)

// receiveBackoff je pauza po neočekávané chybě Receive.
const receiveBackoff = time.Second

// Loop drží jediný odběr a každou zprávu předá nové goroutině.
// Na dokončení handlerů nečeká, příjem tak nezávisí na latenci zápisu.
type Loop struct {
	src     bus.Source
	handler *Handler
	logger  *slog.Logger
	backoff time.Duration

	inflight sync.WaitGroup
}

// NewLoop vytvoří smyčku nad připojeným zdrojem.
func NewLoop(src bus.Source, handler *Handler, logger *slog.Logger) *Loop {
	return &Loop{src: src, handler: handler, logger: logger, backoff: receiveBackoff}
}

// Run běží, dokud volající nezruší ctx nebo se zdroj nezavře.
// Chyby spojení ani zpracování smyčku neukončí.
func (l *Loop) Run(ctx context.Context) error {
	// Handlery nedědí zrušení smyčky, doběhnou samy.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		ev, err := l.src.Receive(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) || ctx.Err() != nil {
				return err
			}
			// Zdroj by jiné chyby vracet neměl, bereme je jako chybu spojení.
			// Pauza brání točení naprázdno a zaplavení logu.
			l.logger.Error("Chyba příjmu ze sběrnice", "error", err, "retry_in", l.backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.backoff):
			}
			continue
		}

		switch ev.Kind {
		case bus.KindMessage:
			l.dispatch(handlerCtx, ev.Message)
		case bus.KindError:
			l.logger.Error("Chyba spojení se sběrnicí", "error", ev.Err)
		default:
			l.logger.Debug("Protokolová událost", "detail", ev.Detail)
		}
	}
}

func (l *Loop) dispatch(ctx context.Context, msg bus.Message) {
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		l.handler.Handle(ctx, msg.Payload)
	}()
}

// Wait počká na všechny dosud spuštěné handlery (používá se při vypínání).
func (l *Loop) Wait() {
	l.inflight.Wait()
}
