package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"aqi-bridge/internal/aqi"
	"aqi-bridge/internal/bus"
)

// recorder je slog.Handler, který si pamatuje záznamy pro kontrolu v testech.
type recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }
func (r *recorder) WithAttrs([]slog.Attr) slog.Handler       { return r }
func (r *recorder) WithGroup(string) slog.Handler            { return r }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

func (r *recorder) count(level slog.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Level == level {
			n++
		}
	}
	return n
}

func (r *recorder) attr(level slog.Level, key string) (slog.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Level != level {
			continue
		}
		var found slog.Value
		ok := false
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				found, ok = a.Value, true
				return false
			}
			return true
		})
		if ok {
			return found, true
		}
	}
	return slog.Value{}, false
}

func newRecorder() (*recorder, *slog.Logger) {
	r := &recorder{}
	return r, slog.New(r)
}

// fakeWriter simuluje časovou řadu: latence, chyby, panic.
type fakeWriter struct {
	mu      sync.Mutex
	written []aqi.Reading

	attempts atomic.Int64
	delay    time.Duration
	gate     chan struct{}             // když není nil, zápis čeká na uzavření
	fail     func(r aqi.Reading) error // když vrátí chybu, zápis selže
	before   func(ctx context.Context, r aqi.Reading)
}

func (w *fakeWriter) Write(ctx context.Context, r aqi.Reading) error {
	w.attempts.Add(1)
	if w.before != nil {
		w.before(ctx, r)
	}
	if w.gate != nil {
		<-w.gate
	}
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	if w.fail != nil {
		if err := w.fail(r); err != nil {
			return err
		}
	}
	w.mu.Lock()
	w.written = append(w.written, r)
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) stored() []aqi.Reading {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]aqi.Reading(nil), w.written...)
}

// chanSource je bus.Source nad kanálem. Zavřený kanál = zavřený zdroj.
type chanSource struct {
	events   chan bus.Event
	received atomic.Int64
}

func newChanSource(capacity int) *chanSource {
	return &chanSource{events: make(chan bus.Event, capacity)}
}

func (s *chanSource) Receive(ctx context.Context) (bus.Event, error) {
	select {
	case <-ctx.Done():
		return bus.Event{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return bus.Event{}, bus.ErrClosed
		}
		s.received.Add(1)
		return ev, nil
	}
}

func (s *chanSource) Close() error { return nil }

func (s *chanSource) send(payload string) {
	s.events <- bus.Event{Kind: bus.KindMessage, Message: bus.Message{Topic: "sensors/aqi", Payload: []byte(payload)}}
}
