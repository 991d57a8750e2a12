package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONToAllWriters(t *testing.T) {
	var stdout bytes.Buffer
	pub := &fakePublisher{}
	bw := NewBusWriter(pub, "logs/", "aqi-bridge")

	logger := New("warn", &stdout, bw)
	logger.Info("hidden")
	logger.Warn("visible", "pm25", 106)

	var line map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &line); err != nil {
		t.Fatalf("stdout is not a single JSON line: %v (%q)", err, stdout.String())
	}
	if line["msg"] != "visible" || line["pm25"] != float64(106) {
		t.Fatalf("unexpected log line: %v", line)
	}

	if len(pub.topics) != 1 || pub.topics[0] != "logs/aqi-bridge" {
		t.Fatalf("unexpected published topics: %v", pub.topics)
	}
	if !bytes.Equal(pub.payloads[0], stdout.Bytes()) {
		t.Fatalf("bus payload differs from stdout: %q vs %q", pub.payloads[0], stdout.Bytes())
	}
}

func TestBusWriterCopiesPayload(t *testing.T) {
	pub := &fakePublisher{}
	w := NewBusWriter(pub, "logs", "edge")
	if w.Topic() != "logs/edge" {
		t.Fatalf("unexpected topic: %q", w.Topic())
	}

	buf := []byte("first")
	n, err := w.Write(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("unexpected write result: %d, %v", n, err)
	}
	copy(buf, "XXXXX")

	if string(pub.payloads[0]) != "first" {
		t.Fatalf("payload aliased caller buffer: %q", pub.payloads[0])
	}
}
