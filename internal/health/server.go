// Package health poskytuje healthcheck, stavový endpoint a historii měření přes HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"aqi-bridge/internal/aqi"
)

// DefaultRange je okno historie, pokud chybí parametr range.
const DefaultRange = 24 * time.Hour

// ReadingReader čte uložená měření (v produkci *store.Repository).
type ReadingReader interface {
	Latest(ctx context.Context) (aqi.Reading, bool, error)
	History(ctx context.Context, from time.Time) ([]aqi.Reading, error)
}

// Status je odpověď endpointu /status.
type Status struct {
	Host        *SystemStats `json:"host"`
	Latest      *aqi.Reading `json:"latest,omitempty"`
	LatestError string       `json:"latest_error,omitempty"`
}

// Server je HTTP server s endpointy /health, /status a /api/aqi/history.
type Server struct {
	addr     string
	readings ReadingReader
	logger   *slog.Logger
	collect  func(ctx context.Context, logger *slog.Logger) (*SystemStats, error)
	now      func() time.Time
}

// NewServer vytvoří server pro daný port.
func NewServer(port string, readings ReadingReader, logger *slog.Logger) *Server {
	return &Server{
		addr:     ":" + port,
		readings: readings,
		logger:   logger,
		collect:  CollectStats,
		now:      time.Now,
	}
}

// Handler vrátí router se všemi endpointy.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/aqi/history", s.handleHistory)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	host, err := s.collect(ctx, s.logger)
	if err != nil {
		s.logger.Error("Chyba při sběru statistik", "error", err)
		http.Error(w, "Interní chyba serveru", http.StatusInternalServerError)
		return
	}

	status := Status{Host: host}
	reading, ok, err := s.readings.Latest(ctx)
	switch {
	case err != nil:
		status.LatestError = err.Error()
	case ok:
		status.Latest = &reading
	}

	s.writeJSON(w, status)
}

// handleHistory: GET /api/aqi/history?range=24h
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	window := DefaultRange
	if param := r.URL.Query().Get("range"); param != "" {
		d, err := time.ParseDuration(param)
		if err != nil || d <= 0 {
			http.Error(w, "Neplatný parametr range", http.StatusBadRequest)
			return
		}
		window = d
	}

	points, err := s.readings.History(r.Context(), s.now().Add(-window))
	if err != nil {
		s.logger.Error("Chyba při získávání historie", "range", window.String(), "error", err)
		http.Error(w, "Interní chyba serveru", http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []aqi.Reading{}
	}
	s.writeJSON(w, points)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
	}
}

// Run spustí server a při zrušení ctx ho slušně vypne (timeout 5 s).
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Health server běží", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
