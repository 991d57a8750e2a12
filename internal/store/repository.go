package store

import (
	"context"
	"log/slog"
	"time"

	"aqi-bridge/internal/aqi"
)

// SeriesStore je časová řada (v produkci *Timescale).
type SeriesStore interface {
	Write(ctx context.Context, r aqi.Reading) error
	Latest(ctx context.Context) (aqi.Reading, bool, error)
	Since(ctx context.Context, from time.Time) ([]aqi.Reading, error)
}

// LatestStore je cache poslední hodnoty (v produkci *LatestCache).
type LatestStore interface {
	Set(ctx context.Context, r aqi.Reading) error
	Get(ctx context.Context) (aqi.Reading, bool, error)
}

// Repository zapouzdřuje obě úložiště (Cold Path a Hot Path).
// O úspěchu zápisu rozhoduje jen časová řada.
type Repository struct {
	series SeriesStore
	latest LatestStore // může být nil
	logger *slog.Logger
}

// NewRepository spojí časovou řadu s volitelnou cache.
func NewRepository(series SeriesStore, latest LatestStore, logger *slog.Logger) *Repository {
	return &Repository{series: series, latest: latest, logger: logger}
}

// Write uloží měření do časové řady a pak do cache.
// Chyba cache se jen zaloguje, data už jsou v DB.
func (r *Repository) Write(ctx context.Context, reading aqi.Reading) error {
	if err := r.series.Write(ctx, reading); err != nil {
		return err
	}
	if r.latest != nil {
		if err := r.latest.Set(ctx, reading); err != nil {
			r.logger.Warn("Cache poslední hodnoty neaktualizována", "pm25", reading.PM25, "error", err)
		}
	}
	return nil
}

// Latest čte nejdřív z cache, při chybě nebo prázdné cache z časové řady.
func (r *Repository) Latest(ctx context.Context) (aqi.Reading, bool, error) {
	if r.latest != nil {
		reading, ok, err := r.latest.Get(ctx)
		if err == nil && ok {
			return reading, true, nil
		}
		if err != nil {
			r.logger.Warn("Čtení cache selhalo, čtu z DB", "error", err)
		}
	}
	return r.series.Latest(ctx)
}

// History vrátí body z časové řady od daného času (cache drží jen poslední).
func (r *Repository) History(ctx context.Context, from time.Time) ([]aqi.Reading, error) {
	return r.series.Since(ctx, from)
}
