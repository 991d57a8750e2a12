// Package store ukládá měření do TimescaleDB a poslední hodnotu do Valkey.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"aqi-bridge/internal/aqi"
)

// connectTimeout platí pro navázání jednoho spojení v poolu.
const connectTimeout = 5 * time.Second

// pgxDB je podmnožina pgxpool.Pool, kterou používáme (kvůli testům).
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS ` + aqi.Series + ` (
			time TIMESTAMPTZ NOT NULL,
			pm25 INTEGER     NOT NULL
		)`
	createHypertableSQL = `SELECT create_hypertable('` + aqi.Series + `', 'time', if_not_exists => TRUE)`
	insertSQL           = `INSERT INTO ` + aqi.Series + ` (time, pm25) VALUES ($1, $2)`
	sinceSQL            = `SELECT time, pm25 FROM ` + aqi.Series + ` WHERE time >= $1 ORDER BY time ASC`
	latestSQL           = `SELECT time, pm25 FROM ` + aqi.Series + ` ORDER BY time DESC LIMIT 1`
)

// Timescale zapisuje body do časové řady aqi.
// Pool je thread-safe, každý handler si z něj půjčí vlastní spojení.
type Timescale struct {
	db    pgxDB
	close func()
}

// NewTimescale vytvoří pool. Spojení se navazují líně, takže nedostupná DB
// při startu není chyba (zápisy pak selžou jednotlivě).
func NewTimescale(ctx context.Context, dsn string) (*Timescale, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	if cfg.ConnConfig.ConnectTimeout == 0 {
		cfg.ConnConfig.ConnectTimeout = connectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("nelze vytvořit DB pool: %w", err)
	}
	return &Timescale{db: pool, close: pool.Close}, nil
}

// =========================================================================
// SPRÁVA SPOJENÍ
// =========================================================================

// Close uzavře pool při ukončení aplikace.
func (t *Timescale) Close() {
	if t.close != nil {
		t.close()
	}
}

// Ping ověří dostupnost DB.
func (t *Timescale) Ping(ctx context.Context) error {
	return t.db.Ping(ctx)
}

// =========================================================================
// SCHÉMA
// =========================================================================

// EnsureSchema založí tabulku a zkusí z ní udělat hypertable.
// Bez rozšíření TimescaleDB vrátí hypertable=false a tabulka zůstane obyčejná.
func (t *Timescale) EnsureSchema(ctx context.Context) (hypertable bool, err error) {
	if _, err := t.db.Exec(ctx, createTableSQL); err != nil {
		return false, fmt.Errorf("nelze založit tabulku %s: %w", aqi.Series, err)
	}
	// Hypertable rozdělí data po časových úsecích (chunky). Bez rozšíření
	// TimescaleDB funkce create_hypertable neexistuje a dotaz selže.
	if _, err := t.db.Exec(ctx, createHypertableSQL); err != nil {
		return false, nil
	}
	return true, nil
}

// =========================================================================
// ZÁPIS (Cold Path)
// =========================================================================

// Write uloží jeden bod. Žádné dávkování, každé měření = jeden INSERT.
func (t *Timescale) Write(ctx context.Context, r aqi.Reading) error {
	// Exec si z poolu půjčí spojení jen na dobu dotazu.
	if _, err := t.db.Exec(ctx, insertSQL, r.Time, r.PM25); err != nil {
		return fmt.Errorf("chyba insertu do %s: %w", aqi.Series, err)
	}
	return nil
}

// =========================================================================
// ČTENÍ (history a /status)
// =========================================================================

// Since vrátí body od daného času, seřazené podle času.
func (t *Timescale) Since(ctx context.Context, from time.Time) ([]aqi.Reading, error) {
	rows, err := t.db.Query(ctx, sinceSQL, from)
	if err != nil {
		return nil, fmt.Errorf("chyba načítání %s: %w", aqi.Series, err)
	}
	defer rows.Close()

	// Prealokace: graf za 24 h má typicky stovky bodů.
	readings := make([]aqi.Reading, 0, 100)
	for rows.Next() {
		var r aqi.Reading
		if err := rows.Scan(&r.Time, &r.PM25); err != nil {
			return nil, err
		}
		// Driver vrací čas v lokální zóně spojení, ven posíláme vždy UTC.
		r.Time = r.Time.UTC()
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// Latest vrátí nejnovější bod; ok=false pro prázdnou řadu.
func (t *Timescale) Latest(ctx context.Context) (r aqi.Reading, ok bool, err error) {
	err = t.db.QueryRow(ctx, latestSQL).Scan(&r.Time, &r.PM25)
	if errors.Is(err, pgx.ErrNoRows) {
		return aqi.Reading{}, false, nil
	}
	if err != nil {
		return aqi.Reading{}, false, fmt.Errorf("chyba načítání posledního bodu: %w", err)
	}
	r.Time = r.Time.UTC()
	return r, true, nil
}
