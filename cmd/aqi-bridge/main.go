// Aqi-bridge odebírá měření PM2.5 ze sběrnice a ukládá je do TimescaleDB.
//
// Usage: aqi-bridge [config-path]
//
// Bez argumentu čte /etc/aqi-bridge/config.json.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aqi-bridge/internal/bus"
	"aqi-bridge/internal/config"
	"aqi-bridge/internal/health"
	"aqi-bridge/internal/ingest"
	"aqi-bridge/internal/logging"
	"aqi-bridge/internal/store"
)

// shutdownGrace je čas pro doběhnutí rozpracovaných zápisů při vypínání.
const shutdownGrace = 5 * time.Second

func main() {
	// Do připojení ke sběrnici logujeme jen na stdout.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Načtení konfigurace
	path, err := config.Path(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("Kritická chyba: neplatná konfigurace", "path", path, "error", err)
		os.Exit(1)
	}

	// Graceful shutdown na SIGINT (Ctrl+C) a SIGTERM (docker stop)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Sběrnice. Musí být dřív než logger, pokud logy posíláme i do ní.
	src, err := bus.Open(ctx, cfg.BusURL, cfg.BusTopic, cfg.ClientID)
	if err != nil {
		logger.Error("Kritická chyba: nelze se připojit ke sběrnici", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	// 3. Logger: stdout, případně i sběrnice
	writers := []io.Writer{os.Stdout}
	var busLog *logging.BusWriter
	if pub, ok := src.(bus.Publisher); ok && cfg.LogTopic != "" {
		busLog = logging.NewBusWriter(pub, cfg.LogTopic, cfg.ClientID)
		writers = append(writers, busLog)
	}
	logger = logging.New(cfg.LogLevel, writers...)
	slog.SetDefault(logger)

	logger.Info("Spouštím AQI bridge", "config", cfg.String())
	if busLog != nil {
		logger.Info("Loguji do stdout i na sběrnici", "topic", busLog.Topic())
	}

	// 4. Časová řada
	dsn, err := cfg.StoreDSN()
	if err != nil {
		logger.Error("Kritická chyba: neplatná URL úložiště", "error", err)
		os.Exit(1)
	}
	series, err := store.NewTimescale(ctx, dsn)
	if err != nil {
		logger.Error("Kritická chyba: nelze vytvořit DB pool", "error", err)
		os.Exit(1)
	}
	defer series.Close()

	// 5. Volitelná cache poslední hodnoty (Valkey)
	var latest store.LatestStore
	var cache *store.LatestCache
	if cfg.ValkeyAddr != "" {
		cache = store.NewLatestCache(cfg.ValkeyAddr)
		defer cache.Close()
		latest = cache
	}
	repo := store.NewRepository(series, latest, logger)

	// Kontrola úložišť běží souběžně se smyčkou, odběr už je aktivní.
	go prepareStores(ctx, series, cache, logger)

	// 6. Healthcheck server
	if cfg.HTTPPort != "" {
		srv := health.NewServer(cfg.HTTPPort, repo, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("Health server spadl", "error", err)
			}
		}()
	}

	// 7. Hlavní smyčka
	loop := ingest.NewLoop(src, ingest.NewHandler(repo, logger), logger)
	logger.Info("Poslouchám na topicu", "topic", cfg.BusTopic)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Smyčka odběru skončila", "error", err)
	}

	logger.Info("Ukončuji službu...")
	waitInflight(loop, shutdownGrace, logger)
}

// prepareStores ověří úložiště a připraví schéma. Nic z toho není fatální:
// nedostupná DB znamená jen to, že zápisy selhávají jednotlivě.
func prepareStores(ctx context.Context, series *store.Timescale, cache *store.LatestCache, logger *slog.Logger) {
	if err := series.Ping(ctx); err != nil {
		logger.Warn("DB zatím není dostupná", "error", err)
	} else if hyper, err := series.EnsureSchema(ctx); err != nil {
		logger.Warn("Nelze připravit schéma", "error", err)
	} else if !hyper {
		logger.Warn("TimescaleDB není k dispozici, tabulka aqi zůstává obyčejná")
	} else {
		logger.Info("Schéma aqi připraveno (hypertable)")
	}

	if cache == nil {
		return
	}
	if err := cache.Ping(ctx); err != nil {
		logger.Warn("Valkey zatím není dostupný", "error", err)
	}
}

// waitInflight dá rozpracovaným zápisům čas doběhnout.
func waitInflight(loop *ingest.Loop, grace time.Duration, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		loop.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("Některé zápisy nedoběhly", "grace", grace)
	}
}
