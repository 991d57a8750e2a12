package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"aqi-bridge/internal/aqi"
)

const (
	// latestKey je hash s poslední hodnotou pro dashboard.
	latestKey = aqi.Series + ":last"

	// latestTTL: když senzor přestane posílat, hodnota z cache zmizí.
	latestTTL = 24 * time.Hour
)

// LatestCache drží poslední zapsané měření ve Valkey (Redis).
// Při souběžných zápisech vyhrává ten, který doběhne poslední.
type LatestCache struct {
	rdb *redis.Client
}

// NewLatestCache vytvoří klienta pro Valkey na adrese host:port.
func NewLatestCache(addr string) *LatestCache {
	return &LatestCache{rdb: redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})}
}

// Ping ověří spojení.
func (c *LatestCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close uzavře klienta.
func (c *LatestCache) Close() error {
	return c.rdb.Close()
}

// Set přepíše poslední hodnotu a obnoví expiraci.
func (c *LatestCache) Set(ctx context.Context, r aqi.Reading) error {
	// B. Hot Path: dashboard čte poslední hodnotu z RAM, ne z DB.
	// TxPipelined pošle HSET i EXPIRE najednou v MULTI/EXEC, takže klíč
	// nikdy nezůstane bez expirace.
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, latestKey, "pm25", r.PM25, "time", r.Time.UTC().Format(time.RFC3339Nano))
		pipe.Expire(ctx, latestKey, latestTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("chyba update Valkey: %w", err)
	}
	return nil
}

// Get vrátí poslední hodnotu; ok=false, pokud klíč neexistuje.
func (c *LatestCache) Get(ctx context.Context) (r aqi.Reading, ok bool, err error) {
	fields, err := c.rdb.HGetAll(ctx, latestKey).Result()
	if err != nil {
		return aqi.Reading{}, false, fmt.Errorf("chyba čtení Valkey: %w", err)
	}
	if len(fields) == 0 {
		return aqi.Reading{}, false, nil
	}
	return decodeLatest(fields)
}

func decodeLatest(fields map[string]string) (aqi.Reading, bool, error) {
	pm25, err := strconv.Atoi(fields["pm25"])
	if err != nil {
		return aqi.Reading{}, false, fmt.Errorf("poškozená hodnota pm25 v %s: %w", latestKey, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, fields["time"])
	if err != nil {
		return aqi.Reading{}, false, fmt.Errorf("poškozený čas v %s: %w", latestKey, err)
	}
	return aqi.Reading{PM25: pm25, Time: ts.UTC()}, true, nil
}
