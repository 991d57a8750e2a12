package health

import (
	"context"
	"errors"
	"log/slog"
	"os"

	// Knihovna gopsutil pro čtení systémových statistik (CPU, RAM, Disk, Procesy).
	// Funguje multiplatformně, most ale typicky běží na Linuxu (Docker/RPi).
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	mb = 1024.0 * 1024.0
	gb = mb * 1024.0
)

// ErrNoStats vrací CollectStats, pokud selhalo úplně každé měření.
var ErrNoStats = errors.New("no host statistics available")

// SystemStats je snímek stavu zařízení, na kterém most běží.
type SystemStats struct {
	CPULoad float64 `json:"cpu_load"` // průměr přes všechna jádra, 0-100

	// RAM: "kolik je obsazeno" a "kolik je celkem".
	RamUsedMB  float64 `json:"ram_used_mb"` // Total - Available, bez diskové cache
	RamTotalMB float64 `json:"ram_total_mb"`

	ProcessRSSMB float64 `json:"process_rss_mb"` // RAM tohoto procesu

	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskTotalGB float64 `json:"disk_total_gb"`
}

// hostProbes jsou jednotlivá měření. V testech se dají podvrhnout.
type hostProbes struct {
	cpu     func(ctx context.Context) (float64, error)
	memory  func(ctx context.Context) (used, total uint64, err error)
	process func(ctx context.Context) (rss uint64, err error)
	disk    func(ctx context.Context) (used, total uint64, err error)
}

// gopsutilProbes čtou skutečný stav systému.
var gopsutilProbes = hostProbes{
	cpu: func(ctx context.Context) (float64, error) {
		// Interval 0 porovnává s předchozím voláním, takže request neblokuje
		// (na rozdíl od intervalu 1 s, který by vlákno na sekundu uspal).
		percentages, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return 0, err
		}
		if len(percentages) == 0 {
			return 0, errors.New("cpu: empty result")
		}
		return percentages[0], nil
	},
	memory: func(ctx context.Context) (uint64, uint64, error) {
		vMem, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, 0, err
		}
		// Available je lepší metrika než Free: Linux volnou RAM používá jako cache.
		return vMem.Total - vMem.Available, vMem.Total, nil
	},
	process: func(ctx context.Context) (uint64, error) {
		p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
		if err != nil {
			return 0, err
		}
		memInfo, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			return 0, err
		}
		// RSS = fyzická RAM, kterou proces skutečně drží.
		return memInfo.RSS, nil
	},
	disk: func(ctx context.Context) (uint64, uint64, error) {
		// Kořenový oddíl "/"; v Dockeru jde o overlay kontejneru.
		dStat, err := disk.UsageWithContext(ctx, "/")
		if err != nil {
			return 0, 0, err
		}
		return dStat.Used, dStat.Total, nil
	},
}

// CollectStats posbírá statistiky. Chyba jednoho měření nezastaví ostatní,
// jen se zaloguje a hodnota zůstane nulová. ErrNoStats vrací, až když
// neuspělo ani jedno měření.
func CollectStats(ctx context.Context, logger *slog.Logger) (*SystemStats, error) {
	return collectWith(ctx, logger, gopsutilProbes)
}

func collectWith(ctx context.Context, logger *slog.Logger, p hostProbes) (*SystemStats, error) {
	stats := &SystemStats{}
	ok := 0

	// =========================================================================
	// 1. CPU
	// =========================================================================
	if load, err := p.cpu(ctx); err == nil {
		stats.CPULoad = load
		ok++
	} else {
		logger.Warn("Chyba při čtení CPU statistik", "error", err)
	}

	// =========================================================================
	// 2. RAM (celé zařízení)
	// =========================================================================
	if used, total, err := p.memory(ctx); err == nil {
		stats.RamUsedMB = float64(used) / mb
		stats.RamTotalMB = float64(total) / mb
		ok++
	} else {
		logger.Warn("Chyba při čtení RAM statistik", "error", err)
	}

	// =========================================================================
	// 3. RAM tohoto procesu
	// =========================================================================
	if rss, err := p.process(ctx); err == nil {
		stats.ProcessRSSMB = float64(rss) / mb
		ok++
	} else {
		logger.Warn("Chyba při čtení paměti procesu", "error", err)
	}

	// =========================================================================
	// 4. DISK
	// =========================================================================
	if used, total, err := p.disk(ctx); err == nil {
		stats.DiskUsedGB = float64(used) / gb
		stats.DiskTotalGB = float64(total) / gb
		ok++
	} else {
		logger.Warn("Chyba při čtení statistik disku", "error", err)
	}

	if ok == 0 {
		return nil, ErrNoStats
	}
	return stats, nil
}
