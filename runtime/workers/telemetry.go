package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Gauges reports the current size of a shared registry.
type Gauges interface {
	Count() int
}

// TelemetryWorker periodically logs process health (CPU, RSS) together
// with the online-session and group gauges. Purely observational: it
// never evicts a connection.
type TelemetryWorker struct {
	log       *slog.Logger
	interval  time.Duration
	registry  Gauges
	directory Gauges
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration,
	registry, directory Gauges) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval, registry: registry, directory: directory}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Relay status",
				"online", w.registry.Count(),
				"groups", w.directory.Count(),
				"cpu_percent", cpu,
				"ram_bytes", rss)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
