package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"libgal/lib/logging"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const defaultProcessInterval = 30 * time.Second

var processMeter = otel.Meter("libgal/lib/telemetry")

// ProcessSample is a snapshot of the job process and its host. Loads into a
// warehouse usually hold whole tables in memory, RSS and host memory catch
// jobs about to be killed.
type ProcessSample struct {
	CPUPercent     float64
	RSSBytes       uint64
	HeapBytes      uint64
	Goroutines     int
	HostMemPercent float64
}

// SampleProcess reads the current process and host usage. CPU usage is
// measured over window, a zero window compares against the previous call.
func SampleProcess(ctx context.Context, window time.Duration) (ProcessSample, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	sample := ProcessSample{
		HeapBytes:  memStats.HeapAlloc,
		Goroutines: runtime.NumGoroutine(),
	}

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return sample, err
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return sample, err
	}
	sample.RSSBytes = info.RSS

	usage, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return sample, err
	}
	if len(usage) > 0 {
		sample.CPUPercent = usage[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sample, err
	}
	sample.HostMemPercent = vm.UsedPercent
	return sample, nil
}

type processGauges struct {
	cpu        metric.Float64Gauge
	rss        metric.Int64Gauge
	heap       metric.Int64Gauge
	goroutines metric.Int64Gauge
	hostMem    metric.Float64Gauge
}

func newProcessGauges(m metric.Meter) (processGauges, error) {
	var g processGauges
	var err error
	if g.cpu, err = m.Float64Gauge("libgal.process.cpu", metric.WithUnit("%")); err != nil {
		return g, err
	}
	if g.rss, err = m.Int64Gauge("libgal.process.rss", metric.WithUnit("By")); err != nil {
		return g, err
	}
	if g.heap, err = m.Int64Gauge("libgal.process.heap", metric.WithUnit("By")); err != nil {
		return g, err
	}
	if g.goroutines, err = m.Int64Gauge("libgal.process.goroutines"); err != nil {
		return g, err
	}
	g.hostMem, err = m.Float64Gauge("libgal.host.memory_used", metric.WithUnit("%"))
	return g, err
}

func (g processGauges) record(ctx context.Context, s ProcessSample) {
	g.cpu.Record(ctx, s.CPUPercent)
	g.rss.Record(ctx, int64(s.RSSBytes))
	g.heap.Record(ctx, int64(s.HeapBytes))
	g.goroutines.Record(ctx, int64(s.Goroutines))
	g.hostMem.Record(ctx, s.HostMemPercent)
}

// InstrumentProcess samples the process every config.ProcessInterval
// seconds until ctx is done. A negative interval disables sampling.
func InstrumentProcess(ctx context.Context, config Config, logger *slog.Logger) {
	interval := config.processInterval()
	if interval <= 0 {
		return
	}
	logger = logging.Or(logger)
	gauges, err := newProcessGauges(processMeter)
	if err != nil {
		logger.Warn("process gauges unavailable", "err", err)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sample, err := SampleProcess(ctx, 0)
				if err != nil && ctx.Err() == nil {
					logger.Warn("failed to sample process", "err", err)
				}
				gauges.record(ctx, sample)
			case <-ctx.Done():
				return
			}
		}
	}()
}
