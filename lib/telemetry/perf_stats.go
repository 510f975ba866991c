package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.opentelemetry.io/otel"
)

// PerfSample is one reading of process and host statistics.
type PerfSample struct {
	CPUPercent    float64
	HostMemPct    float64
	AllocatedMB   int64
	LiveObjects   int64
	GoroutineSize int64
}

// SamplePerf reads the current statistics, cpu usage is averaged over window.
func SamplePerf(window time.Duration) (PerfSample, error) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sample := PerfSample{
		AllocatedMB:   int64(memStats.Alloc / 1_000_000),
		LiveObjects:   int64(memStats.Mallocs) - int64(memStats.Frees),
		GoroutineSize: int64(runtime.NumGoroutine()),
	}

	cpuUsage, err := cpu.Percent(window, false)
	if err != nil {
		return sample, err
	}
	if len(cpuUsage) > 0 {
		sample.CPUPercent = cpuUsage[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return sample, err
	}
	sample.HostMemPct = vm.UsedPercent
	return sample, nil
}

// InstrumentPerfStats records a PerfSample into gauges every interval until ctx is done.
// The chrome processes started by the browser acquirer show up in the host gauges.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	meter := otel.Meter("courtprices.perf_stats")
	cpuGauge, _ := meter.Float64Gauge("cpu_usage")
	hostMemGauge, _ := meter.Float64Gauge("host_memory_used_percent")
	memoryGauge, _ := meter.Int64Gauge("allocated_mb")
	liveObjectsGauge, _ := meter.Int64Gauge("live_objects")
	goroutineGauge, _ := meter.Int64Gauge("goroutine_count")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sample, err := SamplePerf(time.Second)
				if err != nil {
					slog.Warn("failed to read perf stats", "err", err)
				}
				cpuGauge.Record(ctx, sample.CPUPercent)
				hostMemGauge.Record(ctx, sample.HostMemPct)
				memoryGauge.Record(ctx, sample.AllocatedMB)
				liveObjectsGauge.Record(ctx, sample.LiveObjects)
				goroutineGauge.Record(ctx, sample.GoroutineSize)
			case <-ctx.Done():
				return
			}
		}
	}()
}
