package status

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

const bytesToGB = 1024 * 1024 * 1024

// MetricsCollector reads host resource usage
type MetricsCollector struct{}

// NewMetricsCollector creates a new metrics collector instance
func NewMetricsCollector() *MetricsCollector { return &MetricsCollector{} }

// GetCPUCores returns the number of logical CPU cores
func (m *MetricsCollector) GetCPUCores(ctx context.Context) (int32, error) {
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		logtrace.Error(ctx, "failed to get cpu core count", logtrace.Fields{logtrace.FieldError: err.Error()})
		return 0, err
	}
	return int32(cores), nil
}

// CollectMemoryMetrics gathers memory usage information
func (m *MetricsCollector) CollectMemoryMetrics(ctx context.Context) (total, used, available uint64, usedPerc float64, err error) {
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		logtrace.Error(ctx, "failed to get memory info", logtrace.Fields{logtrace.FieldError: err.Error()})
		return 0, 0, 0, 0, err
	}
	return vmem.Total, vmem.Used, vmem.Available, vmem.UsedPercent, nil
}
