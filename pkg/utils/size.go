package utils

import (
	"github.com/shirou/gopsutil/v3/disk"
)

// BytesToMB converts a byte count to megabytes.
func BytesToMB(bytes uint64) float64 {
	return float64(bytes) / 1024.0 / 1024.0
}

// BytesIntToMB converts a byte count to megabytes.
func BytesIntToMB(b int) float64 {
	return float64(b) / 1024.0 / 1024.0
}

// DiskStatus describes the file system backing a path.
type DiskStatus struct {
	All  float64 `json:"all"`
	Used float64 `json:"used"`
	Free float64 `json:"free"`
}

// DiskUsage returns the usage of the file system that holds path, in megabytes.
func DiskUsage(path string) (DiskStatus, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return DiskStatus{}, err
	}
	return DiskStatus{
		All:  BytesToMB(usage.Total),
		Used: BytesToMB(usage.Used),
		Free: BytesToMB(usage.Free),
	}, nil
}
