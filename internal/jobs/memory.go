package jobs

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// memoryPerWorkerGB is a conservative per-worker footprint estimate
// used only for the pressure warning, not for any hard limit.
const memoryPerWorkerGB = 0.5

// memoryBufferGB is reserved for the rest of the process and OS.
const memoryBufferGB = 1.0

// checkMemoryPressure compares the configured worker count against
// available system memory and returns a warning string if workers
// looks too high, or empty string if the check passes or the host's
// memory stats are unavailable.
func checkMemoryPressure(workers int) string {
	v, err := mem.VirtualMemory()
	if err != nil {
		return ""
	}

	availableGB := float64(v.Available) / 1024 / 1024 / 1024
	totalGB := float64(v.Total) / 1024 / 1024 / 1024
	recommended := safeWorkerCount(availableGB)

	if workers > recommended {
		return fmt.Sprintf(
			"worker count (%d) exceeds recommended (%d) for available memory (%.1f/%.1fGB)",
			workers, recommended, totalGB-availableGB, totalGB)
	}
	return ""
}

func safeWorkerCount(availableGB float64) int {
	if availableGB < memoryBufferGB {
		return 1
	}
	usable := availableGB - memoryBufferGB
	recommended := int(usable / memoryPerWorkerGB)
	if recommended < 1 {
		return 1
	}
	return recommended
}
