package helpers

import (
	"os"
	"runtime/debug"
)

const (
	minMemoryLimit   = 512 << 20
	memoryLimitShare = 0.75
)

// -----------------------------------------------------------------------------

// RecommendedMemoryLimit returns 75% of totalBytes, never below 512MB unless
// the machine itself is smaller. Zero total (unknown) yields the 512MB floor.
func RecommendedMemoryLimit(totalBytes uint64) int64 {
	if totalBytes == 0 {
		return minMemoryLimit
	}

	limit := int64(float64(totalBytes) * memoryLimitShare)
	if limit < minMemoryLimit {
		if totalBytes < minMemoryLimit {
			return int64(totalBytes)
		}
		return minMemoryLimit
	}
	return limit
}

// -----------------------------------------------------------------------------

// ApplyMemoryLimit sets the runtime soft memory limit from physical memory
// unless GOMEMLIMIT is already set. It returns the limit in effect.
func ApplyMemoryLimit() int64 {
	if os.Getenv("GOMEMLIMIT") != "" {
		return debug.SetMemoryLimit(-1)
	}
	limit := RecommendedMemoryLimit(totalSystemMemory())
	debug.SetMemoryLimit(limit)
	return limit
}
