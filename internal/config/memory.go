package config

import (
	"os"
	"strconv"
	"strings"
)

// detectMemoryLimitBytes returns the container memory limit in bytes read
// from the cgroup filesystem, trying cgroup v2 first and falling back to
// v1. It returns 0 when no limit is detectable (bare metal, VM, or an
// unconstrained container).
func detectMemoryLimitBytes() int64 {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		limit := strings.TrimSpace(string(data))
		if limit != "max" {
			if v, err := strconv.ParseInt(limit, 10, 64); err == nil {
				return v
			}
		}
		return 0
	}

	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		limit := strings.TrimSpace(string(data))
		if v, err := strconv.ParseInt(limit, 10, 64); err == nil {
			return v
		}
	}

	return 0
}

// bytesPerClient estimates the resident memory a single connected client
// holds: its goroutine stack (starts at 2KB, grows as needed), the
// fixed-size read buffer, and bookkeeping in its owning worker's slice.
// A raw-TCP line client is far lighter than a WebSocket connection with
// send queues and a replay buffer, so this budget is intentionally small.
const bytesPerClient = 8 * 1024

const runtimeOverheadBytes = 32 * 1024 * 1024

// SuggestedMaxConnections estimates a safe MaxThreads*MaxClientsPerThread
// ceiling from the container's memory limit, for use as an advisory
// cross-check against the configured value (§4.H). It returns 0 when no
// cgroup memory limit is detected, meaning no suggestion is available.
func SuggestedMaxConnections() int {
	limit := detectMemoryLimitBytes()
	if limit == 0 {
		return 0
	}

	available := limit - runtimeOverheadBytes
	if available < 0 {
		available = limit / 2
	}

	suggested := int(available / bytesPerClient)
	if suggested < 10 {
		suggested = 10
	}
	return suggested
}
