// Package timeouts provides centralized timeout values for remote
// operations.
//
// The remote store and blob store calls have no built-in deadline, so
// every bounded operation in this service takes its limit from here and
// surfaces a TimeoutError when it is exceeded. Values start at defaults
// and can be overridden once at startup via Configure.
package timeouts

import (
	"sync"
	"time"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultUpload = 60 * time.Second
	DefaultCommit = 10 * time.Second
)

var mu sync.RWMutex

var (
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	upload = DefaultUpload
	commit = DefaultCommit
)

// Ping returns the timeout for health checks and connectivity probes.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for single-record store writes: membership
// changes, reuse increments, comment and chat appends.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium returns the timeout for multi-step reads and one-shot lookups.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// Upload returns the timeout for pushing a blob to the blob store.
func Upload() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return upload
}

// Commit returns the timeout for the material metadata write that
// follows a successful blob upload.
func Commit() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return commit
}

// Configure overrides the timeout values at startup. Zero durations keep
// the current value.
func Configure(pingT, shortT, mediumT, uploadT, commitT time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if pingT > 0 {
		ping = pingT
	}
	if shortT > 0 {
		short = shortT
	}
	if mediumT > 0 {
		medium = mediumT
	}
	if uploadT > 0 {
		upload = uploadT
	}
	if commitT > 0 {
		commit = commitT
	}
}
