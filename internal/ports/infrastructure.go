package ports

import (
	"context"
	"time"
)

// CacheStore is a byte-valued key/value store with per-key expiry. The
// embedding cache and the job store are both built on it.
type CacheStore interface {
	// Get reports ok=false for a missing or expired key; err is reserved
	// for backend faults.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key. Zero expiration keeps it indefinitely.
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
}

// MetricsCollector receives run, model and cache measurements. Labels are
// free-form; implementations map them onto their own label sets.
type MetricsCollector interface {
	RecordLatency(operation string, duration time.Duration, labels map[string]string)
	RecordCounter(metric string, value float64, labels map[string]string)
	RecordGauge(metric string, value float64, labels map[string]string)
	RecordHistogram(metric string, value float64, labels map[string]string)
}
