package vecmatch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordMatch is called after each Match call. sources and targets are
	// the collection sizes, err is nil if successful.
	RecordMatch(sources, targets int, duration time.Duration, err error)

	// RecordBatch is called after each target chunk scored by the online
	// matcher.
	RecordBatch(rows int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMatch(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordBatch(int, time.Duration)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// It is safe for concurrent use.
type BasicMetricsCollector struct {
	MatchCount      atomic.Int64
	MatchErrors     atomic.Int64
	MatchTotalNanos atomic.Int64
	SourceRecords   atomic.Int64
	TargetRecords   atomic.Int64
	BatchCount      atomic.Int64
	BatchRows       atomic.Int64
	BatchTotalNanos atomic.Int64
}

// RecordMatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMatch(sources, targets int, duration time.Duration, err error) {
	b.MatchCount.Add(1)
	b.MatchTotalNanos.Add(duration.Nanoseconds())
	b.SourceRecords.Add(int64(sources))
	b.TargetRecords.Add(int64(targets))
	if err != nil {
		b.MatchErrors.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(rows int, duration time.Duration) {
	b.BatchCount.Add(1)
	b.BatchRows.Add(int64(rows))
	b.BatchTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MatchCount:    b.MatchCount.Load(),
		MatchErrors:   b.MatchErrors.Load(),
		MatchAvgNanos: avg(b.MatchTotalNanos.Load(), b.MatchCount.Load()),
		SourceRecords: b.SourceRecords.Load(),
		TargetRecords: b.TargetRecords.Load(),
		BatchCount:    b.BatchCount.Load(),
		BatchRows:     b.BatchRows.Load(),
		BatchAvgNanos: avg(b.BatchTotalNanos.Load(), b.BatchCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MatchCount    int64
	MatchErrors   int64
	MatchAvgNanos int64
	SourceRecords int64
	TargetRecords int64
	BatchCount    int64
	BatchRows     int64
	BatchAvgNanos int64
}
