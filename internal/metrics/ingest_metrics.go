package metrics

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// IngestMetrics accumulates timings and counters across ingest runs. It is
// safe for concurrent use.
type IngestMetrics struct {
	ParseLatency  *Histogram // per transcript
	CommitLatency *Histogram // per committed batch

	Runs          atomic.Uint64
	FilesParsed   atomic.Uint64
	FilesErrored  atomic.Uint64
	FilesSkipped  atomic.Uint64
	MatchesStored atomic.Uint64

	startTime time.Time
}

// NewIngestMetrics creates an empty metrics set.
func NewIngestMetrics() *IngestMetrics {
	return &IngestMetrics{
		ParseLatency:  NewHistogram(0),
		CommitLatency: NewHistogram(1000),
		startTime:     time.Now(),
	}
}

// IngestStats is a snapshot of IngestMetrics.
type IngestStats struct {
	ParseLatency  LatencyStats `json:"parse_latency"`
	CommitLatency LatencyStats `json:"commit_latency"`

	Runs          uint64 `json:"runs"`
	FilesParsed   uint64 `json:"files_parsed"`
	FilesErrored  uint64 `json:"files_errored"`
	FilesSkipped  uint64 `json:"files_skipped"`
	MatchesStored uint64 `json:"matches_stored"`

	Uptime time.Duration `json:"uptime"`
}

// Stats returns a snapshot of the current values.
func (m *IngestMetrics) Stats() IngestStats {
	return IngestStats{
		ParseLatency:  m.ParseLatency.Summary(),
		CommitLatency: m.CommitLatency.Summary(),
		Runs:          m.Runs.Load(),
		FilesParsed:   m.FilesParsed.Load(),
		FilesErrored:  m.FilesErrored.Load(),
		FilesSkipped:  m.FilesSkipped.Load(),
		MatchesStored: m.MatchesStored.Load(),
		Uptime:        time.Since(m.startTime).Round(time.Second),
	}
}

// MarshalLogObject lets a snapshot be logged with zap.Object.
func (s IngestStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("runs", s.Runs)
	enc.AddUint64("files_parsed", s.FilesParsed)
	enc.AddUint64("files_errored", s.FilesErrored)
	enc.AddUint64("files_skipped", s.FilesSkipped)
	enc.AddUint64("matches_stored", s.MatchesStored)
	enc.AddFloat64("parse_p50_ms", s.ParseLatency.P50)
	enc.AddFloat64("parse_p95_ms", s.ParseLatency.P95)
	enc.AddFloat64("commit_mean_ms", s.CommitLatency.Mean)
	enc.AddDuration("uptime", s.Uptime)
	return nil
}

var _ zapcore.ObjectMarshaler = IngestStats{}

// Field returns the snapshot as a zap field.
func (m *IngestMetrics) Field() zap.Field {
	return zap.Object("metrics", m.Stats())
}
