// Package stats emits outbound-SMS telemetry.
package stats

import (
	"log/slog"
	"time"
)

// Outgoing describes one completed submission attempt.
type Outgoing struct {
	OverCarrier bool
	Format      string
	Latency     time.Duration
	Emergency   bool
	Success     bool
	Result      string
	RetryCount  int
}

// Sink receives telemetry records. Called from the dispatch loop only.
type Sink interface {
	OutgoingSMS(rec Outgoing)
}

// Compile-time check
var _ Sink = (*LogSink)(nil)

// LogSink writes telemetry to the default logger.
type LogSink struct{}

func (LogSink) OutgoingSMS(rec Outgoing) {
	slog.Info("outgoing sms",
		slog.Bool("over_carrier", rec.OverCarrier),
		slog.String("format", rec.Format),
		slog.Duration("latency", rec.Latency),
		slog.Bool("emergency", rec.Emergency),
		slog.Bool("success", rec.Success),
		slog.String("result", rec.Result),
		slog.Int("retry_count", rec.RetryCount),
	)
}

// Compile-time check
var _ Sink = (*NopSink)(nil)

// NopSink discards telemetry.
type NopSink struct{}

func (NopSink) OutgoingSMS(Outgoing) {}
