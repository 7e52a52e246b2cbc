// Package observe records practice-round metrics through the OpenTelemetry
// Metrics API, exported in the Prometheus format.
//
// A package-level default Metrics bound to the global meter provider is
// available via DefaultMetrics; it is a no-op until InitProvider runs.
// Tests should use NewMetrics with their own provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/abhisek/eikaiwa"

// Stage names a step of a practice round.
type Stage string

const (
	StageRecord     Stage = "record"
	StageTranscribe Stage = "transcribe"
	StageReply      Stage = "reply"
	StageProblem    Stage = "problem"
	StageEvaluate   Stage = "evaluate"
	StageSynthesize Stage = "synthesize"
	StageTranscode  Stage = "transcode"
	StagePlay       Stage = "play"
)

// Metrics holds the instruments. Safe for concurrent use.
type Metrics struct {
	// StageDuration tracks each round stage, by stage and status.
	StageDuration metric.Float64Histogram

	// Rounds counts finished rounds, by mode and status.
	Rounds metric.Int64Counter

	// LLMDuration tracks language model latency, by purpose.
	LLMDuration metric.Float64Histogram

	// LLMTokens counts tokens, by purpose and direction.
	LLMTokens metric.Int64Counter

	// LLMErrors counts failed language model calls, by purpose.
	LLMErrors metric.Int64Counter
}

// latencyBuckets are in seconds; playback and recording run long.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("eikaiwa.stage.duration",
		metric.WithDescription("Duration of a practice round stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Rounds, err = m.Int64Counter("eikaiwa.rounds",
		metric.WithDescription("Practice rounds by mode and status."),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("eikaiwa.llm.duration",
		metric.WithDescription("Latency of language model calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMTokens, err = m.Int64Counter("eikaiwa.llm.tokens",
		metric.WithDescription("Language model tokens by purpose and direction."),
	); err != nil {
		return nil, err
	}
	if met.LLMErrors, err = m.Int64Counter("eikaiwa.llm.errors",
		metric.WithDescription("Failed language model calls by purpose."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns Metrics bound to the global meter provider at the
// time of the first call.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: creating default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// TimeStage starts timing stage; call the returned func with the stage's
// outcome.
func (m *Metrics) TimeStage(ctx context.Context, stage Stage) func(error) {
	start := time.Now()
	return func(err error) {
		m.StageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("stage", string(stage)),
			attribute.String("status", status(err)),
		))
	}
}

// RecordRound counts a finished round.
func (m *Metrics) RecordRound(ctx context.Context, mode string, err error) {
	m.Rounds.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status(err)),
	))
}
