package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/abhisek/eikaiwa/internal/llm"
)

// MetricsProvider is an llm.Provider decorator recording latency, tokens
// and errors per purpose.
type MetricsProvider struct {
	inner   llm.Provider
	metrics *Metrics
}

// WithMetrics wraps p.
func WithMetrics(p llm.Provider, m *Metrics) llm.Provider {
	return &MetricsProvider{inner: p, metrics: m}
}

func (p *MetricsProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	start := time.Now()
	resp, err := p.inner.Generate(ctx, req)

	purpose := attribute.String("purpose", llm.PurposeFrom(ctx))
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(purpose, attribute.String("status", status(err))))
	if err != nil {
		p.metrics.LLMErrors.Add(ctx, 1, metric.WithAttributes(purpose))
		return resp, err
	}
	if resp != nil {
		p.metrics.LLMTokens.Add(ctx, int64(resp.Usage.InputTokens),
			metric.WithAttributes(purpose, attribute.String("direction", "input")))
		p.metrics.LLMTokens.Add(ctx, int64(resp.Usage.OutputTokens),
			metric.WithAttributes(purpose, attribute.String("direction", "output")))
	}
	return resp, nil
}

func (p *MetricsProvider) ModelID() string {
	return p.inner.ModelID()
}
