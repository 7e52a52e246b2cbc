package observe

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/abhisek/eikaiwa/internal/llm"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestTimeStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.TimeStage(ctx, StageTranscribe)(nil)
	m.TimeStage(ctx, StageTranscribe)(errors.New("too short"))

	met := findMetric(collect(t, reader), "eikaiwa.stage.duration")
	if met == nil {
		t.Fatal("stage histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}
	if len(hist.DataPoints) != 2 {
		t.Fatalf("expected ok and error data points, got %d", len(hist.DataPoints))
	}
	for _, dp := range hist.DataPoints {
		if v, _ := dp.Attributes.Value(attribute.Key("stage")); v.AsString() != "transcribe" {
			t.Fatalf("unexpected stage attribute %v", v)
		}
		if dp.Count != 1 {
			t.Fatalf("expected 1 observation, got %d", dp.Count)
		}
	}
}

func TestRecordRound(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRound(ctx, "shadowing", nil)
	m.RecordRound(ctx, "shadowing", nil)

	met := findMetric(collect(t, reader), "eikaiwa.rounds")
	if met == nil {
		t.Fatal("rounds counter not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Fatalf("unexpected data points %+v", sum.DataPoints)
	}
}

func TestWithMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: []byte("ok"), Usage: llm.Usage{InputTokens: 7, OutputTokens: 3}},
		llm.MockResponse{Err: errors.New("down")},
	)
	p := WithMetrics(mock, m)
	ctx := llm.WithPurpose(context.Background(), llm.PurposeTranslation)

	if _, err := p.Generate(ctx, llm.Request{}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Generate(ctx, llm.Request{}); err == nil {
		t.Fatal("expected error")
	}
	if p.ModelID() != "mock" {
		t.Fatalf("ModelID = %q", p.ModelID())
	}

	rm := collect(t, reader)
	tokens := findMetric(rm, "eikaiwa.llm.tokens").Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range tokens.DataPoints {
		total += dp.Value
	}
	if total != 10 {
		t.Fatalf("expected 10 tokens, got %d", total)
	}
	errs := findMetric(rm, "eikaiwa.llm.errors").Data.(metricdata.Sum[int64])
	if len(errs.DataPoints) != 1 || errs.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected error count %+v", errs.DataPoints)
	}
}

func TestProviderHandler(t *testing.T) {
	p, err := InitProvider("test")
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.MeterProvider)
	if err != nil {
		t.Fatal(err)
	}
	m.RecordRound(context.Background(), "dictation", nil)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "eikaiwa_rounds") {
		t.Fatalf("exposition missing rounds counter:\n%s", body)
	}
}
