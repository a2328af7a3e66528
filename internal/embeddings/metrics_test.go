package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestMetrics_RecordGeneration(t *testing.T) {
	// Create a manual reader to collect metrics
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	logger := zap.NewNop()
	m := &Metrics{
		meter:  mp.Meter(instrumentationName),
		logger: logger,
	}
	m.init()

	ctx := context.Background()

	// One successful single embed, one failed batch
	m.RecordGeneration(ctx, "openai", "embed", 20*time.Millisecond, 1, nil)
	m.RecordGeneration(ctx, "openai", "batch_embed", 80*time.Millisecond, 8, errors.New("connection refused"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected scope metrics, got none")
	}

	foundDuration := false
	foundBatchSize := false
	foundErrors := false

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "thoughtd.embedding.generation_duration_seconds":
				foundDuration = true
				if hist, ok := m.Data.(metricdata.Histogram[float64]); ok {
					count := uint64(0)
					for _, dp := range hist.DataPoints {
						count += dp.Count
					}
					if count != 2 {
						t.Errorf("expected 2 duration samples, got %d", count)
					}
				}
			case "thoughtd.embedding.batch_size":
				foundBatchSize = true
				if hist, ok := m.Data.(metricdata.Histogram[int64]); ok {
					sum := int64(0)
					for _, dp := range hist.DataPoints {
						sum += dp.Sum
					}
					if sum != 9 {
						t.Errorf("expected batch size sum 9, got %d", sum)
					}
				}
			case "thoughtd.embedding.errors_total":
				foundErrors = true
				if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
					total := int64(0)
					for _, dp := range sum.DataPoints {
						total += dp.Value
					}
					if total != 1 {
						t.Errorf("expected 1 error, got %d", total)
					}
				}
			}
		}
	}

	if !foundDuration {
		t.Error("duration histogram not found")
	}
	if !foundBatchSize {
		t.Error("batch size histogram not found")
	}
	if !foundErrors {
		t.Error("errors counter not found")
	}
}

func TestMetrics_SkipsNonPositiveBatchSize(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	logger := zap.NewNop()
	m := &Metrics{
		meter:  mp.Meter(instrumentationName),
		logger: logger,
	}
	m.init()

	ctx := context.Background()

	m.RecordGeneration(ctx, "openai", "embed", time.Millisecond, 0, nil)
	m.RecordGeneration(ctx, "openai", "batch_embed", time.Millisecond, 4, nil)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name == "thoughtd.embedding.batch_size" {
				if hist, ok := metric.Data.(metricdata.Histogram[int64]); ok {
					count := uint64(0)
					sum := int64(0)
					for _, dp := range hist.DataPoints {
						count += dp.Count
						sum += dp.Sum
					}
					if count != 1 || sum != 4 {
						t.Errorf("expected one batch sample with sum 4, got count=%d sum=%d", count, sum)
					}
				}
				return
			}
		}
	}
	t.Error("batch size metric not found")
}
