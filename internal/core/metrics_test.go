package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "upsert_test", true, 20*time.Millisecond)
	rec.Observe(ctx, "upsert_test", true, 30*time.Millisecond)
	rec.Observe(ctx, "upsert_test", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	if got := snap.DurationsMS["upsert_test"]; got != 55 {
		t.Fatalf("durations = %v ms, want 55", got)
	}
	if got := snap.Results["upsert_test"]["success"]; got != 2 {
		t.Fatalf("success count = %d, want 2", got)
	}
	if got := snap.Results["upsert_test"]["error"]; got != 1 {
		t.Fatalf("error count = %d, want 1", got)
	}
	if _, ok := snap.Results[""]; ok {
		t.Fatal("empty operation name should be dropped")
	}
	if rec.Name() == "" {
		t.Fatal("generated name is empty")
	}
}

func TestExpvarMetricsSnapshotIsolated(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "progress", true, time.Millisecond)

	snap := rec.Snapshot()
	snap.Results["progress"]["success"] = 99
	snap.DurationsMS["progress"] = 99

	if got := rec.Snapshot().Results["progress"]["success"]; got != 1 {
		t.Fatalf("snapshot mutation leaked into recorder: %d", got)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "replace_day_photos", true, 10*time.Millisecond)
	rec.Observe(ctx, "replace_day_photos", false, 10*time.Millisecond)

	got := testutil.ToFloat64(rec.results.WithLabelValues("replace_day_photos", "success"))
	if got != 1 {
		t.Fatalf("success counter = %v, want 1", got)
	}
	got = testutil.ToFloat64(rec.results.WithLabelValues("replace_day_photos", "error"))
	if got != 1 {
		t.Fatalf("error counter = %v, want 1", got)
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}
