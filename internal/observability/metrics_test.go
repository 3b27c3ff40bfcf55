package observability_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grabtube/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTaskLifecycle(t *testing.T) {
	m := observability.New()

	m.RecordEnqueued()
	m.RecordEnqueued()
	m.RecordStarted()

	if got := testutil.ToFloat64(m.QueueDepth); got != 1 {
		t.Fatalf("QueueDepth = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.TasksActive); got != 1 {
		t.Fatalf("TasksActive = %v, want 1", got)
	}

	m.RecordCompleted(2048)
	m.RecordStarted()
	m.RecordCancelled()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"enqueued", testutil.ToFloat64(m.TasksEnqueued), 2},
		{"completed", testutil.ToFloat64(m.TasksCompleted), 1},
		{"cancelled", testutil.ToFloat64(m.TasksCancelled), 1},
		{"failed", testutil.ToFloat64(m.TasksFailed), 0},
		{"bytes", testutil.ToFloat64(m.DownloadedBytes), 2048},
		{"active", testutil.ToFloat64(m.TasksActive), 0},
		{"depth", testutil.ToFloat64(m.QueueDepth), 0},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestRecordExtraction(t *testing.T) {
	m := observability.New()

	m.RecordExtraction(nil)
	m.RecordExtraction(errors.New("boom"))
	m.RecordExtraction(errors.New("boom"))

	if got := testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues(observability.ResultOK)); got != 1 {
		t.Errorf("ok = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues(observability.ResultError)); got != 2 {
		t.Errorf("error = %v, want 2", got)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a := observability.New()
	b := observability.New()

	a.RecordDropped()

	if got := testutil.ToFloat64(b.EventsDropped); got != 0 {
		t.Fatalf("registries share state: %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := observability.New()
	m.RecordEnqueued()
	m.RecordProxyPick("socks5h://p:1080")

	path := filepath.Join(t.TempDir(), "grabtube.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}

	for _, want := range []string{"grabtube_tasks_enqueued_total 1", `grabtube_proxy_picks_total{proxy="socks5h://p:1080"} 1`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
