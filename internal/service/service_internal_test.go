//nolint:testpackage // drives next and process directly
package service

import (
	"context"
	"log/slog"
	"testing"
	"testing/synctest"
	"time"

	"grabtube/internal/config"
	"grabtube/internal/consts"
	"grabtube/internal/downloader"
	"grabtube/internal/entity"
)

func TestCancelBeforeFirstCallbackIsKept(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()

		dl := downloader.NewMock(slog.New(slog.DiscardHandler))
		dl.Steps = 3
		dl.StepDelay = 10 * time.Millisecond
		dl.WriteFile = false

		m := New(&config.Config{}, slog.New(slog.DiscardHandler), dl, nil)

		id, err := m.Enqueue(ctx, entity.Request{URL: "https://youtu.be/abc", OutputDir: dir, Kind: consts.KindVideo})
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}

		task, ok := m.next(ctx)
		if !ok || task.ID != id {
			t.Fatalf("next() = %v, %v", task.ID, ok)
		}

		// active is already visible, the worker has not reached process yet
		if m.Active() != id {
			t.Fatalf("Active() = %q, want %q", m.Active(), id)
		}

		m.CancelCurrent()
		m.process(ctx, task)

		var last entity.Event
		for len(m.events) > 0 {
			last = <-m.events
		}

		if last.Kind != entity.EventProgress || last.Progress.State != entity.StateCancelled {
			t.Fatalf("last event = %+v, want CANCELLED progress", last)
		}

		if m.Active() != "" {
			t.Fatalf("Active() = %q after process", m.Active())
		}
	})
}
