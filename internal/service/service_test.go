package service_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"grabtube/internal/config"
	"grabtube/internal/consts"
	"grabtube/internal/downloader"
	"grabtube/internal/entity"
	"grabtube/internal/errs"
	"grabtube/internal/service"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type countingMetrics struct {
	mu                                                     sync.Mutex
	enqueued, started, completed, failed, cancelled, drops int
	inFlight, maxInFlight                                  int
}

func (c *countingMetrics) RecordEnqueued()         { c.add(&c.enqueued) }
func (c *countingMetrics) RecordCompleted(_ int64) { c.add(&c.completed) }
func (c *countingMetrics) RecordFailed()           { c.add(&c.failed) }
func (c *countingMetrics) RecordCancelled()        { c.add(&c.cancelled) }
func (c *countingMetrics) RecordDropped()          { c.add(&c.drops) }

func (c *countingMetrics) RecordStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.started++
	c.inFlight++
	c.maxInFlight = max(c.maxInFlight, c.inFlight)
}

func (c *countingMetrics) TaskTimer() func() {
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.inFlight--
	}
}

func (c *countingMetrics) add(n *int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	*n++
}

func newMock() *downloader.Mock {
	m := downloader.NewMock(slog.New(slog.DiscardHandler))
	m.Steps = 5
	m.TotalBytes = 1 << 20
	m.StepDelay = 100 * time.Millisecond

	return m
}

func newManager(dl downloader.Downloader, buffer int) (*service.Manager, *countingMetrics) {
	metrics := &countingMetrics{}
	cfg := &config.Config{Queue: config.Queue{EventBuffer: buffer}}

	return service.New(cfg, slog.New(slog.DiscardHandler), dl, metrics), metrics
}

func videoRequest(dir, url string) entity.Request {
	return entity.Request{URL: url, OutputDir: dir, Kind: consts.KindVideo, Quality: consts.QualityBest}
}

// collect reads events until n terminal events were seen.
func collect(t *testing.T, events <-chan entity.Event, n int) []entity.Event {
	t.Helper()

	var out []entity.Event

	for terminal := 0; terminal < n; {
		ev, ok := <-events
		if !ok {
			t.Fatalf("events closed after %d terminal events, want %d", terminal, n)
		}

		out = append(out, ev)

		if ev.IsTerminal() {
			terminal++
		}
	}

	return out
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()

	mgr, _ := newManager(newMock(), 8)

	tests := []struct {
		name    string
		req     entity.Request
		wantErr error
	}{
		{name: "invalid kind", req: entity.Request{URL: testURL, Kind: "gif"}, wantErr: errs.ErrInvalidKind},
		{name: "empty url", req: entity.Request{URL: "  ", Kind: consts.KindAudio}, wantErr: errs.ErrEmptyURL},
		{name: "valid", req: entity.Request{URL: testURL, Kind: consts.KindAudio}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := mgr.Enqueue(t.Context(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Enqueue() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr == nil && len(id) != consts.DefaultShortIDLen {
				t.Errorf("id = %q, want %d chars", id, consts.DefaultShortIDLen)
			}
		})
	}

	if n := len(mgr.Pending()); n != 1 {
		t.Errorf("Pending() = %d tasks, want 1", n)
	}

	mgr.Stop()

	if _, err := mgr.Enqueue(t.Context(), entity.Request{URL: testURL, Kind: consts.KindVideo}); !errors.Is(err, errs.ErrServiceClosed) {
		t.Errorf("Enqueue() after Stop error = %v, want ErrServiceClosed", err)
	}
}

func TestFIFOAndNoInterleaving(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		mgr, metrics := newManager(newMock(), 256)
		mgr.Start(t.Context())
		defer mgr.Stop()

		var ids []string

		for i := range 4 {
			id, err := mgr.Enqueue(t.Context(), videoRequest(dir, fmt.Sprintf("%s&n=%d", testURL, i)))
			if err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}

			ids = append(ids, id)
		}

		events := collect(t, mgr.Events(), len(ids))

		current := 0

		for _, ev := range events {
			if ev.TaskID != ids[current] {
				t.Fatalf("event for %s while %s is still running", ev.TaskID, ids[current])
			}

			if ev.IsTerminal() {
				if ev.Kind != entity.EventComplete {
					t.Fatalf("task %s ended with %v", ev.TaskID, ev)
				}

				current++
			}
		}

		if metrics.maxInFlight != 1 {
			t.Errorf("max tasks in flight = %d, want 1", metrics.maxInFlight)
		}

		if metrics.completed != len(ids) || metrics.enqueued != len(ids) {
			t.Errorf("metrics = %+v", metrics)
		}
	})
}

func TestProgressLifecycle(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		mgr, _ := newManager(newMock(), 256)
		mgr.Start(t.Context())
		defer mgr.Stop()

		if _, err := mgr.Enqueue(t.Context(), videoRequest(dir, testURL)); err != nil {
			t.Fatal(err)
		}

		events := collect(t, mgr.Events(), 1)

		state := entity.StateQueued

		var lastPercent float64

		for _, ev := range events {
			if ev.Kind != entity.EventProgress {
				continue
			}

			next := ev.Progress.State
			if !state.CanTransition(next) {
				t.Fatalf("illegal transition %s -> %s", state, next)
			}

			if next == entity.StateDownloading {
				if ev.Progress.Percent < lastPercent {
					t.Errorf("percent went back from %v to %v", lastPercent, ev.Progress.Percent)
				}

				lastPercent = ev.Progress.Percent

				if ev.Progress.Downloaded == "" || ev.Progress.Total != "1.0 MB" {
					t.Errorf("unexpected byte strings: %+v", ev.Progress)
				}
			}

			if next == entity.StateProcessing && ev.Progress.Percent != 100 {
				t.Errorf("processing percent = %v, want 100", ev.Progress.Percent)
			}

			state = next
		}

		if state != entity.StateComplete {
			t.Fatalf("final progress state = %s, want complete", state)
		}

		done := events[len(events)-1]
		if done.Kind != entity.EventComplete {
			t.Fatalf("last event = %v", done)
		}

		if done.Summary.URL != testURL || done.Summary.Kind != consts.KindVideo || done.Summary.FileSizeMB != 1 {
			t.Errorf("summary = %+v", done.Summary)
		}

		if _, err := os.Stat(done.Path); err != nil {
			t.Errorf("reported path missing: %v", err)
		}
	})
}

func TestSecondTaskWaitsForFirst(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		mgr, _ := newManager(newMock(), 256)
		mgr.Start(t.Context())
		defer mgr.Stop()

		first, _ := mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&n=1"))

		ev := <-mgr.Events()
		if ev.TaskID != first {
			t.Fatalf("first event for %s", ev.TaskID)
		}

		second, _ := mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&n=2"))

		if pending := mgr.Pending(); len(pending) != 1 || pending[0].ID != second {
			t.Fatalf("Pending() = %v", pending)
		}

		if mgr.Active() != first {
			t.Fatalf("Active() = %q, want %q", mgr.Active(), first)
		}

		for ev := range mgr.Events() {
			if ev.TaskID == second {
				t.Fatal("second task emitted before the first finished")
			}

			if ev.IsTerminal() {
				break
			}
		}

		rest := collect(t, mgr.Events(), 1)
		if rest[len(rest)-1].TaskID != second {
			t.Errorf("second task did not finish")
		}
	})
}

func TestCancelCurrent(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		mgr, metrics := newManager(newMock(), 256)
		mgr.Start(t.Context())
		defer mgr.Stop()

		id, _ := mgr.Enqueue(t.Context(), videoRequest(dir, testURL))

		var terminal []entity.Event

		for ev := range mgr.Events() {
			if ev.Kind == entity.EventProgress && ev.Progress.State == entity.StateDownloading {
				mgr.CancelCurrent()
			}

			if ev.IsTerminal() {
				terminal = append(terminal, ev)

				break
			}
		}

		if terminal[0].TaskID != id || terminal[0].Kind != entity.EventProgress ||
			terminal[0].Progress.State != entity.StateCancelled {
			t.Fatalf("terminal event = %v, want cancelled progress", terminal[0])
		}

		// the cancelled task must not produce a late complete or error event
		next, _ := mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&n=2"))

		for _, ev := range collect(t, mgr.Events(), 1) {
			if ev.TaskID == id {
				t.Fatalf("late event for cancelled task: %v", ev)
			}

			if ev.IsTerminal() && (ev.TaskID != next || ev.Kind != entity.EventComplete) {
				t.Fatalf("next task ended with %v", ev)
			}
		}

		if metrics.cancelled != 1 || metrics.completed != 1 {
			t.Errorf("metrics = %+v", metrics)
		}
	})
}

func TestCancelWhileIdleHasNoEffect(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		mgr, _ := newManager(newMock(), 256)
		mgr.Start(t.Context())
		defer mgr.Stop()

		mgr.CancelCurrent()
		synctest.Wait()

		if _, err := mgr.Enqueue(t.Context(), videoRequest(dir, testURL)); err != nil {
			t.Fatal(err)
		}

		events := collect(t, mgr.Events(), 1)
		if last := events[len(events)-1]; last.Kind != entity.EventComplete {
			t.Fatalf("task ended with %v after idle cancel", last)
		}

		mgr.CancelCurrent()
		synctest.Wait()

		if _, err := mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&n=2")); err != nil {
			t.Fatal(err)
		}

		events = collect(t, mgr.Events(), 1)
		if last := events[len(events)-1]; last.Kind != entity.EventComplete {
			t.Fatalf("task ended with %v after idle cancel", last)
		}
	})
}

func TestAudioOutputProbing(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		dl := newMock()
		dl.TargetExt = ".webm"

		mgr, _ := newManager(dl, 256)
		mgr.Start(t.Context())
		defer mgr.Stop()

		_, err := mgr.Enqueue(t.Context(), entity.Request{
			URL:            testURL,
			OutputDir:      dir,
			Kind:           consts.KindAudio,
			AudioCodec:     "m4a",
			EmbedThumbnail: true,
		})
		if err != nil {
			t.Fatal(err)
		}

		events := collect(t, mgr.Events(), 1)

		done := events[len(events)-1]
		if done.Kind != entity.EventComplete {
			t.Fatalf("last event = %v", done)
		}

		want := filepath.Join(dir, "dQw4w9WgXcQ.m4a")
		if done.Path != want {
			t.Errorf("path = %q, want %q", done.Path, want)
		}

		if done.Summary.FileSizeMB != 1 {
			t.Errorf("size = %v MB, want 1", done.Summary.FileSizeMB)
		}
	})
}

func TestFailureIsolation(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		dl := newMock()
		dl.FailFunc = func(task entity.Task) error {
			if strings.Contains(task.URL, "broken") {
				return errors.New("ffmpeg exited with 1")
			}

			return nil
		}

		mgr, metrics := newManager(dl, 256)
		mgr.Start(t.Context())
		defer mgr.Stop()

		bad, _ := mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&broken=1"))
		good, _ := mgr.Enqueue(t.Context(), videoRequest(dir, testURL))

		var ends []entity.Event

		for _, ev := range collect(t, mgr.Events(), 2) {
			if ev.IsTerminal() {
				ends = append(ends, ev)
			}
		}

		if ends[0].TaskID != bad || ends[0].Kind != entity.EventError ||
			!strings.Contains(ends[0].Err, "ffmpeg exited with 1") {
			t.Errorf("first terminal = %v", ends[0])
		}

		if ends[1].TaskID != good || ends[1].Kind != entity.EventComplete {
			t.Errorf("second terminal = %v", ends[1])
		}

		if metrics.failed != 1 {
			t.Errorf("failed = %d, want 1", metrics.failed)
		}
	})
}

type panickingDownloader struct {
	downloader.Downloader

	once sync.Once
}

func (p *panickingDownloader) Download(ctx context.Context, task entity.Task, token *downloader.CancelToken,
	hook downloader.ProgressHook,
) (*downloader.Result, error) {
	panicked := false
	p.once.Do(func() { panicked = true })

	if panicked {
		panic("boom")
	}

	return p.Downloader.Download(ctx, task, token, hook)
}

func TestPanicRecovery(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		mgr, _ := newManager(&panickingDownloader{Downloader: newMock()}, 256)
		mgr.Start(t.Context())
		defer mgr.Stop()

		_, _ = mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&n=1"))
		_, _ = mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&n=2"))

		var kinds []entity.EventKind

		for _, ev := range collect(t, mgr.Events(), 2) {
			if ev.IsTerminal() {
				kinds = append(kinds, ev.Kind)
			}
		}

		if kinds[0] != entity.EventError || kinds[1] != entity.EventComplete {
			t.Errorf("terminal kinds = %v", kinds)
		}
	})
}

func TestStopCancelsActiveTask(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		mgr, _ := newManager(newMock(), 256)
		mgr.Start(t.Context())

		id, _ := mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&n=1"))
		_, _ = mgr.Enqueue(t.Context(), videoRequest(dir, testURL+"&n=2"))

		for ev := range mgr.Events() {
			if ev.Progress.State == entity.StateDownloading {
				break
			}
		}

		mgr.Stop()

		var last entity.Event
		for ev := range mgr.Events() {
			last = ev
		}

		if last.TaskID != id || last.Progress.State != entity.StateCancelled {
			t.Errorf("last event = %v, want cancelled %s", last, id)
		}
	})
}

func TestSlowConsumerDropsIntermediateProgress(t *testing.T) {
	dir := t.TempDir()

	synctest.Test(t, func(t *testing.T) {
		dl := newMock()
		dl.Steps = 20

		mgr, metrics := newManager(dl, 1)
		mgr.Start(t.Context())
		defer mgr.Stop()

		_, _ = mgr.Enqueue(t.Context(), videoRequest(dir, testURL))

		var states []entity.State

		for {
			time.Sleep(time.Second)

			ev := <-mgr.Events()
			if ev.Kind == entity.EventProgress {
				states = append(states, ev.Progress.State)
			}

			if ev.IsTerminal() {
				break
			}
		}

		if metrics.drops == 0 {
			t.Error("no progress updates were dropped")
		}

		for _, want := range []entity.State{entity.StateExtracting, entity.StateDownloading, entity.StateProcessing, entity.StateComplete} {
			found := false

			for _, s := range states {
				found = found || s == want
			}

			if !found {
				t.Errorf("state %s was not delivered: %v", want, states)
			}
		}
	})
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	events := make(chan entity.Event, 4)
	events <- entity.Event{Kind: entity.EventProgress, TaskID: "a", Progress: entity.Progress{State: entity.StateExtracting}}
	events <- entity.Event{Kind: entity.EventComplete, TaskID: "a", Path: "/tmp/a.mp4"}
	events <- entity.Event{Kind: entity.EventError, TaskID: "b", Err: "boom"}
	close(events)

	var got []string

	service.Dispatch(t.Context(), events, service.ObserverFuncs{
		Progress: func(id string, p entity.Progress) { got = append(got, id+":"+string(p.State)) },
		Complete: func(id, path string, _ entity.Summary) { got = append(got, id+":"+path) },
		Error:    func(id, msg string) { got = append(got, id+":"+msg) },
	})

	want := []string{"a:extracting", "a:/tmp/a.mp4", "b:boom"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("dispatched %v, want %v", got, want)
	}

	// nil funcs are skipped
	events2 := make(chan entity.Event, 1)
	events2 <- entity.Event{Kind: entity.EventError, TaskID: "c"}
	close(events2)
	service.Dispatch(t.Context(), events2, service.ObserverFuncs{})
}
