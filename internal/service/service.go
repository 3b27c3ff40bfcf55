// Package service runs the download queue: one worker draining a FIFO of tasks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"grabtube/internal/config"
	"grabtube/internal/consts"
	"grabtube/internal/downloader"
	"grabtube/internal/entity"
	"grabtube/internal/errs"
	"grabtube/pkg/calc"
	"grabtube/pkg/gen"
	"grabtube/pkg/humanfmt"
	"grabtube/pkg/maths"
	"grabtube/pkg/urls"
)

// Metrics receives task lifecycle measurements.
type Metrics interface {
	RecordEnqueued()
	RecordStarted()
	RecordCompleted(size int64)
	RecordFailed()
	RecordCancelled()
	RecordDropped()
	TaskTimer() func()
}

// Manager owns the task queue and the single worker that executes it.
type Manager struct {
	log        *slog.Logger
	cfg        *config.Config
	downloader downloader.Downloader
	metrics    Metrics
	newID      gen.IDFunc
	now        func() time.Time

	mu     sync.Mutex
	queue  []entity.Task
	active string
	ready  chan struct{}

	token  downloader.CancelToken
	events chan entity.Event

	wg        sync.WaitGroup
	closed    atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
}

// New creates a Manager. The worker does not run until Start is called.
// A nil metrics disables measurements.
func New(cfg *config.Config, log *slog.Logger, dl downloader.Downloader, metrics Metrics) *Manager {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	buffer := cfg.Queue.EventBuffer
	if buffer <= 0 {
		buffer = consts.DefaultEventBuffer
	}

	return &Manager{
		log:        log.With(slog.String("package", "service")),
		cfg:        cfg,
		downloader: dl,
		metrics:    metrics,
		newID:      gen.ShortIDFunc(consts.DefaultShortIDLen),
		now:        time.Now,
		ready:      make(chan struct{}, 1),
		events:     make(chan entity.Event, buffer),
	}
}

// Start launches the worker. Subsequent calls are no-ops.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)

		m.wg.Add(1)

		go m.worker(ctx)
	})
}

// Stop aborts the active task, waits for the worker and closes the event channel.
// Tasks still queued are discarded without events.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.closed.Store(true)

		// waits for a concurrent Start and prevents a later one
		m.startOnce.Do(func() {})

		if m.cancel != nil {
			m.cancel()
		}

		m.wg.Wait()

		m.mu.Lock()
		discarded := len(m.queue)
		m.queue = nil
		m.mu.Unlock()

		if discarded > 0 {
			m.log.Info("discarded queued tasks on shutdown", slog.Int("count", discarded))
		}

		close(m.events)
	})
}

// Events returns the channel every task notification is delivered on.
// It is closed by Stop.
func (m *Manager) Events() <-chan entity.Event {
	return m.events
}

// Enqueue appends a task built from req and returns its id without blocking.
func (m *Manager) Enqueue(ctx context.Context, req entity.Request) (string, error) {
	if m.closed.Load() {
		return "", errs.ErrServiceClosed
	}

	if req.Kind != consts.KindVideo && req.Kind != consts.KindAudio {
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidKind, req.Kind)
	}

	url := urls.Normalize(req.URL)
	if url == "" {
		return "", errs.ErrEmptyURL
	}

	task := entity.Task{
		ID:             m.newID(),
		URL:            url,
		OutputDir:      req.OutputDir,
		Kind:           req.Kind,
		Quality:        req.Quality,
		AudioCodec:     req.AudioCodec,
		EmbedThumbnail: req.EmbedThumbnail,
		SponsorBlock:   req.SponsorBlock,
		Title:          req.Title,
		CreatedAt:      m.now(),
	}

	m.mu.Lock()
	m.queue = append(m.queue, task)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}

	m.metrics.RecordEnqueued()
	m.log.DebugContext(ctx, "task enqueued", slog.Any("task", task))

	return task.ID, nil
}

// CancelCurrent asks the active task to stop at its next progress callback.
// Queued tasks are unaffected and the request is forgotten when the next task starts.
func (m *Manager) CancelCurrent() {
	m.mu.Lock()
	active := m.active
	if active != "" {
		m.token.Cancel()
	}
	m.mu.Unlock()

	if active == "" {
		return
	}

	m.log.Info("cancellation requested", slog.String("task_id", active))
}

// Pending returns a snapshot of the tasks waiting behind the active one.
func (m *Manager) Pending() []entity.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.queue)
}

// Active returns the id of the running task, or "" when idle.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()

	log := m.log.With(slog.String("func", "worker"))
	log.DebugContext(ctx, "worker started")

	for {
		task, ok := m.next(ctx)
		if !ok {
			log.InfoContext(ctx, "worker stopped", slog.Any("error", ctx.Err()))

			return
		}

		m.process(ctx, task)
	}
}

// next blocks until a task is available and marks it active.
// The token is reset under the same lock, so a cancel observed against the new id is kept.
func (m *Manager) next(ctx context.Context) (entity.Task, bool) {
	for {
		if ctx.Err() != nil {
			return entity.Task{}, false
		}

		m.mu.Lock()
		if len(m.queue) > 0 {
			task := m.queue[0]
			m.queue = m.queue[1:]
			m.token.Reset()
			m.active = task.ID
			m.mu.Unlock()

			return task, true
		}
		m.mu.Unlock()

		select {
		case <-m.ready:
		case <-ctx.Done():
			return entity.Task{}, false
		}
	}
}

func (m *Manager) process(ctx context.Context, task entity.Task) {
	log := m.log.With(slog.String("task_id", task.ID))

	m.metrics.RecordStarted()

	stopTimer := m.metrics.TaskTimer()

	defer func() {
		stopTimer()

		m.mu.Lock()
		m.active = ""
		m.mu.Unlock()
	}()

	log.InfoContext(ctx, "task started", slog.Any("task", task))

	progress := entity.Progress{State: entity.StateExtracting, Title: task.Title}
	m.emitProgress(ctx, task.ID, progress)

	tracker := &tracker{m: m, ctx: ctx, taskID: task.ID, progress: &progress}

	result, err := m.download(ctx, task, tracker.hook)

	switch {
	case errors.Is(err, errs.ErrCancelledByUser):
		log.InfoContext(ctx, "task cancelled", slog.Any("error", err))
		m.metrics.RecordCancelled()

		progress.State = entity.StateCancelled
		m.emitProgress(ctx, task.ID, progress)
	case err != nil:
		log.ErrorContext(ctx, "task failed", slog.Any("error", err))
		m.fail(ctx, task.ID, err)
	default:
		m.complete(ctx, task, result, tracker.path, &progress)
	}
}

// download calls the downloader, turning a panic into an error so the worker survives.
func (m *Manager) download(ctx context.Context, task entity.Task, hook downloader.ProgressHook,
) (result *downloader.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", errs.ErrDownload, r)
		}
	}()

	result, err = m.downloader.Download(ctx, task, &m.token, hook)
	if err != nil {
		return nil, err
	}

	if result == nil {
		return nil, errs.ErrNoOutput
	}

	return result, nil
}

func (m *Manager) complete(ctx context.Context, task entity.Task, result *downloader.Result,
	hookPath string, progress *entity.Progress,
) {
	path := result.Path
	if path == "" {
		path = hookPath
	}

	if path == "" {
		m.fail(ctx, task.ID, errs.ErrNoOutput)

		return
	}

	if result.Title != "" {
		progress.Title = result.Title
	}

	progress.State = entity.StateComplete
	progress.Percent = 100
	m.emitProgress(ctx, task.ID, *progress)

	path, size := resolveOutput(task, path)

	m.metrics.RecordCompleted(size)
	m.log.InfoContext(ctx, "task complete", slog.String("task_id", task.ID), slog.String("path", path),
		slog.Int64("size", size))

	m.send(ctx, entity.Event{
		Kind:   entity.EventComplete,
		TaskID: task.ID,
		Path:   path,
		Summary: entity.Summary{
			URL:        task.URL,
			Kind:       task.Kind,
			Quality:    task.Quality,
			Title:      progress.Title,
			FileSizeMB: maths.MB(size),
		},
	}, false)
}

func (m *Manager) fail(ctx context.Context, taskID string, err error) {
	m.metrics.RecordFailed()
	m.send(ctx, entity.Event{Kind: entity.EventError, TaskID: taskID, Err: err.Error()}, false)
}

// resolveOutput finds the file actually written for task and its size.
// Audio post-processing may change the extension, so siblings are probed.
func resolveOutput(task entity.Task, path string) (string, int64) {
	candidates := []string{path}

	if task.Kind == consts.KindAudio {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		codec := downloader.BuildFormatSpec(task.Kind, task.Quality, task.AudioCodec, false).AudioFormat

		candidates = []string{base + "." + codec}
		for _, ext := range consts.AudioExtensions {
			candidates = append(candidates, base+ext)
		}

		candidates = append(candidates, path)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			return candidate, info.Size()
		}
	}

	return path, 0
}

func (m *Manager) emitProgress(ctx context.Context, taskID string, p entity.Progress) {
	m.send(ctx, entity.Event{Kind: entity.EventProgress, TaskID: taskID, Progress: p}, false)
}

// send delivers ev. Droppable events are discarded when the consumer lags;
// the rest block until delivered, or until shutdown when they are only kept
// if buffer space remains.
func (m *Manager) send(ctx context.Context, ev entity.Event, droppable bool) {
	if droppable {
		select {
		case m.events <- ev:
		default:
			m.metrics.RecordDropped()
		}

		return
	}

	select {
	case m.events <- ev:
	case <-ctx.Done():
		select {
		case m.events <- ev:
		default:
			m.log.Warn("event lost on shutdown", slog.Any("event", ev))
		}
	}
}

// tracker turns downloader callbacks into Progress events for one task.
type tracker struct {
	m        *Manager
	ctx      context.Context //nolint:containedctx // scoped to a single download call
	taskID   string
	progress *entity.Progress
	path     string
}

func (t *tracker) hook(ev downloader.ProgressEvent) {
	p := t.progress

	if ev.Title != "" {
		p.Title = ev.Title
	}

	if ev.Filename != "" {
		p.Filename = filepath.Base(ev.Filename)
	}

	switch ev.Status {
	case downloader.StatusDownloading:
		if !p.State.CanTransition(entity.StateDownloading) {
			return
		}

		changed := p.State != entity.StateDownloading

		p.State = entity.StateDownloading
		p.Percent = calc.Percent(ev.DownloadedBytes, ev.TotalBytes)
		p.Speed = humanfmt.Speed(ev.Speed)
		p.ETA = humanfmt.ETA(ev.ETA)
		p.Downloaded = humanfmt.Bytes(float64(ev.DownloadedBytes))
		p.Total = humanfmt.Bytes(float64(ev.TotalBytes))

		t.m.send(t.ctx, entity.Event{Kind: entity.EventProgress, TaskID: t.taskID, Progress: *p}, !changed)
	case downloader.StatusFinished:
		if !p.State.CanTransition(entity.StateProcessing) {
			return
		}

		p.State = entity.StateProcessing
		p.Percent = 100
		p.Speed, p.ETA = "", ""

		if ev.Filename != "" {
			t.path = ev.Filename
		}

		t.m.emitProgress(t.ctx, t.taskID, *p)
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordEnqueued()         {}
func (noopMetrics) RecordStarted()          {}
func (noopMetrics) RecordCompleted(_ int64) {}
func (noopMetrics) RecordFailed()           {}
func (noopMetrics) RecordCancelled()        {}
func (noopMetrics) RecordDropped()          {}
func (noopMetrics) TaskTimer() func()       { return func() {} }
