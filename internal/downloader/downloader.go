// Package downloader wraps the external extraction and download primitive.
package downloader

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"grabtube/internal/entity"
)

// Downloader resolves metadata and downloads a single task.
type Downloader interface {
	// Extract queries metadata for url without downloading anything.
	Extract(ctx context.Context, url string) (*entity.VideoInfo, error)
	// Download runs one task to completion, reporting progress through hook.
	// It returns errs.ErrCancelledByUser once token is observed as cancelled.
	Download(ctx context.Context, task entity.Task, token *CancelToken, hook ProgressHook) (*Result, error)
}

// ProgressStatus is the phase reported by the download primitive.
type ProgressStatus string

// Progress phases.
const (
	StatusDownloading ProgressStatus = "downloading"
	StatusFinished    ProgressStatus = "finished"
)

// ProgressEvent is a normalized progress callback from the download primitive.
type ProgressEvent struct {
	Status          ProgressStatus
	DownloadedBytes int
	// TotalBytes is the exact size or yt-dlp's estimate; 0 when unknown.
	TotalBytes int
	// Speed in bytes per second; 0 when unknown.
	Speed    float64
	ETA      time.Duration
	Filename string
	Title    string
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (p ProgressEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("status", string(p.Status)),
		slog.Int("downloaded_bytes", p.DownloadedBytes),
		slog.Int("total_bytes", p.TotalBytes),
		slog.Float64("speed", p.Speed),
		slog.Duration("eta", p.ETA),
		slog.String("filename", p.Filename),
	)
}

// ProgressHook receives progress events on the downloading goroutine.
type ProgressHook func(ProgressEvent)

// Result describes a finished download.
type Result struct {
	// Path is the final file after post-processing when yt-dlp reported it,
	// otherwise the last file the transfer finished writing.
	Path  string
	Title string
}

// CancelToken is a cooperative cancellation flag shared between the
// requester and the running download.
type CancelToken struct {
	flag atomic.Bool
}

// Cancel requests the running download to stop at its next progress callback.
func (t *CancelToken) Cancel() { t.flag.Store(true) }

// Reset clears a previous request.
func (t *CancelToken) Reset() { t.flag.Store(false) }

// Cancelled reports whether Cancel was called since the last Reset.
func (t *CancelToken) Cancelled() bool { return t != nil && t.flag.Load() }

// progressGate serializes hook calls, checks the token on each one and
// drops calls arriving after the download returned.
type progressGate struct {
	mu        sync.Mutex
	hook      ProgressHook
	token     *CancelToken
	abort     context.CancelFunc
	closed    bool
	cancelled bool
}

func newProgressGate(hook ProgressHook, token *CancelToken, abort context.CancelFunc) *progressGate {
	return &progressGate{hook: hook, token: token, abort: abort}
}

// emit forwards ev unless the gate is closed or the token is set.
// It reports whether the download may continue.
func (g *progressGate) emit(ev ProgressEvent) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.cancelled {
		return false
	}

	if g.token.Cancelled() {
		g.cancelled = true

		if g.abort != nil {
			g.abort()
		}

		return false
	}

	if g.hook != nil {
		g.hook(ev)
	}

	return true
}

// close stops further forwarding and reports whether the token fired.
func (g *progressGate) close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true

	return g.cancelled
}
