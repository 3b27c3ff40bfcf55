package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"grabtube/internal/consts"
	"grabtube/internal/entity"
	"grabtube/internal/errs"
	"grabtube/pkg/calc"
	"grabtube/pkg/humanfmt"
)

// filenameReplacer swaps path separators for the look-alikes yt-dlp uses in output names.
var filenameReplacer = strings.NewReplacer("/", "⧸", "\\", "⧹")

// Mock simulates yt-dlp with scripted progress. It backs dry-run mode and tests.
type Mock struct {
	log *slog.Logger

	// Steps is the number of downloading callbacks before the finished one.
	Steps int
	// TotalBytes is the simulated file size.
	TotalBytes int
	// StepDelay separates callbacks.
	StepDelay time.Duration
	// WriteFile creates the output file on disk.
	WriteFile bool
	// TargetExt overrides the extension reported on the finished callback.
	// The final file uses the audio codec or the merge container.
	TargetExt string

	// ExtractFunc replaces the synthetic metadata when set.
	ExtractFunc func(ctx context.Context, url string) (*entity.VideoInfo, error)
	// FailFunc is consulted after the transfer; a non-nil error fails the task.
	FailFunc func(task entity.Task) error
}

// NewMock returns a Mock that takes about three seconds per task.
func NewMock(log *slog.Logger) *Mock {
	return &Mock{
		log:        log.With(slog.String("package", "downloader"), slog.String("downloader", "mock")),
		Steps:      10,
		TotalBytes: 8 << 20,
		StepDelay:  300 * time.Millisecond,
		WriteFile:  true,
	}
}

// Extract returns metadata derived from the URL.
func (m *Mock) Extract(ctx context.Context, rawURL string) (*entity.VideoInfo, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported URL: %s", errs.ErrExtraction, rawURL)
	}

	const seconds = 212

	return &entity.VideoInfo{
		URL:             rawURL,
		Title:           mockTitle(rawURL),
		Duration:        humanfmt.Duration(seconds),
		DurationSeconds: seconds,
		Uploader:        u.Host,
		Resolutions:     []int{1080, 720, 480},
	}, nil
}

// Download emits Steps downloading callbacks and one finished callback.
func (m *Mock) Download(ctx context.Context, task entity.Task, token *CancelToken, hook ProgressHook,
) (*Result, error) {
	log := m.log.With(slog.String("func", "Download"), slog.String("task_id", task.ID))

	gate := newProgressGate(hook, token, nil)
	defer gate.close()

	title := task.Title
	if title == "" {
		title = mockTitle(task.URL)
	}

	finalExt, targetExt := m.extensions(task)
	base := filepath.Join(task.OutputDir, safeFilename(title))

	for step := 1; step <= m.Steps; step++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", errs.ErrCancelledByUser, ctx.Err())
		case <-time.After(m.StepDelay):
		}

		downloaded := m.TotalBytes * step / m.Steps
		elapsed := time.Duration(step) * m.StepDelay

		if !gate.emit(ProgressEvent{
			Status:          StatusDownloading,
			DownloadedBytes: downloaded,
			TotalBytes:      m.TotalBytes,
			Speed:           calc.Speed(downloaded, elapsed),
			ETA:             calc.ETA(downloaded, m.TotalBytes, elapsed),
			Filename:        base + targetExt,
			Title:           title,
		}) {
			log.InfoContext(ctx, "mock cancelled", slog.Int("step", step))

			return nil, errs.ErrCancelledByUser
		}
	}

	if !gate.emit(ProgressEvent{
		Status:          StatusFinished,
		DownloadedBytes: m.TotalBytes,
		TotalBytes:      m.TotalBytes,
		Filename:        base + targetExt,
		Title:           title,
	}) {
		return nil, errs.ErrCancelledByUser
	}

	if m.FailFunc != nil {
		if err := m.FailFunc(task); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrDownload, err)
		}
	}

	if m.WriteFile {
		if err := os.MkdirAll(task.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrDownload, err)
		}

		if err := os.WriteFile(base+finalExt, make([]byte, m.TotalBytes), 0o644); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrDownload, err)
		}
	}

	return &Result{Path: base + targetExt, Title: title}, nil
}

func (m *Mock) extensions(task entity.Task) (finalExt, targetExt string) {
	finalExt = "." + consts.DefaultMergeFormat

	if task.Kind == consts.KindAudio {
		finalExt = "." + BuildFormatSpec(task.Kind, task.Quality, task.AudioCodec, false).AudioFormat
	}

	targetExt = finalExt
	if m.TargetExt != "" {
		targetExt = m.TargetExt
	}

	return finalExt, targetExt
}

func mockTitle(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return consts.UnknownValue
	}

	if v := u.Query().Get("v"); v != "" {
		return v
	}

	if name := strings.Trim(path.Base(u.Path), "/."); name != "" {
		return name
	}

	return consts.UnknownValue
}

func safeFilename(title string) string {
	return filenameReplacer.Replace(title)
}
