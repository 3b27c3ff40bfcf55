package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"grabtube/internal/config"
	"grabtube/internal/consts"
	"grabtube/internal/depmanager"
	"grabtube/internal/entity"
	"grabtube/internal/errs"
	"grabtube/pkg/calc"
	"grabtube/pkg/ptr"
	"grabtube/pkg/shellquote"

	"github.com/lrstanley/go-ytdlp"
)

// changing this may break finalPath().
const printAfterMove = "after_move:filepath"

// flags whose values never reach the logs.
var redactedFlags = []string{"--proxy", "--cookies"}

// BinaryLocator resolves installed external binaries.
type BinaryLocator interface {
	GetInstalledPath(name depmanager.BinaryName) string
}

// ProxyPicker hands out an outbound proxy, or "" for a direct connection.
type ProxyPicker interface {
	GetProxy(ctx context.Context) (string, error)
}

// ExtractionRecorder receives extraction outcomes.
type ExtractionRecorder interface {
	RecordExtraction(err error)
}

// YTdlp drives the yt-dlp binary through go-ytdlp.
type YTdlp struct {
	log     *slog.Logger
	cfg     *config.Config
	bins    BinaryLocator
	proxy   ProxyPicker
	metrics ExtractionRecorder
}

// NewYTdlp creates a new YTdlp downloader instance. proxy and metrics may be nil.
func NewYTdlp(log *slog.Logger, cfg *config.Config, bins BinaryLocator, proxy ProxyPicker,
	metrics ExtractionRecorder,
) *YTdlp {
	return &YTdlp{
		log:     log.With(slog.String("package", "downloader"), slog.String("downloader", "yt-dlp")),
		cfg:     cfg,
		bins:    bins,
		proxy:   proxy,
		metrics: metrics,
	}
}

// Extract runs a metadata-only query. Failures wrap errs.ErrExtraction with
// yt-dlp's own error message when it printed one.
func (d *YTdlp) Extract(ctx context.Context, url string) (info *entity.VideoInfo, err error) {
	log := d.log.With(slog.String("func", "Extract"), slog.String("url", url))

	defer func() {
		if d.metrics != nil {
			d.metrics.RecordExtraction(err)
		}
	}()

	cmd := d.baseCommand(ctx).
		SkipDownload().
		DumpSingleJSON()

	res, err := cmd.Run(ctx, url)
	if err != nil {
		cause := err.Error()
		if res != nil {
			if msg := errorCause(res.Stderr); msg != "" {
				cause = msg
			}
		}

		log.WarnContext(ctx, "ytdlp extract", slog.Any("error", err), slog.Any("result", runResult{res}))

		return nil, fmt.Errorf("%w: %s", errs.ErrExtraction, cause)
	}

	info, err = ParseVideoInfo(url, []byte(res.Stdout))
	if err != nil {
		return nil, err
	}

	log.DebugContext(ctx, "extracted", slog.Any("info", *info))

	return info, nil
}

// Download runs yt-dlp for task. The token is polled on every progress callback.
func (d *YTdlp) Download(ctx context.Context, task entity.Task, token *CancelToken, hook ProgressHook,
) (*Result, error) {
	log := d.log.With(slog.String("func", "Download"), slog.Any("task", task))

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	gate := newProgressGate(hook, token, abort)

	var (
		lastFinished string
		title        = task.Title
	)

	progressFn := func(upd ytdlp.ProgressUpdate) {
		log.DebugContext(ctx, "ytdlp progress", slog.Any("progress_update", progressUpdate{&upd}))

		if upd.Info != nil && ptr.Deref(upd.Info.Title) != "" {
			title = ptr.Deref(upd.Info.Title)
		}

		ev, ok := normalizeProgress(upd)
		if !ok {
			return
		}

		ev.Title = title
		if ev.Status == StatusFinished {
			lastFinished = ev.Filename
		}

		gate.emit(ev)
	}

	spec := BuildFormatSpec(task.Kind, task.Quality, task.AudioCodec, task.EmbedThumbnail)

	cmd := spec.apply(d.baseCommand(ctx)).
		ProgressFunc(d.cfg.Queue.ProgressFreq, progressFn).
		Output(filepath.Join(task.OutputDir, d.cfg.Dir.FilenameTemplate)).
		ForceOverwrites().
		NoPlaylist().
		Print(printAfterMove)

	if task.SponsorBlock {
		cmd = cmd.SponsorblockRemove(consts.SponsorBlockCategories)
	}

	res, err := cmd.Run(runCtx, task.URL)

	cancelled := gate.close()

	switch {
	case cancelled:
		log.InfoContext(ctx, "ytdlp cancelled by user")

		return nil, errs.ErrCancelledByUser
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %w", errs.ErrCancelledByUser, ctx.Err())
	case err != nil:
		cause := err.Error()
		if res != nil {
			if msg := errorCause(res.Stderr); msg != "" {
				cause = msg
			}
		}

		log.ErrorContext(ctx, "ytdlp run", slog.Any("error", err), slog.Any("result", runResult{res}))

		return nil, fmt.Errorf("%w: %s", errs.ErrDownload, cause)
	}

	path := finalPath(res.Stdout)
	if path == "" {
		path = lastFinished
	}

	if path == "" {
		return nil, fmt.Errorf("%w: %w", errs.ErrDownload, errs.ErrNoOutput)
	}

	log.InfoContext(ctx, "done", slog.String("path", path), slog.Any("result", runResult{res}))

	return &Result{Path: path, Title: title}, nil
}

// baseCommand holds the flags shared by extraction and download.
func (d *YTdlp) baseCommand(ctx context.Context) *ytdlp.Command {
	cmd := ytdlp.New().
		NoWarnings().
		CacheDir(d.cfg.Dir.Cache)

	if d.bins != nil {
		if bin := d.bins.GetInstalledPath(depmanager.BinaryYTdlp); bin != "" {
			cmd = cmd.SetExecutable(bin)
		}

		if ffmpeg := d.bins.GetInstalledPath(depmanager.BinaryFFmpeg); ffmpeg != "" {
			cmd = cmd.FFmpegLocation(ffmpeg)
		}
	}

	if d.cfg.Dir.CookieFile != "" {
		cmd = cmd.Cookies(d.cfg.Dir.CookieFile)
	}

	if d.proxy != nil {
		proxyURL, err := d.proxy.GetProxy(ctx)

		switch {
		case err != nil:
			d.log.WarnContext(ctx, "failed to get healthy proxy, connecting directly", slog.Any("error", err))
		case proxyURL != "":
			cmd = cmd.Proxy(proxyURL)
		}
	}

	return cmd
}

// normalizeProgress maps a go-ytdlp update onto the two phases the manager understands.
func normalizeProgress(upd ytdlp.ProgressUpdate) (ProgressEvent, bool) {
	ev := ProgressEvent{
		DownloadedBytes: upd.DownloadedBytes,
		TotalBytes:      upd.TotalBytes,
		Filename:        upd.Filename,
	}

	switch upd.Status {
	case ytdlp.ProgressStatusDownloading:
		ev.Status = StatusDownloading

		if !upd.Started.IsZero() {
			ev.Speed = calc.Speed(upd.DownloadedBytes, time.Since(upd.Started))
		}

		ev.ETA = max(upd.ETA(), 0)
	case ytdlp.ProgressStatusFinished:
		ev.Status = StatusFinished
	default:
		return ProgressEvent{}, false
	}

	return ev, true
}

// finalPath returns the last absolute path yt-dlp printed for after_move:filepath.
func finalPath(stdout string) string {
	lines := strings.Split(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "{") || strings.HasPrefix(line, "[") {
			continue
		}

		if filepath.IsAbs(line) && filepath.Ext(line) != "" {
			return line
		}
	}

	return ""
}

// commandLine renders res for logs with secrets masked.
func commandLine(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}

	return shellquote.Join(res.Executable, res.Args, redactedFlags...)
}
