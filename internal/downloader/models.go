package downloader

import (
	"fmt"
	"log/slog"

	"grabtube/pkg/calc"

	"github.com/lrstanley/go-ytdlp"
)

// runResult wraps ytdlp.Result for custom logging.
type runResult struct {
	*ytdlp.Result
}

// LogValue implements the slog.LogValuer interface for custom logging of Result.
func (r runResult) LogValue() slog.Value {
	if r.Result == nil {
		return slog.GroupValue(slog.String("error", "nil result"))
	}

	return slog.GroupValue(
		slog.String("command", commandLine(r.Result)),
		slog.Int("exit_code", r.ExitCode),
		slog.String("stderr", r.Stderr),
	)
}

// progressUpdate wraps ytdlp.ProgressUpdate for custom logging.
type progressUpdate struct {
	*ytdlp.ProgressUpdate
}

// LogValue implements the slog.LogValuer interface for custom logging of ProgressUpdate.
func (p progressUpdate) LogValue() slog.Value {
	if p.ProgressUpdate == nil {
		return slog.GroupValue(slog.String("error", "nil progress update"))
	}

	return slog.GroupValue(
		slog.String("filename", p.Filename),
		slog.String("status", fmt.Sprint(p.Status)),
		slog.Int("downloaded_bytes", p.DownloadedBytes),
		slog.Int("total_bytes", p.TotalBytes),
		slog.Int("fragment_index", p.FragmentIndex),
		slog.Int("fragment_count", p.FragmentCount),
		slog.Float64("percent", calc.Percent(p.DownloadedBytes, p.TotalBytes)),
		slog.Duration("eta", p.ETA()),
	)
}
