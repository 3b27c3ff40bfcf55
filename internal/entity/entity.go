// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"
	"time"
)

// State represents the lifecycle state of a download task.
type State string

const (
	// StateQueued indicates that the task is waiting in the queue.
	StateQueued State = "queued"
	// StateExtracting indicates that the worker picked the task up and yt-dlp is resolving it.
	StateExtracting State = "extracting"
	// StateDownloading indicates that media bytes are being transferred.
	StateDownloading State = "downloading"
	// StateProcessing indicates that the transfer finished and post-processing may be running.
	StateProcessing State = "processing"
	// StateComplete indicates that the task finished successfully.
	StateComplete State = "complete"
	// StateError indicates that the task failed.
	StateError State = "error"
	// StateCancelled indicates that the task was cancelled by the user.
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transition can leave the state.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateError || s == StateCancelled
}

// IsActive reports whether the state belongs to the task currently owned by the worker.
func (s State) IsActive() bool {
	return s == StateExtracting || s == StateDownloading || s == StateProcessing
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
// Steps move forward; yt-dlp may skip DOWNLOADING when the file already exists.
// Repeating an active state is allowed so progress updates can be re-emitted,
// and PROCESSING may fall back to DOWNLOADING when video and audio streams
// are fetched one after the other.
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() || next == StateQueued {
		return false
	}

	if next == StateError || next == StateCancelled {
		return true
	}

	if s == StateProcessing && next == StateDownloading {
		return true
	}

	order := map[State]int{
		StateQueued:      0,
		StateExtracting:  1,
		StateDownloading: 2,
		StateProcessing:  3,
		StateComplete:    4,
	}

	from, okFrom := order[s]
	to, okTo := order[next]

	return okFrom && okTo && to >= from
}

// Request holds the caller-side parameters of a download.
type Request struct {
	URL            string
	OutputDir      string
	Kind           string
	Quality        string
	AudioCodec     string
	EmbedThumbnail bool
	SponsorBlock   bool
	Title          string
}

// Task is a queued download. It is immutable once enqueued.
type Task struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	OutputDir      string    `json:"outputDir"`
	Kind           string    `json:"kind"`
	Quality        string    `json:"quality"`
	AudioCodec     string    `json:"audioCodec"`
	EmbedThumbnail bool      `json:"embedThumbnail"`
	SponsorBlock   bool      `json:"sponsorBlock"`
	Title          string    `json:"title,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (t Task) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", t.ID),
		slog.String("url", t.URL),
		slog.String("output_dir", t.OutputDir),
		slog.String("kind", t.Kind),
		slog.String("quality", t.Quality),
		slog.String("audio_codec", t.AudioCodec),
		slog.Bool("embed_thumbnail", t.EmbedThumbnail),
		slog.Bool("sponsorblock", t.SponsorBlock),
	)
}

// Progress is the observable state of one in-flight task.
// It only holds values, so a plain copy is a safe snapshot.
type Progress struct {
	State      State   `json:"state"`
	Percent    float64 `json:"percent"`
	Speed      string  `json:"speed,omitempty"`
	ETA        string  `json:"eta,omitempty"`
	Downloaded string  `json:"downloaded,omitempty"`
	Total      string  `json:"total,omitempty"`
	Filename   string  `json:"filename,omitempty"`
	Title      string  `json:"title,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (p Progress) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("state", string(p.State)),
		slog.Float64("percent", p.Percent),
		slog.String("speed", p.Speed),
		slog.String("eta", p.ETA),
		slog.String("downloaded", p.Downloaded),
		slog.String("total", p.Total),
		slog.String("filename", p.Filename),
	)
}

// Summary describes a completed download.
type Summary struct {
	URL        string  `json:"url"`
	Kind       string  `json:"format"`
	Quality    string  `json:"quality"`
	Title      string  `json:"title,omitempty"`
	FileSizeMB float64 `json:"filesizeMb"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", s.URL),
		slog.String("format", s.Kind),
		slog.String("quality", s.Quality),
		slog.Float64("filesize_mb", s.FileSizeMB),
	)
}
