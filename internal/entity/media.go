package entity

import "log/slog"

// VideoInfo is the normalized metadata of a resolved URL.
// For playlists, Duration and Resolutions describe the first entry.
type VideoInfo struct {
	URL             string          `json:"url"`
	Title           string          `json:"title"`
	Duration        string          `json:"duration"`
	DurationSeconds int             `json:"durationSeconds"`
	ThumbnailURL    string          `json:"thumbnailUrl"`
	Uploader        string          `json:"uploader"`
	Resolutions     []int           `json:"resolutions"` // unique heights, descending
	IsPlaylist      bool            `json:"isPlaylist"`
	PlaylistCount   int             `json:"playlistCount"`
	Entries         []PlaylistEntry `json:"entries,omitempty"`
}

// PlaylistEntry is one item of a resolved playlist.
type PlaylistEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (v VideoInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", v.URL),
		slog.String("title", v.Title),
		slog.String("duration", v.Duration),
		slog.String("uploader", v.Uploader),
		slog.Any("resolutions", v.Resolutions),
		slog.Bool("is_playlist", v.IsPlaylist),
		slog.Int("playlist_count", v.PlaylistCount),
	)
}
