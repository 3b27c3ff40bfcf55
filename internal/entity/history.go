package entity

import "time"

// HistoryEntry is one completed download as persisted in history.json.
type HistoryEntry struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	Format     string    `json:"format"`
	Quality    string    `json:"quality"`
	FileSizeMB float64   `json:"filesize_mb"`
	Duration   string    `json:"duration"`
	Timestamp  time.Time `json:"timestamp"`
}

// Preferences are the user settings persisted in config.json.
type Preferences struct {
	DownloadDir    string `json:"download_dir"`
	Format         string `json:"format"`
	Quality        string `json:"quality"`
	AudioFormat    string `json:"audio_format"`
	EmbedThumbnail bool   `json:"embed_thumbnail"`
	SponsorBlock   bool   `json:"sponsorblock"`
	WindowGeometry string `json:"window_geometry"`
}
