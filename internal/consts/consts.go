// Package consts defines application-wide constants.
package consts

import "time"

const (
	// AppID is the reverse-DNS identifier used by the desktop driver.
	AppID = "app.grabtube.desktop"
	// AppName is the human-readable application name.
	AppName = "GrabTube"
	// AppDirName is the per-user config directory name.
	AppDirName = "GrabTube"
)

// Media kinds.
const (
	// KindVideo requests a muxed video+audio download.
	KindVideo = "video"
	// KindAudio requests an audio-only download transcoded to the preferred codec.
	KindAudio = "audio"
)

// Quality tokens understood by the format policy.
const (
	QualityBest  = "best"
	Quality1080p = "1080p"
	Quality720p  = "720p"
	Quality480p  = "480p"
)

// Audio post-processing.
const (
	// DefaultAudioCodec is the codec audio downloads are transcoded to when none is configured.
	DefaultAudioCodec = "mp3"
	// DefaultAudioQuality is the fixed bitrate target for audio extraction.
	DefaultAudioQuality = "192K"
	// DefaultMergeFormat is the container video and audio streams are merged into.
	DefaultMergeFormat = "mp4"
	// SponsorBlockCategories are the segment categories removed when SponsorBlock is enabled.
	SponsorBlockCategories = "sponsor"
)

// AudioExtensions are probed in order when looking for the post-processed audio file.
var AudioExtensions = []string{".mp3", ".m4a", ".opus", ".wav", ".flac"}

// Display sentinels.
const (
	// UnknownValue is shown for missing titles, uploaders and durations.
	UnknownValue = "Unknown"
)

const (
	// DefaultProgressFreq is how often yt-dlp progress is sampled.
	DefaultProgressFreq = 200 * time.Millisecond
	// DefaultEventBuffer is the capacity of the manager event channel.
	DefaultEventBuffer = 256
	// DefaultShortIDLen is the length of generated task ids.
	DefaultShortIDLen = 8
	// DefaultFilenameTemplate is the yt-dlp output template relative to the task output dir.
	DefaultFilenameTemplate = "%(title)s.%(ext)s"
	// DefaultWindowGeometry is the initial window size as WIDTHxHEIGHT.
	DefaultWindowGeometry = "900x620"
)

// Persisted files.
const (
	// SettingsFilename is the preferences file inside the app config dir.
	SettingsFilename = "config.json"
	// HistoryFilename is the download history file inside the app config dir.
	HistoryFilename = "history.json"
)
