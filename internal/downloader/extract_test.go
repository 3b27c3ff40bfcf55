package downloader

import (
	_ "embed"
	"errors"
	"slices"
	"testing"

	"grabtube/internal/entity"
	"grabtube/internal/errs"
)

//go:embed testdata/video.json
var videoJSON []byte

//go:embed testdata/playlist.json
var playlistJSON []byte

//go:embed testdata/bare.json
var bareJSON []byte

func TestParseVideoInfo(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want entity.VideoInfo
	}{
		{
			name: "single video",
			raw:  videoJSON,
			want: entity.VideoInfo{
				URL:             "https://youtu.be/dQw4w9WgXcQ",
				Title:           "Never Gonna Give You Up",
				Duration:        "3:32",
				DurationSeconds: 212,
				ThumbnailURL:    "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
				Uploader:        "Rick Astley",
				Resolutions:     []int{1080, 720, 480, 144},
			},
		},
		{
			name: "playlist takes first available entry",
			raw:  playlistJSON,
			want: entity.VideoInfo{
				URL:             "https://youtu.be/dQw4w9WgXcQ",
				Title:           "Synthwave Mix",
				Duration:        "1:02:05",
				DurationSeconds: 3725,
				ThumbnailURL:    "https://i.ytimg.com/vi/a1/hq.jpg",
				Uploader:        "Night Drive",
				Resolutions:     []int{1440, 360},
				IsPlaylist:      true,
				PlaylistCount:   3,
				Entries: []entity.PlaylistEntry{
					{URL: "https://www.youtube.com/watch?v=a1", Title: "Track One"},
					{URL: "https://www.youtube.com/watch?v=a2", Title: "Track Two"},
				},
			},
		},
		{
			name: "missing fields fall back",
			raw:  bareJSON,
			want: entity.VideoInfo{
				URL:         "https://youtu.be/dQw4w9WgXcQ",
				Title:       "Unknown",
				Duration:    "Unknown",
				Uploader:    "Unknown",
				Resolutions: []int{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVideoInfo("https://youtu.be/dQw4w9WgXcQ", tt.raw)
			if err != nil {
				t.Fatalf("ParseVideoInfo() error = %v", err)
			}

			if got.Title != tt.want.Title || got.Duration != tt.want.Duration ||
				got.DurationSeconds != tt.want.DurationSeconds || got.ThumbnailURL != tt.want.ThumbnailURL ||
				got.Uploader != tt.want.Uploader || got.URL != tt.want.URL {
				t.Errorf("ParseVideoInfo() = %+v, want %+v", got, tt.want)
			}

			if !slices.Equal(got.Resolutions, tt.want.Resolutions) {
				t.Errorf("Resolutions = %v, want %v", got.Resolutions, tt.want.Resolutions)
			}

			if got.IsPlaylist != tt.want.IsPlaylist || got.PlaylistCount != tt.want.PlaylistCount {
				t.Errorf("playlist = %v/%d, want %v/%d",
					got.IsPlaylist, got.PlaylistCount, tt.want.IsPlaylist, tt.want.PlaylistCount)
			}

			if !slices.Equal(got.Entries, tt.want.Entries) {
				t.Errorf("Entries = %v, want %v", got.Entries, tt.want.Entries)
			}
		})
	}
}

func TestParseVideoInfoInvalidJSON(t *testing.T) {
	_, err := ParseVideoInfo("https://example.com", []byte("not json"))
	if !errors.Is(err, errs.ErrExtraction) {
		t.Fatalf("error = %v, want ErrExtraction", err)
	}
}

func TestErrorCause(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   string
	}{
		{name: "empty", stderr: "", want: ""},
		{name: "warnings only", stderr: "WARNING: slow\n", want: ""},
		{
			name: "last error wins",
			stderr: "WARNING: x\nERROR: [youtube] abc: first\n" +
				"ERROR: [youtube] abc: Video unavailable. This video is private\n",
			want: "[youtube] abc: Video unavailable. This video is private",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorCause(tt.stderr); got != tt.want {
				t.Fatalf("errorCause() = %q, want %q", got, tt.want)
			}
		})
	}
}
