package downloader

import (
	"bufio"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"grabtube/internal/consts"
	"grabtube/internal/entity"
	"grabtube/internal/errs"
	"grabtube/pkg/humanfmt"
	"grabtube/pkg/maths"
	"grabtube/pkg/ptr"
)

const playlistType = "playlist"

// infoJSON is the subset of yt-dlp's --dump-single-json output we read.
type infoJSON struct {
	Type       *string      `json:"_type"`
	Title      *string      `json:"title"`
	Duration   *float64     `json:"duration"`
	Thumbnail  *string      `json:"thumbnail"`
	Uploader   *string      `json:"uploader"`
	Channel    *string      `json:"channel"`
	WebpageURL *string      `json:"webpage_url"`
	URL        *string      `json:"url"`
	Formats    []formatJSON `json:"formats"`
	Entries    []*infoJSON  `json:"entries"`
}

type formatJSON struct {
	VCodec *string  `json:"vcodec"`
	Height *float64 `json:"height"`
}

// ParseVideoInfo normalizes yt-dlp JSON metadata for url.
// For playlists, duration, thumbnail and resolutions come from the first
// available entry when the collection itself lacks them.
func ParseVideoInfo(url string, raw []byte) (*entity.VideoInfo, error) {
	var info infoJSON
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %w", errs.ErrExtraction, err)
	}

	isPlaylist := ptr.Deref(info.Type) == playlistType

	rep := &info
	if isPlaylist {
		if first := firstEntry(info.Entries); first != nil {
			rep = first
		}
	}

	seconds := maths.RoundTo(ptr.Coalesce(0, info.Duration, rep.Duration), 0)

	out := &entity.VideoInfo{
		URL:             url,
		Title:           ptr.Coalesce(consts.UnknownValue, info.Title),
		DurationSeconds: int(seconds),
		Duration:        humanfmt.Duration(int(seconds)),
		ThumbnailURL:    ptr.Coalesce("", info.Thumbnail, rep.Thumbnail),
		Uploader:        ptr.Coalesce(consts.UnknownValue, info.Uploader, info.Channel),
		Resolutions:     resolutions(info.Formats),
		IsPlaylist:      isPlaylist,
	}

	if len(out.Resolutions) == 0 && rep != &info {
		out.Resolutions = resolutions(rep.Formats)
	}

	if isPlaylist {
		out.PlaylistCount = len(info.Entries)

		for _, e := range info.Entries {
			if e == nil {
				continue
			}

			out.Entries = append(out.Entries, entity.PlaylistEntry{
				URL:   ptr.Coalesce("", e.WebpageURL, e.URL),
				Title: ptr.Coalesce(consts.UnknownValue, e.Title),
			})
		}
	}

	return out, nil
}

func firstEntry(entries []*infoJSON) *infoJSON {
	for _, e := range entries {
		if e != nil {
			return e
		}
	}

	return nil
}

// resolutions returns the unique heights of video-bearing formats, descending.
func resolutions(formats []formatJSON) []int {
	heights := make([]int, 0, len(formats))

	for _, f := range formats {
		vcodec := ptr.Deref(f.VCodec)
		if vcodec == "" || vcodec == "none" {
			continue
		}

		h := int(ptr.Deref(f.Height))
		if h <= 0 || slices.Contains(heights, h) {
			continue
		}

		heights = append(heights, h)
	}

	slices.Sort(heights)
	slices.Reverse(heights)

	return heights
}

// errorCause returns the last "ERROR:" line yt-dlp wrote to stderr, without the prefix.
func errorCause(stderr string) string {
	var cause string

	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "ERROR:"); ok {
			cause = strings.TrimSpace(rest)
		}
	}

	return cause
}
