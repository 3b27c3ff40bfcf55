package desktop

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"grabtube/internal/downloader"
	"grabtube/internal/entity"
)

const (
	maxStatusLen = 100
	maxTitleLen  = 80
)

// parseGeometry reads a WIDTHxHEIGHT window size.
func parseGeometry(s string) (width, height float32, ok bool) {
	w, h, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		return 0, 0, false
	}

	wi, errW := strconv.Atoi(w)
	hi, errH := strconv.Atoi(h)

	if errW != nil || errH != nil || wi <= 0 || hi <= 0 {
		return 0, 0, false
	}

	return float32(wi), float32(hi), true
}

func formatGeometry(width, height float32) string {
	return fmt.Sprintf("%dx%d", int(width+0.5), int(height+0.5))
}

// statusText is the one-line description of a task state.
func statusText(p entity.Progress) string {
	switch p.State {
	case entity.StateQueued:
		return "Queued"
	case entity.StateExtracting:
		return "Extracting..."
	case entity.StateDownloading:
		return fmt.Sprintf("Downloading... %.0f%%", p.Percent)
	case entity.StateProcessing:
		return "Processing..."
	case entity.StateComplete:
		return "Complete"
	case entity.StateCancelled:
		return "Cancelled"
	case entity.StateError:
		return errorText(p.Error)
	}

	return string(p.State)
}

// statsText joins speed, ETA and byte counters, skipping unknown parts.
func statsText(p entity.Progress) string {
	var parts []string

	if p.Speed != "" {
		parts = append(parts, p.Speed)
	}

	if p.ETA != "" {
		parts = append(parts, "ETA "+p.ETA)
	}

	if p.Downloaded != "" {
		if p.Total != "" {
			parts = append(parts, p.Downloaded+" / "+p.Total)
		} else {
			parts = append(parts, p.Downloaded)
		}
	}

	return strings.Join(parts, "  |  ")
}

func errorText(msg string) string {
	return "Error: " + truncate(msg, maxStatusLen)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}

// qualityOptions lists the format policy's quality tokens, dropping caps the
// source cannot reach. Unknown resolutions keep every token.
func qualityOptions(resolutions []int) []string {
	tokens := downloader.QualityTokens()

	top := slices.Max(append([]int{0}, resolutions...))
	if top <= 0 {
		return tokens
	}

	return slices.DeleteFunc(tokens, func(q string) bool {
		return downloader.QualityHeight(q) > top
	})
}

func downloadLabel(info *entity.VideoInfo) string {
	if info != nil && info.IsPlaylist && len(info.Entries) > 0 {
		return fmt.Sprintf("Download All (%d)", len(info.Entries))
	}

	return "Download"
}

func playlistLabel(info *entity.VideoInfo) string {
	if info == nil || !info.IsPlaylist {
		return ""
	}

	return fmt.Sprintf("Playlist: %d videos", info.PlaylistCount)
}

// queueLine renders one row of the queue list.
func queueLine(state entity.State, title, url string) string {
	label := title
	if label == "" {
		label = url
	}

	return fmt.Sprintf("[%s] %s", state, truncate(label, maxTitleLen))
}

// historyLine renders one row of the history list.
func historyLine(e entity.HistoryEntry) string {
	title := e.Title
	if title == "" {
		title = filepath.Base(e.Path)
	}

	return fmt.Sprintf("%s  |  %s %s  |  %.2f MB  |  %s",
		truncate(title, maxTitleLen), e.Format, e.Quality, e.FileSizeMB, e.Timestamp.Local().Format("2006-01-02 15:04"))
}

// History orderings offered by the sort selector.
const (
	sortNewest = "Newest first"
	sortOldest = "Oldest first"
	sortTitle  = "Title"
	sortFormat = "Format"
	sortSize   = "Largest first"
	sortPath   = "Location"
)

var historySortOptions = []string{sortNewest, sortOldest, sortTitle, sortFormat, sortSize, sortPath}

// sortHistory returns a sorted copy of entries. Ties keep their stored order.
func sortHistory(entries []entity.HistoryEntry, order string) []entity.HistoryEntry {
	out := slices.Clone(entries)

	var less func(a, b entity.HistoryEntry) int

	switch order {
	case sortOldest:
		less = func(a, b entity.HistoryEntry) int { return a.Timestamp.Compare(b.Timestamp) }
	case sortTitle:
		less = func(a, b entity.HistoryEntry) int {
			return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case sortFormat:
		less = func(a, b entity.HistoryEntry) int { return cmp.Compare(a.Format, b.Format) }
	case sortSize:
		less = func(a, b entity.HistoryEntry) int { return cmp.Compare(b.FileSizeMB, a.FileSizeMB) }
	case sortPath:
		less = func(a, b entity.HistoryEntry) int { return cmp.Compare(a.Path, b.Path) }
	default:
		less = func(a, b entity.HistoryEntry) int { return b.Timestamp.Compare(a.Timestamp) }
	}

	slices.SortStableFunc(out, less)

	return out
}
