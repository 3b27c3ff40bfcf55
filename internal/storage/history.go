package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"grabtube/internal/entity"
	"grabtube/internal/errs"
	"grabtube/pkg/maths"
)

// History is the download history store backed by history.json, newest first.
type History struct {
	log  *slog.Logger
	path string
	now  func() time.Time

	mu      sync.RWMutex
	entries []entity.HistoryEntry
}

// LoadHistory reads path once. A missing or corrupt file yields an empty history.
func LoadHistory(ctx context.Context, log *slog.Logger, path string) *History {
	log = log.With(slog.String("package", "storage"), slog.String("store", "history"))

	var entries []entity.HistoryEntry

	if err := readJSON(path, &entries); err != nil {
		log.WarnContext(ctx, "history unreadable, starting empty", slog.Any("error", err))

		entries = nil
	}

	return &History{log: log, path: path, now: time.Now, entries: entries}
}

// Add prepends entry, stamping it and rounding its size to two decimals.
func (h *History) Add(entry entity.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry.FileSizeMB = maths.RoundTo(entry.FileSizeMB, 2)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = h.now()
	}

	return h.commit(slices.Insert(slices.Clone(h.entries), 0, entry))
}

// Remove deletes the entry at index as shown by All.
func (h *History) Remove(index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.entries) {
		return fmt.Errorf("%w: %d of %d", errs.ErrIndexOutOfRange, index, len(h.entries))
	}

	return h.commit(slices.Delete(slices.Clone(h.entries), index, index+1))
}

// Clear drops every entry.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.commit([]entity.HistoryEntry{})
}

// All returns a copy of every entry, newest first.
func (h *History) All() []entity.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return slices.Clone(h.entries)
}

// Search returns entries whose title or URL contains query, case-insensitively.
// An empty query matches everything.
func (h *History) Search(query string) []entity.HistoryEntry {
	q := strings.ToLower(strings.TrimSpace(query))

	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []entity.HistoryEntry

	for _, e := range h.entries {
		if strings.Contains(strings.ToLower(e.Title), q) || strings.Contains(strings.ToLower(e.URL), q) {
			out = append(out, e)
		}
	}

	return out
}

// PruneMissing drops entries whose file was deleted from disk and reports how many were removed.
func (h *History) PruneMissing(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := make([]entity.HistoryEntry, 0, len(h.entries))

	for _, e := range h.entries {
		if e.Path != "" {
			if _, err := os.Stat(e.Path); errors.Is(err, fs.ErrNotExist) {
				h.log.DebugContext(ctx, "pruning history entry", slog.String("path", e.Path))

				continue
			}
		}

		kept = append(kept, e)
	}

	removed := len(h.entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := h.commit(kept); err != nil {
		return 0, err
	}

	h.log.InfoContext(ctx, "pruned missing history entries", slog.Int("count", removed))

	return removed, nil
}

// commit writes entries and swaps them in on success. Caller holds mu.
func (h *History) commit(entries []entity.HistoryEntry) error {
	if err := writeJSON(h.path, entries); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	h.entries = entries

	return nil
}
