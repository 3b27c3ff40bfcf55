package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"grabtube/internal/consts"
	"grabtube/internal/entity"
)

// DefaultPreferences returns the preferences used when nothing was saved yet.
func DefaultPreferences() entity.Preferences {
	downloadDir := "Downloads"
	if home, err := os.UserHomeDir(); err == nil {
		downloadDir = filepath.Join(home, "Downloads")
	}

	return entity.Preferences{
		DownloadDir:    downloadDir,
		Format:         consts.KindVideo,
		Quality:        consts.QualityBest,
		AudioFormat:    consts.DefaultAudioCodec,
		EmbedThumbnail: true,
		SponsorBlock:   false,
		WindowGeometry: consts.DefaultWindowGeometry,
	}
}

// Settings is the preferences store backed by config.json.
type Settings struct {
	log  *slog.Logger
	path string

	mu    sync.RWMutex
	prefs entity.Preferences
}

// LoadSettings reads path once and merges it over DefaultPreferences.
// A missing or unreadable file yields the defaults.
func LoadSettings(ctx context.Context, log *slog.Logger, path string) *Settings {
	log = log.With(slog.String("package", "storage"), slog.String("store", "settings"))

	prefs := DefaultPreferences()

	if err := readJSON(path, &prefs); err != nil {
		log.WarnContext(ctx, "settings unreadable, using defaults", slog.Any("error", err))

		prefs = DefaultPreferences()
	}

	return &Settings{log: log, path: path, prefs: prefs}
}

// Get returns a copy of the current preferences.
func (s *Settings) Get() entity.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.prefs
}

// Set applies update and rewrites the file.
func (s *Settings) Set(update func(*entity.Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.prefs
	update(&next)

	if err := writeJSON(s.path, next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.prefs = next

	return nil
}

// Reset restores and saves the defaults.
func (s *Settings) Reset() error {
	return s.Set(func(p *entity.Preferences) { *p = DefaultPreferences() })
}
