package storage_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"grabtube/internal/consts"
	"grabtube/internal/entity"
	"grabtube/internal/storage"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestLoadSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    func(p entity.Preferences) bool
	}{
		{
			name: "missing file gives defaults",
			want: func(p entity.Preferences) bool { return p == storage.DefaultPreferences() },
		},
		{
			name:    "corrupt file gives defaults",
			content: "{not json",
			want:    func(p entity.Preferences) bool { return p == storage.DefaultPreferences() },
		},
		{
			name:    "partial file merges over defaults",
			content: `{"format":"audio","audio_format":"m4a"}`,
			want: func(p entity.Preferences) bool {
				return p.Format == consts.KindAudio && p.AudioFormat == "m4a" &&
					p.Quality == consts.QualityBest && p.EmbedThumbnail &&
					p.WindowGeometry == consts.DefaultWindowGeometry
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), consts.SettingsFilename)
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			got := storage.LoadSettings(t.Context(), discard(), path).Get()
			if !tt.want(got) {
				t.Errorf("unexpected preferences: %+v", got)
			}
		})
	}
}

func TestSettingsSetPersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", consts.SettingsFilename)
	settings := storage.LoadSettings(t.Context(), discard(), path)

	err := settings.Set(func(p *entity.Preferences) {
		p.SponsorBlock = true
		p.WindowGeometry = "1024x768"
	})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reloaded := storage.LoadSettings(t.Context(), discard(), path).Get()
	if !reloaded.SponsorBlock || reloaded.WindowGeometry != "1024x768" {
		t.Errorf("reloaded = %+v", reloaded)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var keys map[string]any
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{
		"download_dir", "format", "quality", "audio_format",
		"embed_thumbnail", "sponsorblock", "window_geometry",
	} {
		if _, ok := keys[key]; !ok {
			t.Errorf("key %q missing from file", key)
		}
	}

	if err := settings.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	if got := settings.Get(); got != storage.DefaultPreferences() {
		t.Errorf("after Reset() = %+v", got)
	}
}
