//go:build integration

package integration_test

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"grabtube/internal/config"
	"grabtube/internal/depmanager"
	"grabtube/internal/downloader"
	"grabtube/internal/observability"
)

//go:embed testdata/fake-ytdlp.sh
var fakeYTDLPScript string

type staticBins map[depmanager.BinaryName]string

func (b staticBins) GetInstalledPath(name depmanager.BinaryName) string { return b[name] }

type ytdlpFixture struct {
	cfg          *config.Config
	metrics      *observability.Metrics
	downloader   *downloader.YTdlp
	downloadsDir string
	outputFile   string
}

func newYTdlpFixture(t *testing.T, mode string) *ytdlpFixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp is a shell script")
	}

	baseDir := t.TempDir()
	binsDir := filepath.Join(baseDir, "bins")
	downloadsDir := filepath.Join(baseDir, "downloads")

	for _, dir := range []string{binsDir, downloadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	t.Setenv("GRABTUBE_DIR_CONFIG", baseDir)

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	fakeBinary := filepath.Join(binsDir, "yt-dlp")
	if err := os.WriteFile(fakeBinary, []byte(fakeYTDLPScript), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}

	outputFile := filepath.Join(downloadsDir, "Fake Video.mp4")
	t.Setenv("GRABTUBE_FAKE_MODE", mode)
	t.Setenv("GRABTUBE_FAKE_OUTPUT_FILE", outputFile)

	log := slog.New(slog.DiscardHandler)
	metrics := observability.New()
	bins := staticBins{depmanager.BinaryYTdlp: fakeBinary}

	return &ytdlpFixture{
		cfg:          cfg,
		metrics:      metrics,
		downloader:   downloader.NewYTdlp(log, cfg, bins, nil, metrics),
		downloadsDir: downloadsDir,
		outputFile:   outputFile,
	}
}
