// Package depmanager locates or installs the external binaries yt-dlp needs:
// yt-dlp itself plus ffmpeg and ffprobe for merging and audio extraction.
package depmanager

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"grabtube/internal/config"
	"grabtube/internal/errs"

	"github.com/ulikunitz/xz"
)

// BinaryName represents the name of a binary dependency.
type BinaryName string

// Binary dependency names.
const (
	BinaryYTdlp   BinaryName = "yt-dlp"
	BinaryFFmpeg  BinaryName = "ffmpeg"
	BinaryFFprobe BinaryName = "ffprobe"
)

// Platform operating system names and architectures.
const (
	platformDarwin  = "darwin"
	platformLinux   = "linux"
	platformWindows = "windows"
	archARM64       = "arm64"
)

const (
	// downloadTimeout is the HTTP client timeout for downloading binaries.
	downloadTimeout = 10 * time.Minute
	// filePermExecutable is the file permission for executable binaries.
	filePermExecutable = 0o755
)

var errNoTargets = errors.New("no target files found in archive")

// Platform represents the OS and architecture combination.
type Platform struct {
	OS   string
	Arch string
}

// String returns the platform string in format "os/arch".
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// Manager manages binary dependencies.
type Manager struct {
	log      *slog.Logger
	cfg      config.DepManager
	platform Platform
	client   *http.Client
	lookPath func(file string) (string, error)

	mu       sync.RWMutex
	binPaths map[BinaryName]string // binary name -> resolved path
}

// New creates a new dependency manager.
func New(log *slog.Logger, cfg config.DepManager) *Manager {
	return &Manager{
		log: log.With(slog.String("package", "depmanager")),
		cfg: cfg,
		platform: Platform{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		client:   &http.Client{Timeout: downloadTimeout},
		lookPath: exec.LookPath,
		binPaths: make(map[BinaryName]string),
	}
}

// Start resolves every binary, from PATH or by installing it into BinsDir.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.UseSystemBinaries {
		return m.SetSystemBinaries(ctx)
	}

	return m.InstallAll(ctx)
}

// SetSystemBinaries looks the binaries up in the system PATH.
// yt-dlp is required; ffmpeg and ffprobe only limit what yt-dlp can post-process.
func (m *Manager) SetSystemBinaries(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, binary := range []BinaryName{BinaryYTdlp, BinaryFFmpeg, BinaryFFprobe} {
		path, err := m.lookPath(string(binary))
		if err != nil {
			if binary == BinaryYTdlp {
				return fmt.Errorf("%s: %w: %w", binary, errs.ErrBinaryNotFound, err)
			}

			m.log.WarnContext(ctx, "binary not found in PATH, merging and audio extraction may fail",
				slog.String("binary", string(binary)))

			continue
		}

		m.binPaths[binary] = path
	}

	return nil
}

// InstallAll downloads the binaries that are not present in BinsDir yet.
func (m *Manager) InstallAll(ctx context.Context) error {
	log := m.log

	err := os.MkdirAll(m.cfg.BinsDir, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create bins directory: %w", err)
	}

	// ffmpeg ships ffprobe in the same archive
	for _, binary := range []BinaryName{BinaryFFmpeg, BinaryYTdlp} {
		if m.isBinaryExists(binary) {
			m.setBinaryPath(binary)

			if binary == BinaryFFmpeg && m.isBinaryExists(BinaryFFprobe) {
				m.setBinaryPath(BinaryFFprobe)
			}

			log.DebugContext(ctx, "binary already exists", slog.String("binary", string(binary)))

			continue
		}

		if binary != BinaryYTdlp && m.getBinaryURL(binary) == "" {
			m.fromSystemPath(ctx, BinaryFFmpeg, BinaryFFprobe)

			continue
		}

		err = m.downloadAndInstall(ctx, binary)
		if err != nil {
			return fmt.Errorf("download and install %s: %w", binary, err)
		}
	}

	log.InfoContext(ctx, "all binaries are installed", slog.Any("binaries", m.installed()))

	return nil
}

// fromSystemPath resolves optional binaries that have no download URL for this platform.
func (m *Manager) fromSystemPath(ctx context.Context, names ...BinaryName) {
	for _, name := range names {
		path, err := m.lookPath(string(name))
		if err != nil {
			m.log.WarnContext(ctx, "no download for platform and not in PATH",
				slog.String("binary", string(name)), slog.String("platform", m.platform.String()))

			continue
		}

		m.mu.Lock()
		m.binPaths[name] = path
		m.mu.Unlock()
	}
}

// GetBinaryPath returns where name lives inside BinsDir.
//   - /home/user/bins + yt-dlp => /home/user/bins/yt-dlp
func (m *Manager) GetBinaryPath(name BinaryName) string {
	filename := string(name)
	if m.platform.OS == platformWindows {
		filename += ".exe"
	}

	return filepath.Join(m.cfg.BinsDir, filename)
}

// GetInstalledPath returns the resolved path for a binary, or empty if unresolved.
func (m *Manager) GetInstalledPath(name BinaryName) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.binPaths[name]
}

func (m *Manager) installed() map[BinaryName]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.binPaths)
}

// isBinaryExists checks if a binary file exists and has non-zero size.
func (m *Manager) isBinaryExists(name BinaryName) bool {
	info, err := os.Stat(m.GetBinaryPath(name))

	return err == nil && info.Size() > 0
}

func (m *Manager) setBinaryPath(name BinaryName) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.binPaths[name] = m.GetBinaryPath(name)
}

// downloadAndInstall downloads and installs a dependency binary.
func (m *Manager) downloadAndInstall(ctx context.Context, name BinaryName) error {
	log := m.log.With(slog.String("binary", string(name)))

	url := m.getBinaryURL(name)
	if url == "" {
		return fmt.Errorf("%s on %s: %w", name, m.platform, errs.ErrUnsupportedPlatform)
	}

	log.InfoContext(ctx, "downloading binary", slog.String("url", url))

	binPaths, err := m.downloadDependency(ctx, url, name)
	if err != nil {
		return fmt.Errorf("download dependency: %w", err)
	}

	for _, path := range binPaths {
		if err := os.Chmod(path, filePermExecutable); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}

		m.setBinaryPath(binaryFromPath(path))
	}

	log.InfoContext(ctx, "binary installed successfully", slog.Any("paths", binPaths))

	return nil
}

func binaryFromPath(path string) BinaryName {
	return BinaryName(strings.TrimSuffix(filepath.Base(path), ".exe"))
}

// getBinaryURL picks the configured download URL for the current platform.
// macOS has no static ffmpeg build configured and relies on PATH.
func (m *Manager) getBinaryURL(name BinaryName) string {
	cfg := m.cfg

	switch m.platform.OS {
	case platformLinux:
		switch name {
		case BinaryYTdlp:
			return pickArch(m.platform.Arch, cfg.YTdlpLinuxARM64, cfg.YTdlpLinuxAMD64)
		case BinaryFFmpeg, BinaryFFprobe:
			return pickArch(m.platform.Arch, cfg.FFmpegLinuxARM64, cfg.FFmpegLinuxAMD64)
		}
	case platformDarwin:
		if name == BinaryYTdlp {
			return cfg.YTdlpDarwin
		}
	case platformWindows:
		switch name {
		case BinaryYTdlp:
			return cfg.YTdlpWindows
		case BinaryFFmpeg, BinaryFFprobe:
			return cfg.FFmpegWindows
		}
	}

	return ""
}

func pickArch(arch, arm64, amd64 string) string {
	if arch == archARM64 && arm64 != "" {
		return arm64
	}

	return amd64
}

// downloadDependency downloads url into BinsDir, extracting archives. Returns installed paths.
func (m *Manager) downloadDependency(ctx context.Context, url string, name BinaryName) ([]string, error) {
	binPath := m.GetBinaryPath(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	destDir := filepath.Dir(binPath)

	tmpFile, err := os.CreateTemp(destDir, "download-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmpFile.Name()

	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if !isArchive(url) {
		if err := os.Rename(tmpPath, binPath); err != nil {
			return nil, fmt.Errorf("rename: %w", err)
		}

		return []string{binPath}, nil
	}

	targets := m.filesNeeded(name)

	if err := extractFiles(tmpPath, destDir, url, targets); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	installed := make([]string, 0, len(targets))

	for target := range targets {
		path := filepath.Join(destDir, target)
		if _, err := os.Stat(path); err == nil {
			installed = append(installed, path)
		}
	}

	return installed, nil
}

func isArchive(url string) bool {
	return strings.HasSuffix(url, ".zip") || strings.HasSuffix(url, ".tar.xz") || strings.HasSuffix(url, ".tar.gz")
}

// filesNeeded returns the archive members to extract for a binary.
func (m *Manager) filesNeeded(name BinaryName) map[string]struct{} {
	suffix := ""
	if m.platform.OS == platformWindows {
		suffix = ".exe"
	}

	if name == BinaryFFmpeg || name == BinaryFFprobe {
		return map[string]struct{}{
			string(BinaryFFmpeg) + suffix:  {},
			string(BinaryFFprobe) + suffix: {},
		}
	}

	return map[string]struct{}{string(name) + suffix: {}}
}

func extractFiles(archivePath, destDir, url string, targets map[string]struct{}) error {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return extractFromZip(archivePath, destDir, targets)
	case strings.HasSuffix(url, ".tar.xz"):
		return extractFromTarXZ(archivePath, destDir, targets)
	case strings.HasSuffix(url, ".tar.gz"):
		return extractFromTarGZ(archivePath, destDir, targets)
	default:
		return fmt.Errorf("unsupported archive format: %s", url)
	}
}

func extractFromZip(zipPath, destDir string, targets map[string]struct{}) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	extracted := 0

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}

		filename := file.FileInfo().Name()
		if _, ok := targets[filename]; !ok {
			continue
		}

		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("open file in zip: %w", err)
		}

		err = writeExecutable(filepath.Join(destDir, filename), src)
		src.Close()

		if err != nil {
			return err
		}

		extracted++

		if extracted == len(targets) {
			return nil
		}
	}

	if extracted == 0 {
		return errNoTargets
	}

	return nil
}

func extractFromTarXZ(tarXZPath, destDir string, targets map[string]struct{}) error {
	file, err := os.Open(tarXZPath)
	if err != nil {
		return fmt.Errorf("open tar.xz: %w", err)
	}
	defer file.Close()

	xzReader, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("create xz reader: %w", err)
	}

	return extractTarSelected(xzReader, destDir, targets)
}

func extractFromTarGZ(tarGZPath, destDir string, targets map[string]struct{}) error {
	file, err := os.Open(tarGZPath)
	if err != nil {
		return fmt.Errorf("open tar.gz: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzReader.Close()

	return extractTarSelected(gzReader, destDir, targets)
}

func extractTarSelected(reader io.Reader, destDir string, targets map[string]struct{}) error {
	tarReader := tar.NewReader(reader)
	extracted := 0

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		filename := filepath.Base(header.Name)
		if _, ok := targets[filename]; !ok {
			continue
		}

		if err := writeExecutable(filepath.Join(destDir, filename), tarReader); err != nil {
			return err
		}

		extracted++

		if extracted == len(targets) {
			return nil
		}
	}

	if extracted == 0 {
		return errNoTargets
	}

	return nil
}

func writeExecutable(destPath string, src io.Reader) error {
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create dest file: %w", err)
	}

	_, err = io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("extract file: %w", err)
	}

	return nil
}
