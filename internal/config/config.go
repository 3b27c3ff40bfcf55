// Package config handles application configuration loading and management.
// User-facing preferences live in the JSON settings store; this package only
// covers process-level knobs read from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"grabtube/internal/consts"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	App        App
	Dir        Dir
	Queue      Queue
	DepManager DepManager
	Proxy      Proxy
	Metrics    Metrics
}

// App holds application-wide configuration.
type App struct {
	LogLevel  string `env:"GRABTUBE_APP_LOG_LEVEL"  envDefault:"info"`
	LogSource bool   `env:"GRABTUBE_APP_LOG_SOURCE" envDefault:"false"`
	// LogFile receives JSON logs; empty means stderr.
	LogFile string `env:"GRABTUBE_APP_LOG_FILE" envDefault:""`
	// DryRun swaps yt-dlp for the scripted mock downloader.
	DryRun bool `env:"GRABTUBE_APP_DRY_RUN" envDefault:"false"`
}

// Dir holds directory paths for settings, cache, and cookie file.
type Dir struct {
	// Config holds config.json and history.json. Defaults to <user config dir>/GrabTube.
	Config string `env:"GRABTUBE_DIR_CONFIG" envDefault:""`
	// Cache is passed to yt-dlp for metadata and signature caching. Defaults to <Config>/cache.
	Cache string `env:"GRABTUBE_DIR_CACHE" envDefault:""`

	// must be a Netscape cookies.txt file
	// see: https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string `env:"GRABTUBE_DIR_COOKIE_FILE" envDefault:""`

	// relative to the task output dir
	// see: https://github.com/yt-dlp/yt-dlp/blob/master/README.md#output-template
	FilenameTemplate string `env:"GRABTUBE_DIR_FILENAME_TEMPLATE" envDefault:"%(title)s.%(ext)s"`
}

// Queue holds download manager configuration.
type Queue struct {
	// EventBuffer is the capacity of the event channel before intermediate progress is dropped.
	EventBuffer int `env:"GRABTUBE_QUEUE_EVENT_BUFFER" envDefault:"256"`
	// ProgressFreq is how often yt-dlp progress is sampled.
	ProgressFreq time.Duration `env:"GRABTUBE_QUEUE_PROGRESS_FREQ" envDefault:"200ms"`
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is where downloaded binaries are stored. Defaults to <Config>/bins.
	BinsDir string `env:"GRABTUBE_DEPMANAGER_BINS_DIR" envDefault:""`
	// UseSystemBinaries looks yt-dlp, ffmpeg and ffprobe up in PATH instead of downloading them.
	UseSystemBinaries bool `env:"GRABTUBE_DEPMANAGER_USE_SYSTEM_BINARIES" envDefault:"true"`

	FFmpegLinuxARM64 string `env:"GRABTUBE_DEPMANAGER_FFMPEG_LINUX_ARM64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64 string `env:"GRABTUBE_DEPMANAGER_FFMPEG_LINUX_AMD64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll
	FFmpegWindows    string `env:"GRABTUBE_DEPMANAGER_FFMPEG_WINDOWS"     envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-win64-gpl.zip"`         //nolint:lll

	YTdlpLinuxARM64 string `env:"GRABTUBE_DEPMANAGER_YTDLP_LINUX_ARM64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"` //nolint:lll
	YTdlpLinuxAMD64 string `env:"GRABTUBE_DEPMANAGER_YTDLP_LINUX_AMD64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`         //nolint:lll
	YTdlpDarwin     string `env:"GRABTUBE_DEPMANAGER_YTDLP_DARWIN"      envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_macos"`         //nolint:lll
	YTdlpWindows    string `env:"GRABTUBE_DEPMANAGER_YTDLP_WINDOWS"     envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp.exe"`           //nolint:lll
}

// Proxy holds outbound proxy configuration for yt-dlp.
type Proxy struct {
	// List is a comma-separated list of proxy URLs, e.g. socks5h://host:1080
	List string `env:"GRABTUBE_PROXY_LIST" envDefault:""`
	// HealthCheck dials a proxy before handing it to yt-dlp.
	HealthCheck bool `env:"GRABTUBE_PROXY_HEALTH_CHECK" envDefault:"true"`
	// HealthTimeout bounds a single health-check dial.
	HealthTimeout time.Duration `env:"GRABTUBE_PROXY_HEALTH_TIMEOUT" envDefault:"3s"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// Metrics holds metrics export configuration.
type Metrics struct {
	// TextfilePath receives the final metrics in Prometheus text format on shutdown.
	TextfilePath string `env:"GRABTUBE_METRICS_TEXTFILE" envDefault:""`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.setDefaults()
	if err != nil {
		return nil, fmt.Errorf("set dir defaults: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	if cfg.DepManager.BinsDir == "" {
		cfg.DepManager.BinsDir = filepath.Join(cfg.Dir.Config, "bins")
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	if cfg.Queue.EventBuffer <= 0 {
		cfg.Queue.EventBuffer = consts.DefaultEventBuffer
	}

	if cfg.Queue.ProgressFreq <= 0 {
		cfg.Queue.ProgressFreq = consts.DefaultProgressFreq
	}

	cfg.Proxy.parseList()

	return cfg, nil
}

func (c *Dir) setDefaults() error {
	if c.Config == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("user config dir: %w", err)
		}

		c.Config = filepath.Join(base, consts.AppDirName)
	}

	if c.Cache == "" {
		c.Cache = filepath.Join(c.Config, "cache")
	}

	if c.FilenameTemplate == "" {
		c.FilenameTemplate = consts.DefaultFilenameTemplate
	}

	return nil
}

// SetAbsPaths converts all directory paths to absolute paths.
// FilenameTemplate stays relative; it is joined with each task's output dir.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Config, err = filepath.Abs(c.Config); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Cache, err = filepath.Abs(c.Cache); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	return nil
}

// SettingsPath returns the location of config.json.
func (c *Dir) SettingsPath() string {
	return filepath.Join(c.Config, consts.SettingsFilename)
}

// HistoryPath returns the location of history.json.
func (c *Dir) HistoryPath() string {
	return filepath.Join(c.Config, consts.HistoryFilename)
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	p.Proxies = nil

	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}
