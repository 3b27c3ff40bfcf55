// entry point of the application
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"grabtube/internal/config"
	"grabtube/internal/depmanager"
	"grabtube/internal/downloader"
	"grabtube/internal/infrastructure/delivery/desktop"
	"grabtube/internal/observability"
	"grabtube/internal/proxy"
	"grabtube/internal/service"
	"grabtube/internal/storage"
	"grabtube/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	logOut, closeLog := logOutput(cfg.App.LogFile)
	defer closeLog()

	log, err := logger.New(&logger.Options{
		AddSource: cfg.App.LogSource,
		Level:     cfg.App.LogLevel,
		Output:    logOut,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New()

	dl, err := newDownloader(ctx, log, cfg, metrics)
	if err != nil {
		log.ErrorContext(ctx, "downloader init", slog.Any("error", err))
		stop()
		os.Exit(1) //nolint:gocritic // deferred log close is best effort
	}

	settings := storage.LoadSettings(ctx, log, cfg.Dir.SettingsPath())
	history := storage.LoadHistory(ctx, log, cfg.Dir.HistoryPath())

	svc := service.New(cfg, log, dl, metrics)
	svc.Start(ctx)

	ui := desktop.New(log, svc, dl, settings, history)

	go func() {
		<-ctx.Done()
		ui.Quit()
	}()

	log.InfoContext(ctx, "grabtube started", slog.String("config_dir", cfg.Dir.Config), slog.Bool("dry_run", cfg.App.DryRun))

	ui.Run(ctx)

	svc.Stop()

	if cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			log.ErrorContext(ctx, "write metrics textfile", slog.Any("error", err))
		}
	}

	log.InfoContext(ctx, "grabtube shut down gracefully")
}

// newDownloader resolves the external binaries and builds the yt-dlp adapter,
// or the scripted mock in dry-run mode.
func newDownloader(ctx context.Context, log *slog.Logger, cfg *config.Config, metrics *observability.Metrics,
) (downloader.Downloader, error) {
	if cfg.App.DryRun {
		log.InfoContext(ctx, "dry run: using mock downloader")

		return downloader.NewMock(log), nil
	}

	depMgr := depmanager.New(log, cfg.DepManager)

	log.InfoContext(ctx, "checking if yt-dlp and ffmpeg are installed. it may take some time...")

	if err := depMgr.Start(ctx); err != nil {
		return nil, err
	}

	var picker downloader.ProxyPicker

	if len(cfg.Proxy.Proxies) > 0 {
		proxyMgr, err := proxy.New(log, cfg.Proxy, metrics)
		if err != nil {
			return nil, err
		}

		picker = proxyMgr

		log.InfoContext(ctx, "proxy manager initialized", slog.Int("proxy_count", proxyMgr.Count()))
	}

	return downloader.NewYTdlp(log, cfg, depMgr, picker, metrics), nil
}

// logOutput opens the configured log file, falling back to stderr.
func logOutput(path string) (io.Writer, func()) {
	if path == "" {
		return os.Stderr, func() {}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("log dir unavailable, logging to stderr", slog.Any("error", err))

		return os.Stderr, func() {}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("log file unavailable, logging to stderr", slog.Any("error", err))

		return os.Stderr, func() {}
	}

	return f, func() { _ = f.Close() }
}
