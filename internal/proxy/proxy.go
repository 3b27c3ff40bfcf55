// Package proxy picks an outbound proxy for yt-dlp, optionally dialing it first.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/url"
	"time"

	"grabtube/internal/config"
	"grabtube/internal/errs"
)

const (
	defaultSOCKSPort = "1080"
	defaultHTTPPort  = "8080"
	defaultHTTPSPort = "443"
)

// Recorder receives proxy selection outcomes.
type Recorder interface {
	RecordProxyPick(proxy string)
	RecordProxyFailure(proxy string)
}

// Manager handles proxy selection and health checking.
type Manager struct {
	log           *slog.Logger
	rec           Recorder
	proxies       []string
	healthCheck   bool
	healthTimeout time.Duration
	dial          func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New validates the configured proxy list. rec may be nil.
func New(log *slog.Logger, cfg config.Proxy, rec Recorder) (*Manager, error) {
	cleaned := make([]string, 0, len(cfg.Proxies))

	for _, p := range cfg.Proxies {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", p, err)
		}

		if u.Scheme == "" || u.Hostname() == "" {
			return nil, fmt.Errorf("invalid proxy URL %q: scheme and host are required", p)
		}

		cleaned = append(cleaned, p)
	}

	return &Manager{
		log:           log.With(slog.String("package", "proxy")),
		rec:           rec,
		proxies:       cleaned,
		healthCheck:   cfg.HealthCheck,
		healthTimeout: cfg.HealthTimeout,
		dial:          (&net.Dialer{}).DialContext,
	}, nil
}

// GetProxy returns a random healthy proxy URL, or "" when none are configured.
func (m *Manager) GetProxy(ctx context.Context) (string, error) {
	if len(m.proxies) == 0 {
		return "", nil
	}

	if !m.healthCheck {
		return m.pick(m.proxies[rand.IntN(len(m.proxies))]), nil
	}

	// shuffle and try each once
	for _, idx := range rand.Perm(len(m.proxies)) {
		proxyURL := m.proxies[idx]

		if err := m.checkHealth(ctx, proxyURL); err != nil {
			m.log.WarnContext(ctx, "proxy health check failed",
				slog.String("proxy", Redact(proxyURL)), slog.Any("error", err))

			if m.rec != nil {
				m.rec.RecordProxyFailure(Redact(proxyURL))
			}

			continue
		}

		return m.pick(proxyURL), nil
	}

	return "", errs.ErrNoProxiesAvailable
}

func (m *Manager) pick(proxyURL string) string {
	if m.rec != nil {
		m.rec.RecordProxyPick(Redact(proxyURL))
	}

	return proxyURL
}

// checkHealth opens and closes a TCP connection to the proxy.
func (m *Manager) checkHealth(ctx context.Context, proxyURL string) error {
	addr, err := dialAddr(proxyURL)
	if err != nil {
		return err
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.healthTimeout)
	defer cancel()

	conn, err := m.dial(checkCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	return conn.Close()
}

// dialAddr returns host:port for a proxy URL, filling the scheme's default port.
func dialAddr(proxyURL string) (string, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return "", fmt.Errorf("parse proxy: %w", err)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "socks5", "socks5h":
			port = defaultSOCKSPort
		case "http":
			port = defaultHTTPPort
		case "https":
			port = defaultHTTPSPort
		default:
			return "", fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	return net.JoinHostPort(u.Hostname(), port), nil
}

// Redact strips credentials so the proxy can be logged or used as a metric label.
func Redact(proxyURL string) string {
	u, err := url.Parse(proxyURL)
	if err != nil || u.User == nil {
		return proxyURL
	}

	u.User = nil

	return u.String()
}

// Count returns the number of configured proxies.
func (m *Manager) Count() int {
	return len(m.proxies)
}
