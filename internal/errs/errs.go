// Package errs defines common error variables used across the application.
package errs

import "errors"

var (
	// ErrServiceClosed indicates that the manager is stopped and cannot accept new tasks.
	ErrServiceClosed = errors.New("service is closed")
	// ErrInvalidKind indicates that the requested media kind is neither audio nor video.
	ErrInvalidKind = errors.New("invalid media kind")
	// ErrEmptyURL indicates that a task was requested without a source URL.
	ErrEmptyURL = errors.New("url is empty")
)

// Task lifecycle errors.
var (
	// ErrExtraction indicates that a URL could not be resolved into media metadata.
	// It is surfaced directly to the requester and never retried.
	ErrExtraction = errors.New("extraction failed")
	// ErrDownload is the catch-all for failures during the download or post-processing phase.
	ErrDownload = errors.New("download failed")
	// ErrCancelledByUser indicates that the active task was stopped on request.
	// It is a terminal state of its own rather than a failure.
	ErrCancelledByUser = errors.New("cancelled by user")
	// ErrNoOutput indicates that yt-dlp finished without reporting an output file.
	ErrNoOutput = errors.New("no output file reported")
)

// Persistence errors.
var (
	// ErrIndexOutOfRange indicates that a history index does not exist.
	ErrIndexOutOfRange = errors.New("history index out of range")
)

// Dependency errors.
var (
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Proxy errors.
var (
	// ErrNoProxiesAvailable indicates that none of the configured proxies passed the health check.
	ErrNoProxiesAvailable = errors.New("no proxies available")
)
