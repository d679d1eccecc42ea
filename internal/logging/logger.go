// Package logging provides the structured logger used across the
// scrape-and-check pipeline, modeled on ProxyHawk's internal/logging package.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with pipeline-specific helper methods so call
// sites log consistent fields instead of ad hoc key/value pairs.
type Logger struct {
	*slog.Logger
}

// Level mirrors slog's levels without leaking the slog import at call sites.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config configures a new Logger.
type Config struct {
	Level  Level
	Format string // "json" or "text"
	Output io.Writer
}

// New creates a structured logger per Config.
func New(config Config) *Logger {
	var level slog.Level
	switch config.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a logger with sensible defaults (text, info, stderr).
func Default() *Logger {
	return New(Config{Level: LevelInfo, Format: "text", Output: os.Stderr})
}

func (l *Logger) withSource(source string) *Logger {
	return &Logger{Logger: l.With("source", source)}
}

func (l *Logger) withProxy(proxy string) *Logger {
	return &Logger{Logger: l.With("proxy", proxy)}
}

// SourceFailed logs a non-fatal per-source scrape failure (§4.5).
func (l *Logger) SourceFailed(source string, err error) {
	l.withSource(source).Warn("source fetch or decode failed", "error", err)
}

// SourceEmpty logs a source that yielded zero regex matches (§7 ParseEmpty).
func (l *Logger) SourceEmpty(source string) {
	l.withSource(source).Warn("source produced no proxy matches")
}

// SourceTooLarge logs a source skipped for exceeding the match cap.
func (l *Logger) SourceTooLarge(source string, matches, cap int) {
	l.withSource(source).Warn("source skipped: too many matches", "matches", matches, "cap", cap)
}

// ScrapeComplete logs the outcome of the scraper stage.
func (l *Logger) ScrapeComplete(sources, proxies int) {
	l.Info("scrape stage complete", "sources", sources, "proxies_discovered", proxies)
}

// BaselineUnavailable logs a check-website classification failure (§4.4).
func (l *Logger) BaselineUnavailable(checkWebsite string, err error) {
	l.Warn("check_website could not be classified, anonymity and geolocation disabled",
		"check_website", checkWebsite, "error", err)
}

// BaselineClassified logs a successful check-website classification.
func (l *Logger) BaselineClassified(checkWebsite, kind, realIP string) {
	l.Info("check_website classified", "check_website", checkWebsite, "type", kind, "real_ip", realIP)
}

// ProxyEvicted logs a proxy removed from storage after a failed check.
func (l *Logger) ProxyEvicted(proxy string, err error) {
	l.withProxy(proxy).Debug("proxy check failed, evicting", "error", err)
}

// ProxyChecked logs a successful proxy check.
func (l *Logger) ProxyChecked(proxy string, seconds float64, anonymous bool) {
	l.withProxy(proxy).Info("proxy check succeeded", "seconds", seconds, "anonymous", anonymous)
}

// FdExhausted logs the one-time operator-facing error-level message for errno 24 (§4.6/§7).
func (l *Logger) FdExhausted() {
	l.Error("too many open files; lower max_connections")
}

// CheckComplete logs the outcome of the checker stage.
func (l *Logger) CheckComplete(checked, evicted int) {
	l.Info("check stage complete", "checked", checked, "evicted", evicted)
}

// OutputWritten logs a successfully written output tree or file.
func (l *Logger) OutputWritten(path string) {
	l.Info("output written", "path", path)
}

// MaxConnectionsClamped logs the §8 resource-sizing clamp warning.
func (l *Logger) MaxConnectionsClamped(requested, effective int) {
	l.Warn("max_connections exceeds OS-supported ceiling, clamping",
		"requested", requested, "effective", effective)
}
