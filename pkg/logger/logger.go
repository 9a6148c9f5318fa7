// Package logger centralizes the slog setup shared by every other package:
// a scope/error attribute convention and an env-driven constructor picking
// level and handler format, plus a secondary access-log writer for HTTP
// request lines that don't belong in the structured application log.
package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
)

// Scope tags a logger/record with the subsystem emitting it, e.g.
// log.With(logger.Scope("server")).
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error attaches an error under a consistent "error" key so downstream log
// processors can filter on it regardless of call site.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger builds the process-wide *slog.Logger. Level comes from
// LOG_LEVEL (debug/info/warn|warning/error, case-insensitive, default
// info); handler format comes from GO_ENV (production uses JSON for log
// aggregators, anything else uses human-readable text).
func NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HTTPLogger appends one JSON line per HTTP request to a dedicated access
// log, separate from the structured application logger so request volume
// never drowns out application events.
type HTTPLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

type httpLogLine struct {
	Time      time.Time     `json:"time"`
	IP        string        `json:"ip"`
	Method    string        `json:"method"`
	URI       string        `json:"uri"`
	Status    int           `json:"status"`
	Latency   time.Duration `json:"latency_ns"`
	UserAgent string        `json:"user_agent"`
	RequestID string        `json:"request_id"`
}

// NewHTTPLogger opens (creating if needed) the access log file named by
// HTTP_LOG_PATH, defaulting to "http-access.log" in the working directory.
func NewHTTPLogger() (*HTTPLogger, error) {
	path := os.Getenv("HTTP_LOG_PATH")
	if path == "" {
		path = "http-access.log"
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &HTTPLogger{file: file, enc: json.NewEncoder(file)}, nil
}

// LogRequest writes one access-log line. Safe for concurrent use across
// request-handling goroutines.
func (l *HTTPLogger) LogRequest(ip, method, uri string, status int, latency time.Duration, userAgent, requestID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.enc.Encode(httpLogLine{
		Time: time.Now(), IP: ip, Method: method, URI: uri,
		Status: status, Latency: latency, UserAgent: userAgent, RequestID: requestID,
	})
}

// Close releases the underlying file handle.
func (l *HTTPLogger) Close() error {
	return l.file.Close()
}

// Module provides the process-wide *slog.Logger and *HTTPLogger to fx,
// closing the access log file on shutdown.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
	fx.Provide(func(lc fx.Lifecycle) (*HTTPLogger, error) {
		hl, err := NewHTTPLogger()
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(_ context.Context) error { return hl.Close() }})
		return hl, nil
	}),
)
