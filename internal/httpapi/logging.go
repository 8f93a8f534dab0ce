package httpapi

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// zlog is the structured logger of the HTTP layer. Defaults to the zerolog
// global logger.
var zlog = log.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// loggingLineWriter logs complete SSE lines of one response.
type loggingLineWriter struct {
	reqID string
	buf   []byte
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(lw.buf[:idx])
		if len(line) > 0 {
			zlog.Info().Str("request_id", lw.reqID).Str("frame", line).Msg("sse>")
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug", "trace":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// defaultLogLevel applies when a request carries no override.
var defaultLogLevel = LevelInfo

// SetRequestLogLevel sets the default per-request log level
// (off, error, info, debug).
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logStart logs the start of a completion request.
func logStart(r *http.Request, lvl LogLevel, model string, stream bool) {
	if lvl < LevelInfo {
		return
	}
	zlog.Info().
		Str("path", r.URL.Path).
		Str("model", model).
		Bool("stream", stream).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("completion start")
}

// logEnd logs the outcome of a completion request. Failures are logged from
// LevelError, everything else from LevelInfo.
func logEnd(r *http.Request, lvl LogLevel, status int, start time.Time, finish string, err error) {
	if lvl < LevelError || (lvl < LevelInfo && status < http.StatusInternalServerError) {
		return
	}
	ev := zlog.Info()
	if status >= http.StatusInternalServerError {
		ev = zlog.Error()
	}
	if finish != "" {
		ev = ev.Str("finish_reason", finish)
	}
	ev.Int("status", status).
		Dur("dur", time.Since(start)).
		Str("request_id", middleware.GetReqID(r.Context())).
		Err(err).
		Msg("completion end")
}
