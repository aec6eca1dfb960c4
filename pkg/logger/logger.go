package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with back-office helpers
type Logger struct {
	*slog.Logger
}

// New builds a logger from LOG_LEVEL writing to stdout
func New() *Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter builds a logger at the given level. Gin debug mode gets the
// text handler, anything else gets JSON.
func NewWithWriter(w io.Writer, level string) *Logger {
	lvl := getLogLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

func (l *Logger) WithUsername(username string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("username", username))}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(fieldArgs(fields, 0)...)}
}

// LogHTTPRequest logs a finished request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", c.GetString("request_id")),
		slog.String("username", c.GetString("username")),
		slog.Int("size", c.Writer.Size()),
	)
}

func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("request_id", c.GetString("request_id")),
	)
}

// Booking lifecycle

func (l *Logger) LogBookingSaved(ctx context.Context, bookingID, code, eventID, requester string, units int, created bool) {
	msg := "Booking Updated"
	if created {
		msg = "Booking Created"
	}
	l.Logger.InfoContext(ctx, msg,
		slog.String("booking_id", bookingID),
		slog.String("code", code),
		slog.String("event_id", eventID),
		slog.String("requester", requester),
		slog.Int("requested_units", units),
	)
}

func (l *Logger) LogBookingRejected(ctx context.Context, eventID, reason string, units, available int) {
	l.Logger.InfoContext(ctx, "Booking Rejected",
		slog.String("event_id", eventID),
		slog.String("reason", reason),
		slog.Int("requested_units", units),
		slog.Int("available", available),
	)
}

func (l *Logger) LogBookingStatusChanged(ctx context.Context, bookingID, from, to, actor string) {
	l.Logger.InfoContext(ctx, "Booking Status Changed",
		slog.String("booking_id", bookingID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("actor", actor),
	)
}

func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx, "Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Logger.InfoContext(ctx, msg, fieldArgs(fields, 0)...)
}

func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := fieldArgs(fields, 1)
	args = append(args, slog.String("error", err.Error()))
	l.Logger.ErrorContext(ctx, msg, args...)
}

func (l *Logger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Logger.WarnContext(ctx, msg, fieldArgs(fields, 0)...)
}

func fieldArgs(fields map[string]interface{}, extra int) []interface{} {
	args := make([]interface{}, 0, len(fields)+extra)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return args
}

var defaultLogger = New()

// GetDefault returns the process-wide logger
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault replaces the process-wide logger
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
