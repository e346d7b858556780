package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// WithConn adds a connection identifier to the logger context.
func (l *Logger) WithConn(connID string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("conn_id", connID).Logger(),
	}
}

// WithFile adds file context to logger.
func (l *Logger) WithFile(path string, size int64) *Logger {
	return &Logger{
		logger: l.logger.With().
			Str("path", path).
			Int64("size", size).
			Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// AuthRejected logs a failed authentication attempt (§4.4, §7).
func (l *Logger) AuthRejected(remoteAddr, reason string) {
	l.logger.Warn().
		Str("remote_addr", remoteAddr).
		Str("reason", reason).
		Msg("auth rejected")
}

// UploadStarted logs the creation of an upload operation (§4.6).
func (l *Logger) UploadStarted(opID uint32, deviceName string, fileCount int32, totalBytes int64) {
	l.logger.Info().
		Uint32("op_id", opID).
		Str("device_name", deviceName).
		Int32("file_count", fileCount).
		Int64("total_bytes", totalBytes).
		Msg("upload operation started")
}

// PartWritten logs a single upload part write (debug-level, high volume).
func (l *Logger) PartWritten(fileID uint32, start, end int64) {
	l.logger.Debug().
		Uint32("file_id", fileID).
		Int64("start", start).
		Int64("end", end).
		Msg("upload part written")
}

// UploadFileCompleted logs a single file finishing, with its audit hash.
func (l *Logger) UploadFileCompleted(fileID uint32, savePath string, digest string) {
	l.logger.Info().
		Uint32("file_id", fileID).
		Str("save_path", savePath).
		Str("digest", digest).
		Msg("upload file completed")
}

// UploadOperationCompleted logs an operation's terminal counters.
func (l *Logger) UploadOperationCompleted(opID uint32, success, failure int32) {
	l.logger.Info().
		Uint32("op_id", opID).
		Int32("success_count", success).
		Int32("failure_count", failure).
		Msg("upload operation completed")
}

// RelayStatusChanged logs the relay client's connection transitions.
func (l *Logger) RelayStatusChanged(connected bool) {
	l.logger.Info().
		Bool("connected", connected).
		Msg("relay status changed")
}

// Notification records what would otherwise be a platform toast (§1,
// NotifierPort).
func (l *Logger) Notification(title, body, openURL string) {
	l.logger.Info().
		Str("title", title).
		Str("body", body).
		Str("open_url", openURL).
		Msg("notification")
}

// Helper function to get hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
