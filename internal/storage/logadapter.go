package storage

import (
	"fmt"
	"strings"

	"flkv/internal/logging"
)

// backendLogger satisfies both badger.Logger and pebble.Logger. Backend info
// chatter is demoted to debug.
type backendLogger struct {
	logger *logging.Logger
}

func newBackendLogger(l *logging.Logger, backend string) *backendLogger {
	return &backendLogger{logger: l.WithField("backend", backend)}
}

func (b *backendLogger) Errorf(format string, args ...interface{}) {
	b.logger.Error(message(format, args...))
}

func (b *backendLogger) Warningf(format string, args ...interface{}) {
	b.logger.Warn(message(format, args...))
}

func (b *backendLogger) Infof(format string, args ...interface{}) {
	b.logger.Debug(message(format, args...))
}

func (b *backendLogger) Debugf(format string, args ...interface{}) {
	b.logger.Debug(message(format, args...))
}

// Fatalf is required by pebble for unrecoverable states.
func (b *backendLogger) Fatalf(format string, args ...interface{}) {
	msg := message(format, args...)
	b.logger.Error(msg, "fatal", true)
	panic(msg)
}

func message(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
