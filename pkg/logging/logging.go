// Package logging constructs the process-wide structured logger. No
// teacher file does this (amantus-ai-vibetunnel logs through the bare
// standard library), but go.uber.org/zap is already in the teacher's
// module graph as an indirect dependency of golang.ngrok.com/ngrok; this
// package promotes it to a direct, exercised dependency rather than
// leaving it as unused transitive weight.
package logging

import (
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger. debug switches to a human-readable
// console encoder at debug level; otherwise JSON at info level, matching
// the two modes a host daemon and an interactive client both need.
func New(debug bool) *zap.SugaredLogger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		// Logger construction failing means something is deeply wrong
		// with the environment (bad encoder config, unwritable stderr);
		// fall back to a bare no-op logger rather than panic on startup.
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

// CloseAll flushes every logger's buffered entries, aggregating any sync
// errors (stderr's Sync commonly errors on non-tty fds; that's expected
// and not surfaced as a startup/shutdown failure).
func CloseAll(loggers ...*zap.SugaredLogger) error {
	var err error
	for _, l := range loggers {
		if l == nil {
			continue
		}
		if syncErr := l.Sync(); syncErr != nil && !isIgnorableSyncErr(syncErr) {
			err = multierr.Append(err, syncErr)
		}
	}
	return err
}

func isIgnorableSyncErr(err error) bool {
	return err == os.ErrInvalid || err.Error() == "sync /dev/stderr: invalid argument" || err.Error() == "sync /dev/stderr: inappropriate ioctl for device"
}
