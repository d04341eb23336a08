package obs

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerOnce sync.Once
	logger     *zap.Logger
)

// InitLogger builds the shared logger. Production mode emits JSON; anything
// else uses the human-readable development encoder. Safe to call more than
// once; only the first call wins.
func InitLogger(production bool) *zap.Logger {
	loggerOnce.Do(func() {
		var err error
		if production {
			logger, err = zap.NewProduction()
		} else {
			logger, err = zap.NewDevelopment()
		}
		if err != nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// Logger returns the shared logger, initializing a development logger if
// InitLogger was never called.
func Logger() *zap.Logger {
	return InitLogger(false)
}

// SetLogger swaps the shared logger and returns a restore func. Intended
// for tests that capture log output.
func SetLogger(l *zap.Logger) func() {
	loggerOnce.Do(func() {})
	prev := logger
	logger = l
	return func() { logger = prev }
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
