package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log = zap.NewNop().Sugar()
)

// Init replaces the process logger. Level is one of debug, info, warn, error.
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set swaps in an existing zap logger (tests use zaptest/observer).
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l.Sugar()
}

func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Sync() {
	_ = L().Sync()
}
