package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "debug",
	INFO:  "info",
	WARN:  "warn",
	ERROR: "error",
}

var zapLevels = map[Level]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
}

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(name string) Level {
	for lvl, n := range levelNames {
		if n == name {
			return lvl
		}
	}
	return INFO
}

// Logger module-scoped logger
type Logger struct {
	module string
}

var (
	mu          sync.RWMutex
	base        *zap.SugaredLogger
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init builds the shared zap logger. Production uses JSON output, anything
// else a coloured console encoder.
func Init(level string, env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}
	SetGlobalLevel(ParseLevel(level))
	cfg.Level = atomicLevel

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return err
	}

	mu.Lock()
	base = l.Sugar()
	mu.Unlock()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// SetGlobalLevel sets the level for every module logger
func SetGlobalLevel(level Level) {
	atomicLevel.SetLevel(zapLevels[level])
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = atomicLevel
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zl, err := cfg.Build(zap.AddCallerSkip(2))
		if err != nil {
			zl = zap.NewNop()
		}
		base = zl.Sugar()
	}
	return base
}

// New creates a logger for the given module
func New(module string) *Logger {
	return &Logger{module: module}
}

func (l *Logger) log(level Level, format string, args ...any) {
	s := sugar().Named(l.module)
	switch level {
	case DEBUG:
		s.Debugf(format, args...)
	case INFO:
		s.Infof(format, args...)
	case WARN:
		s.Warnf(format, args...)
	default:
		s.Errorf(format, args...)
	}
}

// Debug debug log
func (l *Logger) Debug(format string, args ...any) {
	l.log(DEBUG, format, args...)
}

// Info info log
func (l *Logger) Info(format string, args ...any) {
	l.log(INFO, format, args...)
}

// Warn warning log
func (l *Logger) Warn(format string, args ...any) {
	l.log(WARN, format, args...)
}

// Error error log
func (l *Logger) Error(format string, args ...any) {
	l.log(ERROR, format, args...)
}

// WithError logs err at error level when non-nil
func (l *Logger) WithError(err error) *Logger {
	if err != nil {
		l.Error("error: %v", err)
	}
	return l
}
