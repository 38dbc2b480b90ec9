package log

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	sugar  *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	inited bool
)

// Init builds the global logger. format "json" selects the production
// encoder; anything else the console encoder. Calling Init again replaces
// the logger.
func Init(lvl, format string) error {
	parsed, err := ParseLevel(lvl)
	if err != nil {
		return err
	}

	var zcfg zap.Config
	if format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = level
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	// Skip the package-level helper so the caller shows the real call site.
	z, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	old := sugar
	sugar = z.Sugar()
	inited = true
	mu.Unlock()

	if old != nil {
		_ = old.Sync()
	}
	SetLevel(parsed)
	return nil
}

// ParseLevel accepts the level names used in config files, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return LevelInfo, nil
	case "DEBUG":
		return LevelDebug, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		level.SetLevel(zapcore.WarnLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

// Enabled reports whether messages at l would be written.
func Enabled(l Level) bool {
	switch l {
	case LevelDebug:
		return level.Enabled(zapcore.DebugLevel)
	case LevelWarn:
		return level.Enabled(zapcore.WarnLevel)
	case LevelError:
		return level.Enabled(zapcore.ErrorLevel)
	default:
		return level.Enabled(zapcore.InfoLevel)
	}
}

func Debug(msg string, kv ...any) {
	logger().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	logger().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	logger().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logger().Errorw(msg, extended...)
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		_ = s.Sync()
	}
}

// logger returns the global logger, building a console logger at INFO on
// first use when Init was never called.
func logger() *zap.SugaredLogger {
	mu.RLock()
	s, ok := sugar, inited
	mu.RUnlock()
	if ok {
		return s
	}
	if err := Init(string(LevelInfo), "console"); err != nil {
		return zap.NewNop().Sugar()
	}
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// SetLogger installs l as the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	inited = true
}
