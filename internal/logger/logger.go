package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"TrinoEventPump/internal/config"
)

// InitZap инициализирует zap-логгер:
// - в консоль выводятся все сообщения (Debug+);
// - в файл — только ошибки (Error+);
// - при EnableSentry отправляет Error+ в Sentry.
func InitZap(cfg *config.LoggingConfig) (*zap.Logger, error) {
	return InitZapTo(cfg, zapcore.AddSync(os.Stdout))
}

// InitZapTo — то же, что InitZap, но консольный вывод идёт в console.
func InitZapTo(cfg *config.LoggingConfig, console zapcore.WriteSyncer) (*zap.Logger, error) {
	if cfg.LogFile != "" {
		dir := filepath.Dir(cfg.LogFile)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir %s: %w", dir, err)
			}
		}
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleLevel := zapcore.DebugLevel
	fileLevel := zapcore.ErrorLevel

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			console,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= consoleLevel }),
		),
	}
	// файловое ядро — только если указан путь
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", cfg.LogFile, err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(f),
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= fileLevel }),
		))
	}

	logger := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(fileLevel),
	)

	if cfg.EnableSentry && cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			fmt.Fprintf(os.Stderr, "Sentry init failed: %v\n", err)
		} else {
			logger = logger.WithOptions(zap.Hooks(sentryHook))
		}
	}
	return logger, nil
}

// sentryHook отправляет Error+ в Sentry с именем логгера в тегах
func sentryHook(entry zapcore.Entry) error {
	if entry.Level < zapcore.ErrorLevel {
		return nil
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		if entry.LoggerName != "" {
			scope.SetTag("logger", entry.LoggerName)
		}
		sentry.CaptureMessage(fmt.Sprintf("%s:%d %s", entry.Caller.File, entry.Caller.Line, entry.Message))
	})
	return nil
}

// Flush дожидается отправки событий в Sentry и сбрасывает буферы логгера.
func Flush(lg *zap.Logger) {
	sentry.Flush(2 * time.Second)
	_ = lg.Sync()
}
