package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the application logger.
type Options struct {
	Level       string // debug / info / warn / error
	Development bool   // console encoder with colors instead of JSON
	File        string // optional rotating log file
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

// New builds a zap logger writing to stdout and, when File is set, to a rotating file.
// The returned func flushes buffered entries and should be deferred by the caller.
func New(opt Options) (*zap.Logger, func()) {
	var lvl zapcore.Level
	if err := lvl.Set(opt.Level); err != nil {
		lvl = zapcore.InfoLevel
	}

	var enc zapcore.Encoder
	if opt.Development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.TimeKey = "ts"
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), lvl)}

	if opt.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    max(1, opt.MaxSizeMB),
			MaxBackups: max(0, opt.MaxBackups),
			MaxAge:     max(0, opt.MaxAgeDays),
			Compress:   true,
		}
		// File output is always JSON so it can be shipped as-is.
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(rotator), lvl))
	}

	opts := []zap.Option{zap.AddCaller()}
	if opt.Development {
		opts = append(opts, zap.Development())
	}
	l := zap.New(zapcore.NewTee(cores...), opts...)
	return l, func() { _ = l.Sync() }
}
