// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"os"
	"runtime"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig configures the process logger.
type LogConfig struct {
	Level       string
	Development bool
	Caller      bool
	Stack       bool
	Encoding    string
	Output      string
}

func defaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Encoding: "console", Output: "stderr"}
}

func (config *LogConfig) bind(flags *pflag.FlagSet) {
	flags.StringVar(&config.Level, "log.level", config.Level, "the minimum log level to log")
	flags.BoolVar(&config.Development, "log.development", config.Development, "if true, set logging to development mode")
	flags.BoolVar(&config.Caller, "log.caller", config.Caller, "if true, log function filename and line number")
	flags.BoolVar(&config.Stack, "log.stack", config.Stack, "if true, log stack traces")
	flags.StringVar(&config.Encoding, "log.encoding", config.Encoding, "configures log encoding. can either be 'console' or 'json'")
	flags.StringVar(&config.Output, "log.output", config.Output, "can be stdout, stderr, or a filename")
}

// NewLogger creates the logger configured by the --log flags.
func NewLogger(name string) (*zap.Logger, error) {
	log, err := logConfig.Build()
	if err != nil {
		return nil, err
	}
	return log.Named(name), nil
}

// Build creates a logger from config.
func (config LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	levelEncoder := zapcore.CapitalColorLevelEncoder
	if runtime.GOOS == "windows" || config.Encoding == "json" {
		levelEncoder = zapcore.CapitalLevelEncoder
	}

	timeKey := "T"
	if os.Getenv(EnvPrefix+"_LOG_NOTIME") != "" {
		timeKey = ""
	}

	log, err := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       config.Development,
		DisableCaller:     !config.Caller,
		DisableStacktrace: !config.Stack,
		Encoding:          config.Encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        timeKey,
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    levelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{config.Output},
		ErrorOutputPaths: []string{config.Output},
	}.Build()
	return log, Error.Wrap(err)
}
