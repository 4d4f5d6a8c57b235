package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iwvelando/espp-forecast/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json" // Default to JSON for production
	}

	var config zap.Config
	var encoder zapcore.Encoder
	switch format {
	case "console":
		config = zap.NewDevelopmentConfig()
		encoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	case "json":
		config = zap.NewProductionConfig()
		encoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile == "" {
		return config.Build()
	}

	// File output is rotated by lumberjack.
	if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
		}
	}
	if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
	} else {
		_ = file.Close()
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   loggingConfig.OutputFile,
		MaxSize:    loggingConfig.MaxSizeMB,
		MaxBackups: loggingConfig.MaxBackups,
		MaxAge:     loggingConfig.MaxAgeDays,
		Compress:   true,
	})
	core := zapcore.NewCore(encoder, writer, config.Level)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(writer)), nil
}
