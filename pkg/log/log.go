// Package log wraps zap behind the handful of leveled helpers the server
// code actually uses.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

// Init builds the process logger. format is "json" or "console"; an empty
// outputPath keeps logs on stdout only.
func Init(level, format, outputPath string) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = logLevel
	zapConfig.OutputPaths = []string{"stdout"}
	if outputPath != "" {
		_ = os.MkdirAll(outputPath, os.ModePerm)
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, outputPath+"/app.log")
	}

	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar()
}

func ensure() *zap.SugaredLogger {
	if sugar == nil {
		logger, _ := zap.NewProduction()
		sugar = logger.Sugar()
	}
	return sugar
}

// Info logs at info level.
func Info(msg string) {
	ensure().Info(msg)
}

// Infof logs a formatted message at info level.
func Infof(template string, args ...interface{}) {
	ensure().Infof(template, args...)
}

// Infow logs key-value structured context at info level.
func Infow(msg string, keysAndValues ...interface{}) {
	ensure().Infow(msg, keysAndValues...)
}

// Warnf logs a formatted message at warn level.
func Warnf(template string, args ...interface{}) {
	ensure().Warnf(template, args...)
}

// Errorf logs a formatted message at error level.
func Errorf(template string, args ...interface{}) {
	ensure().Errorf(template, args...)
}

// Fatalf logs a formatted message and exits.
func Fatalf(template string, args ...interface{}) {
	ensure().Fatalf(template, args...)
}

// Sync flushes buffered log entries.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
