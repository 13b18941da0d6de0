// Package logging builds the zap logger used across the CLI. Logs always
// go to a file under .cmslens/logs so failures can be inspected after the
// fact; --verbose adds a console core at debug level.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New opens .cmslens/logs/cmslens.log under stateDir and returns the
// configured logger. The caller owns Sync on shutdown.
func New(stateDir string, verbose bool) (*zap.Logger, error) {
	logDir := filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(logDir, "cmslens.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(file),
		zap.InfoLevel,
	)

	cores := []zapcore.Core{fileCore}
	if verbose {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCore := zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.AddSync(os.Stderr),
			zap.DebugLevel,
		)
		cores = append(cores, consoleCore)
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// Nop returns a no-op logger for commands that run before the state
// directory exists.
func Nop() *zap.Logger {
	return zap.NewNop()
}
