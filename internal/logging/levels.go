package logging

import (
	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. The supervisor's per-request trace entries
// are logged at Debug, so Trace is left for provider wire payloads.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a string into a zapcore.Level, supporting "trace".
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
