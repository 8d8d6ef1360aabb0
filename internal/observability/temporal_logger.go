package observability

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

var (
	_ log.Logger     = (*TemporalLogger)(nil)
	_ log.WithLogger = (*TemporalLogger)(nil)
)

// TemporalLogger adapts zerolog to the Temporal SDK log.Logger interface.
// The SDK attaches workflow and activity tags through With.
type TemporalLogger struct {
	logger zerolog.Logger
}

// NewTemporalLogger creates a TemporalLogger tagged with component=temporal-sdk.
func NewTemporalLogger(logger zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{logger: logger.With().Str("component", "temporal-sdk").Logger()}
}

// Debug logs a message at debug level.
func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.write(l.logger.Debug(), msg, keyvals)
}

// Info logs a message at info level.
func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.write(l.logger.Info(), msg, keyvals)
}

// Warn logs a message at warn level.
func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.write(l.logger.Warn(), msg, keyvals)
}

// Error logs a message at error level.
func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.write(l.logger.Error(), msg, keyvals)
}

// With returns a logger that adds keyvals to every entry.
func (l *TemporalLogger) With(keyvals ...interface{}) log.Logger {
	return &TemporalLogger{logger: l.logger.With().Fields(keyvalToMap(keyvals)).Logger()}
}

func (l *TemporalLogger) write(ev *zerolog.Event, msg string, keyvals []interface{}) {
	ev.Fields(keyvalToMap(keyvals)).Msg(msg)
}

// keyvalToMap converts alternating key-value pairs to a map for zerolog fields.
// A trailing key without a value is kept with a nil value.
func keyvalToMap(keyvals []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		if i+1 < len(keyvals) {
			m[key] = keyvals[i+1]
		} else {
			m[key] = nil
		}
	}
	return m
}
