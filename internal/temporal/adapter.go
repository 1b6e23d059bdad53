// Package temporal bridges the Temporal SDK logger interface to zap.
package temporal

import (
	"fmt"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// ZapAdapter implements Temporal's log.Logger on top of a zap logger so
// SDK output shares the process log format.
type ZapAdapter struct {
	logger *zap.Logger
}

var _ log.Logger = (*ZapAdapter)(nil)

func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{
		// Skip one frame so call sites inside the SDK are reported.
		logger: logger.WithOptions(zap.AddCallerSkip(1)),
	}
}

func (a *ZapAdapter) fields(keyvals []interface{}) []zap.Field {
	if len(keyvals)%2 != 0 {
		return []zap.Field{zap.Any("dangling-keyvals", keyvals)}
	}
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}
	return fields
}

func (a *ZapAdapter) Debug(msg string, keyvals ...interface{}) {
	a.logger.Debug(msg, a.fields(keyvals)...)
}

func (a *ZapAdapter) Info(msg string, keyvals ...interface{}) {
	a.logger.Info(msg, a.fields(keyvals)...)
}

func (a *ZapAdapter) Warn(msg string, keyvals ...interface{}) {
	a.logger.Warn(msg, a.fields(keyvals)...)
}

func (a *ZapAdapter) Error(msg string, keyvals ...interface{}) {
	a.logger.Error(msg, a.fields(keyvals)...)
}

func (a *ZapAdapter) With(keyvals ...interface{}) log.Logger {
	return &ZapAdapter{logger: a.logger.With(a.fields(keyvals)...)}
}
