package log

import (
	pkglog "github.com/spoolworks/crashship/pkg/log"

	"github.com/spoolworks/crashship/internal/ports"
)

// Bridge adapts a public pkg/log.Logger to the internal ports.Logger, so
// embedders can supply any logger through the facade options.
type Bridge struct {
	logger pkglog.Logger
}

// NewBridge wraps a pkg/log.Logger as a ports.Logger.
func NewBridge(logger pkglog.Logger) *Bridge {
	return &Bridge{logger: logger}
}

// Debug forwards a debug-level message.
func (b *Bridge) Debug(msg string, fields ...ports.Field) {
	b.logger.Debug(msg, convert(fields)...)
}

// Info forwards an info-level message.
func (b *Bridge) Info(msg string, fields ...ports.Field) {
	b.logger.Info(msg, convert(fields)...)
}

// Warn forwards a warn-level message.
func (b *Bridge) Warn(msg string, fields ...ports.Field) {
	b.logger.Warn(msg, convert(fields)...)
}

// Error forwards an error-level message.
func (b *Bridge) Error(msg string, fields ...ports.Field) {
	b.logger.Error(msg, convert(fields)...)
}

func convert(fields []ports.Field) []pkglog.Field {
	out := make([]pkglog.Field, len(fields))
	for i, f := range fields {
		out[i] = pkglog.Field{Key: f.Key, Value: f.Value}
	}
	return out
}
