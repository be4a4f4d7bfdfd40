package aecho

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Logger handles structured logging for the engine.
type Logger interface {
	Print(v ...any)                 // Info level
	Printf(format string, v ...any) // Info level formatted
	Infof(format string, v ...any)  // Info level with formatting
	Warnf(format string, v ...any)  // Warning level
	Errorf(format string, v ...any) // Error level
}

// NoopLogger provides a default no-op logger.
type NoopLogger struct{}

func (l *NoopLogger) Print(_ ...any)            {}
func (l *NoopLogger) Printf(_ string, _ ...any) {}
func (l *NoopLogger) Infof(_ string, _ ...any)  {}
func (l *NoopLogger) Warnf(_ string, _ ...any)  {}
func (l *NoopLogger) Errorf(_ string, _ ...any) {}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps l for use as the engine's event sink.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

func (z *ZerologLogger) Print(v ...any) {
	z.l.Info().Msg(fmt.Sprint(v...))
}

func (z *ZerologLogger) Printf(format string, v ...any) {
	z.l.Info().Msgf(format, v...)
}

func (z *ZerologLogger) Infof(format string, v ...any) {
	z.l.Info().Msgf(format, v...)
}

func (z *ZerologLogger) Warnf(format string, v ...any) {
	z.l.Warn().Msgf(format, v...)
}

func (z *ZerologLogger) Errorf(format string, v ...any) {
	z.l.Error().Msgf(format, v...)
}
