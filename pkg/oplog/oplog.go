// Package oplog provides a scoped operation logger for the automation core.
//
// The crawler narrates every attempt, success, and failure it makes against the
// remote UI. A Logger wraps a zap.Logger and adds an indentation depth so that
// nested operations (open dialog -> find candidate -> dispatch click) read as a
// tree in console output. Scopes are explicit values, not shared global state:
// entering a scope returns a new child Logger and never mutates the parent.
package oplog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Status glyphs used as message prefixes.
const (
	glyphInfo    = "●"
	glyphSuccess = "✓"
	glyphWarning = "⚠"
	glyphError   = "✗"
	glyphStep    = "→"
	glyphDetail  = "├"
)

const indentUnit = "  "

// Logger is an immutable scoped logger. The zero value is not usable; construct
// one with New, NewDevelopment, or Nop.
type Logger struct {
	zl    *zap.Logger
	depth int
}

// New wraps an existing zap logger at depth zero.
func New(zl *zap.Logger) *Logger {
	return &Logger{zl: zl}
}

// NewDevelopment builds a console logger suitable for interactive runs.
func NewDevelopment() (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return New(zl), nil
}

// Nop returns a logger that discards everything. Used by tests and as a
// default when a component is constructed without an explicit logger.
func Nop() *Logger {
	return New(zap.NewNop())
}

// Scope logs the step title and returns a child logger one level deeper.
// The parent is unchanged; callers keep using it after the nested operation.
func (l *Logger) Scope(title string) *Logger {
	l.print(zapcore.InfoLevel, glyphStep, title)
	return &Logger{zl: l.zl, depth: l.depth + 1}
}

// With returns a logger at the same depth carrying additional structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zl: l.zl.With(fields...), depth: l.depth}
}

// Depth reports the current indentation level.
func (l *Logger) Depth() int {
	return l.depth
}

// Info logs a neutral progress message.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.print(zapcore.InfoLevel, glyphInfo, msg, fields...)
}

// Success logs a completed step.
func (l *Logger) Success(msg string, fields ...zap.Field) {
	l.print(zapcore.InfoLevel, glyphSuccess, msg, fields...)
}

// Warn logs a recoverable problem.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.print(zapcore.WarnLevel, glyphWarning, msg, fields...)
}

// Error logs a failure.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.print(zapcore.ErrorLevel, glyphError, msg, fields...)
}

// Step logs an action about to be taken without opening a scope.
func (l *Logger) Step(msg string, fields ...zap.Field) {
	l.print(zapcore.InfoLevel, glyphStep, msg, fields...)
}

// Detail logs low-value diagnostic output at debug level.
func (l *Logger) Detail(msg string, fields ...zap.Field) {
	l.print(zapcore.DebugLevel, glyphDetail, msg, fields...)
}

// Zap exposes the underlying zap logger for components that need raw access.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

func (l *Logger) print(level zapcore.Level, glyph, msg string, fields ...zap.Field) {
	prefix := strings.Repeat(indentUnit, l.depth)
	if ce := l.zl.Check(level, prefix+glyph+" "+msg); ce != nil {
		ce.Write(fields...)
	}
}
