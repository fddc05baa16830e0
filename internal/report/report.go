// Package report accumulates the ordered, human-readable processing log that
// is returned to the webhook caller, mirroring every line to a structured
// logger. It is the explicit logging capability handed to the pipeline
// components; there is no process-wide fallback logger.
package report

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Log collects caller-visible lines for one webhook delivery.
type Log struct {
	logger zerolog.Logger
	lines  []string
}

// New returns a Log mirroring to the given delivery-scoped logger.
func New(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

// Infof records a caller-visible line at info level.
func (l *Log) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Info().Msg(msg)
	l.lines = append(l.lines, msg)
}

// Errorf records a caller-visible line at error level.
func (l *Log) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Error().Msg(msg)
	l.lines = append(l.lines, msg)
}

// Debugf logs at debug level only; debug detail (such as subprocess output)
// is not returned to the webhook caller.
func (l *Log) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

// Lines returns the accumulated caller-visible lines, never nil.
func (l *Log) Lines() []string {
	if l.lines == nil {
		return []string{}
	}
	return l.lines
}
