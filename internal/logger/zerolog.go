package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter writes component-tagged events through zerolog. Children made with
// With share the writer and level and add their own fields to every event.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	return &ZerologAdapter{
		logger: zerolog.New(writer).Level(level).With().Timestamp().Logger(),
	}
}

func NewConsoleLogger(level zerolog.Level) *ZerologAdapter {
	return NewZerolog(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}, level)
}

// With returns a child logger that adds fields to everything it logs, such as the run
// id for the duration of one pipeline run.
func (z *ZerologAdapter) With(fields map[string]interface{}) Logger {
	if len(fields) == 0 {
		return z
	}
	return &ZerologAdapter{logger: z.logger.With().Fields(fields).Logger()}
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	emit(z.logger.Debug(), component, fields).Msg(message)
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	emit(z.logger.Info(), component, fields).Msg(message)
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	emit(z.logger.Warn(), component, fields).Msg(message)
}

// Error logs err under the fixed message "operation failed"; the error text is in the
// error field.
func (z *ZerologAdapter) Error(component string, err error, fields map[string]interface{}) {
	emit(z.logger.Error(), component, fields).Err(err).Msg("operation failed")
}

// emit tags event with the component and fields. A disabled level yields a nil event,
// which zerolog treats as a no-op, so the field map is skipped entirely.
func emit(event *zerolog.Event, component string, fields map[string]interface{}) *zerolog.Event {
	if event == nil {
		return nil
	}
	return event.Str("component", component).Fields(fields)
}
