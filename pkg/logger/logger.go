package logger

import (
	"fmt"
	"os"

	"vibetrust/config"

	"github.com/sirupsen/logrus"
)

// Logger is a thin key/value facade over logrus. The zero value logs through
// the logrus standard logger.
type Logger struct {
	entry *logrus.Entry
}

func NewLogger(cfg *config.Config) (*Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if cfg.LoggerMode.Prod {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: cfg.LoggerMode.Development})
	}

	level := logrus.InfoLevel
	if cfg.LoggerMode.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.LoggerMode.Level)
		if err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", cfg.LoggerMode.Level, err)
		}
		level = parsed
	} else if cfg.LoggerMode.Development {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	return &Logger{entry: logrus.NewEntry(l).WithField("env", cfg.Server.Environment)}, nil
}

func (l Logger) base() *logrus.Entry {
	if l.entry == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return l.entry
}

// With returns a child logger carrying the given key/value pairs on every line.
func (l Logger) With(keyvals ...any) Logger {
	return Logger{entry: l.base().WithFields(fields(keyvals))}
}

func (l Logger) Debug(msg string, keyvals ...any) {
	l.base().WithFields(fields(keyvals)).Debug(msg)
}

func (l Logger) Info(msg string, keyvals ...any) {
	l.base().WithFields(fields(keyvals)).Info(msg)
}

func (l Logger) Warn(msg string, keyvals ...any) {
	l.base().WithFields(fields(keyvals)).Warn(msg)
}

func (l Logger) Error(msg string, keyvals ...any) {
	l.base().WithFields(fields(keyvals)).Error(msg)
}

func (l Logger) Debugf(format string, args ...any) { l.base().Debugf(format, args...) }
func (l Logger) Infof(format string, args ...any)  { l.base().Infof(format, args...) }
func (l Logger) Warnf(format string, args ...any)  { l.base().Warnf(format, args...) }
func (l Logger) Errorf(format string, args ...any) { l.base().Errorf(format, args...) }

// Entry exposes the underlying logrus entry for middleware that needs it.
func (l Logger) Entry() *logrus.Entry { return l.base() }

func fields(keyvals []any) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2+1)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		if i+1 >= len(keyvals) {
			f[key] = "(MISSING)"
			break
		}
		v := keyvals[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		f[key] = v
	}
	return f
}
