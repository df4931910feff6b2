// Package logrus adapts a *logrus.Entry to heycache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/heyxyz/heycache"
)

var _ heycache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New wraps l, tagging entries with component=name when name is set.
func New(l *logrus.Logger, name string) LogrusLogger {
	e := logrus.NewEntry(l)
	if name != "" {
		e = e.WithField("component", name)
	}
	return LogrusLogger{E: e}
}

func (l LogrusLogger) Debug(msg string, f heycache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f heycache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f heycache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f heycache.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f heycache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		e = e.WithField(k, v)
	}
	return e
}
