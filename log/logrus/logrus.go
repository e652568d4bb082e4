// Package logrus adapts logrus to certsync.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/certsync"
)

var _ certsync.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with component=certsync.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: l.WithField("component", "certsync")}
}

func (l Logger) Debug(msg string, f certsync.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f certsync.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f certsync.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f certsync.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f certsync.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			lf[logrus.ErrorKey] = err
			continue
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
