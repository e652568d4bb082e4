// Package zap adapts a *zap.Logger to certsync.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/certsync"
	"go.uber.org/zap"
)

var _ certsync.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "certsync". A nil l logs nothing.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("certsync")}
}

func (z Logger) Debug(msg string, f certsync.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f certsync.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f certsync.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f certsync.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts by key so encoded lines are stable.
func fields(f certsync.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		switch v := f[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		case certsync.RequestKey:
			out = append(out, zap.String(k, string(v)))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
