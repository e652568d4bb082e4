// Package slog adapts log/slog to certsync.Logger.
package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/unkn0wn-root/certsync"
)

var _ certsync.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New tags every record with component=certsync. A nil l uses slog.Default().
func New(l *stdslog.Logger) Logger {
	if l == nil {
		l = stdslog.Default()
	}
	return Logger{L: l.With("component", "certsync")}
}

func (s Logger) Debug(msg string, f certsync.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f certsync.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f certsync.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f certsync.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(lvl stdslog.Level, msg string, f certsync.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	s.L.LogAttrs(ctx, lvl, msg, attrs(f)...)
}

func attrs(f certsync.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		if rk, ok := v.(certsync.RequestKey); ok {
			out = append(out, stdslog.String(k, string(rk)))
			continue
		}
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
