package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/unkn0wn-root/segcache"
)

var _ segcache.Logger = Logger{}

// Logger adapts *slog.Logger. When Group is set, fields are nested under it.
type Logger struct {
	L     *stdslog.Logger
	Group string
}

func (s Logger) Debug(msg string, f segcache.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f segcache.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f segcache.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f segcache.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(level stdslog.Level, msg string, f segcache.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, level) {
		return
	}
	as := attrs(f)
	if s.Group != "" && len(as) > 0 {
		s.L.LogAttrs(ctx, level, msg, stdslog.Attr{Key: s.Group, Value: stdslog.GroupValue(as...)})
		return
	}
	s.L.LogAttrs(ctx, level, msg, as...)
}

func attrs(f segcache.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
