// Package zap adapts a *zap.Logger to segcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/segcache"
)

var _ segcache.Logger = Logger{}

// Logger writes segcache events to L. Error values become zap.NamedError so
// encoders render them as strings.
type Logger struct{ L *zap.Logger }

// New names the logger "segcache". A nil l yields a no-op logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("segcache")}
}

func (z Logger) Debug(msg string, f segcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f segcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f segcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f segcache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f segcache.Fields) []zap.Field {
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
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
