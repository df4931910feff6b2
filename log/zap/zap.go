// Package zap adapts a *zap.Logger to heycache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heyxyz/heycache"
)

var _ heycache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// Named returns an adapter whose entries carry component=name.
func Named(l *zap.Logger, name string) ZapLogger {
	return ZapLogger{L: l.With(zap.String("component", name))}
}

func (z ZapLogger) Debug(msg string, f heycache.Fields) { z.log(zapcore.DebugLevel, msg, f) }
func (z ZapLogger) Info(msg string, f heycache.Fields)  { z.log(zapcore.InfoLevel, msg, f) }
func (z ZapLogger) Warn(msg string, f heycache.Fields)  { z.log(zapcore.WarnLevel, msg, f) }
func (z ZapLogger) Error(msg string, f heycache.Fields) { z.log(zapcore.ErrorLevel, msg, f) }

func (z ZapLogger) log(lvl zapcore.Level, msg string, f heycache.Fields) {
	if ce := z.L.Check(lvl, msg); ce != nil {
		ce.Write(zf(f)...)
	}
}

// zf converts fields in key order; error values become zap.NamedError.
func zf(f heycache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	ks := make([]string, 0, len(f))
	for k := range f {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	out := make([]zap.Field, 0, len(f))
	for _, k := range ks {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
