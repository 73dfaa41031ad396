package event

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type logSink struct{}

// LogSink writes events through the request logger. Failures log at warn, the rest at debug.
func LogSink() Sink {
	return logSink{}
}

func (logSink) Emit(ctx context.Context, ev Event) {
	logger := logutil.GetLogger(ctx)
	fields := []zap.Field{zap.String("event", string(ev.Kind))}
	if ev.Query != "" {
		fields = append(fields, zap.String("query", ev.Query))
	}
	if ev.Key != "" {
		fields = append(fields, zap.String("key", ev.Key))
	}
	if (ev.Kind == KindCacheHit || ev.Kind == KindCacheMiss) && ev.Distance >= 0 {
		fields = append(fields, zap.Float64("distance", ev.Distance))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	switch ev.Kind {
	case KindLookupError, KindStoreFailed, KindTaskDropped, KindTaskFailed:
		logger.Warn("cache event", append(fields, zap.Error(ev.Err))...)
	case KindEmbedRetry:
		logger.Info("cache event", append(fields, zap.Error(ev.Err))...)
	default:
		logger.Debug("cache event", fields...)
	}
}
