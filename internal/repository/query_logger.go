package repository

import (
	"context"
	"log/slog"
	"time"
)

// queryLogger はクエリ単位の所要時間を記録する。
// 成功はDebug、失敗はWarnで出力する。
type queryLogger struct {
	logger *slog.Logger
}

func newQueryLogger(logger *slog.Logger) queryLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return queryLogger{logger: logger}
}

// observe はdeferで呼び出し、名前付き戻り値のerrを参照する。
func (q queryLogger) observe(ctx context.Context, op string, start time.Time, errp *error) {
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if errp != nil && *errp != nil {
		attrs = append(attrs, slog.String("error", (*errp).Error()))
		q.logger.LogAttrs(ctx, slog.LevelWarn, "query failed", attrs...)
		return
	}
	q.logger.LogAttrs(ctx, slog.LevelDebug, "query executed", attrs...)
}
