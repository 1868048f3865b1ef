package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs operation start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, op *Op, next Handler) error {
		logger.Debug("operation started",
			slog.String("op", op.Name),
			slog.String("tenant_id", op.TenantID.String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("operation failed",
				slog.String("op", op.Name),
				slog.String("tenant_id", op.TenantID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("operation completed",
				slog.String("op", op.Name),
				slog.String("tenant_id", op.TenantID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
