package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tripshare/internal/metrics"
)

// LoggingInterceptor logs one line per RPC and records it in m. Client
// errors (connect codes) log at warn, anything else at error.
func LoggingInterceptor(m *metrics.Metrics) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			procedure := req.Spec().Procedure
			attrs := []any{
				"procedure", procedure,
				"user_id", GetUserID(ctx), // empty before auth
				"duration_ms", elapsed.Milliseconds(),
			}

			code := "ok"
			var connectErr *connect.Error
			switch {
			case err == nil:
				slog.Info("RPC ok", attrs...)
			case errors.As(err, &connectErr):
				code = connectErr.Code().String()
				slog.Warn("RPC error", append(attrs, "code", code, "error", connectErr.Message())...)
			default:
				code = connect.CodeUnknown.String()
				slog.Error("RPC error", append(attrs, "error", err)...)
			}
			m.ObserveRPC(procedure, code, elapsed.Seconds())

			return resp, err
		}
	}
}
