package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// Logging returns middleware that logs one entry per call. Successful calls
// are logged at info level, failed calls at error level with the fault code.
func Logging(logger *zap.Logger) jsonrpc.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next jsonrpc.Invoker) jsonrpc.Invoker {
		return func(ctx context.Context, call *jsonrpc.Call) (interface{}, error) {
			start := time.Now()

			result, err := next(ctx, call)

			fields := []zap.Field{
				zap.String("method", call.Method),
				zap.Any("id", call.ID),
				zap.Duration("duration", time.Since(start)),
			}
			if requestID := RequestIDFromContext(ctx); requestID != "" {
				fields = append(fields, zap.String("request_id", requestID))
			}

			if err != nil {
				fields = append(fields, zap.Int("code", jsonrpc.AsFault(err).Code), zap.Error(err))
				logger.Error("call failed", fields...)
			} else {
				logger.Info("call completed", fields...)
			}
			return result, err
		}
	}
}
