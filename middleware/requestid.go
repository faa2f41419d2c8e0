package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestID returns middleware that puts a random UUID into the context of
// each call. An ID already present in the context is kept.
func RequestID() jsonrpc.Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator is RequestID with a custom ID source.
func RequestIDWithGenerator(generator func() string) jsonrpc.Middleware {
	return func(next jsonrpc.Invoker) jsonrpc.Invoker {
		return func(ctx context.Context, call *jsonrpc.Call) (interface{}, error) {
			if RequestIDFromContext(ctx) != "" {
				return next(ctx, call)
			}
			return next(ContextWithRequestID(ctx, generator()), call)
		}
	}
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithRequestID returns a copy of ctx carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
