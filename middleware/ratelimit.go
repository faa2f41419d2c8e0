package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"go.uber.org/zap"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// CodeRateLimited is the fault code for calls rejected by RateLimit.
const CodeRateLimited = -32029

// RateLimitOption configures RateLimit.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc func(ctx context.Context, call *jsonrpc.Call) string
	logger  *zap.Logger
}

// WithRateLimitKeyFunc sets how calls are grouped into buckets. The default
// puts every call in one global bucket.
func WithRateLimitKeyFunc(fn func(ctx context.Context, call *jsonrpc.Call) string) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.keyFunc = fn
	}
}

// WithRateLimitLogger logs rejected calls at warn level.
func WithRateLimitLogger(l *zap.Logger) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.logger = l
	}
}

// RateLimit returns middleware that admits rate calls per second per key,
// with bursts up to burst. Rejected calls fail with CodeRateLimited.
func RateLimit(rate int, burst int, opts ...RateLimitOption) jsonrpc.Middleware {
	cfg := &rateLimitConfig{
		keyFunc: func(context.Context, *jsonrpc.Call) string { return "global" },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next jsonrpc.Invoker) jsonrpc.Invoker {
		return func(ctx context.Context, call *jsonrpc.Call) (interface{}, error) {
			key := cfg.keyFunc(ctx, call)
			if !limiter.Allow(ctx, key) {
				cfg.logger.Warn("rate limit exceeded",
					zap.String("method", call.Method),
					zap.String("key", key),
				)
				return nil, jsonrpc.NewFault(CodeRateLimited, "rate limit exceeded")
			}
			return next(ctx, call)
		}
	}
}

// RateLimitByMethod is RateLimit with one bucket per method name.
func RateLimitByMethod(rate int, burst int, opts ...RateLimitOption) jsonrpc.Middleware {
	allOpts := append([]RateLimitOption{
		WithRateLimitKeyFunc(func(_ context.Context, call *jsonrpc.Call) string {
			return call.Method
		}),
	}, opts...)
	return RateLimit(rate, burst, allOpts...)
}
