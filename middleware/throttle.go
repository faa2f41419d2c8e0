package middleware

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/mnehpets/rpcserve/endpoint"
)

// ThrottleProcessor rejects requests with HTTP 429 once the shared token
// bucket is empty. It runs before the body is read, so a throttled request
// never reaches the JSON-RPC layer.
type ThrottleProcessor struct {
	limiter    *rate.Limiter
	retryAfter time.Duration
}

// Throttle returns a processor admitting r requests per second with bursts
// up to burst.
func Throttle(r float64, burst int) *ThrottleProcessor {
	retry := time.Second
	if r > 0 {
		retry = time.Duration(float64(time.Second) / r)
	}
	return &ThrottleProcessor{
		limiter:    rate.NewLimiter(rate.Limit(r), burst),
		retryAfter: retry,
	}
}

// Process implements endpoint.Processor.
func (p *ThrottleProcessor) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	if !p.limiter.Allow() {
		secs := int(p.retryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		return endpoint.Error(http.StatusTooManyRequests, "too many requests", nil)
	}
	return next(w, r)
}
