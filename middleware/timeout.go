package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// CodeTimeout is the fault code for calls that exceed their Timeout.
const CodeTimeout = -32030

// Timeout returns middleware that gives each call a deadline of d. A call
// still running at the deadline is answered with CodeTimeout; its context is
// cancelled and its eventual result discarded. If the caller's context ends
// first, the call fails with that context's error instead.
//
// A panic further down the chain is re-raised on the calling goroutine so that the
// server's recovery still applies.
func Timeout(d time.Duration) jsonrpc.Middleware {
	return func(next jsonrpc.Invoker) jsonrpc.Invoker {
		return func(ctx context.Context, call *jsonrpc.Call) (interface{}, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type outcome struct {
				result interface{}
				err    error
				panic  interface{}
			}
			done := make(chan outcome, 1)
			go func() {
				var o outcome
				defer func() {
					if r := recover(); r != nil {
						o.panic = r
					}
					done <- o
				}()
				o.result, o.err = next(ctx, call)
			}()

			select {
			case o := <-done:
				if o.panic != nil {
					panic(o.panic)
				}
				return o.result, o.err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, jsonrpc.NewFault(CodeTimeout, "request timed out")
				}
				return nil, jsonrpc.AsFault(ctx.Err())
			}
		}
	}
}
