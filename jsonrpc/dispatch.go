package jsonrpc

import "context"

// HandlerFunc is an application handler. A returned error is folded into
// the response with AsFault.
type HandlerFunc func(ctx context.Context, args Args) (interface{}, error)

// Binding decides how a validated call reaches application code.
type Binding interface {
	Dispatch(ctx context.Context, call *Call) (interface{}, error)
}

// BindingFunc adapts a function to a Binding.
type BindingFunc func(ctx context.Context, call *Call) (interface{}, error)

func (f BindingFunc) Dispatch(ctx context.Context, call *Call) (interface{}, error) {
	return f(ctx, call)
}

// Invoker is one step of the call middleware chain.
type Invoker func(ctx context.Context, call *Call) (interface{}, error)

// Middleware wraps an Invoker. It runs only for calls that passed validation.
type Middleware func(next Invoker) Invoker

// Chain composes middleware so that Chain(m1, m2)(h) runs m1, then m2, then h.
func Chain(middlewares ...Middleware) Middleware {
	return func(final Invoker) Invoker {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] != nil {
				final = middlewares[i](final)
			}
		}
		return final
	}
}

// Open binds one handler to every method name. The method name is passed as
// the first positional arg, ahead of any positional params; named params are
// passed through unchanged.
func Open(fn HandlerFunc) Binding {
	return BindingFunc(func(ctx context.Context, call *Call) (interface{}, error) {
		return fn(ctx, call.Args.Prepend(call.Method))
	})
}

// Fixed binds a handler to a single method name. Calls naming any other
// method fail with CodeMethodNotFound before fn runs.
func Fixed(method string, fn HandlerFunc) Binding {
	return BindingFunc(func(ctx context.Context, call *Call) (interface{}, error) {
		if call.Method != method {
			return nil, NewMethodNotFound()
		}
		return fn(ctx, call.Args)
	})
}
