package jsonrpc

import (
	"context"
	"reflect"
	"sync"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	argsType    = reflect.TypeOf(Args{})
)

// Object dispatches calls to named members of a long-lived handler value.
// The receiver is referenced, never copied; if it is shared between
// concurrent requests it must be safe for concurrent use.
type Object struct {
	mu                sync.RWMutex
	methods           map[string]HandlerFunc
	legacyLookupFault bool
}

// ObjectOption configures an Object.
type ObjectOption func(*Object)

// WithLegacyLookupFault reports unknown methods as CodeInternalError with
// message "Internal error" instead of CodeMethodNotFound, for clients that
// depend on the older wire behavior.
func WithLegacyLookupFault() ObjectOption {
	return func(o *Object) {
		o.legacyLookupFault = true
	}
}

// NewObject creates an Object and registers the exported methods of
// receiver (which may be nil) that have one of these shapes:
//
//	func(ctx context.Context) (R, error)
//	func(ctx context.Context, args jsonrpc.Args) (R, error)
//	func(ctx context.Context, params P) (R, error)   // P a struct, filled by Args.Bind
//
// A method is registered under its Go name, or under the value of a
// `jsonrpc` tag on a blank field of P:
//
//	type HelloParams struct {
//	    _    struct{} `jsonrpc:"hello"`
//	    Name string   `json:"name"`
//	}
//
// Methods of any other shape are ignored.
func NewObject(receiver interface{}, opts ...ObjectOption) *Object {
	o := &Object{methods: make(map[string]HandlerFunc)}
	for _, opt := range opts {
		opt(o)
	}
	if receiver == nil {
		return o
	}

	val := reflect.ValueOf(receiver)
	typ := val.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}
		name, fn, ok := parseMethod(val, method)
		if !ok {
			continue
		}
		o.Handle(name, fn)
	}
	return o
}

// Handle registers fn under name. It panics if name is already taken.
func (o *Object) Handle(name string, fn HandlerFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.methods[name]; exists {
		panic("jsonrpc: method name collision: " + name)
	}
	o.methods[name] = fn
}

// Methods returns the number of registered methods.
func (o *Object) Methods() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.methods)
}

// Dispatch implements Binding.
func (o *Object) Dispatch(ctx context.Context, call *Call) (interface{}, error) {
	o.mu.RLock()
	fn, ok := o.methods[call.Method]
	o.mu.RUnlock()

	if !ok || fn == nil {
		if o.legacyLookupFault {
			return nil, NewInternalError()
		}
		return nil, NewMethodNotFound()
	}
	return fn(ctx, call.Args)
}

// parseMethod builds a HandlerFunc for method, or reports false when its
// signature is not one NewObject accepts.
func parseMethod(receiver reflect.Value, method reflect.Method) (string, HandlerFunc, bool) {
	ft := method.Func.Type()

	// In(0) is the receiver.
	if ft.NumIn() < 2 || ft.NumIn() > 3 || ft.In(1) != contextType {
		return "", nil, false
	}
	if ft.NumOut() != 2 || ft.Out(1) != errorType {
		return "", nil, false
	}

	name := method.Name
	fnVal := method.Func

	if ft.NumIn() == 2 {
		return name, func(ctx context.Context, _ Args) (interface{}, error) {
			return unpack(fnVal.Call([]reflect.Value{receiver, reflect.ValueOf(ctx)}))
		}, true
	}

	paramType := ft.In(2)
	if paramType == argsType {
		return name, func(ctx context.Context, args Args) (interface{}, error) {
			return unpack(fnVal.Call([]reflect.Value{receiver, reflect.ValueOf(ctx), reflect.ValueOf(args)}))
		}, true
	}
	if paramType.Kind() != reflect.Struct {
		return "", nil, false
	}
	for i := 0; i < paramType.NumField(); i++ {
		field := paramType.Field(i)
		if field.Name != "_" {
			continue
		}
		if tag := field.Tag.Get("jsonrpc"); tag != "" {
			name = tag
		}
	}
	return name, func(ctx context.Context, args Args) (interface{}, error) {
		param := reflect.New(paramType)
		if err := args.Bind(param.Interface()); err != nil {
			return nil, err
		}
		return unpack(fnVal.Call([]reflect.Value{receiver, reflect.ValueOf(ctx), param.Elem()}))
	}, true
}

func unpack(results []reflect.Value) (interface{}, error) {
	var err error
	if !results[1].IsNil() {
		err = results[1].Interface().(error)
	}
	return results[0].Interface(), err
}
