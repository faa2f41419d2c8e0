// Package jsonrpc serves JSON-RPC 2.0 (https://www.jsonrpc.org/specification)
// over HTTP on top of the endpoint package.
//
// # Bindings
//
// A Server dispatches every validated call through one Binding:
//
//	// Open: one handler for every method; the method name is args.Positional[0].
//	jsonrpc.HandleOpen(mux, "/hello", func(ctx context.Context, args jsonrpc.Args) (interface{}, error) {
//	    method, _ := args.String(0)
//	    return "Hello from " + method, nil
//	})
//
//	// Fixed: only "add" is accepted; anything else is CodeMethodNotFound.
//	jsonrpc.HandleFixed(mux, "/add", "add", addHandler)
//
//	// Object: methods of a long-lived value, looked up by name.
//	jsonrpc.Register(mux, "/math", jsonrpc.NewObject(&MathMethods{}))
//
// Object methods take one of these shapes:
//
//	func (m *MathMethods) Ping(ctx context.Context) (string, error)
//	func (m *MathMethods) Sum(ctx context.Context, args jsonrpc.Args) (int, error)
//	func (m *MathMethods) Add(ctx context.Context, p AddParams) (int, error)
//
// # Params
//
// Params may be absent, an array (positional) or an object (named). Args.Bind
// fills a struct from either form: positional values by field order, named
// values by json tag.
//
//	type AddParams struct {
//	    A int `json:"a"`
//	    B int `json:"b"`
//	}
//
// # Errors
//
// Return a *Fault to choose the code and message:
//
//	return nil, jsonrpc.NewFault(-32000, "quota exceeded")
//
// Any other error becomes CodeInternalError carrying the error's message.
// A panicking handler becomes CodeInternalError with message "Internal error";
// the panic is logged, not sent. Middleware sees it as that error. A result
// the codec cannot encode, such as NaN, is answered the same way.
//
// An Object answers an unknown method with CodeMethodNotFound. This is a wire
// change: older servers answered a lookup miss with CodeInternalError and
// message "Internal error". Clients that match on that can keep it with
// WithLegacyLookupFault:
//
//	jsonrpc.NewObject(&MathMethods{}, jsonrpc.WithLegacyLookupFault())
//
// Every JSON-RPC outcome is written with HTTP status 200. Only failures below
// the protocol (wrong HTTP method, unsupported Content-Type, oversized body,
// processor errors) produce HTTP error statuses.
//
// # Encodings
//
// Requests with Content-Type application/json (or none) are answered in JSON;
// application/cbor requests are answered in CBOR.
//
// Batch requests and notifications are not supported: an array body or a
// request without an id is rejected with CodeInvalidRequest.
package jsonrpc
