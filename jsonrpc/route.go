package jsonrpc

import "net/http"

// Register serves b on path as a POST-only route of mux and returns the
// Server it created. Other methods on path get 405 from the mux.
func Register(mux *http.ServeMux, path string, b Binding, opts ...Option) *Server {
	s := NewServer(b, opts...)
	mux.Handle(http.MethodPost+" "+path, s.Handler())
	return s
}

// HandleOpen registers fn for open dispatch on path.
func HandleOpen(mux *http.ServeMux, path string, fn HandlerFunc, opts ...Option) *Server {
	return Register(mux, path, Open(fn), opts...)
}

// HandleFixed registers fn for method on path.
func HandleFixed(mux *http.ServeMux, path, method string, fn HandlerFunc, opts ...Option) *Server {
	return Register(mux, path, Fixed(method, fn), opts...)
}
