// Package endpoint is the HTTP layer under rpcserve's transports.
//
// An EndpointHandler serves one typed EndpointFunc. For each request it runs
// the Processors in order, decodes the request into the func's params struct
// with Unmarshal, calls the func, and lets the returned Renderer write the
// response. Any error along the way becomes a plain HTTP error response whose
// status comes from an EndpointError, or 500.
package endpoint

import (
	"errors"
	"io"
	"net/http"
)

// EndpointError carries an HTTP status for failures below the JSON-RPC
// layer: wrong method, unsupported media type, oversized body, throttling.
// JSON-RPC faults are never EndpointErrors; they travel in a 200 body.
type EndpointError struct {
	Status  int
	Message string // sent as the response body; StatusText(Status) if empty
	Cause   error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "endpoint: <nil>"
	}
	msg := e.text()
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// text is the client-visible body.
func (e *EndpointError) text() string {
	if e.Message != "" {
		return e.Message
	}
	if t := http.StatusText(e.Status); t != "" {
		return t
	}
	return "unknown error"
}

// Error returns an EndpointError for status. If err already wraps an
// EndpointError, err is returned unchanged so the innermost status wins.
func Error(status int, message string, err error) error {
	return newEndpointError(status, message, err)
}

func newEndpointError(status int, message string, err error) error {
	var existing *EndpointError
	if errors.As(err, &existing) {
		return err
	}
	return &EndpointError{Status: status, Message: message, Cause: err}
}

// Renderer writes the whole response: headers, status and body.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request) error

func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// NextFunc continues a processor chain.
type NextFunc = func(w http.ResponseWriter, r *http.Request) error

// Processor runs ahead of the endpoint. It either calls next, possibly with
// a replaced writer or request, or returns an error to stop the request.
// It may set response headers but must not write the status or body.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	return f(w, r, next)
}

// EndpointFunc handles a request whose params have been decoded into P.
type EndpointFunc[P any] func(w http.ResponseWriter, r *http.Request, params P) (Renderer, error)

// EndpointHandler serves an EndpointFunc behind its Processors.
type EndpointHandler[P any] struct {
	Endpoint   EndpointFunc[P]
	Processors []Processor
}

// Handler returns an EndpointHandler for fn. P is inferred from fn.
func Handler[P any](fn EndpointFunc[P], processors ...Processor) *EndpointHandler[P] {
	return &EndpointHandler[P]{Endpoint: fn, Processors: processors}
}

// HandleFunc is Handler as an http.HandlerFunc.
func HandleFunc[P any](fn EndpointFunc[P], processors ...Processor) http.HandlerFunc {
	return Handler(fn, processors...).ServeHTTP
}

func (h *EndpointHandler[P]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.chain()(w, r); err != nil {
		writeError(w, err)
	}
}

// chain wraps serve in the processors, first processor outermost.
func (h *EndpointHandler[P]) chain() NextFunc {
	next := h.serve
	for i := len(h.Processors) - 1; i >= 0; i-- {
		p, inner := h.Processors[i], next
		if p == nil {
			return func(http.ResponseWriter, *http.Request) error {
				return errors.New("endpoint: nil processor")
			}
		}
		next = func(w http.ResponseWriter, r *http.Request) error {
			return p.Process(w, r, inner)
		}
	}
	return next
}

func (h *EndpointHandler[P]) serve(w http.ResponseWriter, r *http.Request) error {
	if h.Endpoint == nil {
		return errors.New("endpoint: nil EndpointFunc")
	}
	var params P
	if err := Unmarshal(r, &params); err != nil {
		return err
	}
	renderer, err := h.Endpoint(w, r, params)
	if err != nil {
		return err
	}
	if renderer == nil {
		return errors.New("endpoint: nil renderer")
	}
	if c, ok := renderer.(io.Closer); ok {
		defer c.Close()
	}
	return renderer.Render(w, r)
}

// writeError answers with the status and message of the outermost
// EndpointError in err, or 500 and err's text.
func writeError(w http.ResponseWriter, err error) {
	status, body := http.StatusInternalServerError, err.Error()
	var ee *EndpointError
	if errors.As(err, &ee) && ee != nil {
		if ee.Status >= 100 {
			status = ee.Status
		}
		body = ee.text()
	}
	http.Error(w, body, status)
}
