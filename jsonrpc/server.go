package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mnehpets/rpcserve/endpoint"
)

// Server runs the request pipeline for one Binding: decode, validate,
// dispatch, and build the response envelope. It holds no per-request state
// and may serve concurrent requests.
type Server struct {
	binding    Binding
	invoke     Invoker
	logger     *zap.Logger
	processors []endpoint.Processor
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	logger      *zap.Logger
	middlewares []Middleware
	processors  []endpoint.Processor
}

// WithLogger sets the logger used for handler failures and panics.
// The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMiddleware appends call middleware. Middleware runs in the order given.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *serverConfig) {
		c.middlewares = append(c.middlewares, mw...)
	}
}

// WithProcessors appends HTTP processors run by Handler before the body is
// decoded. Processor errors produce HTTP error responses, not JSON-RPC ones.
func WithProcessors(p ...endpoint.Processor) Option {
	return func(c *serverConfig) {
		c.processors = append(c.processors, p...)
	}
}

// NewServer creates a Server for b.
func NewServer(b Binding, opts ...Option) *Server {
	cfg := &serverConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	s := &Server{
		binding:    b,
		logger:     cfg.logger,
		processors: cfg.processors,
	}
	s.invoke = Chain(cfg.middlewares...)(s.recoverPanics(b.Dispatch))
	return s
}

// Handle decodes body with c and runs it through the pipeline. It always
// returns an envelope; an undecodable body yields CodeParseError.
func (s *Server) Handle(ctx context.Context, body []byte, c Codec) *Response {
	raw, err := c.Decode(body)
	if err != nil {
		s.logger.Debug("jsonrpc: parse error", zap.String("content_type", c.ContentType()), zap.Error(err))
		return NewErrorResponse(NullID, NewParseError())
	}
	return s.Serve(ctx, raw)
}

// Serve runs an already decoded request value through the pipeline.
func (s *Server) Serve(ctx context.Context, raw interface{}) *Response {
	call, fault := Validate(raw)
	if fault != nil {
		return NewErrorResponse(RequestID(raw), fault)
	}
	return s.call(ctx, call)
}

// call invokes the middleware chain and folds its outcome into an envelope.
// A panic anywhere in here, middleware included, still yields an envelope.
func (s *Server) call(ctx context.Context, call *Call) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("jsonrpc: middleware panic",
				zap.String("method", call.Method),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			resp = NewErrorResponse(call.ID, NewInternalError())
		}
	}()

	result, err := s.invoke(ctx, call)
	if err != nil {
		f := AsFault(err)
		if f.Code == CodeInternalError {
			s.logger.Warn("jsonrpc: call failed",
				zap.String("method", call.Method),
				zap.Any("id", call.ID),
				zap.Error(err),
			)
		}
		return NewErrorResponse(call.ID, f)
	}
	return NewResult(call.ID, result)
}

// recoverPanics sits innermost in the middleware chain, so middleware sees a
// panicking handler as an ordinary CodeInternalError failure.
func (s *Server) recoverPanics(next Invoker) Invoker {
	return func(ctx context.Context, call *Call) (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("jsonrpc: handler panic",
					zap.String("method", call.Method),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				result, err = nil, NewInternalError()
			}
		}()
		return next(ctx, call)
	}
}

// Encode serializes resp with c. When resp cannot be encoded, for example
// because its result holds NaN or a channel, the cause is logged and an
// internal error envelope with the same id is encoded instead.
func (s *Server) Encode(resp *Response, c Codec) []byte {
	var buf bytes.Buffer
	err := c.Encode(&buf, resp)
	if err == nil {
		return buf.Bytes()
	}
	s.logger.Error("jsonrpc: encode response failed",
		zap.String("content_type", c.ContentType()),
		zap.Any("id", resp.ID),
		zap.Error(err),
	)
	buf.Reset()
	if err := c.Encode(&buf, NewErrorResponse(resp.ID, NewInternalError())); err != nil {
		buf.Reset()
		_ = c.Encode(&buf, NewErrorResponse(NullID, NewInternalError()))
	}
	return buf.Bytes()
}

// rpcParams captures the raw request body. Decoding is deferred to the
// codec because a malformed body must still produce a JSON-RPC response.
type rpcParams struct {
	ContentType string `header:"Content-Type"`
	Body        []byte `body:"" maxLength:"1048576"`
}

// Endpoint is the endpoint function that processes JSON-RPC requests.
// JSON-RPC outcomes, successful or not, are always rendered with status 200.
func (s *Server) Endpoint(w http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}
	c, ok := CodecFor(params.ContentType)
	if !ok {
		return nil, endpoint.Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/cbor", nil)
	}
	return s.render(s.Handle(r.Context(), params.Body, c), c), nil
}

// Handler returns an http.Handler serving s with the configured processors.
func (s *Server) Handler() http.Handler {
	return endpoint.Handler(s.Endpoint, s.processors...)
}

func (s *Server) render(resp *Response, c Codec) endpoint.Renderer {
	data := s.Encode(resp, c)
	if c == JSON {
		return &endpoint.JSONRenderer{Value: json.RawMessage(data)}
	}
	return &endpoint.StringRenderer{Body: string(data), ContentType: c.ContentType()}
}
