// Package wsrpc serves a jsonrpc.Server over WebSocket.
//
// Each text message is decoded as a JSON request and answered with a text
// message; each binary message is decoded as CBOR and answered with a binary
// message. Messages on one connection are handled one at a time, so responses
// arrive in request order.
package wsrpc

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// DefaultReadLimit caps the size of one inbound message.
const DefaultReadLimit = 1 << 20

// Handler upgrades HTTP requests to WebSocket connections and runs every
// message through a jsonrpc.Server.
type Handler struct {
	server    *jsonrpc.Server
	upgrader  websocket.Upgrader
	logger    *zap.Logger
	readLimit int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for connection events.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin replaces the same-origin check applied during the upgrade.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithReadLimit sets the maximum inbound message size in bytes.
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		h.readLimit = n
	}
}

// NewHandler creates a Handler for server.
func NewHandler(server *jsonrpc.Server, opts ...Option) *Handler {
	h := &Handler{
		server:    server,
		logger:    zap.NewNop(),
		readLimit: DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Debug("wsrpc: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.serveConn(ctx, conn)
}

func (h *Handler) serveConn(ctx context.Context, conn *websocket.Conn) {
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}
	remote := conn.RemoteAddr().String()
	h.logger.Debug("wsrpc: connection opened", zap.String("remote", remote))

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("wsrpc: read failed", zap.String("remote", remote), zap.Error(err))
			} else {
				h.logger.Debug("wsrpc: connection closed", zap.String("remote", remote))
			}
			return
		}

		codec := jsonrpc.JSON
		if msgType == websocket.BinaryMessage {
			codec = jsonrpc.CBOR
		}

		resp := h.server.Handle(ctx, message, codec)
		if err := conn.WriteMessage(msgType, h.server.Encode(resp, codec)); err != nil {
			h.logger.Warn("wsrpc: write failed", zap.String("remote", remote), zap.Error(err))
			return
		}
	}
}
