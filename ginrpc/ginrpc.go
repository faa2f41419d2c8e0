// Package ginrpc mounts a jsonrpc.Server on a gin router.
//
// The gin route runs the same decode, validate and dispatch pipeline as
// jsonrpc.Register. Server processors do not run here; use gin middleware
// for HTTP-level concerns instead.
package ginrpc

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mnehpets/rpcserve/jsonrpc"
)

// MaxBodyBytes caps the request body read by HandlerFunc.
const MaxBodyBytes = 1 << 20

// Handle registers server as a POST route at path.
func Handle(router gin.IRoutes, path string, server *jsonrpc.Server) {
	router.POST(path, HandlerFunc(server))
}

// HandlerFunc returns a gin handler serving server. JSON-RPC outcomes are
// written with status 200; only an unsupported Content-Type (415) or an
// oversized body (413) produce other statuses.
func HandlerFunc(server *jsonrpc.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		codec, ok := jsonrpc.CodecFor(c.GetHeader("Content-Type"))
		if !ok {
			c.String(http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/cbor")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.String(http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			_ = c.Error(err)
			c.String(http.StatusBadRequest, "failed to read request body")
			return
		}

		resp := server.Handle(c.Request.Context(), body, codec)
		c.Data(http.StatusOK, codec.ContentType(), server.Encode(resp, codec))
	}
}
