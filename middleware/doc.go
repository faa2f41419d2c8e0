// Package middleware provides call middleware for jsonrpc.Server and HTTP
// processors for the endpoint package.
//
// Call middleware wraps dispatch of validated calls:
//
//	srv := jsonrpc.NewServer(binding, jsonrpc.WithMiddleware(
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	    middleware.Timeout(5*time.Second),
//	))
//
// Processors run before the request body is read and answer with plain HTTP
// errors:
//
//	srv := jsonrpc.NewServer(binding, jsonrpc.WithProcessors(middleware.Throttle(100, 20)))
package middleware
