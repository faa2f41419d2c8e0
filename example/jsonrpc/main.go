package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mnehpets/rpcserve/config"
	"github.com/mnehpets/rpcserve/endpoint"
	"github.com/mnehpets/rpcserve/jsonrpc"
	"github.com/mnehpets/rpcserve/middleware"
	"github.com/mnehpets/rpcserve/wsrpc"
)

// Greeter is served by name on the configured RPC path.
type Greeter struct{}

type HelloParams struct {
	_    struct{} `jsonrpc:"hello"`
	Name string   `json:"name"`
}

func (g *Greeter) Hello(ctx context.Context, p HelloParams) (string, error) {
	if p.Name == "" {
		return "Hello from hello", nil
	}
	return "Hello, " + p.Name, nil
}

type AddParams struct {
	_ struct{} `jsonrpc:"add"`
	A int      `json:"a"`
	B int      `json:"b"`
}

func (g *Greeter) Add(ctx context.Context, p AddParams) (int, error) {
	return p.A + p.B, nil
}

func (g *Greeter) Ping(ctx context.Context) (string, error) {
	return "pong", nil
}

func hello(ctx context.Context, args jsonrpc.Args) (interface{}, error) {
	method, _ := args.String(0)
	return "Hello from " + method, nil
}

func sum(ctx context.Context, args jsonrpc.Args) (interface{}, error) {
	var p struct {
		Method string `json:"method"`
		A      int    `json:"sum_a"`
		B      int    `json:"sum_b"`
	}
	if err := args.Bind(&p); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Hello from %s and your sum is %d", p.Method, p.A+p.B), nil
}

func fixed(ctx context.Context, args jsonrpc.Args) (interface{}, error) {
	return "Hello from fixed method", nil
}

func health(w http.ResponseWriter, r *http.Request, _ struct{}) (endpoint.Renderer, error) {
	return &endpoint.NoContentRenderer{}, nil
}

func main() {
	fs := config.FlagSet(os.Args[0])
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
	envFiles, _ := fs.GetStringSlice("env-file")
	if err := config.LoadEnv(envFiles...); err != nil {
		log.Fatal(err)
	}
	path, _ := fs.GetString("config")
	cfg, err := config.Load(path, fs)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	mws := []jsonrpc.Middleware{
		middleware.RequestID(),
		middleware.OTel(),
		middleware.Logging(logger),
	}
	if cfg.Limits.Rate > 0 {
		mws = append(mws, middleware.RateLimit(cfg.Limits.Rate, cfg.Limits.Burst, middleware.WithRateLimitLogger(logger)))
	}
	if cfg.RPC.Timeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.RPC.Timeout))
	}
	opts := []jsonrpc.Option{
		jsonrpc.WithLogger(logger),
		jsonrpc.WithMiddleware(mws...),
	}
	if cfg.Limits.ThrottleRate > 0 {
		opts = append(opts, jsonrpc.WithProcessors(middleware.Throttle(cfg.Limits.ThrottleRate, cfg.Limits.ThrottleBurst)))
	}

	var objOpts []jsonrpc.ObjectOption
	if cfg.RPC.LegacyLookupFault {
		objOpts = append(objOpts, jsonrpc.WithLegacyLookupFault())
	}

	mux := http.NewServeMux()
	jsonrpc.HandleOpen(mux, "/hello", hello, opts...)
	jsonrpc.HandleOpen(mux, "/sum", sum, opts...)
	jsonrpc.HandleFixed(mux, "/fixed", "fixed_method", fixed, opts...)
	srv := jsonrpc.Register(mux, cfg.RPC.Path, jsonrpc.NewObject(&Greeter{}, objOpts...), opts...)
	if cfg.RPC.WebSocketPath != "" {
		mux.Handle("GET "+cfg.RPC.WebSocketPath, wsrpc.NewHandler(srv, wsrpc.WithLogger(logger)))
	}
	mux.Handle("GET /healthz", endpoint.HandleFunc(health))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("rpc_path", cfg.RPC.Path))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
