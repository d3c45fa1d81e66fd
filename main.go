package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"driftpursuit/intercept/internal/balance"
	"driftpursuit/intercept/internal/combat"
	"driftpursuit/intercept/internal/config"
	grpcapi "driftpursuit/intercept/internal/grpc"
	httpapi "driftpursuit/intercept/internal/http"
	"driftpursuit/intercept/internal/logging"
	"driftpursuit/intercept/internal/replay"
)

const (
	shutdownTimeout = 10 * time.Second
	retentionSweep  = time.Hour
)

// servers holds the wired surfaces of the balance server.
type servers struct {
	http    http.Handler
	grpc    *grpc.Server
	cleaner *replay.Cleaner
}

func buildServers(cfg *config.Config, logger *logging.Logger) (*servers, error) {
	stance, err := combat.ParseStance(cfg.Stance)
	if err != nil {
		return nil, err
	}
	//1.- One balance service backs both network surfaces.
	options := []balance.Option{balance.WithLogger(logger)}
	if cfg.Replay.Enabled() {
		if err := os.MkdirAll(cfg.Replay.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create replay directory: %w", err)
		}
		options = append(options, balance.WithReplayDir(cfg.Replay.Dir))
	}
	service := balance.NewService(balance.Defaults{
		Seed:        cfg.Seed,
		Stance:      stance,
		Engagements: cfg.Engagements,
		RoundCap:    cfg.RoundCap,
		Workers:     cfg.Workers,
		MaxTrials:   cfg.MaxTrials,
	}, options...)

	built := &servers{}
	handlerOpts := httpapi.Options{
		Logger:      logger,
		Simulator:   service,
		RateLimiter: httpapi.NewSlidingWindowLimiter(cfg.SimulateWindow, cfg.SimulateBurst, nil),
	}
	if cfg.Replay.Enabled() {
		built.cleaner = replay.NewCleaner(cfg.Replay.Dir, replay.RetentionPolicy{MaxBundles: cfg.Replay.MaxBundles, MaxAge: cfg.Replay.MaxAge}, logger)
		handlerOpts.ReplayStats = built.cleaner.Stats
	}
	mux := http.NewServeMux()
	httpapi.NewHandlerSet(handlerOpts).Register(mux)
	built.http = logging.HTTPTraceMiddleware(logger)(mux)

	//2.- The gRPC surface shares the service and optionally enforces a shared secret.
	built.grpc = grpc.NewServer(grpcapi.ServerOptions(cfg.GRPCSecret)...)
	grpcapi.Register(built.grpc, grpcapi.NewService(service, grpcapi.WithLogger(logger)))
	return built, nil
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	built, err := buildServers(cfg, logger)
	if err != nil {
		return err
	}
	if built.cleaner != nil {
		go built.cleaner.Run(ctx, retentionSweep)
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		httpListener.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	httpServer := &http.Server{Handler: built.http, ReadHeaderTimeout: 5 * time.Second}
	errs := make(chan error, 2)
	go func() {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := built.grpc.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errs <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	logger.Info("balance server listening",
		logging.String("http", listenerURL("http", httpListener.Addr().String())),
		logging.String("websocket", listenerURL("ws", httpListener.Addr().String())+"/ws/engagement"),
		logging.String("grpc", listenerURL("grpc", grpcListener.Addr().String())),
		logging.Uint64("seed", cfg.Seed),
		logging.String("stance", cfg.Stance),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
		logger.Error("server failed", logging.Error(runErr))
	}

	//3.- Drain both surfaces before returning.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	stopped := make(chan struct{})
	go func() {
		built.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		built.grpc.Stop()
	}
	logger.Info("balance server stopped")
	return runErr
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("balance server exited", logging.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
