// Command broker runs the job-dispatch broker's gRPC server: the Manager,
// one Executor per job name, and the transport that exposes Work, Join, and
// GetDeadJobs to producers and consumers (spec §6).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"

	"github.com/rezkam/broker/internal/broker"
	"github.com/rezkam/broker/internal/config"
	"github.com/rezkam/broker/internal/observability"
	"github.com/rezkam/broker/internal/transport/rpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "./broker.toml", "path to the broker's TOML configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := observability.Init(ctx, observability.Config{
		Enabled:           cfg.OTel.Enabled,
		CollectorEndpoint: cfg.OTel.CollectorEndpoint,
		ServiceName:       cfg.OTel.ServiceName,
		ServiceVersion:    "dev",
	})
	if err != nil {
		return fmt.Errorf("initializing observability: %w", err)
	}
	logger := providers.Logger
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutting down observability providers", "error", err)
		}
	}()

	manager := broker.NewManager(ctx, cfg.BrokerConfig())
	grpcServer := newGRPCServer(cfg)
	rpc.RegisterBrokerServer(grpcServer, rpc.NewBrokerServer(manager, logger, cfg.WorkerMailboxSize))

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("broker listening", "addr", cfg.Addr)
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("serving grpc: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		gracefulStop(grpcServer, cfg.ShutdownTimeout())
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(errors.Unwrap(err)) {
		return config.Config{}, err
	}
	return config.Default(), nil
}

func newGRPCServer(cfg config.Config) *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    time.Duration(cfg.GRPC.KeepaliveTimeSeconds) * time.Second,
			Timeout: time.Duration(cfg.GRPC.KeepaliveTimeoutSeconds) * time.Second,

			MaxConnectionIdle: time.Duration(cfg.GRPC.MaxConnectionIdleSeconds) * time.Second,
		}),
		grpc.Creds(insecure.NewCredentials()),
	)
}

// gracefulStop mirrors the teacher's cmd/server/main.go shutdown sequence:
// attempt a clean GracefulStop, falling back to an immediate Stop if it
// doesn't finish within the configured window.
func gracefulStop(server *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		server.Stop()
	}
}
