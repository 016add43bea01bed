package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/erg0nix/konsilium/internal/config"
	grpcsvc "github.com/erg0nix/konsilium/internal/grpc"
)

const drainTimeout = 5 * time.Second

// PIDFile is where a running daemon records its process id.
func PIDFile(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, "server.pid")
}

// RunServer serves the agent over gRPC until a signal or a Shutdown call arrives.
func RunServer(cfg config.Config) error {
	if pid := ReadPID(PIDFile(cfg)); pid != 0 {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	services, err := NewServices(cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	listener, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", cfg.Bind, err)
	}

	pidFile := PIDFile(cfg)
	if err := writePIDFile(pidFile); err != nil {
		slog.Warn("failed to write PID file", "error", err)
	}
	defer os.Remove(pidFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	shutdownCh := make(chan struct{}, 1)
	server := grpc.NewServer()

	grpcsvc.RegisterAgentServer(server, &grpcsvc.AgentHandler{Agent: services.Agent})
	grpcsvc.RegisterDaemonServer(server, &grpcsvc.DaemonHandler{
		Bind:      cfg.Bind,
		DataDir:   cfg.DataDir,
		Model:     cfg.Agent.Model,
		Providers: services.Providers.Names(),
		StartTime: time.Now(),
		StopFunc: func() {
			select {
			case shutdownCh <- struct{}{}:
			default:
			}
		},
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()

	slog.Info("server listening", "address", cfg.Bind, "model", cfg.Agent.Model)

	select {
	case <-ctx.Done():
		slog.Info("received signal, shutting down")
	case <-shutdownCh:
		slog.Info("shutdown requested via rpc")
	case err := <-serveErr:
		return fmt.Errorf("server: serve: %w", err)
	}

	done := make(chan struct{})
	go func() { server.GracefulStop(); close(done) }()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		slog.Warn("drain timeout, forcing shutdown")
		server.Stop()
	}

	return nil
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write pid file: mkdir: %w", err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}
