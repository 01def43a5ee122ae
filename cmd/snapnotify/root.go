package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GriffinCanCode/snapnotify/internal/clipboard"
	"github.com/GriffinCanCode/snapnotify/internal/config"
	"github.com/GriffinCanCode/snapnotify/internal/orchestrator"
	"github.com/GriffinCanCode/snapnotify/internal/server"
)

const shutdownTimeout = 5 * time.Second

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "snapnotify",
		Short: "Announce every new screenshot exactly once",
		Long: `snapnotify watches the clipboard for screenshot images, saves each distinct
one to the screenshots folder and announces the saved path. When the clipboard
cannot be monitored it watches the folder for new image files instead.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			setupLogging(cfg, cmd.ErrOrStderr())
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $"+config.ConfigFileEnv+")")

	root.AddCommand(newStatusCmd(&cfgFile), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "snapnotify "+version)
		},
	}
}

func setupLogging(cfg *config.Config, w io.Writer) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

func run(parent context.Context, cfg *config.Config, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	mgr, err := orchestrator.New(cfg, clipboard.NewSystemListener())
	if err != nil {
		return err
	}

	srv := server.New(mgr)
	mgr.Subscribe("websocket", srv.Broadcast)
	if cfg.ConsoleNotify {
		mgr.Subscribe("console", newConsoleNotifier(out).Notify)
	}

	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Stop()

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return err
		}
		httpServer = &http.Server{
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := httpServer.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
	}

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		health := server.NewHealth(mgr)
		grpcServer = health.NewGRPCServer()
		go health.Run(ctx)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				slog.Error("grpc server error", "error", err)
			}
		}()
	}

	slog.Info("snapnotify running", "dir", mgr.Dir(), "http", cfg.HTTPAddr, "grpc", cfg.GRPCAddr)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	mgr.Stop()
	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
	}
	srv.Close()
	if grpcServer != nil {
		stopGRPC(grpcServer)
	}

	slog.Info("shutdown complete")
	return nil
}

// stopGRPC drains in-flight RPCs, forcing the stop after shutdownTimeout.
func stopGRPC(s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		slog.Warn("grpc graceful stop timed out")
		s.Stop()
	}
}
