package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fabricnms/internal/handler"
	"fabricnms/internal/hub"
	"fabricnms/internal/service"
	"fabricnms/internal/watcher"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the settings, collision check, management domain and DHCP hook API.
Changes to the settings repository invalidate cached settings and are
streamed to clients of /events.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides http.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	addr := a.cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	// Connect event bus to SSE hub
	sseHub := hub.New(logger)
	go sseHub.Run(ctx)
	events := make(chan service.Event, 100)
	a.bus.Subscribe(events)
	defer a.bus.Unsubscribe(events)
	go func() {
		for {
			select {
			case event := <-events:
				sseHub.Broadcast(event)
			case <-ctx.Done():
				return
			}
		}
	}()

	if a.cfg.Settings.Watch {
		w := watcher.New(a.cfg.Settings.RepoPath, func() {
			if err := a.fleet.Invalidate(ctx); err != nil {
				logger.Warn("Failed to invalidate settings cache", zap.Error(err))
			}
		}, logger)
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Settings watcher stopped", zap.Error(err))
			}
		}()
	}

	mux := http.NewServeMux()
	handler.New(a.fleet, a.onboarding, a.cfg.Settings.UniqueVLANs, logger).Register(mux)
	mux.Handle("GET /events", sseHub)

	server := &http.Server{
		Addr: addr,
		Handler: handler.Chain(mux,
			handler.Recover(logger),
			handler.Logger(logger),
		),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}

	logger.Info("Shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}
