package ragapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/edgeflare/ragapi/pkg/api"
	"github.com/edgeflare/ragapi/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Starts the HTTP API server answering POST /submit_query`,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("server.listenAddr", "l", "", "HTTP listen address")
	f.Bool("metrics.enabled", true, "Serve Prometheus metrics")
	f.String("metrics.addr", "", "Prometheus metrics listen address")

	viper.BindPFlags(f)
}

func runServe(cmd *cobra.Command, args []string) error {
	// flag overrides
	if listenAddr := viper.GetString("server.listenAddr"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	if metricsAddr := viper.GetString("metrics.addr"); metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if cmd.Flags().Changed("metrics.enabled") {
		cfg.Metrics.Enabled = viper.GetBool("metrics.enabled")
	}

	// canceled on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr, Logger: logger})
	}

	server := api.NewServer(a.queryService(cfg, logger), a.store, api.Options{
		Logger:         logger,
		APIKey:         cfg.Server.APIKey,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxQueryLength: cfg.Server.MaxQueryLength,
	})
	if cfg.Server.APIKey == "" {
		logger.Warn("API key not configured, /submit_query is open")
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received termination signal, shutting down")
	case err := <-errChan:
		cancel()
		wg.Wait()
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	cancel()
	wg.Wait()

	logger.Info("server gracefully stopped")
	return nil
}
