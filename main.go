package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "m3u8-relay",
		Short: "Cross-origin relay for HLS playlists and segments",
		Long: `m3u8-relay fetches a resource on behalf of the caller, follows redirects,
rewrites relative references inside m3u8 playlists into absolute URLs and
relays the result with permissive CORS headers.`,
		SilenceUsage: true,
		PreRun: func(cmd *cobra.Command, args []string) {
			// Load environment variables
			if err := godotenv.Load(); err != nil {
				logger.Debug("no .env file found, using environment and defaults")
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd.Flags())
			if err != nil {
				return err
			}

			if err := setupLogger(cfg.LogLevel, cfg.LogJSON); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	addFlags(cmd.Flags())

	return cmd
}

// serve runs the HTTP server until ctx is done
func serve(ctx context.Context, cfg *Config) error {
	server := NewServer(cfg, newUpstreamClient())

	httpServer := &http.Server{
		Addr:              cfg.addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":          cfg.addr(),
			"public_url":    cfg.PublicURL,
			"max_redirects": cfg.MaxRedirects,
			"metrics":       cfg.Metrics,
		}).Info("M3U8 relay server running")

		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
