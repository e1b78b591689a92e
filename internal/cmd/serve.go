package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coinsync/coinsync/internal/observability"
	"github.com/coinsync/coinsync/internal/server"
)

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP status server",
	Long: `Start the HTTP status server with graceful shutdown support.

Endpoints:
  GET /health        liveness
  GET /version       build information
  GET /status        all stored checkpoints
  GET /status/{job}  checkpoint for one job

Ctrl+C (SIGINT) or SIGTERM triggers graceful shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		observability.InitServerLogger("coinsync", appCfg.Logging.Level)
		logger := observability.ServerLogger

		st, err := openStore(cmd.Context())
		if err != nil {
			ExitWithCode(logger, ExitStoreUnavailable, "Failed to open store", err)
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		host := firstNonEmpty(serverHost, appCfg.Server.Host)
		port := serverPort
		if port == 0 {
			port = appCfg.Server.Port
		}

		server.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
		srv := server.New(host, port, st, logger)
		srv.ReadTimeout = appCfg.Server.ReadTimeout
		srv.WriteTimeout = appCfg.Server.WriteTimeout
		srv.IdleTimeout = appCfg.Server.IdleTimeout

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			return err
		}
		observability.Sync()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serverHost, "host", "", "bind address (default from config)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "listen port (default from config)")
}
