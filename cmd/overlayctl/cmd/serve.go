package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/goOverlay/adminapi"
	"github.com/MrEthical07/goOverlay/metrics/export/prometheus"
	"github.com/MrEthical07/goOverlay/middleware"
)

const (
	authJWT     = "jwt"
	authSession = "session"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		listen string
		auth   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin console API",
		Long: `Serves the admin API and Prometheus metrics.

With --auth jwt callers present a session token signed with tokens.signing_key.
With --auth session every request acts as the member signed in with
'overlayctl login', which suits a console on the operator's own machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("listen") {
				listen = a.cfg.Listen
			}

			var resolve middleware.Resolver
			switch auth {
			case authJWT:
				if a.tokens == nil {
					return errors.New("--auth jwt needs tokens.signing_key in the config")
				}
				resolve = middleware.BearerJWT(a.tokens)
			case authSession:
				if _, err := a.engine.RestoreSession(a.context(cmd)); err != nil {
					return err
				}
				resolve = middleware.FromSession(a.engine)
			default:
				return fmt.Errorf("unknown --auth %q", auth)
			}

			if a.cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			server, err := adminapi.New(a.engine, resolve,
				adminapi.WithLogger(a.logger),
				adminapi.WithMetricsHandler(prometheus.New(a.engine).Handler()),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(a.context(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runHTTP(ctx, a, listen, server.Handler())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config)")
	cmd.Flags().StringVar(&auth, "auth", authJWT, "caller authentication: jwt or session")
	return cmd
}

func runHTTP(ctx context.Context, a *app, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("overlayctl: admin API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
