package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tokenLedger/internal/api"
	"tokenLedger/internal/config"
	"tokenLedger/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only ledger views, /metrics and /healthz over HTTP",
		RunE: withApp(func(a *app, _ *cobra.Command) error {
			srv := api.New(a.ledger, a.events, a.logger).HTTPServer(a.cfg.Listen)

			g, ctx := errgroup.WithContext(a.ctx)
			g.Go(func() error {
				a.logger.Info("http server start", zap.String("listen", a.cfg.Listen))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				a.logger.Info("http server stopping")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		}),
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("migrate requires --store=postgres")
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return postgres.Migrate(cmd.Context(), cfg.PGDSN, logger)
		},
	}
}
