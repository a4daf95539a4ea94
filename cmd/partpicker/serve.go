package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"partpicker/engine"
	"partpicker/messaging"
	"partpicker/partstate"
	"partpicker/www"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger service and web API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			station := cfg.StationID()

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var cache partstate.Cache
			if rc := openRedis(cfg); rc != nil {
				defer rc.Close()
				cache = partstate.NewRedisStore(rc, cfg.Redis.KeyPrefix)
			}

			engCfg := engine.Config{
				AppConfig: cfg,
				DB:        db,
				PartState: partstate.NewManager(cache),
			}

			// Messaging: notices go out through the outbox so a broker
			// outage never blocks a pick.
			var msgClient *messaging.Client
			if cfg.Messaging.Enabled {
				msgClient = messaging.NewClient(&cfg.Messaging, station)
				msgClient.OnConnectionChange(
					func() { log.Info().Str("backend", cfg.Messaging.Backend).Msg("partpicker: messaging up") },
					func(err error) { log.Warn().Err(err).Msg("partpicker: messaging down") },
				)
				if err := msgClient.Connect(); err != nil {
					log.Warn().Err(err).Msg("partpicker: messaging connect failed, notices will queue")
				}
				defer msgClient.Close()

				engCfg.MsgClient = msgClient
				engCfg.Notifier = messaging.NewNotifier(db, cfg.Messaging.ChangesTopic, station)

				drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
				drainer.Start()
				defer drainer.Stop()
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng := engine.New(engCfg)
			if err := eng.Start(ctx); err != nil {
				return fmt.Errorf("start engine: %w", err)
			}
			defer eng.Stop()

			handler, stopWeb := www.NewRouter(eng)
			defer stopWeb()

			addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
			srv := &http.Server{Addr: addr, Handler: handler}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("addr", addr).Str("station", station).Msg("partpicker: web server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("web server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("partpicker: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
