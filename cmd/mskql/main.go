// Command mskql runs the embeddable relational engine as a standalone
// PostgreSQL-wire server with a companion admin HTTP surface.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/martinsk/mskql/internal/admin"
	"github.com/martinsk/mskql/internal/adminauth"
	"github.com/martinsk/mskql/internal/catalog"
	"github.com/martinsk/mskql/internal/config"
	"github.com/martinsk/mskql/internal/notify"
	"github.com/martinsk/mskql/internal/obs"
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/server"
)

func main() {
	cfg, err := config.Load(os.Getenv("MSKQL_CONFIG"))
	if err != nil {
		obs.Component("main").Fatal().Err(err).Msg("failed to load or validate configuration")
	}
	obs.InitLogger(cfg.Log.Level, cfg.Log.Format)
	log := obs.Component("main")

	db := schema.New("mskql")
	catalog.Rebuild(db)

	var bus *notify.Bus
	if cfg.NATS.Enabled {
		bus, err = notify.Start(log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start embedded notify bus")
		}
		defer bus.Shutdown()
	} else {
		log.Warn().Msg("notify bus disabled: LISTEN will fail with feature_not_supported and NOTIFY is a no-op")
	}

	srv := server.New(cfg.Server, db, bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Admin.Enabled {
		var tokens *adminauth.Source
		if cfg.Vault.Address != "" || os.Getenv(adminauth.EnvTokenFallback) != "" {
			tokens = adminauth.NewSource(cfg.Vault, log)
		}
		adminSrv := admin.NewServer(cfg.Admin, db, srv, tokens, log)
		g.Go(func() error {
			return adminSrv.Run(gctx)
		})
	}

	log.Info().Str("wire_addr", cfg.Server.ListenAddr()).Msg("mskql starting")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("mskql exited with error")
	}
	log.Info().Msg("mskql shut down cleanly")
}
