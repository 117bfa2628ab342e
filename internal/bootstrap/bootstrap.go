// Package bootstrap assembles the application service from configuration.
// Both the HTTP server and the operator CLI start from here.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"branch-supply/internal/ai"
	"branch-supply/internal/app"
	"branch-supply/internal/config"
	"branch-supply/internal/core"
	"branch-supply/internal/db"
	"branch-supply/internal/directory"
	"branch-supply/internal/events"
	"branch-supply/internal/storage"
	"branch-supply/internal/store/postgres"
	"branch-supply/migrations"
)

// Runtime holds the assembled service and the resources that must be
// released on shutdown.
type Runtime struct {
	Service app.ApplicationService
	Pool    *pgxpool.Pool

	closers []func()
}

// Close releases the resources in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Options tweak what Build wires.
type Options struct {
	// Migrate applies pending migrations before the service is built.
	Migrate bool
	// ClientName identifies the process to NATS.
	ClientName string
}

// Build connects to the database and the optional broker and returns the
// assembled application service.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	rt.Pool = pool
	rt.closers = append(rt.closers, pool.Close)

	if opts.Migrate {
		n, err := migrations.Apply(ctx, pool, log)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		log.Info().Int("applied", n).Msg("migrations up to date")
	}

	var dir interface {
		core.BranchDirectory
		core.ProductCatalog
	}
	switch cfg.Directory.Mode {
	case "http":
		dir = directory.NewHTTP(cfg.Directory)
		log.Info().Str("base_url", cfg.Directory.BaseURL).Msg("directory: http")
	default:
		dir = directory.NewSQL(pool)
	}

	blobs, err := storage.NewLocalStore(cfg.Storage.EvidenceDir)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("evidence storage: %w", err)
	}

	svcOpts := []core.ServiceOption{core.WithLogger(log)}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, opts.ClientName, log)
		if err != nil {
			// Publishing is best effort; the service runs without it.
			log.Warn().Err(err).Msg("event publishing disabled")
		} else {
			rt.closers = append(rt.closers, func() {
				if err := nc.Drain(); err != nil {
					log.Warn().Err(err).Msg("nats drain")
				}
			})
			svcOpts = append(svcOpts, core.WithPublisher(events.NewPublisher(nc, cfg.NATS.SubjectPrefix, log)))
		}
	}

	var drafter ai.NoteDrafter
	if cfg.AI.OpenAIKey != "" {
		drafter = ai.NewAgent(cfg.AI.OpenAIKey, cfg.AI.Model)
	} else {
		log.Info().Msg("OPENAI_API_KEY not set, receive notes use the plain draft")
	}

	orders := postgres.NewOrderRepository(pool)
	rt.Service = app.NewAppService(
		core.NewIdentityService(postgres.NewUserRepository(pool), core.WithLogger(log)),
		core.NewPurchaseOrderService(orders, dir, dir, svcOpts...),
		core.NewQueryService(orders),
		core.NewEvidenceService(orders, blobs, core.WithLogger(log)),
		dir,
		drafter,
		log,
	)
	return rt, nil
}
