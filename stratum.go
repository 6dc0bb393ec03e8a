// Package stratum assembles the resource substrate: hierarchical scopes,
// taxonomy, resource items, trees of categories with mounted items, and
// conditional relations between them. Open wires the full stack from a
// Config; the per-concern services are exposed as fields.
package stratum

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/stratum/pkg/config"
	"github.com/platinummonkey/stratum/pkg/observability"
	"github.com/platinummonkey/stratum/pkg/rel"
	"github.com/platinummonkey/stratum/pkg/resource"
	"github.com/platinummonkey/stratum/pkg/storage/postgres"
	"github.com/platinummonkey/stratum/pkg/taxonomy"
	"github.com/platinummonkey/stratum/pkg/tree"
)

// Engine is the assembled stratum stack.
type Engine struct {
	Taxonomy  *taxonomy.Service
	Resources *resource.Service
	Trees     *tree.Service
	Relations *rel.Service

	Logger  *observability.Logger
	Metrics *observability.Metrics

	conns  *postgres.ConnectionManager
	lookup *postgres.LookupCache
}

// Open connects to the configured stores and wires the services together,
// including the cross-service delete guards.
func Open(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, nil)

	// metrics land on the default registry so the host's scrape endpoint
	// picks them up; disabled means a private registry nothing scrapes
	metrics := observability.NewDefaultMetrics()
	if cfg.Observability.MetricsEnabled {
		if registry, ok := prometheus.DefaultRegisterer.(*prometheus.Registry); ok {
			metrics = observability.NewMetrics(registry)
		}
	}

	conns, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.PrimaryURL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var lookup *postgres.LookupCache
	if cfg.Redis.Enabled {
		lookup, err = postgres.NewLookupCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.LookupTTL)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("failed to connect to lookup cache: %w", err)
		}
	}

	taxCache, err := taxonomy.NewCache(cfg.Cache.TaxonomySize)
	if err != nil {
		conns.Close()
		return nil, err
	}

	db := conns.Primary()
	taxSvc := taxonomy.NewService(taxonomy.NewStore(db), taxCache, logger)
	items := resource.NewService(resource.NewStore(db), taxSvc, logger)

	var treeCache tree.LookupCache
	if lookup != nil {
		treeCache = lookup
	}
	trees := tree.NewService(tree.NewStore(db), items, treeCache, metrics, logger, cfg.Tree.NodeCodeWidth)
	rels := rel.NewService(rel.NewStore(db), items, trees, metrics, logger)

	items.RegisterDeleteGuard(trees.ItemDeleteGuard())
	items.RegisterDeleteGuard(rels.ItemDeleteGuard())

	return &Engine{
		Taxonomy:  taxSvc,
		Resources: items,
		Trees:     trees,
		Relations: rels,
		Logger:    logger,
		Metrics:   metrics,
		conns:     conns,
		lookup:    lookup,
	}, nil
}

// Migrate creates the stratum tables and any registered extension tables.
func (e *Engine) Migrate(ctx context.Context) error {
	if err := postgres.ApplySchema(ctx, e.conns.Primary()); err != nil {
		return err
	}
	return e.Resources.ApplyExtensionSchema(ctx)
}

// HealthCheck pings the underlying stores.
func (e *Engine) HealthCheck(ctx context.Context) error {
	return e.conns.HealthCheck(ctx)
}

// PublishStats copies connection pool statistics into the metrics gauges.
func (e *Engine) PublishStats() {
	e.conns.PublishStats(e.Metrics)
}

// Close releases all connections.
func (e *Engine) Close() error {
	if e.lookup != nil {
		if err := e.lookup.Close(); err != nil {
			e.Logger.WithError(err).Warn("failed to close lookup cache")
		}
	}
	return e.conns.Close()
}
