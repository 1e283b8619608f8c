// Package app assembles an SMP instance from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-smp/internal/bulk"
	"github.com/sirosfoundation/go-smp/internal/config"
	"github.com/sirosfoundation/go-smp/internal/directory"
	"github.com/sirosfoundation/go-smp/internal/metrics"
	"github.com/sirosfoundation/go-smp/internal/registry"
	"github.com/sirosfoundation/go-smp/internal/server"
	"github.com/sirosfoundation/go-smp/internal/sml"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/storage/mongodb"
	"github.com/sirosfoundation/go-smp/internal/tracing"
	"github.com/sirosfoundation/go-smp/internal/users"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// App is a wired SMP instance
type App struct {
	Config   *config.Config
	Factory  *identifier.Factory
	Users    *users.StaticDirectory
	Store    *storage.Registry
	Managers *registry.Managers
	Importer *bulk.Importer
	Exporter *bulk.Exporter
	Metrics  *metrics.Metrics
	Tracing  *tracing.Provider

	// Verifier is nil unless sml.dns.zone is configured
	Verifier *sml.DNSVerifier

	mongo  *mongodb.Store
	logger *slog.Logger
}

// New builds the instance described by cfg and loads the registry from
// storage
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:  cfg,
		Factory: cfg.IdentifierFactory(),
		Users:   cfg.UserDirectory(),
		Metrics: metrics.New(),
		logger:  logger,
	}

	tp, err := tracing.NewProvider(cfg.Observability.Tracing)
	if err != nil {
		return nil, err
	}
	a.Tracing = tp

	switch cfg.Storage.Type {
	case config.StorageMongoDB:
		a.mongo, err = mongodb.NewStore(ctx, &mongodb.Config{
			URI:      cfg.Storage.MongoDB.URI,
			Database: cfg.Storage.MongoDB.Database,
			Timeout:  cfg.Storage.MongoDB.Timeout,
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("connecting to storage: %w", err)
		}
		a.Store = storage.NewRegistry(a.mongo.Persisters(), logger)
	default:
		a.Store = storage.NewMemoryRegistry(logger)
	}
	if err := a.Store.Load(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	var hook sml.Hook = sml.NoopHook{}
	if cfg.SML.Enabled {
		client, err := sml.NewClient(sml.ClientConfig{
			URL:      cfg.SML.URL,
			SMPID:    cfg.SMP.ID,
			CertFile: cfg.SML.CertFile,
			KeyFile:  cfg.SML.KeyFile,
			CAFile:   cfg.SML.CAFile,
			Timeout:  cfg.SML.Timeout,
		}, logger)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("creating SML client: %w", err)
		}
		hook = client
	}
	if cfg.SML.DNS.Zone != "" {
		a.Verifier = sml.NewDNSVerifier(sml.DNSVerifierConfig{Zone: cfg.SML.DNS.Zone, Server: cfg.SML.DNS.Server})
	}

	var indexer directory.Indexer = directory.Noop{}
	if cfg.Directory.Enabled {
		client, err := directory.NewClient(directory.Config{URL: cfg.Directory.URL, Timeout: cfg.Directory.Timeout}, logger)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("creating directory client: %w", err)
		}
		indexer = client
	}

	a.Managers = registry.New(registry.Options{
		Store:                a.Store,
		Hook:                 hook,
		Indexer:              indexer,
		DirectoryIntegration: cfg.Directory.Enabled,
		Observers:            []registry.Observer{a.Metrics},
		Logger:               logger,
	})
	a.Metrics.WatchRegistry(a.Managers)

	a.Importer = bulk.NewImporter(bulk.Config{
		Managers:      a.Managers,
		Resolver:      a.Users,
		Factory:       a.Factory,
		Tracer:        tp.Tracer(bulk.TracerName),
		Recorder:      a.Metrics,
		OwnerCacheTTL: cfg.Import.OwnerCacheTTL,
		Logger:        logger,
	})
	a.Exporter = bulk.NewExporter(a.Managers, logger)

	logger.Info("smp initialised",
		"smp_id", cfg.SMP.ID,
		"storage", cfg.Storage.Type,
		"sml", cfg.SML.Enabled,
		"directory", cfg.Directory.Enabled,
		"service_groups", a.Managers.ServiceGroups.Count())
	return a, nil
}

// ImportOptions returns the configured import defaults
func (a *App) ImportOptions() bulk.Options {
	return bulk.Options{
		DefaultOwner:  a.Config.Import.DefaultOwner,
		Workers:       a.Config.Import.Workers,
		BusinessCards: a.Config.Directory.Enabled,
	}
}

// Server creates the operational HTTP server
func (a *App) Server() *server.Server {
	deps := server.Deps{
		Managers: a.Managers,
		Importer: a.Importer,
		Exporter: a.Exporter,
		Metrics:  a.Metrics,
	}
	if a.mongo != nil {
		deps.Storage = a.mongo
	}
	return server.New(a.Config, deps, a.logger)
}

// Close flushes spans and disconnects from storage
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Tracing != nil {
		errs = append(errs, a.Tracing.Shutdown(ctx))
	}
	if a.mongo != nil {
		errs = append(errs, a.mongo.Close(ctx))
	}
	return errors.Join(errs...)
}
