package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"week_notification_agent/internal/app"
	"week_notification_agent/internal/infra/config"
	idb "week_notification_agent/internal/infra/database"
	"week_notification_agent/internal/infra/lease"
	"week_notification_agent/internal/infra/logger"
	"week_notification_agent/internal/infra/medsenger"
	"week_notification_agent/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// deps holds the collaborators shared by serve and tick.
type deps struct {
	cfg           *config.AppConfig
	db            *sql.DB
	contracts     *idb.PostgresContractRepository
	notifications *idb.PostgresNotificationRepository
	locks         *app.ContractLocks
	metrics       *metrics.Metrics
	dispatcher    *app.Dispatcher
	lease         lease.Lease
	closers       []func() error
}

// loadConfig reads the configuration and initializes the global logger.
func loadConfig() (*config.AppConfig, *logrus.Entry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Configuration loaded")
	return cfg, mainLogger, nil
}

// openDatabase connects and applies the schema.
func openDatabase(ctx context.Context, cfg *config.AppConfig) (*sql.DB, error) {
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := idb.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newDeps(ctx context.Context, cfg *config.AppConfig) (*deps, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt := &deps{
		cfg:           cfg,
		db:            db,
		contracts:     idb.NewPostgresContractRepository(db),
		notifications: idb.NewPostgresNotificationRepository(db),
		locks:         app.NewContractLocks(),
		metrics:       metrics.New(),
		lease:         lease.Local{},
		closers:       []func() error{db.Close},
	}

	if cfg.RedisAddr != "" {
		redisLease, err := lease.NewRedisLease(cfg.RedisAddr, cfg.RedisLeaseKey, cfg.RedisLeaseTTL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("could not set up reconciliation lease: %w", err)
		}
		rt.lease = redisLease
		rt.closers = append(rt.closers, redisLease.Close)
	}

	sink := medsenger.NewClient(cfg.MedsengerHost, cfg.AgentAPIKey, cfg.SinkTimeout, logger.Component("medsenger"))
	rt.dispatcher = app.NewDispatcher(
		rt.contracts,
		rt.notifications,
		rt.notifications,
		sink,
		rt.locks,
		rt.metrics,
		logger.Component("dispatcher"),
		cfg.SinkTimeout,
	)
	rt.dispatcher.InLocation(cfg.TimeZone)
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *deps) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
