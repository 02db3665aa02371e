// Package application wires configuration into a store and a sync service.
// The HTTP server and the CLI both start here.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/config"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/reconcile"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store/memstore"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store/pgstore"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store/sqlstore"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

// App holds the long-lived pieces shared by the server and the CLI.
type App struct {
	Config  *config.Config
	Store   store.Store
	Service *reconcile.Service
}

// Open connects the configured store, applies the schema when
// AutoMigrate is set, and builds the service.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	vocab := worksheet.DefaultVocabulary()
	if cfg.Sync.VocabularyFile != "" {
		if err := vocab.LoadAliases(cfg.Sync.VocabularyFile); err != nil {
			return nil, err
		}
		slog.Info("sheet aliases loaded", "file", cfg.Sync.VocabularyFile)
	}

	st, err := OpenStore(ctx, cfg.Database, cfg.Sync.BatchSize)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := Migrate(ctx, st); err != nil {
			st.Close()
			return nil, err
		}
	}

	svc := reconcile.NewService(st, reconcile.Options{
		Engine: reconcile.EngineOptions{
			TxTimeout:     cfg.Sync.TxTimeout,
			VerifyTimeout: cfg.Sync.VerifyTimeout,
		},
		MaxConcurrent: cfg.Sync.MaxConcurrent,
		MaxWait:       cfg.Sync.MaxWait,
		Vocabulary:    vocab,
	})

	return &App{Config: cfg, Store: st, Service: svc}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// OpenStore opens the store selected by db.Driver.
func OpenStore(ctx context.Context, db config.DatabaseConfig, batchSize int) (store.Store, error) {
	switch strings.ToLower(db.Driver) {
	case config.DriverPostgres:
		return openPool(ctx, db, batchSize)

	case config.DriverPgxSQL:
		st, err := sqlstore.Open(ctx, sqlstore.DialectPgx, db.URL, batchSize)
		if err != nil {
			return nil, err
		}
		st.DB().SetMaxOpenConns(db.MaxConns)
		st.DB().SetMaxIdleConns(db.MinConns)
		st.DB().SetConnMaxLifetime(db.MaxConnLifetime)
		st.DB().SetConnMaxIdleTime(db.MaxConnIdleTime)
		logConnected(db)
		return st, nil

	case config.DriverSQLite:
		st, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, db.SQLitePath, batchSize)
		if err != nil {
			return nil, err
		}
		slog.Info("opened sqlite database", "path", db.SQLitePath)
		return st, nil

	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", db.Driver)
}

func openPool(ctx context.Context, db config.DatabaseConfig, batchSize int) (store.Store, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logConnected(db)
	return pgstore.New(pool, batchSize), nil
}

// logConnected logs the database name, never the credentials.
func logConnected(db config.DatabaseConfig) {
	if u, err := url.Parse(db.URL); err == nil && u.Path != "" {
		slog.Info("connected to database", "driver", db.Driver, "name", strings.TrimPrefix(u.Path, "/"))
		return
	}
	slog.Info("connected to database", "driver", db.Driver)
}

// Migrate applies the schema if st manages one.
func Migrate(ctx context.Context, st store.Store) error {
	m, ok := st.(store.Migrator)
	if !ok {
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
