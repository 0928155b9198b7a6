package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/license-service/internal/config"
)

// ErrNoDatabase is returned by Ping when no DSN was configured.
var ErrNoDatabase = errors.New("postgres pool not configured")

// Postgres owns the license store's connection pool. A zero Postgres, or one built without a
// DSN, has no pool; callers check PoolHandle before handing it out.
type Postgres struct {
	pool *pgxpool.Pool
}

// poolConfig parses the DSN and applies the optional pool limits. Zero values keep pgx defaults.
func poolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = min(cfg.MinConns, pc.MaxConns)
	}
	if cfg.ConnMaxIdleSec > 0 {
		pc.MaxConnIdleTime = seconds(cfg.ConnMaxIdleSec)
	}
	if cfg.ConnMaxLifeSec > 0 {
		pc.MaxConnLifetime = seconds(cfg.ConnMaxLifeSec)
	}
	return pc, nil
}

func seconds(n int32) time.Duration {
	return time.Duration(n) * time.Second
}

// NewPostgres opens and pings the pool. Without a DSN it logs a warning and returns a Postgres
// with no pool.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; license store disabled")
		return &Postgres{}, nil
	}

	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("postgres pool ready",
		zap.String("host", pc.ConnConfig.Host),
		zap.String("database", pc.ConnConfig.Database),
		zap.Int32("max_conns", pc.MaxConns),
		zap.Int32("min_conns", pc.MinConns))
	return &Postgres{pool: pool}, nil
}

// PoolHandle returns the pool, or nil when none is configured.
func (p *Postgres) PoolHandle() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.pool
}

// Ping reports database reachability for /health/ready.
func (p *Postgres) Ping(ctx context.Context) error {
	pool := p.PoolHandle()
	if pool == nil {
		return ErrNoDatabase
	}
	return pool.Ping(ctx)
}

// Close releases the pool. Safe on a Postgres without one.
func (p *Postgres) Close() {
	if pool := p.PoolHandle(); pool != nil {
		pool.Close()
	}
}
