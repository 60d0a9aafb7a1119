package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx pool and pings it. A store that cannot be reached is an
// error; callers treat it as fatal for the run.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Pools opens at most one pgx pool per distinct database URL, so stores that
// live in the same database share a pool.
type Pools struct {
	maxConns, minConns int32
	byURL              map[string]*pgxpool.Pool
	order              []string
}

// NewPools creates an empty pool set with the given per-pool limits.
func NewPools(maxConns, minConns int32) *Pools {
	return &Pools{maxConns: maxConns, minConns: minConns, byURL: make(map[string]*pgxpool.Pool)}
}

// Open returns the pool for databaseURL, connecting on first use.
func (p *Pools) Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if pool, ok := p.byURL[databaseURL]; ok {
		return pool, nil
	}
	pool, err := NewPool(ctx, databaseURL, p.maxConns, p.minConns)
	if err != nil {
		return nil, err
	}
	p.byURL[databaseURL] = pool
	p.order = append(p.order, databaseURL)
	return pool, nil
}

// Len returns the number of open pools.
func (p *Pools) Len() int { return len(p.order) }

// Close closes every pool opened through p.
func (p *Pools) Close() {
	for _, url := range p.order {
		p.byURL[url].Close()
	}
	p.byURL = make(map[string]*pgxpool.Pool)
	p.order = nil
}
