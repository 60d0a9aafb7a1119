package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SQLDriver is the database/sql driver used for the sqlx store backend.
const SQLDriver = "postgres"

// NewSQLX opens a database/sql connection through lib/pq and pings it.
func NewSQLX(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, SQLDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	return db, nil
}

// SQLXPools is the database/sql counterpart of Pools.
type SQLXPools struct {
	maxOpen, maxIdle int
	byDSN            map[string]*sqlx.DB
	order            []string
}

// NewSQLXPools creates an empty connection set.
func NewSQLXPools(maxOpen, maxIdle int) *SQLXPools {
	return &SQLXPools{maxOpen: maxOpen, maxIdle: maxIdle, byDSN: make(map[string]*sqlx.DB)}
}

// Open returns the handle for dsn, connecting on first use.
func (p *SQLXPools) Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if db, ok := p.byDSN[dsn]; ok {
		return db, nil
	}
	db, err := NewSQLX(ctx, dsn, p.maxOpen, p.maxIdle)
	if err != nil {
		return nil, err
	}
	p.byDSN[dsn] = db
	p.order = append(p.order, dsn)
	return db, nil
}

// Close closes every handle opened through p.
func (p *SQLXPools) Close() error {
	var first error
	for _, dsn := range p.order {
		if err := p.byDSN[dsn].Close(); err != nil && first == nil {
			first = err
		}
	}
	p.byDSN = make(map[string]*sqlx.DB)
	p.order = nil
	return first
}
