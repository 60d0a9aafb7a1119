package main

import (
	"context"
	"fmt"

	"github.com/snomedx/snomedx/internal/config"
	"github.com/snomedx/snomedx/internal/domain/terminology"
	"github.com/snomedx/snomedx/internal/platform/db"
)

// openedStores holds the lookups over the three stores and the handles
// behind them.
type openedStores struct {
	Lookups terminology.Stores
	Health  []db.Store
	close   func()
}

func (s *openedStores) Close() {
	if s.close != nil {
		s.close()
	}
}

// openStores connects to the terminology, closure and history stores with
// the configured driver. Any store that cannot be reached fails the call.
func openStores(ctx context.Context, cfg *config.Config) (*openedStores, error) {
	switch cfg.StoreDriver {
	case config.DriverPGX:
		pools := db.NewPools(cfg.DBMaxConns, cfg.DBMinConns)
		term, err := pools.Open(ctx, cfg.DatabasePath)
		if err != nil {
			pools.Close()
			return nil, fmt.Errorf("terminology store: %w", err)
		}
		closure, err := pools.Open(ctx, cfg.TransitiveClosureDBPath)
		if err != nil {
			pools.Close()
			return nil, fmt.Errorf("closure store: %w", err)
		}
		history, err := pools.Open(ctx, cfg.HistoryDBPath)
		if err != nil {
			pools.Close()
			return nil, fmt.Errorf("history store: %w", err)
		}
		return &openedStores{
			Lookups: terminology.NewPGStores(term, closure, history),
			Health: []db.Store{
				{Name: "terminology", Pinger: term},
				{Name: "closure", Pinger: closure},
				{Name: "history", Pinger: history},
			},
			close: pools.Close,
		}, nil

	case config.DriverPostgres:
		pools := db.NewSQLXPools(int(cfg.DBMaxConns), int(cfg.DBMinConns))
		closeAll := func() { _ = pools.Close() }
		term, err := pools.Open(ctx, cfg.DatabasePath)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("terminology store: %w", err)
		}
		closure, err := pools.Open(ctx, cfg.TransitiveClosureDBPath)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("closure store: %w", err)
		}
		history, err := pools.Open(ctx, cfg.HistoryDBPath)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("history store: %w", err)
		}
		return &openedStores{
			Lookups: terminology.NewSQLXStores(term, closure, history),
			Health: []db.Store{
				{Name: "terminology", Pinger: db.SQLPinger{DB: term}},
				{Name: "closure", Pinger: db.SQLPinger{DB: closure}},
				{Name: "history", Pinger: db.SQLPinger{DB: history}},
			},
			close: closeAll,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
