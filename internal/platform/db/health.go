package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SQLPinger adapts a sqlx handle to Pinger.
type SQLPinger struct {
	DB *sqlx.DB
}

func (p SQLPinger) Ping(ctx context.Context) error { return p.DB.PingContext(ctx) }

// Store is a named store checked by HealthHandler.
type Store struct {
	Name   string
	Pinger Pinger
}

// StoreHealth is the health of one store.
type StoreHealth struct {
	Name    string     `json:"name"`
	Healthy bool       `json:"healthy"`
	Error   string     `json:"error,omitempty"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

// Check pings every store and reports whether all of them answered.
func Check(ctx context.Context, stores []Store) ([]StoreHealth, bool) {
	out := make([]StoreHealth, 0, len(stores))
	healthy := true
	for _, s := range stores {
		h := StoreHealth{Name: s.Name, Healthy: true}
		if err := s.Pinger.Ping(ctx); err != nil {
			h.Healthy = false
			h.Error = err.Error()
			healthy = false
		}
		if pool, ok := s.Pinger.(*pgxpool.Pool); ok {
			h.Pool = GetPoolStats(pool)
		}
		out = append(out, h)
	}
	return out, healthy
}

// HealthHandler returns a handler for the database health check endpoint.
func HealthHandler(stores []Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		results, healthy := Check(ctx, stores)
		if !healthy {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"stores": results,
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"stores": results,
		})
	}
}
