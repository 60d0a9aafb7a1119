package terminology

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// =========== PostgreSQL (pgx) ===========

type pgLookup struct {
	db  queryable
	rel Relation
	sql string
}

// NewPGLookup returns a BatchLookup over rel that sends the whole batch as a
// single array parameter.
func NewPGLookup(pool *pgxpool.Pool, rel Relation) BatchLookup {
	return newPGLookup(pool, rel)
}

func newPGLookup(db queryable, rel Relation) *pgLookup {
	return &pgLookup{
		db:  db,
		rel: rel,
		sql: rel.selectSQL(rel.Key + " = ANY($1)"),
	}
}

func (l *pgLookup) Lookup(ctx context.Context, keys []string) ([]Row, error) {
	rows, err := l.db.Query(ctx, l.sql, keys)
	if err != nil {
		return nil, fmt.Errorf("%s lookup: %w", l.rel.Name, err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("%s scan: %w", l.rel.Name, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// NewPGStores wires the five lookups to their pools. The terminology,
// hierarchy and history stores may be the same pool.
func NewPGStores(terminology, hierarchy, history *pgxpool.Pool) Stores {
	return Stores{
		Descriptions: NewPGLookup(terminology, DescriptionConcept),
		Terms:        NewPGLookup(terminology, TermConcept),
		ConceptTerms: NewPGLookup(terminology, ConceptTerm),
		Children:     NewPGLookup(hierarchy, ParentChild),
		History:      NewPGLookup(history, OldNewConcept),
	}
}
