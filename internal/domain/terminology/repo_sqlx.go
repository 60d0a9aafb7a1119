package terminology

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// =========== database/sql (sqlx) ===========

type sqlxLookup struct {
	db  *sqlx.DB
	rel Relation
	sql string
}

// NewSQLXLookup returns a BatchLookup over rel for any database/sql driver.
// The IN list is expanded per call with sqlx.In and rebound to the driver's
// placeholder style.
func NewSQLXLookup(db *sqlx.DB, rel Relation) BatchLookup {
	return &sqlxLookup{
		db:  db,
		rel: rel,
		sql: rel.selectSQL(rel.Key + " IN (?)"),
	}
}

// bind expands the IN list for keys in the driver's placeholder style.
func (l *sqlxLookup) bind(keys []string) (string, []interface{}, error) {
	query, args, err := sqlx.In(l.sql, keys)
	if err != nil {
		return "", nil, fmt.Errorf("%s bind: %w", l.rel.Name, err)
	}
	return l.db.Rebind(query), args, nil
}

func (l *sqlxLookup) Lookup(ctx context.Context, keys []string) ([]Row, error) {
	query, args, err := l.bind(keys)
	if err != nil {
		return nil, err
	}
	rows, err := l.db.QueryxContext(ctx, query, args...)
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

// NewSQLXStores wires the five lookups to database/sql handles.
func NewSQLXStores(terminology, hierarchy, history *sqlx.DB) Stores {
	return Stores{
		Descriptions: NewSQLXLookup(terminology, DescriptionConcept),
		Terms:        NewSQLXLookup(terminology, TermConcept),
		ConceptTerms: NewSQLXLookup(terminology, ConceptTerm),
		Children:     NewSQLXLookup(hierarchy, ParentChild),
		History:      NewSQLXLookup(history, OldNewConcept),
	}
}
