package terminology

import (
	"context"
	"fmt"
)

// Row is one key/value pair returned by a batched lookup.
type Row struct {
	Key   string
	Value string
}

// BatchLookup is a read-only, batched key/value query against a relational
// store. A key may map to several rows. Implementations must not be called
// with an empty batch.
type BatchLookup interface {
	Lookup(ctx context.Context, keys []string) ([]Row, error)
}

// Relation names the table and columns a BatchLookup reads.
type Relation struct {
	Name  string
	Table string
	Key   string
	Value string
}

// Relations of the terminology, hierarchy and history stores.
var (
	DescriptionConcept = Relation{Name: "description->concept", Table: "sct", Key: "tui", Value: "cui"}
	TermConcept        = Relation{Name: "term->concept", Table: "sct", Key: "term", Value: "cui"}
	ConceptTerm        = Relation{Name: "concept->term", Table: "sct", Key: "cui", Value: "term"}
	ParentChild        = Relation{Name: "supertype->subtype", Table: "scttc", Key: "supertype_id", Value: "subtype_id"}
	OldNewConcept      = Relation{Name: "old->new concept", Table: "scthist", Key: "old_cui", Value: "new_cui"}
)

// selectSQL builds the lookup statement. where is the dialect-specific
// membership predicate on the key column.
func (r Relation) selectSQL(where string) string {
	return fmt.Sprintf(
		`SELECT %[2]s, COALESCE(%[3]s, '') FROM %[1]s WHERE %[4]s ORDER BY %[2]s, %[3]s`,
		r.Table, r.Key, r.Value, where)
}

// Stores bundles the lookups the resolution engine needs. Descriptions, Terms
// and ConceptTerms read the terminology store; Children the hierarchy store;
// History the history store.
type Stores struct {
	Descriptions BatchLookup
	Terms        BatchLookup
	ConceptTerms BatchLookup
	Children     BatchLookup
	History      BatchLookup
}

// firstValues collapses rows into a map keeping the first value per key.
// Lookup statements order by key then value, so when a key maps to several
// values the smallest one is kept.
func firstValues(rows []Row) map[string]string {
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		if _, ok := out[r.Key]; !ok {
			out[r.Key] = r.Value
		}
	}
	return out
}

// distinct returns keys without duplicates, preserving first-seen order.
func distinct(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
