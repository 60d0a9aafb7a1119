package terminology

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ClosureEngine computes descendant closures over the hierarchy store's
// parent -> child relation.
type ClosureEngine struct {
	children BatchLookup
	log      zerolog.Logger
}

// NewClosureEngine creates a ClosureEngine over the hierarchy store.
func NewClosureEngine(children BatchLookup, log zerolog.Logger) *ClosureEngine {
	return &ClosureEngine{children: children, log: log}
}

// Descendants returns root together with every concept reachable from it
// through the child relation. It expands breadth-first, one batched query per
// level, so the number of queries is bounded by the depth of the hierarchy.
//
// A concept in exceptions is never added, so its subtree is pruned except
// for parts reachable through another path. The root itself is never pruned. An empty root yields an
// empty set without querying.
func (e *ClosureEngine) Descendants(ctx context.Context, root string, exceptions map[string]struct{}) (ConceptSet, error) {
	if root == "" {
		return ConceptSet{}, nil
	}

	closure := NewConceptSet(root)
	frontier := []string{root}
	rounds := 0

	for len(frontier) > 0 {
		rounds++
		rows, err := e.children.Lookup(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("children of %s (round %d): %w", root, rounds, err)
		}

		var next, excluded []string
		for _, r := range rows {
			child := r.Value
			if child == "" || closure.Has(child) {
				continue
			}
			if _, skip := exceptions[child]; skip {
				excluded = append(excluded, child)
				continue
			}
			closure.Add(child)
			next = append(next, child)
		}

		if len(excluded) > 0 {
			excluded = distinct(excluded)
			sort.Strings(excluded)
			e.log.Info().
				Str("concept_id", root).
				Str("excluded", strings.Join(excluded, ", ")).
				Msg("excluded child codes")
		}
		frontier = next
	}

	e.log.Info().
		Str("concept_id", root).
		Int("iterations", rounds).
		Int("child_codes", len(closure)-1).
		Msg("fetched child codes")

	return closure, nil
}
