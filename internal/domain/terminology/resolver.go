package terminology

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Resolver maps raw identifier texts and display terms to concept IDs and
// concept IDs back to terms. Store errors are returned unchanged in meaning;
// the caller decides whether they are fatal.
type Resolver struct {
	descriptions BatchLookup
	terms        BatchLookup
	conceptTerms BatchLookup
	log          zerolog.Logger
}

// NewResolver creates a Resolver over the terminology store lookups.
func NewResolver(descriptions, terms, conceptTerms BatchLookup, log zerolog.Logger) *Resolver {
	return &Resolver{
		descriptions: descriptions,
		terms:        terms,
		conceptTerms: conceptTerms,
		log:          log,
	}
}

// Resolve issues at most two batched queries: one for the distinct identifier
// texts and one for the distinct display terms. Empty batches are skipped.
func (r *Resolver) Resolve(ctx context.Context, identifierTexts, displayTerms []string) (*Lookups, error) {
	out := &Lookups{
		ByIdentifier: map[string]string{},
		ByDisplay:    map[string]string{},
	}

	if ids := distinct(identifierTexts); len(ids) > 0 {
		rows, err := r.descriptions.Lookup(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve description ids: %w", err)
		}
		out.ByIdentifier = firstValues(rows)
		r.log.Info().
			Int("queried", len(ids)).
			Int("matched", len(out.ByIdentifier)).
			Msg("matched description IDs to concept IDs")
	}

	if terms := distinct(displayTerms); len(terms) > 0 {
		rows, err := r.terms.Lookup(ctx, terms)
		if err != nil {
			return nil, fmt.Errorf("resolve display names: %w", err)
		}
		out.ByDisplay = firstValues(rows)
		r.log.Info().
			Int("queried", len(terms)).
			Int("matched", len(out.ByDisplay)).
			Msg("matched display names to concept IDs")
	}

	return out, nil
}

// Terms returns the term of every concept in ids that the store knows.
func (r *Resolver) Terms(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	rows, err := r.conceptTerms.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch terms: %w", err)
	}
	return firstValues(rows), nil
}
