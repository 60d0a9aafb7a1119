package terminology

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// HistoryResolver maps inactive concept IDs to the concept that replaced them.
type HistoryResolver struct {
	history BatchLookup
	log     zerolog.Logger
}

// NewHistoryResolver creates a HistoryResolver over the history store.
func NewHistoryResolver(history BatchLookup, log zerolog.Logger) *HistoryResolver {
	return &HistoryResolver{history: history, log: log}
}

// Replacements returns a mapping whose keys are exactly the distinct IDs in
// old. An empty batch returns an empty mapping without querying the store.
func (h *HistoryResolver) Replacements(ctx context.Context, old []string) (HistoryMapping, error) {
	ids := distinct(old)
	if len(ids) == 0 {
		return HistoryMapping{}, nil
	}

	rows, err := h.history.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("history lookup: %w", err)
	}

	// Rows with an empty replacement must not hide a real one for the same key.
	found := make(map[string]string, len(rows))
	for _, r := range rows {
		if found[r.Key] == "" {
			found[r.Key] = r.Value
		}
	}
	out := make(HistoryMapping, len(ids))
	for _, id := range ids {
		newID := found[id]
		out[id] = newID
		if newID != "" {
			h.log.Info().Str("old_concept_id", id).Str("new_concept_id", newID).Msg("concept ID has been superseded")
		}
	}
	return out, nil
}
