package resolution

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/snomedx/snomedx/internal/domain/extract"
	"github.com/snomedx/snomedx/internal/domain/terminology"
)

// Service drives a value set through resolution, history lookup, closure
// expansion and term annotation. It holds no per-run state and is safe to
// share between goroutines as long as the underlying lookups are.
type Service struct {
	resolver *terminology.Resolver
	history  *terminology.HistoryResolver
	closure  *terminology.ClosureEngine
	log      zerolog.Logger
}

// NewService wires the resolution engine over the given stores.
func NewService(stores terminology.Stores, log zerolog.Logger) *Service {
	return &Service{
		resolver: terminology.NewResolver(stores.Descriptions, stores.Terms, stores.ConceptTerms, log),
		history:  terminology.NewHistoryResolver(stores.History, log),
		closure:  terminology.NewClosureEngine(stores.Children, log),
		log:      log,
	}
}

// ProcessDocument parses an XML export and resolves every report in it.
// Nothing is written.
func (s *Service) ProcessDocument(ctx context.Context, r io.Reader) ([]*ReportResult, error) {
	root, err := extract.Parse(r)
	if err != nil {
		return nil, err
	}

	reports := extract.Reports(root)
	s.log.Info().Int("reports", len(reports)).Msg("found reports")
	for _, rep := range reports {
		s.log.Info().Str("report", rep.Name).Msg("report")
	}

	out := make([]*ReportResult, 0, len(reports))
	for _, rep := range reports {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, s.ProcessReport(ctx, rep))
	}
	return out, nil
}

// ProcessReport resolves the value sets of one report in order. A value set
// aborted by a store failure is left out of the result and counted as
// unprocessed.
func (s *Service) ProcessReport(ctx context.Context, rep extract.Report) *ReportResult {
	log := s.log.With().Str("report", rep.Name).Logger()
	log.Info().Int("value_sets", len(rep.ValueSets)).Msg("processing report")

	result := &ReportResult{
		Name:       rep.Name,
		OutputName: rep.OutputName,
		ValueSets:  []*ValueSetResult{},
		Total:      len(rep.ValueSets),
	}

	// Found concepts across the whole report.
	seen := terminology.NewConceptSet()

	for i, vs := range rep.ValueSets {
		index := i + 1
		log.Info().Int("value_set", index).Int("references", len(vs)).Msg("value set")

		vr, err := s.ProcessValueSet(ctx, vs, seen)
		if err != nil {
			log.Error().Err(err).Int("value_set", index).Msg("value set aborted")
			result.Failed = append(result.Failed, fmt.Sprintf("%d: %v", index, err))
			continue
		}
		vr.Index = index
		result.ValueSets = append(result.ValueSets, vr)
		log.Info().
			Int("value_set", index).
			Int("concepts", len(vr.Concepts)).
			Msg("value set processed")
	}
	result.Processed = len(result.ValueSets)

	log.Info().
		Int("processed", result.Processed).
		Int("total", result.Total).
		Int("distinct_concepts", len(seen)).
		Msg("report processed")
	return result
}

// ProcessValueSet runs one value set to Emitted. Store failures while
// resolving or looking up history abort the value set with a *StageError.
// Failures during closure expansion or term annotation are logged and that
// stage's contribution is dropped. Found concepts are added to seen.
func (s *Service) ProcessValueSet(ctx context.Context, vs extract.ValueSet, seen terminology.ConceptSet) (*ValueSetResult, error) {
	result := &ValueSetResult{Stage: Extracted}

	result.Stage = Resolving
	lookups, err := s.resolver.Resolve(ctx, vs.IdentifierTexts(), vs.DisplayTerms())
	if err != nil {
		return nil, &StageError{Stage: Resolving, Err: err}
	}
	resolved := make([]terminology.Resolved, len(vs))
	var finals []string
	for i, ref := range vs {
		resolved[i] = lookups.Resolve(ref.IdentifierText, ref.DisplayTerm)
		if resolved[i].Final.IsFound() {
			finals = append(finals, resolved[i].Final.ID)
		}
	}

	result.Stage = HistoryLookup
	history, err := s.history.Replacements(ctx, finals)
	if err != nil {
		return nil, &StageError{Stage: HistoryLookup, Err: err}
	}

	result.Stage = ClosureExpansion
	concepts := terminology.NewConceptSet()
	closures := make(map[string]terminology.ConceptSet)
	skipped := make(map[string]bool)

	for i, ref := range vs {
		res := resolved[i]
		row := Row{
			IdentifierText:     ref.IdentifierText,
			DisplayTerm:        ref.DisplayTerm,
			IncludeDescendants: ref.IncludeDescendants,
			ByIdentifier:       res.ByIdentifier,
			ByDisplay:          res.ByDisplay,
			Final:              res.Final,
		}
		if !res.Final.IsFound() {
			result.Rows = append(result.Rows, row)
			continue
		}

		final := res.Final.ID
		concepts.Add(final)
		seen.Add(final)
		roots := []string{final}
		if newID, ok := history.Replacement(final); ok {
			row.NewIdentifier = newID
			concepts.Add(newID)
			roots = append(roots, newID)
		}
		result.Rows = append(result.Rows, row)

		if !ref.IncludeDescendants {
			continue
		}
		for _, root := range roots {
			key := root + "\x1f" + strings.Join(ref.Exceptions, "\x1e")
			closure, ok := closures[key]
			if !ok {
				closure, err = s.closure.Descendants(ctx, root, ref.ExceptionSet())
				if err != nil {
					s.log.Warn().Err(err).
						Str("concept_id", root).
						Stringer("policy", PolicyFor(ClosureExpansion)).
						Msg("did not include child codes")
					if !skipped[root] {
						skipped[root] = true
						result.SkippedRoots = append(result.SkippedRoots, root)
					}
					continue
				}
				closures[key] = closure
			}
			concepts.Union(closure)
		}
	}

	result.Stage = TermAnnotation
	ids := concepts.Sorted()
	terms, err := s.resolver.Terms(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).
			Int("concepts", len(ids)).
			Stringer("policy", PolicyFor(TermAnnotation)).
			Msg("exception while fetching terms")
		// The concept IDs are still emitted, with empty terms.
		result.TermsSkipped = true
		terms = nil
	}
	result.Concepts = make([]AnnotatedConcept, len(ids))
	for i, id := range ids {
		result.Concepts[i] = AnnotatedConcept{ID: id, Term: terms[id]}
	}

	result.Stage = Emitted
	return result, nil
}
