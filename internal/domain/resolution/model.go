package resolution

import (
	"fmt"
	"strconv"

	"github.com/snomedx/snomedx/internal/domain/extract"
	"github.com/snomedx/snomedx/internal/domain/terminology"
)

// Stage is a step of the per value set state machine. Stages only move
// forward.
type Stage int

const (
	Extracted Stage = iota
	Resolving
	HistoryLookup
	ClosureExpansion
	TermAnnotation
	Emitted
)

func (s Stage) String() string {
	switch s {
	case Extracted:
		return "extracted"
	case Resolving:
		return "resolving"
	case HistoryLookup:
		return "history-lookup"
	case ClosureExpansion:
		return "closure-expansion"
	case TermAnnotation:
		return "term-annotation"
	case Emitted:
		return "emitted"
	default:
		return "unknown"
	}
}

// FailurePolicy says what a store failure in a stage does to the value set.
type FailurePolicy int

const (
	// Abort drops the value set; nothing is emitted for it.
	Abort FailurePolicy = iota
	// Degrade drops the failing stage's contribution and carries on.
	Degrade
)

func (p FailurePolicy) String() string {
	if p == Degrade {
		return "degrade"
	}
	return "abort"
}

// PolicyFor returns the failure policy of a stage.
func PolicyFor(s Stage) FailurePolicy {
	switch s {
	case ClosureExpansion, TermAnnotation:
		return Degrade
	default:
		return Abort
	}
}

// StageError reports the stage in which a value set was aborted.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Header is the fixed header of a value set sheet.
var Header = []string{
	"Description ID",
	"DisplayName",
	"IncludeChildren",
	"Concept ID from Description",
	"Concept ID from DisplayName",
	"Best Concept ID from Description or DisplayName",
	"New Concept ID Exists",
}

// Row is the resolution of one reference.
type Row struct {
	IdentifierText     string                 `json:"identifier_text"`
	DisplayTerm        string                 `json:"display_term"`
	IncludeDescendants bool                   `json:"include_descendants"`
	ByIdentifier       terminology.Resolution `json:"by_identifier"`
	ByDisplay          terminology.Resolution `json:"by_display"`
	Final              terminology.Resolution `json:"final"`
	NewIdentifier      string                 `json:"new_identifier,omitempty"`
}

// Values renders the row in Header order.
func (r Row) Values() []string {
	newID := r.NewIdentifier
	if newID == "" {
		newID = extract.Missing
	}
	return []string{
		r.IdentifierText,
		r.DisplayTerm,
		strconv.FormatBool(r.IncludeDescendants),
		r.ByIdentifier.String(),
		r.ByDisplay.String(),
		r.Final.String(),
		newID,
	}
}

// AnnotatedConcept is a member of the accumulated concept set with its term.
// Term is empty when the store has none or annotation was skipped.
type AnnotatedConcept struct {
	ID   string `json:"id"`
	Term string `json:"term"`
}

// ValueSetResult is the emitted outcome of one value set.
type ValueSetResult struct {
	Index        int                `json:"index"`
	Rows         []Row              `json:"rows"`
	Concepts     []AnnotatedConcept `json:"concepts"`
	Stage        Stage              `json:"-"`
	SkippedRoots []string           `json:"skipped_roots,omitempty"`
	TermsSkipped bool               `json:"terms_skipped,omitempty"`
}

// ConceptIDs returns the accumulated concept IDs in output order.
func (v *ValueSetResult) ConceptIDs() []string {
	out := make([]string, len(v.Concepts))
	for i, c := range v.Concepts {
		out[i] = c.ID
	}
	return out
}

// ReportResult collects the emitted value sets of one report.
type ReportResult struct {
	Name       string            `json:"name"`
	OutputName string            `json:"output_name"`
	ValueSets  []*ValueSetResult `json:"value_sets"`
	Processed  int               `json:"processed"`
	Total      int               `json:"total"`
	Failed     []string          `json:"failed,omitempty"`
}

// Counts returns (processed, total). A report with nothing processed
// yields (0, total) and produces no workbook.
func (r *ReportResult) Counts() (int, int) { return r.Processed, r.Total }
