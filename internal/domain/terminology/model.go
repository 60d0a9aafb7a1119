package terminology

import (
	"encoding/json"
	"sort"
)

// NotFoundText is how an unresolvable reference is rendered in output.
const NotFoundText = "Not Found"

// ResolutionState distinguishes the three states of a resolved identifier.
type ResolutionState int

const (
	Unresolved ResolutionState = iota
	Found
	NotFound
)

func (s ResolutionState) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not-found"
	default:
		return "unresolved"
	}
}

// Resolution is the outcome of mapping a raw reference to a concept ID.
// The zero value is Unresolved.
type Resolution struct {
	State ResolutionState
	ID    string
}

// FoundID returns a Found resolution for id.
func FoundID(id string) Resolution { return Resolution{State: Found, ID: id} }

// Missing returns a NotFound resolution.
func Missing() Resolution { return Resolution{State: NotFound} }

// IsFound reports whether the resolution carries a concept ID.
func (r Resolution) IsFound() bool { return r.State == Found }

// String renders the resolution for output rows.
func (r Resolution) String() string {
	switch r.State {
	case Found:
		return r.ID
	case NotFound:
		return NotFoundText
	default:
		return ""
	}
}

// MarshalJSON encodes Found as the ID, NotFound as "Not Found" and
// Unresolved as null.
func (r Resolution) MarshalJSON() ([]byte, error) {
	if r.State == Unresolved {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

// lookupResolution turns a map lookup into a Found or NotFound resolution.
func lookupResolution(m map[string]string, key string) Resolution {
	if id, ok := m[key]; ok {
		return FoundID(id)
	}
	return Missing()
}

// Lookups holds the two batch lookups made for one value set.
type Lookups struct {
	ByIdentifier map[string]string
	ByDisplay    map[string]string
}

// Resolved is the per-reference outcome of both lookup paths.
type Resolved struct {
	ByIdentifier Resolution `json:"by_identifier"`
	ByDisplay    Resolution `json:"by_display"`
	Final        Resolution `json:"final"`
}

// Resolve applies the preference rule: an identifier-text match wins over a
// display-term match, and NotFound is returned when neither matched.
func (l *Lookups) Resolve(identifierText, displayTerm string) Resolved {
	byID := lookupResolution(l.ByIdentifier, identifierText)
	byDisplay := lookupResolution(l.ByDisplay, displayTerm)

	final := byID
	if !final.IsFound() {
		final = byDisplay
	}
	return Resolved{ByIdentifier: byID, ByDisplay: byDisplay, Final: final}
}

// HistoryMapping maps old concept IDs to their replacement. Every queried ID
// is a key; the empty string means no replacement exists.
type HistoryMapping map[string]string

// Replacement returns the new ID for old, if one exists.
func (h HistoryMapping) Replacement(old string) (string, bool) {
	n := h[old]
	return n, n != ""
}

// ConceptSet is a set of concept IDs.
type ConceptSet map[string]struct{}

// NewConceptSet returns a set holding ids.
func NewConceptSet(ids ...string) ConceptSet {
	s := make(ConceptSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s ConceptSet) Add(id string) { s[id] = struct{}{} }

func (s ConceptSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Union adds every member of other to s.
func (s ConceptSet) Union(other ConceptSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Sorted returns the members in ascending order.
func (s ConceptSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
