package extract

import "strings"

// Namespace is the XML namespace of EMIS search exports.
const Namespace = "http://www.e-mis.com/emisopen"

// Missing is recorded for reference fields whose element is absent.
const Missing = "N/A"

// ignored lists identifier texts that are status or administrative codes rather
// than clinical concepts.
var ignored = map[string]bool{
	"ACTIVE":             true,
	"REVIEW":             true,
	"ENDED":              true,
	"N/A":                true,
	"385432009":          true,
	"C":                  true,
	"U":                  true,
	"R":                  true,
	"RD":                 true,
	"999011011000230107": true,
	"12464001000001103":  true,
	"None":               true,
}

// IsIgnored reports whether an identifier text is on the ignore list.
func IsIgnored(identifierText string) bool {
	return ignored[identifierText]
}

// RawReference is one coding reference as it appears in the source document.
// Exceptions is sorted and shared by every reference of the same group.
type RawReference struct {
	IdentifierText     string   `json:"identifier_text"`
	DisplayTerm        string   `json:"display_term"`
	IncludeDescendants bool     `json:"include_descendants"`
	Exceptions         []string `json:"exceptions,omitempty"`
}

// ExceptionSet returns the exceptions as a lookup set.
func (r RawReference) ExceptionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Exceptions))
	for _, e := range r.Exceptions {
		set[e] = struct{}{}
	}
	return set
}

func (r RawReference) key() string {
	flag := "0"
	if r.IncludeDescendants {
		flag = "1"
	}
	return strings.Join([]string{r.IdentifierText, r.DisplayTerm, flag, strings.Join(r.Exceptions, "\x1e")}, "\x1f")
}

// ValueSet is an ordered group of references extracted from one valueSet element.
type ValueSet []RawReference

// IdentifierTexts returns the identifier text of every reference, in order.
func (vs ValueSet) IdentifierTexts() []string {
	out := make([]string, len(vs))
	for i, r := range vs {
		out[i] = r.IdentifierText
	}
	return out
}

// DisplayTerms returns the display term of every reference, in order.
func (vs ValueSet) DisplayTerms() []string {
	out := make([]string, len(vs))
	for i, r := range vs {
		out[i] = r.DisplayTerm
	}
	return out
}

func (vs ValueSet) key() string {
	parts := make([]string, len(vs))
	for i, r := range vs {
		parts[i] = r.key()
	}
	return strings.Join(parts, "\x1d")
}

// Report is a named search from the document together with its value sets.
type Report struct {
	Name       string     `json:"name"`
	OutputName string     `json:"output_name"`
	ValueSets  []ValueSet `json:"value_sets"`
}
