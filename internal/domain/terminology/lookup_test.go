package terminology

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// =========== Mock Lookup ===========

type mockLookup struct {
	rows  map[string][]string
	err   error
	calls int
	keys  [][]string
}

func newMockLookup(pairs ...string) *mockLookup {
	m := &mockLookup{rows: make(map[string][]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		m.rows[pairs[i]] = append(m.rows[pairs[i]], pairs[i+1])
	}
	return m
}

func (m *mockLookup) Lookup(_ context.Context, keys []string) ([]Row, error) {
	m.calls++
	m.keys = append(m.keys, append([]string(nil), keys...))
	if m.err != nil {
		return nil, m.err
	}
	var out []Row
	for _, k := range keys {
		for _, v := range m.rows[k] {
			out = append(out, Row{Key: k, Value: v})
		}
	}
	return out, nil
}

func newTestResolver(desc, terms, conceptTerms BatchLookup) *Resolver {
	return NewResolver(desc, terms, conceptTerms, zerolog.Nop())
}

// =========== Resolver Tests ===========

func TestResolver_IdentifierTakesPriority(t *testing.T) {
	desc := newMockLookup("123", "C1")
	terms := newMockLookup("Asthma", "C9")
	r := newTestResolver(desc, terms, newMockLookup())

	lk, err := r.Resolve(context.Background(), []string{"123"}, []string{"Asthma"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := lk.Resolve("123", "Asthma")
	if got.Final != FoundID("C1") {
		t.Errorf("expected final C1, got %+v", got.Final)
	}
	if got.ByDisplay != FoundID("C9") {
		t.Errorf("expected display match C9, got %+v", got.ByDisplay)
	}
}

func TestResolver_FallsBackToDisplay(t *testing.T) {
	r := newTestResolver(newMockLookup(), newMockLookup("Asthma", "C9"), newMockLookup())

	lk, err := r.Resolve(context.Background(), []string{"123"}, []string{"Asthma"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := lk.Resolve("123", "Asthma")
	if got.ByIdentifier.State != NotFound {
		t.Errorf("expected identifier path NotFound, got %v", got.ByIdentifier.State)
	}
	if got.Final != FoundID("C9") {
		t.Errorf("expected final C9, got %+v", got.Final)
	}
}

func TestResolver_NeitherPath(t *testing.T) {
	r := newTestResolver(newMockLookup(), newMockLookup(), newMockLookup())
	lk, err := r.Resolve(context.Background(), []string{"1"}, []string{"x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := lk.Resolve("1", "x").Final; got.State != NotFound {
		t.Errorf("expected NotFound, got %+v", got)
	}
}

func TestResolver_OneQueryPerPathWithDistinctKeys(t *testing.T) {
	desc := newMockLookup("1", "C1")
	terms := newMockLookup()
	r := newTestResolver(desc, terms, newMockLookup())

	_, err := r.Resolve(context.Background(), []string{"1", "2", "1"}, []string{"a", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.calls != 1 || terms.calls != 1 {
		t.Fatalf("expected one call per path, got %d and %d", desc.calls, terms.calls)
	}
	if !reflect.DeepEqual(desc.keys[0], []string{"1", "2"}) {
		t.Errorf("expected distinct identifier batch, got %v", desc.keys[0])
	}
}

func TestResolver_EmptyBatchSkipsQuery(t *testing.T) {
	desc, terms := newMockLookup(), newMockLookup()
	r := newTestResolver(desc, terms, newMockLookup())

	lk, err := r.Resolve(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.calls != 0 || terms.calls != 0 {
		t.Errorf("expected no store calls, got %d and %d", desc.calls, terms.calls)
	}
	if lk.ByIdentifier == nil || lk.ByDisplay == nil {
		t.Error("expected non-nil empty maps")
	}
}

func TestResolver_ErrorPropagates(t *testing.T) {
	desc := newMockLookup()
	desc.err = errors.New("connection reset")
	r := newTestResolver(desc, newMockLookup(), newMockLookup())

	_, err := r.Resolve(context.Background(), []string{"1"}, []string{"a"})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if !errors.Is(err, desc.err) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func TestResolver_Terms(t *testing.T) {
	ct := newMockLookup("C1", "Asthma", "C1", "Asthmatic disorder", "C2", "Diabetes")
	r := newTestResolver(newMockLookup(), newMockLookup(), ct)

	terms, err := r.Terms(context.Background(), []string{"C1", "C2", "C3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"C1": "Asthma", "C2": "Diabetes"}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("terms = %v, want %v", terms, want)
	}

	if _, err := r.Terms(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error for empty batch: %v", err)
	}
	if ct.calls != 1 {
		t.Errorf("expected empty batch to skip the store, got %d calls", ct.calls)
	}
}

// =========== History Tests ===========

func TestHistory_Totality(t *testing.T) {
	hist := newMockLookup("C1", "C10", "C3", "")
	h := NewHistoryResolver(hist, zerolog.Nop())

	input := []string{"C1", "C2", "C3"}
	got, err := h.Replacements(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if !reflect.DeepEqual(keys, input) {
		t.Fatalf("keys = %v, want exactly %v", keys, input)
	}
	if n, ok := got.Replacement("C1"); !ok || n != "C10" {
		t.Errorf("expected C1 -> C10, got %q %v", n, ok)
	}
	for _, id := range []string{"C2", "C3"} {
		if _, ok := got.Replacement(id); ok {
			t.Errorf("expected no replacement for %s", id)
		}
	}
}

func TestHistory_EmptyBatchShortCircuit(t *testing.T) {
	hist := newMockLookup()
	h := NewHistoryResolver(hist, zerolog.Nop())

	got, err := h.Replacements(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty mapping, got %v", got)
	}
	if hist.calls != 0 {
		t.Errorf("expected zero store calls, got %d", hist.calls)
	}
}

func TestHistory_NonEmptyReplacementWins(t *testing.T) {
	hist := newMockLookup("C1", "", "C1", "C7")
	h := NewHistoryResolver(hist, zerolog.Nop())

	got, err := h.Replacements(context.Background(), []string{"C1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := got.Replacement("C1"); n != "C7" {
		t.Errorf("expected C7, got %q", n)
	}
}

func TestHistory_ErrorPropagates(t *testing.T) {
	hist := newMockLookup()
	hist.err = errors.New("timeout")
	h := NewHistoryResolver(hist, zerolog.Nop())

	if _, err := h.Replacements(context.Background(), []string{"C1"}); err == nil {
		t.Fatal("expected error")
	}
}

// =========== Model Tests ===========

func TestResolution_Rendering(t *testing.T) {
	if FoundID("C1").String() != "C1" {
		t.Error("expected Found to render its ID")
	}
	if Missing().String() != NotFoundText {
		t.Errorf("expected NotFound to render %q", NotFoundText)
	}
	var zero Resolution
	if zero.State != Unresolved || zero.String() != "" {
		t.Error("expected zero value to be Unresolved")
	}
}

func TestResolution_NotFoundIsNotAnID(t *testing.T) {
	// A concept literally named "Not Found" is still a Found resolution.
	r := FoundID(NotFoundText)
	if !r.IsFound() {
		t.Error("expected Found state regardless of ID text")
	}
}

func TestResolution_JSON(t *testing.T) {
	data, err := json.Marshal(Resolved{ByIdentifier: FoundID("C1"), ByDisplay: Missing()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"by_identifier":"C1","by_display":"Not Found","final":null}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestConceptSet_Sorted(t *testing.T) {
	s := NewConceptSet("b", "a")
	s.Union(NewConceptSet("c", "a"))
	if got := s.Sorted(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Sorted() = %v", got)
	}
}

func TestRelation_SelectSQL(t *testing.T) {
	sql := ParentChild.selectSQL("supertype_id = ANY($1)")
	if !strings.Contains(sql, "FROM scttc WHERE supertype_id = ANY($1)") {
		t.Errorf("unexpected SQL: %s", sql)
	}
	if !strings.Contains(sql, "COALESCE(subtype_id, '')") {
		t.Errorf("expected value column to be coalesced: %s", sql)
	}
}
