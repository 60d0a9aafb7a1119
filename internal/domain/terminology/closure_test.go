package terminology

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClosure(pairs ...string) (*ClosureEngine, *mockLookup) {
	m := newMockLookup(pairs...)
	return NewClosureEngine(m, zerolog.Nop()), m
}

func TestClosure_Reflexive(t *testing.T) {
	e, _ := newTestClosure()
	got, err := e.Descendants(context.Background(), "C1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Sorted(), []string{"C1"}) {
		t.Errorf("expected {C1}, got %v", got.Sorted())
	}
}

func TestClosure_Transitive(t *testing.T) {
	e, m := newTestClosure(
		"73211009", "44054006",
		"73211009", "46635009",
		"44054006", "313436004",
		"313436004", "1001",
	)
	got, err := e.Descendants(context.Background(), "73211009", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"1001", "313436004", "44054006", "46635009", "73211009"}
	if !reflect.DeepEqual(got.Sorted(), want) {
		t.Errorf("closure = %v, want %v", got.Sorted(), want)
	}
	// One query per level plus the final empty round.
	if m.calls != 4 {
		t.Errorf("expected 4 rounds, got %d", m.calls)
	}
}

func TestClosure_DescendantScenario(t *testing.T) {
	e, _ := newTestClosure("C2", "203", "C2", "205", "205", "206")
	got, err := e.Descendants(context.Background(), "C2", map[string]struct{}{"205": {}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Sorted(), []string{"203", "C2"}) {
		t.Errorf("closure = %v, want [203 C2]", got.Sorted())
	}
}

func TestClosure_ExceptionPruning(t *testing.T) {
	pairs := []string{"R", "A", "A", "X", "X", "Y"}
	exceptions := map[string]struct{}{"X": {}}

	e, _ := newTestClosure(pairs...)
	pruned, err := e.Descendants(context.Background(), "R", exceptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	full, err := e.Descendants(context.Background(), "R", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pruned.Has("X") || pruned.Has("Y") {
		t.Errorf("expected X and its subtree pruned, got %v", pruned.Sorted())
	}
	if !full.Has("X") || !full.Has("Y") {
		t.Errorf("expected X and Y without exceptions, got %v", full.Sorted())
	}
}

func TestClosure_ExceptionNeverPrunesRoot(t *testing.T) {
	e, _ := newTestClosure("R", "A")
	got, err := e.Descendants(context.Background(), "R", map[string]struct{}{"R": {}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Has("R") || !got.Has("A") {
		t.Errorf("expected root kept, got %v", got.Sorted())
	}
}

func TestClosure_CycleTerminates(t *testing.T) {
	e, m := newTestClosure("A", "B", "B", "A")
	got, err := e.Descendants(context.Background(), "A", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Sorted(), []string{"A", "B"}) {
		t.Errorf("closure = %v, want [A B]", got.Sorted())
	}
	if m.calls != 2 {
		t.Errorf("expected 2 rounds, got %d", m.calls)
	}
}

func TestClosure_MultipleParentsDeduplicated(t *testing.T) {
	e, m := newTestClosure("R", "A", "R", "B", "A", "C", "B", "C", "C", "D")
	got, err := e.Descendants(context.Background(), "R", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Sorted(), []string{"A", "B", "C", "D", "R"}) {
		t.Errorf("closure = %v", got.Sorted())
	}
	// C is queried once even though two parents lead to it.
	if !reflect.DeepEqual(m.keys[2], []string{"C"}) {
		t.Errorf("expected third round frontier [C], got %v", m.keys[2])
	}
}

func TestClosure_Idempotent(t *testing.T) {
	e, _ := newTestClosure("R", "A", "A", "B")
	first, err := e.Descendants(context.Background(), "R", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := e.Descendants(context.Background(), "R", nil)
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical closures from an unchanged store")
	}

	// Expanding every member again adds nothing new.
	union := NewConceptSet()
	for id := range first {
		sub, err := e.Descendants(context.Background(), id, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		union.Union(sub)
	}
	if !reflect.DeepEqual(union, first) {
		t.Errorf("closure of closure = %v, want %v", union.Sorted(), first.Sorted())
	}
}

func TestClosure_EmptyRootNoQuery(t *testing.T) {
	e, m := newTestClosure("", "A")
	got, err := e.Descendants(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty set, got %v", got.Sorted())
	}
	if m.calls != 0 {
		t.Errorf("expected no store calls, got %d", m.calls)
	}
}

func TestClosure_StoreError(t *testing.T) {
	e, m := newTestClosure()
	m.err = errors.New("relation scttc does not exist")
	if _, err := e.Descendants(context.Background(), "C1", nil); !errors.Is(err, m.err) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
