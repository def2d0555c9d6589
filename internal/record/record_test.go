package record

import (
	"errors"
	"testing"
)

func TestTracker_MarkAndDirty(t *testing.T) {
	schema := NewSchema("thing", "a", "b", "c")
	tr := schema.NewTracker()

	if err := tr.Mark("b"); err != nil {
		t.Fatalf("mark b: %v", err)
	}
	if err := tr.Mark("a", "b"); err != nil {
		t.Fatalf("mark a, b: %v", err)
	}

	dirty := tr.Dirty()
	if len(dirty) != 2 {
		t.Fatalf("expected 2 dirty fields, got %d", len(dirty))
	}
	// Insertion order, duplicates collapsed.
	if dirty[0] != "b" || dirty[1] != "a" {
		t.Errorf("unexpected dirty order: %v", dirty)
	}
	if !tr.IsDirty("a") || tr.IsDirty("c") {
		t.Error("dirty flags wrong")
	}
}

func TestTracker_MarkUndeclaredField(t *testing.T) {
	tr := NewSchema("thing", "a").NewTracker()

	err := tr.Mark("a", "nope")
	if !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
	// A failed mark must not leave partial state behind.
	if len(tr.Dirty()) != 0 {
		t.Errorf("dirty set not empty after failed mark: %v", tr.Dirty())
	}
}

func TestTracker_Clear(t *testing.T) {
	tr := NewSchema("thing", "a", "b").NewTracker()
	tr.Mark("a", "b")
	tr.Clear()
	if len(tr.Dirty()) != 0 {
		t.Errorf("expected empty dirty set after clear, got %v", tr.Dirty())
	}
}

func TestTracker_TakeOnly(t *testing.T) {
	tr := NewSchema("thing", "a", "b", "c").NewTracker()
	tr.Mark("a", "b", "c")

	taken, err := tr.TakeOnly("b")
	if err != nil {
		t.Fatalf("take b: %v", err)
	}
	if len(taken) != 1 || taken[0] != "b" {
		t.Errorf("unexpected taken set: %v", taken)
	}

	dirty := tr.Dirty()
	if len(dirty) != 2 || dirty[0] != "a" || dirty[1] != "c" {
		t.Errorf("remaining dirty set wrong: %v", dirty)
	}
}

func TestTracker_TakeOnlyCleanField(t *testing.T) {
	tr := NewSchema("thing", "a", "b").NewTracker()
	tr.Mark("a")

	if _, err := tr.TakeOnly("b"); !errors.Is(err, ErrFieldClean) {
		t.Fatalf("expected ErrFieldClean, got %v", err)
	}
	if _, err := tr.TakeOnly("nope"); !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
	// Failures leave the dirty set untouched.
	if !tr.IsDirty("a") {
		t.Error("dirty field lost after failed take")
	}
}
