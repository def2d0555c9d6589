// Package record implements the change-tracking layer shared by every
// persisted aggregate. An aggregate declares its storage fields in a Schema,
// marks fields dirty as its setters run, and flushes the dirty set as a single
// partial update. Marking a field the schema does not declare is a programming
// error and fails with ErrSchemaViolation.
package record

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaViolation reports a write to a field the aggregate's schema
	// does not declare.
	ErrSchemaViolation = errors.New("field not declared in schema")

	// ErrFieldClean reports a selective save of a field that was never
	// marked dirty.
	ErrFieldClean = errors.New("field not marked dirty")
)

// Schema is the immutable set of storage field names one aggregate type may
// write. It is built once per type and shared by all trackers.
type Schema struct {
	entity string
	fields []string
	index  map[string]struct{}
}

// NewSchema declares the writable fields of an aggregate type. The entity
// name only appears in error messages.
func NewSchema(entity string, fields ...string) *Schema {
	s := &Schema{
		entity: entity,
		fields: append([]string(nil), fields...),
		index:  make(map[string]struct{}, len(fields)),
	}
	for _, f := range fields {
		s.index[f] = struct{}{}
	}
	return s
}

// Has reports whether the schema declares the field.
func (s *Schema) Has(field string) bool {
	_, ok := s.index[field]
	return ok
}

// Fields returns every declared field in declaration order.
func (s *Schema) Fields() []string {
	return append([]string(nil), s.fields...)
}

// NewTracker returns an empty dirty set bound to the schema.
func (s *Schema) NewTracker() *Tracker {
	return &Tracker{schema: s}
}

// Tracker records which fields of one aggregate instance changed since the
// last successful save. It is not safe for concurrent use; each aggregate
// instance owns exactly one tracker.
type Tracker struct {
	schema *Schema
	dirty  []string
}

// Mark flags fields as changed. Marking is idempotent; marking an undeclared
// field fails with ErrSchemaViolation and leaves the dirty set untouched.
func (t *Tracker) Mark(fields ...string) error {
	for _, f := range fields {
		if !t.schema.Has(f) {
			return fmt.Errorf("%s.%s: %w", t.schema.entity, f, ErrSchemaViolation)
		}
	}
	for _, f := range fields {
		if !t.isDirty(f) {
			t.dirty = append(t.dirty, f)
		}
	}
	return nil
}

// IsDirty reports whether the field is pending a write.
func (t *Tracker) IsDirty(field string) bool {
	return t.isDirty(field)
}

func (t *Tracker) isDirty(field string) bool {
	for _, d := range t.dirty {
		if d == field {
			return true
		}
	}
	return false
}

// Dirty returns the pending fields in the order they were first marked.
func (t *Tracker) Dirty() []string {
	return append([]string(nil), t.dirty...)
}

// Clear empties the dirty set after a successful full save.
func (t *Tracker) Clear() {
	t.dirty = t.dirty[:0]
}

// TakeOnly removes exactly the given fields from the dirty set and returns
// them, for a partial save that must leave other pending changes pending.
// A field that is not dirty fails with ErrFieldClean; an undeclared field
// fails with ErrSchemaViolation. On error nothing is removed.
func (t *Tracker) TakeOnly(fields ...string) ([]string, error) {
	for _, f := range fields {
		if !t.schema.Has(f) {
			return nil, fmt.Errorf("%s.%s: %w", t.schema.entity, f, ErrSchemaViolation)
		}
		if !t.isDirty(f) {
			return nil, fmt.Errorf("%s.%s: %w", t.schema.entity, f, ErrFieldClean)
		}
	}
	taken := append([]string(nil), fields...)
	remaining := t.dirty[:0]
	for _, d := range t.dirty {
		keep := true
		for _, f := range fields {
			if d == f {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, d)
		}
	}
	t.dirty = remaining
	return taken, nil
}
