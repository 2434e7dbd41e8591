package domain

import (
	"maps"
	"slices"
)

// ChangeTracker tracks which fields of which records were edited locally
// and not yet committed.
type ChangeTracker struct {
	dirty map[string]map[string]bool
}

// NewChangeTracker creates an empty ChangeTracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		dirty: make(map[string]map[string]bool),
	}
}

// MarkDirty marks a field of record id as modified.
func (ct *ChangeTracker) MarkDirty(id, field string) {
	fields, ok := ct.dirty[id]
	if !ok {
		fields = make(map[string]bool)
		ct.dirty[id] = fields
	}
	fields[field] = true
}

// Dirty reports whether record id has any pending edit.
func (ct *ChangeTracker) Dirty(id string) bool {
	return len(ct.dirty[id]) > 0
}

// DirtyFields returns the sorted list of edited fields of record id.
func (ct *ChangeTracker) DirtyFields(id string) []string {
	return slices.Sorted(maps.Keys(ct.dirty[id]))
}

// ClearFields forgets the given fields of record id.
func (ct *ChangeTracker) ClearFields(id string, fields []string) {
	set, ok := ct.dirty[id]
	if !ok {
		return
	}
	for _, f := range fields {
		delete(set, f)
	}
	if len(set) == 0 {
		delete(ct.dirty, id)
	}
}

// Clear forgets every edit of record id.
func (ct *ChangeTracker) Clear(id string) {
	delete(ct.dirty, id)
}

// Reset forgets everything.
func (ct *ChangeTracker) Reset() {
	ct.dirty = make(map[string]map[string]bool)
}

// HasChanges returns true if any record has pending edits.
func (ct *ChangeTracker) HasChanges() bool {
	return len(ct.dirty) > 0
}

// DirtyIDs returns the sorted ids of records with pending edits.
func (ct *ChangeTracker) DirtyIDs() []string {
	return slices.Sorted(maps.Keys(ct.dirty))
}
