package domain

import (
	"encoding/json"
	"time"

	"github.com/syncable/syncable"
)

// Document is a named, schema-typed JSON value with an append-only change
// log. Schema, name and identifier are immutable after creation; the value
// mutates only through the change engine. Between updates the value is
// expected to satisfy the schema.
type Document struct {
	ID           string
	Name         string
	Schema       json.RawMessage
	Value        any
	InitialValue any
	Owner        string
	CreatedAt    time.Time
	Changes      []syncable.ProcessedChange
}

// LastChange returns the most recent log entry, or nil for a fresh document.
func (d *Document) LastChange() *syncable.ProcessedChange {
	if len(d.Changes) == 0 {
		return nil
	}
	return &d.Changes[len(d.Changes)-1]
}

// Summary builds the public view of the document used on create responses.
func (d *Document) Summary() syncable.DocumentSummary {
	return syncable.DocumentSummary{
		ID:        d.ID,
		Name:      d.Name,
		Schema:    d.Schema,
		Value:     d.Value,
		Owner:     d.Owner,
		CreatedAt: d.CreatedAt.UnixMilli(),
	}
}
