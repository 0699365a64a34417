package domain

// Document is the generic field-name → value view of a document-store record.
// The condition evaluator and data mapper depend only on this shape, never on
// a concrete schema. Values are the loose JSON union: string, float64, bool,
// nil, map[string]any, []any.
type Document map[string]any

// Field returns the named top-level field and whether it is present.
func (d Document) Field(name string) (any, bool) {
	v, ok := d[name]
	return v, ok
}

// ChangeEvent is one document-store change notification for a watched
// collection, as delivered by the change feed.
type ChangeEvent struct {
	Collection string    `json:"collection"`
	Event      EventType `json:"event"`
	DocumentID string    `json:"document_id"`
	Document   Document  `json:"document"`
}
