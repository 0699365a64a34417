package domain

import "time"

// DispatchStatus is the final state of one dispatch attempt.
type DispatchStatus string

const (
	DispatchSent   DispatchStatus = "sent"
	DispatchFailed DispatchStatus = "failed"
)

// SentBySystem marks trigger-driven sends in the outcome log, where no
// administrator identity is involved.
const SentBySystem = "system-trigger"

// SubjectRenderFailed is the sentinel recorded when the outcome log entry is
// written before a subject could be rendered.
const SubjectRenderFailed = "(render failed)"

// OutcomeLogEntry is the immutable audit record of one dispatch attempt.
// Exactly one entry is written per attempt, success or failure, regardless of
// entry path. Entries are never mutated or deleted by the engine.
type OutcomeLogEntry struct {
	ID           string         `json:"id" dynamodbav:"id"`
	TriggerID    string         `json:"trigger_id,omitempty" dynamodbav:"trigger_id,omitempty"` // empty for manual sends
	TemplateID   string         `json:"template_id" dynamodbav:"template_id"`
	TemplateName string         `json:"template_name" dynamodbav:"template_name"`
	Recipient    string         `json:"recipient" dynamodbav:"recipient"`
	Subject      string         `json:"subject" dynamodbav:"subject"`
	Status       DispatchStatus `json:"status" dynamodbav:"status"`
	Error        string         `json:"error,omitempty" dynamodbav:"error,omitempty"` // present iff failed
	SentAt       time.Time      `json:"sent_at" dynamodbav:"sent_at"`
	SentBy       string         `json:"sent_by" dynamodbav:"sent_by"`
	DocumentID   string         `json:"document_id,omitempty" dynamodbav:"document_id,omitempty"` // event-driven only
	Collection   string         `json:"collection,omitempty" dynamodbav:"collection,omitempty"`   // event-driven only
}
