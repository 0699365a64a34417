package domain

import (
	"errors"
	"time"
)

// TriggerType distinguishes rules fired by document-store change events from
// rules that exist only as saved presets for manual sends.
type TriggerType string

const (
	TriggerEventDriven TriggerType = "event-driven"
	TriggerManual      TriggerType = "manual"
)

// EventType enumerates the document-store change events a trigger can watch.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ConditionOperator enumerates the supported field predicates.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "=="
	OpNotEquals   ConditionOperator = "!="
	OpGreaterThan ConditionOperator = ">"
	OpLessThan    ConditionOperator = "<"
	OpContains    ConditionOperator = "contains"
	OpExists      ConditionOperator = "exists"
)

// Condition is one field-level predicate. Value is always carried as a string;
// numeric operators parse both sides at evaluation time.
type Condition struct {
	Field    string            `json:"field" dynamodbav:"field"`
	Operator ConditionOperator `json:"operator" dynamodbav:"operator"`
	Value    string            `json:"value" dynamodbav:"value"`
}

// Trigger binds a watched (collection, event) pair to a template, a recipient
// field, and a variable mapping. All conditions are ANDed; an empty condition
// list always matches.
//
// DataMapping maps template-variable name → source expression. An expression
// containing "{{" is rendered against the full source document; anything else
// is a direct field name read verbatim.
type Trigger struct {
	ID             string            `json:"id" dynamodbav:"id"`
	Name           string            `json:"name" dynamodbav:"name"`
	Description    string            `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Enabled        bool              `json:"enabled" dynamodbav:"enabled"`
	TemplateID     string            `json:"template_id" dynamodbav:"template_id"`
	TriggerType    TriggerType       `json:"trigger_type" dynamodbav:"trigger_type"`
	Collection     string            `json:"collection,omitempty" dynamodbav:"collection,omitempty"`
	Event          EventType         `json:"event,omitempty" dynamodbav:"event,omitempty"`
	Conditions     []Condition       `json:"conditions,omitempty" dynamodbav:"conditions,omitempty"`
	RecipientField string            `json:"recipient_field" dynamodbav:"recipient_field"`
	DataMapping    map[string]string `json:"data_mapping,omitempty" dynamodbav:"data_mapping,omitempty"`

	// Usage statistics, mutated only by the event processor via an atomic
	// store-level increment. SendCount counts attempted dispatches, not
	// successes, and never decreases.
	SendCount     int64      `json:"send_count" dynamodbav:"send_count"`
	LastTriggered *time.Time `json:"last_triggered,omitempty" dynamodbav:"last_triggered,omitempty"`

	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Validate checks the fields an administrator must supply.
func (tr *Trigger) Validate() error {
	if tr.Name == "" {
		return errors.New("trigger name is required")
	}
	if tr.TemplateID == "" {
		return errors.New("trigger template_id is required")
	}
	switch tr.TriggerType {
	case TriggerEventDriven:
		if tr.Collection == "" {
			return errors.New("event-driven trigger requires a collection")
		}
		switch tr.Event {
		case EventCreate, EventUpdate, EventDelete:
		default:
			return errors.New("event must be create, update, or delete")
		}
	case TriggerManual:
	default:
		return errors.New("trigger_type must be event-driven or manual")
	}
	for _, c := range tr.Conditions {
		switch c.Operator {
		case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, OpExists:
		default:
			return errors.New("unsupported condition operator: " + string(c.Operator))
		}
		if c.Field == "" {
			return errors.New("condition field is required")
		}
	}
	return nil
}

// Sentinel validation errors shared across domain types.
var (
	ErrTemplateNameRequired    = errors.New("template name is required")
	ErrTemplateContentRequired = errors.New("template needs a subject or body")
)
