// Package store defines the document-store contracts the notification engine
// and the admin API persist through.
//
// Two implementations exist: store/dynamo (production, single-table DynamoDB)
// and store/memory (local mode and tests). Both satisfy the narrow interfaces
// in internal/notify as well as the full admin contracts here.
package store

import (
	"context"
	"time"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
)

// TemplateStore is the admin-facing template repository. GetTemplate returns
// notify.ErrTemplateNotFound for unknown ids.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)
	ListTemplates(ctx context.Context) ([]domain.Template, error)
	CreateTemplate(ctx context.Context, t *domain.Template) error
	UpdateTemplate(ctx context.Context, t *domain.Template) error
	DeleteTemplate(ctx context.Context, id string) error
}

// TriggerStore is the admin-facing trigger registry. GetTrigger returns
// notify.ErrTriggerNotFound for unknown ids.
type TriggerStore interface {
	GetTrigger(ctx context.Context, id string) (*domain.Trigger, error)
	ListTriggers(ctx context.Context) ([]domain.Trigger, error)
	CreateTrigger(ctx context.Context, tr *domain.Trigger) error
	UpdateTrigger(ctx context.Context, tr *domain.Trigger) error
	DeleteTrigger(ctx context.Context, id string) error
	SetTriggerEnabled(ctx context.Context, id string, enabled bool) error

	// EnabledTriggers and RecordDispatch serve the event processor; see
	// notify.TriggerRegistry for their contracts.
	EnabledTriggers(ctx context.Context, collection string, event domain.EventType) ([]domain.Trigger, error)
	RecordDispatch(ctx context.Context, triggerID string, at time.Time) error
}

// OutcomeFilter narrows an outcome-log listing. Zero values mean "no filter";
// Limit <= 0 applies the implementation default.
type OutcomeFilter struct {
	Status            domain.DispatchStatus
	TriggerID         string
	RecipientContains string
	Limit             int
}

// OutcomeStore appends and lists dispatch audit records. Entries are
// append-only: there is no update or delete.
type OutcomeStore interface {
	Append(ctx context.Context, entry *domain.OutcomeLogEntry) error
	ListOutcomes(ctx context.Context, f OutcomeFilter) ([]domain.OutcomeLogEntry, error)
}

// Store is the full document-store surface a backend provides.
type Store interface {
	TemplateStore
	TriggerStore
	OutcomeStore
}
