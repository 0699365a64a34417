package notify

import (
	"context"
	"time"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
)

// TemplateRepository provides point reads of message templates.
// Implementations must be safe for concurrent use.
type TemplateRepository interface {
	// GetTemplate returns a single template. Returns ErrTemplateNotFound if
	// it doesn't exist.
	GetTemplate(ctx context.Context, id string) (*domain.Template, error)
}

// TriggerRegistry provides the trigger queries and statistics updates the
// event processor needs. Implementations must be safe for concurrent use.
type TriggerRegistry interface {
	// EnabledTriggers returns the enabled event-driven triggers watching the
	// given (collection, event) pair, in registry-query order.
	EnabledTriggers(ctx context.Context, collection string, event domain.EventType) ([]domain.Trigger, error)

	// RecordDispatch increments the trigger's send counter and stamps its
	// last-triggered time. The increment must be atomic at the storage level:
	// concurrent event-processing contexts may race on the same trigger.
	RecordDispatch(ctx context.Context, triggerID string, at time.Time) error
}

// OutcomeLog appends immutable audit records of dispatch attempts.
type OutcomeLog interface {
	Append(ctx context.Context, entry *domain.OutcomeLogEntry) error
}

// OutboundMessage is the narrow delivery boundary. Any non-error return from
// Send is success; the engine does not inspect provider status beyond that.
type OutboundMessage struct {
	To      string
	Subject string
	HTML    string
}

// Deliverer hands a complete message to the external delivery service.
type Deliverer interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// AdminPolicy is the injected authorization capability evaluated by the
// manual dispatch entry points. The engine embeds no identity values.
type AdminPolicy interface {
	IsAdministrator(identity string) bool
}

// AdminList is a fixed-set AdminPolicy.
type AdminList []string

// IsAdministrator reports whether identity is in the list.
func (a AdminList) IsAdministrator(identity string) bool {
	for _, admin := range a {
		if admin == identity {
			return true
		}
	}
	return false
}
