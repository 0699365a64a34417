package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/logger"
	"github.com/kmcoleman/bajarun-notify/internal/render"
)

// EventProcessor reacts to document-store change events: it finds the enabled
// triggers watching the event, filters them by their conditions, and
// dispatches one message per surviving trigger.
type EventProcessor struct {
	registry   TriggerRegistry
	dispatcher *Dispatcher
}

// NewEventProcessor wires an event processor.
func NewEventProcessor(registry TriggerRegistry, dispatcher *Dispatcher) *EventProcessor {
	return &EventProcessor{registry: registry, dispatcher: dispatcher}
}

// HandleEvent processes one change event.
//
// Triggers are handled sequentially and independently: a failed condition, a
// missing recipient field, or a failed dispatch on one trigger never stops the
// others. Dispatch failures are absorbed here (the outcome log is the only
// place they surface); the returned error is non-nil only when the trigger
// registry itself cannot be queried, which happens before any dispatch.
func (p *EventProcessor) HandleEvent(ctx context.Context, ev domain.ChangeEvent) error {
	triggers, err := p.registry.EnabledTriggers(ctx, ev.Collection, ev.Event)
	if err != nil {
		return fmt.Errorf("querying triggers for %s/%s: %w", ev.Collection, ev.Event, err)
	}
	if len(triggers) == 0 {
		logger.Debug("no enabled triggers for event",
			"collection", ev.Collection, "event", string(ev.Event))
		return nil
	}

	for _, trigger := range triggers {
		p.runTrigger(ctx, trigger, ev)
	}
	return nil
}

// runTrigger evaluates and, if it matches, dispatches a single trigger.
// Statistics are updated only after an attempted dispatch; triggers skipped
// for failed conditions or a missing recipient leave their counters untouched.
func (p *EventProcessor) runTrigger(ctx context.Context, trigger domain.Trigger, ev domain.ChangeEvent) {
	if !Matches(ev.Document, trigger.Conditions) {
		logger.Debug("trigger conditions not met",
			"trigger_id", trigger.ID, "document_id", ev.DocumentID)
		return
	}

	recipient := recipientFrom(ev.Document, trigger.RecipientField)
	if recipient == "" {
		logger.Warn("trigger has no resolvable recipient",
			"trigger_id", trigger.ID,
			"recipient_field", trigger.RecipientField,
			"document_id", ev.DocumentID)
		return
	}

	bindings := BuildBindings(ev.Document, trigger.DataMapping)
	err := p.dispatcher.Dispatch(ctx, trigger.TemplateID, recipient, bindings, DispatchContext{
		TriggerID:  trigger.ID,
		SentBy:     domain.SentBySystem,
		DocumentID: ev.DocumentID,
		Collection: ev.Collection,
	})
	if err != nil {
		// Absorbed: one document change may fan out to several independent
		// trigger dispatches, and the outcome log already has the failure.
		logger.Warn("trigger dispatch failed",
			"trigger_id", trigger.ID,
			"template_id", trigger.TemplateID,
			"error", err.Error())
	}

	if err := p.registry.RecordDispatch(ctx, trigger.ID, time.Now().UTC()); err != nil {
		logger.Error("recording trigger stats failed",
			"trigger_id", trigger.ID, "error", err.Error())
	}
}

// recipientFrom stringifies the configured recipient field. Only a non-empty
// string field is a usable address.
func recipientFrom(doc domain.Document, field string) string {
	if field == "" {
		return ""
	}
	v, ok := doc.Field(field)
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return render.Stringify(v)
	}
	return s
}
