package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/observability"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/logger"
	"github.com/kmcoleman/bajarun-notify/internal/render"
)

// DispatchContext carries the audit provenance of one dispatch: who initiated
// it and, for event-driven sends, which document change caused it.
type DispatchContext struct {
	TriggerID  string
	SentBy     string
	DocumentID string
	Collection string
}

// Dispatcher performs the render-then-send-then-log operation for one
// (template, recipient, bindings) triple.
type Dispatcher struct {
	templates TemplateRepository
	outcomes  OutcomeLog
	deliverer Deliverer
	layout    *render.Layout
}

// NewDispatcher wires a dispatcher from its collaborators.
func NewDispatcher(templates TemplateRepository, outcomes OutcomeLog, deliverer Deliverer, layout *render.Layout) *Dispatcher {
	return &Dispatcher{
		templates: templates,
		outcomes:  outcomes,
		deliverer: deliverer,
		layout:    layout,
	}
}

// Dispatch loads the template, renders subject and body, wraps the body in the
// presentational envelope, and hands the message to the delivery service.
//
// Exactly one outcome log entry is written per call, success or failure. The
// audit write itself is best-effort: a log-store outage is reported to the
// operational log but never changes the dispatch result.
func (d *Dispatcher) Dispatch(ctx context.Context, templateID, recipient string, bindings map[string]any, dc DispatchContext) error {
	entry := &domain.OutcomeLogEntry{
		ID:         uuid.New().String(),
		TriggerID:  dc.TriggerID,
		TemplateID: templateID,
		Recipient:  recipient,
		Subject:    domain.SubjectRenderFailed,
		SentAt:     time.Now().UTC(),
		SentBy:     dc.SentBy,
		DocumentID: dc.DocumentID,
		Collection: dc.Collection,
	}

	err := d.deliver(ctx, templateID, recipient, bindings, entry)
	if err != nil {
		entry.Status = domain.DispatchFailed
		entry.Error = err.Error()
	} else {
		entry.Status = domain.DispatchSent
		entry.Error = ""
	}
	observability.Dispatches.WithLabelValues(string(entry.Status)).Inc()

	if logErr := d.outcomes.Append(ctx, entry); logErr != nil {
		logger.Error("outcome log write failed",
			"template_id", templateID,
			"recipient", recipient,
			"error", logErr.Error())
	}
	return err
}

// appendFailure records a failed attempt that never reached the delivery
// steps, keeping the one-entry-per-attempt audit invariant for callers that
// reject a dispatch up front.
func (d *Dispatcher) appendFailure(ctx context.Context, templateID, recipient, sentBy string, cause error) {
	entry := &domain.OutcomeLogEntry{
		ID:         uuid.New().String(),
		TemplateID: templateID,
		Recipient:  recipient,
		Subject:    domain.SubjectRenderFailed,
		Status:     domain.DispatchFailed,
		Error:      cause.Error(),
		SentAt:     time.Now().UTC(),
		SentBy:     sentBy,
	}
	observability.Dispatches.WithLabelValues(string(domain.DispatchFailed)).Inc()
	if err := d.outcomes.Append(ctx, entry); err != nil {
		logger.Error("outcome log write failed",
			"template_id", templateID, "error", err.Error())
	}
}

// deliver runs the render and delivery steps of a dispatch, filling in the
// audit entry as the rendered values become available.
func (d *Dispatcher) deliver(ctx context.Context, templateID, recipient string, bindings map[string]any, entry *domain.OutcomeLogEntry) error {
	tpl, err := d.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	entry.TemplateName = tpl.Name

	subject := render.Render(tpl.Subject, bindings)
	body := render.Render(tpl.Body, bindings)
	entry.Subject = subject

	html, err := d.layout.Wrap(subject, body)
	if err != nil {
		return err
	}

	if err := d.deliverer.Send(ctx, OutboundMessage{To: recipient, Subject: subject, HTML: html}); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	return nil
}
