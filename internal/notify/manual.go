package notify

import (
	"context"

	"github.com/kmcoleman/bajarun-notify/internal/render"
)

// Service exposes the administrator-initiated dispatch paths: single send,
// bulk send, and render-only preview. Every entry point enforces the injected
// admin policy before touching any document.
type Service struct {
	dispatcher *Dispatcher
	templates  TemplateRepository
	policy     AdminPolicy
}

// NewService creates the manual dispatch service.
func NewService(dispatcher *Dispatcher, templates TemplateRepository, policy AdminPolicy) *Service {
	return &Service{dispatcher: dispatcher, templates: templates, policy: policy}
}

// BulkRecipient is one (recipient, bindings) pair of a bulk send.
type BulkRecipient struct {
	Recipient string         `json:"recipient"`
	Bindings  map[string]any `json:"bindings"`
}

// maxBulkErrors caps the error sample returned from a bulk send.
const maxBulkErrors = 10

// BulkResult summarizes a bulk send: totals plus a capped sample of error
// strings in failure order.
type BulkResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// PreviewResult is a rendered template with nothing sent and nothing logged.
type PreviewResult struct {
	TemplateID   string   `json:"template_id"`
	TemplateName string   `json:"template_name"`
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	Unresolved   []string `json:"unresolved,omitempty"`
}

// Send dispatches one message with caller-supplied bindings. Unlike
// trigger-driven sends, failures surface synchronously to the caller.
func (s *Service) Send(ctx context.Context, identity, templateID, recipient string, bindings map[string]any) error {
	if !s.policy.IsAdministrator(identity) {
		return ErrNotAuthorized
	}
	if recipient == "" {
		return ErrRecipientEmpty
	}
	return s.dispatcher.Dispatch(ctx, templateID, recipient, bindings, DispatchContext{SentBy: identity})
}

// BulkSend dispatches to each recipient sequentially. It never aborts on
// failure: every recipient is attempted and tallied, and the first
// maxBulkErrors error strings are returned as a sample.
func (s *Service) BulkSend(ctx context.Context, identity, templateID string, recipients []BulkRecipient) (*BulkResult, error) {
	if !s.policy.IsAdministrator(identity) {
		return nil, ErrNotAuthorized
	}

	result := &BulkResult{}
	for _, r := range recipients {
		var err error
		if r.Recipient == "" {
			err = ErrRecipientEmpty
			// An empty address still counts as an attempt so sent+failed
			// always equals the request size.
			s.logSkippedRecipient(ctx, identity, templateID)
		} else {
			err = s.dispatcher.Dispatch(ctx, templateID, r.Recipient, r.Bindings, DispatchContext{SentBy: identity})
		}
		if err != nil {
			result.Failed++
			if len(result.Errors) < maxBulkErrors {
				result.Errors = append(result.Errors, err.Error())
			}
			continue
		}
		result.Sent++
	}
	return result, nil
}

// Preview renders a template against caller-supplied bindings without
// dispatching or logging. Unresolved lists the token paths the bindings did
// not cover, so an administrator can spot mapping gaps before enabling a
// trigger.
func (s *Service) Preview(ctx context.Context, identity, templateID string, bindings map[string]any) (*PreviewResult, error) {
	if !s.policy.IsAdministrator(identity) {
		return nil, ErrNotAuthorized
	}

	tpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	subject := render.Render(tpl.Subject, bindings)
	body := render.Render(tpl.Body, bindings)

	var unresolved []string
	for _, v := range render.Variables(subject + "\n" + body) {
		unresolved = append(unresolved, v)
	}

	return &PreviewResult{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Subject:      subject,
		Body:         body,
		Unresolved:   unresolved,
	}, nil
}

// logSkippedRecipient writes the audit entry for a bulk row with no address.
// Audit completeness requires one entry per attempt even when the dispatcher
// is never reached.
func (s *Service) logSkippedRecipient(ctx context.Context, identity, templateID string) {
	s.dispatcher.appendFailure(ctx, templateID, "", identity, ErrRecipientEmpty)
}
