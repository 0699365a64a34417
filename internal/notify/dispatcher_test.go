package notify_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
	"github.com/kmcoleman/bajarun-notify/internal/render"
)

// memTemplates is an in-memory template repository for unit testing.
type memTemplates struct {
	mu        sync.Mutex
	templates map[string]*domain.Template
}

func newMemTemplates(templates ...*domain.Template) *memTemplates {
	m := &memTemplates{templates: make(map[string]*domain.Template)}
	for _, t := range templates {
		m.templates[t.ID] = t
	}
	return m
}

func (m *memTemplates) GetTemplate(_ context.Context, id string) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, notify.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

// memOutcomes records appended entries, optionally failing every write.
type memOutcomes struct {
	mu      sync.Mutex
	entries []domain.OutcomeLogEntry
	failAll bool
}

func (m *memOutcomes) Append(_ context.Context, entry *domain.OutcomeLogEntry) error {
	if m.failAll {
		return errors.New("log store down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memOutcomes) all() []domain.OutcomeLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OutcomeLogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// fakeDeliverer captures sent messages and can fail selected recipients.
type fakeDeliverer struct {
	mu       sync.Mutex
	sent     []notify.OutboundMessage
	failFor  map[string]error
	failNext error
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{failFor: make(map[string]error)}
}

func (d *fakeDeliverer) Send(_ context.Context, msg notify.OutboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failNext; err != nil {
		d.failNext = nil
		return err
	}
	if err, ok := d.failFor[msg.To]; ok {
		return err
	}
	d.sent = append(d.sent, msg)
	return nil
}

func (d *fakeDeliverer) messages() []notify.OutboundMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notify.OutboundMessage, len(d.sent))
	copy(out, d.sent)
	return out
}

func testLayout(t *testing.T) *render.Layout {
	t.Helper()
	layout, err := render.NewLayout("")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return layout
}

func confirmationTemplate() *domain.Template {
	return &domain.Template{
		ID:      "tpl-1",
		Name:    "Trip Confirmation",
		Subject: "Your {{trip_name}} registration",
		Body:    "<p>Hi {{name}}, you're in for {{trip_name}}.</p>",
	}
}

func TestDispatchSuccess(t *testing.T) {
	outcomes := &memOutcomes{}
	deliverer := newFakeDeliverer()
	d := notify.NewDispatcher(newMemTemplates(confirmationTemplate()), outcomes, deliverer, testLayout(t))

	err := d.Dispatch(context.Background(), "tpl-1", "maria@example.com",
		map[string]any{"name": "Maria", "trip_name": "Baja Run"},
		notify.DispatchContext{TriggerID: "trg-1", SentBy: domain.SentBySystem, DocumentID: "doc-9", Collection: "registrations"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	msgs := deliverer.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Subject != "Your Baja Run registration" {
		t.Fatalf("subject: %q", msgs[0].Subject)
	}
	if !strings.Contains(msgs[0].HTML, "you're in for Baja Run") {
		t.Fatalf("body not rendered into layout: %s", msgs[0].HTML)
	}

	entries := outcomes.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 outcome entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != domain.DispatchSent {
		t.Fatalf("status: %s", e.Status)
	}
	if e.TriggerID != "trg-1" || e.DocumentID != "doc-9" || e.Collection != "registrations" {
		t.Fatalf("provenance not recorded: %+v", e)
	}
	if e.TemplateName != "Trip Confirmation" || e.SentBy != domain.SentBySystem {
		t.Fatalf("entry: %+v", e)
	}
	if e.Error != "" {
		t.Fatalf("unexpected error field: %q", e.Error)
	}
}

func TestDispatchDeliveryFailureLogged(t *testing.T) {
	outcomes := &memOutcomes{}
	deliverer := newFakeDeliverer()
	deliverer.failFor["down@example.com"] = errors.New("mailbox unavailable")
	d := notify.NewDispatcher(newMemTemplates(confirmationTemplate()), outcomes, deliverer, testLayout(t))

	err := d.Dispatch(context.Background(), "tpl-1", "down@example.com",
		map[string]any{"name": "X", "trip_name": "Y"}, notify.DispatchContext{SentBy: "admin@bajarun.app"})
	if err == nil {
		t.Fatal("expected delivery error")
	}

	entries := outcomes.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 outcome entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != domain.DispatchFailed {
		t.Fatalf("status: %s", e.Status)
	}
	if !strings.Contains(e.Error, "mailbox unavailable") {
		t.Fatalf("error: %q", e.Error)
	}
	// The subject renders before delivery, so the failure entry keeps it.
	if e.Subject != "Your Y registration" {
		t.Fatalf("subject: %q", e.Subject)
	}
}

func TestDispatchTemplateNotFound(t *testing.T) {
	outcomes := &memOutcomes{}
	d := notify.NewDispatcher(newMemTemplates(), outcomes, newFakeDeliverer(), testLayout(t))

	err := d.Dispatch(context.Background(), "missing", "a@b.com", nil, notify.DispatchContext{SentBy: "admin"})
	if !errors.Is(err, notify.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}

	entries := outcomes.all()
	if len(entries) != 1 {
		t.Fatalf("expected the failure to be audited, got %d entries", len(entries))
	}
	if entries[0].Subject != domain.SubjectRenderFailed {
		t.Fatalf("subject placeholder missing: %q", entries[0].Subject)
	}
	if entries[0].Status != domain.DispatchFailed {
		t.Fatalf("status: %s", entries[0].Status)
	}
}

func TestDispatchAuditWriteFailureDoesNotChangeResult(t *testing.T) {
	outcomes := &memOutcomes{failAll: true}
	deliverer := newFakeDeliverer()
	d := notify.NewDispatcher(newMemTemplates(confirmationTemplate()), outcomes, deliverer, testLayout(t))

	err := d.Dispatch(context.Background(), "tpl-1", "a@b.com",
		map[string]any{"name": "A", "trip_name": "B"}, notify.DispatchContext{SentBy: "admin"})
	if err != nil {
		t.Fatalf("audit outage must not fail a delivered dispatch: %v", err)
	}
	if len(deliverer.messages()) != 1 {
		t.Fatal("message was not delivered")
	}
}

func TestDispatchUnresolvedTokensStillSend(t *testing.T) {
	outcomes := &memOutcomes{}
	deliverer := newFakeDeliverer()
	d := notify.NewDispatcher(newMemTemplates(confirmationTemplate()), outcomes, deliverer, testLayout(t))

	err := d.Dispatch(context.Background(), "tpl-1", "a@b.com",
		map[string]any{"name": "A"}, notify.DispatchContext{SentBy: "admin"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	msgs := deliverer.messages()
	if msgs[0].Subject != "Your {{trip_name}} registration" {
		t.Fatalf("unresolved token must stay verbatim, got %q", msgs[0].Subject)
	}
	if outcomes.all()[0].Status != domain.DispatchSent {
		t.Fatal("render gaps are not dispatch failures")
	}
}
