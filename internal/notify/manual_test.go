package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kmcoleman/bajarun-notify/internal/notify"
)

const testAdmin = "admin@bajarun.app"

func newTestService(t *testing.T) (*notify.Service, *memOutcomes, *fakeDeliverer) {
	t.Helper()
	templates := newMemTemplates(confirmationTemplate())
	outcomes := &memOutcomes{}
	deliverer := newFakeDeliverer()
	dispatcher := notify.NewDispatcher(templates, outcomes, deliverer, testLayout(t))
	svc := notify.NewService(dispatcher, templates, notify.AdminList{testAdmin})
	return svc, outcomes, deliverer
}

func TestSendRequiresAdmin(t *testing.T) {
	svc, outcomes, _ := newTestService(t)

	err := svc.Send(context.Background(), "user@bajarun.app", "tpl-1", "a@b.com", nil)
	if !errors.Is(err, notify.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if len(outcomes.all()) != 0 {
		t.Fatal("a rejected caller must not reach the dispatcher")
	}
}

func TestSendEmptyRecipient(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.Send(context.Background(), testAdmin, "tpl-1", "", nil)
	if !errors.Is(err, notify.ErrRecipientEmpty) {
		t.Fatalf("expected ErrRecipientEmpty, got %v", err)
	}
}

func TestSendRecordsIdentity(t *testing.T) {
	svc, outcomes, _ := newTestService(t)
	err := svc.Send(context.Background(), testAdmin, "tpl-1", "a@b.com",
		map[string]any{"name": "A", "trip_name": "B"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	entries := outcomes.all()
	if len(entries) != 1 || entries[0].SentBy != testAdmin {
		t.Fatalf("entries: %+v", entries)
	}
	if entries[0].TriggerID != "" {
		t.Fatal("manual sends carry no trigger id")
	}
}

func TestBulkSendTallies(t *testing.T) {
	svc, outcomes, deliverer := newTestService(t)
	deliverer.failFor["bad@example.com"] = errors.New("bounced")

	result, err := svc.BulkSend(context.Background(), testAdmin, "tpl-1", []notify.BulkRecipient{
		{Recipient: "one@example.com", Bindings: map[string]any{"name": "One", "trip_name": "T"}},
		{Recipient: "bad@example.com"},
		{Recipient: ""},
		{Recipient: "two@example.com", Bindings: map[string]any{"name": "Two", "trip_name": "T"}},
		{Recipient: "three@example.com", Bindings: map[string]any{"name": "Three", "trip_name": "T"}},
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}

	if result.Sent != 3 || result.Failed != 2 {
		t.Fatalf("result: %+v", result)
	}
	if result.Sent+result.Failed != 5 {
		t.Fatal("every recipient must be tallied")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors: %v", result.Errors)
	}

	// One audit entry per attempt, including the empty-recipient row.
	if got := len(outcomes.all()); got != 5 {
		t.Fatalf("expected 5 outcome entries, got %d", got)
	}
}

func TestBulkSendErrorsCapped(t *testing.T) {
	svc, _, deliverer := newTestService(t)

	var recipients []notify.BulkRecipient
	for i := 0; i < 15; i++ {
		addr := "x@example.com"
		deliverer.failFor[addr] = errors.New("down")
		recipients = append(recipients, notify.BulkRecipient{Recipient: addr})
	}

	result, err := svc.BulkSend(context.Background(), testAdmin, "tpl-1", recipients)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if result.Failed != 15 {
		t.Fatalf("failed: %d", result.Failed)
	}
	if len(result.Errors) != 10 {
		t.Fatalf("error sample must cap at 10, got %d", len(result.Errors))
	}
}

func TestBulkSendRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.BulkSend(context.Background(), "user@bajarun.app", "tpl-1", []notify.BulkRecipient{
		{Recipient: "a@b.com"},
	})
	if !errors.Is(err, notify.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestPreviewRendersWithoutSending(t *testing.T) {
	svc, outcomes, deliverer := newTestService(t)

	result, err := svc.Preview(context.Background(), testAdmin, "tpl-1",
		map[string]any{"trip_name": "Baja Run"})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	if result.Subject != "Your Baja Run registration" {
		t.Fatalf("subject: %q", result.Subject)
	}
	if result.TemplateName != "Trip Confirmation" {
		t.Fatalf("name: %q", result.TemplateName)
	}
	// "name" was not bound, so it surfaces as unresolved.
	if len(result.Unresolved) != 1 || result.Unresolved[0] != "name" {
		t.Fatalf("unresolved: %v", result.Unresolved)
	}

	if len(deliverer.messages()) != 0 {
		t.Fatal("preview must not send")
	}
	if len(outcomes.all()) != 0 {
		t.Fatal("preview must not write outcome entries")
	}
}

func TestPreviewUnknownTemplate(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Preview(context.Background(), testAdmin, "missing", nil)
	if !errors.Is(err, notify.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestPreviewRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Preview(context.Background(), "user@bajarun.app", "tpl-1", nil)
	if !errors.Is(err, notify.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}
