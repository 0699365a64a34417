package notify_test

import (
	"testing"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
)

func TestBuildBindingsDirectField(t *testing.T) {
	doc := domain.Document{"first_name": "Maria", "spots": float64(2)}
	got := notify.BuildBindings(doc, map[string]string{
		"name":  "first_name",
		"spots": "spots",
	})
	if got["name"] != "Maria" {
		t.Fatalf("name: got %v", got["name"])
	}
	if got["spots"] != float64(2) {
		t.Fatalf("spots: got %v", got["spots"])
	}
}

func TestBuildBindingsTokenExpression(t *testing.T) {
	doc := domain.Document{"first_name": "Maria", "last_name": "Lopez"}
	got := notify.BuildBindings(doc, map[string]string{
		"full_name": "{{first_name}} {{last_name}}",
	})
	if got["full_name"] != "Maria Lopez" {
		t.Fatalf("got %v", got["full_name"])
	}
}

func TestBuildBindingsMissingField(t *testing.T) {
	got := notify.BuildBindings(domain.Document{}, map[string]string{
		"name": "first_name",
	})
	if got["name"] != "" {
		t.Fatalf("missing direct field must map to empty string, got %v", got["name"])
	}
}

func TestBuildBindingsUnresolvedExpression(t *testing.T) {
	got := notify.BuildBindings(domain.Document{}, map[string]string{
		"greeting": "Hi {{first_name}}",
	})
	// Token expressions keep render semantics: unresolved tokens stay verbatim.
	if got["greeting"] != "Hi {{first_name}}" {
		t.Fatalf("got %v", got["greeting"])
	}
}

func TestBuildBindingsEmptyMapping(t *testing.T) {
	got := notify.BuildBindings(domain.Document{"a": "b"}, nil)
	if len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}
