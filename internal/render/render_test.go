package render_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/kmcoleman/bajarun-notify/internal/render"
)

func TestRenderSimpleToken(t *testing.T) {
	out := render.Render("Hello {{name}}!", map[string]any{"name": "Maria"})
	if out != "Hello Maria!" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderNestedPath(t *testing.T) {
	bindings := map[string]any{
		"trip": map[string]any{"location": "La Paz"},
	}
	out := render.Render("See you in {{trip.location}}", bindings)
	if out != "See you in La Paz" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderWhitespaceInsideBraces(t *testing.T) {
	out := render.Render("Hi {{ name }}", map[string]any{"name": "Sam"})
	if out != "Hi Sam" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderUnresolvedTokenLeftVerbatim(t *testing.T) {
	out := render.Render("Hi {{name}}, trip {{trip.date}}", map[string]any{"name": "Sam"})
	if out != "Hi Sam, trip {{trip.date}}" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderNilValueLeftVerbatim(t *testing.T) {
	out := render.Render("Value: {{v}}", map[string]any{"v": nil})
	if out != "Value: {{v}}" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderPathThroughNonMap(t *testing.T) {
	out := render.Render("{{a.b}}", map[string]any{"a": "scalar"})
	if out != "{{a.b}}" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderNumberFormatting(t *testing.T) {
	// JSON numbers arrive as float64; whole values must not grow a decimal.
	out := render.Render("{{count}} of {{rate}}", map[string]any{
		"count": float64(3),
		"rate":  2.5,
	})
	if out != "3 of 2.5" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderBool(t *testing.T) {
	out := render.Render("paid: {{paid}}", map[string]any{"paid": true})
	if out != "paid: true" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderRepeatedToken(t *testing.T) {
	out := render.Render("{{n}} {{n}}", map[string]any{"n": "x"})
	if out != "x x" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderIdempotent(t *testing.T) {
	bindings := map[string]any{"name": "Dana"}
	once := render.Render("Hi {{name}}, {{trip_name}} awaits", bindings)
	if got := render.Render(once, bindings); got != once {
		t.Fatalf("second pass changed output: %q vs %q", got, once)
	}
}

func TestHasToken(t *testing.T) {
	if !render.HasToken("a {{b}}") {
		t.Fatal("expected true")
	}
	if render.HasToken("plain field") {
		t.Fatal("expected false")
	}
}

func TestVariables(t *testing.T) {
	got := render.Variables("Hi {{name}}, {{trip.date}} and {{name}} again")
	want := []string{"name", "trip.date"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestVariablesNone(t *testing.T) {
	if got := render.Variables("nothing here"); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestLayoutWrap(t *testing.T) {
	layout, err := render.NewLayout("")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}

	html, err := layout.Wrap("Your spot & details", "<p>Hello</p>")
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if !strings.Contains(html, "Your spot &amp; details") {
		t.Fatalf("subject not escaped into layout: %s", html)
	}
	if !strings.Contains(html, "<p>Hello</p>") {
		t.Fatalf("body not embedded raw: %s", html)
	}
}

func TestLayoutCustomSource(t *testing.T) {
	layout, err := render.NewLayout("<title>{{ subject }}</title>{{ body }}")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	html, err := layout.Wrap("S", "B")
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if html != "<title>S</title>B" {
		t.Fatalf("got %q", html)
	}
}
