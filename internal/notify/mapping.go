package notify

import (
	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/render"
)

// BuildBindings produces the flat variable map a trigger's template is
// rendered against.
//
// Each mapping entry is either a token expression (contains "{{"), rendered
// against the full source document, or a plain field name read verbatim.
// Missing direct fields bind to the empty string, never nil: templates must
// always render to text.
func BuildBindings(doc domain.Document, mapping map[string]string) map[string]any {
	bindings := make(map[string]any, len(mapping))
	for variable, expr := range mapping {
		if render.HasToken(expr) {
			bindings[variable] = render.Render(expr, doc)
			continue
		}
		if v, ok := doc.Field(expr); ok && v != nil {
			bindings[variable] = v
		} else {
			bindings[variable] = ""
		}
	}
	return bindings
}
