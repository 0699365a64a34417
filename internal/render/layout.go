package render

import (
	"fmt"
	"time"

	"github.com/osteele/liquid"
)

// defaultLayout is the presentational envelope wrapped around every rendered
// body before delivery. It is a Liquid template so deployments can override it
// from config with the same placeholder vocabulary.
const defaultLayout = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{ subject | escape }}</title></head>
<body style="margin:0;padding:0;background-color:#f4f1ea;font-family:Arial,Helvetica,sans-serif;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
    <tr><td align="center" style="padding:24px 12px;">
      <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
        <tr><td style="background:#1d3557;color:#ffffff;padding:20px 32px;font-size:20px;font-weight:bold;">
          Bajarun
        </td></tr>
        <tr><td style="padding:28px 32px;color:#333333;font-size:15px;line-height:1.6;">
          {{ body }}
        </td></tr>
        <tr><td style="background:#f4f1ea;color:#8a8a8a;padding:16px 32px;font-size:12px;">
          You are receiving this message about your Bajarun trip registration.<br>
          &copy; {{ year }} Bajarun
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`

// Layout wraps rendered message bodies in a fixed branded HTML envelope.
// The body is inserted as-is: token substitutions come from documents and
// administrator-authored templates, which the engine treats as trusted.
type Layout struct {
	tpl *liquid.Template
}

// NewLayout parses the envelope template. An empty source selects the built-in
// default.
func NewLayout(source string) (*Layout, error) {
	if source == "" {
		source = defaultLayout
	}
	tpl, err := liquid.NewEngine().ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("parsing layout template: %w", err)
	}
	return &Layout{tpl: tpl}, nil
}

// Wrap produces the complete HTML message for a rendered subject/body pair.
func (l *Layout) Wrap(subject, body string) (string, error) {
	out, err := l.tpl.RenderString(map[string]any{
		"subject": subject,
		"body":    body,
		"year":    time.Now().Year(),
	})
	if err != nil {
		return "", fmt.Errorf("rendering layout: %w", err)
	}
	return out, nil
}
