// Package render implements {{path}} token substitution for notification
// templates and mapping expressions.
//
// Tokens that cannot be resolved are left in place verbatim. That is a
// deliberate debugging aid: an unmapped variable shows up literally in the
// delivered message instead of silently disappearing, so a misconfigured
// trigger is visible in the outcome log and in the recipient's inbox during
// testing.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// tokenPattern matches {{identifier}} and {{nested.path.segments}}, with
// optional whitespace inside the braces.
var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*)\s*\}\}`)

// HasToken reports whether s contains at least one substitution token. The
// data mapper uses this to decide between expression evaluation and a direct
// field read.
func HasToken(s string) bool {
	return strings.Contains(s, "{{")
}

// Render substitutes every resolvable token in template against bindings.
// Unresolvable tokens (missing path segment, or a path resolving to nil) keep
// their original text. Resolved non-string values are stringified.
func Render(template string, bindings map[string]any) string {
	if template == "" || !HasToken(template) {
		return template
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]
		v, ok := lookup(bindings, strings.Split(path, "."))
		if !ok || v == nil {
			return token
		}
		return Stringify(v)
	})
}

// Variables returns the unique token paths referenced by template, in order of
// first appearance. The admin surface uses this to seed mapping forms.
func Variables(template string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// lookup walks bindings by path. The boolean result distinguishes "path not
// present" from "present but nil": both leave the token unsubstituted, but
// only the former should be reported as an unknown variable.
func lookup(bindings map[string]any, path []string) (any, bool) {
	var current any = bindings
	for _, segment := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Stringify converts a resolved binding value to the text inserted into the
// rendered output. Floats that carry integral values print without a decimal
// point so document numbers (which arrive as float64 from JSON) read
// naturally.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}
