package notify

import (
	"strconv"
	"strings"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/render"
)

// Matches evaluates a trigger's conditions against a source document.
// Conditions are ANDed and evaluation short-circuits on the first failure.
// An empty list matches unconditionally.
func Matches(doc domain.Document, conditions []domain.Condition) bool {
	for _, c := range conditions {
		if !matchOne(doc, c) {
			return false
		}
	}
	return true
}

func matchOne(doc domain.Document, c domain.Condition) bool {
	v, present := doc.Field(c.Field)

	switch c.Operator {
	case domain.OpEquals:
		return stringifyField(v, present) == c.Value
	case domain.OpNotEquals:
		return stringifyField(v, present) != c.Value
	case domain.OpContains:
		return strings.Contains(stringifyField(v, present), c.Value)
	case domain.OpGreaterThan:
		f, t, ok := numericOperands(v, present, c.Value)
		return ok && f > t
	case domain.OpLessThan:
		f, t, ok := numericOperands(v, present, c.Value)
		return ok && f < t
	case domain.OpExists:
		if c.Value == "false" {
			return !truthy(v, present)
		}
		return truthy(v, present)
	default:
		// Unknown operators never match; Trigger.Validate rejects them at
		// write time so this only covers hand-edited documents.
		return false
	}
}

func stringifyField(v any, present bool) string {
	if !present || v == nil {
		return ""
	}
	return render.Stringify(v)
}

// numericOperands coerces both sides of a >/< comparison. A parse failure on
// either side makes the comparison fail rather than matching spuriously.
func numericOperands(v any, present bool, target string) (float64, float64, bool) {
	if !present || v == nil {
		return 0, 0, false
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, 0, false
		}
		f = parsed
	default:
		return 0, 0, false
	}
	tf, err := strconv.ParseFloat(strings.TrimSpace(target), 64)
	if err != nil {
		return 0, 0, false
	}
	return f, tf, true
}

// truthy mirrors the loose-document notion of a usable value: present,
// non-nil, non-empty, not false, not zero.
func truthy(v any, present bool) bool {
	if !present || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
