package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonny/switchyard/internal/domain/model"
)

// EvaluateCondition tests a single condition against the request context.
// A malformed condition returns an error wrapping model.ErrMalformedCondition;
// callers treat it as non-matching.
func EvaluateCondition(c model.Condition, reqCtx model.RequestContext) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	field, ok := reqCtx.Lookup(c.Field)
	if !ok || field == nil {
		return c.Operator.Negated(), nil
	}

	switch c.Operator {
	case model.OpEquals:
		return valuesEqual(field, c.Value), nil
	case model.OpNotEquals:
		return !valuesEqual(field, c.Value), nil
	case model.OpGreaterThan:
		n, ok := toNumber(field)
		return ok && n > c.Value.Number, nil
	case model.OpLessThan:
		n, ok := toNumber(field)
		return ok && n < c.Value.Number, nil
	case model.OpContains:
		return containsValue(field, c.Value.Text()), nil
	case model.OpNotContains:
		return !containsValue(field, c.Value.Text()), nil
	case model.OpInSet:
		return inSet(field, c.Value.Members()), nil
	case model.OpNotInSet:
		return !inSet(field, c.Value.Members()), nil
	}
	return false, fmt.Errorf("%w: unhandled operator %q", model.ErrMalformedCondition, c.Operator)
}

// valuesEqual compares numerically when both sides are numeric and by
// string form otherwise.
func valuesEqual(field any, v model.ConditionValue) bool {
	want, wantNumeric := conditionNumber(v)
	if got, ok := toNumber(field); ok && wantNumeric {
		return got == want
	}
	return textOf(field) == v.Text()
}

func conditionNumber(v model.ConditionValue) (float64, bool) {
	switch v.Kind {
	case model.ValueNumber:
		return v.Number, true
	case model.ValueString:
		return parseNumber(v.String)
	}
	return 0, false
}

func containsValue(field any, needle string) bool {
	switch f := field.(type) {
	case string:
		return strings.Contains(f, needle)
	case []string:
		for _, item := range f {
			if item == needle {
				return true
			}
		}
		return false
	case []any:
		for _, item := range f {
			if textOf(item) == needle {
				return true
			}
		}
		return false
	default:
		return strings.Contains(textOf(field), needle)
	}
}

// inSet reports membership of the field's string form. A list field matches
// when any element is a member.
func inSet(field any, members []string) bool {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	has := func(s string) bool {
		_, ok := set[s]
		return ok
	}
	switch f := field.(type) {
	case []string:
		for _, item := range f {
			if has(item) {
				return true
			}
		}
		return false
	case []any:
		for _, item := range f {
			if has(textOf(item)) {
				return true
			}
		}
		return false
	default:
		return has(textOf(field))
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseNumber(n)
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
