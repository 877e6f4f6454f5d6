package qdrant

import (
	"encoding/json"

	"github.com/qdrant/go-client/qdrant"

	"github.com/vistra-labs/vistra/internal/domain/filter"
)

// toPayload converts map[string]any to a qdrant payload.
func toPayload(m map[string]any) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		payload[k] = toValue(v)
	}
	return payload
}

// toValue converts a Go value to *qdrant.Value.
func toValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case float32:
		return qdrant.NewValueDouble(float64(val))
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case bool:
		return qdrant.NewValueBool(val)
	case []string:
		values := make([]*qdrant.Value, len(val))
		for i, s := range val {
			values[i] = qdrant.NewValueString(s)
		}
		return qdrant.NewValueList(&qdrant.ListValue{Values: values})
	case []any:
		values := make([]*qdrant.Value, len(val))
		for i, item := range val {
			values[i] = toValue(item)
		}
		return qdrant.NewValueList(&qdrant.ListValue{Values: values})
	default:
		// Fall back to a JSON string
		data, _ := json.Marshal(v)
		return qdrant.NewValueString(string(data))
	}
}

// fromPayload converts a qdrant payload to map[string]any.
func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	m := make(map[string]any, len(payload))
	for k, v := range payload {
		m[k] = fromValue(v)
	}
	return m
}

// fromValue converts *qdrant.Value to a Go value.
func fromValue(v *qdrant.Value) any {
	switch v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.GetStringValue()
	case *qdrant.Value_DoubleValue:
		return v.GetDoubleValue()
	case *qdrant.Value_IntegerValue:
		return v.GetIntegerValue()
	case *qdrant.Value_BoolValue:
		return v.GetBoolValue()
	case *qdrant.Value_ListValue:
		list := v.GetListValue()
		if list == nil {
			return nil
		}
		result := make([]any, len(list.Values))
		for i, item := range list.Values {
			result[i] = fromValue(item)
		}
		return result
	default:
		return nil
	}
}

// translateFilter converts the typed filter conjunction into a qdrant filter
// with must semantics.
func translateFilter(f filter.Filter) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(f.Conditions()))
	for _, c := range f.Conditions() {
		switch {
		case c.IsMatch():
			conditions = append(conditions, qdrant.NewMatchKeyword(c.Key(), c.Match()))
		case c.IsRange():
			conditions = append(conditions, rangeCondition(c.Key(), c.Range()))
		}
	}
	return &qdrant.Filter{Must: conditions}
}

func rangeCondition(key string, r *filter.Range) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Range: &qdrant.Range{
					Gte: r.GTE(),
					Lte: r.LTE(),
				},
			},
		},
	}
}
