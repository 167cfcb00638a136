package gateway

import (
	"time"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
)

// ExtractList finds the array inside the envelopes the backend has used over
// time: a bare array, {data: [...]}, {contacts: [...]},
// {data: {suggestions: [...]}} or {suggestions: [...]}. Anything else is an
// empty list.
func ExtractList(v any) []any {
	candidates := []any{
		v,
		dig(v, config.FieldData),
		dig(v, config.FieldContacts),
		dig(v, config.FieldData, config.FieldSuggestions),
		dig(v, config.FieldSuggestions),
		dig(v, config.FieldData, config.FieldContacts),
	}
	for _, c := range candidates {
		if list, ok := c.([]any); ok {
			return list
		}
	}
	return []any{}
}

// ExtractObject unwraps {data: {...}} and returns the object itself
// otherwise. Non-object payloads (acks, booleans) return nil.
func ExtractObject(v any) map[string]any {
	if inner, ok := dig(v, config.FieldData).(map[string]any); ok {
		return inner
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return nil
}

// dig walks nested objects by key; it returns nil on the first miss.
func dig(v any, keys ...string) any {
	for _, k := range keys {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = obj[k]
	}
	return v
}

// first returns the first non-nil value of vs.
func first(vs ...any) any {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

// messageOf extracts a human readable message from an error payload.
func messageOf(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return contact.Text(obj, config.FieldMessage, config.FieldError)
}

// parseExpiry accepts an RFC 3339 timestamp or an epoch-millis number.
func parseExpiry(v any) *int64 {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			ms := ts.UnixMilli()
			return &ms
		}
	case float64:
		if t > 0 {
			ms := int64(t)
			return &ms
		}
	}
	return nil
}

// boolOf reads a boolean flag, treating absence as false.
func boolOf(obj map[string]any, key string) bool {
	b, _ := obj[key].(bool)
	return b
}
