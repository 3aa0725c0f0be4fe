package rest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storeshift/backend/internal/domain/migration"
)

// DecodeList decodes a JSON array of objects into payloads, keeping each
// object's key order.
func DecodeList(raw []json.RawMessage) ([]*migration.Payload, error) {
	out := make([]*migration.Payload, 0, len(raw))
	for i, item := range raw {
		p, err := migration.PayloadFromJSON(item)
		if err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Lookup follows path through nested objects starting at p
func Lookup(p *migration.Payload, path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	v, ok := p.Get(path[0])
	for _, key := range path[1:] {
		if !ok {
			return nil, false
		}
		switch m := v.(type) {
		case map[string]any:
			v, ok = m[key]
		case *migration.Payload:
			v, ok = m.Get(key)
		default:
			return nil, false
		}
	}
	return v, ok
}

// String reads a value as a string; numbers and booleans are formatted
func String(p *migration.Payload, path ...string) string {
	v, ok := Lookup(p, path...)
	if !ok {
		return ""
	}
	return AsString(v)
}

// AsString formats a scalar JSON value; objects and arrays yield ""
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

// Decimal reads a money-like value; unparsable values yield zero
func Decimal(p *migration.Payload, path ...string) decimal.Decimal {
	return ParseDecimal(String(p, path...))
}

// ParseDecimal parses s, returning zero when s is empty or invalid
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// IntPtr reads an integer value, nil when absent or not numeric
func IntPtr(p *migration.Payload, path ...string) *int {
	s := String(p, path...)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil
		}
		n = int(f)
	}
	return &n
}

// Time reads an RFC 3339 timestamp (with or without zone), nil when absent
func Time(p *migration.Payload, path ...string) *time.Time {
	s := String(p, path...)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Objects reads an array of objects at key
func Objects(p *migration.Payload, key string) []map[string]any {
	v, ok := p.Get(key)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// MergeFields returns static followed by the sample's keys not already listed
func MergeFields(static []string, sample *migration.Payload) []string {
	seen := make(map[string]bool, len(static))
	out := make([]string, 0, len(static)+sample.Len())
	for _, f := range static {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, k := range sample.Keys() {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Body builds a request body from typed defaults overlaid with the record's
// mapped fields. Mapped values win.
func Body(rec *migration.Record, defaults map[string]any) map[string]any {
	body := make(map[string]any, len(defaults)+rec.MappedFields.Len())
	for k, v := range defaults {
		if !isEmpty(v) {
			body[k] = v
		}
	}
	rec.MappedFields.Range(func(k string, v any) bool {
		body[k] = v
		return true
	})
	return body
}

// Missing returns the first of required that body lacks or holds empty
func Missing(body map[string]any, required ...string) string {
	for _, k := range required {
		if isEmpty(body[k]) {
			return k
		}
	}
	return ""
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []map[string]any:
		return len(x) == 0
	default:
		return false
	}
}
