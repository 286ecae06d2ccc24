// Package tags canonicalizes inquiry-type tag values and decides which of
// them are customer facing.
package tags

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ReservedPrefix marks synthetic per-hospital tags that are never shown as
// inquiry types.
const ReservedPrefix = "병원_"

var excluded = func() map[string]struct{} {
	base := []string{"ob_결제취소안내", "ob_방문완료롤백", "ob_후기소명안내", "테스트"}
	m := make(map[string]struct{}, len(base)*2)
	for _, t := range base {
		m[t] = struct{}{}
		m["기타/"+t] = struct{}{}
	}
	return m
}()

var multiSeparator = regexp.MustCompile(`[;,|]`)

// Normalize turns a raw tag value into one comparable string. A JSON array
// whose first element is a string yields that element; anything else is
// trimmed and returned as is. A malformed array is treated as plain text.
func Normalize(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case []string:
		if len(v) == 0 {
			return ""
		}
		return strings.TrimSpace(v[0])
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}

	s := strings.TrimSpace(toString(raw))
	if strings.HasPrefix(s, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil && len(arr) > 0 {
			if first, ok := arr[0].(string); ok {
				return strings.TrimSpace(first)
			}
		}
	}
	return s
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// IsAllowed reports whether a normalized tag may be shown as an inquiry type.
func IsAllowed(tag string) bool {
	if tag == "" || strings.HasPrefix(tag, ReservedPrefix) {
		return false
	}
	_, bad := excluded[tag]
	return !bad
}

// IsExcluded reports membership in the fixed excluded literal set only.
func IsExcluded(tag string) bool {
	_, ok := excluded[Normalize(tag)]
	return ok
}

// Allowed normalizes raw and reports whether the result is allowed.
func Allowed(raw any) (string, bool) {
	tag := Normalize(raw)
	return tag, IsAllowed(tag)
}

// SplitMulti extracts every tag from a value that may hold several: JSON
// arrays (nested ones too), strings delimited by ';' ',' or '|', slices,
// and objects carrying a name, value or key. Parts are trimmed and
// deduplicated in first-seen order.
func SplitMulti(raw any) []string {
	var out []string
	seen := make(map[string]struct{})
	var add func(v any)
	addString := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				for _, part := range arr {
					add(part)
				}
				return
			}
		}
		if parts := multiSeparator.Split(s, -1); len(parts) > 1 {
			for _, part := range parts {
				add(part)
			}
			return
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	add = func(v any) {
		switch x := v.(type) {
		case nil:
		case string:
			addString(x)
		case []string:
			for _, s := range x {
				addString(s)
			}
		case []any:
			for _, item := range x {
				add(item)
			}
		case map[string]any:
			for _, k := range []string{"name", "value", "key"} {
				if c, ok := x[k]; ok && c != nil && c != "" {
					add(c)
					return
				}
			}
		default:
			addString(toString(x))
		}
	}
	add(raw)
	return out
}

// Primary picks the first allowed tag among the parts of raw, or "".
func Primary(raw any) string {
	for _, tag := range SplitMulti(raw) {
		if IsAllowed(tag) {
			return tag
		}
	}
	return ""
}
