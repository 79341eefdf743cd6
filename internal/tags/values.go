package tags

import (
	"fmt"
	"strconv"
	"strings"
)

// RawTags is one source's tag dictionary (ffprobe format tags, ExifTool
// output, extractor info dicts). Values arrive as strings, numbers, bools
// or nested maps.
type RawTags map[string]any

// Get resolves a possibly dotted key ("account.username") against nested
// maps. Returns nil when absent.
func (t RawTags) Get(key string) any {
	if v, ok := t[key]; ok {
		return v
	}
	if !strings.Contains(key, ".") {
		return nil
	}

	cur := any(t)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			if rt, ok2 := cur.(RawTags); ok2 {
				m = map[string]any(rt)
			} else {
				return nil
			}
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// SafeUnpack returns the first non-empty candidate as a string
func SafeUnpack(candidates ...any) string {
	for _, c := range candidates {
		s := Stringify(c)
		if s != "" {
			return s
		}
	}
	return ""
}

// Stringify renders a scalar tag value; nil and empty containers become ""
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		// JSON numbers decode as float64; render integers without .0
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := Stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ";")
	case []string:
		return strings.Join(x, ";")
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", x))
	}
}

// languageSentinels are dropped by Combine: "und"/"unk" mean the tagger
// did not know, not that the language is called that
var languageSentinels = map[string]bool{"und": true, "unk": true, "unknown": true}

// Combine concatenates non-empty distinct values with ";" separators,
// preserving first-seen order and eliding undetermined-language sentinels.
func Combine(values ...any) string {
	seen := map[string]bool{}
	var parts []string
	for _, v := range values {
		for _, piece := range strings.Split(Stringify(v), ";") {
			piece = strings.TrimSpace(piece)
			if piece == "" || languageSentinels[strings.ToLower(piece)] {
				continue
			}
			if !seen[piece] {
				seen[piece] = true
				parts = append(parts, piece)
			}
		}
	}
	return strings.Join(parts, ";")
}

// SafeInt coerces a tag value to int64, tolerating nil, empty strings and
// stringified floats. Returns 0 when hopeless.
func SafeInt(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case int:
		return int64(x)
	case int64:
		return x
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "N/A" {
			return 0
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

// SafeFloat coerces a tag value to float64 with the same tolerance
func SafeFloat(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "N/A" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}
