package gateway

import (
	"fmt"
	"strings"
)

const (
	DefaultMaskChar     = 'x'
	DefaultUnmaskLength = 4
)

// MaskRule controls how much of a sensitive value stays visible.
// Length > 0 keeps that many leading characters, Length < 0 keeps that many
// trailing characters, Length == 0 masks the value entirely. The masked
// value always keeps the original total length.
type MaskRule struct {
	Char   byte
	Length int
}

// DefaultMaskRule keeps the first four characters visible, which is enough to
// identify a card by BIN prefix without exposing the number.
var DefaultMaskRule = MaskRule{Char: DefaultMaskChar, Length: DefaultUnmaskLength}

// MaskValue redacts value according to rule.
func MaskValue(value string, rule MaskRule) string {
	if rule.Char == 0 {
		rule.Char = DefaultMaskChar
	}
	runes := []rune(value)
	total := len(runes)

	keep := rule.Length
	if keep > total {
		keep = total
	} else if keep < -total {
		keep = -total
	}

	switch {
	case keep > 0:
		return string(runes[:keep]) + strings.Repeat(string(rule.Char), total-keep)
	case keep < 0:
		return strings.Repeat(string(rule.Char), total+keep) + string(runes[total+keep:])
	default:
		return strings.Repeat(string(rule.Char), total)
	}
}

// MaskData returns a copy of data with every top-level key listed in fields
// redacted. Nested values are left untouched; use MaskDataRecursive for
// payloads that nest sensitive data.
func MaskData(data map[string]any, fields []string, rule MaskRule) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		if containsField(fields, key) {
			out[key] = maskAny(value, rule)
		} else {
			out[key] = value
		}
	}
	return out
}

// MaskDataRecursive walks nested maps and slices at any depth and redacts
// every key whose name appears in fields. Provider payloads nest card and
// bank data arbitrarily deep, so this is the variant used before logging.
func MaskDataRecursive(data any, fields []string, rule MaskRule) any {
	switch typed := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			if containsField(fields, key) {
				out[key] = maskAny(value, rule)
			} else {
				out[key] = MaskDataRecursive(value, fields, rule)
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, entry := range typed {
			out = append(out, MaskDataRecursive(entry, fields, rule))
		}
		return out
	default:
		return data
	}
}

func maskAny(value any, rule MaskRule) any {
	switch typed := value.(type) {
	case string:
		return MaskValue(typed, rule)
	case []byte:
		return MaskValue(string(typed), rule)
	case map[string]any:
		// A matched key holding a whole sub-document masks every leaf.
		out := make(map[string]any, len(typed))
		for key, entry := range typed {
			out[key] = maskAny(entry, rule)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, entry := range typed {
			out = append(out, maskAny(entry, rule))
		}
		return out
	case nil:
		return nil
	default:
		return MaskValue(fmt.Sprintf("%v", typed), rule)
	}
}

func containsField(fields []string, key string) bool {
	for _, field := range fields {
		if strings.EqualFold(field, key) {
			return true
		}
	}
	return false
}
