package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskValue(t *testing.T) {
	rule := MaskRule{Char: 'x', Length: 4}

	// Length is preserved; only the visible prefix survives.
	assert.Equal(t, "4111xxxxxxxxxxxx", MaskValue("4111111111111111", rule))

	// Negative length keeps a trailing window instead.
	assert.Equal(t, "xxxxxxxxxxxx1111", MaskValue("4111111111111111", MaskRule{Char: 'x', Length: -4}))

	// Zero masks everything.
	assert.Equal(t, "xxx", MaskValue("123", MaskRule{Char: 'x'}))

	// A keep window longer than the value leaves it untouched.
	assert.Equal(t, "42", MaskValue("42", rule))
	assert.Equal(t, "42", MaskValue("42", MaskRule{Char: 'x', Length: -4}))

	assert.Equal(t, "", MaskValue("", rule))

	// Unset mask char falls back to the default.
	assert.Equal(t, "41xx", MaskValue("4111", MaskRule{Length: 2}))
}

func TestMaskDataTopLevelOnly(t *testing.T) {
	data := map[string]any{
		"card_number": "4111111111111111",
		"amount":      "10.00",
		"nested":      map[string]any{"card_number": "5555444433332222"},
	}

	out := MaskData(data, []string{"card_number"}, DefaultMaskRule)

	assert.Equal(t, "4111xxxxxxxxxxxx", out["card_number"])
	assert.Equal(t, "10.00", out["amount"])

	// Top-level variant leaves nested occurrences alone.
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "5555444433332222", nested["card_number"])

	// Input map is not mutated.
	assert.Equal(t, "4111111111111111", data["card_number"])
}

func TestMaskDataRecursive(t *testing.T) {
	data := map[string]any{
		"request": map[string]any{
			"card": map[string]any{
				"card_number": "4111111111111111",
				"cvc":         "123",
			},
			"items": []any{
				map[string]any{"cvc": "999", "sku": "A1"},
			},
		},
	}

	out := MaskDataRecursive(data, []string{"card_number", "cvc"}, DefaultMaskRule).(map[string]any)

	card := out["request"].(map[string]any)["card"].(map[string]any)
	assert.Equal(t, "4111xxxxxxxxxxxx", card["card_number"])
	assert.Equal(t, "123", card["cvc"]) // keep window covers the whole value

	item := out["request"].(map[string]any)["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "999", item["cvc"])
	assert.Equal(t, "A1", item["sku"])
}

func TestMaskDataRecursiveMasksWholeSubdocument(t *testing.T) {
	data := map[string]any{
		"card": map[string]any{
			"number": "4111111111111111",
			"holder": "Ann Smith",
		},
	}

	out := MaskDataRecursive(data, []string{"card"}, MaskRule{Char: '*'}).(map[string]any)
	card := out["card"].(map[string]any)

	// A matched key holding a map masks every leaf under it.
	assert.Equal(t, "****************", card["number"])
	assert.Equal(t, "*********", card["holder"])
}

func TestMaskFieldMatchingIsCaseInsensitive(t *testing.T) {
	data := map[string]any{"Card_Number": "4111111111111111"}
	out := MaskData(data, []string{"card_number"}, DefaultMaskRule)
	assert.Equal(t, "4111xxxxxxxxxxxx", out["Card_Number"])
}

func TestMaskNonStringValues(t *testing.T) {
	data := map[string]any{"account_number": 123456789}
	out := MaskData(data, []string{"account_number"}, MaskRule{Char: 'x', Length: -4})
	assert.Equal(t, "xxxxx6789", out["account_number"])
}
