package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 10.5, Round(10.499999999))
	assert.Equal(t, 0.1, Round(0.10000000001))
	assert.Equal(t, 3.35, Round(3.345))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10.50", FormatAmount(10.5))
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "100.00", FormatAmount(99.999))
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("49.90")
	require.NoError(t, err)
	assert.Equal(t, 49.9, amount)

	_, err = ParseAmount("not-a-number")
	assert.Error(t, err)

	_, err = ParseAmount("-1.00")
	assert.Error(t, err)
}

func TestRandomString(t *testing.T) {
	first := RandomString(8)
	second := RandomString(8)

	assert.Len(t, first, 8)
	assert.NotEqual(t, first, second)
	for _, r := range first {
		assert.Contains(t, alphanumericCharset, string(r))
	}
}
