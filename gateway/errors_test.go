package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldErrorsAsError(t *testing.T) {
	errs := FieldErrors{}
	errs.Add("card_number", "invalid", "The card number is invalid.")
	errs.Add("amount", "negative", "The amount must be positive.")

	var err error = errs
	assert.Equal(t, "amount: The amount must be positive.; card_number: The card number is invalid.", err.Error())

	var extracted FieldErrors
	require.True(t, errors.As(err, &extracted))
	assert.Equal(t, "The card number is invalid.", extracted["card_number"]["invalid"])
}

func TestFieldErrorsEmpty(t *testing.T) {
	assert.True(t, FieldErrors{}.Empty())
	assert.Equal(t, "", FieldErrors{}.Error())

	errs := FieldErrors{}
	errs.Add("field", "kind", "message")
	assert.False(t, errs.Empty())
}

func TestMerchantCommonErrorCatalog(t *testing.T) {
	declared := []string{
		"card_number_invalid", "card_expired", "routing_number_invalid",
		"account_number_invalid", "duplicate_transaction", "card_not_accepted",
		"invalid_security_code", "address_verification_failed",
		"transaction_not_found", "unsupported", "general",
	}

	for _, errorType := range declared {
		errs := commonErrorFrom(merchantCommonErrors, MapTranslator(nil), errorType)
		require.NotNil(t, errs, errorType)
		require.Len(t, errs, 1, errorType)
		for field, kinds := range errs {
			assert.NotEmpty(t, field)
			assert.NotEmpty(t, kinds[errorType], errorType)
		}
	}
}

func TestNonmerchantCommonErrorCatalog(t *testing.T) {
	declared := []string{"invalid", "transaction_not_found", "unsupported", "general"}
	for _, errorType := range declared {
		errs := commonErrorFrom(nonmerchantCommonErrors, MapTranslator(nil), errorType)
		require.NotNil(t, errs, errorType)
	}

	// The non-merchant catalog is narrower than the merchant one.
	assert.Nil(t, commonErrorFrom(nonmerchantCommonErrors, nil, "card_number_invalid"))
}

func TestCommonErrorUnknownTypeIsNil(t *testing.T) {
	assert.Nil(t, commonErrorFrom(merchantCommonErrors, nil, "no_such_error"))
	assert.Nil(t, commonErrorFrom(merchantCommonErrors, nil, ""))
}

func TestCommonErrorMessagesAreTranslated(t *testing.T) {
	translator := MapTranslator(map[string]string{
		"The card number is invalid.": "O número do cartão é inválido.",
	})

	errs := commonErrorFrom(merchantCommonErrors, translator, "card_number_invalid")
	require.NotNil(t, errs)
	assert.Equal(t, "O número do cartão é inválido.", errs["card_number"]["card_number_invalid"])

	// Untranslated messages pass through unchanged.
	errs = commonErrorFrom(merchantCommonErrors, translator, "card_expired")
	assert.Equal(t, "The card has expired.", errs["card_exp"]["card_expired"])
}
