package gateway

import (
	"sort"
	"strings"
)

// FieldErrors is the field-keyed validation error set: field name to error
// kind to message. It doubles as an error value so capability methods can
// return it explicitly instead of callers polling a side accumulator.
type FieldErrors map[string]map[string]string

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var parts []string
	for _, field := range fields {
		kinds := make([]string, 0, len(e[field]))
		for kind := range e[field] {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			parts = append(parts, field+": "+e[field][kind])
		}
	}
	return strings.Join(parts, "; ")
}

func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

func (e FieldErrors) Add(field, kind, message string) {
	if e[field] == nil {
		e[field] = make(map[string]string)
	}
	e[field][kind] = message
}

type commonError struct {
	field   string
	message string
}

// Closed catalog of cross-adapter merchant error types. Messages double as
// translation keys; the Translator passes them through when untranslated.
var merchantCommonErrors = map[string]commonError{
	"card_number_invalid":         {"card_number", "The card number is invalid."},
	"card_expired":                {"card_exp", "The card has expired."},
	"routing_number_invalid":      {"routing_number", "The routing number is invalid."},
	"account_number_invalid":      {"account_number", "The account number is invalid."},
	"duplicate_transaction":       {"amount", "A duplicate transaction was detected."},
	"card_not_accepted":           {"card_number", "That card type is not accepted."},
	"invalid_security_code":       {"cvv", "The security code is invalid."},
	"address_verification_failed": {"zip", "Address verification failed."},
	"transaction_not_found":       {"transaction_id", "The transaction was not found."},
	"unsupported":                 {"gateway", "The gateway does not support that action."},
	"general":                     {"gateway", "An error occurred when processing the request with the gateway."},
}

// Non-merchant gateways expose a narrower catalog.
var nonmerchantCommonErrors = map[string]commonError{
	"invalid":               {"gateway", "The data could not be authenticated."},
	"transaction_not_found": {"transaction_id", "The transaction was not found."},
	"unsupported":           {"gateway", "The gateway does not support that action."},
	"general":               {"gateway", "An error occurred when processing the request with the gateway."},
}

func commonErrorFrom(catalog map[string]commonError, t Translator, errorType string) FieldErrors {
	entry, ok := catalog[errorType]
	if !ok {
		return nil
	}
	message := entry.message
	if t != nil {
		message = t.Translate(message)
	}
	return FieldErrors{entry.field: {errorType: message}}
}
