package fastcharge

import "billing-gateway-core/models"

const (
	SandboxEndpoint    = "https://sandbox.fastcharge.io/v1"
	ProductionEndpoint = "https://api.fastcharge.io/v1"
)

// apiResponse is the JSON body FastCharge returns for every call.
type apiResponse struct {
	Result        string `json:"result"`
	Reference     string `json:"reference,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	VaultID       string `json:"vault_id,omitempty"`
	Last4         string `json:"last4,omitempty"`
	CardType      string `json:"card_type,omitempty"`
	Expiry        string `json:"expiry,omitempty"`
	Message       string `json:"message,omitempty"`
	Code          string `json:"code,omitempty"`
}

// statusTable maps FastCharge's status vocabulary onto the normalized set.
// Anything missing here normalizes to error via MapRemoteStatus.
var statusTable = map[string]models.TransactionStatus{
	"approved": models.TransactionStatusApproved,
	"held":     models.TransactionStatusPending,
	"declined": models.TransactionStatusDeclined,
	"voided":   models.TransactionStatusVoid,
	"refunded": models.TransactionStatusRefunded,
	"returned": models.TransactionStatusReturned,
	"settled":  models.TransactionStatusReconciled,
}

// errorCodeTable maps FastCharge error codes onto the shared common-error
// catalog.
var errorCodeTable = map[string]string{
	"E_CARD_NUMBER": "card_number_invalid",
	"E_EXPIRED":     "card_expired",
	"E_CVV":         "invalid_security_code",
	"E_AVS":         "address_verification_failed",
	"E_CARD_TYPE":   "card_not_accepted",
	"E_DUPLICATE":   "duplicate_transaction",
	"E_NOT_FOUND":   "transaction_not_found",
}

// E_SETTLED means the remote rejects voids after its settlement cutoff; the
// adapter falls back to a refund relabeled as a void.
const codeSettled = "E_SETTLED"

// maskFields are redacted from every logged payload, at any nesting depth.
var maskFields = []string{"card_number", "cvv", "api_key"}
