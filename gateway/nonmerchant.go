package gateway

import (
	"context"
	"net/url"

	"billing-gateway-core/models"
)

// NonmerchantNotification is the normalized extraction from a redirect
// gateway's callback or return payload.
type NonmerchantNotification struct {
	ClientID            string                   `json:"client_id"`
	Amount              float64                  `json:"amount"`
	Currency            string                   `json:"currency"`
	Invoices            []models.InvoiceAmount   `json:"invoices,omitempty"`
	Status              models.TransactionStatus `json:"status"`
	ReferenceID         string                   `json:"reference_id,omitempty"`
	TransactionID       string                   `json:"transaction_id,omitempty"`
	ParentTransactionID string                   `json:"parent_transaction_id,omitempty"`
}

// NonmerchantGateway is the base for redirect/offsite adapters. The optional
// post-payment operations default to an "unsupported" field error instead of
// panicking, so callers may probe capabilities safely.
type NonmerchantGateway struct {
	*Session
}

func NewNonmerchantGateway(session *Session) *NonmerchantGateway {
	return &NonmerchantGateway{Session: session}
}

// CommonError is the non-merchant variant of the shared error catalog.
// Unknown types return nil.
func (g *NonmerchantGateway) CommonError(errorType string) FieldErrors {
	return commonErrorFrom(nonmerchantCommonErrors, g.Translator(), errorType)
}

// BuildProcess renders the on-site payment form for adapters that offer one;
// the default renders nothing and the orchestrator falls back to a plain
// redirect.
func (g *NonmerchantGateway) BuildProcess(form *FormContext, contact *models.Contact, amount float64, invoices []models.InvoiceAmount, options map[string]string) (string, error) {
	return "", nil
}

func (g *NonmerchantGateway) BuildAuthorize(form *FormContext, contact *models.Contact, amount float64, invoices []models.InvoiceAmount, options map[string]string) (string, error) {
	return "", nil
}

func (g *NonmerchantGateway) Capture(ctx context.Context, referenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	return nil, g.SetErrors(g.CommonError("unsupported"))
}

func (g *NonmerchantGateway) Void(ctx context.Context, referenceID, transactionID string) (*models.TransactionResult, error) {
	return nil, g.SetErrors(g.CommonError("unsupported"))
}

func (g *NonmerchantGateway) Refund(ctx context.Context, referenceID, transactionID string, amount float64) (*models.TransactionResult, error) {
	return nil, g.SetErrors(g.CommonError("unsupported"))
}

// NonmerchantAdapter is the redirect/offsite contract.
//
// Validate authenticates the asynchronous machine-to-machine callback and
// must fail closed on anything it cannot verify structurally or
// cryptographically. Success extracts the same shape from the user-facing
// return redirect, a weaker-trust channel: implementations here never move
// transaction state from Success, only from Validate.
type NonmerchantAdapter interface {
	Adapter

	Validate(ctx context.Context, get, post url.Values) (*NonmerchantNotification, error)
	Success(get, post url.Values) (*NonmerchantNotification, error)
	BuildProcess(form *FormContext, contact *models.Contact, amount float64, invoices []models.InvoiceAmount, options map[string]string) (string, error)
	BuildAuthorize(form *FormContext, contact *models.Contact, amount float64, invoices []models.InvoiceAmount, options map[string]string) (string, error)
	Capture(ctx context.Context, referenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	Void(ctx context.Context, referenceID, transactionID string) (*models.TransactionResult, error)
	Refund(ctx context.Context, referenceID, transactionID string, amount float64) (*models.TransactionResult, error)
}
