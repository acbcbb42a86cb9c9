package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"billing-gateway-core/models"
)

const merchantRequestTimeout = 30 * time.Second

// MerchantGateway is the base for direct-processing adapters. It owns the
// outbound HTTP plumbing; adapters are responsible for catching every
// remote-SDK error themselves and converting it to field errors, the base
// deliberately provides no catch-all.
type MerchantGateway struct {
	*Session
	client *http.Client
}

func NewMerchantGateway(session *Session) *MerchantGateway {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &MerchantGateway{
		Session: session,
		client: &http.Client{
			Timeout:   merchantRequestTimeout,
			Transport: transport,
		},
	}
}

// HTTPRequest serializes params and performs one round trip, returning the
// raw response body. Transport failures are not caught here; they propagate
// to the adapter.
func (g *MerchantGateway) HTTPRequest(ctx context.Context, method, rawURL string, params url.Values) ([]byte, error) {
	method = strings.ToUpper(method)

	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			separator := "?"
			if strings.Contains(rawURL, "?") {
				separator = "&"
			}
			rawURL += separator + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %v", err)
	}

	// Some processors prefix JSON bodies with a BOM.
	return []byte(strings.TrimPrefix(string(respBody), "\ufeff")), nil
}

// CommonError maps a cross-adapter error type to a field-keyed localized
// error so every adapter reports the same failures the same way. Unknown
// types return nil.
func (g *MerchantGateway) CommonError(errorType string) FieldErrors {
	return commonErrorFrom(merchantCommonErrors, g.Translator(), errorType)
}

// VoidViaRefund runs a refund and relabels an approved refund outcome as a
// void, for adapters whose remote rejects voids after the settlement cutoff.
func VoidViaRefund(ctx context.Context, refund func(context.Context) (*models.TransactionResult, error)) (*models.TransactionResult, error) {
	result, err := refund(ctx)
	if err != nil {
		return nil, err
	}
	if result != nil && result.Status == models.TransactionStatusRefunded {
		result.Status = models.TransactionStatusVoid
	}
	return result, nil
}

// FormContext carries per-request render state into form-building calls,
// scoped to one response render. Adapters use it to avoid injecting a client
// SDK script twice on one page without resorting to process-wide flags.
type FormContext struct {
	injected map[string]bool
}

func NewFormContext() *FormContext {
	return &FormContext{injected: make(map[string]bool)}
}

// MarkInjected records that the named asset was rendered and reports whether
// it had been already.
func (f *FormContext) MarkInjected(name string) bool {
	if f.injected[name] {
		return true
	}
	f.injected[name] = true
	return false
}

// MerchantAdapter is the surface common to every direct-processing adapter.
type MerchantAdapter interface {
	Adapter

	// RequiresCustomerPresent gates eligibility for unattended and
	// recurring billing.
	RequiresCustomerPresent() bool
}

// MerchantCcGateway processes cards directly.
type MerchantCcGateway interface {
	ProcessCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	AuthorizeCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	CaptureCc(ctx context.Context, referenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	VoidCc(ctx context.Context, referenceID, transactionID string) (*models.TransactionResult, error)
	RefundCc(ctx context.Context, referenceID, transactionID string, amount float64) (*models.TransactionResult, error)
}

// MerchantAchGateway processes bank accounts directly.
type MerchantAchGateway interface {
	ProcessAch(ctx context.Context, account *models.AchAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	AuthorizeAch(ctx context.Context, account *models.AchAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	CaptureAch(ctx context.Context, referenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	VoidAch(ctx context.Context, referenceID, transactionID string) (*models.TransactionResult, error)
	RefundAch(ctx context.Context, referenceID, transactionID string, amount float64) (*models.TransactionResult, error)
}

// MerchantCcOffsiteGateway stores cards at the remote processor and charges
// them by reference. RequiresCcStorage is queried by the orchestrator after
// SetMeta to choose between this interface and MerchantCcGateway at runtime;
// one adapter may support either mode depending on configuration.
type MerchantCcOffsiteGateway interface {
	RequiresCcStorage() bool
	StoreCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, clientReferenceID string) (*models.StoredAccountReference, error)
	UpdateCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, clientReferenceID, accountReferenceID string) (*models.StoredAccountReference, error)
	RemoveCc(ctx context.Context, clientReferenceID, accountReferenceID string) (*models.StoredAccountReference, error)
	ProcessStoredCc(ctx context.Context, clientReferenceID, accountReferenceID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	AuthorizeStoredCc(ctx context.Context, clientReferenceID, accountReferenceID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	CaptureStoredCc(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	VoidStoredCc(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string) (*models.TransactionResult, error)
	RefundStoredCc(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string, amount float64) (*models.TransactionResult, error)
}

// MerchantAchOffsiteGateway is the bank-account analog of
// MerchantCcOffsiteGateway.
type MerchantAchOffsiteGateway interface {
	RequiresAchStorage() bool
	StoreAch(ctx context.Context, account *models.AchAccount, contact *models.Contact, clientReferenceID string) (*models.StoredAccountReference, error)
	UpdateAch(ctx context.Context, account *models.AchAccount, contact *models.Contact, clientReferenceID, accountReferenceID string) (*models.StoredAccountReference, error)
	RemoveAch(ctx context.Context, clientReferenceID, accountReferenceID string) (*models.StoredAccountReference, error)
	ProcessStoredAch(ctx context.Context, clientReferenceID, accountReferenceID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	AuthorizeStoredAch(ctx context.Context, clientReferenceID, accountReferenceID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	CaptureStoredAch(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error)
	VoidStoredAch(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string) (*models.TransactionResult, error)
	RefundStoredAch(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string, amount float64) (*models.TransactionResult, error)
}

// MerchantCcFormGateway renders tokenized or direct-to-processor card input.
type MerchantCcFormGateway interface {
	BuildCcForm(form *FormContext) (string, error)
	// BuildPaymentConfirmation returns an optional post-redirect fragment,
	// e.g. a step-up challenge.
	BuildPaymentConfirmation(form *FormContext, referenceID, transactionID string, amount float64) (string, error)
}

type MerchantAchFormGateway interface {
	BuildAchForm(form *FormContext, account *models.AchAccount) (string, error)
	BuildPaymentConfirmation(form *FormContext, referenceID, transactionID string, amount float64) (string, error)
}

// MerchantAchVerificationGateway models micro-deposit verification as an
// explicit second step: a stored account is usable immediately but reaches
// its verified sub-state only after VerifyAch succeeds, before it may be
// charged.
type MerchantAchVerificationGateway interface {
	BuildAchVerificationForm(form *FormContext, vars map[string]string) (string, error)
	VerifyAch(ctx context.Context, vars map[string]string, clientReferenceID, accountReferenceID string) (*models.TransactionResult, error)
}
