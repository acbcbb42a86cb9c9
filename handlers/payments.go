package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"billing-gateway-core/database"
	"billing-gateway-core/gateway"
	"billing-gateway-core/models"
	"billing-gateway-core/utils"
)

// GatewayMetaProvider supplies the decrypted meta configuration for a
// configured gateway instance.
type GatewayMetaProvider func(gatewayName string) (map[string]string, error)

type PaymentHandler struct {
	db       *database.Connection
	registry *gateway.Registry
	logs     *database.GatewayLogStore
	meta     GatewayMetaProvider
}

func NewPaymentHandler(db *database.Connection, registry *gateway.Registry, logs *database.GatewayLogStore, meta GatewayMetaProvider) *PaymentHandler {
	return &PaymentHandler{
		db:       db,
		registry: registry,
		logs:     logs,
		meta:     meta,
	}
}

type chargeRequest struct {
	Gateway  string                 `json:"gateway"`
	ClientID string                 `json:"client_id"`
	StaffID  string                 `json:"staff_id,omitempty"`
	Amount   float64                `json:"amount"`
	Currency string                 `json:"currency"`
	Card     *models.CardAccount    `json:"card,omitempty"`
	Contact  *models.Contact        `json:"contact,omitempty"`
	Invoices []models.InvoiceAmount `json:"invoices,omitempty"`
	Stored   *storedRef             `json:"stored,omitempty"`
}

type storedRef struct {
	ClientReferenceID  string `json:"client_reference_id"`
	AccountReferenceID string `json:"account_reference_id"`
}

// newAdapter builds and configures a fresh adapter session for one request.
// The caller contract is fixed: gateway id, staff id, currency, then meta.
func (h *PaymentHandler) newAdapter(name, staffID, currency string) (gateway.Adapter, error) {
	reg, err := h.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	adapter := reg.New(gateway.Deps{
		Translator: gateway.MapTranslator(nil),
		Logs:       h.logs,
	})

	meta, err := h.meta(name)
	if err != nil {
		return nil, err
	}

	adapter.SetGatewayID(name)
	adapter.SetStaffID(staffID)
	adapter.SetCurrency(currency)
	if err := adapter.SetMeta(meta); err != nil {
		return nil, err
	}
	return adapter, nil
}

// ProcessPayment charges a card through the configured gateway, picking the
// direct or stored-account path from the adapter's storage requirement.
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Gateway == "" || req.ClientID == "" || req.Amount <= 0 || req.Currency == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway, client_id, amount and currency are required")
		return
	}

	adapter, err := h.newAdapter(req.Gateway, req.StaffID, req.Currency)
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	var result *models.TransactionResult

	offsite, hasOffsite := adapter.(gateway.MerchantCcOffsiteGateway)
	if hasOffsite && offsite.RequiresCcStorage() {
		// Storage-required adapters only accept stored-account charges.
		result, err = h.processStored(ctx, req, offsite)
	} else if direct, ok := adapter.(gateway.MerchantCcGateway); ok {
		if req.Card == nil {
			utils.SendErrorResponse(w, http.StatusBadRequest, "card is required")
			return
		}
		result, err = direct.ProcessCc(ctx, req.Card, req.Contact, req.Amount, req.Invoices)
	} else {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway does not process cards directly")
		return
	}

	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	if err := h.db.SaveTransaction(ctx, req.ClientID, req.Gateway, req.Amount, req.Currency, result); err != nil {
		log.Printf("Error saving transaction: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "transaction processed but could not be recorded")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "ok", Data: result})
}

func (h *PaymentHandler) processStored(ctx context.Context, req chargeRequest, offsite gateway.MerchantCcOffsiteGateway) (*models.TransactionResult, error) {
	stored := req.Stored

	// A reference missing its vault id is completed from the local record.
	if stored != nil && stored.AccountReferenceID == "" {
		ref, err := h.db.GetStoredAccount(ctx, req.Gateway, stored.ClientReferenceID)
		if err != nil {
			return nil, err
		}
		stored.AccountReferenceID = ref.AccountReferenceID
	}

	// A raw card with no reference is vaulted first, then charged by
	// reference; the card data never touches our storage.
	if stored == nil {
		if req.Card == nil {
			return nil, gateway.FieldErrors{"card": {"missing": "a card or stored account reference is required"}}
		}
		ref, err := offsite.StoreCc(ctx, req.Card, req.Contact, "")
		if err != nil {
			return nil, err
		}
		if err := h.db.SaveStoredAccount(ctx, req.Gateway, ref); err != nil {
			return nil, err
		}
		stored = &storedRef{
			ClientReferenceID:  ref.ClientReferenceID,
			AccountReferenceID: ref.AccountReferenceID,
		}
	}

	return offsite.ProcessStoredCc(ctx, stored.ClientReferenceID, stored.AccountReferenceID, req.Amount, req.Invoices)
}

type storeCardRequest struct {
	Gateway           string              `json:"gateway"`
	StaffID           string              `json:"staff_id,omitempty"`
	Currency          string              `json:"currency"`
	ClientReferenceID string              `json:"client_reference_id,omitempty"`
	Card              *models.CardAccount `json:"card"`
	Contact           *models.Contact     `json:"contact,omitempty"`
}

// StoreCard vaults a card at the remote processor and records the opaque
// references.
func (h *PaymentHandler) StoreCard(w http.ResponseWriter, r *http.Request) {
	var req storeCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Gateway == "" || req.Card == nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway and card are required")
		return
	}

	adapter, err := h.newAdapter(req.Gateway, req.StaffID, req.Currency)
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	offsite, ok := adapter.(gateway.MerchantCcOffsiteGateway)
	if !ok {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway does not support card storage")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	ref, err := offsite.StoreCc(ctx, req.Card, req.Contact, req.ClientReferenceID)
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	if err := h.db.SaveStoredAccount(ctx, req.Gateway, ref); err != nil {
		log.Printf("Error saving stored account: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "card stored but reference could not be recorded")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "ok", Data: ref})
}

type verifyAccountRequest struct {
	Gateway            string            `json:"gateway"`
	StaffID            string            `json:"staff_id,omitempty"`
	ClientReferenceID  string            `json:"client_reference_id"`
	AccountReferenceID string            `json:"account_reference_id"`
	Vars               map[string]string `json:"vars"`
}

// VerifyBankAccount completes micro-deposit verification for a stored bank
// account. The account reaches its verified sub-state only after the gateway
// confirms the amounts; it may not be charged before that.
func (h *PaymentHandler) VerifyBankAccount(w http.ResponseWriter, r *http.Request) {
	var req verifyAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Gateway == "" || req.ClientReferenceID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway and client_reference_id are required")
		return
	}

	adapter, err := h.newAdapter(req.Gateway, req.StaffID, "")
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	verifier, ok := adapter.(gateway.MerchantAchVerificationGateway)
	if !ok {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway does not support account verification")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	result, err := verifier.VerifyAch(ctx, req.Vars, req.ClientReferenceID, req.AccountReferenceID)
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	if err := h.db.MarkStoredAccountVerified(ctx, req.Gateway, req.ClientReferenceID); err != nil {
		log.Printf("Error marking stored account verified: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "account verified but state could not be recorded")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "ok", Data: result})
}

type removeCardRequest struct {
	Gateway            string `json:"gateway"`
	StaffID            string `json:"staff_id,omitempty"`
	ClientReferenceID  string `json:"client_reference_id"`
	AccountReferenceID string `json:"account_reference_id"`
}

// RemoveCard deletes a vaulted card at the remote processor and drops the
// local reference.
func (h *PaymentHandler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	var req removeCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Gateway == "" || req.ClientReferenceID == "" || req.AccountReferenceID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway and account references are required")
		return
	}

	adapter, err := h.newAdapter(req.Gateway, req.StaffID, "")
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	offsite, ok := adapter.(gateway.MerchantCcOffsiteGateway)
	if !ok {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway does not support card storage")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	if _, err := offsite.RemoveCc(ctx, req.ClientReferenceID, req.AccountReferenceID); err != nil {
		h.respondGatewayError(w, err)
		return
	}

	if err := h.db.DeleteStoredAccount(ctx, req.Gateway, req.ClientReferenceID); err != nil {
		log.Printf("Error deleting stored account reference: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "card removed but reference could not be deleted")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "ok"})
}

type transactionActionRequest struct {
	Gateway       string  `json:"gateway"`
	StaffID       string  `json:"staff_id,omitempty"`
	Currency      string  `json:"currency"`
	ReferenceID   string  `json:"reference_id,omitempty"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount,omitempty"`
}

// RefundPayment refunds a prior transaction through its gateway.
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	h.transactionAction(w, r, func(ctx context.Context, adapter gateway.Adapter, req transactionActionRequest) (*models.TransactionResult, error) {
		direct, ok := adapter.(gateway.MerchantCcGateway)
		if !ok {
			return nil, gateway.FieldErrors{"gateway": {"unsupported": "gateway does not support refunds"}}
		}
		return direct.RefundCc(ctx, req.ReferenceID, req.TransactionID, req.Amount)
	})
}

// VoidPayment voids a prior transaction through its gateway.
func (h *PaymentHandler) VoidPayment(w http.ResponseWriter, r *http.Request) {
	h.transactionAction(w, r, func(ctx context.Context, adapter gateway.Adapter, req transactionActionRequest) (*models.TransactionResult, error) {
		direct, ok := adapter.(gateway.MerchantCcGateway)
		if !ok {
			return nil, gateway.FieldErrors{"gateway": {"unsupported": "gateway does not support voids"}}
		}
		return direct.VoidCc(ctx, req.ReferenceID, req.TransactionID)
	})
}

func (h *PaymentHandler) transactionAction(w http.ResponseWriter, r *http.Request, action func(context.Context, gateway.Adapter, transactionActionRequest) (*models.TransactionResult, error)) {
	var req transactionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Gateway == "" || req.TransactionID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "gateway and transaction_id are required")
		return
	}

	adapter, err := h.newAdapter(req.Gateway, req.StaffID, req.Currency)
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	result, err := action(ctx, adapter, req)
	if err != nil {
		h.respondGatewayError(w, err)
		return
	}

	if err := h.db.UpdateTransactionStatus(ctx, req.TransactionID, result.Status); err != nil {
		log.Printf("Error updating transaction status: %v", err)
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "ok", Data: result})
}

// GetLogGroup returns the audit-log entries correlated under one group id,
// the full input/output trail of a single gateway exchange.
func (h *PaymentHandler) GetLogGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["group"]
	if groupID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "group id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	entries, err := h.logs.ListLogGroup(ctx, groupID)
	if err != nil {
		log.Printf("Error listing gateway log group %s: %v", groupID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "could not load log entries")
		return
	}
	if len(entries) == 0 {
		utils.SendErrorResponse(w, http.StatusNotFound, "no log entries for that group")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "ok", Data: entries})
}

// respondGatewayError distinguishes validation errors, reported with their
// field detail, from hard failures.
func (h *PaymentHandler) respondGatewayError(w http.ResponseWriter, err error) {
	var fieldErrs gateway.FieldErrors
	if errors.As(err, &fieldErrs) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(models.APIResponse{
			Status:  "error",
			Message: "the gateway reported validation errors",
			Data:    fieldErrs,
		})
		return
	}

	log.Printf("Gateway operation failed: %v", err)
	utils.SendErrorResponse(w, http.StatusBadGateway, "gateway operation failed")
}
