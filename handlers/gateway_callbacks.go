package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"billing-gateway-core/gateway"
	"billing-gateway-core/models"
	"billing-gateway-core/queue"
	"billing-gateway-core/utils"
)

const checkoutSessionName = "gateway_checkout"

// CallbackHandler terminates the redirect gateway flows: it renders the
// checkout form, authenticates asynchronous callbacks, and shows the customer
// the return page.
type CallbackHandler struct {
	registry *gateway.Registry
	logs     gateway.LogStore
	meta     GatewayMetaProvider
	queue    *queue.Queue
	pending  *queue.PendingStore
	sessions sessions.Store
}

func NewCallbackHandler(registry *gateway.Registry, logs gateway.LogStore, meta GatewayMetaProvider, q *queue.Queue, pending *queue.PendingStore, sessionSecret string) *CallbackHandler {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((2 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &CallbackHandler{
		registry: registry,
		logs:     logs,
		meta:     meta,
		queue:    q,
		pending:  pending,
		sessions: store,
	}
}

func (h *CallbackHandler) newAdapter(name, currency string) (gateway.NonmerchantAdapter, error) {
	reg, err := h.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	if !h.registry.Supports(name, gateway.CapabilityNonmerchant) {
		return nil, fmt.Errorf("gateway %s does not support redirect payments", name)
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
	adapter.SetStaffID("")
	adapter.SetCurrency(currency)
	if err := adapter.SetMeta(meta); err != nil {
		return nil, err
	}

	nonmerchant, ok := adapter.(gateway.NonmerchantAdapter)
	if !ok {
		return nil, fmt.Errorf("gateway %s does not implement the redirect contract", name)
	}
	return nonmerchant, nil
}

type checkoutRequest struct {
	ClientID string                 `json:"client_id"`
	Amount   float64                `json:"amount"`
	Currency string                 `json:"currency"`
	Invoices []models.InvoiceAmount `json:"invoices,omitempty"`
	Contact  *models.Contact        `json:"contact,omitempty"`
}

type checkoutResponse struct {
	PendingID string `json:"pending_id"`
	Markup    string `json:"markup"`
}

// StartCheckout stashes the checkout context under a pending id and returns
// the gateway's payment form markup. The pending id rides a cookie so the
// return handler can correlate the customer coming back.
func (h *CallbackHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	gatewayName := mux.Vars(r)["gateway"]

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" || req.Amount <= 0 || req.Currency == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "client_id, amount and currency are required")
		return
	}

	adapter, err := h.newAdapter(gatewayName, req.Currency)
	if err != nil {
		log.Printf("Error building adapter for checkout: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "unknown or unsupported gateway")
		return
	}

	pending := &queue.PendingTransaction{
		ID:       uuid.New().String(),
		ClientID: req.ClientID,
		Gateway:  gatewayName,
		Amount:   req.Amount,
		Currency: req.Currency,
		Invoices: req.Invoices,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.pending.Save(ctx, pending); err != nil {
		log.Printf("Error saving pending transaction: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "could not start checkout")
		return
	}

	form := gateway.NewFormContext()
	markup, err := adapter.BuildProcess(form, req.Contact, req.Amount, req.Invoices, map[string]string{
		"pending_id": pending.ID,
	})
	if err != nil {
		log.Printf("Error building payment form: %v", err)
		utils.SendErrorResponse(w, http.StatusBadGateway, "could not build payment form")
		return
	}

	session, _ := h.sessions.Get(r, checkoutSessionName)
	session.Values["pending_id"] = pending.ID
	if err := session.Save(r, w); err != nil {
		log.Printf("Error saving checkout session: %v", err)
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "ok",
		Data:   checkoutResponse{PendingID: pending.ID, Markup: markup},
	})
}

// Webhook receives the machine-to-machine callback. The payload is
// authenticated by the adapter before anything is trusted; validated
// notifications are queued for background application.
func (h *CallbackHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	gatewayName := mux.Vars(r)["gateway"]

	if err := r.ParseForm(); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid callback payload")
		return
	}

	adapter, err := h.newAdapter(gatewayName, "")
	if err != nil {
		log.Printf("Error building adapter for webhook: %v", err)
		utils.SendErrorResponse(w, http.StatusNotFound, "unknown gateway")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	notification, err := adapter.Validate(ctx, r.URL.Query(), r.PostForm)
	if err != nil {
		log.Printf("Rejected callback for gateway %s: %v", gatewayName, err)
		utils.SendErrorResponse(w, http.StatusUnauthorized, "callback could not be verified")
		return
	}

	queued := &queue.Notification{
		Gateway:             gatewayName,
		ClientID:            notification.ClientID,
		Amount:              notification.Amount,
		Currency:            notification.Currency,
		Status:              notification.Status,
		ReferenceID:         notification.ReferenceID,
		TransactionID:       notification.TransactionID,
		ParentTransactionID: notification.ParentTransactionID,
	}
	if err := h.queue.Enqueue(ctx, queued); err != nil {
		log.Printf("Error enqueuing notification: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "could not accept callback")
		return
	}

	// The pending stash is done once an authenticated callback arrives.
	if pendingID := r.PostForm.Get("pending_id"); pendingID != "" {
		if err := h.pending.Delete(ctx, pendingID); err != nil {
			log.Printf("Error deleting pending transaction %s: %v", pendingID, err)
		}
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "ok"})
}

// Return handles the customer landing back from the remote gateway. The
// extracted payload is display-only; state changes come from Webhook.
func (h *CallbackHandler) Return(w http.ResponseWriter, r *http.Request) {
	gatewayName := mux.Vars(r)["gateway"]

	adapter, err := h.newAdapter(gatewayName, "")
	if err != nil {
		log.Printf("Error building adapter for return: %v", err)
		utils.SendErrorResponse(w, http.StatusNotFound, "unknown gateway")
		return
	}

	if err := r.ParseForm(); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid return payload")
		return
	}

	notification, err := adapter.Success(r.URL.Query(), r.PostForm)
	if err != nil {
		log.Printf("Could not parse return payload for gateway %s: %v", gatewayName, err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "return payload could not be read")
		return
	}

	response := map[string]any{
		"notification": notification,
	}

	session, _ := h.sessions.Get(r, checkoutSessionName)
	if pendingID, ok := session.Values["pending_id"].(string); ok && pendingID != "" {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		if pending, err := h.pending.Get(ctx, pendingID); err != nil {
			log.Printf("Error loading pending transaction %s: %v", pendingID, err)
		} else if pending != nil {
			response["checkout"] = pending
		}

		session.Values["pending_id"] = ""
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			log.Printf("Error clearing checkout session: %v", err)
		}
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "ok", Data: response})
}
