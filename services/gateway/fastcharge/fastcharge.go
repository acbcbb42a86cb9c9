package fastcharge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"billing-gateway-core/gateway"
	"billing-gateway-core/models"
	"billing-gateway-core/utils"
)

// Gateway is the FastCharge card adapter. It supports direct processing,
// vault (offsite) storage selected by the use_vault meta flag, and a
// tokenized payment form.
type Gateway struct {
	*gateway.MerchantGateway
}

var descriptor = models.GatewayDescriptor{
	Name:        "FastCharge",
	Description: "FastCharge credit card processing",
	Version:     "1.2.0",
	Authors:     []models.Author{{Name: "Core Team"}},
	Currencies:  []string{"USD", "CAD", "EUR"},
	Logo:        "views/default/images/fastcharge.png",
	SignupURL:   "https://fastcharge.io/signup",
}

func New(deps gateway.Deps) gateway.Adapter {
	return &Gateway{
		MerchantGateway: gateway.NewMerchantGateway(
			gateway.NewSession(descriptor, deps.Translator, deps.Logs)),
	}
}

// Registration declares the capability set checked at registry time.
func Registration() gateway.Registration {
	return gateway.Registration{
		Name: "fastcharge",
		Capabilities: []gateway.Capability{
			gateway.CapabilityMerchantCc,
			gateway.CapabilityMerchantCcOffsite,
			gateway.CapabilityMerchantCcForm,
		},
		New: New,
	}
}

func (g *Gateway) endpoint() string {
	// api_url overrides both environments, for local provider emulators.
	if override := g.MetaValue("api_url"); override != "" {
		return override
	}
	if g.MetaValue("environment") == "production" {
		return ProductionEndpoint
	}
	return SandboxEndpoint
}

func (g *Gateway) RequiresCustomerPresent() bool { return false }

// RequiresCcStorage is consulted by the orchestrator after SetMeta: with the
// vault enabled, charges must go through the stored-account methods only.
func (g *Gateway) RequiresCcStorage() bool {
	return g.MetaValue("use_vault") == "true"
}

func (g *Gateway) EncryptableFields() []string {
	return []string{"api_key"}
}

func (g *Gateway) SetMeta(meta map[string]string) error {
	errs := g.validateMeta(meta)
	if !errs.Empty() {
		return g.SetErrors(errs)
	}
	g.ClearErrors()
	return g.MerchantGateway.SetMeta(meta)
}

func (g *Gateway) validateMeta(meta map[string]string) gateway.FieldErrors {
	errs := gateway.FieldErrors{}
	if meta["api_key"] == "" {
		errs.Add("api_key", "empty", g.Translator().Translate("Please enter your FastCharge API key."))
	}
	if meta["merchant_id"] == "" {
		errs.Add("merchant_id", "empty", g.Translator().Translate("Please enter your FastCharge merchant ID."))
	}
	if v := meta["use_vault"]; v != "" && v != "true" && v != "false" {
		errs.Add("use_vault", "valid", g.Translator().Translate("Vault storage must be enabled or disabled."))
	}
	return errs
}

func (g *Gateway) Settings(vars map[string]string) (string, error) {
	return fmt.Sprintf(`<div class="gateway-settings">
	<label>%s<input type="text" name="api_key" value="%s" /></label>
	<label>%s<input type="text" name="merchant_id" value="%s" /></label>
	<label>%s<input type="checkbox" name="use_vault" value="true"%s /></label>
</div>`,
		g.Translator().Translate("API Key"), vars["api_key"],
		g.Translator().Translate("Merchant ID"), vars["merchant_id"],
		g.Translator().Translate("Store cards in the FastCharge vault"),
		checked(vars["use_vault"] == "true")), nil
}

func (g *Gateway) EditSettings(meta map[string]string) (map[string]string, gateway.FieldErrors) {
	errs := g.validateMeta(meta)
	if !errs.Empty() {
		g.SetErrors(errs)
		return meta, errs
	}
	g.ClearErrors()
	accepted := map[string]string{
		"api_key":     meta["api_key"],
		"merchant_id": meta["merchant_id"],
		"environment": meta["environment"],
		"use_vault":   meta["use_vault"],
	}
	return accepted, nil
}

func checked(on bool) string {
	if on {
		return " checked"
	}
	return ""
}

// send performs one FastCharge call, writing the masked input and output log
// legs around it. A failed log write aborts the call.
func (g *Gateway) send(ctx context.Context, path string, params url.Values) (*apiResponse, error) {
	endpoint := g.endpoint() + path

	params.Set("api_key", g.MetaValue("api_key"))
	params.Set("merchant_id", g.MetaValue("merchant_id"))

	input := valuesToMap(params)
	masked, _ := gateway.MaskDataRecursive(input, maskFields, gateway.DefaultMaskRule).(map[string]any)
	if err := g.Log(ctx, endpoint, masked, models.LogDirectionInput, true); err != nil {
		return nil, err
	}

	body, err := g.HTTPRequest(ctx, "POST", endpoint, params)
	if err != nil {
		if logErr := g.Log(ctx, endpoint, map[string]any{"error": err.Error()}, models.LogDirectionOutput, false); logErr != nil {
			return nil, logErr
		}
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if logErr := g.Log(ctx, endpoint, map[string]any{"body": string(body)}, models.LogDirectionOutput, false); logErr != nil {
			return nil, logErr
		}
		return nil, fmt.Errorf("error decoding FastCharge response: %v", err)
	}

	var output map[string]any
	raw, _ := json.Marshal(resp)
	json.Unmarshal(raw, &output)
	maskedOut, _ := gateway.MaskDataRecursive(output, maskFields, gateway.DefaultMaskRule).(map[string]any)
	if err := g.Log(ctx, endpoint, maskedOut, models.LogDirectionOutput, resp.Code == ""); err != nil {
		return nil, err
	}

	return &resp, nil
}

// toResult normalizes a FastCharge response. Error codes convert to the
// shared common-error catalog; a code without a catalog entry reports the
// general error.
func (g *Gateway) toResult(resp *apiResponse) (*models.TransactionResult, error) {
	if resp.Code != "" && resp.Code != codeSettled {
		errorType, ok := errorCodeTable[resp.Code]
		if !ok {
			errorType = "general"
		}
		log.Printf("FastCharge returned error code %s (%s)", resp.Code, resp.Message)
		return nil, g.SetErrors(g.CommonError(errorType))
	}
	g.ClearErrors()
	return &models.TransactionResult{
		Status:        models.MapRemoteStatus(statusTable, resp.Result),
		ReferenceID:   resp.Reference,
		TransactionID: resp.TransactionID,
		Message:       resp.Message,
	}, nil
}

func chargeParams(card *models.CardAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) url.Values {
	params := url.Values{}
	params.Set("card_number", card.Number)
	params.Set("expiry", card.Expiry)
	params.Set("cvv", card.CVV)
	params.Set("holder", card.HolderName)
	params.Set("amount", utils.FormatAmount(amount))
	if contact != nil {
		params.Set("first_name", contact.FirstName)
		params.Set("last_name", contact.LastName)
		params.Set("zip", contact.Zip)
		params.Set("country", contact.Country)
	}
	if encoded := encodeInvoices(invoices); encoded != "" {
		params.Set("invoices", encoded)
	}
	return params
}

func encodeInvoices(invoices []models.InvoiceAmount) string {
	if len(invoices) == 0 {
		return ""
	}
	encoded, err := json.Marshal(invoices)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func (g *Gateway) ProcessCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	params := chargeParams(card, contact, amount, invoices)
	params.Set("currency", g.Currency())
	resp, err := g.send(ctx, "/charges", params)
	if err != nil {
		return nil, err
	}
	return g.toResult(resp)
}

func (g *Gateway) AuthorizeCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	params := chargeParams(card, contact, amount, invoices)
	params.Set("currency", g.Currency())
	params.Set("capture", "false")
	resp, err := g.send(ctx, "/charges", params)
	if err != nil {
		return nil, err
	}
	return g.toResult(resp)
}

func (g *Gateway) CaptureCc(ctx context.Context, referenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	params := url.Values{}
	params.Set("transaction_id", transactionID)
	params.Set("amount", utils.FormatAmount(amount))
	resp, err := g.send(ctx, "/captures", params)
	if err != nil {
		return nil, err
	}
	result, err := g.toResult(resp)
	if err != nil {
		return nil, err
	}
	result.ReferenceID = referenceID
	return result, nil
}

func (g *Gateway) VoidCc(ctx context.Context, referenceID, transactionID string) (*models.TransactionResult, error) {
	params := url.Values{}
	params.Set("transaction_id", transactionID)
	resp, err := g.send(ctx, "/voids", params)
	if err != nil {
		return nil, err
	}
	if resp.Code == codeSettled {
		// Past the settlement cutoff the remote only accepts refunds.
		log.Printf("FastCharge rejected void for settled transaction %s, falling back to refund", transactionID)
		return gateway.VoidViaRefund(ctx, func(ctx context.Context) (*models.TransactionResult, error) {
			return g.RefundCc(ctx, referenceID, transactionID, 0)
		})
	}
	result, err := g.toResult(resp)
	if err != nil {
		return nil, err
	}
	result.ReferenceID = referenceID
	return result, nil
}

func (g *Gateway) RefundCc(ctx context.Context, referenceID, transactionID string, amount float64) (*models.TransactionResult, error) {
	params := url.Values{}
	params.Set("transaction_id", transactionID)
	if amount > 0 {
		params.Set("amount", utils.FormatAmount(amount))
	}
	resp, err := g.send(ctx, "/refunds", params)
	if err != nil {
		return nil, err
	}
	result, err := g.toResult(resp)
	if err != nil {
		return nil, err
	}
	result.ReferenceID = referenceID
	return result, nil
}

func (g *Gateway) StoreCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, clientReferenceID string) (*models.StoredAccountReference, error) {
	if clientReferenceID == "" {
		clientReferenceID = utils.RandomString(16)
	}
	params := url.Values{}
	params.Set("card_number", card.Number)
	params.Set("expiry", card.Expiry)
	params.Set("cvv", card.CVV)
	params.Set("holder", card.HolderName)
	params.Set("client_reference", clientReferenceID)
	if contact != nil {
		params.Set("first_name", contact.FirstName)
		params.Set("last_name", contact.LastName)
		params.Set("zip", contact.Zip)
	}
	resp, err := g.send(ctx, "/vault", params)
	if err != nil {
		return nil, err
	}
	if _, err := g.toResult(resp); err != nil {
		return nil, err
	}
	if resp.VaultID == "" {
		return nil, g.SetErrors(g.CommonError("general"))
	}
	return &models.StoredAccountReference{
		ClientReferenceID:  clientReferenceID,
		AccountReferenceID: resp.VaultID,
		Last4:              resp.Last4,
		Expiry:             resp.Expiry,
		Type:               resp.CardType,
	}, nil
}

func (g *Gateway) UpdateCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, clientReferenceID, accountReferenceID string) (*models.StoredAccountReference, error) {
	params := url.Values{}
	params.Set("vault_id", accountReferenceID)
	params.Set("client_reference", clientReferenceID)
	params.Set("card_number", card.Number)
	params.Set("expiry", card.Expiry)
	params.Set("cvv", card.CVV)
	resp, err := g.send(ctx, "/vault/update", params)
	if err != nil {
		return nil, err
	}
	if _, err := g.toResult(resp); err != nil {
		return nil, err
	}
	return &models.StoredAccountReference{
		ClientReferenceID:  clientReferenceID,
		AccountReferenceID: accountReferenceID,
		Last4:              resp.Last4,
		Expiry:             resp.Expiry,
		Type:               resp.CardType,
	}, nil
}

func (g *Gateway) RemoveCc(ctx context.Context, clientReferenceID, accountReferenceID string) (*models.StoredAccountReference, error) {
	params := url.Values{}
	params.Set("vault_id", accountReferenceID)
	params.Set("client_reference", clientReferenceID)
	resp, err := g.send(ctx, "/vault/remove", params)
	if err != nil {
		return nil, err
	}
	if _, err := g.toResult(resp); err != nil {
		return nil, err
	}
	return &models.StoredAccountReference{
		ClientReferenceID:  clientReferenceID,
		AccountReferenceID: accountReferenceID,
	}, nil
}

func (g *Gateway) vaultCharge(ctx context.Context, path, clientReferenceID, accountReferenceID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	params := url.Values{}
	params.Set("vault_id", accountReferenceID)
	params.Set("client_reference", clientReferenceID)
	params.Set("amount", utils.FormatAmount(amount))
	params.Set("currency", g.Currency())
	if encoded := encodeInvoices(invoices); encoded != "" {
		params.Set("invoices", encoded)
	}
	resp, err := g.send(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return g.toResult(resp)
}

func (g *Gateway) ProcessStoredCc(ctx context.Context, clientReferenceID, accountReferenceID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	return g.vaultCharge(ctx, "/vault/charges", clientReferenceID, accountReferenceID, amount, invoices)
}

func (g *Gateway) AuthorizeStoredCc(ctx context.Context, clientReferenceID, accountReferenceID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	params := url.Values{}
	params.Set("vault_id", accountReferenceID)
	params.Set("client_reference", clientReferenceID)
	params.Set("amount", utils.FormatAmount(amount))
	params.Set("currency", g.Currency())
	params.Set("capture", "false")
	if encoded := encodeInvoices(invoices); encoded != "" {
		params.Set("invoices", encoded)
	}
	resp, err := g.send(ctx, "/vault/charges", params)
	if err != nil {
		return nil, err
	}
	return g.toResult(resp)
}

func (g *Gateway) CaptureStoredCc(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	params := url.Values{}
	params.Set("vault_id", accountReferenceID)
	params.Set("transaction_id", transactionID)
	params.Set("amount", utils.FormatAmount(amount))
	resp, err := g.send(ctx, "/captures", params)
	if err != nil {
		return nil, err
	}
	return g.toResult(resp)
}

func (g *Gateway) VoidStoredCc(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string) (*models.TransactionResult, error) {
	params := url.Values{}
	params.Set("vault_id", accountReferenceID)
	params.Set("transaction_id", transactionID)
	resp, err := g.send(ctx, "/voids", params)
	if err != nil {
		return nil, err
	}
	if resp.Code == codeSettled {
		log.Printf("FastCharge rejected void for settled transaction %s, falling back to refund", transactionID)
		return gateway.VoidViaRefund(ctx, func(ctx context.Context) (*models.TransactionResult, error) {
			return g.RefundStoredCc(ctx, clientReferenceID, accountReferenceID, transactionID, 0)
		})
	}
	return g.toResult(resp)
}

func (g *Gateway) RefundStoredCc(ctx context.Context, clientReferenceID, accountReferenceID, transactionID string, amount float64) (*models.TransactionResult, error) {
	params := url.Values{}
	params.Set("vault_id", accountReferenceID)
	params.Set("transaction_id", transactionID)
	if amount > 0 {
		params.Set("amount", utils.FormatAmount(amount))
	}
	resp, err := g.send(ctx, "/refunds", params)
	if err != nil {
		return nil, err
	}
	return g.toResult(resp)
}

// BuildCcForm renders the tokenized card form. The SDK script is injected at
// most once per response render, tracked by the form context.
func (g *Gateway) BuildCcForm(form *gateway.FormContext) (string, error) {
	markup := ""
	if form != nil && !form.MarkInjected("fastcharge-js") {
		markup += fmt.Sprintf("<script src=\"%s/js/fastcharge.js\" data-merchant=\"%s\"></script>\n", g.endpoint(), g.MetaValue("merchant_id"))
	}
	markup += `<div class="fastcharge-card-form" data-tokenize="true">
	<input type="text" data-fc="card_number" autocomplete="cc-number" />
	<input type="text" data-fc="expiry" autocomplete="cc-exp" />
	<input type="text" data-fc="cvv" autocomplete="cc-csc" />
</div>`
	return markup, nil
}

// BuildPaymentConfirmation returns the post-redirect step-up fragment when
// 3-D Secure is enabled, nothing otherwise.
func (g *Gateway) BuildPaymentConfirmation(form *gateway.FormContext, referenceID, transactionID string, amount float64) (string, error) {
	if g.MetaValue("three_ds") != "true" {
		return "", nil
	}
	return fmt.Sprintf(`<div class="fastcharge-challenge" data-transaction="%s" data-amount="%s"></div>`,
		transactionID, utils.FormatAmount(amount)), nil
}

func valuesToMap(params url.Values) map[string]any {
	out := make(map[string]any, len(params))
	for key := range params {
		out[key] = params.Get(key)
	}
	return out
}
