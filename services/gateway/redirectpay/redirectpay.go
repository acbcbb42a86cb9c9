package redirectpay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/golang-jwt/jwt/v5"

	"billing-gateway-core/gateway"
	"billing-gateway-core/models"
	"billing-gateway-core/utils"
)

const (
	checkoutURL = "https://checkout.redirectpay.io/pay"
	tokenIssuer = "redirectpay"
)

// Gateway is the RedirectPay offsite adapter. The customer is sent to the
// remote checkout page; RedirectPay reports the outcome on two channels, a
// signed machine callback (Validate) and the browser return redirect
// (Success). Only Validate is trusted to move transaction state.
type Gateway struct {
	*gateway.NonmerchantGateway
}

var descriptor = models.GatewayDescriptor{
	Name:        "RedirectPay",
	Description: "RedirectPay hosted checkout",
	Version:     "1.0.3",
	Authors:     []models.Author{{Name: "Core Team"}},
	Currencies:  []string{"USD", "EUR", "GBP", "BRL"},
	Logo:        "views/default/images/redirectpay.png",
	SignupURL:   "https://redirectpay.io/merchants",
}

var statusTable = map[string]models.TransactionStatus{
	"pending":    models.TransactionStatusPending,
	"paid":       models.TransactionStatusApproved,
	"rejected":   models.TransactionStatusDeclined,
	"cancelled":  models.TransactionStatusVoid,
	"refunded":   models.TransactionStatusRefunded,
	"chargeback": models.TransactionStatusReturned,
}

func New(deps gateway.Deps) gateway.Adapter {
	return &Gateway{
		NonmerchantGateway: gateway.NewNonmerchantGateway(
			gateway.NewSession(descriptor, deps.Translator, deps.Logs)),
	}
}

func Registration() gateway.Registration {
	return gateway.Registration{
		Name:         "redirectpay",
		Capabilities: []gateway.Capability{gateway.CapabilityNonmerchant},
		New:          New,
	}
}

func (g *Gateway) EncryptableFields() []string {
	return []string{"signing_secret"}
}

func (g *Gateway) SetMeta(meta map[string]string) error {
	errs := g.validateMeta(meta)
	if !errs.Empty() {
		return g.SetErrors(errs)
	}
	g.ClearErrors()
	return g.NonmerchantGateway.SetMeta(meta)
}

func (g *Gateway) validateMeta(meta map[string]string) gateway.FieldErrors {
	errs := gateway.FieldErrors{}
	if meta["account_id"] == "" {
		errs.Add("account_id", "empty", g.Translator().Translate("Please enter your RedirectPay account ID."))
	}
	if len(meta["signing_secret"]) < 16 {
		errs.Add("signing_secret", "length", g.Translator().Translate("The signing secret must be at least 16 characters."))
	}
	return errs
}

func (g *Gateway) Settings(vars map[string]string) (string, error) {
	return fmt.Sprintf(`<div class="gateway-settings">
	<label>%s<input type="text" name="account_id" value="%s" /></label>
	<label>%s<input type="password" name="signing_secret" value="%s" /></label>
</div>`,
		g.Translator().Translate("Account ID"), vars["account_id"],
		g.Translator().Translate("Signing Secret"), vars["signing_secret"]), nil
}

func (g *Gateway) EditSettings(meta map[string]string) (map[string]string, gateway.FieldErrors) {
	errs := g.validateMeta(meta)
	if !errs.Empty() {
		g.SetErrors(errs)
		return meta, errs
	}
	g.ClearErrors()
	return map[string]string{
		"account_id":     meta["account_id"],
		"signing_secret": meta["signing_secret"],
	}, nil
}

// BuildProcess renders an auto-submitting form that hands the customer to the
// hosted checkout page. Options may carry return_url and notify_url.
func (g *Gateway) BuildProcess(form *gateway.FormContext, contact *models.Contact, amount float64, invoices []models.InvoiceAmount, options map[string]string) (string, error) {
	fields := url.Values{}
	fields.Set("account_id", g.MetaValue("account_id"))
	fields.Set("amount", utils.FormatAmount(amount))
	fields.Set("currency", g.Currency())
	if contact != nil {
		fields.Set("email", contact.Email)
		fields.Set("name", contact.FirstName+" "+contact.LastName)
	}
	if encoded, err := json.Marshal(invoices); err == nil && len(invoices) > 0 {
		fields.Set("invoices", string(encoded))
	}
	for _, key := range []string{"return_url", "notify_url", "client_id"} {
		if options[key] != "" {
			fields.Set(key, options[key])
		}
	}

	markup := fmt.Sprintf("<form method=\"post\" action=\"%s\" class=\"redirectpay-checkout\">\n", checkoutURL)
	for key := range fields {
		markup += fmt.Sprintf("\t<input type=\"hidden\" name=\"%s\" value=\"%s\" />\n", key, fields.Get(key))
	}
	markup += fmt.Sprintf("\t<button type=\"submit\">%s</button>\n</form>", g.Translator().Translate("Pay with RedirectPay"))
	return markup, nil
}

type callbackClaims struct {
	ClientID            string `json:"client_id"`
	Amount              string `json:"amount"`
	Currency            string `json:"currency"`
	Invoices            string `json:"invoices,omitempty"`
	Status              string `json:"payment_status"`
	ReferenceID         string `json:"reference_id,omitempty"`
	TransactionID       string `json:"transaction_id"`
	ParentTransactionID string `json:"parent_transaction_id,omitempty"`
	jwt.RegisteredClaims
}

// Validate authenticates the machine callback. The payload is an HS256 JWT
// signed with the configured secret; anything that fails to parse or verify
// is rejected, and the logged payload never includes the raw token.
func (g *Gateway) Validate(ctx context.Context, get, post url.Values) (*gateway.NonmerchantNotification, error) {
	tokenString := post.Get("token")
	if tokenString == "" {
		tokenString = get.Get("token")
	}

	logged := map[string]any{"token": tokenString}
	masked, _ := gateway.MaskDataRecursive(logged, []string{"token"}, gateway.DefaultMaskRule).(map[string]any)
	if err := g.Log(ctx, checkoutURL+"/callback", masked, models.LogDirectionInput, tokenString != ""); err != nil {
		return nil, err
	}

	if tokenString == "" {
		return nil, g.SetErrors(g.CommonError("invalid"))
	}

	claims := &callbackClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.MetaValue("signing_secret")), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(g.MetaValue("account_id")), jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		log.Printf("RedirectPay callback rejected: %v", err)
		if logErr := g.Log(ctx, checkoutURL+"/callback", map[string]any{"verified": false}, models.LogDirectionOutput, false); logErr != nil {
			return nil, logErr
		}
		return nil, g.SetErrors(g.CommonError("invalid"))
	}

	notification, errs := g.toNotification(claims)
	if errs != nil {
		return nil, g.SetErrors(errs)
	}

	if err := g.Log(ctx, checkoutURL+"/callback", map[string]any{
		"verified":       true,
		"transaction_id": notification.TransactionID,
		"status":         notification.Status.String(),
	}, models.LogDirectionOutput, true); err != nil {
		return nil, err
	}

	g.ClearErrors()
	return notification, nil
}

// Success extracts the return-redirect payload for display. The channel is
// unauthenticated; callers must not treat it as confirmation that the
// payment happened.
func (g *Gateway) Success(get, post url.Values) (*gateway.NonmerchantNotification, error) {
	params := post
	if params.Get("transaction_id") == "" {
		params = get
	}

	amount, err := utils.ParseAmount(params.Get("amount"))
	if err != nil {
		amount = 0
	}

	return &gateway.NonmerchantNotification{
		ClientID:      params.Get("client_id"),
		Amount:        amount,
		Currency:      params.Get("currency"),
		Status:        models.MapRemoteStatus(statusTable, params.Get("payment_status")),
		ReferenceID:   params.Get("reference_id"),
		TransactionID: params.Get("transaction_id"),
	}, nil
}

func (g *Gateway) toNotification(claims *callbackClaims) (*gateway.NonmerchantNotification, gateway.FieldErrors) {
	if claims.ClientID == "" || claims.TransactionID == "" {
		return nil, g.CommonError("invalid")
	}
	amount, err := utils.ParseAmount(claims.Amount)
	if err != nil {
		return nil, g.CommonError("invalid")
	}

	var invoices []models.InvoiceAmount
	if claims.Invoices != "" {
		if err := json.Unmarshal([]byte(claims.Invoices), &invoices); err != nil {
			return nil, g.CommonError("invalid")
		}
	}

	return &gateway.NonmerchantNotification{
		ClientID:            claims.ClientID,
		Amount:              amount,
		Currency:            claims.Currency,
		Invoices:            invoices,
		Status:              models.MapRemoteStatus(statusTable, claims.Status),
		ReferenceID:         claims.ReferenceID,
		TransactionID:       claims.TransactionID,
		ParentTransactionID: claims.ParentTransactionID,
	}, nil
}
