package fastcharge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-gateway-core/gateway"
	"billing-gateway-core/models"
)

type memoryLogStore struct {
	entries []models.GatewayLogEntry
	fail    bool
}

func (s *memoryLogStore) WriteLogEntry(ctx context.Context, entry *models.GatewayLogEntry) error {
	if s.fail {
		return fmt.Errorf("log store unavailable")
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func newTestGateway(t *testing.T, serverURL string, extraMeta map[string]string) (*Gateway, *memoryLogStore) {
	t.Helper()
	store := &memoryLogStore{}
	adapter := New(gateway.Deps{Logs: store})

	meta := map[string]string{
		"api_key":     "sk_test_1234567890",
		"merchant_id": "m-100",
		"api_url":     serverURL,
	}
	for key, value := range extraMeta {
		meta[key] = value
	}

	adapter.SetGatewayID("fastcharge")
	adapter.SetStaffID("staff-7")
	adapter.SetCurrency("USD")
	require.NoError(t, adapter.SetMeta(meta))

	return adapter.(*Gateway), store
}

func testCard() *models.CardAccount {
	return &models.CardAccount{
		Number:     "4111111111111111",
		Expiry:     "12/27",
		CVV:        "123",
		HolderName: "Ann Smith",
	}
}

func TestProcessCcApproved(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/charges", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"card_number": r.PostForm.Get("card_number"),
			"amount":      r.PostForm.Get("amount"),
			"currency":    r.PostForm.Get("currency"),
			"api_key":     r.PostForm.Get("api_key"),
		}
		fmt.Fprint(w, `{"result":"approved","reference":"ref-1","transaction_id":"txn-1","message":"ok"}`)
	}))
	defer server.Close()

	g, store := newTestGateway(t, server.URL, nil)
	result, err := g.ProcessCc(context.Background(), testCard(), nil, 10.5, nil)
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusApproved, result.Status)
	assert.Equal(t, "ref-1", result.ReferenceID)
	assert.Equal(t, "txn-1", result.TransactionID)
	assert.Nil(t, g.Errors())

	// The wire carries the real values.
	assert.Equal(t, "4111111111111111", gotForm["card_number"])
	assert.Equal(t, "10.50", gotForm["amount"])
	assert.Equal(t, "USD", gotForm["currency"])
	assert.Equal(t, "sk_test_1234567890", gotForm["api_key"])

	// One input and one output leg, sharing a group id, with sensitive
	// fields masked.
	require.Len(t, store.entries, 2)
	input, output := store.entries[0], store.entries[1]
	assert.Equal(t, models.LogDirectionInput, input.Direction)
	assert.Equal(t, models.LogDirectionOutput, output.Direction)
	assert.Len(t, input.GroupID, 8)
	assert.Equal(t, input.GroupID, output.GroupID)
	assert.Equal(t, models.LogStatusSuccess, output.Status)
	assert.Equal(t, "staff-7", input.StaffID)

	assert.Equal(t, "4111xxxxxxxxxxxx", input.Data["card_number"])
	assert.Equal(t, "sk_txxxxxxxxxxxxxx", input.Data["api_key"])
	assert.Equal(t, "10.50", input.Data["amount"])
}

func TestProcessCcUnknownRemoteStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"half-approved","transaction_id":"txn-2"}`)
	}))
	defer server.Close()

	g, _ := newTestGateway(t, server.URL, nil)
	result, err := g.ProcessCc(context.Background(), testCard(), nil, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusError, result.Status)
}

func TestProcessCcErrorCodeMapsToCommonError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"E_CVV","message":"bad cvv"}`)
	}))
	defer server.Close()

	g, store := newTestGateway(t, server.URL, nil)
	_, err := g.ProcessCc(context.Background(), testCard(), nil, 10, nil)
	require.Error(t, err)

	var errs gateway.FieldErrors
	require.ErrorAs(t, err, &errs)
	assert.NotEmpty(t, errs["cvv"]["invalid_security_code"])
	assert.Equal(t, errs, g.Errors())

	// The output leg records the failed exchange.
	require.Len(t, store.entries, 2)
	assert.Equal(t, models.LogStatusError, store.entries[1].Status)
}

func TestProcessCcUnknownErrorCodeIsGeneral(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"E_BRAND_NEW"}`)
	}))
	defer server.Close()

	g, _ := newTestGateway(t, server.URL, nil)
	_, err := g.ProcessCc(context.Background(), testCard(), nil, 10, nil)
	require.Error(t, err)

	var errs gateway.FieldErrors
	require.ErrorAs(t, err, &errs)
	assert.NotEmpty(t, errs["gateway"]["general"])
}

func TestLogWriteFailureAbortsCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the remote when the audit write fails")
	}))
	defer server.Close()

	g, store := newTestGateway(t, server.URL, nil)
	store.fail = true

	_, err := g.ProcessCc(context.Background(), testCard(), nil, 10, nil)
	assert.Error(t, err)
}

func TestVoidCcSettledFallsBackToRefund(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/voids":
			fmt.Fprint(w, `{"code":"E_SETTLED","message":"settled"}`)
		case "/refunds":
			fmt.Fprint(w, `{"result":"refunded","transaction_id":"txn-3"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	g, _ := newTestGateway(t, server.URL, nil)
	result, err := g.VoidCc(context.Background(), "ref-3", "txn-3")
	require.NoError(t, err)

	// The refund outcome is relabeled as a void.
	assert.Equal(t, models.TransactionStatusVoid, result.Status)
	assert.Equal(t, "ref-3", result.ReferenceID)
	assert.Equal(t, []string{"/voids", "/refunds"}, paths)
}

func TestStoreAndChargeStoredCc(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/vault":
			assert.NotEmpty(t, r.PostForm.Get("client_reference"))
			fmt.Fprint(w, `{"result":"approved","vault_id":"v-9","last4":"1111","card_type":"visa","expiry":"12/27"}`)
		case "/vault/charges":
			assert.Equal(t, "v-9", r.PostForm.Get("vault_id"))
			fmt.Fprint(w, `{"result":"approved","transaction_id":"txn-4"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	g, _ := newTestGateway(t, server.URL, map[string]string{"use_vault": "true"})
	assert.True(t, g.RequiresCcStorage())

	ctx := context.Background()
	ref, err := g.StoreCc(ctx, testCard(), nil, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "client-1", ref.ClientReferenceID)
	assert.Equal(t, "v-9", ref.AccountReferenceID)
	assert.Equal(t, "1111", ref.Last4)

	result, err := g.ProcessStoredCc(ctx, ref.ClientReferenceID, ref.AccountReferenceID, 25, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusApproved, result.Status)
	assert.Equal(t, "txn-4", result.TransactionID)
}

func TestRequiresCcStorageFollowsMeta(t *testing.T) {
	g, _ := newTestGateway(t, "http://unused", nil)
	assert.False(t, g.RequiresCcStorage())

	g, _ = newTestGateway(t, "http://unused", map[string]string{"use_vault": "true"})
	assert.True(t, g.RequiresCcStorage())
}

func TestSetMetaValidation(t *testing.T) {
	adapter := New(gateway.Deps{})
	err := adapter.SetMeta(map[string]string{"merchant_id": "m-100"})
	require.Error(t, err)

	var errs gateway.FieldErrors
	require.ErrorAs(t, err, &errs)
	assert.NotEmpty(t, errs["api_key"]["empty"])
	assert.Equal(t, errs, adapter.Errors())
}

func TestEditSettingsEchoesInputOnFailure(t *testing.T) {
	adapter := New(gateway.Deps{}).(*Gateway)

	submitted := map[string]string{"api_key": "", "merchant_id": "m-100", "use_vault": "maybe"}
	echoed, errs := adapter.EditSettings(submitted)
	require.NotNil(t, errs)
	assert.Equal(t, submitted, echoed)
	assert.NotEmpty(t, errs["use_vault"]["valid"])

	accepted, errs := adapter.EditSettings(map[string]string{
		"api_key": "sk_live_1", "merchant_id": "m-100", "use_vault": "false",
	})
	require.Nil(t, errs)
	assert.Equal(t, "sk_live_1", accepted["api_key"])
}

func TestBuildCcFormInjectsScriptOnce(t *testing.T) {
	g, _ := newTestGateway(t, "http://unused", nil)
	form := gateway.NewFormContext()

	first, err := g.BuildCcForm(form)
	require.NoError(t, err)
	assert.Contains(t, first, "fastcharge.js")

	second, err := g.BuildCcForm(form)
	require.NoError(t, err)
	assert.NotContains(t, second, "fastcharge.js")
	assert.Contains(t, second, "fastcharge-card-form")
}

func TestBuildPaymentConfirmationGatedOnThreeDS(t *testing.T) {
	g, _ := newTestGateway(t, "http://unused", nil)
	markup, err := g.BuildPaymentConfirmation(gateway.NewFormContext(), "ref", "txn", 10)
	require.NoError(t, err)
	assert.Empty(t, markup)

	g, _ = newTestGateway(t, "http://unused", map[string]string{"three_ds": "true"})
	markup, err = g.BuildPaymentConfirmation(gateway.NewFormContext(), "ref", "txn", 10)
	require.NoError(t, err)
	assert.Contains(t, markup, "fastcharge-challenge")
}
