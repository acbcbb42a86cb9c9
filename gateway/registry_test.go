package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-gateway-core/models"
)

// fakeAdapter covers only the shared Adapter surface.
type fakeAdapter struct {
	*Session
}

func (a *fakeAdapter) Settings(vars map[string]string) (string, error) { return "", nil }
func (a *fakeAdapter) EditSettings(meta map[string]string) (map[string]string, FieldErrors) {
	return meta, nil
}

// fakeCcAdapter additionally implements MerchantCcGateway.
type fakeCcAdapter struct {
	fakeAdapter
}

func (a *fakeCcAdapter) ProcessCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	return &models.TransactionResult{Status: models.TransactionStatusApproved}, nil
}
func (a *fakeCcAdapter) AuthorizeCc(ctx context.Context, card *models.CardAccount, contact *models.Contact, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	return nil, fmt.Errorf("not implemented")
}
func (a *fakeCcAdapter) CaptureCc(ctx context.Context, referenceID, transactionID string, amount float64, invoices []models.InvoiceAmount) (*models.TransactionResult, error) {
	return nil, fmt.Errorf("not implemented")
}
func (a *fakeCcAdapter) VoidCc(ctx context.Context, referenceID, transactionID string) (*models.TransactionResult, error) {
	return nil, fmt.Errorf("not implemented")
}
func (a *fakeCcAdapter) RefundCc(ctx context.Context, referenceID, transactionID string, amount float64) (*models.TransactionResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func fakeCcFactory(deps Deps) Adapter {
	return &fakeCcAdapter{fakeAdapter{NewSession(testDescriptor(), deps.Translator, deps.Logs)}}
}

func TestRegisterVerifiesCapabilities(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(Registration{
		Name:         "honest",
		Capabilities: []Capability{CapabilityMerchantCc},
		New:          fakeCcFactory,
	})
	require.NoError(t, err)

	// Declaring a capability the adapter does not implement fails at
	// registration, not mid-transaction.
	err = registry.Register(Registration{
		Name:         "liar",
		Capabilities: []Capability{CapabilityMerchantCc},
		New: func(deps Deps) Adapter {
			return &fakeAdapter{NewSession(testDescriptor(), deps.Translator, deps.Logs)}
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merchant_cc")

	_, err = registry.Resolve("liar")
	assert.Error(t, err)
}

func TestRegisterRejectsUnknownCapability(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(Registration{
		Name:         "novel",
		Capabilities: []Capability{Capability("merchant_crypto")},
		New:          fakeCcFactory,
	})
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicatesAndInvalid(t *testing.T) {
	registry := NewRegistry()
	reg := Registration{
		Name:         "dup",
		Capabilities: []Capability{CapabilityMerchantCc},
		New:          fakeCcFactory,
	}
	require.NoError(t, registry.Register(reg))
	assert.Error(t, registry.Register(reg))

	assert.Error(t, registry.Register(Registration{Name: "", Capabilities: reg.Capabilities, New: reg.New}))
	assert.Error(t, registry.Register(Registration{Name: "nofactory", Capabilities: reg.Capabilities}))
	assert.Error(t, registry.Register(Registration{Name: "nocaps", New: reg.New}))
}

func TestResolveAndSupports(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(Registration{
		Name:         "cc",
		Capabilities: []Capability{CapabilityMerchantCc},
		New:          fakeCcFactory,
	}))

	reg, err := registry.Resolve("cc")
	require.NoError(t, err)
	adapter := reg.New(Deps{})
	_, ok := adapter.(MerchantCcGateway)
	assert.True(t, ok)

	assert.True(t, registry.Supports("cc", CapabilityMerchantCc))
	assert.False(t, registry.Supports("cc", CapabilityNonmerchant))
	assert.False(t, registry.Supports("missing", CapabilityMerchantCc))

	_, err = registry.Resolve("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"cc"}, registry.Names())
}
