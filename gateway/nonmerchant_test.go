package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNonmerchant() *NonmerchantGateway {
	return NewNonmerchantGateway(NewSession(testDescriptor(), nil, nil))
}

func TestNonmerchantOptionalOperationsDefaultToUnsupported(t *testing.T) {
	g := newTestNonmerchant()
	ctx := context.Background()

	// Probing an unimplemented post-payment operation reports a field error
	// instead of panicking.
	_, err := g.Capture(ctx, "ref", "txn", 10, nil)
	require.Error(t, err)

	var errs FieldErrors
	require.ErrorAs(t, err, &errs)
	assert.NotEmpty(t, errs["gateway"]["unsupported"])
	assert.Equal(t, errs, g.Errors())

	_, err = g.Void(ctx, "ref", "txn")
	assert.Error(t, err)
	_, err = g.Refund(ctx, "ref", "txn", 10)
	assert.Error(t, err)
}

func TestNonmerchantBuildDefaultsRenderNothing(t *testing.T) {
	g := newTestNonmerchant()

	markup, err := g.BuildProcess(NewFormContext(), nil, 10, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, markup)

	markup, err = g.BuildAuthorize(NewFormContext(), nil, 10, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, markup)
}
