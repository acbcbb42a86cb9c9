package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func testDescriptor() models.GatewayDescriptor {
	return models.GatewayDescriptor{
		Name:        "Test Gateway",
		Description: "A gateway for tests",
		Version:     "1.0.0",
		Currencies:  []string{"USD"},
	}
}

func TestSessionLogGroupSharedAcrossCalls(t *testing.T) {
	store := &memoryLogStore{}
	session := NewSession(testDescriptor(), nil, store)
	session.SetGatewayID("test")
	session.SetStaffID("staff-1")

	ctx := context.Background()
	require.NoError(t, session.Log(ctx, "https://api.example.com/charges",
		map[string]any{"amount": "10.00"}, models.LogDirectionInput, true))
	require.NoError(t, session.Log(ctx, "https://api.example.com/charges",
		map[string]any{"result": "approved"}, models.LogDirectionOutput, true))

	require.Len(t, store.entries, 2)
	input, output := store.entries[0], store.entries[1]

	assert.Len(t, input.GroupID, 8)
	assert.Equal(t, input.GroupID, output.GroupID)
	assert.Equal(t, models.LogDirectionInput, input.Direction)
	assert.Equal(t, models.LogDirectionOutput, output.Direction)
	assert.Equal(t, "staff-1", input.StaffID)
	assert.Equal(t, "test", input.GatewayID)
}

func TestSessionLogGroupsDifferPerSession(t *testing.T) {
	store := &memoryLogStore{}
	ctx := context.Background()

	first := NewSession(testDescriptor(), nil, store)
	second := NewSession(testDescriptor(), nil, store)
	require.NoError(t, first.Log(ctx, "u", nil, models.LogDirectionInput, true))
	require.NoError(t, second.Log(ctx, "u", nil, models.LogDirectionInput, true))

	assert.NotEqual(t, store.entries[0].GroupID, store.entries[1].GroupID)
}

func TestSessionLogStaffFallback(t *testing.T) {
	store := &memoryLogStore{}
	session := NewSession(testDescriptor(), nil, store)

	require.NoError(t, session.Log(context.Background(), "u", nil, models.LogDirectionInput, true))
	assert.Equal(t, AmbientRequestor, store.entries[0].StaffID)
}

func TestSessionLogWriteFailureIsAnError(t *testing.T) {
	session := NewSession(testDescriptor(), nil, &memoryLogStore{fail: true})
	err := session.Log(context.Background(), "u", nil, models.LogDirectionInput, true)
	assert.Error(t, err)
}

func TestSessionLogWithoutStore(t *testing.T) {
	session := NewSession(testDescriptor(), nil, nil)
	assert.Error(t, session.Log(context.Background(), "u", nil, models.LogDirectionInput, true))
}

func TestSessionErrorState(t *testing.T) {
	session := NewSession(testDescriptor(), nil, nil)
	assert.Nil(t, session.Errors())

	errs := FieldErrors{"card_number": {"invalid": "bad"}}
	returned := session.SetErrors(errs)
	assert.Equal(t, errs, returned)
	assert.Equal(t, errs, session.Errors())

	session.ClearErrors()
	assert.Nil(t, session.Errors())
}

func TestSessionMetaIsCopied(t *testing.T) {
	session := NewSession(testDescriptor(), nil, nil)
	meta := map[string]string{"api_key": "secret"}
	require.NoError(t, session.SetMeta(meta))

	meta["api_key"] = "changed"
	assert.Equal(t, "secret", session.MetaValue("api_key"))

	out := session.Meta()
	out["api_key"] = "mutated"
	assert.Equal(t, "secret", session.MetaValue("api_key"))
}

func TestSessionTranslatedNameFallsBack(t *testing.T) {
	session := NewSession(testDescriptor(), MapTranslator{"Test Gateway": "Gateway de Teste"}, nil)
	assert.Equal(t, "Gateway de Teste", session.Name())
	assert.Equal(t, "A gateway for tests", session.Description())
}
