package gateway

import (
	"context"
	"fmt"
	"time"

	"billing-gateway-core/models"
	"billing-gateway-core/utils"
)

// AmbientRequestor is the staff attribution used when no staff id was set on
// the session, e.g. for machine callbacks processed outside a staff request.
const AmbientRequestor = "system"

const logGroupLength = 8

// LogStore is the persistence collaborator accepting append-only log writes.
type LogStore interface {
	WriteLogEntry(ctx context.Context, entry *models.GatewayLogEntry) error
}

// Session carries the descriptor and per-transaction mutable state every
// gateway adapter shares: attribution ids, active currency, decrypted meta
// and the lazily created log group. One Session serves one in-flight
// transaction and is not safe for concurrent use.
type Session struct {
	descriptor models.GatewayDescriptor
	translator Translator
	logs       LogStore

	staffID   string
	gatewayID string
	currency  string
	meta      map[string]string
	logGroup  string

	lastErrors FieldErrors
}

func NewSession(descriptor models.GatewayDescriptor, translator Translator, logs LogStore) *Session {
	if translator == nil {
		translator = MapTranslator(nil)
	}
	return &Session{
		descriptor: descriptor,
		translator: translator,
		logs:       logs,
	}
}

func (s *Session) Descriptor() models.GatewayDescriptor { return s.descriptor }

// Name returns the localized gateway name, falling back to the declared one.
func (s *Session) Name() string {
	return s.translator.Translate(s.descriptor.Name)
}

func (s *Session) Description() string {
	return s.translator.Translate(s.descriptor.Description)
}

func (s *Session) Version() string            { return s.descriptor.Version }
func (s *Session) Authors() []models.Author   { return s.descriptor.Authors }
func (s *Session) Currencies() []string       { return s.descriptor.Currencies }
func (s *Session) Logo() string               { return s.descriptor.Logo }
func (s *Session) SignupURL() string          { return s.descriptor.SignupURL }
func (s *Session) Translator() Translator     { return s.translator }

func (s *Session) SetCurrency(code string) { s.currency = code }
func (s *Session) Currency() string        { return s.currency }

func (s *Session) SetGatewayID(id string) { s.gatewayID = id }
func (s *Session) GatewayID() string      { return s.gatewayID }

func (s *Session) SetStaffID(id string) { s.staffID = id }
func (s *Session) StaffID() string      { return s.staffID }

// SetMeta stores the adapter's decrypted configuration. The map is copied and
// treated as read-only afterwards. Adapters that validate their meta override
// this and delegate here on success.
func (s *Session) SetMeta(meta map[string]string) error {
	copied := make(map[string]string, len(meta))
	for key, value := range meta {
		copied[key] = value
	}
	s.meta = copied
	return nil
}

func (s *Session) Meta() map[string]string {
	out := make(map[string]string, len(s.meta))
	for key, value := range s.meta {
		out[key] = value
	}
	return out
}

func (s *Session) MetaValue(key string) string { return s.meta[key] }

// EncryptableFields names the meta fields the persistence layer must encrypt
// at rest. Adapters holding credentials override this.
func (s *Session) EncryptableFields() []string { return nil }

// Errors exposes the validation errors accumulated by the last settings or
// capability call, nil when none.
func (s *Session) Errors() FieldErrors { return s.lastErrors }

// SetErrors records errs as the session's last validation-error set and
// returns it, so adapters can fail with `return nil, s.SetErrors(errs)`.
func (s *Session) SetErrors(errs FieldErrors) FieldErrors {
	s.lastErrors = errs
	return errs
}

func (s *Session) ClearErrors() { s.lastErrors = nil }

// Lifecycle hooks default to no-ops; adapters needing provisioning work
// override them.
func (s *Session) Install() error                                 { return nil }
func (s *Session) Upgrade(fromVersion string) error               { return nil }
func (s *Session) Uninstall(gatewayID string, lastInstance bool) error { return nil }

// LogGroup returns the session's correlation id, fixed on first log write.
func (s *Session) LogGroup() string { return s.logGroup }

// Log writes one append-only audit entry for a remote exchange leg. The data
// map must already be masked. The group id is created on the first call and
// reused for every later call in this session, correlating the input and
// output legs of each remote call. A failed write aborts the surrounding
// operation: an unaudited money movement is a correctness violation.
func (s *Session) Log(ctx context.Context, url string, data map[string]any, direction models.LogDirection, success bool) error {
	if s.logs == nil {
		return fmt.Errorf("gateway %s: no log store configured", s.descriptor.Name)
	}
	if s.logGroup == "" {
		s.logGroup = utils.RandomString(logGroupLength)
	}

	staffID := s.staffID
	if staffID == "" {
		staffID = AmbientRequestor
	}

	status := models.LogStatusSuccess
	if !success {
		status = models.LogStatusError
	}

	entry := &models.GatewayLogEntry{
		StaffID:   staffID,
		GatewayID: s.gatewayID,
		Direction: direction,
		URL:       url,
		Data:      data,
		Status:    status,
		GroupID:   s.logGroup,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.logs.WriteLogEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to write gateway log entry: %v", err)
	}
	return nil
}
