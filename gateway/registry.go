package gateway

import (
	"fmt"
	"sync"

	"billing-gateway-core/models"
)

// Capability names an independently implementable contract an adapter may
// declare. The declared set is checked against the adapter's actual interface
// at registration time, so the orchestrator never type-probes at call time.
type Capability string

const (
	CapabilityMerchantCc              Capability = "merchant_cc"
	CapabilityMerchantCcOffsite       Capability = "merchant_cc_offsite"
	CapabilityMerchantCcForm          Capability = "merchant_cc_form"
	CapabilityMerchantAch             Capability = "merchant_ach"
	CapabilityMerchantAchOffsite      Capability = "merchant_ach_offsite"
	CapabilityMerchantAchForm         Capability = "merchant_ach_form"
	CapabilityMerchantAchVerification Capability = "merchant_ach_verification"
	CapabilityNonmerchant             Capability = "nonmerchant"
)

// Adapter is the surface every registered gateway exposes regardless of
// family. Most of it is provided by embedding *Session; Settings and
// EditSettings are adapter-specific.
type Adapter interface {
	Descriptor() models.GatewayDescriptor
	SetGatewayID(id string)
	SetStaffID(id string)
	SetCurrency(code string)
	SetMeta(meta map[string]string) error
	Meta() map[string]string
	EncryptableFields() []string
	Errors() FieldErrors
	Install() error
	Upgrade(fromVersion string) error
	Uninstall(gatewayID string, lastInstance bool) error

	// Settings renders the adapter's configuration form markup.
	Settings(vars map[string]string) (string, error)
	// EditSettings validates submitted configuration, returning the
	// accepted meta on success or echoing the input alongside field
	// errors on failure.
	EditSettings(meta map[string]string) (map[string]string, FieldErrors)
}

// Deps carries the collaborators a factory needs to build a fresh adapter
// session.
type Deps struct {
	Translator Translator
	Logs       LogStore
}

// Factory builds one adapter instance bound to a new Session. Every in-flight
// transaction gets its own instance; adapters are not safe for concurrent
// use.
type Factory func(deps Deps) Adapter

type Registration struct {
	Name         string
	Capabilities []Capability
	New          Factory
}

// Registry resolves configured provider names to adapter factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// Register records an adapter factory after verifying that a built instance
// actually satisfies every declared capability interface.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("gateway registration requires a name")
	}
	if reg.New == nil {
		return fmt.Errorf("gateway %s: registration requires a factory", reg.Name)
	}
	if len(reg.Capabilities) == 0 {
		return fmt.Errorf("gateway %s: registration requires at least one capability", reg.Name)
	}

	probe := reg.New(Deps{})
	for _, capability := range reg.Capabilities {
		if err := verifyCapability(probe, capability); err != nil {
			return fmt.Errorf("gateway %s: %v", reg.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[reg.Name]; exists {
		return fmt.Errorf("gateway %s: already registered", reg.Name)
	}
	r.entries[reg.Name] = reg
	return nil
}

func (r *Registry) Resolve(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	if !ok {
		return Registration{}, fmt.Errorf("gateway %s: not registered", name)
	}
	return reg, nil
}

// Supports reports whether the named gateway declared the capability.
func (r *Registry) Supports(name string, capability Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	if !ok {
		return false
	}
	for _, c := range reg.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

func verifyCapability(adapter Adapter, capability Capability) error {
	var ok bool
	switch capability {
	case CapabilityMerchantCc:
		_, ok = adapter.(MerchantCcGateway)
	case CapabilityMerchantCcOffsite:
		_, ok = adapter.(MerchantCcOffsiteGateway)
	case CapabilityMerchantCcForm:
		_, ok = adapter.(MerchantCcFormGateway)
	case CapabilityMerchantAch:
		_, ok = adapter.(MerchantAchGateway)
	case CapabilityMerchantAchOffsite:
		_, ok = adapter.(MerchantAchOffsiteGateway)
	case CapabilityMerchantAchForm:
		_, ok = adapter.(MerchantAchFormGateway)
	case CapabilityMerchantAchVerification:
		_, ok = adapter.(MerchantAchVerificationGateway)
	case CapabilityNonmerchant:
		_, ok = adapter.(NonmerchantAdapter)
	default:
		return fmt.Errorf("unknown capability %q", capability)
	}
	if !ok {
		return fmt.Errorf("adapter does not implement declared capability %q", capability)
	}
	return nil
}
