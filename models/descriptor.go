package models

// Author credits one maintainer of a gateway adapter.
type Author struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// GatewayDescriptor is the adapter-declared identity document, loaded once at
// construction and immutable afterwards. Currencies are ISO 4217 codes.
type GatewayDescriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Authors     []Author `json:"authors"`
	Currencies  []string `json:"currencies"`
	Logo        string   `json:"logo,omitempty"`
	SignupURL   string   `json:"signup_url,omitempty"`
}

// SupportsCurrency reports whether the descriptor lists the given ISO 4217
// code.
func (d GatewayDescriptor) SupportsCurrency(code string) bool {
	for _, c := range d.Currencies {
		if c == code {
			return true
		}
	}
	return false
}
