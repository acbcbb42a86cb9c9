package models

// Contact holds the billing contact an adapter forwards to the remote gateway.
type Contact struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Address1  string `json:"address1,omitempty"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type CardAccount struct {
	Number     string `json:"card_number"`
	Expiry     string `json:"expiry"` // MM/YY
	CVV        string `json:"cvv,omitempty"`
	HolderName string `json:"holder_name,omitempty"`
}

type AchAccountType string

const (
	AchAccountChecking AchAccountType = "checking"
	AchAccountSavings  AchAccountType = "savings"
)

type AchAccount struct {
	RoutingNumber string         `json:"routing_number"`
	AccountNumber string         `json:"account_number"`
	Type          AchAccountType `json:"account_type"`
	HolderName    string         `json:"holder_name,omitempty"`
}

// StoredAccountReference identifies a payment method the remote processor
// retains; the caller persists only these opaque reference ids plus display
// fields.
type StoredAccountReference struct {
	ClientReferenceID  string `json:"client_reference_id"`
	AccountReferenceID string `json:"account_reference_id"`
	Last4              string `json:"last4,omitempty"`
	Expiry             string `json:"expiry,omitempty"`
	Type               string `json:"type,omitempty"`
}
