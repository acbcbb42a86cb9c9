package models

// TransactionStatus is the closed set of normalized transaction states every
// gateway adapter must map its provider vocabulary onto.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusApproved   TransactionStatus = "approved"
	TransactionStatusDeclined   TransactionStatus = "declined"
	TransactionStatusVoid       TransactionStatus = "void"
	TransactionStatusRefunded   TransactionStatus = "refunded"
	TransactionStatusReturned   TransactionStatus = "returned"
	TransactionStatusReconciled TransactionStatus = "reconciled"
	TransactionStatusError      TransactionStatus = "error"
)

func (s TransactionStatus) String() string {
	return string(s)
}

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusApproved, TransactionStatusDeclined,
		TransactionStatusVoid, TransactionStatusRefunded, TransactionStatusReturned,
		TransactionStatusReconciled, TransactionStatusError:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusRefunded || s == TransactionStatusReturned
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
// Error is reachable from any attempted transition and implies no remote-side
// state change.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if next == TransactionStatusError {
		return true
	}
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusApproved || next == TransactionStatusDeclined
	case TransactionStatusApproved:
		return next == TransactionStatusVoid || next == TransactionStatusRefunded ||
			next == TransactionStatusReturned || next == TransactionStatusReconciled
	}
	return false
}

// MapRemoteStatus normalizes a provider-specific status string through the
// adapter's mapping table. A remote status the table does not recognize yields
// error, never approved.
func MapRemoteStatus(table map[string]TransactionStatus, remote string) TransactionStatus {
	if status, ok := table[remote]; ok && status.IsValid() {
		return status
	}
	return TransactionStatusError
}

// TransactionResult is the normalized outcome of a single capability call.
type TransactionResult struct {
	Status        TransactionStatus `json:"status"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Message       string            `json:"message,omitempty"`
}

// InvoiceAmount ties a portion of a charge to one invoice.
type InvoiceAmount struct {
	InvoiceID string  `json:"invoice_id"`
	Amount    float64 `json:"amount"`
}
