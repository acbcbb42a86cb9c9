package models

import "time"

type LogDirection string

const (
	LogDirectionInput  LogDirection = "input"
	LogDirectionOutput LogDirection = "output"
)

type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
)

// GatewayLogEntry is one append-only audit record of a remote gateway
// exchange. Data must already be masked before the entry is built; entries
// are never mutated or deleted.
type GatewayLogEntry struct {
	StaffID   string         `json:"staff_id"`
	GatewayID string         `json:"gateway_id"`
	Direction LogDirection   `json:"direction"`
	URL       string         `json:"url"`
	Data      map[string]any `json:"data"`
	Status    LogStatus      `json:"status"`
	GroupID   string         `json:"group_id"`
	CreatedAt time.Time      `json:"created_at"`
}
