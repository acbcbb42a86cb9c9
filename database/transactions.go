package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"billing-gateway-core/models"
)

// SaveTransaction records a normalized transaction result for a client.
func (c *Connection) SaveTransaction(ctx context.Context, clientID, gatewayName string, amount float64, currency string, result *models.TransactionResult) error {
	log.Printf("Saving transaction: client=%s, gateway=%s, amount=%.2f, status=%s, transactionID=%s",
		clientID, gatewayName, amount, result.Status, result.TransactionID)

	query := `
		INSERT INTO transactions (
			id, client_id, gateway_name, amount, currency,
			status, reference_id, transaction_id, message, created_at
		) VALUES (UUID(), ?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`

	_, err := c.db.ExecContext(ctx, query,
		clientID,
		gatewayName,
		amount,
		currency,
		string(result.Status),
		result.ReferenceID,
		result.TransactionID,
		result.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}

	return nil
}

func (c *Connection) GetTransactionStatus(ctx context.Context, transactionID string) (models.TransactionStatus, error) {
	var status string
	err := c.db.QueryRowContext(ctx,
		`SELECT status FROM transactions WHERE transaction_id = ? ORDER BY created_at DESC LIMIT 1`,
		transactionID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("transaction %s not found", transactionID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get transaction status: %v", err)
	}
	return models.TransactionStatus(status), nil
}

// UpdateTransactionStatus applies a status change after checking it against
// the transition table. Illegal transitions are rejected without touching the
// row.
func (c *Connection) UpdateTransactionStatus(ctx context.Context, transactionID string, next models.TransactionStatus) error {
	current, err := c.GetTransactionStatus(ctx, transactionID)
	if err != nil {
		return err
	}

	if !current.CanTransitionTo(next) {
		return fmt.Errorf("illegal status transition %s -> %s for transaction %s", current, next, transactionID)
	}

	_, err = c.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE transaction_id = ?`,
		string(next), transactionID)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %v", err)
	}

	log.Printf("Transaction %s moved from %s to %s", transactionID, current, next)
	return nil
}
