package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"billing-gateway-core/models"
)

// Stored account references are the caller-side record of payment methods the
// remote processor retains. Only opaque reference ids and display fields are
// kept here; the account data itself never touches this database.

func (c *Connection) SaveStoredAccount(ctx context.Context, gatewayName string, ref *models.StoredAccountReference) error {
	log.Printf("Saving stored account reference %s for gateway %s", ref.ClientReferenceID, gatewayName)

	query := `
		INSERT INTO stored_accounts (
			gateway_name, client_reference_id, account_reference_id,
			last4, expiry, type, verified, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, NOW())
		ON DUPLICATE KEY UPDATE
			account_reference_id = VALUES(account_reference_id),
			last4 = VALUES(last4),
			expiry = VALUES(expiry),
			type = VALUES(type)
	`

	_, err := c.db.ExecContext(ctx, query,
		gatewayName,
		ref.ClientReferenceID,
		ref.AccountReferenceID,
		ref.Last4,
		ref.Expiry,
		ref.Type,
	)
	if err != nil {
		return fmt.Errorf("failed to save stored account: %v", err)
	}

	return nil
}

func (c *Connection) GetStoredAccount(ctx context.Context, gatewayName, clientReferenceID string) (*models.StoredAccountReference, error) {
	query := `
		SELECT client_reference_id, account_reference_id, last4, expiry, type
		FROM stored_accounts
		WHERE gateway_name = ? AND client_reference_id = ?
	`

	var ref models.StoredAccountReference
	err := c.db.QueryRowContext(ctx, query, gatewayName, clientReferenceID).Scan(
		&ref.ClientReferenceID,
		&ref.AccountReferenceID,
		&ref.Last4,
		&ref.Expiry,
		&ref.Type,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stored account %s not found for gateway %s", clientReferenceID, gatewayName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stored account: %v", err)
	}

	return &ref, nil
}

// MarkStoredAccountVerified flips the verified sub-state after micro-deposit
// verification succeeds. ACH accounts may not be charged before this.
func (c *Connection) MarkStoredAccountVerified(ctx context.Context, gatewayName, clientReferenceID string) error {
	query := `UPDATE stored_accounts SET verified = 1 WHERE gateway_name = ? AND client_reference_id = ?`

	result, err := c.db.ExecContext(ctx, query, gatewayName, clientReferenceID)
	if err != nil {
		return fmt.Errorf("failed to mark stored account verified: %v", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("stored account %s not found for gateway %s", clientReferenceID, gatewayName)
	}
	return nil
}

func (c *Connection) DeleteStoredAccount(ctx context.Context, gatewayName, clientReferenceID string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM stored_accounts WHERE gateway_name = ? AND client_reference_id = ?`,
		gatewayName, clientReferenceID)
	if err != nil {
		return fmt.Errorf("failed to delete stored account: %v", err)
	}
	return nil
}
