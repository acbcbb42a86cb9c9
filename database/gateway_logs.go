package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"billing-gateway-core/models"
)

// GatewayLogStore persists append-only gateway log entries. It satisfies
// gateway.LogStore; entries are write-once and the table carries no update or
// delete path.
type GatewayLogStore struct {
	conn *Connection
}

func NewGatewayLogStore(conn *Connection) *GatewayLogStore {
	return &GatewayLogStore{conn: conn}
}

func (s *GatewayLogStore) WriteLogEntry(ctx context.Context, entry *models.GatewayLogEntry) error {
	if entry.GroupID == "" {
		return fmt.Errorf("log entry requires a group id")
	}

	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to serialize log data: %v", err)
	}

	query := `
		INSERT INTO gateway_logs (
			staff_id, gateway_id, direction, url, data, status, group_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.conn.db.ExecContext(ctx, query,
		entry.StaffID,
		entry.GatewayID,
		string(entry.Direction),
		entry.URL,
		string(data),
		string(entry.Status),
		entry.GroupID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save gateway log entry: %v", err)
	}

	return nil
}

// ListLogGroup returns every entry sharing one correlation id, oldest first.
func (s *GatewayLogStore) ListLogGroup(ctx context.Context, groupID string) ([]models.GatewayLogEntry, error) {
	query := `
		SELECT staff_id, gateway_id, direction, url, data, status, group_id, created_at
		FROM gateway_logs
		WHERE group_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.conn.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gateway log group: %v", err)
	}
	defer rows.Close()

	var entries []models.GatewayLogEntry
	for rows.Next() {
		var entry models.GatewayLogEntry
		var direction, status, data string
		var createdAt time.Time

		if err := rows.Scan(&entry.StaffID, &entry.GatewayID, &direction, &entry.URL,
			&data, &status, &entry.GroupID, &createdAt); err != nil {
			return nil, err
		}

		entry.Direction = models.LogDirection(direction)
		entry.Status = models.LogStatus(status)
		entry.CreatedAt = createdAt
		if err := json.Unmarshal([]byte(data), &entry.Data); err != nil {
			return nil, fmt.Errorf("failed to parse log data: %v", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
