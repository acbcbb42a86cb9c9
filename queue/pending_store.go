package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"billing-gateway-core/models"
)

// PendingTransaction stashes the context of a redirect checkout between the
// moment the customer leaves for the remote gateway and the callback that
// reports the outcome.
type PendingTransaction struct {
	ID        string                 `json:"id"`
	ClientID  string                 `json:"client_id"`
	Gateway   string                 `json:"gateway"`
	Amount    float64                `json:"amount"`
	Currency  string                 `json:"currency"`
	Invoices  []models.InvoiceAmount `json:"invoices,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// PendingStore holds pending redirect transactions in redis with a TTL, since
// an abandoned checkout never produces a callback.
type PendingStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPendingStore(client *redis.Client, ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &PendingStore{client: client, ttl: ttl}
}

func pendingKey(id string) string {
	return "gateway:pending:" + id
}

func (s *PendingStore) Save(ctx context.Context, pending *PendingTransaction) error {
	if pending.ID == "" {
		return fmt.Errorf("pending transaction requires an id")
	}
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending transaction: %v", err)
	}

	if err := s.client.Set(ctx, pendingKey(pending.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save pending transaction: %v", err)
	}
	return nil
}

func (s *PendingStore) Get(ctx context.Context, id string) (*PendingTransaction, error) {
	payload, err := s.client.Get(ctx, pendingKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transaction: %v", err)
	}

	var pending PendingTransaction
	if err := json.Unmarshal([]byte(payload), &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending transaction: %v", err)
	}
	return &pending, nil
}

func (s *PendingStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, pendingKey(id)).Err()
}
