package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"billing-gateway-core/models"
)

// Notification is one validated callback from an offsite gateway, queued for
// background application to transaction state.
type Notification struct {
	ID                  string                   `json:"id"`
	Gateway             string                   `json:"gateway"`
	ClientID            string                   `json:"client_id"`
	Amount              float64                  `json:"amount"`
	Currency            string                   `json:"currency"`
	Status              models.TransactionStatus `json:"status"`
	ReferenceID         string                   `json:"reference_id,omitempty"`
	TransactionID       string                   `json:"transaction_id"`
	ParentTransactionID string                   `json:"parent_transaction_id,omitempty"`
	ReceivedAt          time.Time                `json:"received_at"`
	RetryCount          int                      `json:"retry_count"`
}

type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	failed     string
}

func NewQueue(redisURL, queueName string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %v", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		failed:     queueName + ":failed",
	}, nil
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, notification *Notification) error {
	if notification.ID == "" {
		notification.ID = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	if notification.ReceivedAt.IsZero() {
		notification.ReceivedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %v", err)
	}

	if err := q.client.RPush(ctx, q.queueName, payload).Err(); err != nil {
		return fmt.Errorf("failed to push notification to queue: %v", err)
	}

	log.Printf("Enqueued gateway notification %s for transaction %s", notification.ID, notification.TransactionID)
	return nil
}

// Dequeue pops the next notification, parking it on the processing list until
// completed or failed. Returns nil when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Notification, error) {
	payload, err := q.client.BLMove(ctx, q.queueName, q.processing, "LEFT", "RIGHT", timeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop notification: %v", err)
	}

	var notification Notification
	if err := json.Unmarshal([]byte(payload), &notification); err != nil {
		q.client.LRem(ctx, q.processing, 1, payload)
		return nil, fmt.Errorf("failed to unmarshal notification: %v", err)
	}

	return &notification, nil
}

func (q *Queue) Complete(ctx context.Context, notification *Notification) error {
	return q.remove(ctx, q.processing, notification)
}

// Fail moves the notification to the failed list for inspection; callbacks
// are re-delivered by the remote gateway, not replayed from here.
func (q *Queue) Fail(ctx context.Context, notification *Notification, cause error) error {
	if err := q.remove(ctx, q.processing, notification); err != nil {
		return err
	}

	notification.RetryCount++
	log.Printf("Notification %s failed (attempt %d): %v", notification.ID, notification.RetryCount, cause)

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal failed notification: %v", err)
	}
	return q.client.RPush(ctx, q.failed, payload).Err()
}

func (q *Queue) remove(ctx context.Context, list string, notification *Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	if err := q.client.LRem(ctx, list, 1, string(payload)).Err(); err != nil {
		return fmt.Errorf("failed to remove notification from %s: %v", list, err)
	}
	return nil
}
