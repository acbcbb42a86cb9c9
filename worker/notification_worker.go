package worker

import (
	"context"
	"log"
	"time"

	"billing-gateway-core/database"
	"billing-gateway-core/models"
	"billing-gateway-core/queue"
)

// Worker applies validated gateway notifications to transaction state in the
// background, so webhook handlers can acknowledge callbacks immediately.
type Worker struct {
	queue     *queue.Queue
	db        *database.Connection
	shutdown  chan struct{}
	isRunning bool
}

func NewWorker(q *queue.Queue, db *database.Connection) *Worker {
	return &Worker{
		queue:    q,
		db:       db,
		shutdown: make(chan struct{}),
	}
}

func (w *Worker) Start(concurrency int) {
	w.isRunning = true

	for i := 0; i < concurrency; i++ {
		go w.processNotifications(i)
	}

	log.Printf("Started %d notification worker goroutines", concurrency)
}

func (w *Worker) Stop() {
	if !w.isRunning {
		return
	}

	log.Println("Stopping notification worker...")
	close(w.shutdown)
	w.isRunning = false
}

func (w *Worker) processNotifications(workerID int) {
	log.Printf("Notification worker %d starting", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Printf("Notification worker %d shutting down", workerID)
			return
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			notification, err := w.queue.Dequeue(ctx, 5*time.Second)
			cancel()

			if err != nil {
				log.Printf("Worker %d: error dequeuing notification: %v", workerID, err)
				time.Sleep(time.Second)
				continue
			}

			if notification == nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			log.Printf("Worker %d applying notification %s for transaction %s",
				workerID, notification.ID, notification.TransactionID)

			applyErr := w.applyNotification(notification)
			ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
			if applyErr != nil {
				log.Printf("Worker %d: error applying notification %s: %v", workerID, notification.ID, applyErr)
				if failErr := w.queue.Fail(ctx, notification, applyErr); failErr != nil {
					log.Printf("Worker %d: error marking notification %s failed: %v", workerID, notification.ID, failErr)
				}
			} else if completeErr := w.queue.Complete(ctx, notification); completeErr != nil {
				log.Printf("Worker %d: error marking notification %s complete: %v", workerID, notification.ID, completeErr)
			}
			cancel()
		}
	}
}

// applyNotification moves the transaction to the reported status. Repeated
// callback deliveries for an already-applied status are acknowledged without
// a second state change.
func (w *Worker) applyNotification(notification *queue.Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	current, err := w.db.GetTransactionStatus(ctx, notification.TransactionID)
	if err != nil {
		// First delivery for an unknown transaction records it as new.
		result := &models.TransactionResult{
			Status:        notification.Status,
			ReferenceID:   notification.ReferenceID,
			TransactionID: notification.TransactionID,
		}
		return w.db.SaveTransaction(ctx, notification.ClientID, notification.Gateway,
			notification.Amount, notification.Currency, result)
	}

	if current == notification.Status {
		log.Printf("Transaction %s already in status %s, skipping duplicate notification",
			notification.TransactionID, current)
		return nil
	}

	return w.db.UpdateTransactionStatus(ctx, notification.TransactionID, notification.Status)
}
