package reconciliation

import (
	"errors"
	"log"
	"time"

	"document-billing-backend/internal/domain"
	"document-billing-backend/internal/repository"

	"github.com/google/uuid"
)

// Queue is the message-passing boundary between webhook delivery and the
// reconciler. HTTP acknowledges as soon as the receipt is durable; the worker
// drains events here, so retries and out-of-order delivery are handled at
// the domain layer rather than the transport layer.
type Queue struct {
	svc      *ReconciliationService
	payments *repository.PaymentRepository
	jobs     chan job
	done     chan struct{}
}

type job struct {
	receiptID uuid.UUID
	event     WebhookEvent
}

func NewQueue(svc *ReconciliationService, payments *repository.PaymentRepository) *Queue {
	q := &Queue{
		svc:      svc,
		payments: payments,
		jobs:     make(chan job, 512),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue hands a first-delivery event to the worker. It blocks when the
// buffer is full: dropping a partially-applied payment event is not
// acceptable, backpressure on the webhook endpoint is.
func (q *Queue) Enqueue(receiptID uuid.UUID, evt WebhookEvent) {
	q.jobs <- job{receiptID: receiptID, event: evt}
}

func (q *Queue) Stop() {
	close(q.jobs)
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for j := range q.jobs {
		q.process(j)
	}
}

// process always runs the event to completion or to a definite error. A lost
// optimistic-concurrency race re-reads and retries; a logical failure is
// recorded on the receipt for manual review and never redelivered.
func (q *Queue) process(j job) {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		err = q.svc.Apply(j.event)
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
			continue
		}
		break
	}

	outcome := ""
	if err != nil {
		outcome = err.Error()
		log.Printf("reconciliation of %s failed: %v", j.event.Key(), err)
	}
	if markErr := q.payments.MarkReceiptProcessed(j.receiptID, outcome); markErr != nil {
		log.Printf("marking receipt %s processed: %v", j.receiptID, markErr)
	}
}
