package collaborators

import (
	"log"
	"time"

	"document-billing-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PDFGenerator rasterizes a rendered snapshot. Implemented externally; the
// engine only cares about the storage path and timestamp it reports.
type PDFGenerator interface {
	Generate(documentID uuid.UUID, sections datatypes.JSON, values datatypes.JSON) (path string, generatedAt time.Time, err error)
}

// EmailSender delivers a transactional email for a document transition.
type EmailSender interface {
	Send(category string, recipient string, documentID uuid.UUID, token string) error
}

// Job is one post-commit side effect. Jobs run only after the owning
// transition is durably recorded, so a slow collaborator can never stall a
// transition or hold a document lock.
type Job struct {
	Kind       string // "pdf" or "email"
	DocumentID uuid.UUID
	Category   string
	Recipient  string
	Token      string
	Sections   datatypes.JSON
	Values     datatypes.JSON
}

// Dispatcher drains jobs on a background goroutine with bounded retries.
// Failures are logged as CollaboratorError and never propagate to the caller.
type Dispatcher struct {
	pdf     PDFGenerator
	email   EmailSender
	jobs    chan Job
	done    chan struct{}
	retry   int
	backoff time.Duration
}

func NewDispatcher(pdf PDFGenerator, email EmailSender) *Dispatcher {
	d := &Dispatcher{
		pdf:     pdf,
		email:   email,
		jobs:    make(chan Job, 256),
		done:    make(chan struct{}),
		retry:   3,
		backoff: 2 * time.Second,
	}
	go d.run()
	return d
}

// Enqueue never blocks the transition path: when the buffer is full the job
// is dropped and logged for out-of-band retry.
func (d *Dispatcher) Enqueue(job Job) {
	select {
	case d.jobs <- job:
	default:
		log.Printf("collaborator queue full, dropping %s job for %s", job.Kind, job.DocumentID)
	}
}

func (d *Dispatcher) Stop() {
	close(d.jobs)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for job := range d.jobs {
		var err error
		for attempt := 0; attempt <= d.retry; attempt++ {
			if attempt > 0 {
				time.Sleep(d.backoff)
			}
			err = d.dispatch(job)
			if err == nil {
				break
			}
		}
		if err != nil {
			cerr := &domain.CollaboratorError{Collaborator: job.Kind, Err: err}
			log.Printf("giving up on %s job for %s: %v", job.Kind, job.DocumentID, cerr)
		}
	}
}

func (d *Dispatcher) dispatch(job Job) error {
	switch job.Kind {
	case "pdf":
		if d.pdf == nil {
			return nil
		}
		_, _, err := d.pdf.Generate(job.DocumentID, job.Sections, job.Values)
		return err
	case "email":
		if d.email == nil {
			return nil
		}
		return d.email.Send(job.Category, job.Recipient, job.DocumentID, job.Token)
	}
	return nil
}

// LogEmailSender is the default sender: it only logs. Real delivery is an
// external collaborator.
type LogEmailSender struct{}

func (LogEmailSender) Send(category, recipient string, documentID uuid.UUID, token string) error {
	log.Printf("email %s to %s for document %s", category, recipient, documentID)
	return nil
}

// NoopPDFGenerator satisfies PDFGenerator when no rasterizer is wired.
type NoopPDFGenerator struct{}

func (NoopPDFGenerator) Generate(documentID uuid.UUID, sections, values datatypes.JSON) (string, time.Time, error) {
	return "", time.Now().UTC(), nil
}
