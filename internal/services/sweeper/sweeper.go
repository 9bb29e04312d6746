package sweeper

import (
	"log"

	"document-billing-backend/internal/services/ledger"
	"document-billing-backend/internal/services/lifecycle"

	"github.com/robfig/cron/v3"
)

const sweepBatchSize = 500

// Sweeper runs the advisory expiry/overdue sweeps on a schedule. The sweeps
// only accelerate what lazy evaluation on access would do anyway, so a missed
// run is harmless.
type Sweeper struct {
	contracts *lifecycle.Service
	invoices  *ledger.Service
	cron      *cron.Cron
}

func New(contracts *lifecycle.Service, invoices *ledger.Service) *Sweeper {
	return &Sweeper{
		contracts: contracts,
		invoices:  invoices,
		cron:      cron.New(),
	}
}

// Start schedules hourly sweeps and runs one immediately.
func (s *Sweeper) Start() {
	s.Sweep()
	s.cron.AddFunc("@hourly", s.Sweep)
	s.cron.Start()
	log.Println("document sweeper started")
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
}

func (s *Sweeper) Sweep() {
	if n, err := s.contracts.ExpireLapsed(sweepBatchSize); err != nil {
		log.Printf("contract expiry sweep: %v", err)
	} else if n > 0 {
		log.Printf("expired %d contracts", n)
	}
	if n, err := s.invoices.SweepOverdue(sweepBatchSize); err != nil {
		log.Printf("invoice overdue sweep: %v", err)
	} else if n > 0 {
		log.Printf("marked %d invoices overdue", n)
	}
}
