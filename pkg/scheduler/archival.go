package scheduler

import (
	"context"
	"time"

	"github.com/fadedpez/caminata/internal/logging"
	ledgerRepo "github.com/fadedpez/caminata/pkg/repositories/ledger"
)

// ArchivalScheduler manages the recurring ledger-history archival work:
// copying aged entries into Elasticsearch and pruning indices past the
// retention period.
type ArchivalScheduler struct {
	scheduler *Scheduler
	archiver  *ledgerRepo.ElasticsearchArchiver
	interval  time.Duration
}

// NewArchivalScheduler creates a scheduler around the given archiver
func NewArchivalScheduler(archiver *ledgerRepo.ElasticsearchArchiver, interval time.Duration) *ArchivalScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ArchivalScheduler{
		scheduler: NewScheduler(),
		archiver:  archiver,
		interval:  interval,
	}
}

// Start begins the archival and pruning tasks
func (s *ArchivalScheduler) Start(ctx context.Context) {
	s.scheduler.AddTask("entry_archival", s.interval, s.archiver.ArchiveNewEntries)
	s.scheduler.AddTask("index_pruning", 24*time.Hour, s.archiver.PruneOldIndices)

	s.scheduler.Start(ctx)
	logging.Default.Info("Ledger archival scheduler started")
}

// Stop stops the archival tasks
func (s *ArchivalScheduler) Stop() {
	s.scheduler.Stop()
}
