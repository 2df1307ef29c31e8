// Package scheduler periodically selects series that are due for a re-check
// and drives them through the reconciler with bounded concurrency.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/corvida/mangrove/internal/config"
	"github.com/corvida/mangrove/internal/lifecycle"
	"github.com/corvida/mangrove/internal/models"
	"github.com/corvida/mangrove/internal/reconcile"
	"github.com/corvida/mangrove/internal/storage"
	"github.com/corvida/mangrove/internal/store"
)

// batchLimit caps how many due series one pass will pick up.
const batchLimit = 100

// Service owns the sweep and purge passes.
type Service struct {
	st      *store.Store
	rec     *reconcile.Reconciler
	backend storage.Backend
	cfg     config.IngestConfig
}

// New creates a scheduler Service.
func New(st *store.Store, rec *reconcile.Reconciler, backend storage.Backend, cfg config.IngestConfig) *Service {
	return &Service{st: st, rec: rec, backend: backend, cfg: cfg}
}

// RunPass selects every series whose next_checked_at has elapsed and
// reconciles them on a fixed-size worker pool. One series' failure never
// blocks the others: each worker logs, applies the error transition and
// moves on.
func (s *Service) RunPass(ctx context.Context) {
	due, err := s.st.GetDueSeries(time.Now(), batchLimit)
	if err != nil {
		log.Printf("Scheduler: failed to select due series: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Printf("Scheduler: %d series due for re-check", len(due))

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan *models.Series)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for series := range jobs {
				s.processSeries(ctx, series)
			}
		}()
	}

	for _, series := range due {
		jobs <- series
	}
	close(jobs)
	wg.Wait()
}

// processSeries runs one reconciliation pass for one series, holding the
// 'processing' lease for its duration. The pass always ends with
// CompletePass so next_checked_at advances no matter what happened.
func (s *Service) processSeries(ctx context.Context, series *models.Series) {
	claimed, err := s.st.ClaimSeries(series.ID)
	if err != nil {
		log.Printf("Scheduler: failed to claim series %d: %v", series.ID, err)
		return
	}
	if !claimed {
		// Another worker holds the lease, or the series entered deletion
		// since selection.
		return
	}

	prior := series.ProcessingStatus
	final := models.StatusError

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Scheduler: series %d reconciliation panicked: %v", series.ID, r)
			final = models.StatusError
		}
		if err := s.st.CompletePass(series.ID, final, time.Now()); err != nil {
			log.Printf("Scheduler: failed to complete pass for series %d: %v", series.ID, err)
		}
	}()

	report, err := s.rec.Run(ctx, series)
	if err != nil {
		log.Printf("Scheduler: series %d (%s) failed terminally: %v", series.ID, series.Title, err)
		final = models.StatusError
		return
	}

	final = lifecycle.AfterReconcile(prior, len(report.Added), len(report.Failed))
	log.Printf("Scheduler: series %d pass done: %d added, %d failed, %d skipped (status %s -> %s)",
		series.ID, len(report.Added), len(report.Failed), len(report.Skipped), prior, final)
}

// RunPurge walks the deletion sub-chain: pending_deletion series move to
// deleting, their storage objects are removed, and on success the row is
// deleted. A failure leaves the series in deletion_failed, which is terminal
// until an operator intervenes; the sweep never picks it up again.
func (s *Service) RunPurge(ctx context.Context) {
	pending, err := s.st.GetSeriesPendingDeletion()
	if err != nil {
		log.Printf("Purge: failed to select series pending deletion: %v", err)
		return
	}

	for _, series := range pending {
		if err := ctx.Err(); err != nil {
			return
		}
		s.purgeSeries(series)
	}
}

func (s *Service) purgeSeries(series *models.Series) {
	if err := s.st.UpdateSeriesStatus(series.ID, models.StatusDeleting); err != nil {
		log.Printf("Purge: failed to mark series %d deleting: %v", series.ID, err)
		return
	}

	keys, err := s.st.GetStorageKeysForSeries(series.ID)
	if err != nil {
		log.Printf("Purge: failed to list objects for series %d: %v", series.ID, err)
		s.st.UpdateSeriesStatus(series.ID, models.StatusDeleteFailed)
		return
	}

	failed := 0
	for _, key := range keys {
		if err := s.backend.Delete(key); err != nil {
			log.Printf("Purge: failed to delete object %s: %v", key, err)
			failed++
		}
	}
	if failed > 0 {
		log.Printf("Purge: series %d left with %d undeletable objects", series.ID, failed)
		s.st.UpdateSeriesStatus(series.ID, models.StatusDeleteFailed)
		return
	}

	if err := s.st.DeleteSeries(series.ID); err != nil {
		log.Printf("Purge: failed to delete series %d row: %v", series.ID, err)
		s.st.UpdateSeriesStatus(series.ID, models.StatusDeleteFailed)
		return
	}
	log.Printf("Purge: series %d (%s) removed", series.ID, series.Title)
}
