// Package reconcile brings a series' persisted chapters up to date with its
// source page, and houses the admin repair path.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/corvida/mangrove/internal/extract"
	"github.com/corvida/mangrove/internal/fetch"
	"github.com/corvida/mangrove/internal/imaging"
	"github.com/corvida/mangrove/internal/models"
	"github.com/corvida/mangrove/internal/store"
	"github.com/corvida/mangrove/internal/websocket"
)

// Reconciler drives one series through discovery, image processing and
// persistence.
type Reconciler struct {
	st       *store.Store
	fetcher  *fetch.Client
	pipeline *imaging.Pipeline
	hub      *websocket.Hub
}

// New creates a Reconciler.
func New(st *store.Store, fetcher *fetch.Client, pipeline *imaging.Pipeline, hub *websocket.Hub) *Reconciler {
	return &Reconciler{st: st, fetcher: fetcher, pipeline: pipeline, hub: hub}
}

// Run performs a full reconciliation pass for a series: fetch its source
// page, extract the chapter list, and reconcile it against the persisted
// chapters. A returned error is a terminal per-series failure (unreachable
// page, broken selectors) and maps to the 'error' status; per-chapter
// failures are localized in the report instead.
func (r *Reconciler) Run(ctx context.Context, series *models.Series) (models.ReconcileReport, error) {
	report := models.ReconcileReport{SeriesID: series.ID}

	html, err := r.fetcher.Fetch(ctx, series.CurrentSourceURL)
	if err != nil {
		return report, fmt.Errorf("failed to fetch series page: %w", err)
	}

	ex, err := extract.New(series.CurrentSourceURL)
	if err != nil {
		return report, err
	}
	discovered, err := ex.ChapterList(html)
	if err != nil {
		return report, fmt.Errorf("failed to extract chapter list: %w", err)
	}

	return r.Reconcile(ctx, series, discovered)
}

// Reconcile diffs the discovered chapter list against the persisted set and
// ingests the missing chapters in ascending number order.
//
// The post-failure policy is strict ascending abandonment: once a chapter
// fails irrecoverably, later chapters in the same pass are not committed.
// They remain absent from the persisted set, so the next scheduled pass
// retries the failed chapter first and last_chapter_found_in_storage never
// skips ahead over a hidden gap.
func (r *Reconciler) Reconcile(ctx context.Context, series *models.Series, discovered []models.ChapterRef) (models.ReconcileReport, error) {
	report := models.ReconcileReport{SeriesID: series.ID}

	existing, err := r.st.GetChapterNumbers(series.ID)
	if err != nil {
		return report, fmt.Errorf("failed to load persisted chapters: %w", err)
	}

	candidates := newCandidates(discovered, existing)
	if len(candidates) == 0 {
		log.Printf("No new chapters found for series %d (%s)", series.ID, series.Title)
		return report, nil
	}
	log.Printf("Found %d new chapters for series %d (%s)", len(candidates), series.ID, series.Title)

	aborted := false
	for i, ref := range candidates {
		if aborted {
			report.Skipped = append(report.Skipped, ref.Number)
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Skipped = append(report.Skipped, candidates[i:].numbers()...)
			break
		}

		if err := r.ingestChapter(ctx, series, ref); err != nil {
			log.Printf("Chapter %g of series %d failed: %v", ref.Number, series.ID, err)
			report.Failed = append(report.Failed, ref.Number)
			r.progress(series, ref.Number, fmt.Sprintf("Chapter %g failed: %v", ref.Number, err), false)
			aborted = true
			continue
		}

		report.Added = append(report.Added, ref.Number)
		if err := r.st.AdvanceLastChapterFound(series.ID, ref.Number); err != nil {
			log.Printf("Warning: failed to advance chapter counter for series %d: %v", series.ID, err)
		}
		r.progress(series, ref.Number, fmt.Sprintf("Chapter %g stored", ref.Number), false)
	}

	r.progress(series, 0, fmt.Sprintf("Pass finished: %d added, %d failed, %d skipped",
		len(report.Added), len(report.Failed), len(report.Skipped)), true)
	return report, nil
}

// ingestChapter fetches one chapter page, processes its images and commits
// the chapter with its full image set in one transaction.
func (r *Reconciler) ingestChapter(ctx context.Context, series *models.Series, ref models.ChapterRef) error {
	html, err := r.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch chapter page: %w", err)
	}

	ex, err := extract.New(ref.URL)
	if err != nil {
		return err
	}
	imageURLs, err := ex.ChapterPages(html)
	if err != nil {
		return fmt.Errorf("failed to extract page images: %w", err)
	}

	stored, err := r.pipeline.ProcessChapter(ctx, imageURLs)
	if err != nil {
		return err
	}

	if _, err := r.st.CreateChapterWithImages(series.ID, ref.Number, ref.Title, ref.URL, stored); err != nil {
		return fmt.Errorf("failed to persist chapter: %w", err)
	}
	return nil
}

func (r *Reconciler) progress(series *models.Series, chapter float64, message string, done bool) {
	if r.hub == nil {
		return
	}
	r.hub.BroadcastJSON(models.ProgressUpdate{
		JobID:    "series-sweep",
		SeriesID: series.ID,
		Chapter:  chapter,
		Message:  message,
		Done:     done,
	})
}

type candidateList []models.ChapterRef

func (c candidateList) numbers() []float64 {
	out := make([]float64, len(c))
	for i, ref := range c {
		out[i] = ref.Number
	}
	return out
}

// newCandidates returns the discovered chapters not yet persisted, deduped
// by number and sorted ascending. When a source lists the same number twice
// the first entry wins.
func newCandidates(discovered []models.ChapterRef, existing map[float64]bool) candidateList {
	seen := make(map[float64]bool, len(discovered))
	var out candidateList
	for _, ref := range discovered {
		if existing[ref.Number] || seen[ref.Number] {
			continue
		}
		seen[ref.Number] = true
		out = append(out, ref)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
