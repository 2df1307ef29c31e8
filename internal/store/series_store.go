package store

import (
	"database/sql"
	"net/url"
	"time"

	"github.com/corvida/mangrove/internal/models"
)

// sqlTime formats a timestamp the way SQLite's datetime() emits it, so the
// scheduling columns stay lexicographically comparable regardless of the
// driver's own time binding format.
func sqlTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

const seriesColumns = `id, title, original_title, description, cover_image_url,
	current_source_url, source_website_host, views_count, bookmarks_count,
	last_chapter_found_in_storage, processing_status, check_interval_minutes,
	last_checked_at, next_checked_at, created_at, updated_at`

func scanSeries(row interface{ Scan(...any) error }) (*models.Series, error) {
	var s models.Series
	var lastChecked, nextChecked sql.NullTime
	err := row.Scan(
		&s.ID, &s.Title, &s.OriginalTitle, &s.Description, &s.CoverImageURL,
		&s.CurrentSourceURL, &s.SourceWebsiteHost, &s.ViewsCount, &s.BookmarksCount,
		&s.LastChapterFound, &s.ProcessingStatus, &s.CheckIntervalMins,
		&lastChecked, &nextChecked, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		s.LastCheckedAt = &lastChecked.Time
	}
	if nextChecked.Valid {
		s.NextCheckedAt = &nextChecked.Time
	}
	return &s, nil
}

// CreateSeries inserts a new tracked series. It seeds processing_status to
// 'pending' and next_checked_at to now so the next scheduler tick picks it up.
func (s *Store) CreateSeries(series *models.Series) (*models.Series, error) {
	if series.SourceWebsiteHost == "" {
		if u, err := url.Parse(series.CurrentSourceURL); err == nil {
			series.SourceWebsiteHost = u.Host
		}
	}
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO series (title, original_title, description, cover_image_url,
			current_source_url, source_website_host, processing_status,
			check_interval_minutes, next_checked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		series.Title, series.OriginalTitle, series.Description, series.CoverImageURL,
		series.CurrentSourceURL, series.SourceWebsiteHost, models.StatusPending,
		series.CheckIntervalMins, sqlTime(now), now, now,
	)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return s.GetSeriesByID(id)
}

// GetSeriesByID fetches a single series by its ID.
func (s *Store) GetSeriesByID(id int64) (*models.Series, error) {
	row := s.db.QueryRow("SELECT "+seriesColumns+" FROM series WHERE id = ?", id)
	series, err := scanSeries(row)
	if err == sql.ErrNoRows {
		return nil, ErrSeriesNotFound
	}
	return series, err
}

// ListSeries returns all series ordered by title.
func (s *Store) ListSeries() ([]*models.Series, error) {
	rows, err := s.db.Query("SELECT " + seriesColumns + " FROM series ORDER BY title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, rows.Err()
}

// UpdateSeries applies admin edits to a series' metadata and scheduling
// interval. The ingestion pipeline observes these only through the row state.
func (s *Store) UpdateSeries(series *models.Series) error {
	res, err := s.db.Exec(`
		UPDATE series SET title = ?, original_title = ?, description = ?,
			cover_image_url = ?, current_source_url = ?, source_website_host = ?,
			check_interval_minutes = ?, updated_at = ?
		WHERE id = ?`,
		series.Title, series.OriginalTitle, series.Description,
		series.CoverImageURL, series.CurrentSourceURL, series.SourceWebsiteHost,
		series.CheckIntervalMins, time.Now(), series.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

// UpdateSeriesStatus sets the processing status unconditionally. Transition
// legality is the caller's responsibility (see the lifecycle package).
func (s *Store) UpdateSeriesStatus(id int64, status models.SeriesStatus) error {
	res, err := s.db.Exec("UPDATE series SET processing_status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

// GetDueSeries returns series whose next_checked_at has elapsed and whose
// status allows dispatch, oldest first.
func (s *Store) GetDueSeries(now time.Time, limit int) ([]*models.Series, error) {
	rows, err := s.db.Query(`
		SELECT `+seriesColumns+` FROM series
		WHERE (next_checked_at IS NULL OR next_checked_at <= ?)
		  AND processing_status NOT IN ('processing', 'pending_deletion', 'deleting', 'deletion_failed')
		ORDER BY next_checked_at
		LIMIT ?`, sqlTime(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, rows.Err()
}

// ClaimSeries atomically moves a series into 'processing'. It is the lease
// preventing two concurrent reconciliations of the same series: the UPDATE
// only matches when the series is still in a dispatchable state.
func (s *Store) ClaimSeries(id int64) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE series SET processing_status = 'processing', updated_at = ?
		WHERE id = ?
		  AND processing_status NOT IN ('processing', 'pending_deletion', 'deleting', 'deletion_failed')`,
		time.Now(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CompletePass records the end of a reconciliation pass: the final status,
// last_checked_at, and the recomputed next_checked_at. It runs for every
// outcome (success, no-op, or error) so scheduling always moves forward.
// The UPDATE only matches while the series still holds the processing lease:
// if an admin moved it into deletion mid-pass, the pass outcome is discarded
// rather than clobbering the delete request.
func (s *Store) CompletePass(id int64, status models.SeriesStatus, now time.Time) error {
	_, err := s.db.Exec(`
		UPDATE series SET processing_status = ?, last_checked_at = ?,
			next_checked_at = datetime(?, '+' || check_interval_minutes || ' minutes'),
			updated_at = ?
		WHERE id = ? AND processing_status = 'processing'`,
		status, sqlTime(now), sqlTime(now), now, id)
	return err
}

// AdvanceLastChapterFound raises last_chapter_found_in_storage to number.
// The guard keeps the counter monotonically non-decreasing.
func (s *Store) AdvanceLastChapterFound(id int64, number float64) error {
	_, err := s.db.Exec(`
		UPDATE series SET last_chapter_found_in_storage = ?, updated_at = ?
		WHERE id = ? AND last_chapter_found_in_storage < ?`,
		number, time.Now(), id, number)
	return err
}

// RequestRecheck schedules a series for the next tick. This is the one path
// allowed to move next_checked_at backwards.
func (s *Store) RequestRecheck(id int64) error {
	res, err := s.db.Exec("UPDATE series SET next_checked_at = ?, updated_at = ? WHERE id = ?",
		sqlTime(time.Now()), time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

// GetSeriesPendingDeletion returns series waiting for the purge job.
func (s *Store) GetSeriesPendingDeletion() ([]*models.Series, error) {
	rows, err := s.db.Query("SELECT " + seriesColumns + " FROM series WHERE processing_status = 'pending_deletion'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, rows.Err()
}

// DeleteSeries removes the series row; chapters and images cascade.
func (s *Store) DeleteSeries(id int64) error {
	res, err := s.db.Exec("DELETE FROM series WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSeriesNotFound
	}
	return nil
}

// IncrementSeriesViews bumps the public view counter.
func (s *Store) IncrementSeriesViews(id int64) error {
	_, err := s.db.Exec("UPDATE series SET views_count = views_count + 1 WHERE id = ?", id)
	return err
}

// ResetStaleProcessing clears work left in-flight by a crash. Called once at
// startup: 'processing' leases go back to 'pending' so the next sweep retries
// them, and interrupted 'deleting' series go back to 'pending_deletion' so
// the purge job picks them up again.
func (s *Store) ResetStaleProcessing() (int64, error) {
	res, err := s.db.Exec("UPDATE series SET processing_status = 'pending', updated_at = ? WHERE processing_status = 'processing'",
		time.Now())
	if err != nil {
		return 0, err
	}
	leases, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = s.db.Exec("UPDATE series SET processing_status = 'pending_deletion', updated_at = ? WHERE processing_status = 'deleting'",
		time.Now())
	if err != nil {
		return leases, err
	}
	deletions, err := res.RowsAffected()
	return leases + deletions, err
}
