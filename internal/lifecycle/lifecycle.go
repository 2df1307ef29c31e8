// Package lifecycle governs the processing status of a series: which
// transitions are legal and what status a reconciliation outcome maps to.
package lifecycle

import "github.com/corvida/mangrove/internal/models"

// activeStatuses are the states the scheduler may dispatch from.
var activeStatuses = map[models.SeriesStatus]bool{
	models.StatusPending:      true,
	models.StatusAvailable:    true,
	models.StatusOngoing:      true,
	models.StatusCompleted:    true,
	models.StatusHiatus:       true,
	models.StatusDiscontinued: true,
	models.StatusError:        true,
}

// deletionStatuses are the states of the deletion sub-chain. The scheduler
// never touches a series in one of these.
var deletionStatuses = map[models.SeriesStatus]bool{
	models.StatusPendingDelete: true,
	models.StatusDeleting:      true,
	models.StatusDeleteFailed:  true,
}

// IsActive reports whether the scheduler may claim a series in this status.
func IsActive(s models.SeriesStatus) bool { return activeStatuses[s] }

// IsDeletion reports whether the status belongs to the deletion sub-chain.
func IsDeletion(s models.SeriesStatus) bool { return deletionStatuses[s] }

// Valid reports whether s is a known status value.
func Valid(s models.SeriesStatus) bool {
	return activeStatuses[s] || deletionStatuses[s] || s == models.StatusProcessing
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to models.SeriesStatus) bool {
	if !Valid(from) || !Valid(to) {
		return false
	}
	switch {
	case to == models.StatusPendingDelete:
		// Admin delete is allowed from anywhere except mid-deletion,
		// including a series currently holding the processing lease.
		return !IsDeletion(from)
	case to == models.StatusProcessing:
		// Only the scheduler takes this transition, and only from an
		// active state (the lease).
		return IsActive(from)
	case from == models.StatusProcessing:
		// A pass ends in an active state.
		return IsActive(to)
	case from == models.StatusPendingDelete:
		return to == models.StatusDeleting
	case from == models.StatusDeleting:
		return to == models.StatusDeleteFailed
	case from == models.StatusDeleteFailed:
		// Terminal pending manual intervention.
		return false
	default:
		// Admin status overrides between active states.
		return IsActive(from) && IsActive(to)
	}
}

// AfterReconcile returns the status a series should hold after a pass, given
// the status it held before the scheduler claimed it and the pass outcome.
// A pass that found nothing new never regresses the status. Only a clean pass
// (no failures) promotes: a pending or error series to available, anything
// else to ongoing.
func AfterReconcile(prior models.SeriesStatus, added, failed int) models.SeriesStatus {
	if prior == models.StatusProcessing {
		// A stale lease has no prior status to restore.
		prior = models.StatusError
	}
	if added == 0 {
		return prior
	}
	if failed > 0 {
		// Content landed but the pass was not clean; hold the prior status
		// until a clean pass promotes it.
		return prior
	}
	if prior == models.StatusPending || prior == models.StatusError {
		return models.StatusAvailable
	}
	return models.StatusOngoing
}
