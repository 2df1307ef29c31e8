package lifecycle_test

import (
	"testing"

	"github.com/corvida/mangrove/internal/lifecycle"
	"github.com/corvida/mangrove/internal/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.SeriesStatus
		want     bool
	}{
		{models.StatusPending, models.StatusProcessing, true},
		{models.StatusOngoing, models.StatusProcessing, true},
		{models.StatusProcessing, models.StatusOngoing, true},
		{models.StatusProcessing, models.StatusError, true},
		// An admin may delete a series while a pass is running it.
		{models.StatusProcessing, models.StatusPendingDelete, true},
		{models.StatusPendingDelete, models.StatusProcessing, false},
		{models.StatusOngoing, models.StatusPendingDelete, true},
		{models.StatusError, models.StatusPendingDelete, true},
		{models.StatusPendingDelete, models.StatusDeleting, true},
		{models.StatusPendingDelete, models.StatusOngoing, false},
		{models.StatusDeleting, models.StatusDeleteFailed, true},
		{models.StatusDeleteFailed, models.StatusPendingDelete, false},
		{models.StatusDeleteFailed, models.StatusOngoing, false},
		{models.StatusOngoing, models.StatusCompleted, true},
		{models.StatusCompleted, models.StatusHiatus, true},
		{models.StatusOngoing, "bogus", false},
	}
	for _, tc := range cases {
		if got := lifecycle.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAfterReconcile(t *testing.T) {
	cases := []struct {
		name          string
		prior         models.SeriesStatus
		added, failed int
		want          models.SeriesStatus
	}{
		{"quiet pass keeps prior status", models.StatusOngoing, 0, 0, models.StatusOngoing},
		{"quiet pass keeps completed", models.StatusCompleted, 0, 0, models.StatusCompleted},
		{"first content promotes pending to available", models.StatusPending, 2, 0, models.StatusAvailable},
		{"recovered series becomes available", models.StatusError, 1, 0, models.StatusAvailable},
		{"clean pass with content is ongoing", models.StatusAvailable, 1, 0, models.StatusOngoing},
		{"clean pass keeps ongoing", models.StatusOngoing, 3, 0, models.StatusOngoing},
		{"dirty pass holds prior status", models.StatusOngoing, 1, 1, models.StatusOngoing},
		{"dirty pass never promotes pending", models.StatusPending, 2, 1, models.StatusPending},
		{"dirty pass never promotes error", models.StatusError, 1, 1, models.StatusError},
		{"hiatus with new content resumes", models.StatusHiatus, 1, 0, models.StatusOngoing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := lifecycle.AfterReconcile(tc.prior, tc.added, tc.failed); got != tc.want {
				t.Errorf("AfterReconcile(%s, %d, %d) = %s, want %s", tc.prior, tc.added, tc.failed, got, tc.want)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	if !lifecycle.IsActive(models.StatusPending) || lifecycle.IsActive(models.StatusDeleting) {
		t.Error("IsActive misclassifies statuses")
	}
	if !lifecycle.IsDeletion(models.StatusPendingDelete) || lifecycle.IsDeletion(models.StatusOngoing) {
		t.Error("IsDeletion misclassifies statuses")
	}
	if lifecycle.Valid("bogus") {
		t.Error("Valid accepted an unknown status")
	}
}
