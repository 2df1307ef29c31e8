package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corvida/mangrove/internal/extract"
	"github.com/corvida/mangrove/internal/fetch"
	"github.com/corvida/mangrove/internal/reconcile"
	"github.com/corvida/mangrove/internal/store"
)

// handleRepairChapter is the manual override administrators use when the
// automatic pipeline mis-detected a chapter. It runs synchronously and
// returns the outcome directly, nothing is queued.
func (s *Server) handleRepairChapter(w http.ResponseWriter, r *http.Request) {
	id, err := seriesIDParam(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series ID")
		return
	}

	var payload struct {
		ChapterNumber string `json:"chapter_number"`
		ChapterURL    string `json:"chapter_url"`
		ChapterTitle  string `json:"chapter_title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	number, err := extract.ParseChapterNumber(payload.ChapterNumber)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid chapter number: "+err.Error())
		return
	}

	chapter, err := s.rec.Repair(r.Context(), id, reconcile.RepairParams{
		ChapterNumber: number,
		ChapterURL:    payload.ChapterURL,
		ChapterTitle:  payload.ChapterTitle,
	}, s.backend)
	if err != nil {
		var verr *reconcile.ValidationError
		var ferr *fetch.Error
		switch {
		case errors.As(err, &verr):
			RespondWithError(w, http.StatusBadRequest, verr.Msg)
		case errors.Is(err, store.ErrSeriesNotFound):
			RespondWithError(w, http.StatusNotFound, "Series not found")
		case errors.Is(err, extract.ErrEmptyResult):
			RespondWithError(w, http.StatusUnprocessableEntity, "No page images found at the given chapter URL")
		case errors.As(err, &ferr):
			RespondWithError(w, http.StatusBadGateway, "Could not fetch the chapter: "+ferr.Error())
		default:
			RespondWithError(w, http.StatusInternalServerError, "Repair failed: "+err.Error())
		}
		return
	}

	RespondWithJSON(w, http.StatusOK, chapter)
}

func (s *Server) handleRunAdminJob(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	err := s.app.JobManager().RunJob(payload.JobID, s.app)
	if err != nil {
		RespondWithError(w, http.StatusConflict, err.Error()) // 409 Conflict if a job is already running
		return
	}

	RespondWithJSON(w, http.StatusAccepted, map[string]string{
		"message": "Job '" + payload.JobID + "' started successfully.",
	})
}

func (s *Server) handleGetAdminJobsStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.app.JobManager().GetStatus()
	RespondWithJSON(w, http.StatusOK, statuses)
}
