package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/corvida/mangrove/internal/extract"
	"github.com/corvida/mangrove/internal/lifecycle"
	"github.com/corvida/mangrove/internal/models"
	"github.com/corvida/mangrove/internal/store"
)

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version()})
}

func seriesIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
}

// --- Public reading surface ---

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	series, err := s.store.ListSeries()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list series")
		return
	}
	RespondWithJSON(w, http.StatusOK, series)
}

func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	id, err := seriesIDParam(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series ID")
		return
	}
	series, err := s.store.GetSeriesByID(id)
	if errors.Is(err, store.ErrSeriesNotFound) {
		RespondWithError(w, http.StatusNotFound, "Series not found")
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to fetch series")
		return
	}
	chapters, err := s.store.GetChaptersBySeries(id)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to fetch chapters")
		return
	}
	series.Chapters = chapters
	s.store.IncrementSeriesViews(id)
	RespondWithJSON(w, http.StatusOK, series)
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	id, err := seriesIDParam(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series ID")
		return
	}
	number, err := extract.ParseChapterNumber(chi.URLParam(r, "chapterNumber"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid chapter number")
		return
	}
	chapter, err := s.store.GetChapterByNumber(id, number)
	if errors.Is(err, store.ErrChapterNotFound) {
		RespondWithError(w, http.StatusNotFound, "Chapter not found")
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to fetch chapter")
		return
	}
	RespondWithJSON(w, http.StatusOK, chapter)
}

// --- Admin series CRUD ---

type seriesPayload struct {
	Title                string `json:"title"`
	OriginalTitle        string `json:"original_title"`
	Description          string `json:"description"`
	CoverImageURL        string `json:"cover_image_url"`
	CurrentSourceURL     string `json:"current_source_url"`
	CheckIntervalMinutes int    `json:"check_interval_minutes"`
}

func (p *seriesPayload) validate() string {
	if p.Title == "" {
		return "title is required"
	}
	u, err := url.Parse(p.CurrentSourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "current_source_url must be an absolute http(s) URL"
	}
	if p.CheckIntervalMinutes < 0 {
		return "check_interval_minutes must not be negative"
	}
	return ""
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var payload seriesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if msg := payload.validate(); msg != "" {
		RespondWithError(w, http.StatusBadRequest, msg)
		return
	}
	interval := payload.CheckIntervalMinutes
	if interval == 0 {
		interval = s.app.Config().Ingest.DefaultCheckInterval
	}

	series, err := s.store.CreateSeries(&models.Series{
		Title:             payload.Title,
		OriginalTitle:     payload.OriginalTitle,
		Description:       payload.Description,
		CoverImageURL:     payload.CoverImageURL,
		CurrentSourceURL:  payload.CurrentSourceURL,
		CheckIntervalMins: interval,
	})
	if err != nil {
		RespondWithError(w, http.StatusConflict, "Could not create series (is the source URL already tracked?)")
		return
	}
	RespondWithJSON(w, http.StatusCreated, series)
}

func (s *Server) handleUpdateSeries(w http.ResponseWriter, r *http.Request) {
	id, err := seriesIDParam(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series ID")
		return
	}
	series, err := s.store.GetSeriesByID(id)
	if errors.Is(err, store.ErrSeriesNotFound) {
		RespondWithError(w, http.StatusNotFound, "Series not found")
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to fetch series")
		return
	}

	var payload seriesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if msg := payload.validate(); msg != "" {
		RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	series.Title = payload.Title
	series.OriginalTitle = payload.OriginalTitle
	series.Description = payload.Description
	series.CoverImageURL = payload.CoverImageURL
	if payload.CurrentSourceURL != series.CurrentSourceURL {
		series.CurrentSourceURL = payload.CurrentSourceURL
		if u, err := url.Parse(payload.CurrentSourceURL); err == nil {
			series.SourceWebsiteHost = u.Host
		}
	}
	if payload.CheckIntervalMinutes > 0 {
		series.CheckIntervalMins = payload.CheckIntervalMinutes
	}

	if err := s.store.UpdateSeries(series); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to update series")
		return
	}
	RespondWithJSON(w, http.StatusOK, series)
}

// handleDeleteSeries moves a series into the deletion sub-chain; the purge
// job removes its objects and row asynchronously.
func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	id, err := seriesIDParam(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series ID")
		return
	}
	series, err := s.store.GetSeriesByID(id)
	if errors.Is(err, store.ErrSeriesNotFound) {
		RespondWithError(w, http.StatusNotFound, "Series not found")
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to fetch series")
		return
	}
	if !lifecycle.CanTransition(series.ProcessingStatus, models.StatusPendingDelete) {
		RespondWithError(w, http.StatusConflict, "Series is already being deleted")
		return
	}
	if err := s.store.UpdateSeriesStatus(id, models.StatusPendingDelete); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to mark series for deletion")
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Series scheduled for deletion."})
}

func (s *Server) handleSetSeriesStatus(w http.ResponseWriter, r *http.Request) {
	id, err := seriesIDParam(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series ID")
		return
	}
	var payload struct {
		Status models.SeriesStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	series, err := s.store.GetSeriesByID(id)
	if errors.Is(err, store.ErrSeriesNotFound) {
		RespondWithError(w, http.StatusNotFound, "Series not found")
		return
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to fetch series")
		return
	}
	if !lifecycle.CanTransition(series.ProcessingStatus, payload.Status) {
		RespondWithError(w, http.StatusConflict,
			"Cannot move series from '"+string(series.ProcessingStatus)+"' to '"+string(payload.Status)+"'")
		return
	}
	if err := s.store.UpdateSeriesStatus(id, payload.Status); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": string(payload.Status)})
}

// handleRecheckSeries is the explicit re-check request: the one path that
// moves next_checked_at backwards.
func (s *Server) handleRecheckSeries(w http.ResponseWriter, r *http.Request) {
	id, err := seriesIDParam(r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid series ID")
		return
	}
	if err := s.store.RequestRecheck(id); err != nil {
		if errors.Is(err, store.ErrSeriesNotFound) {
			RespondWithError(w, http.StatusNotFound, "Series not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to schedule re-check")
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Series scheduled for re-check."})
}
