package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/utils/tgutil"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/core"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
)

const maxUpdateSize = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Store   string `json:"store"`
	Pending int    `json:"pending"`
}

type JobStatsResponse struct {
	JobID   int64                `json:"job_id"`
	Name    string               `json:"name"`
	Days    int                  `json:"days"`
	Daily   []database.DailyStat `json:"daily"`
	Filters map[string]int64     `json:"filters"`
	Errors  map[string]int64     `json:"errors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "ok"}
	code := http.StatusOK
	if s.opts.Engine != nil {
		resp.Engine = s.opts.Engine.State().String()
		resp.Pending = s.opts.Engine.Pending()
		if s.opts.Engine.State() != core.StateRunning {
			resp.Status = "degraded"
		}
	}
	if err := s.opts.Store.Ping(r.Context()); err != nil {
		resp.Status, resp.Store = "unavailable", err.Error()
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, resp, code)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.PathValue("secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.opts.WebhookSecret)) != 1 {
		http.NotFound(w, r)
		return
	}
	var update tgutil.BotAPIUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateSize)).Decode(&update); err != nil {
		respondError(w, "invalid update: "+err.Error(), http.StatusBadRequest)
		return
	}
	units := 0
	if msg := update.Incoming(); msg != nil {
		units = s.opts.Engine.Dispatch(r.Context(), msg.ToMessage())
	}
	respondJSON(w, map[string]int{"units": units}, http.StatusOK)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.opts.Store.SystemOverview(r.Context())
	if err != nil {
		s.logger.Error("Failed to read overview", "error", err)
		respondError(w, "failed to read overview", http.StatusInternalServerError)
		return
	}
	respondJSON(w, o, http.StatusOK)
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 || days > 90 {
			respondError(w, "days must be between 1 and 90", http.StatusBadRequest)
			return
		}
	}
	ctx := r.Context()
	job, err := s.opts.Store.GetJob(ctx, id)
	if relayerr.IsKind(err, relayerr.KindNotFound) {
		respondError(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	daily, err := s.opts.Store.JobDailyStats(ctx, id, days)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	filters, errs, err := s.opts.Store.FilterBreakdown(ctx, id, days)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, JobStatsResponse{
		JobID:   job.ID,
		Name:    job.Name,
		Days:    days,
		Daily:   daily,
		Filters: filters,
		Errors:  errs,
	}, http.StatusOK)
}

func respondJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}
