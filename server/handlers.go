package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/pulse/params"
)

// DateLayout is the format of the date query parameter
const DateLayout = "2006-01-02"

// handleHealth reports whether the job store answers.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "ok", Activities: s.scheduler.Registry().Types()}
	if _, err := s.scheduler.Store().ListByStatus(r.Context(), jobs.StatusWorking, 1); err != nil {
		s.requestLog(r).Warnw("Health check: job store unavailable", logger.FieldError, err)
		resp.Status = "degraded"
		resp.Store = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListJobs lists the rows planned on one day.
// GET /api/jobs?date=2026-10-16&status=fail
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	loc := s.scheduler.Location()

	day := s.opts.Clock().In(loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(DateLayout, raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date: "+raw+" (expected YYYY-MM-DD)")
			return
		}
		day = parsed
	}

	var status jobs.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := jobs.ParseStatus(raw)
		if err != nil {
			s.writeErrorFor(w, r, err)
			return
		}
		status = parsed
	}

	rows, err := s.scheduler.Store().StateForDay(r.Context(), day, status)
	if err != nil {
		s.writeErrorFor(w, r, err)
		return
	}

	resp := ListJobsResponse{
		Date:   day.Format(DateLayout),
		Status: status,
		Jobs:   make([]JobResponse, 0, len(rows)),
		Count:  len(rows),
	}
	for _, j := range rows {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetJob returns one full row.
// GET /api/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r)
	if err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	job, err := s.scheduler.Store().Get(r.Context(), id)
	if err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(*job))
}

// handleJobStatus returns only the status of one row.
// GET /api/jobs/{id}/status
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r)
	if err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	status, found, err := s.scheduler.Store().StatusOf(r.Context(), id)
	if err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	if !found {
		s.writeErrorFor(w, r, errors.NewNotFoundError("job %d", id))
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{ID: id, Status: status})
}

// handleRedoJob resets a finished, failed or stuck row to todo.
// POST /api/jobs/{id}/redo
func (s *Server) handleRedoJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r)
	if err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	if err := s.scheduler.Store().Redo(r.Context(), id); err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	s.requestLog(r).Infow("Job reset to todo", logger.FieldJobID, id)

	job, err := s.scheduler.Store().Get(r.Context(), id)
	if err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(*job))
}

// handleSubmitJob queues an ad-hoc job.
// POST /api/jobs {"type": "export", "at": "2026-10-16T18:00:00Z", "params": {...}}
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := readJSON(r, &req); err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	p, err := params.FromMap(req.Params)
	if err != nil {
		s.writeErrorFor(w, r, errors.Mark(err, errors.ErrInvalidRequest))
		return
	}

	plan := s.opts.Clock()
	if req.At != nil {
		plan = *req.At
	}
	id, err := s.scheduler.ScheduleAt(r.Context(), req.Type, plan, p)
	if err != nil {
		s.writeErrorFor(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{ID: id, Type: req.Type, Plan: plan.UTC()})
}
