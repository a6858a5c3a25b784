package server

import (
	"time"

	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/pulse/params"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports liveness and store reachability
type HealthResponse struct {
	Status     string   `json:"status"`
	Store      string   `json:"store"`
	Activities []string `json:"activities"`
}

// JobResponse is one job row with its parameters decoded
type JobResponse struct {
	ID        int64                  `json:"id"`
	Type      string                 `json:"type"`
	Status    jobs.Status            `json:"status"`
	Plan      time.Time              `json:"plan"`
	Start     *time.Time             `json:"start,omitempty"`
	Finish    *time.Time             `json:"finish,omitempty"`
	Duration  *int64                 `json:"duration,omitempty"`
	Recurring bool                   `json:"recurring"`
	Params    map[string]interface{} `json:"params,omitempty"`
	RawParams string                 `json:"raw_params,omitempty"` // set when params do not decode
	Result    string                 `json:"result,omitempty"`
}

// ListJobsResponse is the body of GET /api/jobs
type ListJobsResponse struct {
	Date   string        `json:"date"`
	Status jobs.Status   `json:"status,omitempty"`
	Jobs   []JobResponse `json:"jobs"`
	Count  int           `json:"count"`
}

// StatusResponse is the body of GET /api/jobs/{id}/status
type StatusResponse struct {
	ID     int64       `json:"id"`
	Status jobs.Status `json:"status"`
}

// SubmitRequest is the body of POST /api/jobs
type SubmitRequest struct {
	Type   string                 `json:"type"`
	At     *time.Time             `json:"at,omitempty"` // omitted: due now
	Params map[string]interface{} `json:"params,omitempty"`
}

// SubmitResponse is the body of a successful submission
type SubmitResponse struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	Plan time.Time `json:"plan"`
}

func toJobResponse(j jobs.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		Plan:      j.Plan,
		Start:     j.Start,
		Finish:    j.Finish,
		Duration:  j.Duration,
		Recurring: j.Recurring(),
		Result:    j.Result,
	}
	if !resp.Recurring {
		if p, err := params.Decode(j.Params); err == nil {
			resp.Params = p.Interface()
		} else {
			resp.RawParams = j.Params
		}
	}
	return resp
}
