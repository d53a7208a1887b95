package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

// RunRequest is the run endpoint body.
type RunRequest struct {
	Documents string   `json:"documents"`
	Questions []string `json:"questions"`
	Namespace string   `json:"namespace,omitempty"`
	TopK      *int     `json:"top_k,omitempty"`
}

// RunResponse is the run endpoint reply.
type RunResponse struct {
	Answers   []string `json:"answers"`
	LatencyMS int64    `json:"latency_ms"`
}

// HealthResponse is the health endpoint reply.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		writeError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidRequest))
		return
	}

	req := domain.RunRequest{
		DocumentURL: body.Documents,
		Questions:   body.Questions,
		Namespace:   body.Namespace,
	}
	if body.TopK != nil {
		if *body.TopK < 1 || *body.TopK > domain.MaxTopK {
			writeError(w, fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrInvalidRequest, domain.MaxTopK))
			return
		}
		req.TopK = *body.TopK
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	res, err := s.qa.Run(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Answers: res.Answers, LatencyMS: res.Latency.Milliseconds()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.cfg.Version,
		UptimeSeconds: time.Since(s.started).Seconds(),
	})
}

// writeError maps err to its status and client-safe message.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, domain.HTTPStatus(err), ErrorResponse{Error: domain.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("api: writing response: %v", err)
	}
}
