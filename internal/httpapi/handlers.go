package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/react-agent/internal/persistence"
	"github.com/MimeLyc/react-agent/internal/service"
)

type askRequest struct {
	Question string `json:"question"`
	MaxLoops int    `json:"max_loops"`
}

type toolCallResponse struct {
	Tool       string `json:"tool"`
	Input      string `json:"input"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type runResponse struct {
	RunID         string             `json:"run_id"`
	Question      string             `json:"question"`
	Language      string             `json:"language"`
	Outcome       string             `json:"outcome"`
	Answer        string             `json:"answer,omitempty"`
	Error         string             `json:"error,omitempty"`
	ErrorType     string             `json:"error_type,omitempty"`
	Iterations    int                `json:"iterations"`
	ToolCallCount int                `json:"tool_call_count"`
	ToolCalls     []toolCallResponse `json:"tool_calls,omitempty"`
	Transcript    []string           `json:"transcript,omitempty"`
	DurationMS    int64              `json:"duration_ms"`
	CreatedAt     time.Time          `json:"created_at"`
	Saved         *bool              `json:"saved,omitempty"`
}

func newRunResponse(rec persistence.RunRecord, withDetails bool) runResponse {
	resp := runResponse{
		RunID:         rec.ID,
		Question:      rec.Question,
		Language:      rec.Language.String(),
		Outcome:       rec.Outcome,
		Answer:        rec.Answer,
		Error:         rec.Error,
		Iterations:    rec.Iterations,
		ToolCallCount: rec.ToolCallCount,
		DurationMS:    rec.Duration.Milliseconds(),
		CreatedAt:     rec.CreatedAt,
	}
	if !withDetails {
		return resp
	}
	resp.ToolCalls = make([]toolCallResponse, 0, len(rec.ToolCalls))
	for _, call := range rec.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, toolCallResponse{
			Tool:       call.Tool,
			Input:      call.Input,
			Result:     call.Result,
			Error:      call.Error,
			DurationMS: call.Duration.Milliseconds(),
		})
	}
	resp.Transcript = rec.Transcript
	return resp
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, defaultMaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.MaxLoops < 0 || req.MaxLoops > s.maxLoopsCeil {
		writeError(w, http.StatusBadRequest, "max_loops must be between 1 and "+strconv.Itoa(s.maxLoopsCeil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout(req.MaxLoops))
	defer cancel()

	result, err := s.svc.Ask(ctx, req.Question, req.MaxLoops)
	if err != nil {
		if service.IsErrorType(err, service.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := newRunResponse(result.Record, true)
	resp.Saved = &result.Saved
	if result.Outcome.IsFailed() {
		resp.ErrorType = service.Classify(result.Outcome.Err).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	runs, err := s.svc.History(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	ret := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		ret = append(ret, newRunResponse(run, false))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// /api/runs/{id}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	run, err := s.svc.Run(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(run, true))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, persistence.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
