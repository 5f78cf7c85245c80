package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/askgraph/askgraph/internal/graph"
)

type askRequest struct {
	Question string `json:"question"`
	Compose  bool   `json:"compose"`
}

type askResponse struct {
	Question    string   `json:"question"`
	Query       string   `json:"query"`
	Columns     []string `json:"columns"`
	Rows        [][]any  `json:"rows"`
	CacheStatus string   `json:"cache_status"`
	Exhausted   bool     `json:"exhausted,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Orchestrator == nil || deps.SchemaSource == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "ask dependencies are not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	full, err := deps.SchemaSource.Schema(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", err.Error(), true, nil)
		return
	}

	answer, err := deps.Orchestrator.Answer(r.Context(), request.Question, full)
	if err != nil {
		var execErr *graph.ExecutionError
		if errors.As(err, &execErr) {
			writeError(r.Context(), w, http.StatusBadGateway, "EXECUTION_FAILED", execErr.Err.Error(), true, map[string]any{"query": execErr.Query})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SYNTHESIS_FAILED", err.Error(), false, nil)
		return
	}

	response := askResponse{
		Question:    answer.Question,
		Query:       answer.Query,
		Columns:     answer.Columns,
		Rows:        answer.Rows,
		CacheStatus: answer.CacheStatus,
		Exhausted:   answer.Exhausted,
		DurationMs:  answer.Duration.Milliseconds(),
	}

	if request.Compose && deps.Composer != nil {
		result := graph.Result{Columns: answer.Columns, Rows: answer.Rows}
		composed, err := deps.Composer.Compose(r.Context(), answer.Question, answer.Query, result)
		if err != nil {
			if deps.Logger != nil {
				deps.Logger.WarnContext(r.Context(), "answer composition failed", "error", err)
			}
		} else {
			response.Answer = composed
		}
	}

	writeJSON(w, http.StatusOK, response)
}
