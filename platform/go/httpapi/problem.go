// Package httpapi encodes domain errors as RFC 7807 problem documents.
package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const (
	ProblemTypeValidation = "https://openmic.live/problems/validation-error"
	ProblemTypeNotFound   = "https://openmic.live/problems/not-found"
	ProblemTypeConflict   = "https://openmic.live/problems/conflict"
	ProblemTypeForbidden  = "https://openmic.live/problems/forbidden"
	ProblemTypeInternal   = "https://openmic.live/problems/internal-error"
)

// Problem is an RFC 7807 problem details document. Fields carries per-field
// messages for validation problems.
type Problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Detail string            `json:"detail,omitempty"`
	Status int               `json:"status"`
	Fields map[string]string `json:"fields,omitempty"`
}

// WriteProblem renders the problem with its status code.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteJSON renders a success payload.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteInternal logs the cause and renders an opaque internal-error problem.
func WriteInternal(w http.ResponseWriter, logger *zap.Logger, err error) {
	if logger != nil {
		logger.Error("internal error", zap.Error(err))
	}
	WriteProblem(w, Problem{
		Type:   ProblemTypeInternal,
		Title:  "Internal error",
		Detail: "try again",
		Status: http.StatusInternalServerError,
	})
}
