package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"flowcore/pkg/domain"
)

// errorBody is the JSON error envelope. Reason carries the machine-readable
// precondition code when one applies.
type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps domain error kinds onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError
	body.Kind = "internal"

	switch {
	case domain.IsNotFound(err):
		status = http.StatusNotFound
		body.Kind = "not_found"
	case domain.IsInvalidTransition(err):
		status = http.StatusConflict
		body.Kind = "invalid_transition"
	case domain.IsForbidden(err):
		status = http.StatusForbidden
		body.Kind = "forbidden"
	case domain.IsConflict(err):
		status = http.StatusConflict
		body.Kind = "conflict"
	case domain.IsBusy(err):
		status = http.StatusServiceUnavailable
		body.Kind = "busy"
		w.Header().Set("Retry-After", "1")
	default:
		if reason, ok := domain.IsPreconditionFailed(err); ok {
			status = http.StatusUnprocessableEntity
			body.Kind = "precondition_failed"
			body.Reason = string(reason)
			break
		}
		var rve domain.RuleViolationError
		if errors.As(err, &rve) {
			status = http.StatusUnprocessableEntity
			body.Kind = "rule_violation"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
