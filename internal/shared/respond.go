package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

type errorEnvelope struct {
	Success bool           `json:"success"`
	Error   *SecurityError `json:"error"`
}

// DenialObserver, when set, receives every client-facing denial WriteError
// emits. Wired to the gate-denial counter at startup; nil in tests.
var DenialObserver func(code string, status int)

// WriteJSON serializes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError is the single outer translator for pipeline failures. Anything
// that is not a SecurityError is masked as a generic internal failure so gate
// bugs cannot crash or leak through a request.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	se, ok := AsSecurityError(err)
	if !ok {
		if logger != nil {
			logger.Error("unexpected pipeline failure", slog.Any("error", err))
		}
		se = ErrInternal(err)
	}
	if se.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(se.RetryAfter.Seconds()+0.5)))
	}
	if DenialObserver != nil && se.Status != http.StatusInternalServerError {
		DenialObserver(se.Code, se.Status)
	}
	WriteJSON(w, se.Status, errorEnvelope{Success: false, Error: se})
}
