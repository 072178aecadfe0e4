package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondAppError(w http.ResponseWriter, appErr *AppError) {
	RespondJSON(w, appErr.Status, map[string]string{"msg": appErr.Msg})
}

// RespondText writes the plain-text replies the provider's webhook delivery
// expects (`Ok`, `Invalid request`, `Invalid signature`).
func RespondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
