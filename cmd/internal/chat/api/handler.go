// Package chatapi serves conversation history over HTTP.
package chatapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"counsel/cmd/internal/auth/session"
	"counsel/cmd/internal/chat"
)

// Handler exposes GET /api/chat/{otherUserId}.
type Handler struct {
	log      *slog.Logger
	messages *chat.Messages
	resolver *session.Resolver
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, messages *chat.Messages, resolver *session.Resolver) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, messages: messages, resolver: resolver}
}

// Register wires routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("GET /api/chat/{otherUserId}", h.resolver.RequireAuth(http.HandlerFunc(h.handleHistory)))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	msgs, err := h.messages.Between(r.Context(), id.ID, r.PathValue("otherUserId"))
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrValidation):
			writeError(w, http.StatusBadRequest, "invalid_request", "a different user id is required")
		default:
			h.log.Error("chat.history.fail", "user_id", id.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "failed to load messages")
		}
		return
	}

	writeJSON(w, http.StatusOK, msgs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
