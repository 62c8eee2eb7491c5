// Package connapi serves the connection request workflow over HTTP.
package connapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"counsel/cmd/identity"
	"counsel/cmd/internal/auth/session"
	"counsel/cmd/internal/connections"

	"github.com/samber/lo"
)

const maxBodyBytes = 16 << 10

// Handler exposes /api/connections/*.
type Handler struct {
	log      *slog.Logger
	svc      *connections.Service
	resolver *session.Resolver
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, svc *connections.Service, resolver *session.Resolver) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, resolver: resolver}
}

// Register wires routes onto mux. Every route requires authentication.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	auth := h.resolver.RequireAuth

	mux.Handle("POST /api/connections/request", auth(http.HandlerFunc(h.handleRequest)))
	mux.Handle("GET /api/connections/pending", auth(http.HandlerFunc(h.handlePending)))
	mux.Handle("GET /api/connections/accepted", auth(http.HandlerFunc(h.handleAccepted)))
	mux.Handle("PUT /api/connections/respond/{id}", auth(http.HandlerFunc(h.handleRespond)))
}

type requestBody struct {
	RecipientID string `json:"recipientId"`
}

type respondBody struct {
	Status string `json:"status"`
}

type profileJSON struct {
	Bio      string `json:"bio"`
	Location string `json:"location"`
}

type userSummary struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Role           string      `json:"role"`
	Specialization *string     `json:"specialization"`
	Profile        profileJSON `json:"profile"`
}

type connectionJSON struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requesterId"`
	RecipientID string    `json:"recipientId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type pendingJSON struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	Requester userSummary `json:"requester"`
}

type contactJSON struct {
	userSummary
	ConnectionID string `json:"connectionId"`
}

type connectionResponse struct {
	Message    string         `json:"message"`
	Connection connectionJSON `json:"connection"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var body requestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	c, err := h.svc.Request(r.Context(), id.ID, body.RecipientID)
	if err != nil {
		switch {
		case errors.Is(err, connections.ErrSelf):
			writeError(w, http.StatusBadRequest, "invalid_request", "You cannot connect with yourself.")
		case errors.Is(err, connections.ErrInvalid):
			writeError(w, http.StatusBadRequest, "invalid_request", "recipientId is required")
		case identity.IsNotFound(err):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		case errors.Is(err, connections.ErrConflict):
			writeError(w, http.StatusConflict, "conflict", "A connection or request already exists.")
		default:
			h.log.Error("connections.request.fail", "user_id", id.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("connections.request.ok", "connection_id", c.ID, "requester_id", c.RequesterID, "recipient_id", c.RecipientID)
	writeJSON(w, http.StatusCreated, connectionResponse{
		Message:    "Connection request sent.",
		Connection: toConnectionJSON(c),
	})
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	pending, err := h.svc.Pending(r.Context(), id.ID)
	if err != nil {
		h.log.Error("connections.pending.fail", "user_id", id.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(pending, func(p connections.Pending, _ int) pendingJSON {
		return pendingJSON{
			ID:        p.Connection.ID,
			Status:    string(p.Connection.Status),
			CreatedAt: p.Connection.CreatedAt,
			Requester: toSummary(p.Requester),
		}
	}))
}

func (h *Handler) handleAccepted(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	contacts, err := h.svc.Accepted(r.Context(), id.ID)
	if err != nil {
		h.log.Error("connections.accepted.fail", "user_id", id.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(contacts, func(c connections.Contact, _ int) contactJSON {
		return contactJSON{userSummary: toSummary(c.User), ConnectionID: c.ConnectionID}
	}))
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	id, ok := session.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var body respondBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	status, ok := connections.ParseResponse(body.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid status.")
		return
	}

	c, err := h.svc.Respond(r.Context(), id.ID, r.PathValue("id"), status)
	if err != nil {
		switch {
		case errors.Is(err, connections.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Request not found.")
		case errors.Is(err, connections.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden", "Unauthorized.")
		default:
			h.log.Error("connections.respond.fail", "user_id", id.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("connections.respond.ok", "connection_id", c.ID, "status", c.Status)
	writeJSON(w, http.StatusOK, connectionResponse{
		Message:    "Request " + string(c.Status) + ".",
		Connection: toConnectionJSON(c),
	})
}

func toSummary(u identity.User) userSummary {
	return userSummary{
		ID:             u.ID,
		Name:           u.Name,
		Role:           string(u.Role),
		Specialization: u.Specialization,
		Profile:        profileJSON{Bio: u.Profile.Bio, Location: u.Profile.Location},
	}
}

func toConnectionJSON(c connections.Connection) connectionJSON {
	return connectionJSON{
		ID:          c.ID,
		RequesterID: c.RequesterID,
		RecipientID: c.RecipientID,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
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

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
