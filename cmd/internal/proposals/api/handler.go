// Package proposalapi serves case proposals over HTTP.
package proposalapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"counsel/cmd/identity"
	"counsel/cmd/internal/auth/session"
	"counsel/cmd/internal/proposals"

	"github.com/samber/lo"
)

const maxBodyBytes = 32 << 10

// Handler exposes /api/proposals/*.
type Handler struct {
	log      *slog.Logger
	svc      *proposals.Service
	resolver *session.Resolver
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, svc *proposals.Service, resolver *session.Resolver) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc, resolver: resolver}
}

// Register wires routes onto mux. Every route requires authentication and a role.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	auth := h.resolver.RequireAuth

	mux.Handle("POST /api/proposals", auth(http.HandlerFunc(h.handleCreate)))
	mux.Handle("GET /api/proposals/inbox", auth(http.HandlerFunc(h.handleInbox)))
	mux.Handle("GET /api/proposals/sent", auth(http.HandlerFunc(h.handleSent)))
	mux.Handle("PUT /api/proposals/respond/{id}", auth(http.HandlerFunc(h.handleRespond)))
}

type createBody struct {
	LawyerID    string `json:"lawyerId"`
	Description string `json:"description"`
}

type respondBody struct {
	Status string `json:"status"`
}

type profileJSON struct {
	Bio      string `json:"bio"`
	Location string `json:"location"`
}

type clientJSON struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Profile profileJSON `json:"profile"`
}

type lawyerJSON struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Specialization *string     `json:"specialization"`
	Profile        profileJSON `json:"profile"`
}

type proposalJSON struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId"`
	LawyerID    string    `json:"lawyerId"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type receivedJSON struct {
	proposalJSON
	Client clientJSON `json:"client"`
}

type sentJSON struct {
	proposalJSON
	Lawyer lawyerJSON `json:"lawyer"`
}

type createResponse struct {
	Message  string   `json:"message"`
	Proposal sentJSON `json:"proposal"`
}

type respondResponse struct {
	Message  string       `json:"message"`
	Proposal proposalJSON `json:"proposal"`
}

// caller returns the authenticated identity when it holds role, writing the
// error response otherwise.
func caller(w http.ResponseWriter, r *http.Request, role identity.Role, denied string) (session.Identity, bool) {
	id, ok := session.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return session.Identity{}, false
	}
	if id.Role != role {
		writeError(w, http.StatusForbidden, "forbidden", denied)
		return session.Identity{}, false
	}
	return id, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r, identity.RoleClient, "Only clients can send case proposals.")
	if !ok {
		return
	}

	var body createBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	sent, err := h.svc.Create(r.Context(), id.ID, body.LawyerID, body.Description)
	if err != nil {
		switch {
		case errors.Is(err, proposals.ErrInvalid):
			writeError(w, http.StatusBadRequest, "invalid_request", "Lawyer ID and description are required.")
		case errors.Is(err, proposals.ErrTooLong):
			writeError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("description must be at most %d characters", proposals.MaxDescriptionLen))
		case errors.Is(err, proposals.ErrNotLawyer):
			writeError(w, http.StatusBadRequest, "invalid_request", "The selected user is not a lawyer.")
		case identity.IsNotFound(err):
			writeError(w, http.StatusNotFound, "not_found", "lawyer not found")
		default:
			h.log.Error("proposals.create.fail", "user_id", id.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("proposals.create.ok", "proposal_id", sent.Proposal.ID, "client_id", id.ID, "lawyer_id", sent.Proposal.LawyerID)
	writeJSON(w, http.StatusCreated, createResponse{
		Message:  "Case proposal sent.",
		Proposal: toSentJSON(sent),
	})
}

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r, identity.RoleLawyer, "Only lawyers can view proposals.")
	if !ok {
		return
	}

	inbox, err := h.svc.Inbox(r.Context(), id.ID)
	if err != nil {
		h.log.Error("proposals.inbox.fail", "user_id", id.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(inbox, func(rc proposals.Received, _ int) receivedJSON {
		return receivedJSON{
			proposalJSON: toProposalJSON(rc.Proposal),
			Client: clientJSON{
				ID:      rc.Client.ID,
				Name:    rc.Client.Name,
				Email:   rc.Client.Email,
				Profile: profileJSON{Bio: rc.Client.Profile.Bio, Location: rc.Client.Profile.Location},
			},
		}
	}))
}

func (h *Handler) handleSent(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r, identity.RoleClient, "Only clients can view sent proposals.")
	if !ok {
		return
	}

	sent, err := h.svc.Sent(r.Context(), id.ID)
	if err != nil {
		h.log.Error("proposals.sent.fail", "user_id", id.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(sent, func(s proposals.Sent, _ int) sentJSON {
		return toSentJSON(s)
	}))
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r, identity.RoleLawyer, "Only lawyers can respond.")
	if !ok {
		return
	}

	var body respondBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	status, ok := proposals.ParseResponse(body.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid status.")
		return
	}

	p, err := h.svc.Respond(r.Context(), id.ID, r.PathValue("id"), status)
	if err != nil {
		switch {
		case errors.Is(err, proposals.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Proposal not found.")
		case errors.Is(err, proposals.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden", "Unauthorized.")
		default:
			h.log.Error("proposals.respond.fail", "user_id", id.ID, "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("proposals.respond.ok", "proposal_id", p.ID, "status", p.Status)
	writeJSON(w, http.StatusOK, respondResponse{
		Message:  "Proposal " + string(p.Status) + ".",
		Proposal: toProposalJSON(p),
	})
}

func toProposalJSON(p proposals.Proposal) proposalJSON {
	return proposalJSON{
		ID:          p.ID,
		ClientID:    p.ClientID,
		LawyerID:    p.LawyerID,
		Description: p.Description,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toSentJSON(s proposals.Sent) sentJSON {
	return sentJSON{
		proposalJSON: toProposalJSON(s.Proposal),
		Lawyer: lawyerJSON{
			ID:             s.Lawyer.ID,
			Name:           s.Lawyer.Name,
			Specialization: s.Lawyer.Specialization,
			Profile:        profileJSON{Bio: s.Lawyer.Profile.Bio, Location: s.Lawyer.Profile.Location},
		},
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
