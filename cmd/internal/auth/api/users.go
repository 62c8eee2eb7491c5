package authapi

import (
	"net/http"

	"counsel/cmd/identity"

	"github.com/samber/lo"
)

// handleListUsers lists the directory. An unknown ?role= is ignored.
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var f identity.ListFilter
	if role, ok := identity.ParseRole(r.URL.Query().Get("role")); ok {
		f.Role = role
	}

	users, err := h.users.ListUsers(r.Context(), f)
	if err != nil {
		h.log.Error("users.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(users, func(u identity.User, _ int) userResponse {
		return toUserResponse(u)
	}))
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.log.Error("users.profile.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}
