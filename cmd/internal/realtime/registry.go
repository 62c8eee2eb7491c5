package realtime

import (
	"log/slog"
	"strings"
	"sync"
)

// Registry maps users to their live connection and back.
//
// A user has at most one registered connection: the last registration wins and
// the earlier connection silently loses its entry (it stays open and keeps its
// rooms). The reverse index makes disconnect cleanup O(1).
type Registry struct {
	log *slog.Logger

	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:    log,
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register binds userID to connID. Empty ids are logged and ignored.
func (r *Registry) Register(userID, connID string) bool {
	userID, connID = strings.TrimSpace(userID), strings.TrimSpace(connID)
	if userID == "" || connID == "" {
		r.log.Warn("registry.register.invalid", "user_id", userID, "conn_id", connID)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The connection moves away from a previous user.
	if prevUser, ok := r.byConn[connID]; ok && prevUser != userID {
		if r.byUser[prevUser] == connID {
			delete(r.byUser, prevUser)
		}
	}
	// The user's previous connection loses its entry.
	if prevConn, ok := r.byUser[userID]; ok && prevConn != connID {
		delete(r.byConn, prevConn)
	}

	r.byUser[userID] = connID
	r.byConn[connID] = userID
	return true
}

// UnregisterByHandle removes the entry held by connID and reports the user it
// belonged to. A newer connection of the same user is left untouched.
func (r *Registry) UnregisterByHandle(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
	}
	return userID, true
}

// Lookup returns the connection registered for userID.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// UserOf returns the user registered on connID.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byConn[connID]
	return u, ok
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
