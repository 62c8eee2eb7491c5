package ids

import "github.com/google/uuid"

// NewUserID returns a random (v4) UUID string used as a user identifier.
func NewUserID() string {
	return uuid.NewString()
}

// IsUserID reports whether s parses as a UUID.
func IsUserID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
