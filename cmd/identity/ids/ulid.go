// Package ids provides identifier primitives: ULIDs for time-ordered records
// (messages, connections, envelopes) and UUIDs for users.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars).
// ULIDs sort lexicographically by creation time, which the message stores rely on
// to break created_at ties.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Make returns a ULID for the current time using ulid's process-wide
// monotonic entropy. It never fails.
func Make() string {
	return ulid.Make().String()
}
