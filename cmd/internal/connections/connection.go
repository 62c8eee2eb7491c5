package connections

import "time"

// Status is the lifecycle state of a connection.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// ParseResponse accepts only the statuses a recipient may answer with.
func ParseResponse(s string) (Status, bool) {
	switch Status(s) {
	case StatusAccepted, StatusDeclined:
		return Status(s), true
	default:
		return "", false
	}
}

// Connection links a requester to a recipient.
type Connection struct {
	ID          string
	RequesterID string
	RecipientID string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Other returns the participant that is not userID.
func (c Connection) Other(userID string) string {
	if c.RequesterID == userID {
		return c.RecipientID
	}
	return c.RequesterID
}
