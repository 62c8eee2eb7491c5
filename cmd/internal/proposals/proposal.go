package proposals

import "time"

// MaxDescriptionLen bounds a case description, in characters.
const MaxDescriptionLen = 5000

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// ParseResponse accepts only the statuses a lawyer may answer with.
func ParseResponse(s string) (Status, bool) {
	switch Status(s) {
	case StatusAccepted, StatusDeclined:
		return Status(s), true
	default:
		return "", false
	}
}

// Proposal is a case a client sent to a lawyer.
type Proposal struct {
	ID          string
	ClientID    string
	LawyerID    string
	Description string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
