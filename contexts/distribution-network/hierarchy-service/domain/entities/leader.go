package entities

import "time"

type LeaderStatus string

const (
	LeaderStatusPending  LeaderStatus = "pending"
	LeaderStatusApproved LeaderStatus = "approved"
)

// Leader is a role record attached to a distributor. Only approved and active
// leaders count toward placement constraints and leader commission.
type Leader struct {
	LeaderID      string
	DistributorID string
	Status        LeaderStatus
	Active        bool
	CreatedAt     time.Time
}

func (l Leader) CountsAsLeader() bool {
	return l.Active && l.Status == LeaderStatusApproved
}
