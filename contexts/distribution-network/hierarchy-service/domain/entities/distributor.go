package entities

import "time"

// Distributor is one node in the referral tree. Root nodes carry no upstream
// reference and LevelNumber 1; every child sits one level below its parent.
// Distributors are soft-disabled, never deleted.
type Distributor struct {
	DistributorID string
	UserID        string
	UpstreamID    *string
	LevelNumber   int
	IsSenior      bool
	IsLeader      bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (d Distributor) IsRoot() bool {
	return d.UpstreamID == nil || *d.UpstreamID == ""
}

func (d Distributor) Upstream() string {
	if d.UpstreamID == nil {
		return ""
	}
	return *d.UpstreamID
}
