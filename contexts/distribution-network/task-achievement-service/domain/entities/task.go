package entities

import (
	"time"

	"arbor/internal/shared/money"
)

// Task is an achievable goal a distributor can claim. CycleDays bounds how
// long orders keep counting after acceptance (0 = unlimited); Newcomer tasks
// are auto-accepted for fresh distributors; Upgrade tasks promote the
// distributor to senior on completion.
type Task struct {
	TaskID    string
	Title     string
	TypeID    string
	Reward    money.Money
	CycleDays int
	Newcomer  bool
	Upgrade   bool
	Active    bool

	// Type parameters shared by the built-in task types: Quantity is the
	// score needed to complete, MinAmount the qualifying order value.
	Quantity  float64
	MinAmount money.Money

	CreatedAt time.Time
}

// Acceptance is one distributor's claim on a task. Achievement accumulates
// monotonically; Completed flips exactly once and the record is then
// terminal for completion side effects.
type Acceptance struct {
	AcceptanceID  string
	TaskID        string
	DistributorID string
	Achievement   float64
	Completed     bool
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// Expired reports whether the task's scoring window has closed for an order
// placed at the given time.
func (a Acceptance) Expired(task Task, placedAt time.Time) bool {
	if task.CycleDays <= 0 {
		return false
	}
	deadline := a.CreatedAt.Add(time.Duration(task.CycleDays) * 24 * time.Hour)
	return placedAt.After(deadline)
}

// Achievement is one scoring increment applied to an acceptance, tied to the
// entity that triggered it.
type Achievement struct {
	AchievementID string
	AcceptanceID  string
	Score         float64
	SourceType    string
	SourceID      string
	Valid         bool
	CreatedAt     time.Time
}
