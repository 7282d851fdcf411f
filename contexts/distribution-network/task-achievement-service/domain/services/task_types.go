package services

import (
	"fmt"
	"time"

	"arbor/contexts/distribution-network/task-achievement-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/task-achievement-service/domain/errors"
	"arbor/internal/shared/money"
)

// ScoreContext carries everything a task type needs to score one order
// against one acceptance. The application layer resolves hierarchy
// relationships up front so scoring stays a pure function.
type ScoreContext struct {
	Task                  entities.Task
	Acceptance            entities.Acceptance
	OrderDistributorID    string
	UpstreamDistributorID string
	OrderTotal            money.Money
	PlacedAt              time.Time
}

// TaskType defines the scoring semantics of one task family.
type TaskType interface {
	ID() string
	Score(input ScoreContext) float64
	CanComplete(task entities.Task, achievement float64) bool
}

const (
	TaskTypeOrderAmount      = "order_amount"
	TaskTypeDownstreamGrowth = "downstream_growth"
)

// TaskTypeRegistry resolves type identifiers at startup. Unknown identifiers
// fail the whole triggering operation; scoring must never silently skip a
// misconfigured task.
type TaskTypeRegistry struct {
	types map[string]TaskType
}

func NewTaskTypeRegistry(types ...TaskType) *TaskTypeRegistry {
	registry := &TaskTypeRegistry{types: make(map[string]TaskType)}
	for _, t := range types {
		registry.types[t.ID()] = t
	}
	return registry
}

func DefaultTaskTypeRegistry() *TaskTypeRegistry {
	return NewTaskTypeRegistry(OrderAmountTaskType{}, DownstreamGrowthTaskType{})
}

func (r *TaskTypeRegistry) Resolve(id string) (TaskType, error) {
	t, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("task type %q: %w", id, domainerrors.ErrPluginNotFound)
	}
	return t, nil
}

// OrderAmountTaskType scores one point per own order meeting the task's
// minimum value; completes at Quantity points.
type OrderAmountTaskType struct{}

func (OrderAmountTaskType) ID() string { return TaskTypeOrderAmount }

func (OrderAmountTaskType) Score(input ScoreContext) float64 {
	if input.OrderDistributorID != input.Acceptance.DistributorID {
		return 0
	}
	if !meetsMinimum(input.OrderTotal, input.Task.MinAmount) {
		return 0
	}
	return 1
}

func (OrderAmountTaskType) CanComplete(task entities.Task, achievement float64) bool {
	return task.Quantity > 0 && achievement >= task.Quantity
}

// DownstreamGrowthTaskType scores one point per qualifying order placed by a
// direct downstream distributor; completes at Quantity points.
type DownstreamGrowthTaskType struct{}

func (DownstreamGrowthTaskType) ID() string { return TaskTypeDownstreamGrowth }

func (DownstreamGrowthTaskType) Score(input ScoreContext) float64 {
	if input.UpstreamDistributorID == "" ||
		input.UpstreamDistributorID != input.Acceptance.DistributorID {
		return 0
	}
	if !meetsMinimum(input.OrderTotal, input.Task.MinAmount) {
		return 0
	}
	return 1
}

func (DownstreamGrowthTaskType) CanComplete(task entities.Task, achievement float64) bool {
	return task.Quantity > 0 && achievement >= task.Quantity
}

func meetsMinimum(total money.Money, minimum money.Money) bool {
	if minimum.IsZero() {
		return true
	}
	cmp, err := total.Cmp(minimum)
	if err != nil {
		// Mixed currencies never qualify.
		return false
	}
	return cmp >= 0
}
