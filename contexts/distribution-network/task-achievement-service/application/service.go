package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"arbor/contexts/distribution-network/task-achievement-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/task-achievement-service/domain/errors"
	domainservices "arbor/contexts/distribution-network/task-achievement-service/domain/services"
	"arbor/contexts/distribution-network/task-achievement-service/ports"
	"arbor/internal/shared/events"
)

type Service struct {
	Repo        ports.Repository
	Commissions ports.CommissionAppender
	Seniors     ports.SeniorPromoter
	Types       *domainservices.TaskTypeRegistry
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Outbox      ports.OutboxWriter
	Logger      *slog.Logger
}

// Accept opens a distributor's claim on a task. A distributor holds at most
// one acceptance per task.
func (s Service) Accept(ctx context.Context, distributorID string, taskID string) (entities.Acceptance, error) {
	distributorID = strings.TrimSpace(distributorID)
	taskID = strings.TrimSpace(taskID)
	if distributorID == "" || taskID == "" {
		return entities.Acceptance{}, domainerrors.ErrInvalidInput
	}

	task, err := s.Repo.GetTask(ctx, taskID)
	if err != nil {
		return entities.Acceptance{}, err
	}
	if !task.Active {
		return entities.Acceptance{}, domainerrors.ErrTaskInactive
	}
	if _, err := s.Types.Resolve(task.TypeID); err != nil {
		return entities.Acceptance{}, err
	}

	existing, err := s.Repo.ListAcceptancesByDistributor(ctx, distributorID)
	if err != nil {
		return entities.Acceptance{}, err
	}
	for _, acceptance := range existing {
		if acceptance.TaskID == taskID {
			return entities.Acceptance{}, domainerrors.ErrAlreadyAccepted
		}
	}

	acceptanceID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Acceptance{}, err
	}
	acceptance := entities.Acceptance{
		AcceptanceID:  acceptanceID,
		TaskID:        taskID,
		DistributorID: distributorID,
		CreatedAt:     s.now(),
	}
	if err := s.Repo.CreateAcceptance(ctx, acceptance); err != nil {
		return entities.Acceptance{}, err
	}
	return acceptance, nil
}

// AcceptNewcomerTasks auto-accepts every active newcomer-flagged task for a
// freshly converted distributor. Tasks already accepted are left alone.
func (s Service) AcceptNewcomerTasks(ctx context.Context, distributorID string) ([]entities.Acceptance, error) {
	tasks, err := s.Repo.ListActiveTasks(ctx)
	if err != nil {
		return nil, err
	}
	accepted := make([]entities.Acceptance, 0)
	for _, task := range tasks {
		if !task.Newcomer {
			continue
		}
		acceptance, err := s.Accept(ctx, distributorID, task.TaskID)
		if errors.Is(err, domainerrors.ErrAlreadyAccepted) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accepted = append(accepted, acceptance)
	}
	return accepted, nil
}

// ScoreOrder runs one placed order through every acceptance it can touch:
// the purchasing distributor's own acceptances and, for downstream-growth
// tasks, the direct upstream's. Scores accumulate monotonically; the
// completion transition fires exactly once per acceptance.
func (s Service) ScoreOrder(ctx context.Context, input ports.OrderScoreInput) error {
	if strings.TrimSpace(input.OrderID) == "" || strings.TrimSpace(input.DistributorID) == "" {
		return domainerrors.ErrInvalidInput
	}

	owners := []string{input.DistributorID}
	if input.UpstreamDistributorID != "" {
		owners = append(owners, input.UpstreamDistributorID)
	}
	acceptances, err := s.Repo.ListAcceptancesByOwners(ctx, owners)
	if err != nil {
		return err
	}

	for _, acceptance := range acceptances {
		task, err := s.Repo.GetTask(ctx, acceptance.TaskID)
		if err != nil {
			return err
		}
		taskType, err := s.Types.Resolve(task.TypeID)
		if err != nil {
			// Unknown plugin is fatal to the whole scoring pass.
			return err
		}

		score := taskType.Score(domainservices.ScoreContext{
			Task:                  task,
			Acceptance:            acceptance,
			OrderDistributorID:    input.DistributorID,
			UpstreamDistributorID: input.UpstreamDistributorID,
			OrderTotal:            input.OrderTotal,
			PlacedAt:              input.PlacedAt,
		})
		if acceptance.Expired(task, input.PlacedAt) {
			// Expired windows contribute nothing, whatever the type says.
			score = 0
		}
		if score <= 0 {
			continue
		}

		seen, err := s.Repo.HasAchievementForSource(ctx, acceptance.AcceptanceID, "order", input.OrderID)
		if err != nil {
			return err
		}
		if seen {
			continue
		}

		achievementID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		if err := s.Repo.AppendAchievement(ctx, entities.Achievement{
			AchievementID: achievementID,
			AcceptanceID:  acceptance.AcceptanceID,
			Score:         score,
			SourceType:    "order",
			SourceID:      input.OrderID,
			Valid:         true,
			CreatedAt:     s.now(),
		}); err != nil {
			return err
		}

		acceptance.Achievement += score
		if !acceptance.Completed && taskType.CanComplete(task, acceptance.Achievement) {
			completedAt := s.now()
			acceptance.Completed = true
			acceptance.CompletedAt = &completedAt
			if err := s.applyCompletionEffects(ctx, task, acceptance); err != nil {
				return err
			}
		}
		if err := s.Repo.UpdateAcceptance(ctx, acceptance); err != nil {
			return err
		}
	}
	return nil
}

func (s Service) applyCompletionEffects(ctx context.Context, task entities.Task, acceptance entities.Acceptance) error {
	if task.Reward.IsPositive() && s.Commissions != nil {
		if err := s.Commissions.AppendTaskCommission(ctx, acceptance.DistributorID, task.Reward, acceptance.AcceptanceID); err != nil {
			return err
		}
	}
	if task.Upgrade && s.Seniors != nil {
		if err := s.Seniors.PromoteSenior(ctx, acceptance.DistributorID); err != nil {
			return err
		}
	}
	if s.Outbox != nil {
		eventID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		if err := s.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
			EventID:        eventID,
			EventType:      events.TypeTaskCompleted,
			SourceService:  "distribution-network/task-achievement-service",
			OccurredAtUTC:  s.now(),
			EntityType:     "acceptance",
			EntityID:       acceptance.AcceptanceID,
			PayloadVersion: 1,
			Payload: map[string]any{
				"task_id":        task.TaskID,
				"distributor_id": acceptance.DistributorID,
				"achievement":    acceptance.Achievement,
			},
		}); err != nil {
			return err
		}
	}
	resolveLogger(s.Logger).Info("task completed",
		"event", "task_completed",
		"module", "distribution-network/task-achievement-service",
		"layer", "application",
		"task_id", task.TaskID,
		"distributor_id", acceptance.DistributorID,
	)
	return nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
