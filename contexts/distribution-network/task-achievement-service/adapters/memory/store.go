package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbor/contexts/distribution-network/task-achievement-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/task-achievement-service/domain/errors"
	"arbor/contexts/distribution-network/task-achievement-service/ports"
	"arbor/internal/shared/money"
)

type taskCommission struct {
	DistributorID string
	Amount        money.Money
	AcceptanceID  string
}

type Store struct {
	mu sync.RWMutex

	tasks        map[string]entities.Task
	acceptances  map[string]entities.Acceptance
	achievements []entities.Achievement
	commissions  []taskCommission
	promoted     map[string]int
	outbox       []ports.EventEnvelope

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		tasks:       make(map[string]entities.Task),
		acceptances: make(map[string]entities.Acceptance),
		promoted:    make(map[string]int),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetNow pins the clock for tests exercising cycle expiry.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

func (s *Store) PutTask(task entities.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.TaskID] = task
}

func (s *Store) GetTask(_ context.Context, taskID string) (entities.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[strings.TrimSpace(taskID)]
	if !ok {
		return entities.Task{}, domainerrors.ErrTaskNotFound
	}
	return task, nil
}

func (s *Store) ListActiveTasks(_ context.Context) ([]entities.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Task, 0)
	for _, task := range s.tasks {
		if task.Active {
			items = append(items, task)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TaskID < items[j].TaskID })
	return items, nil
}

func (s *Store) CreateAcceptance(_ context.Context, acceptance entities.Acceptance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(acceptance.AcceptanceID)
	if id == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, exists := s.acceptances[id]; exists {
		return domainerrors.ErrAlreadyAccepted
	}
	s.acceptances[id] = acceptance
	return nil
}

func (s *Store) UpdateAcceptance(_ context.Context, acceptance entities.Acceptance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(acceptance.AcceptanceID)
	if _, exists := s.acceptances[id]; !exists {
		return domainerrors.ErrAcceptanceNotFound
	}
	s.acceptances[id] = acceptance
	return nil
}

func (s *Store) GetAcceptance(_ context.Context, acceptanceID string) (entities.Acceptance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acceptance, ok := s.acceptances[strings.TrimSpace(acceptanceID)]
	if !ok {
		return entities.Acceptance{}, domainerrors.ErrAcceptanceNotFound
	}
	return acceptance, nil
}

func (s *Store) ListAcceptancesByOwners(_ context.Context, ownerIDs []string) ([]entities.Acceptance, error) {
	owners := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[strings.TrimSpace(id)] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Acceptance, 0)
	for _, acceptance := range s.acceptances {
		if owners[acceptance.DistributorID] {
			items = append(items, acceptance)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AcceptanceID < items[j].AcceptanceID })
	return items, nil
}

func (s *Store) ListAcceptancesByDistributor(ctx context.Context, distributorID string) ([]entities.Acceptance, error) {
	return s.ListAcceptancesByOwners(ctx, []string{distributorID})
}

func (s *Store) AppendAchievement(_ context.Context, achievement entities.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(achievement.AchievementID) == "" || achievement.Score < 0 {
		return domainerrors.ErrInvalidInput
	}
	s.achievements = append(s.achievements, achievement)
	return nil
}

func (s *Store) HasAchievementForSource(_ context.Context, acceptanceID string, sourceType string, sourceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, achievement := range s.achievements {
		if achievement.AcceptanceID == strings.TrimSpace(acceptanceID) &&
			achievement.SourceType == sourceType &&
			achievement.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListAchievements(_ context.Context, acceptanceID string) ([]entities.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Achievement, 0)
	for _, achievement := range s.achievements {
		if achievement.AcceptanceID == strings.TrimSpace(acceptanceID) {
			items = append(items, achievement)
		}
	}
	return items, nil
}

func (s *Store) AppendTaskCommission(_ context.Context, distributorID string, amount money.Money, acceptanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commissions = append(s.commissions, taskCommission{
		DistributorID: distributorID,
		Amount:        amount,
		AcceptanceID:  acceptanceID,
	})
	return nil
}

// TaskCommissionCount exposes recorded task rewards for tests.
func (s *Store) TaskCommissionCount(distributorID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, commission := range s.commissions {
		if commission.DistributorID == distributorID {
			count++
		}
	}
	return count
}

func (s *Store) PromoteSenior(_ context.Context, distributorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.promoted[strings.TrimSpace(distributorID)]++
	return nil
}

// SeniorPromotions exposes upgrade calls for tests.
func (s *Store) SeniorPromotions(distributorID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.promoted[strings.TrimSpace(distributorID)]
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, envelope)
	return nil
}

func (s *Store) ListOutbox() []ports.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ports.EventEnvelope(nil), s.outbox...)
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.now()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
