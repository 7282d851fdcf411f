package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbor/contexts/distribution-network/commission-engine/domain/entities"
	domainerrors "arbor/contexts/distribution-network/commission-engine/domain/errors"
	"arbor/contexts/distribution-network/commission-engine/ports"
)

type levelKey struct {
	targetID    string
	levelNumber int
}

type Store struct {
	mu sync.RWMutex

	targets     map[string]entities.Target // keyed by purchasable id
	levels      map[levelKey]entities.Level
	events      map[string]entities.Event
	commissions map[string]entities.Commission
}

func NewStore() *Store {
	return &Store{
		targets:     make(map[string]entities.Target),
		levels:      make(map[levelKey]entities.Level),
		events:      make(map[string]entities.Event),
		commissions: make(map[string]entities.Commission),
	}
}

// PutTarget and PutLevel seed catalog configuration for tests and the
// in-memory module; target/level authoring lives outside this core.
func (s *Store) PutTarget(target entities.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.targets[target.PurchasableID] = target
}

func (s *Store) PutLevel(level entities.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.levels[levelKey{targetID: level.TargetID, levelNumber: level.LevelNumber}] = level
}

func (s *Store) GetTargetByPurchasable(_ context.Context, purchasableID string) (entities.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.targets[strings.TrimSpace(purchasableID)]
	if !ok {
		return entities.Target{}, domainerrors.ErrTargetNotFound
	}
	return target, nil
}

func (s *Store) GetLevel(_ context.Context, targetID string, levelNumber int) (entities.Level, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	level, ok := s.levels[levelKey{targetID: strings.TrimSpace(targetID), levelNumber: levelNumber}]
	return level, ok, nil
}

func (s *Store) SavePass(_ context.Context, events []entities.Event, commissions []entities.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range events {
		if strings.TrimSpace(event.EventID) == "" {
			return domainerrors.ErrInvalidInput
		}
		if _, exists := s.events[event.EventID]; exists {
			return domainerrors.ErrPassExists
		}
	}
	for _, commission := range commissions {
		if strings.TrimSpace(commission.CommissionID) == "" {
			return domainerrors.ErrInvalidInput
		}
	}
	for _, event := range events {
		s.events[event.EventID] = event
	}
	for _, commission := range commissions {
		s.commissions[commission.CommissionID] = commission
	}
	return nil
}

func (s *Store) AppendCommission(_ context.Context, commission entities.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(commission.CommissionID)
	if id == "" {
		return domainerrors.ErrInvalidInput
	}
	s.commissions[id] = commission
	return nil
}

func (s *Store) ListEventsByOrder(_ context.Context, orderID string) ([]entities.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Event, 0)
	for _, event := range s.events {
		if event.OrderID == strings.TrimSpace(orderID) {
			items = append(items, event)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EventID < items[j].EventID })
	return items, nil
}

func (s *Store) ListCommissions(_ context.Context, filter ports.CommissionFilter) ([]entities.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Commission, 0)
	for _, commission := range s.commissions {
		if !matchesFilter(commission, filter) {
			continue
		}
		items = append(items, commission)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CommissionID < items[j].CommissionID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) CountValidGroupCuts(_ context.Context, distributorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, commission := range s.commissions {
		if commission.Valid &&
			commission.DistributorID == strings.TrimSpace(distributorID) &&
			commission.GroupLeaderFor != "" {
			count++
		}
	}
	return count, nil
}

func (s *Store) VoidByOrder(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voided := make(map[string]bool)
	for id, event := range s.events {
		if event.OrderID == strings.TrimSpace(orderID) {
			event.Valid = false
			s.events[id] = event
			voided[event.EventID] = true
		}
	}
	for id, commission := range s.commissions {
		if voided[commission.EventID] {
			commission.Valid = false
			s.commissions[id] = commission
		}
	}
	return nil
}

func matchesFilter(commission entities.Commission, filter ports.CommissionFilter) bool {
	if filter.DistributorID != "" && commission.DistributorID != filter.DistributorID {
		return false
	}
	if filter.Type != "" && commission.Type != filter.Type {
		return false
	}
	if !filter.From.IsZero() && commission.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && commission.CreatedAt.After(filter.To) {
		return false
	}
	if filter.ValidOnly && !commission.Valid {
		return false
	}
	return true
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
