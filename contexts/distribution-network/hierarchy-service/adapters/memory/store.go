package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbor/contexts/distribution-network/hierarchy-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/hierarchy-service/domain/errors"
	"arbor/contexts/distribution-network/hierarchy-service/ports"
)

type Store struct {
	mu sync.RWMutex

	distributors map[string]entities.Distributor
	byUser       map[string]string
	leaders      map[string]entities.Leader
	outbox       []ports.EventEnvelope
}

func NewStore() *Store {
	return &Store{
		distributors: make(map[string]entities.Distributor),
		byUser:       make(map[string]string),
		leaders:      make(map[string]entities.Leader),
	}
}

func (s *Store) GetDistributor(_ context.Context, distributorID string) (entities.Distributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.distributors[strings.TrimSpace(distributorID)]
	if !ok {
		return entities.Distributor{}, domainerrors.ErrDistributorNotFound
	}
	return item, nil
}

func (s *Store) GetDistributorByUser(_ context.Context, userID string) (entities.Distributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUser[strings.TrimSpace(userID)]
	if !ok {
		return entities.Distributor{}, domainerrors.ErrDistributorNotFound
	}
	return s.distributors[id], nil
}

func (s *Store) ListDistributors(_ context.Context) ([]entities.Distributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Distributor, 0, len(s.distributors))
	for _, item := range s.distributors {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].DistributorID < items[j].DistributorID
	})
	return items, nil
}

func (s *Store) CreateDistributor(_ context.Context, distributor entities.Distributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(distributor.DistributorID)
	if id == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, exists := s.distributors[id]; exists {
		return domainerrors.ErrDistributorExists
	}
	if _, exists := s.byUser[distributor.UserID]; exists {
		return domainerrors.ErrDistributorExists
	}
	s.distributors[id] = distributor
	s.byUser[distributor.UserID] = id
	return nil
}

func (s *Store) UpdateDistributor(_ context.Context, distributor entities.Distributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(distributor.DistributorID)
	if _, exists := s.distributors[id]; !exists {
		return domainerrors.ErrDistributorNotFound
	}
	s.distributors[id] = distributor
	return nil
}

func (s *Store) ListLeaders(_ context.Context) ([]entities.Leader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Leader, 0, len(s.leaders))
	for _, item := range s.leaders {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LeaderID < items[j].LeaderID
	})
	return items, nil
}

func (s *Store) CreateLeader(_ context.Context, leader entities.Leader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(leader.LeaderID)
	if id == "" {
		return domainerrors.ErrInvalidInput
	}
	s.leaders[id] = leader
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outbox = append(s.outbox, envelope)
	return nil
}

// ListOutbox exposes appended notifications for tests.
func (s *Store) ListOutbox() []ports.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ports.EventEnvelope(nil), s.outbox...)
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
