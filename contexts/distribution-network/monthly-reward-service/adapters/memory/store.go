package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbor/contexts/distribution-network/monthly-reward-service/domain/entities"
	domainerrors "arbor/contexts/distribution-network/monthly-reward-service/domain/errors"
	"arbor/contexts/distribution-network/monthly-reward-service/ports"
	"arbor/internal/shared/money"
)

type rewardCommission struct {
	DistributorID string
	Amount        money.Money
	StatementID   string
}

type Store struct {
	mu sync.RWMutex

	statements   map[string]entities.MonthlyStatement // keyed by month
	processed    map[string]bool
	distributors []string
	commissions  []rewardCommission
	outbox       []ports.EventEnvelope

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		statements: make(map[string]entities.MonthlyStatement),
		processed:  make(map[string]bool),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

// AddDistributor seeds the close-run roster for tests.
func (s *Store) AddDistributor(distributorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.distributors = append(s.distributors, distributorID)
}

func (s *Store) CreateStatement(_ context.Context, statement entities.MonthlyStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.statements[statement.Month]; exists {
		return domainerrors.ErrStatementExists
	}
	s.statements[statement.Month] = statement
	return nil
}

func (s *Store) UpdateStatement(_ context.Context, statement entities.MonthlyStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.statements[statement.Month]; !exists {
		return domainerrors.ErrStatementNotFound
	}
	s.statements[statement.Month] = statement
	return nil
}

func (s *Store) GetStatementByMonth(_ context.Context, month string) (entities.MonthlyStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statement, ok := s.statements[strings.TrimSpace(month)]
	if !ok {
		return entities.MonthlyStatement{}, domainerrors.ErrStatementNotFound
	}
	return statement, nil
}

func (s *Store) IsOrderProcessed(_ context.Context, orderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.processed[strings.TrimSpace(orderID)], nil
}

func (s *Store) MarkOrderProcessed(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[strings.TrimSpace(orderID)] = true
	return nil
}

func (s *Store) UnmarkOrderProcessed(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.processed, strings.TrimSpace(orderID))
	return nil
}

func (s *Store) ListActiveDistributorIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := append([]string(nil), s.distributors...)
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) AppendRewardCommission(_ context.Context, distributorID string, amount money.Money, statementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commissions = append(s.commissions, rewardCommission{
		DistributorID: distributorID,
		Amount:        amount,
		StatementID:   statementID,
	})
	return nil
}

func (s *Store) HasRewardCommission(_ context.Context, statementID string, distributorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, commission := range s.commissions {
		if commission.StatementID == statementID && commission.DistributorID == distributorID {
			return true, nil
		}
	}
	return false, nil
}

// RewardCommissions exposes payouts for one statement, for tests.
func (s *Store) RewardCommissions(statementID string) map[string]money.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payouts := make(map[string]money.Money)
	for _, commission := range s.commissions {
		if commission.StatementID == statementID {
			payouts[commission.DistributorID] = commission.Amount
		}
	}
	return payouts
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
