package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbor/internal/shared/money"
)

// Memory is the reference Client used by in-memory modules and tests.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]Account // keyed by ownerID "/" type
	entries  []Entry
	currency string
}

func NewMemory(currency string) *Memory {
	if strings.TrimSpace(currency) == "" {
		currency = "CNY"
	}
	return &Memory{
		accounts: make(map[string]Account),
		currency: currency,
	}
}

func accountKey(ownerID, accountType string) string {
	return strings.TrimSpace(ownerID) + "/" + strings.TrimSpace(accountType)
}

func (m *Memory) CreateAccount(_ context.Context, ownerID string, accountType string) (Account, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(accountType) == "" {
		return Account{}, ErrInvalidPosting
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := accountKey(ownerID, accountType)
	if existing, ok := m.accounts[key]; ok {
		return existing, nil
	}
	account := Account{
		AccountID: uuid.NewString(),
		OwnerID:   strings.TrimSpace(ownerID),
		Type:      strings.TrimSpace(accountType),
		CreatedAt: time.Now().UTC(),
	}
	m.accounts[key] = account
	return account, nil
}

func (m *Memory) GetAccountsByType(_ context.Context, accountType string) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Account, 0)
	for _, account := range m.accounts {
		if account.Type == strings.TrimSpace(accountType) {
			items = append(items, account)
		}
	}
	return items, nil
}

func (m *Memory) CreateLedger(_ context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.AccountID) == "" {
		return Entry{}, ErrAccountNotFound
	}
	if entry.Direction != DirectionDebit && entry.Direction != DirectionCredit {
		return Entry{}, ErrInvalidPosting
	}
	if entry.Amount.IsNegative() {
		return Entry{}, ErrInvalidPosting
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(entry.EntryID) == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.PostedAt.IsZero() {
		entry.PostedAt = time.Now().UTC()
	}
	entry.Valid = true
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *Memory) ListEntries(_ context.Context, filter EntryFilter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Entry, 0)
	for _, entry := range m.entries {
		if !matchesFilter(entry, filter) {
			continue
		}
		items = append(items, entry)
	}
	return items, nil
}

func (m *Memory) Balance(_ context.Context, accountID string, month string) (money.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := money.Zero(m.currency)
	for _, entry := range m.entries {
		if entry.AccountID != strings.TrimSpace(accountID) || !entry.Valid {
			continue
		}
		if month != "" && entry.PostedAt.UTC().Format("2006-01") != month {
			continue
		}
		amount := entry.Amount
		if entry.Direction == DirectionCredit {
			amount = amount.Neg()
		}
		sum, err := total.Add(amount)
		if err != nil {
			return money.Money{}, err
		}
		total = sum
	}
	return total, nil
}

func (m *Memory) VoidBySource(_ context.Context, sourceType string, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].SourceType == strings.TrimSpace(sourceType) &&
			m.entries[i].SourceID == strings.TrimSpace(sourceID) {
			m.entries[i].Valid = false
		}
	}
	return nil
}

func matchesFilter(entry Entry, filter EntryFilter) bool {
	if filter.AccountID != "" && entry.AccountID != filter.AccountID {
		return false
	}
	if filter.Month != "" && entry.PostedAt.UTC().Format("2006-01") != filter.Month {
		return false
	}
	if filter.SourceType != "" && entry.SourceType != filter.SourceType {
		return false
	}
	if filter.SourceID != "" && entry.SourceID != filter.SourceID {
		return false
	}
	if filter.ValidOnly && !entry.Valid {
		return false
	}
	return true
}
