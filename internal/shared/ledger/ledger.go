// Package ledger is the boundary to the external finance/accounting service.
// Postings are append-only rows; balances are always derived by summation and
// never mutated in place. The engine issues postings through Client and never
// assumes anything about how the finance side stores them.
package ledger

import (
	"context"
	"errors"
	"time"

	"arbor/internal/shared/money"
)

type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

type Account struct {
	AccountID string
	OwnerID   string
	Type      string
	CreatedAt time.Time
}

type Entry struct {
	EntryID    string
	AccountID  string
	Direction  Direction
	Amount     money.Money
	Memo       string
	SourceType string
	SourceID   string
	Valid      bool
	PostedAt   time.Time
}

type EntryFilter struct {
	AccountID  string
	Month      string // "2006-01", empty matches all months
	SourceType string
	SourceID   string
	ValidOnly  bool
}

var (
	ErrAccountNotFound = errors.New("ledger account not found")
	ErrInvalidPosting  = errors.New("ledger posting is invalid")
)

type Client interface {
	// CreateAccount returns the existing account when one already exists for
	// the owner/type pair, so callers can treat it as get-or-create.
	CreateAccount(ctx context.Context, ownerID string, accountType string) (Account, error)
	GetAccountsByType(ctx context.Context, accountType string) ([]Account, error)
	CreateLedger(ctx context.Context, entry Entry) (Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	// Balance sums debits minus credits over valid entries for the account,
	// restricted to one month when month is non-empty.
	Balance(ctx context.Context, accountID string, month string) (money.Money, error)
	// VoidBySource flips Valid=false on every entry posted for the source.
	// Rows stay in place so history remains auditable.
	VoidBySource(ctx context.Context, sourceType string, sourceID string) error
}
