package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"arbor/internal/shared/money"
)

// Postgres persists accounts and postings through gorm. It implements the
// same Client contract as Memory so modules can swap storage without
// touching posting logic.
type Postgres struct {
	db       *gorm.DB
	logger   *slog.Logger
	currency string
}

func NewPostgres(db *gorm.DB, currency string, logger *slog.Logger) *Postgres {
	if strings.TrimSpace(currency) == "" {
		currency = "CNY"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, logger: logger, currency: currency}
}

func (p *Postgres) AutoMigrate() error {
	return p.db.AutoMigrate(&accountModel{}, &entryModel{})
}

func (p *Postgres) CreateAccount(ctx context.Context, ownerID string, accountType string) (Account, error) {
	ownerID = strings.TrimSpace(ownerID)
	accountType = strings.TrimSpace(accountType)
	if ownerID == "" || accountType == "" {
		return Account{}, ErrInvalidPosting
	}

	var row accountModel
	err := p.db.WithContext(ctx).
		Where("owner_id = ? AND account_type = ?", ownerID, accountType).
		First(&row).
		Error
	if err == nil {
		return row.toAccount(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, err
	}

	row = accountModel{
		AccountID:   uuid.NewString(),
		OwnerID:     ownerID,
		AccountType: accountType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		// A concurrent caller may have created the pair first.
		var existing accountModel
		lookupErr := p.db.WithContext(ctx).
			Where("owner_id = ? AND account_type = ?", ownerID, accountType).
			First(&existing).
			Error
		if lookupErr == nil {
			return existing.toAccount(), nil
		}
		return Account{}, err
	}
	return row.toAccount(), nil
}

func (p *Postgres) GetAccountsByType(ctx context.Context, accountType string) ([]Account, error) {
	var rows []accountModel
	err := p.db.WithContext(ctx).
		Where("account_type = ?", strings.TrimSpace(accountType)).
		Order("created_at asc").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]Account, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toAccount())
	}
	return items, nil
}

func (p *Postgres) CreateLedger(ctx context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.AccountID) == "" {
		return Entry{}, ErrAccountNotFound
	}
	if entry.Direction != DirectionDebit && entry.Direction != DirectionCredit {
		return Entry{}, ErrInvalidPosting
	}
	if entry.Amount.IsNegative() {
		return Entry{}, ErrInvalidPosting
	}

	if strings.TrimSpace(entry.EntryID) == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.PostedAt.IsZero() {
		entry.PostedAt = time.Now().UTC()
	}
	entry.Valid = true

	row := entryFromEntity(entry)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (p *Postgres) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	query := p.db.WithContext(ctx).Model(&entryModel{})
	if filter.AccountID != "" {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	if filter.SourceType != "" {
		query = query.Where("source_type = ?", filter.SourceType)
	}
	if filter.SourceID != "" {
		query = query.Where("source_id = ?", filter.SourceID)
	}
	if filter.ValidOnly {
		query = query.Where("valid = ?", true)
	}
	if filter.Month != "" {
		start, end, err := monthBounds(filter.Month)
		if err != nil {
			return nil, err
		}
		query = query.Where("posted_at >= ? AND posted_at < ?", start, end)
	}

	var rows []entryModel
	if err := query.Order("posted_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]Entry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntry())
	}
	return items, nil
}

func (p *Postgres) Balance(ctx context.Context, accountID string, month string) (money.Money, error) {
	query := p.db.WithContext(ctx).Model(&entryModel{}).
		Where("account_id = ? AND valid = ?", strings.TrimSpace(accountID), true)
	if month != "" {
		start, end, err := monthBounds(month)
		if err != nil {
			return money.Money{}, err
		}
		query = query.Where("posted_at >= ? AND posted_at < ?", start, end)
	}

	var total decimal.NullDecimal
	err := query.
		Select("SUM(CASE WHEN direction = 'debit' THEN amount ELSE -amount END)").
		Scan(&total).
		Error
	if err != nil {
		return money.Money{}, err
	}
	if !total.Valid {
		return money.Zero(p.currency), nil
	}
	return money.New(total.Decimal, p.currency), nil
}

func (p *Postgres) VoidBySource(ctx context.Context, sourceType string, sourceID string) error {
	return p.db.WithContext(ctx).Model(&entryModel{}).
		Where("source_type = ? AND source_id = ?", strings.TrimSpace(sourceType), strings.TrimSpace(sourceID)).
		Update("valid", false).
		Error
}

func monthBounds(month string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidPosting
	}
	return start, start.AddDate(0, 1, 0), nil
}

type accountModel struct {
	AccountID   string    `gorm:"column:account_id;primaryKey"`
	OwnerID     string    `gorm:"column:owner_id;uniqueIndex:uniq_owner_type"`
	AccountType string    `gorm:"column:account_type;uniqueIndex:uniq_owner_type"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (accountModel) TableName() string { return "ledger_accounts" }

func (m accountModel) toAccount() Account {
	return Account{
		AccountID: m.AccountID,
		OwnerID:   m.OwnerID,
		Type:      m.AccountType,
		CreatedAt: m.CreatedAt,
	}
}

type entryModel struct {
	EntryID    string          `gorm:"column:entry_id;primaryKey"`
	AccountID  string          `gorm:"column:account_id;index"`
	Direction  string          `gorm:"column:direction"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	Currency   string          `gorm:"column:currency"`
	Memo       string          `gorm:"column:memo"`
	SourceType string          `gorm:"column:source_type;index:idx_entry_source"`
	SourceID   string          `gorm:"column:source_id;index:idx_entry_source"`
	Valid      bool            `gorm:"column:valid"`
	PostedAt   time.Time       `gorm:"column:posted_at;index"`
}

func (entryModel) TableName() string { return "ledger_entries" }

func entryFromEntity(entry Entry) entryModel {
	return entryModel{
		EntryID:    entry.EntryID,
		AccountID:  entry.AccountID,
		Direction:  string(entry.Direction),
		Amount:     entry.Amount.Amount,
		Currency:   entry.Amount.Currency,
		Memo:       entry.Memo,
		SourceType: entry.SourceType,
		SourceID:   entry.SourceID,
		Valid:      entry.Valid,
		PostedAt:   entry.PostedAt,
	}
}

func (m entryModel) toEntry() Entry {
	return Entry{
		EntryID:    m.EntryID,
		AccountID:  m.AccountID,
		Direction:  Direction(m.Direction),
		Amount:     money.New(m.Amount, m.Currency),
		Memo:       m.Memo,
		SourceType: m.SourceType,
		SourceID:   m.SourceID,
		Valid:      m.Valid,
		PostedAt:   m.PostedAt,
	}
}
