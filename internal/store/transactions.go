package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger_system/internal/domain"

	"gorm.io/gorm"
)

// errOperationRace marks a second writer for an operation id that another group committed first.
// It is retried, and the retry sees the committed group.
var errOperationRace = errors.New("operation id already written")

// AppendTransactions writes audit records. Rows are never updated afterwards.
func (s *Store) AppendTransactions(ctx context.Context, txs ...*domain.Transaction) error {
	for _, t := range txs {
		err := s.conn(ctx).Create(t).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s leg %d", errOperationRace, t.OperationID, t.Leg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// OperationApplied reports whether an atomic group with this operation id has already committed
func (s *Store) OperationApplied(ctx context.Context, operationID string) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&domain.Transaction{}).Where("operation_id = ?", operationID).Count(&n).Error
	return n > 0, err
}

// TransactionsByOperation returns the records of one atomic group in leg order
func (s *Store) TransactionsByOperation(ctx context.Context, operationID string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.conn(ctx).Where("operation_id = ?", operationID).Order("leg").Find(&txs).Error
	return txs, err
}

// TransactionFilter narrows an administrator's search over every record. Zero fields match anything.
type TransactionFilter struct {
	AccountID uint                   // Parent account
	Type      domain.TransactionType // Credit, Debit or Transfer
	From      *time.Time             // Inclusive lower bound on created_at
	To        *time.Time             // Inclusive upper bound on created_at
}

func (f TransactionFilter) scope(db *gorm.DB) *gorm.DB {
	if f.AccountID != 0 {
		db = db.Where("account_id = ?", f.AccountID)
	}
	if f.Type != "" {
		db = db.Where("type = ?", f.Type)
	}
	if f.From != nil {
		db = db.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("created_at <= ?", *f.To)
	}
	return db
}

// TransactionsBySubAccount pages through a sub-account's history, newest first
func (s *Store) TransactionsBySubAccount(ctx context.Context, subAccountID uint, page Page) ([]domain.Transaction, int64, error) {
	return s.pageTransactions(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("sub_account_id = ?", subAccountID)
	}, page)
}

// TransactionsByAccount pages through every record under an account, newest first
func (s *Store) TransactionsByAccount(ctx context.Context, accountID uint, page Page) ([]domain.Transaction, int64, error) {
	return s.pageTransactions(ctx, TransactionFilter{AccountID: accountID}.scope, page)
}

// ListTransactions pages through the records matching f, newest first
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter, page Page) ([]domain.Transaction, int64, error) {
	return s.pageTransactions(ctx, f.scope, page)
}

func (s *Store) pageTransactions(ctx context.Context, scope func(*gorm.DB) *gorm.DB, page Page) ([]domain.Transaction, int64, error) {
	page = page.Normalize()
	var total int64
	if err := s.conn(ctx).Model(&domain.Transaction{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []domain.Transaction
	err := s.conn(ctx).Scopes(scope).
		Order("created_at desc").Order("id desc").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&txs).Error
	return txs, total, err
}
