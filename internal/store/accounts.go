package store

import (
	"context"
	"errors"
	"time"

	"ledger_system/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// decimalParam binds a money value as an exact decimal so comparisons never go through floating point
const decimalParam = "CAST(? AS DECIMAL(20,4))"

// CreateAccount inserts a new account; a taken owner or account number is InvalidRequest
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	err := s.conn(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.Errorf(domain.KindInvalidRequest, "owner %d already has an account or number %q is taken", a.OwnerID, a.AccountNumber)
	}
	return err
}

// GetAccount loads an active account. Closed accounts report AccountClosed, unknown ones AccountNotFound.
// Inside an atomic group the row is locked for the rest of the group.
func (s *Store) GetAccount(ctx context.Context, id uint) (*domain.Account, error) {
	var a domain.Account
	err := s.locking(ctx).Unscoped().First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.Errorf(domain.KindAccountNotFound, "account %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	if a.DeletedAt.Valid || a.Status == domain.AccountClosed {
		return nil, domain.Errorf(domain.KindAccountClosed, "account %d is closed", id)
	}
	return &a, nil
}

// AccountByOwner loads the active account belonging to ownerID
func (s *Store) AccountByOwner(ctx context.Context, ownerID uint) (*domain.Account, error) {
	var a domain.Account
	err := s.conn(ctx).Where("owner_id = ?", ownerID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.Errorf(domain.KindAccountNotFound, "no account for owner %d", ownerID)
	}
	return &a, err
}

// ListAccounts pages through active accounts ordered by id
func (s *Store) ListAccounts(ctx context.Context, page Page) ([]domain.Account, int64, error) {
	page = page.Normalize()
	var total int64
	if err := s.conn(ctx).Model(&domain.Account{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var accounts []domain.Account
	err := s.conn(ctx).Order("id").Offset(page.Offset()).Limit(page.Size).Find(&accounts).Error
	return accounts, total, err
}

// CreditAccount adds amount to the balance and stamps activity
func (s *Store) CreditAccount(ctx context.Context, id uint, amount decimal.Decimal, at time.Time) error {
	res := s.conn(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"balance":       gorm.Expr("balance + "+decimalParam, amount), // In-SQL arithmetic
			"last_activity": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindAccountNotFound, "account %d not found", id)
	}
	return nil
}

// DebitAccount subtracts amount only when the balance covers it, in one conditional statement.
// It reports false, changing nothing, when the balance is short.
func (s *Store) DebitAccount(ctx context.Context, id uint, amount decimal.Decimal, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&domain.Account{}).
		Where("id = ? AND balance >= "+decimalParam, id, amount).
		Updates(map[string]any{
			"balance":       gorm.Expr("balance - "+decimalParam, amount),
			"last_activity": at,
		})
	return res.RowsAffected == 1, res.Error
}

// TransitionAccount moves an account from one of the allowed statuses to to. It reports false when
// the account was not in an allowed status.
func (s *Store) TransitionAccount(ctx context.Context, id uint, from []domain.AccountStatus, to domain.AccountStatus) (bool, error) {
	res := s.conn(ctx).Model(&domain.Account{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

// FreezeIfInactive freezes an Active account whose last activity is still at or before cutoff
func (s *Store) FreezeIfInactive(ctx context.Context, id uint, cutoff time.Time) (bool, error) {
	res := s.conn(ctx).Model(&domain.Account{}).
		Where("id = ? AND status = ? AND last_activity <= ?", id, domain.AccountActive, cutoff).
		Update("status", domain.AccountFrozen)
	return res.RowsAffected == 1, res.Error
}

// InactiveAccountIDs lists Active accounts whose last activity is at or before cutoff
func (s *Store) InactiveAccountIDs(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := s.conn(ctx).Model(&domain.Account{}).
		Where("status = ? AND last_activity <= ?", domain.AccountActive, cutoff).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

// CloseAccount marks the account Closed and removes it and its sub-accounts from active storage
func (s *Store) CloseAccount(ctx context.Context, id uint) error {
	if err := s.conn(ctx).Model(&domain.Account{}).Where("id = ?", id).Update("status", domain.AccountClosed).Error; err != nil {
		return err
	}
	if err := s.conn(ctx).Where("account_id = ?", id).Delete(&domain.SubAccount{}).Error; err != nil {
		return err
	}
	return s.conn(ctx).Delete(&domain.Account{}, id).Error
}

// TouchAccounts stamps last activity on the given accounts
func (s *Store) TouchAccounts(ctx context.Context, at time.Time, ids ...uint) error {
	return s.conn(ctx).Model(&domain.Account{}).Where("id IN ?", ids).Update("last_activity", at).Error
}
