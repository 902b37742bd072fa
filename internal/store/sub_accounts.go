package store

import (
	"context"
	"errors"

	"ledger_system/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateSubAccount inserts a sub-account
func (s *Store) CreateSubAccount(ctx context.Context, sub *domain.SubAccount) error {
	return s.conn(ctx).Create(sub).Error
}

// GetSubAccount loads a live sub-account, locking it inside an atomic group
func (s *Store) GetSubAccount(ctx context.Context, id uint) (*domain.SubAccount, error) {
	var sub domain.SubAccount
	err := s.locking(ctx).First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.Errorf(domain.KindSubAccountNotFound, "sub-account %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubAccounts returns the live sub-accounts of an account ordered by id
func (s *Store) ListSubAccounts(ctx context.Context, accountID uint) ([]domain.SubAccount, error) {
	var subs []domain.SubAccount
	err := s.conn(ctx).Where("account_id = ?", accountID).Order("id").Find(&subs).Error
	return subs, err
}

// UpdateSubAccount writes metadata fields; balances never move through here
func (s *Store) UpdateSubAccount(ctx context.Context, id uint, fields map[string]any) error {
	delete(fields, "balance")
	if len(fields) == 0 {
		return nil
	}
	res := s.conn(ctx).Model(&domain.SubAccount{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetSubAccount(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSubAccount removes a sub-account from active storage
func (s *Store) DeleteSubAccount(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&domain.SubAccount{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindSubAccountNotFound, "sub-account %d not found", id)
	}
	return nil
}

// DeleteSubAccountIfEmpty removes a sub-account only while its balance is exactly zero.
// It reports false when the balance is not zero.
func (s *Store) DeleteSubAccountIfEmpty(ctx context.Context, id uint) (bool, error) {
	res := s.conn(ctx).Where("balance = 0").Delete(&domain.SubAccount{}, id)
	return res.RowsAffected == 1, res.Error
}

// CreditSubAccount adds amount to a sub-account balance
func (s *Store) CreditSubAccount(ctx context.Context, id uint, amount decimal.Decimal) error {
	res := s.conn(ctx).Model(&domain.SubAccount{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + "+decimalParam, amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindSubAccountNotFound, "sub-account %d not found", id)
	}
	return nil
}

// DebitSubAccount subtracts amount only when the balance covers it. It reports false when short.
func (s *Store) DebitSubAccount(ctx context.Context, id uint, amount decimal.Decimal) (bool, error) {
	res := s.conn(ctx).Model(&domain.SubAccount{}).
		Where("id = ? AND balance >= "+decimalParam, id, amount).
		Update("balance", gorm.Expr("balance - "+decimalParam, amount))
	return res.RowsAffected == 1, res.Error
}
