package lifecycle

import (
	"context"
	"strings"

	"ledger_system/internal/domain"
	"ledger_system/internal/store"

	"github.com/sirupsen/logrus"
)

// NewSubAccount is the input for creating a sub-account
type NewSubAccount struct {
	Name     string          `json:"name" binding:"required"`
	Category domain.Category `json:"category"`
}

// SubAccountUpdate carries the metadata fields an owner may change; nil fields are left alone
type SubAccountUpdate struct {
	Name     *string          `json:"name"`
	Category *domain.Category `json:"category"`
	IsActive *bool            `json:"is_active"`
}

// CreateSubAccount adds an empty sub-account under a live account
func (m *Manager) CreateSubAccount(ctx context.Context, accountID uint, in NewSubAccount) (*domain.SubAccount, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Errorf(domain.KindInvalidRequest, "name is required")
	}
	category := in.Category
	if category == "" {
		category = domain.CategoryOther
	}
	if !domain.ValidSubAccountCategory(category) {
		return nil, domain.Errorf(domain.KindInvalidRequest, "unknown category %q", category)
	}

	sub := &domain.SubAccount{AccountID: accountID, Name: name, Category: category, IsActive: true}
	err := m.store.Atomic(ctx, "create_sub_account", func(tx *store.Store) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return err
		}
		return tx.CreateSubAccount(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"sub_account_id": sub.ID,
		"account_id":     accountID,
		"category":       category,
	}).Info("Sub-account created")
	return sub, nil
}

// SubAccount loads a live sub-account
func (m *Manager) SubAccount(ctx context.Context, id uint) (*domain.SubAccount, error) {
	var sub *domain.SubAccount
	err := m.store.Read(ctx, "get_sub_account", func(s *store.Store) error {
		var err error
		sub, err = s.GetSubAccount(ctx, id)
		return err
	})
	return sub, err
}

// SubAccounts lists the live sub-accounts of an account
func (m *Manager) SubAccounts(ctx context.Context, accountID uint) ([]domain.SubAccount, error) {
	var subs []domain.SubAccount
	err := m.store.Read(ctx, "list_sub_accounts", func(s *store.Store) error {
		var err error
		subs, err = s.ListSubAccounts(ctx, accountID)
		return err
	})
	return subs, err
}

// UpdateSubAccount changes sub-account metadata. Balances are not reachable from here.
func (m *Manager) UpdateSubAccount(ctx context.Context, id uint, in SubAccountUpdate) (*domain.SubAccount, error) {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.Errorf(domain.KindInvalidRequest, "name must not be empty")
		}
		fields["name"] = name
	}
	if in.Category != nil {
		if !domain.ValidSubAccountCategory(*in.Category) {
			return nil, domain.Errorf(domain.KindInvalidRequest, "unknown category %q", *in.Category)
		}
		fields["category"] = *in.Category
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}

	var sub *domain.SubAccount
	err := m.store.Atomic(ctx, "update_sub_account", func(tx *store.Store) error {
		if err := tx.UpdateSubAccount(ctx, id, fields); err != nil {
			return err
		}
		var err error
		sub, err = tx.GetSubAccount(ctx, id)
		return err
	})
	return sub, err
}

// DeleteSubAccount removes a sub-account. Owners may only delete an empty one; administrators may
// delete any, whatever it holds.
func (m *Manager) DeleteSubAccount(ctx context.Context, actor domain.Actor, id uint) error {
	var sub *domain.SubAccount
	err := m.store.Atomic(ctx, "delete_sub_account", func(tx *store.Store) error {
		var err error
		if sub, err = tx.GetSubAccount(ctx, id); err != nil {
			return err
		}
		if actor.IsAdmin() {
			return tx.DeleteSubAccount(ctx, id)
		}
		ok, err := tx.DeleteSubAccountIfEmpty(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.KindNonZeroBalance, "sub-account %d still holds %s", id, sub.Balance.String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{
		"sub_account_id": id,
		"account_id":     sub.AccountID,
		"balance":        sub.Balance.String(),
		"actor_id":       actor.ID,
		"actor_role":     actor.Role,
	}).Info("Sub-account deleted")
	return nil
}
