package lifecycle

import (
	"context"
	"strings"

	"ledger_system/internal/domain"
	"ledger_system/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// NewAccount is the input for opening an account
type NewAccount struct {
	OwnerID        uint             `json:"owner_id" binding:"required"`
	AccountNumber  string           `json:"account_number"`
	Currency       string           `json:"currency"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	MinimumBalance *decimal.Decimal `json:"minimum_balance"`
	DailyLimit     *decimal.Decimal `json:"daily_limit"`
	HolderName     string           `json:"holder_name"`
	HolderEmail    string           `json:"holder_email"`
	HolderPhone    string           `json:"holder_phone"`
}

var (
	defaultMinimumBalance = decimal.NewFromInt(1000)
	defaultDailyLimit     = decimal.NewFromInt(50000)
)

// CreateAccount opens the single account of an owner. A positive opening balance is recorded as a Credit
// in the same group.
func (m *Manager) CreateAccount(ctx context.Context, in NewAccount) (*domain.Account, error) {
	if in.OwnerID == 0 {
		return nil, domain.Errorf(domain.KindInvalidRequest, "owner_id is required")
	}
	if in.OpeningBalance.IsNegative() {
		return nil, domain.Errorf(domain.KindInvalidAmount, "opening balance must not be negative")
	}
	if !in.OpeningBalance.IsZero() {
		if err := domain.ValidateAmount(in.OpeningBalance); err != nil {
			return nil, err
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "INR"
	}
	if len(currency) != 3 {
		return nil, domain.Errorf(domain.KindInvalidRequest, "currency must be a 3-letter code, got %q", in.Currency)
	}
	number := strings.TrimSpace(in.AccountNumber)
	if number == "" {
		number = generateAccountNumber()
	}

	now := m.clock.Now()
	acc := &domain.Account{
		OwnerID:        in.OwnerID,
		AccountNumber:  number,
		Balance:        in.OpeningBalance,
		Currency:       currency,
		Status:         domain.AccountActive,
		MinimumBalance: valueOr(in.MinimumBalance, defaultMinimumBalance),
		DailyLimit:     valueOr(in.DailyLimit, defaultDailyLimit),
		LastActivity:   now,
		HolderName:     in.HolderName,
		HolderEmail:    in.HolderEmail,
		HolderPhone:    in.HolderPhone,
	}
	err := m.store.Atomic(ctx, "create_account", func(tx *store.Store) error {
		if err := tx.CreateAccount(ctx, acc); err != nil {
			return err
		}
		if !acc.Balance.IsPositive() {
			return nil
		}
		return tx.AppendTransactions(ctx, &domain.Transaction{
			AccountID:   acc.ID,
			Type:        domain.TxCredit,
			Amount:      acc.Balance,
			Description: "Opening balance",
			Operation:   domain.OpOpening,
			OperationID: uuid.NewString(),
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"account_id":     acc.ID,
		"owner_id":       acc.OwnerID,
		"account_number": acc.AccountNumber,
	}).Info("Account created")
	return acc, nil
}

// Account loads a live account
func (m *Manager) Account(ctx context.Context, id uint) (*domain.Account, error) {
	var acc *domain.Account
	err := m.store.Read(ctx, "get_account", func(s *store.Store) error {
		var err error
		acc, err = s.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

// AccountByOwner loads the live account of an owner
func (m *Manager) AccountByOwner(ctx context.Context, ownerID uint) (*domain.Account, error) {
	var acc *domain.Account
	err := m.store.Read(ctx, "get_account_by_owner", func(s *store.Store) error {
		var err error
		acc, err = s.AccountByOwner(ctx, ownerID)
		return err
	})
	return acc, err
}

// Accounts pages through every live account
func (m *Manager) Accounts(ctx context.Context, page store.Page) ([]domain.Account, int64, error) {
	var (
		accounts []domain.Account
		total    int64
	)
	err := m.store.Read(ctx, "list_accounts", func(s *store.Store) error {
		var err error
		accounts, total, err = s.ListAccounts(ctx, page)
		return err
	})
	return accounts, total, err
}

func generateAccountNumber() string {
	return "ACC" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func valueOr(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}
