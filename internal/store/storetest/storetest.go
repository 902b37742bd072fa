// Package storetest opens a throwaway SQLite-backed Ledger Store for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ledger_system/internal/db"
	"ledger_system/internal/domain"
	"ledger_system/internal/store"

	"github.com/cenkalti/backoff/v5"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated store on a fresh database file. A single pooled connection serializes
// transactions the way row locks do on a server engine.
func New(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	logrus.SetLevel(logrus.WarnLevel)

	path := filepath.Join(t.TempDir(), "ledger.db")
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))

	base := []store.Option{store.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })}
	return store.New(gdb, append(base, opts...)...)
}

// SeedAccount inserts an Active account for owner with the given balance
func SeedAccount(t testing.TB, s *store.Store, owner uint, balance string, lastActivity time.Time) *domain.Account {
	t.Helper()
	a := &domain.Account{
		OwnerID:        owner,
		AccountNumber:  "ACC-" + decimal.NewFromInt(int64(owner)).String(),
		Balance:        decimal.RequireFromString(balance),
		Currency:       "INR",
		Status:         domain.AccountActive,
		MinimumBalance: decimal.NewFromInt(1000),
		DailyLimit:     decimal.NewFromInt(50000),
		LastActivity:   lastActivity,
		HolderName:     "Holder",
		HolderEmail:    "holder@example.com",
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

// SeedSubAccount inserts a sub-account under accountID with the given balance
func SeedSubAccount(t testing.TB, s *store.Store, accountID uint, name, balance string) *domain.SubAccount {
	t.Helper()
	sub := &domain.SubAccount{
		AccountID: accountID,
		Name:      name,
		Category:  domain.CategoryOther,
		Balance:   decimal.RequireFromString(balance),
		IsActive:  true,
	}
	require.NoError(t, s.CreateSubAccount(context.Background(), sub))
	return sub
}

// AccountBalance reads the stored balance of an account, closed or not
func AccountBalance(t testing.TB, s *store.Store, id uint) decimal.Decimal {
	t.Helper()
	var a domain.Account
	require.NoError(t, s.DB().Unscoped().First(&a, id).Error)
	return a.Balance
}

// SubAccountBalance reads the stored balance of a sub-account
func SubAccountBalance(t testing.TB, s *store.Store, id uint) decimal.Decimal {
	t.Helper()
	var sub domain.SubAccount
	require.NoError(t, s.DB().Unscoped().First(&sub, id).Error)
	return sub.Balance
}

// CountTransactions counts every audit record
func CountTransactions(t testing.TB, s *store.Store) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB().Model(&domain.Transaction{}).Count(&n).Error)
	return n
}
