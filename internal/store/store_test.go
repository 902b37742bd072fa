package store_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"ledger_system/internal/domain"
	"ledger_system/internal/store"
	"ledger_system/internal/store/storetest"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// failCreates makes the next n inserts into table fail with err
func failCreates(t *testing.T, s *store.Store, table string, n int, err error) {
	t.Helper()
	remaining := n
	require.NoError(t, s.DB().Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(db *gorm.DB) {
		if db.Statement.Table == table && remaining > 0 {
			remaining--
			_ = db.AddError(err)
		}
	}))
}

func TestDebitAccountRefusesOverdraft(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	a := storetest.SeedAccount(t, s, 1, "500", epoch)

	ok, err := s.DebitAccount(ctx, a.ID, decimal.NewFromInt(600), epoch)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, storetest.AccountBalance(t, s, a.ID).Equal(decimal.NewFromInt(500)))

	ok, err = s.DebitAccount(ctx, a.ID, decimal.NewFromInt(500), epoch)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, storetest.AccountBalance(t, s, a.ID).IsZero())
}

func TestAtomicRollsBackWholeGroup(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	a := storetest.SeedAccount(t, s, 1, "100", epoch)

	boom := domain.Errorf(domain.KindInsufficientFunds, "late failure")
	err := s.Atomic(ctx, "test", func(tx *store.Store) error {
		if err := tx.CreditAccount(ctx, a.ID, decimal.NewFromInt(50), epoch); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, storetest.AccountBalance(t, s, a.ID).Equal(decimal.NewFromInt(100)))
}

func TestAtomicRetriesTransientFailures(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	a := storetest.SeedAccount(t, s, 1, "100", epoch)
	failCreates(t, s, "transactions", 2, driver.ErrBadConn)

	attempts := 0
	err := s.Atomic(ctx, "deposit", func(tx *store.Store) error {
		attempts++
		if err := tx.CreditAccount(ctx, a.ID, decimal.NewFromInt(25), epoch); err != nil {
			return err
		}
		return tx.AppendTransactions(ctx, &domain.Transaction{
			AccountID: a.ID, Type: domain.TxCredit, Amount: decimal.NewFromInt(25), OperationID: "op-1",
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	// Rolled-back attempts leave no trace: the credit landed exactly once
	assert.True(t, storetest.AccountBalance(t, s, a.ID).Equal(decimal.NewFromInt(125)))
	assert.Equal(t, int64(1), storetest.CountTransactions(t, s))
}

func TestAtomicSurfacesStoreUnavailableAfterRetries(t *testing.T) {
	s := storetest.New(t, store.WithMaxTries(2))
	ctx := context.Background()
	a := storetest.SeedAccount(t, s, 1, "100", epoch)
	failCreates(t, s, "transactions", 10, driver.ErrBadConn)

	err := s.Atomic(ctx, "deposit", func(tx *store.Store) error {
		if err := tx.CreditAccount(ctx, a.ID, decimal.NewFromInt(25), epoch); err != nil {
			return err
		}
		return tx.AppendTransactions(ctx, &domain.Transaction{
			AccountID: a.ID, Type: domain.TxCredit, Amount: decimal.NewFromInt(25), OperationID: "op-2",
		})
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.True(t, storetest.AccountBalance(t, s, a.ID).Equal(decimal.NewFromInt(100)))
}

func TestAtomicMapsDeadlockToConcurrencyConflict(t *testing.T) {
	s := storetest.New(t, store.WithMaxTries(2))
	ctx := context.Background()
	calls := 0
	err := s.Atomic(ctx, "contended", func(tx *store.Store) error {
		calls++
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, 2, calls)
}

func TestAtomicDoesNotRetryPermanentFailures(t *testing.T) {
	s := storetest.New(t)
	calls := 0
	err := s.Atomic(context.Background(), "broken", func(tx *store.Store) error {
		calls++
		return errors.New("syntax error")
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, calls)
}

func TestGetAccountReportsClosed(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	a := storetest.SeedAccount(t, s, 1, "0", epoch)
	storetest.SeedSubAccount(t, s, a.ID, "Travel", "0")

	require.NoError(t, s.CloseAccount(ctx, a.ID))

	_, err := s.GetAccount(ctx, a.ID)
	require.ErrorIs(t, err, domain.ErrAccountClosed)
	_, err = s.GetAccount(ctx, a.ID+100)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	subs, err := s.ListSubAccounts(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestPendingDeletionRequestIsUnique(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	a := storetest.SeedAccount(t, s, 1, "0", epoch)

	first := &domain.DeletionRequest{OwnerID: 1, AccountID: a.ID, RequestedAt: epoch}
	require.NoError(t, s.CreateDeletionRequest(ctx, first))
	err := s.CreateDeletionRequest(ctx, &domain.DeletionRequest{OwnerID: 1, AccountID: a.ID, RequestedAt: epoch})
	require.ErrorIs(t, err, domain.ErrDuplicatePendingRequest)

	ok, err := s.CompleteDeletionRequest(ctx, first.ID, domain.DeletionRejected, epoch)
	require.NoError(t, err)
	require.True(t, ok)

	// The slot is free again once the first request is terminal
	require.NoError(t, s.CreateDeletionRequest(ctx, &domain.DeletionRequest{OwnerID: 1, AccountID: a.ID, RequestedAt: epoch}))
}

func TestClaimDueTasks(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	due := &domain.DeferredTask{Kind: domain.TaskKindNotification, Payload: []byte("{}"), DueAt: epoch}
	later := &domain.DeferredTask{Kind: domain.TaskKindNotification, Payload: []byte("{}"), DueAt: epoch.Add(time.Hour)}
	require.NoError(t, s.EnqueueTask(ctx, due))
	require.NoError(t, s.EnqueueTask(ctx, later))

	claimed, err := s.ClaimDueTasks(ctx, epoch, epoch.Add(-2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)

	// A second poll at the same instant finds nothing: the claim holds
	claimed, err = s.ClaimDueTasks(ctx, epoch, epoch.Add(-2*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	// Once the claim is stale it can be taken again
	now := epoch.Add(5 * time.Minute)
	claimed, err = s.ClaimDueTasks(ctx, now, now.Add(-2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
}

func TestPageNormalize(t *testing.T) {
	p := store.Page{Number: 0, Size: 500}.Normalize()
	assert.Equal(t, store.Page{Number: 1, Size: 20}, p)
	assert.Equal(t, 40, store.Page{Number: 3, Size: 20}.Offset())
	assert.Equal(t, 3, store.Page{Number: 1, Size: 20}.TotalPages(41))
}

func TestListTransactionsFilters(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	a := storetest.SeedAccount(t, s, 1, "0", epoch)
	b := storetest.SeedAccount(t, s, 2, "0", epoch)

	write := func(accountID uint, kind domain.TransactionType, op string, at time.Time) {
		require.NoError(t, s.AppendTransactions(ctx, &domain.Transaction{
			AccountID: accountID, Type: kind, Amount: decimal.NewFromInt(10), OperationID: op, CreatedAt: at,
		}))
	}
	write(a.ID, domain.TxCredit, "op-1", epoch)
	write(a.ID, domain.TxDebit, "op-2", epoch.Add(time.Hour))
	write(b.ID, domain.TxCredit, "op-3", epoch.Add(2*time.Hour))

	txs, total, err := s.ListTransactions(ctx, store.TransactionFilter{}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "op-3", txs[0].OperationID)

	_, total, err = s.ListTransactions(ctx, store.TransactionFilter{AccountID: a.ID}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	txs, total, err = s.ListTransactions(ctx, store.TransactionFilter{Type: domain.TxCredit, AccountID: b.ID}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "op-3", txs[0].OperationID)

	from, to := epoch.Add(30*time.Minute), epoch.Add(90*time.Minute)
	txs, total, err = s.ListTransactions(ctx, store.TransactionFilter{From: &from, To: &to}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "op-2", txs[0].OperationID)
}
