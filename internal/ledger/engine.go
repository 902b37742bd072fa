package ledger

import (
	"context"
	"fmt"
	"slices"

	"ledger_system/internal/clock"
	"ledger_system/internal/domain"
	"ledger_system/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Engine is the Balance Engine. Every operation reads, checks and mutates balances inside one atomic
// store group, so two concurrent debits can never both see a balance only one of them fits in.
// Ownership is the caller's concern; the engine only enforces the numeric and lifecycle invariants.
type Engine struct {
	store *store.Store
	clock clock.Clock
	log   logrus.FieldLogger
}

// NewEngine builds an Engine
func NewEngine(s *store.Store, c clock.Clock, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{store: s, clock: c, log: log}
}

// Allocation is one sub-account credit of a Distribute call
type Allocation struct {
	SubAccountID uint            `json:"sub_account_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// AccountResult is the state after an account-level operation
type AccountResult struct {
	Account      *domain.Account      `json:"account"`
	Transactions []domain.Transaction `json:"transactions"`
}

// DistributeResult is the state after a Distribute call
type DistributeResult struct {
	Account      *domain.Account      `json:"account"`
	SubAccounts  []domain.SubAccount  `json:"sub_accounts"`
	Transactions []domain.Transaction `json:"transactions"`
}

// TransferResult is the state after a Transfer
type TransferResult struct {
	Source *domain.SubAccount `json:"source"`
	Target *domain.SubAccount `json:"target"`
	Out    domain.Transaction `json:"out"`
	In     domain.Transaction `json:"in"`
}

// EntryResult is the state after a single-sided sub-account entry
type EntryResult struct {
	SubAccount  *domain.SubAccount `json:"sub_account"`
	Transaction domain.Transaction `json:"transaction"`
}

type operationKey struct{}

// WithOperationID attaches a caller-chosen idempotency key to ctx. An operation whose key already
// committed is not applied again; the current state is returned instead.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationKey{}, id)
}

func operationID(ctx context.Context) string {
	if id, ok := ctx.Value(operationKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// replayed reports whether op already committed. The committed group must have been written by the same
// call with the same arguments; anything else is a key reused for another operation.
func replayed(ctx context.Context, tx *store.Store, op string, kind domain.Operation, match func(legs []domain.Transaction) bool) (bool, error) {
	legs, err := tx.TransactionsByOperation(ctx, op)
	if err != nil || len(legs) == 0 {
		return false, err
	}
	if legs[0].Operation != kind || !match(legs) {
		return false, domain.Errorf(domain.KindInvalidRequest, "operation id %s was already used for another operation", op)
	}
	return true, nil
}

// Deposit credits an account. Deposits into a Frozen account are accepted; Closed accounts refuse.
func (e *Engine) Deposit(ctx context.Context, accountID uint, amount decimal.Decimal) (*AccountResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	op := operationID(ctx)
	res := &AccountResult{}
	err := e.store.Atomic(ctx, "deposit", func(tx *store.Store) error {
		done, err := replayed(ctx, tx, op, domain.OpDeposit, func(legs []domain.Transaction) bool {
			return sameAccountLeg(legs, accountID, amount)
		})
		if err != nil {
			return err
		}
		if !done {
			if _, err := tx.GetAccount(ctx, accountID); err != nil {
				return err
			}
			now := e.clock.Now()
			if err := tx.CreditAccount(ctx, accountID, amount, now); err != nil {
				return err
			}
			entry := &domain.Transaction{
				AccountID:   accountID,
				Type:        domain.TxCredit,
				Amount:      amount,
				Description: "Deposit",
				Operation:   domain.OpDeposit,
				OperationID: op,
				CreatedAt:   now,
			}
			if err := tx.AppendTransactions(ctx, entry); err != nil {
				return err
			}
		}
		return loadAccountResult(ctx, tx, accountID, op, res)
	})
	if err != nil {
		e.logFailure("Deposit failed", err, logrus.Fields{"account_id": accountID, "amount": amount.String()})
		return nil, err
	}
	// Log successful deposit
	e.log.WithFields(logrus.Fields{
		"account_id":   accountID,                    // Account ID
		"amount":       amount.String(),              // Deposit amount
		"balance":      res.Account.Balance.String(), // Resulting balance
		"operation_id": op,                           // Atomic group
		"type":         "deposit",                    // Operation type
	}).Info("Deposit transaction")
	return res, nil
}

// Withdraw debits an account. The balance check and the debit are one conditional statement inside
// the group, so the balance can never go below zero.
func (e *Engine) Withdraw(ctx context.Context, accountID uint, amount decimal.Decimal) (*AccountResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	op := operationID(ctx)
	res := &AccountResult{}
	err := e.store.Atomic(ctx, "withdraw", func(tx *store.Store) error {
		done, err := replayed(ctx, tx, op, domain.OpWithdraw, func(legs []domain.Transaction) bool {
			return sameAccountLeg(legs, accountID, amount)
		})
		if err != nil {
			return err
		}
		if !done {
			acc, err := tx.GetAccount(ctx, accountID)
			if err != nil {
				return err
			}
			if acc.Status == domain.AccountFrozen {
				return domain.Errorf(domain.KindAccountFrozen, "account %d is frozen", accountID)
			}
			now := e.clock.Now()
			ok, err := tx.DebitAccount(ctx, accountID, amount, now)
			if err != nil {
				return err
			}
			if !ok {
				return insufficient(amount, acc.Balance)
			}
			entry := &domain.Transaction{
				AccountID:   accountID,
				Type:        domain.TxDebit,
				Amount:      amount,
				Description: "Withdrawal",
				Operation:   domain.OpWithdraw,
				OperationID: op,
				CreatedAt:   now,
			}
			if err := tx.AppendTransactions(ctx, entry); err != nil {
				return err
			}
		}
		return loadAccountResult(ctx, tx, accountID, op, res)
	})
	if err != nil {
		e.logFailure("Withdrawal failed", err, logrus.Fields{"account_id": accountID, "amount": amount.String()})
		return nil, err
	}
	// Log successful withdrawal
	e.log.WithFields(logrus.Fields{
		"account_id":   accountID,                    // Account ID
		"amount":       amount.String(),              // Withdrawal amount
		"balance":      res.Account.Balance.String(), // Resulting balance
		"operation_id": op,                           // Atomic group
		"type":         "withdraw",                   // Operation type
	}).Info("Withdrawal transaction")
	return res, nil
}

// Distribute moves money from an account into its sub-accounts. Every allocation must name a live
// sub-account of that account; one bad reference fails the whole batch and nothing moves.
func (e *Engine) Distribute(ctx context.Context, accountID uint, allocations []Allocation) (*DistributeResult, error) {
	if len(allocations) == 0 {
		return nil, domain.Errorf(domain.KindInvalidRequest, "allocations must not be empty")
	}
	total := decimal.Zero
	for _, a := range allocations {
		if err := domain.ValidateAmount(a.Amount); err != nil {
			return nil, err
		}
		total = total.Add(a.Amount)
	}

	op := operationID(ctx)
	res := &DistributeResult{}
	err := e.store.Atomic(ctx, "distribute", func(tx *store.Store) error {
		done, err := replayed(ctx, tx, op, domain.OpDistribute, func(legs []domain.Transaction) bool {
			return sameDistribution(legs, accountID, allocations)
		})
		if err != nil {
			return err
		}
		if !done {
			if err := e.applyDistribution(ctx, tx, accountID, allocations, total, op); err != nil {
				return err
			}
		}
		acc, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		res.Account = acc
		for _, id := range uniqueSubAccountIDs(allocations) {
			sub, err := tx.GetSubAccount(ctx, id)
			if err != nil {
				return err
			}
			res.SubAccounts = append(res.SubAccounts, *sub)
		}
		res.Transactions, err = tx.TransactionsByOperation(ctx, op)
		return err
	})
	if err != nil {
		e.logFailure("Distribution failed", err, logrus.Fields{"account_id": accountID, "total": total.String()})
		return nil, err
	}
	// Log successful distribution
	e.log.WithFields(logrus.Fields{
		"account_id":   accountID,                    // Account ID
		"total":        total.String(),               // Amount leaving the account
		"allocations":  len(allocations),             // Credited sub-accounts
		"balance":      res.Account.Balance.String(), // Resulting balance
		"operation_id": op,                           // Atomic group
		"type":         "distribute",                 // Operation type
	}).Info("Distribution transaction")
	return res, nil
}

func (e *Engine) applyDistribution(ctx context.Context, tx *store.Store, accountID uint, allocations []Allocation, total decimal.Decimal, op string) error {
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.Status == domain.AccountFrozen {
		return domain.Errorf(domain.KindAccountFrozen, "account %d is frozen", accountID)
	}

	// Lock every target in ascending id order before moving anything
	for _, id := range uniqueSubAccountIDs(allocations) {
		sub, err := tx.GetSubAccount(ctx, id)
		if err != nil {
			return err
		}
		if sub.AccountID != accountID {
			return domain.Errorf(domain.KindSubAccountNotFound, "sub-account %d does not belong to account %d", id, accountID)
		}
	}

	now := e.clock.Now()
	ok, err := tx.DebitAccount(ctx, accountID, total, now)
	if err != nil {
		return err
	}
	if !ok {
		return insufficient(total, acc.Balance)
	}

	entries := []*domain.Transaction{{
		AccountID:   accountID,
		Type:        domain.TxDebit,
		Amount:      total,
		Description: fmt.Sprintf("Distribution to %d sub-accounts", len(allocations)),
		Operation:   domain.OpDistribute,
		OperationID: op,
		CreatedAt:   now,
	}}
	for i, a := range allocations {
		if err := tx.CreditSubAccount(ctx, a.SubAccountID, a.Amount); err != nil {
			return err
		}
		subID := a.SubAccountID
		entries = append(entries, &domain.Transaction{
			AccountID:    accountID,
			SubAccountID: &subID,
			Type:         domain.TxCredit,
			Amount:       a.Amount,
			Description:  "Distribution from main account",
			Operation:    domain.OpDistribute,
			OperationID:  op,
			Leg:          i + 1,
			CreatedAt:    now,
		})
	}
	return tx.AppendTransactions(ctx, entries...)
}

// Transfer moves money between two sub-accounts, possibly under different accounts. The debit, the
// credit and both audit legs commit together or not at all.
func (e *Engine) Transfer(ctx context.Context, sourceID, targetID uint, amount decimal.Decimal, description string) (*TransferResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if sourceID == targetID {
		return nil, domain.Errorf(domain.KindInvalidRequest, "source and target sub-account must differ")
	}

	op := operationID(ctx)
	res := &TransferResult{}
	err := e.store.Atomic(ctx, "transfer", func(tx *store.Store) error {
		done, err := replayed(ctx, tx, op, domain.OpTransfer, func(legs []domain.Transaction) bool {
			return len(legs) == 2 &&
				isSubAccount(legs[0].SubAccountID, sourceID) &&
				isSubAccount(legs[1].SubAccountID, targetID) &&
				legs[0].Amount.Equal(amount)
		})
		if err != nil {
			return err
		}
		if !done {
			if err := e.applyTransfer(ctx, tx, sourceID, targetID, amount, description, op); err != nil {
				return err
			}
		}
		if res.Source, err = tx.GetSubAccount(ctx, sourceID); err != nil {
			return err
		}
		if res.Target, err = tx.GetSubAccount(ctx, targetID); err != nil {
			return err
		}
		legs, err := tx.TransactionsByOperation(ctx, op)
		if err != nil {
			return err
		}
		if len(legs) != 2 {
			return domain.Errorf(domain.KindStoreUnavailable, "transfer %s has %d legs", op, len(legs))
		}
		res.Out, res.In = legs[0], legs[1]
		return nil
	})
	if err != nil {
		e.logFailure("Transfer failed", err, logrus.Fields{"source_id": sourceID, "target_id": targetID, "amount": amount.String()})
		return nil, err
	}
	// Log successful transfer
	e.log.WithFields(logrus.Fields{
		"source_id":    sourceID,        // Debited sub-account
		"target_id":    targetID,        // Credited sub-account
		"amount":       amount.String(), // Transfer amount
		"operation_id": op,              // Shared by both legs
		"type":         "transfer",      // Operation type
	}).Info("Transfer transaction")
	return res, nil
}

func (e *Engine) applyTransfer(ctx context.Context, tx *store.Store, sourceID, targetID uint, amount decimal.Decimal, description, op string) error {
	// Lock in ascending id order so opposite transfers cannot deadlock
	var src, tgt *domain.SubAccount
	first, second := sourceID, targetID
	if second < first {
		first, second = second, first
	}
	for _, id := range []uint{first, second} {
		sub, err := tx.GetSubAccount(ctx, id)
		if err != nil {
			if domain.KindOf(err) == domain.KindSubAccountNotFound {
				if id == sourceID {
					return domain.Errorf(domain.KindSourceNotFound, "source sub-account %d not found", id)
				}
				return domain.Errorf(domain.KindTargetNotFound, "target sub-account %d not found", id)
			}
			return err
		}
		if id == sourceID {
			src = sub
		} else {
			tgt = sub
		}
	}

	acc, err := tx.GetAccount(ctx, src.AccountID)
	if err != nil {
		return err
	}
	if acc.Status == domain.AccountFrozen {
		return domain.Errorf(domain.KindAccountFrozen, "account %d is frozen", acc.ID)
	}

	ok, err := tx.DebitSubAccount(ctx, sourceID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return insufficient(amount, src.Balance)
	}
	if err := tx.CreditSubAccount(ctx, targetID, amount); err != nil {
		return err
	}

	now := e.clock.Now()
	if err := tx.TouchAccounts(ctx, now, src.AccountID, tgt.AccountID); err != nil {
		return err
	}
	outDesc, inDesc := description, description
	if description == "" {
		outDesc = fmt.Sprintf("Transfer to sub-account %d", targetID)
		inDesc = fmt.Sprintf("Transfer from sub-account %d", sourceID)
	}
	srcID, tgtID := sourceID, targetID
	return tx.AppendTransactions(ctx,
		&domain.Transaction{
			AccountID:                src.AccountID,
			SubAccountID:             &srcID,
			CounterpartySubAccountID: &tgtID,
			Type:                     domain.TxTransfer,
			Amount:                   amount,
			Description:              outDesc,
			Operation:                domain.OpTransfer,
			OperationID:              op,
			Leg:                      0,
			CreatedAt:                now,
		},
		&domain.Transaction{
			AccountID:                tgt.AccountID,
			SubAccountID:             &tgtID,
			CounterpartySubAccountID: &srcID,
			Type:                     domain.TxTransfer,
			Amount:                   amount,
			Description:              inDesc,
			Operation:                domain.OpTransfer,
			OperationID:              op,
			Leg:                      1,
			CreatedAt:                now,
		},
	)
}

// RecordCreditOrDebit applies a single-sided Credit or Debit to a sub-account and writes its audit
// record in the same group
func (e *Engine) RecordCreditOrDebit(ctx context.Context, subAccountID uint, kind domain.TransactionType, amount decimal.Decimal, description string) (*EntryResult, error) {
	if kind != domain.TxCredit && kind != domain.TxDebit {
		return nil, domain.Errorf(domain.KindInvalidRequest, "entry type must be Credit or Debit, got %q", kind)
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	op := operationID(ctx)
	res := &EntryResult{}
	err := e.store.Atomic(ctx, "entry", func(tx *store.Store) error {
		done, err := replayed(ctx, tx, op, domain.OpEntry, func(legs []domain.Transaction) bool {
			return len(legs) == 1 &&
				legs[0].Type == kind &&
				isSubAccount(legs[0].SubAccountID, subAccountID) &&
				legs[0].Amount.Equal(amount)
		})
		if err != nil {
			return err
		}
		if !done {
			if err := e.applyEntry(ctx, tx, subAccountID, kind, amount, description, op); err != nil {
				return err
			}
		}
		if res.SubAccount, err = tx.GetSubAccount(ctx, subAccountID); err != nil {
			return err
		}
		legs, err := tx.TransactionsByOperation(ctx, op)
		if err != nil {
			return err
		}
		res.Transaction = legs[0]
		return nil
	})
	if err != nil {
		e.logFailure("Entry failed", err, logrus.Fields{"sub_account_id": subAccountID, "type": kind, "amount": amount.String()})
		return nil, err
	}
	// Log successful entry
	e.log.WithFields(logrus.Fields{
		"sub_account_id": subAccountID,                    // Sub-account ID
		"amount":         amount.String(),                 // Entry amount
		"balance":        res.SubAccount.Balance.String(), // Resulting balance
		"operation_id":   op,                              // Atomic group
		"type":           kind,                            // Credit or Debit
	}).Info("Sub-account entry")
	return res, nil
}

func (e *Engine) applyEntry(ctx context.Context, tx *store.Store, subAccountID uint, kind domain.TransactionType, amount decimal.Decimal, description, op string) error {
	sub, err := tx.GetSubAccount(ctx, subAccountID)
	if err != nil {
		return err
	}
	acc, err := tx.GetAccount(ctx, sub.AccountID)
	if err != nil {
		return err
	}

	if kind == domain.TxDebit {
		if acc.Status == domain.AccountFrozen {
			return domain.Errorf(domain.KindAccountFrozen, "account %d is frozen", acc.ID)
		}
		ok, err := tx.DebitSubAccount(ctx, subAccountID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return insufficient(amount, sub.Balance)
		}
	} else if err := tx.CreditSubAccount(ctx, subAccountID, amount); err != nil {
		return err
	}

	now := e.clock.Now()
	if err := tx.TouchAccounts(ctx, now, acc.ID); err != nil {
		return err
	}
	return tx.AppendTransactions(ctx, &domain.Transaction{
		AccountID:    acc.ID,
		SubAccountID: &subAccountID,
		Type:         kind,
		Amount:       amount,
		Description:  description,
		Operation:    domain.OpEntry,
		OperationID:  op,
		CreatedAt:    now,
	})
}

func loadAccountResult(ctx context.Context, tx *store.Store, accountID uint, op string, res *AccountResult) error {
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	res.Account = acc
	res.Transactions, err = tx.TransactionsByOperation(ctx, op)
	return err
}

// sameAccountLeg matches a single account-level record of amount
func sameAccountLeg(legs []domain.Transaction, accountID uint, amount decimal.Decimal) bool {
	return len(legs) == 1 &&
		legs[0].AccountID == accountID &&
		legs[0].SubAccountID == nil &&
		legs[0].Amount.Equal(amount)
}

// sameDistribution matches the account debit at leg 0 and one credit per allocation, in order
func sameDistribution(legs []domain.Transaction, accountID uint, allocations []Allocation) bool {
	if len(legs) != len(allocations)+1 || legs[0].AccountID != accountID || legs[0].SubAccountID != nil {
		return false
	}
	for i, a := range allocations {
		leg := legs[i+1]
		if !isSubAccount(leg.SubAccountID, a.SubAccountID) || !leg.Amount.Equal(a.Amount) {
			return false
		}
	}
	return true
}

func isSubAccount(id *uint, want uint) bool {
	return id != nil && *id == want
}

func insufficient(amount, balance decimal.Decimal) error {
	return domain.Errorf(domain.KindInsufficientFunds, "amount %s exceeds balance %s", amount.String(), balance.String())
}

// uniqueSubAccountIDs returns the distinct targets in ascending order
func uniqueSubAccountIDs(allocations []Allocation) []uint {
	seen := make(map[uint]bool, len(allocations))
	ids := make([]uint, 0, len(allocations))
	for _, a := range allocations {
		if !seen[a.SubAccountID] {
			seen[a.SubAccountID] = true
			ids = append(ids, a.SubAccountID)
		}
	}
	slices.Sort(ids)
	return ids
}

func (e *Engine) logFailure(msg string, err error, fields logrus.Fields) {
	fields["kind"] = domain.KindOf(err)
	fields["error"] = err.Error()
	// Invariant failures are expected outcomes; only store trouble is an error
	switch domain.KindOf(err) {
	case domain.KindStoreUnavailable, domain.KindConcurrencyConflict:
		e.log.WithFields(fields).Error(msg)
	default:
		e.log.WithFields(fields).Warn(msg)
	}
}
