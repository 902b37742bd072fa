// Package lifecycle owns the account status state machine, the deletion workflow and sub-account
// administration. Money never moves through here; see package ledger.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ledger_system/internal/clock"
	"ledger_system/internal/domain"
	"ledger_system/internal/store"

	"github.com/sirupsen/logrus"
)

// DefaultNoticeDelay is how long after a deletion the confirmation notice goes out
const DefaultNoticeDelay = 15 * 24 * time.Hour

// Manager is the Lifecycle Manager
type Manager struct {
	store       *store.Store
	clock       clock.Clock
	log         logrus.FieldLogger
	noticeDelay time.Duration
}

// NewManager builds a Manager. A zero noticeDelay uses DefaultNoticeDelay.
func NewManager(s *store.Store, c clock.Clock, log logrus.FieldLogger, noticeDelay time.Duration) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if noticeDelay <= 0 {
		noticeDelay = DefaultNoticeDelay
	}
	return &Manager{store: s, clock: c, log: log, noticeDelay: noticeDelay}
}

// Freeze moves an Active account to Frozen
func (m *Manager) Freeze(ctx context.Context, accountID uint) (*domain.Account, error) {
	return m.transition(ctx, accountID, domain.AccountActive, domain.AccountFrozen)
}

// Unfreeze moves a Frozen account back to Active
func (m *Manager) Unfreeze(ctx context.Context, accountID uint) (*domain.Account, error) {
	return m.transition(ctx, accountID, domain.AccountFrozen, domain.AccountActive)
}

func (m *Manager) transition(ctx context.Context, accountID uint, from, to domain.AccountStatus) (*domain.Account, error) {
	var acc *domain.Account
	err := m.store.Atomic(ctx, "account_status", func(tx *store.Store) error {
		current, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if current.Status != from {
			return domain.Errorf(domain.KindInvalidRequest, "account %d is %s, expected %s", accountID, current.Status, from)
		}
		ok, err := tx.TransitionAccount(ctx, accountID, []domain.AccountStatus{from}, to)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.KindInvalidRequest, "account %d is no longer %s", accountID, from)
		}
		acc, err = tx.GetAccount(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"from":       from,
		"to":         to,
	}).Info("Account status changed")
	return acc, nil
}

// FreezeIfInactive freezes an account that is still Active with no activity since cutoff. It reports
// whether the account was frozen; an account touched since it was selected is left alone.
func (m *Manager) FreezeIfInactive(ctx context.Context, accountID uint, cutoff time.Time) (bool, error) {
	var frozen bool
	err := m.store.Atomic(ctx, "freeze_inactive", func(tx *store.Store) error {
		var err error
		frozen, err = tx.FreezeIfInactive(ctx, accountID, cutoff)
		return err
	})
	if err != nil {
		return false, err
	}
	if frozen {
		m.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"cutoff":     cutoff.Format(time.RFC3339),
		}).Info("Inactive account frozen")
	}
	return frozen, nil
}

// RequestDeletion opens a Pending deletion request for an account
func (m *Manager) RequestDeletion(ctx context.Context, accountID uint) (*domain.DeletionRequest, error) {
	var req *domain.DeletionRequest
	err := m.store.Atomic(ctx, "request_deletion", func(tx *store.Store) error {
		acc, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		pending, err := tx.PendingDeletionRequest(ctx, accountID)
		if err != nil {
			return err
		}
		if pending != nil {
			return domain.Errorf(domain.KindDuplicatePendingRequest, "deletion request %d for account %d is already pending", pending.ID, accountID)
		}
		req = &domain.DeletionRequest{
			OwnerID:     acc.OwnerID,
			AccountID:   accountID,
			RequestedAt: m.clock.Now(),
		}
		return tx.CreateDeletionRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"account_id": accountID,
	}).Info("Deletion requested")
	return req, nil
}

// ApproveDeletion closes the account of a Pending request. The account balance must be zero. The
// account and its sub-accounts leave active storage, the request becomes Deleted, and a confirmation
// notice is scheduled for the configured delay after completion, all in one group.
func (m *Manager) ApproveDeletion(ctx context.Context, requestID uint) (*domain.DeletionRequest, error) {
	var req *domain.DeletionRequest
	var due time.Time // Notice due time, set inside the transaction
	err := m.store.Atomic(ctx, "approve_deletion", func(tx *store.Store) error {
		r, err := pendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		acc, err := tx.GetAccount(ctx, r.AccountID)
		if err != nil {
			return err
		}
		if acc.Balance.IsPositive() {
			return domain.Errorf(domain.KindNonZeroBalance, "account %d still holds %s", acc.ID, acc.Balance.String())
		}

		now := m.clock.Now()
		if err := tx.CloseAccount(ctx, acc.ID); err != nil {
			return err
		}
		ok, err := tx.CompleteDeletionRequest(ctx, r.ID, domain.DeletionDeleted, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.KindRequestNotPending, "deletion request %d is no longer pending", r.ID)
		}
		notice := domain.Notification{
			RecipientID: acc.OwnerID,
			Address:     acc.HolderEmail,
			Subject:     "Your account has been deleted",
			Body: fmt.Sprintf("Account %s was permanently deleted on %s. Contact support if you did not request this.",
				acc.AccountNumber, now.Format("2006-01-02")),
		}
		due = now.Add(m.noticeDelay)
		if err := scheduleNotice(ctx, tx, notice, due); err != nil {
			return err
		}
		req, err = tx.GetDeletionRequest(ctx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"account_id": req.AccountID,
		"notice_due": due.Format(time.RFC3339),
	}).Info("Deletion approved, account closed")
	return req, nil
}

// RejectDeletion ends a Pending request without touching the account and notifies the owner right away
func (m *Manager) RejectDeletion(ctx context.Context, requestID uint) (*domain.DeletionRequest, error) {
	var req *domain.DeletionRequest
	err := m.store.Atomic(ctx, "reject_deletion", func(tx *store.Store) error {
		r, err := pendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		now := m.clock.Now()
		ok, err := tx.CompleteDeletionRequest(ctx, r.ID, domain.DeletionRejected, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.KindRequestNotPending, "deletion request %d is no longer pending", r.ID)
		}
		acc, err := tx.GetAccount(ctx, r.AccountID)
		if err != nil {
			return err
		}
		notice := domain.Notification{
			RecipientID: acc.OwnerID,
			Address:     acc.HolderEmail,
			Subject:     "Your account deletion request was rejected",
			Body:        fmt.Sprintf("The deletion request for account %s was reviewed and rejected.", acc.AccountNumber),
		}
		if err := scheduleNotice(ctx, tx, notice, now); err != nil {
			return err
		}
		req, err = tx.GetDeletionRequest(ctx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"account_id": req.AccountID,
	}).Info("Deletion rejected")
	return req, nil
}

// DeletionRequests pages through requests for reviewers; an empty status lists all of them
func (m *Manager) DeletionRequests(ctx context.Context, status domain.DeletionStatus, page store.Page) ([]domain.DeletionRequest, int64, error) {
	var (
		reqs  []domain.DeletionRequest
		total int64
	)
	err := m.store.Read(ctx, "list_deletion_requests", func(s *store.Store) error {
		var err error
		reqs, total, err = s.ListDeletionRequests(ctx, status, page)
		return err
	})
	return reqs, total, err
}

// DeletionRequest loads one request
func (m *Manager) DeletionRequest(ctx context.Context, id uint) (*domain.DeletionRequest, error) {
	var req *domain.DeletionRequest
	err := m.store.Read(ctx, "get_deletion_request", func(s *store.Store) error {
		var err error
		req, err = s.GetDeletionRequest(ctx, id)
		return err
	})
	return req, err
}

func pendingRequest(ctx context.Context, tx *store.Store, id uint) (*domain.DeletionRequest, error) {
	r, err := tx.GetDeletionRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != domain.DeletionPending {
		return nil, domain.Errorf(domain.KindRequestNotPending, "deletion request %d is %s", id, r.Status)
	}
	return r, nil
}

func scheduleNotice(ctx context.Context, tx *store.Store, n domain.Notification, dueAt time.Time) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return tx.EnqueueTask(ctx, &domain.DeferredTask{
		Kind:    domain.TaskKindNotification,
		Payload: payload,
		DueAt:   dueAt,
	})
}
