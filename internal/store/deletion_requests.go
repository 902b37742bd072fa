package store

import (
	"context"
	"errors"
	"time"

	"ledger_system/internal/domain"

	"gorm.io/gorm"
)

// CreateDeletionRequest inserts a Pending request; a second Pending request for the account is rejected
// by the unique pending index even when two submissions race.
func (s *Store) CreateDeletionRequest(ctx context.Context, r *domain.DeletionRequest) error {
	r.Status = domain.DeletionPending
	accountID := r.AccountID
	r.PendingAccountID = &accountID
	err := s.conn(ctx).Create(r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.Errorf(domain.KindDuplicatePendingRequest, "account %d already has a pending deletion request", r.AccountID)
	}
	return err
}

// PendingDeletionRequest returns the Pending request for an account, or nil when there is none
func (s *Store) PendingDeletionRequest(ctx context.Context, accountID uint) (*domain.DeletionRequest, error) {
	var r domain.DeletionRequest
	err := s.conn(ctx).Where("account_id = ? AND status = ?", accountID, domain.DeletionPending).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetDeletionRequest loads a request, locking it inside an atomic group
func (s *Store) GetDeletionRequest(ctx context.Context, id uint) (*domain.DeletionRequest, error) {
	var r domain.DeletionRequest
	err := s.locking(ctx).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.Errorf(domain.KindRequestNotFound, "deletion request %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CompleteDeletionRequest moves a Pending request to a terminal status. It reports false when the
// request was no longer Pending.
func (s *Store) CompleteDeletionRequest(ctx context.Context, id uint, status domain.DeletionStatus, at time.Time) (bool, error) {
	fields := map[string]any{
		"status":             status,
		"pending_account_id": nil, // Frees the pending slot for the account
	}
	if status == domain.DeletionDeleted {
		fields["completed_at"] = at
	}
	res := s.conn(ctx).Model(&domain.DeletionRequest{}).
		Where("id = ? AND status = ?", id, domain.DeletionPending).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

// ListDeletionRequests pages through requests, optionally filtered by status, oldest first
func (s *Store) ListDeletionRequests(ctx context.Context, status domain.DeletionStatus, page Page) ([]domain.DeletionRequest, int64, error) {
	page = page.Normalize()
	q := s.conn(ctx).Model(&domain.DeletionRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reqs []domain.DeletionRequest
	err := q.Order("requested_at").Order("id").Offset(page.Offset()).Limit(page.Size).Find(&reqs).Error
	return reqs, total, err
}
