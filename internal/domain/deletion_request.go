package domain

import "time"

// DeletionStatus is the state of a DeletionRequest
type DeletionStatus string

const (
	DeletionPending  DeletionStatus = "Pending"
	DeletionDeleted  DeletionStatus = "Deleted"
	DeletionRejected DeletionStatus = "Rejected"
)

// DeletionRequest Model. PendingAccountID mirrors AccountID while the request is Pending and is nil
// afterwards; its unique index allows at most one Pending request per Account.
type DeletionRequest struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	OwnerID          uint           `gorm:"index;not null" json:"owner_id"`
	AccountID        uint           `gorm:"index;not null" json:"account_id"`
	PendingAccountID *uint          `gorm:"uniqueIndex" json:"-"`
	Status           DeletionStatus `gorm:"size:16;not null;default:Pending" json:"status"`
	RequestedAt      time.Time      `json:"requested_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}
