package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Exact decimal arithmetic for money
	"gorm.io/gorm"                  // Soft delete support
)

// AccountStatus is the lifecycle state of an Account
type AccountStatus string

const (
	AccountActive AccountStatus = "Active" // Normal operation
	AccountFrozen AccountStatus = "Frozen" // Outgoing money blocked until an administrator unfreezes
	AccountClosed AccountStatus = "Closed" // Terminal, reached only through an approved deletion request
)

// Account Model
type Account struct {
	ID             uint            `gorm:"primaryKey" json:"id"`                                           // Primary key
	OwnerID        uint            `gorm:"uniqueIndex;not null" json:"owner_id"`                           // External user identity, one account per owner
	AccountNumber  string          `gorm:"size:32;uniqueIndex;not null" json:"account_number"`             // Unique account number
	Balance        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`           // Never negative
	Currency       string          `gorm:"size:3;not null;default:INR" json:"currency"`                    // ISO currency code
	Status         AccountStatus   `gorm:"size:16;not null;default:Active;index" json:"status"`            // Lifecycle state
	MinimumBalance decimal.Decimal `gorm:"type:decimal(20,4);not null;default:1000" json:"minimum_balance"` // Informational floor
	DailyLimit     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:50000" json:"daily_limit"`    // Informational limit
	LastActivity   time.Time       `gorm:"index" json:"last_activity"`                                     // Last balance-affecting event
	HolderName     string          `gorm:"size:128" json:"holder_name"`                                    // Denormalized holder contact
	HolderEmail    string          `gorm:"size:255" json:"holder_email"`                                   // Denormalized holder contact
	HolderPhone    string          `gorm:"size:32" json:"holder_phone"`                                    // Denormalized holder contact
	CreatedAt      time.Time       `json:"created_at"`                                                     // Creation timestamp
	UpdatedAt      time.Time       `json:"updated_at"`                                                     // Update timestamp
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`                                                 // Set when the account is closed
}
