package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scheme Model. A percentage-based template for distributing funds into sub-accounts.
type Scheme struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	OwnerID         uint               `gorm:"index;not null" json:"owner_id"`
	Name            string             `gorm:"size:128;not null" json:"name"`
	Description     string             `gorm:"size:512" json:"description"`
	Allocations     []SchemeAllocation `gorm:"constraint:OnDelete:CASCADE" json:"allocations"`
	TotalPercentage int                `gorm:"not null;default:0" json:"total_percentage"` // Always recomputed
	Category        Category           `gorm:"size:32;not null;default:Investment" json:"category"`
	InterestRate    decimal.Decimal    `gorm:"type:decimal(8,4);not null;default:0" json:"interest_rate"`
	StartDate       time.Time          `json:"start_date"`
	EndDate         *time.Time         `json:"end_date,omitempty"`
	MinAmount       decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"min_amount"`
	MaxAmount       decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"max_amount"` // Zero means unbounded
	IsActive        bool               `gorm:"not null" json:"is_active"`
	Archived        bool               `gorm:"not null" json:"archived"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// SchemeAllocation is one (sub-account, percentage) entry of a Scheme, kept in Position order
type SchemeAllocation struct {
	ID           uint `gorm:"primaryKey" json:"-"`
	SchemeID     uint `gorm:"index;not null" json:"-"`
	Position     int  `gorm:"not null" json:"-"`
	SubAccountID uint `gorm:"not null" json:"sub_account_id"`
	Percentage   int  `gorm:"not null" json:"percentage"`
}

var schemeCategories = map[Category]bool{
	CategoryMedical: true, CategoryEducation: true, CategoryTravel: true, CategoryFood: true, CategoryInvestment: true,
}

// ValidSchemeCategory reports whether c is an allowed Scheme category
func ValidSchemeCategory(c Category) bool {
	return schemeCategories[c]
}
