package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category labels what a SubAccount is earmarked for
type Category string

const (
	CategoryMedical    Category = "Medical"
	CategoryFood       Category = "Food"
	CategoryWorld      Category = "World"
	CategoryEmergency  Category = "Emergency"
	CategoryMovies     Category = "Movies"
	CategoryFitness    Category = "Health and Fitness"
	CategoryTravel     Category = "Travel"
	CategoryEducation  Category = "Education"
	CategoryOther      Category = "Other"
	CategoryInvestment Category = "Investment" // Scheme only
)

var subAccountCategories = map[Category]bool{
	CategoryMedical: true, CategoryFood: true, CategoryWorld: true, CategoryEmergency: true,
	CategoryMovies: true, CategoryFitness: true, CategoryTravel: true, CategoryEducation: true,
	CategoryOther: true,
}

// ValidSubAccountCategory reports whether c is an allowed SubAccount category
func ValidSubAccountCategory(c Category) bool {
	return subAccountCategories[c]
}

// SubAccount Model
type SubAccount struct {
	ID        uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	AccountID uint            `gorm:"index;not null" json:"account_id"`                     // Owning Account
	Name      string          `gorm:"size:128;not null" json:"name"`                        // Display name
	Category  Category        `gorm:"size:32;not null;default:Other" json:"category"`       // Earmark
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"` // Never negative
	IsActive  bool            `gorm:"not null;default:true" json:"is_active"`               // Owner toggle
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`
}
