// Package scheme validates and stores percentage-based distribution templates and turns them into
// concrete allocations. It never moves money itself.
package scheme

import (
	"context"
	"strings"
	"time"

	"ledger_system/internal/clock"
	"ledger_system/internal/domain"
	"ledger_system/internal/ledger"
	"ledger_system/internal/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MaxTotalPercentage bounds the sum of a scheme's allocation percentages
const MaxTotalPercentage = 100

// planScale is the number of decimal places a planned share is truncated to
const planScale = 2

// Allocator is the Scheme Allocator
type Allocator struct {
	store *store.Store
	clock clock.Clock
	log   logrus.FieldLogger
}

// NewAllocator builds an Allocator
func NewAllocator(s *store.Store, c clock.Clock, log logrus.FieldLogger) *Allocator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Allocator{store: s, clock: c, log: log}
}

// Input describes a scheme to create
type Input struct {
	Name         string                    `json:"name"`
	Description  string                    `json:"description"`
	Allocations  []domain.SchemeAllocation `json:"allocations"`
	Category     domain.Category           `json:"category"`
	InterestRate decimal.Decimal           `json:"interest_rate"`
	StartDate    *time.Time                `json:"start_date"`
	EndDate      *time.Time                `json:"end_date"`
	MinAmount    decimal.Decimal           `json:"min_amount"`
	MaxAmount    decimal.Decimal           `json:"max_amount"`
	IsActive     *bool                     `json:"is_active"`
	Archived     *bool                     `json:"archived"`
}

// Patch is a partial update; nil fields keep their stored value
type Patch struct {
	Name         *string                    `json:"name"`
	Description  *string                    `json:"description"`
	Allocations  *[]domain.SchemeAllocation `json:"allocations"`
	Category     *domain.Category           `json:"category"`
	InterestRate *decimal.Decimal           `json:"interest_rate"`
	StartDate    *time.Time                 `json:"start_date"`
	EndDate      *time.Time                 `json:"end_date"`
	MinAmount    *decimal.Decimal           `json:"min_amount"`
	MaxAmount    *decimal.Decimal           `json:"max_amount"`
	IsActive     *bool                      `json:"is_active"`
	Archived     *bool                      `json:"archived"`
}

// Validate checks an allocation set and returns its total percentage. The total is always computed
// here; whatever a client claims it to be is ignored.
func Validate(allocations []domain.SchemeAllocation) (int, error) {
	if len(allocations) == 0 {
		return 0, domain.Errorf(domain.KindInvalidRequest, "allocations must not be empty")
	}
	seen := make(map[uint]bool, len(allocations))
	total := 0
	for i, a := range allocations {
		if a.SubAccountID == 0 {
			return 0, domain.Errorf(domain.KindInvalidRequest, "allocation %d has no sub_account_id", i)
		}
		if seen[a.SubAccountID] {
			return 0, domain.Errorf(domain.KindInvalidRequest, "sub-account %d is allocated twice", a.SubAccountID)
		}
		seen[a.SubAccountID] = true
		if a.Percentage < 1 || a.Percentage > 100 {
			return 0, domain.Errorf(domain.KindInvalidRequest, "allocation percentage must be 1-100, got %d", a.Percentage)
		}
		total += a.Percentage
	}
	if total > MaxTotalPercentage {
		return 0, domain.Errorf(domain.KindAllocationOverflow, "total allocation percentage %d exceeds %d", total, MaxTotalPercentage)
	}
	return total, nil
}

// validateScheme checks a complete scheme and recomputes its total
func validateScheme(sc *domain.Scheme) error {
	if strings.TrimSpace(sc.Name) == "" {
		return domain.Errorf(domain.KindInvalidRequest, "scheme name is required")
	}
	total, err := Validate(sc.Allocations)
	if err != nil {
		return err
	}
	sc.TotalPercentage = total
	if !domain.ValidSchemeCategory(sc.Category) {
		return domain.Errorf(domain.KindInvalidRequest, "unknown scheme category %q", sc.Category)
	}
	if sc.InterestRate.IsNegative() {
		return domain.Errorf(domain.KindInvalidRequest, "interest rate must not be negative")
	}
	if sc.MinAmount.IsNegative() || sc.MaxAmount.IsNegative() {
		return domain.Errorf(domain.KindInvalidAmount, "amount bounds must not be negative")
	}
	if sc.MaxAmount.IsPositive() && sc.MaxAmount.LessThan(sc.MinAmount) {
		return domain.Errorf(domain.KindInvalidAmount, "max amount %s is below min amount %s", sc.MaxAmount.String(), sc.MinAmount.String())
	}
	if sc.EndDate != nil && sc.EndDate.Before(sc.StartDate) {
		return domain.Errorf(domain.KindInvalidRequest, "end date is before start date")
	}
	return nil
}

// Create validates and stores a new scheme for ownerID
func (a *Allocator) Create(ctx context.Context, ownerID uint, in Input) (*domain.Scheme, error) {
	sc := &domain.Scheme{
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		Allocations:  in.Allocations,
		Category:     in.Category,
		InterestRate: in.InterestRate,
		StartDate:    a.clock.Now(),
		EndDate:      in.EndDate,
		MinAmount:    in.MinAmount,
		MaxAmount:    in.MaxAmount,
		IsActive:     true,
	}
	if sc.Category == "" {
		sc.Category = domain.CategoryInvestment
	}
	if in.StartDate != nil {
		sc.StartDate = *in.StartDate
	}
	if in.IsActive != nil {
		sc.IsActive = *in.IsActive
	}
	if in.Archived != nil {
		sc.Archived = *in.Archived
	}
	if err := validateScheme(sc); err != nil {
		return nil, err
	}

	err := a.store.Atomic(ctx, "create_scheme", func(tx *store.Store) error {
		return tx.CreateScheme(ctx, sc)
	})
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"scheme_id":        sc.ID,
		"owner_id":         ownerID,
		"total_percentage": sc.TotalPercentage,
	}).Info("Scheme created")
	return sc, nil
}

// Update merges p into the stored scheme and re-validates the whole result before saving
func (a *Allocator) Update(ctx context.Context, id uint, p Patch) (*domain.Scheme, error) {
	var sc *domain.Scheme
	err := a.store.Atomic(ctx, "update_scheme", func(tx *store.Store) error {
		var err error
		if sc, err = tx.GetScheme(ctx, id); err != nil {
			return err
		}
		p.apply(sc)
		if err := validateScheme(sc); err != nil {
			return err
		}
		return tx.SaveScheme(ctx, sc)
	})
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"scheme_id":        sc.ID,
		"total_percentage": sc.TotalPercentage,
	}).Info("Scheme updated")
	return sc, nil
}

func (p Patch) apply(sc *domain.Scheme) {
	if p.Name != nil {
		sc.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		sc.Description = *p.Description
	}
	if p.Allocations != nil {
		sc.Allocations = *p.Allocations
	}
	if p.Category != nil {
		sc.Category = *p.Category
	}
	if p.InterestRate != nil {
		sc.InterestRate = *p.InterestRate
	}
	if p.StartDate != nil {
		sc.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		sc.EndDate = p.EndDate
	}
	if p.MinAmount != nil {
		sc.MinAmount = *p.MinAmount
	}
	if p.MaxAmount != nil {
		sc.MaxAmount = *p.MaxAmount
	}
	if p.IsActive != nil {
		sc.IsActive = *p.IsActive
	}
	if p.Archived != nil {
		sc.Archived = *p.Archived
	}
}

// Get loads a scheme
func (a *Allocator) Get(ctx context.Context, id uint) (*domain.Scheme, error) {
	var sc *domain.Scheme
	err := a.store.Read(ctx, "get_scheme", func(s *store.Store) error {
		var err error
		sc, err = s.GetScheme(ctx, id)
		return err
	})
	return sc, err
}

// List returns the schemes of ownerID, or every scheme when ownerID is 0
func (a *Allocator) List(ctx context.Context, ownerID uint) ([]domain.Scheme, error) {
	var schemes []domain.Scheme
	err := a.store.Read(ctx, "list_schemes", func(s *store.Store) error {
		var err error
		schemes, err = s.ListSchemes(ctx, ownerID)
		return err
	})
	return schemes, err
}

// Delete removes a scheme
func (a *Allocator) Delete(ctx context.Context, id uint) error {
	err := a.store.Atomic(ctx, "delete_scheme", func(tx *store.Store) error {
		return tx.DeleteScheme(ctx, id)
	})
	if err != nil {
		return err
	}
	a.log.WithField("scheme_id", id).Info("Scheme deleted")
	return nil
}

// Plan turns a stored scheme into concrete allocations of amount, ready for the Balance Engine's
// Distribute. Each share is amount × percentage / 100 truncated to two decimal places; shares that
// truncate to zero are left out and the remainder stays on the account.
func (a *Allocator) Plan(ctx context.Context, id uint, amount decimal.Decimal) ([]ledger.Allocation, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	sc, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkApplicable(sc, amount, a.clock.Now()); err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	plan := make([]ledger.Allocation, 0, len(sc.Allocations))
	for _, alloc := range sc.Allocations {
		share := amount.Mul(decimal.NewFromInt(int64(alloc.Percentage))).Div(hundred).Truncate(planScale)
		if !share.IsPositive() {
			continue
		}
		plan = append(plan, ledger.Allocation{SubAccountID: alloc.SubAccountID, Amount: share})
	}
	if len(plan) == 0 {
		return nil, domain.Errorf(domain.KindInvalidAmount, "amount %s is too small to split by scheme %d", amount.String(), id)
	}
	return plan, nil
}

func checkApplicable(sc *domain.Scheme, amount decimal.Decimal, now time.Time) error {
	if !sc.IsActive || sc.Archived {
		return domain.Errorf(domain.KindInvalidRequest, "scheme %d is not active", sc.ID)
	}
	if now.Before(sc.StartDate) || (sc.EndDate != nil && now.After(*sc.EndDate)) {
		return domain.Errorf(domain.KindInvalidRequest, "scheme %d is outside its validity window", sc.ID)
	}
	if amount.LessThan(sc.MinAmount) {
		return domain.Errorf(domain.KindInvalidAmount, "amount %s is below the scheme minimum %s", amount.String(), sc.MinAmount.String())
	}
	if sc.MaxAmount.IsPositive() && amount.GreaterThan(sc.MaxAmount) {
		return domain.Errorf(domain.KindInvalidAmount, "amount %s is above the scheme maximum %s", amount.String(), sc.MaxAmount.String())
	}
	return nil
}
