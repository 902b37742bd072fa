package scheme_test

import (
	"context"
	"testing"
	"time"

	"ledger_system/internal/clock"
	"ledger_system/internal/domain"
	"ledger_system/internal/scheme"
	"ledger_system/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

func allocs(pairs ...int) []domain.SchemeAllocation {
	out := make([]domain.SchemeAllocation, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.SchemeAllocation{SubAccountID: uint(pairs[i]), Percentage: pairs[i+1]})
	}
	return out
}

func newAllocator(t *testing.T) (*scheme.Allocator, *clock.Fake) {
	t.Helper()
	c := clock.NewFake(epoch)
	return scheme.NewAllocator(storetest.New(t), c, nil), c
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		in    []domain.SchemeAllocation
		total int
		kind  domain.Kind
	}{
		{"fits", allocs(1, 60, 2, 40), 100, ""},
		{"under", allocs(1, 10), 10, ""},
		{"overflow", allocs(1, 60, 2, 50), 0, domain.KindAllocationOverflow},
		{"empty", nil, 0, domain.KindInvalidRequest},
		{"zero percent", allocs(1, 0), 0, domain.KindInvalidRequest},
		{"over 100 percent", allocs(1, 101), 0, domain.KindInvalidRequest},
		{"missing sub-account", allocs(0, 10), 0, domain.KindInvalidRequest},
		{"duplicate sub-account", allocs(1, 10, 1, 20), 0, domain.KindInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total, err := scheme.Validate(tc.in)
			assert.Equal(t, tc.kind, domain.KindOf(err))
			assert.Equal(t, tc.total, total)

			// Same input, same outcome
			again, err2 := scheme.Validate(tc.in)
			assert.Equal(t, total, again)
			assert.Equal(t, domain.KindOf(err), domain.KindOf(err2))
		})
	}
}

func TestCreateRecomputesTotal(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()

	sc, err := a.Create(ctx, 3, scheme.Input{Name: "Monthly", Allocations: allocs(1, 30, 2, 20)})
	require.NoError(t, err)
	assert.Equal(t, 50, sc.TotalPercentage)
	assert.Equal(t, domain.CategoryInvestment, sc.Category)
	assert.True(t, sc.IsActive)
	assert.True(t, sc.StartDate.Equal(epoch))

	got, err := a.Get(ctx, sc.ID)
	require.NoError(t, err)
	require.Len(t, got.Allocations, 2)
	assert.Equal(t, uint(1), got.Allocations[0].SubAccountID)
	assert.Equal(t, 20, got.Allocations[1].Percentage)

	_, err = a.Create(ctx, 3, scheme.Input{Name: "Greedy", Allocations: allocs(1, 60, 2, 50)})
	assert.Equal(t, domain.KindAllocationOverflow, domain.KindOf(err))
	_, err = a.Create(ctx, 3, scheme.Input{Allocations: allocs(1, 10)})
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
	_, err = a.Create(ctx, 3, scheme.Input{Name: "Films", Category: domain.CategoryMovies, Allocations: allocs(1, 10)})
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}

func TestUpdateRevalidatesMergedScheme(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	sc, err := a.Create(ctx, 3, scheme.Input{Name: "Base", Allocations: allocs(1, 70)})
	require.NoError(t, err)

	more := allocs(1, 70, 2, 40)
	_, err = a.Update(ctx, sc.ID, scheme.Patch{Allocations: &more})
	assert.Equal(t, domain.KindAllocationOverflow, domain.KindOf(err))

	got, err := a.Get(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, got.TotalPercentage)
	require.Len(t, got.Allocations, 1)

	fits := allocs(2, 25, 3, 25)
	name := "Renamed"
	updated, err := a.Update(ctx, sc.ID, scheme.Patch{Name: &name, Allocations: &fits})
	require.NoError(t, err)
	assert.Equal(t, 50, updated.TotalPercentage)

	got, err = a.Get(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	require.Len(t, got.Allocations, 2)
	assert.Equal(t, uint(2), got.Allocations[0].SubAccountID)

	_, err = a.Update(ctx, 999, scheme.Patch{Name: &name})
	assert.Equal(t, domain.KindSchemeNotFound, domain.KindOf(err))
}

func TestListAndDelete(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	mine, err := a.Create(ctx, 1, scheme.Input{Name: "Mine", Allocations: allocs(1, 10)})
	require.NoError(t, err)
	_, err = a.Create(ctx, 2, scheme.Input{Name: "Theirs", Allocations: allocs(2, 10)})
	require.NoError(t, err)

	list, err := a.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	all, err := a.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, a.Delete(ctx, mine.ID))
	_, err = a.Get(ctx, mine.ID)
	assert.Equal(t, domain.KindSchemeNotFound, domain.KindOf(err))
	assert.Equal(t, domain.KindSchemeNotFound, domain.KindOf(a.Delete(ctx, mine.ID)))
}

func TestPlan(t *testing.T) {
	a, c := newAllocator(t)
	ctx := context.Background()
	end := epoch.AddDate(0, 1, 0)
	sc, err := a.Create(ctx, 1, scheme.Input{
		Name:        "Split",
		Allocations: allocs(1, 50, 2, 33),
		MinAmount:   decimal.NewFromInt(10),
		MaxAmount:   decimal.NewFromInt(1000),
		EndDate:     &end,
	})
	require.NoError(t, err)

	plan, err := a.Plan(ctx, sc.ID, decimal.RequireFromString("100.01"))
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.True(t, plan[0].Amount.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, plan[1].Amount.Equal(decimal.RequireFromString("33.00")))

	_, err = a.Plan(ctx, sc.ID, decimal.NewFromInt(5))
	assert.Equal(t, domain.KindInvalidAmount, domain.KindOf(err))
	_, err = a.Plan(ctx, sc.ID, decimal.NewFromInt(1001))
	assert.Equal(t, domain.KindInvalidAmount, domain.KindOf(err))

	c.Advance(45 * 24 * time.Hour)
	_, err = a.Plan(ctx, sc.ID, decimal.NewFromInt(100))
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}

func TestPlanRejectsInactiveScheme(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	off := false
	sc, err := a.Create(ctx, 1, scheme.Input{Name: "Paused", Allocations: allocs(1, 50), IsActive: &off})
	require.NoError(t, err)
	assert.False(t, sc.IsActive)

	_, err = a.Plan(ctx, sc.ID, decimal.NewFromInt(100))
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
}
