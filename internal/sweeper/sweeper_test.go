package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger_system/internal/cache"
	"ledger_system/internal/clock"
	"ledger_system/internal/domain"
	"ledger_system/internal/lifecycle"
	"ledger_system/internal/store"
	"ledger_system/internal/store/storetest"
	"ledger_system/internal/sweeper"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func status(t *testing.T, s *store.Store, id uint) domain.AccountStatus {
	t.Helper()
	var a domain.Account
	require.NoError(t, s.DB().Unscoped().First(&a, id).Error)
	return a.Status
}

func TestSweepFreezesOnlyInactiveAccounts(t *testing.T) {
	s := storetest.New(t)
	c := clock.NewFake(epoch)
	m := lifecycle.NewManager(s, c, nil, 0)
	sw := sweeper.New(s, m, c, 0, nil)

	old := storetest.SeedAccount(t, s, 1, "0", epoch.Add(-100*day))
	boundary := storetest.SeedAccount(t, s, 2, "0", epoch.Add(-90*day))
	recent := storetest.SeedAccount(t, s, 3, "0", epoch.Add(-89*day))
	frozen := storetest.SeedAccount(t, s, 4, "0", epoch.Add(-200*day))
	_, err := m.Freeze(context.Background(), frozen.ID)
	require.NoError(t, err)

	res, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 2, res.Frozen)
	assert.Zero(t, res.Failed)
	assert.Equal(t, domain.AccountFrozen, status(t, s, old.ID))
	assert.Equal(t, domain.AccountFrozen, status(t, s, boundary.ID))
	assert.Equal(t, domain.AccountActive, status(t, s, recent.ID))

	// Re-running the same cutoff finds nothing new
	res, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)

	c.Advance(2 * day)
	res, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frozen)
	assert.Equal(t, domain.AccountFrozen, status(t, s, recent.ID))
}

type flakyFreezer struct {
	next    sweeper.Freezer
	failFor uint
	calls   []uint
}

func (f *flakyFreezer) FreezeIfInactive(ctx context.Context, id uint, cutoff time.Time) (bool, error) {
	f.calls = append(f.calls, id)
	if id == f.failFor {
		return false, errors.New("store went away")
	}
	return f.next.FreezeIfInactive(ctx, id, cutoff)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	s := storetest.New(t)
	c := clock.NewFake(epoch)
	a := storetest.SeedAccount(t, s, 1, "0", epoch.Add(-120*day))
	b := storetest.SeedAccount(t, s, 2, "0", epoch.Add(-120*day))
	f := &flakyFreezer{next: lifecycle.NewManager(s, c, nil, 0), failFor: a.ID}

	res, err := sweeper.New(s, f, c, 0, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Frozen)
	assert.Equal(t, []uint{a.ID, b.ID}, f.calls)
	assert.Equal(t, domain.AccountActive, status(t, s, a.ID))
	assert.Equal(t, domain.AccountFrozen, status(t, s, b.ID))
}

func TestSweepStopsWhenCancelled(t *testing.T) {
	s := storetest.New(t)
	c := clock.NewFake(epoch)
	storetest.SeedAccount(t, s, 1, "0", epoch.Add(-120*day))
	f := &flakyFreezer{next: lifecycle.NewManager(s, c, nil, 0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sweeper.New(s, f, c, 0, nil).Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls)
}

func TestCustomThreshold(t *testing.T) {
	s := storetest.New(t)
	c := clock.NewFake(epoch)
	acc := storetest.SeedAccount(t, s, 1, "0", epoch.Add(-8*day))

	res, err := sweeper.New(s, lifecycle.NewManager(s, c, nil, 0), c, 7*day, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frozen)
	assert.True(t, res.Cutoff.Equal(epoch.Add(-7*day)))
	assert.Equal(t, domain.AccountFrozen, status(t, s, acc.ID))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := storetest.New(t)
	c := clock.NewFake(epoch)
	sw := sweeper.New(s, lifecycle.NewManager(s, c, nil, 0), c, 0, nil)

	assert.Error(t, sw.Start("every tuesday"))
	require.NoError(t, sw.Start("0 0 * * *"))
	<-sw.Stop().Done()
}

func TestSweepDropsCachedCopyOfFrozenAccounts(t *testing.T) {
	s := storetest.New(t)
	c := clock.NewFake(epoch)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rc := cache.New(rdb, time.Minute)

	m := lifecycle.NewManager(s, c, nil, 0)
	sw := sweeper.New(s, m, c, 0, nil, sweeper.WithCache(rc))
	idle := storetest.SeedAccount(t, s, 1, "0", epoch.Add(-120*day))
	busy := storetest.SeedAccount(t, s, 2, "0", epoch.Add(-day))

	ctx := context.Background()
	require.NoError(t, rc.Set(ctx, cache.AccountKey(idle.ID), idle))
	require.NoError(t, rc.Set(ctx, cache.AccountKey(busy.ID), busy))

	res, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frozen)
	assert.False(t, mr.Exists(cache.AccountKey(idle.ID)))
	assert.True(t, mr.Exists(cache.AccountKey(busy.ID)))
}
