// Package sweeper freezes accounts that have been inactive for longer than a threshold.
package sweeper

import (
	"context"
	"time"

	"ledger_system/internal/cache"
	"ledger_system/internal/clock"
	"ledger_system/internal/store"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultThreshold is the inactivity period after which an account is frozen
const DefaultThreshold = 90 * 24 * time.Hour

// Freezer applies a single inactivity freeze
type Freezer interface {
	FreezeIfInactive(ctx context.Context, accountID uint, cutoff time.Time) (bool, error)
}

// Result summarizes one sweep
type Result struct {
	Cutoff     time.Time
	Candidates int
	Frozen     int
	Failed     int
}

// Sweeper is the Inactivity Sweeper
type Sweeper struct {
	store     *store.Store
	freezer   Freezer
	clock     clock.Clock
	threshold time.Duration
	log       logrus.FieldLogger
	cache     *cache.Cache
	cron      *cron.Cron
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithCache drops the cached copy of every account the sweep freezes
func WithCache(c *cache.Cache) Option {
	return func(sw *Sweeper) {
		sw.cache = c
	}
}

// New builds a Sweeper. A zero threshold uses DefaultThreshold.
func New(s *store.Store, f Freezer, c clock.Clock, threshold time.Duration, log logrus.FieldLogger, opts ...Option) *Sweeper {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	sw := &Sweeper{
		store:     s,
		freezer:   f,
		clock:     c,
		threshold: threshold,
		log:       log,
		cron:      cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log))), cron.WithLocation(time.UTC)),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// Sweep freezes every Active account with no activity since now minus the threshold. Accounts are
// frozen one at a time; a failure on one account is logged and the sweep moves on. Cancelling ctx
// stops the sweep between accounts, and the next run picks up whatever was left.
func (sw *Sweeper) Sweep(ctx context.Context) (Result, error) {
	res := Result{Cutoff: sw.clock.Now().Add(-sw.threshold)}

	var ids []uint
	err := sw.store.Read(ctx, "inactive_accounts", func(s *store.Store) error {
		var err error
		ids, err = s.InactiveAccountIDs(ctx, res.Cutoff)
		return err
	})
	if err != nil {
		sw.log.WithError(err).Error("Inactivity sweep could not list accounts")
		return res, err
	}
	res.Candidates = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			sw.logResult(res)
			return res, err
		}
		frozen, err := sw.freezer.FreezeIfInactive(ctx, id, res.Cutoff)
		if err != nil {
			res.Failed++
			sw.log.WithFields(logrus.Fields{
				"account_id": id,
				"error":      err.Error(),
			}).Error("Failed to freeze inactive account")
			continue
		}
		if frozen {
			res.Frozen++
			if err := sw.cache.Delete(ctx, cache.AccountKey(id)); err != nil {
				sw.log.WithFields(logrus.Fields{
					"account_id": id,
					"error":      err.Error(),
				}).Warn("Cache invalidation failed")
			}
		}
	}
	sw.logResult(res)
	return res, nil
}

func (sw *Sweeper) logResult(res Result) {
	sw.log.WithFields(logrus.Fields{
		"cutoff":     res.Cutoff.Format(time.RFC3339),
		"candidates": res.Candidates,
		"frozen":     res.Frozen,
		"failed":     res.Failed,
	}).Info("Inactivity sweep finished")
}

// Start schedules Sweep on a cron spec such as "0 0 * * *" and starts the scheduler
func (sw *Sweeper) Start(schedule string) error {
	if _, err := sw.cron.AddFunc(schedule, func() {
		_, _ = sw.Sweep(context.Background())
	}); err != nil {
		return err
	}
	sw.log.WithField("schedule", schedule).Info("Scheduled inactivity sweep")
	sw.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once a running sweep has finished
func (sw *Sweeper) Stop() context.Context {
	return sw.cron.Stop()
}
