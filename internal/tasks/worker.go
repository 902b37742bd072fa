// Package tasks runs durable deferred tasks once they fall due.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger_system/internal/clock"
	"ledger_system/internal/domain"
	"ledger_system/internal/notify"
	"ledger_system/internal/store"

	"github.com/sirupsen/logrus"
)

const (
	defaultBatchSize       = 50
	defaultPollInterval    = 5 * time.Second
	defaultStaleProcessing = 2 * time.Minute
	defaultMaxAttempts     = 8
	maxRetryDelay          = 300 * time.Second
)

// errUnknownKind marks a task no handler can ever run
var errUnknownKind = errors.New("unknown task kind")

// Worker claims due tasks and dispatches them. Dispatch happens outside any store transaction, so a
// slow broker never holds a row lock.
type Worker struct {
	store        *store.Store
	notifier     notify.Notifier
	clock        clock.Clock
	log          logrus.FieldLogger
	batchSize    int
	pollInterval time.Duration
	staleAfter   time.Duration
	maxAttempts  int
}

// Option configures a Worker
type Option func(*Worker)

// WithBatchSize bounds how many tasks one poll claims
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithPollInterval sets the delay between polls
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithMaxAttempts sets how many failed dispatches a task gets before it is marked failed
func WithMaxAttempts(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// NewWorker builds a Worker
func NewWorker(s *store.Store, n notify.Notifier, c clock.Clock, log logrus.FieldLogger, opts ...Option) *Worker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	w := &Worker{
		store:        s,
		notifier:     n,
		clock:        c,
		log:          log,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
		staleAfter:   defaultStaleProcessing,
		maxAttempts:  defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.log.WithField("poll_interval", w.pollInterval.String()).Info("Deferred task worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Deferred task worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.log.WithError(err).Error("Deferred task poll failed")
			}
		}
	}
}

// RunOnce claims one batch of due tasks and dispatches each. It returns how many tasks completed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.clock.Now()
	var claimed []domain.DeferredTask
	err := w.store.Atomic(ctx, "claim_tasks", func(tx *store.Store) error {
		var err error
		claimed, err = tx.ClaimDueTasks(ctx, now, now.Add(-w.staleAfter), w.batchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	done := 0
	for _, task := range claimed {
		if err := ctx.Err(); err != nil {
			// Unprocessed claims go stale and are picked up again
			return done, err
		}
		if w.process(ctx, task) {
			done++
		}
	}
	return done, nil
}

func (w *Worker) process(ctx context.Context, task domain.DeferredTask) bool {
	fields := logrus.Fields{
		"task_id": task.ID,
		"kind":    task.Kind,
		"attempt": task.Attempts + 1,
	}

	dispatchErr := w.dispatch(ctx, task)
	err := w.store.Atomic(ctx, "settle_task", func(tx *store.Store) error {
		if dispatchErr == nil {
			return tx.MarkTaskDone(ctx, task.ID)
		}
		attempts := task.Attempts + 1
		if errors.Is(dispatchErr, errUnknownKind) || attempts >= w.maxAttempts {
			return tx.FailTask(ctx, task.ID, dispatchErr.Error())
		}
		return tx.RescheduleTask(ctx, task.ID, w.clock.Now().Add(retryDelay(attempts)), dispatchErr.Error())
	})
	if err != nil {
		fields["error"] = err.Error()
		w.log.WithFields(fields).Error("Failed to record task outcome")
		return false
	}

	if dispatchErr != nil {
		fields["error"] = dispatchErr.Error()
		w.log.WithFields(fields).Warn("Deferred task failed")
		return false
	}
	w.log.WithFields(fields).Info("Deferred task dispatched")
	return true
}

func (w *Worker) dispatch(ctx context.Context, task domain.DeferredTask) error {
	switch task.Kind {
	case domain.TaskKindNotification:
		var n domain.Notification
		if err := json.Unmarshal(task.Payload, &n); err != nil {
			return fmt.Errorf("%w: bad notification payload: %v", errUnknownKind, err)
		}
		return w.notifier.Notify(ctx, n)
	default:
		return fmt.Errorf("%w %q", errUnknownKind, task.Kind)
	}
}

// retryDelay doubles per attempt and is capped at five minutes
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return time.Second
	}
	delay := time.Duration(1<<min(attempt, 9)) * time.Second
	return min(delay, maxRetryDelay)
}
