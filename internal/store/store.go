package store

import (
	"context" // Context propagation into gorm
	"time"    // Backoff intervals

	"ledger_system/internal/domain" // Error taxonomy

	"github.com/cenkalti/backoff/v5" // Bounded retry of transient failures
	"github.com/sirupsen/logrus"     // Logging
	"go.opentelemetry.io/otel"       // Tracing
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Row locking
)

var tracer = otel.Tracer("ledger_system/store")

// Store is the Ledger Store: keyed access to every ledger entity plus an atomic group primitive.
// A Store returned to an Atomic callback is bound to that transaction.
type Store struct {
	db         *gorm.DB
	maxTries   uint
	newBackOff func() backoff.BackOff
	log        logrus.FieldLogger
	inTx       bool
}

// Option configures a Store
type Option func(*Store)

// WithMaxTries bounds the attempts for one atomic group or read
func WithMaxTries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTries = uint(n)
		}
	}
}

// WithBackOff replaces the delay policy between attempts
func WithBackOff(f func() backoff.BackOff) Option {
	return func(s *Store) { s.newBackOff = f }
}

// WithLogger sets the logger used for retry warnings
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// New wraps a gorm handle
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:       db,
		maxTries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle for migrations and tests
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) withTx(tx *gorm.DB) *Store {
	c := *s
	c.db = tx
	c.inTx = true
	return &c
}

// conn returns the handle bound to ctx; inside an atomic group reads take row locks
func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) locking(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if s.inTx {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"}) // No-op on engines without row locks
	}
	return db
}

// Atomic runs fn as one store transaction. Transient failures roll back and the whole group is retried
// up to the configured number of tries; typed failures returned by fn roll back and surface unchanged.
// Anything else surfaces as StoreUnavailable or ConcurrencyConflict. Nested calls join the outer group.
func (s *Store) Atomic(ctx context.Context, name string, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	ctx, span := tracer.Start(ctx, "store.atomic."+name)
	defer span.End()

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(s.withTx(tx))
		})
		if err == nil {
			return struct{}{}, nil
		}
		if transientKind(err) == "" {
			return struct{}{}, backoff.Permanent(err)
		}
		s.log.WithFields(logrus.Fields{
			"operation": name,     // Atomic group name
			"attempt":   attempts, // Attempt number
			"error":     err.Error(),
		}).Warn("Transient store failure, group rolled back")
		return struct{}{}, err
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.maxTries))

	span.SetAttributes(attribute.Int("store.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return surface(name, err)
}

// Read runs an idempotent read with the same bounded retry as Atomic, outside any transaction
func (s *Store) Read(ctx context.Context, name string, fn func(s *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(s)
		if err == nil {
			return struct{}{}, nil
		}
		if transientKind(err) == "" {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.maxTries))
	return surface(name, err)
}

// surface turns whatever the store produced into a typed failure
func surface(name string, err error) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}
	if kind := transientKind(err); kind != "" {
		return &domain.Error{Kind: kind, Message: name + " not applied after retries", Err: err}
	}
	return &domain.Error{Kind: domain.KindStoreUnavailable, Message: name + " not applied", Err: err}
}
