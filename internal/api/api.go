// Package api is the request layer: it authenticates actors, parses input, checks that the actor
// may touch the entities named in the request, and maps core failures to HTTP responses.
package api

import (
	"context"  // Request-scoped context
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"ledger_system/internal/cache"      // Read cache
	"ledger_system/internal/domain"     // Entities and error kinds
	"ledger_system/internal/ledger"     // Balance Engine
	"ledger_system/internal/lifecycle"  // Lifecycle Manager
	"ledger_system/internal/middleware" // Actor resolution
	"ledger_system/internal/scheme"     // Scheme Allocator
	"ledger_system/internal/store"      // Pagination

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// IdempotencyHeader carries a client-chosen operation id for money-moving requests
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 64

// Services are the core components the handlers call into
type Services struct {
	Ledger    *ledger.Engine
	Lifecycle *lifecycle.Manager
	Schemes   *scheme.Allocator
	Cache     *cache.Cache
	Log       logrus.FieldLogger
}

func (s *Services) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// statusFor maps an error kind to an HTTP status
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidAmount, domain.KindInvalidRequest, domain.KindInsufficientFunds, domain.KindAllocationOverflow:
		return http.StatusBadRequest
	case domain.KindAccountNotFound, domain.KindSubAccountNotFound, domain.KindSourceNotFound,
		domain.KindTargetNotFound, domain.KindRequestNotFound, domain.KindSchemeNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindAccountClosed:
		return http.StatusGone
	case domain.KindAccountFrozen, domain.KindDuplicatePendingRequest, domain.KindRequestNotPending,
		domain.KindNonZeroBalance, domain.KindConcurrencyConflict:
		return http.StatusConflict
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a typed failure as {"error": kind, "message": text}
func (s *Services) respondError(c *gin.Context, err error) {
	var e *domain.Error
	if !errors.As(err, &e) {
		s.logger().WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error("Unexpected request failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal", "message": "Internal server error"})
		return
	}
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		s.logger().WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"kind":  e.Kind,
			"error": err.Error(),
		}).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": e.Kind, "message": e.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": domain.KindInvalidRequest, "message": msg})
}

// actor returns the authenticated actor or aborts with 401
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.KindUnauthorized, "message": "Unauthorized"})
	}
	return a, ok
}

// idParam parses a positive numeric path parameter or writes 400
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// pageParam reads page and page_size; out-of-range values fall back to defaults
func pageParam(c *gin.Context) store.Page {
	var p store.Page
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		p.Number = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil {
		p.Size = v
	}
	return p.Normalize()
}

// operationContext attaches the Idempotency-Key header, if any, to the request context
func operationContext(c *gin.Context) (context.Context, bool) {
	ctx := c.Request.Context()
	key := c.GetHeader(IdempotencyHeader)
	if key == "" {
		return ctx, true
	}
	if len(key) > maxIdempotencyKeyLen {
		badRequest(c, "Idempotency-Key is too long")
		return nil, false
	}
	return ledger.WithOperationID(ctx, key), true
}

func forbidden(format string, args ...any) error {
	return domain.Errorf(domain.KindUnauthorized, format, args...)
}

// ownedAccount loads an account the actor may act on: its owner, or any account for an administrator
func (s *Services) ownedAccount(ctx context.Context, who domain.Actor, accountID uint) (*domain.Account, error) {
	acc, err := s.Lifecycle.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin() && acc.OwnerID != who.ID {
		return nil, forbidden("account %d does not belong to you", accountID)
	}
	return acc, nil
}

// ownedSubAccount loads a sub-account whose parent account the actor may act on
func (s *Services) ownedSubAccount(ctx context.Context, who domain.Actor, subID uint) (*domain.SubAccount, error) {
	sub, err := s.Lifecycle.SubAccount(ctx, subID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedAccount(ctx, who, sub.AccountID); err != nil {
		if domain.KindOf(err) == domain.KindUnauthorized {
			return nil, forbidden("sub-account %d does not belong to you", subID)
		}
		return nil, err
	}
	return sub, nil
}

// invalidateAccount drops every cached read that includes the account or its sub-accounts
func (s *Services) invalidateAccount(ctx context.Context, acc *domain.Account, subIDs ...uint) {
	keys := []string{cache.AccountKey(acc.ID), cache.OwnerAccountKey(acc.OwnerID), cache.SubAccountsKey(acc.ID)}
	for _, id := range subIDs {
		keys = append(keys, cache.SubAccountKey(id))
	}
	if err := s.Cache.Delete(ctx, keys...); err != nil {
		s.logger().WithFields(logrus.Fields{
			"account_id": acc.ID,
			"error":      err.Error(),
		}).Warn("Cache invalidation failed")
	}
}

// cached serves key from the cache, or loads it and fills the cache. It reports whether the value
// came from the cache.
func cached[T any](ctx context.Context, s *Services, key string, load func() (T, error)) (T, bool, error) {
	var v T
	hit, err := s.Cache.Get(ctx, key, &v)
	if err != nil {
		s.logger().WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache read failed")
	}
	if hit {
		return v, true, nil
	}
	v, err = load()
	if err != nil {
		return v, false, err
	}
	if err := s.Cache.Set(ctx, key, v); err != nil {
		s.logger().WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}
	return v, false, nil
}
