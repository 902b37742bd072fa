package api

import (
	"context"  // Request-scoped context
	"net/http" // HTTP status codes

	"ledger_system/internal/cache"  // Cache keys
	"ledger_system/internal/domain" // Entities
	"ledger_system/internal/ledger" // Balance Engine

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact money
)

// AmountRequest carries a single amount
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"` // Positive, at most 4 decimal places
}

// DistributeRequest lists explicit sub-account credits
type DistributeRequest struct {
	Allocations []ledger.Allocation `json:"allocations" binding:"required"`
}

// MyAccountHandler returns the authenticated owner's account. The owner key only maps to the account
// id, so every write that drops the account key also refreshes this read.
func MyAccountHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		id, _, err := cached(ctx, s, cache.OwnerAccountKey(who.ID), func() (uint, error) {
			acc, err := s.Lifecycle.AccountByOwner(ctx, who.ID)
			if err != nil {
				return 0, err
			}
			return acc.ID, nil
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		acc, hit, err := cached(ctx, s, cache.AccountKey(id), func() (*domain.Account, error) {
			return s.Lifecycle.Account(ctx, id)
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account": acc, "cached": hit})
	}
}

// GetAccountHandler returns one account; owners only see their own
func GetAccountHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		acc, hit, err := cached(ctx, s, cache.AccountKey(id), func() (*domain.Account, error) {
			return s.Lifecycle.Account(ctx, id)
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		if !who.IsAdmin() && acc.OwnerID != who.ID {
			s.respondError(c, forbidden("account %d does not belong to you", id))
			return
		}
		c.JSON(http.StatusOK, gin.H{"account": acc, "cached": hit})
	}
}

// DepositHandler credits an account
func DepositHandler(s *Services) gin.HandlerFunc {
	return accountMovement(s, s.Ledger.Deposit)
}

// WithdrawHandler debits an account
func WithdrawHandler(s *Services) gin.HandlerFunc {
	return accountMovement(s, s.Ledger.Withdraw)
}

type movement func(ctx context.Context, accountID uint, amount decimal.Decimal) (*ledger.AccountResult, error)

func accountMovement(s *Services, move movement) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req AmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid amount")
			return
		}
		ctx, ok := operationContext(c)
		if !ok {
			return
		}
		acc, err := s.ownedAccount(ctx, who, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		res, err := move(ctx, acc.ID, req.Amount)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateAccount(ctx, acc)
		c.JSON(http.StatusOK, res)
	}
}

// DistributeHandler moves money from an account into its sub-accounts, all or nothing
func DistributeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req DistributeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Allocations array is required")
			return
		}
		ctx, ok := operationContext(c)
		if !ok {
			return
		}
		acc, err := s.ownedAccount(ctx, who, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		res, err := s.Ledger.Distribute(ctx, acc.ID, req.Allocations)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateAccount(ctx, acc, allocationIDs(req.Allocations)...)
		c.JSON(http.StatusOK, res)
	}
}

// AccountTransactionsHandler pages through an account's audit trail
func AccountTransactionsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if _, err := s.ownedAccount(ctx, who, id); err != nil {
			s.respondError(c, err)
			return
		}
		h, err := s.Ledger.AccountHistory(ctx, id, pageParam(c))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// RequestDeletionHandler lets an owner ask for their account to be deleted
func RequestDeletionHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		acc, err := s.ownedAccount(ctx, who, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		req, err := s.Lifecycle.RequestDeletion(ctx, acc.ID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Deletion request submitted", "request": req})
	}
}

func allocationIDs(allocations []ledger.Allocation) []uint {
	ids := make([]uint, len(allocations))
	for i, a := range allocations {
		ids[i] = a.SubAccountID
	}
	return ids
}
