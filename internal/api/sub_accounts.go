package api

import (
	"net/http" // HTTP status codes

	"ledger_system/internal/cache"     // Cache keys
	"ledger_system/internal/domain"    // Entities
	"ledger_system/internal/lifecycle" // Sub-account administration

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact money
	"github.com/sirupsen/logrus"    // Logging library
)

// TransferRequest moves money from the sub-account in the path to another sub-account
type TransferRequest struct {
	TargetSubAccountID uint            `json:"target_sub_account_id" binding:"required"` // Receiving sub-account, any owner
	Amount             decimal.Decimal `json:"amount"`                                   // Transfer amount
	Description        string          `json:"description"`                              // Optional note on both legs
}

// EntryRequest records a single-sided Credit or Debit
type EntryRequest struct {
	Type        domain.TransactionType `json:"type" binding:"required"` // Credit or Debit
	Amount      decimal.Decimal        `json:"amount"`                  // Entry amount
	Description string                 `json:"description"`             // Free text
}

// CreateSubAccountHandler adds a sub-account under an account
func CreateSubAccountHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req lifecycle.NewSubAccount
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Name is required")
			return
		}
		ctx := c.Request.Context()
		acc, err := s.ownedAccount(ctx, who, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		sub, err := s.Lifecycle.CreateSubAccount(ctx, acc.ID, req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateAccount(ctx, acc)
		c.JSON(http.StatusCreated, gin.H{"message": "Sub-account created", "sub_account": sub})
	}
}

// ListSubAccountsHandler lists the sub-accounts of an account
func ListSubAccountsHandler(s *Services) gin.HandlerFunc {
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
		subs, hit, err := cached(ctx, s, cache.SubAccountsKey(id), func() ([]domain.SubAccount, error) {
			return s.Lifecycle.SubAccounts(ctx, id)
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sub_accounts": subs, "cached": hit})
	}
}

// GetSubAccountHandler returns one sub-account
func GetSubAccountHandler(s *Services) gin.HandlerFunc {
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
		sub, hit, err := cached(ctx, s, cache.SubAccountKey(id), func() (*domain.SubAccount, error) {
			return s.ownedSubAccount(ctx, who, id)
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		if hit {
			// Cached copies were filled by someone else; check ownership again
			if _, err := s.ownedAccount(ctx, who, sub.AccountID); err != nil {
				s.respondError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"sub_account": sub, "cached": hit})
	}
}

// UpdateSubAccountHandler changes name, category or the active flag
func UpdateSubAccountHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req lifecycle.SubAccountUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		ctx := c.Request.Context()
		sub, err := s.ownedSubAccount(ctx, who, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		updated, err := s.Lifecycle.UpdateSubAccount(ctx, sub.ID, req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateSubAccounts(c, sub.AccountID, sub.ID)
		c.JSON(http.StatusOK, gin.H{"message": "Sub-account updated", "sub_account": updated})
	}
}

// DeleteSubAccountHandler deletes a sub-account; owners need a zero balance, administrators do not
func DeleteSubAccountHandler(s *Services) gin.HandlerFunc {
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
		sub, err := s.ownedSubAccount(ctx, who, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if err := s.Lifecycle.DeleteSubAccount(ctx, who, sub.ID); err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateSubAccounts(c, sub.AccountID, sub.ID)
		c.JSON(http.StatusOK, gin.H{"message": "Sub-account deleted"})
	}
}

// TransferHandler moves money out of a sub-account the actor owns into any other sub-account
func TransferHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req TransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		ctx, ok := operationContext(c)
		if !ok {
			return
		}
		src, err := s.ownedSubAccount(ctx, who, id)
		if err != nil {
			if domain.KindOf(err) == domain.KindSubAccountNotFound {
				err = domain.Errorf(domain.KindSourceNotFound, "source sub-account %d not found", id)
			}
			s.respondError(c, err)
			return
		}
		res, err := s.Ledger.Transfer(ctx, src.ID, req.TargetSubAccountID, req.Amount, req.Description)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateSubAccounts(c, res.Source.AccountID, res.Source.ID)
		s.invalidateSubAccounts(c, res.Target.AccountID, res.Target.ID)
		c.JSON(http.StatusOK, res)
	}
}

// EntryHandler records a Credit or Debit against a sub-account
func EntryHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req EntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Type and amount are required")
			return
		}
		ctx, ok := operationContext(c)
		if !ok {
			return
		}
		sub, err := s.ownedSubAccount(ctx, who, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		res, err := s.Ledger.RecordCreditOrDebit(ctx, sub.ID, req.Type, req.Amount, req.Description)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateSubAccounts(c, sub.AccountID, sub.ID)
		c.JSON(http.StatusOK, res)
	}
}

// SubAccountTransactionsHandler pages through a sub-account's history, newest first
func SubAccountTransactionsHandler(s *Services) gin.HandlerFunc {
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
		if _, err := s.ownedSubAccount(ctx, who, id); err != nil {
			s.respondError(c, err)
			return
		}
		h, err := s.Ledger.SubAccountHistory(ctx, id, pageParam(c))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// invalidateSubAccounts drops cached sub-account reads and the parent account, whose last activity moved.
// The owner's /accounts/me read goes through the account key, so it is refreshed as well.
func (s *Services) invalidateSubAccounts(c *gin.Context, accountID uint, subIDs ...uint) {
	keys := []string{cache.AccountKey(accountID), cache.SubAccountsKey(accountID)}
	for _, id := range subIDs {
		keys = append(keys, cache.SubAccountKey(id))
	}
	if err := s.Cache.Delete(c.Request.Context(), keys...); err != nil {
		s.logger().WithFields(logrus.Fields{
			"account_id": accountID,
			"error":      err.Error(),
		}).Warn("Cache invalidation failed")
	}
}
