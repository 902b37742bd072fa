package api

import (
	"context"  // Request-scoped context
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Date parsing

	"ledger_system/internal/domain"    // Entities
	"ledger_system/internal/lifecycle" // Account administration
	"ledger_system/internal/store"     // Listing filters

	"github.com/gin-gonic/gin" // Gin web framework
)

// listResponse is the shape of every paged admin listing
func listResponse(name string, items any, page store.Page, total int64) gin.H {
	return gin.H{
		name:          items,
		"page":        page.Number,
		"page_size":   page.Size,
		"total":       total,
		"total_pages": page.TotalPages(total),
	}
}

// CreateAccountHandler opens the single account of an owner
func CreateAccountHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req lifecycle.NewAccount // Request payload
		// Bind JSON input to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "owner_id is required")
			return
		}
		acc, err := s.Lifecycle.CreateAccount(c.Request.Context(), req)
		if err != nil {
			s.respondError(c, err) // Duplicate owners and bad amounts map to their kinds
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Account created", "account": acc})
	}
}

// ListAccountsHandler returns every live account, paged
func ListAccountsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageParam(c) // Page and page size from the query
		accounts, total, err := s.Lifecycle.Accounts(c.Request.Context(), page)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, listResponse("accounts", accounts, page, total))
	}
}

// FreezeAccountHandler blocks outgoing money on an Active account
func FreezeAccountHandler(s *Services) gin.HandlerFunc {
	return accountTransition(s, (*lifecycle.Manager).Freeze, "Account frozen")
}

// UnfreezeAccountHandler returns a Frozen account to Active
func UnfreezeAccountHandler(s *Services) gin.HandlerFunc {
	return accountTransition(s, (*lifecycle.Manager).Unfreeze, "Account unfrozen")
}

func accountTransition(s *Services, move func(*lifecycle.Manager, context.Context, uint) (*domain.Account, error), msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Account ID from the path
		if !ok {
			return
		}
		ctx := c.Request.Context()
		acc, err := move(s.Lifecycle, ctx, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateAccount(ctx, acc) // Cached copies carry the old status
		c.JSON(http.StatusOK, gin.H{"message": msg, "account": acc})
	}
}

// ListDeletionRequestsHandler lists deletion requests, optionally filtered by ?status=
func ListDeletionRequestsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := domain.DeletionStatus(c.Query("status")) // Empty lists every request
		switch status {
		case "", domain.DeletionPending, domain.DeletionDeleted, domain.DeletionRejected:
		default:
			badRequest(c, "status must be Pending, Deleted or Rejected")
			return
		}
		page := pageParam(c)
		reqs, total, err := s.Lifecycle.DeletionRequests(c.Request.Context(), status, page)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, listResponse("requests", reqs, page, total))
	}
}

// ApproveDeletionHandler closes the account behind a Pending request
func ApproveDeletionHandler(s *Services) gin.HandlerFunc {
	return deletionDecision(s, (*lifecycle.Manager).ApproveDeletion, "Deletion approved")
}

// RejectDeletionHandler rejects a Pending request and notifies the owner
func RejectDeletionHandler(s *Services) gin.HandlerFunc {
	return deletionDecision(s, (*lifecycle.Manager).RejectDeletion, "Deletion rejected")
}

func deletionDecision(s *Services, decide func(*lifecycle.Manager, context.Context, uint) (*domain.DeletionRequest, error), msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id") // Request ID from the path
		if !ok {
			return
		}
		ctx := c.Request.Context()
		req, err := decide(s.Lifecycle, ctx, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		// Approval soft-deletes the account; drop anything still serving it
		s.invalidateAccount(ctx, &domain.Account{ID: req.AccountID, OwnerID: req.OwnerID})
		c.JSON(http.StatusOK, gin.H{"message": msg, "request": req})
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering by account, type, or date
func ListTransactionsHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f store.TransactionFilter // Filters from the query
		if c.Query("account_id") != "" {
			id, ok := queryID(c, "account_id")
			if !ok {
				return
			}
			f.AccountID = id // Filter by account
		}
		switch t := domain.TransactionType(c.Query("type")); t {
		case "", domain.TxCredit, domain.TxDebit, domain.TxTransfer:
			f.Type = t // Filter by transaction type
		default:
			badRequest(c, "type must be Credit, Debit or Transfer")
			return
		}
		var ok bool
		if f.From, ok = queryTime(c, "from"); !ok {
			return
		}
		if f.To, ok = queryTime(c, "to"); !ok {
			return
		}
		h, err := s.Ledger.Transactions(c.Request.Context(), f, pageParam(c))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// queryID parses a positive numeric query parameter or writes 400
func queryID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || v == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// queryTime accepts RFC 3339 timestamps or plain dates, read as midnight UTC
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true // Not filtered
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	badRequest(c, "invalid "+name+", expected RFC 3339 or YYYY-MM-DD")
	return nil, false
}
