package api

import (
	"context"  // Request-scoped context
	"net/http" // HTTP status codes

	"ledger_system/internal/domain" // Entities
	"ledger_system/internal/scheme" // Scheme Allocator

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact money
)

// ApplySchemeRequest distributes amount from an account by a stored scheme
type ApplySchemeRequest struct {
	AccountID uint            `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// ownedScheme loads a scheme the actor may manage: its owner, or any scheme for an administrator
func (s *Services) ownedScheme(ctx context.Context, who domain.Actor, id uint) (*domain.Scheme, error) {
	sc, err := s.Schemes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin() && sc.OwnerID != who.ID {
		return nil, forbidden("scheme %d does not belong to you", id)
	}
	return sc, nil
}

// CreateSchemeHandler stores a new scheme for the actor
func CreateSchemeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		var req scheme.Input
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		sc, err := s.Schemes.Create(c.Request.Context(), who.ID, req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Scheme created", "scheme": sc})
	}
}

// ListSchemesHandler lists the actor's schemes
func ListSchemesHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		schemes, err := s.Schemes.List(c.Request.Context(), who.ID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"schemes": schemes})
	}
}

// GetSchemeHandler returns one scheme
func GetSchemeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		sc, err := s.ownedScheme(c.Request.Context(), who, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"scheme": sc})
	}
}

// UpdateSchemeHandler applies a partial update; the merged scheme is validated again
func UpdateSchemeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req scheme.Patch
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		ctx := c.Request.Context()
		if _, err := s.ownedScheme(ctx, who, id); err != nil {
			s.respondError(c, err)
			return
		}
		sc, err := s.Schemes.Update(ctx, id, req)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Scheme updated", "scheme": sc})
	}
}

// DeleteSchemeHandler removes a scheme and its allocations
func DeleteSchemeHandler(s *Services) gin.HandlerFunc {
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
		if _, err := s.ownedScheme(ctx, who, id); err != nil {
			s.respondError(c, err)
			return
		}
		if err := s.Schemes.Delete(ctx, id); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Scheme deleted"})
	}
}

// ApplySchemeHandler plans a split by the scheme and hands it to Distribute
func ApplySchemeHandler(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := actor(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ApplySchemeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "account_id and amount are required")
			return
		}
		ctx, ok := operationContext(c)
		if !ok {
			return
		}
		if _, err := s.ownedScheme(ctx, who, id); err != nil {
			s.respondError(c, err)
			return
		}
		acc, err := s.ownedAccount(ctx, who, req.AccountID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		plan, err := s.Schemes.Plan(ctx, id, req.Amount)
		if err != nil {
			s.respondError(c, err)
			return
		}
		res, err := s.Ledger.Distribute(ctx, acc.ID, plan)
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.invalidateAccount(ctx, acc, allocationIDs(plan)...)
		c.JSON(http.StatusOK, gin.H{"plan": plan, "result": res})
	}
}
