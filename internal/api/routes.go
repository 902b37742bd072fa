package api

import (
	"net/http" // HTTP status codes

	"ledger_system/internal/middleware" // Authentication and role checks

	"github.com/gin-gonic/gin" // Gin web framework
)

// RegisterRoutes mounts every ledger endpoint on r. All groups require a bearer token; /admin also
// requires the administrator role.
func RegisterRoutes(r *gin.Engine, s *Services, secret string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.JWTAuthMiddleware(secret)

	// Account routes
	accounts := r.Group("/accounts", auth)
	accounts.GET("/me", MyAccountHandler(s))                          // Own account
	accounts.GET("/:id", GetAccountHandler(s))                        // One account
	accounts.POST("/:id/deposit", DepositHandler(s))                  // Deposit
	accounts.POST("/:id/withdraw", WithdrawHandler(s))                // Withdrawal
	accounts.POST("/:id/distribute", DistributeHandler(s))            // Split into sub-accounts
	accounts.GET("/:id/transactions", AccountTransactionsHandler(s))  // Audit trail
	accounts.POST("/:id/deletion-request", RequestDeletionHandler(s)) // Ask for deletion
	accounts.POST("/:id/subaccounts", CreateSubAccountHandler(s))     // Create sub-account
	accounts.GET("/:id/subaccounts", ListSubAccountsHandler(s))       // List sub-accounts

	// Sub-account routes
	subs := r.Group("/subaccounts", auth)
	subs.GET("/:id", GetSubAccountHandler(s))                       // One sub-account
	subs.PATCH("/:id", UpdateSubAccountHandler(s))                  // Update metadata
	subs.DELETE("/:id", DeleteSubAccountHandler(s))                 // Delete
	subs.POST("/:id/transfer", TransferHandler(s))                  // Transfer to another sub-account
	subs.POST("/:id/entries", EntryHandler(s))                      // Credit or Debit
	subs.GET("/:id/transactions", SubAccountTransactionsHandler(s)) // History

	// Scheme routes
	schemes := r.Group("/schemes", auth)
	schemes.POST("", CreateSchemeHandler(s))          // Create scheme
	schemes.GET("", ListSchemesHandler(s))            // List own schemes
	schemes.GET("/:id", GetSchemeHandler(s))          // One scheme
	schemes.PATCH("/:id", UpdateSchemeHandler(s))     // Partial update
	schemes.DELETE("/:id", DeleteSchemeHandler(s))    // Delete
	schemes.POST("/:id/apply", ApplySchemeHandler(s)) // Distribute by scheme

	// Admin routes (protected, admin only)
	admin := r.Group("/admin", auth, middleware.AdminOnlyMiddleware())
	admin.POST("/accounts", CreateAccountHandler(s))                        // Open an account
	admin.GET("/accounts", ListAccountsHandler(s))                          // List accounts
	admin.POST("/accounts/:id/freeze", FreezeAccountHandler(s))             // Freeze
	admin.POST("/accounts/:id/unfreeze", UnfreezeAccountHandler(s))         // Unfreeze
	admin.GET("/deletion-requests", ListDeletionRequestsHandler(s))         // Review queue
	admin.POST("/deletion-requests/:id/approve", ApproveDeletionHandler(s)) // Approve
	admin.POST("/deletion-requests/:id/reject", RejectDeletionHandler(s))   // Reject
	admin.GET("/transactions", ListTransactionsHandler(s))                  // Search all transactions
}
