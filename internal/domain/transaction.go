package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Exact decimal arithmetic for money
)

// TransactionType classifies a balance-affecting event
type TransactionType string

const (
	TxCredit   TransactionType = "Credit"   // Money in
	TxDebit    TransactionType = "Debit"    // Money out
	TxTransfer TransactionType = "Transfer" // One leg of a sub-account transfer
)

// Operation names the engine call that wrote an atomic group; a reused operation id must name the same call
type Operation string

const (
	OpOpening    Operation = "opening"    // Opening balance at account creation
	OpDeposit    Operation = "deposit"    // Account-level credit
	OpWithdraw   Operation = "withdraw"   // Account-level debit
	OpDistribute Operation = "distribute" // Account debit split into sub-account credits
	OpTransfer   Operation = "transfer"   // Sub-account to sub-account
	OpEntry      Operation = "entry"      // Single-sided sub-account credit or debit
)

// Transaction Model. Rows are append-only and never updated or deleted.
type Transaction struct {
	ID                       uint            `gorm:"primaryKey" json:"id"`                                       // Primary key
	AccountID                uint            `gorm:"index;not null" json:"account_id"`                           // Parent Account
	SubAccountID             *uint           `gorm:"index:idx_tx_sub_created" json:"sub_account_id,omitempty"`   // Nil for account-level events
	CounterpartySubAccountID *uint           `json:"counterparty_sub_account_id,omitempty"`                      // Other side of a transfer
	Type                     TransactionType `gorm:"size:16;not null" json:"type"`                               // Credit, Debit or Transfer
	Amount                   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`                  // Always positive
	Description              string          `gorm:"size:255" json:"description"`                                // Free text
	Operation                Operation       `gorm:"size:16" json:"operation"`                                   // Engine call that wrote the group
	OperationID              string          `gorm:"size:64;not null;uniqueIndex:idx_tx_operation_leg" json:"operation_id"` // Atomic group that wrote it
	Leg                      int             `gorm:"not null;uniqueIndex:idx_tx_operation_leg" json:"leg"`       // Position within the group
	CreatedAt                time.Time       `gorm:"index:idx_tx_sub_created" json:"created_at"`                 // Creation timestamp
}
