package ledger

import (
	"context"

	"ledger_system/internal/domain"
	"ledger_system/internal/store"
)

// History is one page of audit records, newest first
type History struct {
	Transactions []domain.Transaction `json:"transactions"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	Total        int64                `json:"total"`
	TotalPages   int                  `json:"total_pages"`
}

// SubAccountHistory pages through the records that touched a sub-account
func (e *Engine) SubAccountHistory(ctx context.Context, subAccountID uint, page store.Page) (*History, error) {
	return e.history(ctx, page, func(s *store.Store, p store.Page) ([]domain.Transaction, int64, error) {
		return s.TransactionsBySubAccount(ctx, subAccountID, p)
	})
}

// AccountHistory pages through every record under an account, sub-account legs included
func (e *Engine) AccountHistory(ctx context.Context, accountID uint, page store.Page) (*History, error) {
	return e.history(ctx, page, func(s *store.Store, p store.Page) ([]domain.Transaction, int64, error) {
		return s.TransactionsByAccount(ctx, accountID, p)
	})
}

// Transactions searches every record for an administrator
func (e *Engine) Transactions(ctx context.Context, f store.TransactionFilter, page store.Page) (*History, error) {
	return e.history(ctx, page, func(s *store.Store, p store.Page) ([]domain.Transaction, int64, error) {
		return s.ListTransactions(ctx, f, p)
	})
}

func (e *Engine) history(ctx context.Context, page store.Page, list func(*store.Store, store.Page) ([]domain.Transaction, int64, error)) (*History, error) {
	page = page.Normalize()
	h := &History{Page: page.Number, PageSize: page.Size}
	err := e.store.Read(ctx, "history", func(s *store.Store) error {
		var err error
		h.Transactions, h.Total, err = list(s, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	if h.Transactions == nil {
		h.Transactions = []domain.Transaction{}
	}
	h.TotalPages = page.TotalPages(h.Total)
	return h, nil
}
