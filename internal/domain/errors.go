package domain

import (
	"errors"
	"fmt"
)

// Kind is a stable, documented failure category returned by every core operation
type Kind string

const (
	KindInvalidAmount           Kind = "InvalidAmount"
	KindInvalidRequest          Kind = "InvalidRequest"
	KindInsufficientFunds       Kind = "InsufficientFunds"
	KindAccountNotFound         Kind = "AccountNotFound"
	KindSubAccountNotFound      Kind = "SubAccountNotFound"
	KindSourceNotFound          Kind = "SourceNotFound"
	KindTargetNotFound          Kind = "TargetNotFound"
	KindAccountClosed           Kind = "AccountClosed"
	KindAccountFrozen           Kind = "AccountFrozen"
	KindUnauthorized            Kind = "Unauthorized"
	KindDuplicatePendingRequest Kind = "DuplicatePendingRequest"
	KindRequestNotPending       Kind = "RequestNotPending"
	KindRequestNotFound         Kind = "RequestNotFound"
	KindNonZeroBalance          Kind = "NonZeroBalance"
	KindAllocationOverflow      Kind = "AllocationOverflow"
	KindSchemeNotFound          Kind = "SchemeNotFound"
	KindConcurrencyConflict     Kind = "ConcurrencyConflict"
	KindStoreUnavailable        Kind = "StoreUnavailable"
)

// Error is a typed failure with a human-readable message
type Error struct {
	Kind    Kind   // Stable category
	Message string // Human-readable detail
	Err     error  // Optional underlying cause
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrInsufficientFunds) ignores the message
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrInvalidAmount           = &Error{Kind: KindInvalidAmount}
	ErrInvalidRequest          = &Error{Kind: KindInvalidRequest}
	ErrInsufficientFunds       = &Error{Kind: KindInsufficientFunds}
	ErrAccountNotFound         = &Error{Kind: KindAccountNotFound}
	ErrSubAccountNotFound      = &Error{Kind: KindSubAccountNotFound}
	ErrSourceNotFound          = &Error{Kind: KindSourceNotFound}
	ErrTargetNotFound          = &Error{Kind: KindTargetNotFound}
	ErrAccountClosed           = &Error{Kind: KindAccountClosed}
	ErrAccountFrozen           = &Error{Kind: KindAccountFrozen}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized}
	ErrDuplicatePendingRequest = &Error{Kind: KindDuplicatePendingRequest}
	ErrRequestNotPending       = &Error{Kind: KindRequestNotPending}
	ErrRequestNotFound         = &Error{Kind: KindRequestNotFound}
	ErrNonZeroBalance          = &Error{Kind: KindNonZeroBalance}
	ErrAllocationOverflow      = &Error{Kind: KindAllocationOverflow}
	ErrSchemeNotFound          = &Error{Kind: KindSchemeNotFound}
	ErrConcurrencyConflict     = &Error{Kind: KindConcurrencyConflict}
	ErrStoreUnavailable        = &Error{Kind: KindStoreUnavailable}
)

// Errorf builds a typed failure of the given kind
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind carried by err, or "" for untyped errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
