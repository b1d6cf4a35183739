package domain

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Registry errors
	CodeInvalidKittyID     Code = "INVALID_KITTY_ID"
	CodeNoPermission       Code = "NO_PERMISSION"
	CodeNoAvailableKittyID Code = "NO_AVAILABLE_KITTY_ID"

	// Breeding errors
	CodeSameGender Code = "SAME_GENDER"

	// Marketplace errors
	CodeNotOwner    Code = "NOT_OWNER"
	CodeBuyFromSelf Code = "BUY_FROM_SELF"
	CodeNotForSale  Code = "NOT_FOR_SALE"
	CodePriceTooLow Code = "PRICE_TOO_LOW"

	// Currency errors
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeKeepAlive           Code = "KEEP_ALIVE"
	CodeExistentialDeposit  Code = "EXISTENTIAL_DEPOSIT"
	CodeBalanceOverflow     Code = "BALANCE_OVERFLOW"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a simple domain error with a code and message.
func NewError(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// CodeOf extracts the code of the first domain error in err's chain.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// Sentinels for errors.Is comparisons. Matching is by code, so errors built
// with extra metadata still match.
var (
	ErrInvalidKittyID      = NewError(CodeInvalidKittyID, "invalid kitty id")
	ErrNoPermission        = NewError(CodeNoPermission, "no permission")
	ErrNoAvailableKittyID  = NewError(CodeNoAvailableKittyID, "no available kitty id")
	ErrSameGender          = NewError(CodeSameGender, "parents have the same gender")
	ErrNotOwner            = NewError(CodeNotOwner, "caller does not own kitty")
	ErrBuyFromSelf         = NewError(CodeBuyFromSelf, "buyer is the owner")
	ErrNotForSale          = NewError(CodeNotForSale, "kitty is not for sale")
	ErrPriceTooLow         = NewError(CodePriceTooLow, "price exceeds buyer maximum")
	ErrInsufficientBalance = NewError(CodeInsufficientBalance, "insufficient balance")
	ErrKeepAlive           = NewError(CodeKeepAlive, "transfer would reap the sender")
	ErrExistentialDeposit  = NewError(CodeExistentialDeposit, "recipient balance below existential deposit")
	ErrBalanceOverflow     = NewError(CodeBalanceOverflow, "balance overflow")
)

// InvalidKittyID reports a kitty that is missing or not owned by owner.
func InvalidKittyID(owner AccountID, id KittyID) *Error {
	return WithMetadata(CodeInvalidKittyID, fmt.Sprintf("kitty %d not found for account %d", id, owner), map[string]string{
		"owner":    fmt.Sprint(owner),
		"kitty_id": fmt.Sprint(id),
	})
}

// NoPermission reports a failed registry ownership check.
func NoPermission(from AccountID, id KittyID) *Error {
	return WithMetadata(CodeNoPermission, fmt.Sprintf("account %d may not transfer kitty %d", from, id), map[string]string{
		"from":     fmt.Sprint(from),
		"kitty_id": fmt.Sprint(id),
	})
}
