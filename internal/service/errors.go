package service

import "errors"

// Validation and not-found errors
var (
	ErrValidation      = errors.New("invalid request")
	ErrAuctionNotFound = errors.New("auction not found")
	ErrPointNotFound   = errors.New("point account not found")
)

// Business rule violations
var (
	ErrInvalidAuctionState = errors.New("auction is not open for bidding")
	ErrSellerCannotBid     = errors.New("seller cannot bid on own auction")
	ErrInsufficientPoint   = errors.New("insufficient available points")
	ErrAlreadyClosed       = errors.New("auction already closed")
	ErrCannotCancel        = errors.New("auction cannot be cancelled")
)

// Concurrency conflicts
var (
	ErrStaleBid         = errors.New("bid price is stale")
	ErrAlreadyProcessed = errors.New("ledger entry already processed")
)

// ErrInsufficientDeposit signals a consistency violation: settlement or
// refund found the deposit balance below the recorded bid amount. It
// indicates a bookkeeping bug, not a user error, and is logged distinctly.
var ErrInsufficientDeposit = errors.New("deposit balance below settlement amount")
