package tokensale

import (
	"errors"
	"fmt"

	"github.com/xraph/tokensale/types"
)

// Sentinel errors for all caller-facing failure conditions. Every failure
// aborts the whole operation with no partial effect; there is no internal
// retry or recovery.
var (
	// General errors
	ErrUnauthorized = errors.New("tokensale: caller lacks required capability")
	ErrInvalidInput = errors.New("tokensale: invalid input")

	// Ledger errors
	ErrExceededCap        = errors.New("tokensale: issuance would exceed supply cap")
	ErrBatchSizeExceeded  = errors.New("tokensale: batch issuance too large")
	ErrAlreadyWhitelisted = errors.New("tokensale: account already whitelisted")
	ErrNotWhitelisted     = errors.New("tokensale: account not whitelisted")
	ErrTransferProhibited = errors.New("tokensale: transfer prohibited by whitelist")
	ErrInsufficientFunds  = errors.New("tokensale: insufficient ledger balance")

	// Sale errors
	ErrSaleMustNotBeActive = errors.New("tokensale: current sale must not be active")
	ErrIncorrectStartTime  = errors.New("tokensale: sale start time is in the past")
	ErrZeroParam           = errors.New("tokensale: rate and cap must be non-zero")
	ErrBelowMinPurchase    = errors.New("tokensale: amount below minimum purchase")
	ErrSaleNotInitialized  = errors.New("tokensale: no sale round exists")
	ErrSaleNotStarted      = errors.New("tokensale: sale round has not started")
	ErrSaleIsFinalized     = errors.New("tokensale: sale round is finalized")
	ErrMaxCapReached       = errors.New("tokensale: purchase exceeds round cap")
	ErrReentrantCall       = errors.New("tokensale: re-entrant call rejected")
	ErrRoundNotFound       = errors.New("tokensale: sale round not found")

	// Store errors
	ErrStoreClosed = errors.New("tokensale: store is closed")
)

// ExceededCapError carries the figures behind a cap violation.
// It unwraps to ErrExceededCap.
type ExceededCapError struct {
	Cap       types.Amount
	Supply    types.Amount
	Requested types.Amount
}

func (e *ExceededCapError) Error() string {
	return fmt.Sprintf("tokensale: issuing %s at supply %s would exceed cap %s",
		e.Requested, e.Supply, e.Cap)
}

func (e *ExceededCapError) Unwrap() error { return ErrExceededCap }

// BatchSizeError carries the offending batch length.
// It unwraps to ErrBatchSizeExceeded.
type BatchSizeError struct {
	Size int
	Max  int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("tokensale: batch of %d entries exceeds maximum %d", e.Size, e.Max)
}

func (e *BatchSizeError) Unwrap() error { return ErrBatchSizeExceeded }

// BelowMinPurchaseError carries the required minimum and the offered
// amount. It unwraps to ErrBelowMinPurchase.
type BelowMinPurchaseError struct {
	Required types.Amount
	Actual   types.Amount
}

func (e *BelowMinPurchaseError) Error() string {
	return fmt.Sprintf("tokensale: amount %s below minimum purchase %s", e.Actual, e.Required)
}

func (e *BelowMinPurchaseError) Unwrap() error { return ErrBelowMinPurchase }

// IsWhitelistError reports whether the whitelist caused the failure:
// either a membership change that was already in the requested state,
// or a movement the whitelist prohibits.
func IsWhitelistError(err error) bool {
	return errors.Is(err, ErrAlreadyWhitelisted) ||
		errors.Is(err, ErrNotWhitelisted) ||
		errors.Is(err, ErrTransferProhibited)
}

// IsSaleClosed reports whether the error means the round can accept no
// further purchases.
func IsSaleClosed(err error) bool {
	return errors.Is(err, ErrSaleIsFinalized) ||
		errors.Is(err, ErrMaxCapReached)
}

// IsCapError reports whether the error is a supply or round cap violation.
func IsCapError(err error) bool {
	return errors.Is(err, ErrExceededCap) ||
		errors.Is(err, ErrMaxCapReached)
}
