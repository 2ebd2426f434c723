package ledger

import "errors"

// Validation errors: rejected input, nothing about ledger state.
var (
	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrZeroAddress       = errors.New("address must not be zero")
	ErrDecimalsTooHigh   = errors.New("asset decimals exceed 18")
	ErrEmptyReceiver     = errors.New("receiver payload must not be empty")
	ErrInvalidNetwork    = errors.New("network id must not be zero")
	ErrInvalidAccount    = errors.New("origin account must not be empty")
	ErrAmountBelowMin    = errors.New("computed amount below caller minimum")
	ErrFeeRateTooHigh    = errors.New("fee rate exceeds maximum")
	ErrDecimalsImmutable = errors.New("asset decimals cannot change once set")
)

// Policy errors: the caller or the configuration forbids the operation.
var (
	ErrPaused                = errors.New("ledger is paused")
	ErrAssetNotAllowed       = errors.New("asset is not allowlisted")
	ErrDestinationNotAllowed = errors.New("destination network or asset is not allowlisted")
	ErrVaultNotAllowed       = errors.New("external vault is not allowlisted")
	ErrNonceMismatch         = errors.New("withdrawal nonce mismatch")
)

// State errors: the operation conflicts with current ledger state.
var (
	ErrRequestNotPending            = errors.New("withdrawal request is not pending")
	ErrRequestNotFound              = errors.New("withdrawal request not found")
	ErrVaultEmpty                   = errors.New("vault has zero managed assets")
	ErrZeroShares                   = errors.New("computed shares are zero")
	ErrReplay                       = errors.New("id already consumed")
	ErrSharesExceedMax              = errors.New("locked shares exceed caller maximum")
	ErrInsufficientUnlockedShares   = errors.New("insufficient unlocked shares")
	ErrManagedAssetsUnderflow       = errors.New("managed assets underflow")
	ErrCustodyUnderflow             = errors.New("custody balance underflow")
	ErrVaultAssetMismatch           = errors.New("external vault reports a different underlying asset")
	ErrVaultPositionEmpty           = errors.New("external vault position is empty")
)
