package ledger

import (
	"errors"

	"tokenLedger/internal/accrual"
	"tokenLedger/internal/model"
	"tokenLedger/internal/timelock"
)

// MaxAirdropRecipients bounds one registerAirdrop call.
const MaxAirdropRecipients = 50

var (
	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrTooManyRecipients = errors.New("too many airdrop recipients")

	ErrUnauthorized     = errors.New("caller is not the pool authority")
	ErrNotProposer      = errors.New("caller is not the proposer")
	ErrGuardianRequired = errors.New("guardian co-signature required")
	ErrInvalidGuardian  = errors.New("invalid guardian co-signature")

	ErrPaused              = errors.New("pool is paused")
	ErrInsufficientStake   = errors.New("insufficient staked balance")
	ErrNothingToClaim      = errors.New("nothing to claim")
	ErrInsufficientPending = errors.New("insufficient pending lp funds")
	ErrPoolExists          = errors.New("pool already initialized")
	ErrPoolNotFound        = errors.New("pool not initialized")
	ErrVaultExists         = errors.New("lp vault already initialized")
	ErrVaultNotFound       = errors.New("lp vault not initialized")
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrProposalPending     = errors.New("a proposal of this kind is already pending")
	ErrWrongProposalKind   = errors.New("proposal kind does not match operation")

	// ErrTransferFailed wraps every transfer service failure.
	ErrTransferFailed = errors.New("transfer failed")
)

// ErrorClass groups errors for callers and metrics.
type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassAuthorization ErrorClass = "authorization"
	ClassState         ErrorClass = "state"
	ClassGovernance    ErrorClass = "governance"
	ClassTransfer      ErrorClass = "transfer"
	ClassOverflow      ErrorClass = "overflow"
	ClassInternal      ErrorClass = "internal"
)

var classes = []struct {
	class ErrorClass
	errs  []error
}{
	{ClassValidation, []error{ErrZeroAmount, ErrTooManyRecipients, model.ErrInvalidFeeConfig, timelock.ErrInvalidPayload}},
	{ClassAuthorization, []error{ErrUnauthorized, ErrNotProposer, ErrGuardianRequired, ErrInvalidGuardian}},
	{ClassState, []error{
		ErrPaused, ErrInsufficientStake, ErrNothingToClaim, ErrInsufficientPending,
		ErrPoolExists, ErrPoolNotFound, ErrVaultExists, ErrVaultNotFound,
		ErrProposalNotFound, ErrProposalPending, ErrWrongProposalKind,
	}},
	{ClassGovernance, []error{timelock.ErrNotExpired, timelock.ErrAlreadyExecuted, timelock.ErrCancelled}},
	{ClassTransfer, []error{ErrTransferFailed}},
	{ClassOverflow, []error{accrual.ErrOverflow}},
}

// Classify returns the class of err, or "" for nil.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}
	return ClassInternal
}
