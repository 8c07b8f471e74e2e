package transfer

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("transfer not authorized")
	ErrDecimalsMismatch    = errors.New("token decimals mismatch")
	ErrUnknownMint         = errors.New("unknown token mint")
	ErrZeroAmount          = errors.New("transfer amount must be greater than zero")
)

// Authority is whoever vouches for moving funds out of an account: the
// holder's own signature, or a custody capability for pool-owned accounts.
type Authority interface {
	Signer() common.Address
}

type signature common.Address

func (s signature) Signer() common.Address { return common.Address(s) }

// SignedBy is the authority of a holder moving its own funds.
func SignedBy(holder common.Address) Authority {
	return signature(holder)
}

// Transfer moves Amount of Mint between two accounts. Decimals must match the
// mint's decimals, mirroring a checked token transfer.
type Transfer struct {
	Mint      common.Address
	From      common.Address
	To        common.Address
	Amount    uint64
	Decimals  uint8
	Authority Authority
}

// Burn destroys Amount of Mint held by Account.
type Burn struct {
	Mint      common.Address
	Account   common.Address
	Amount    uint64
	Authority Authority
}

// Service performs value movement on behalf of the ledger. Any error means
// nothing moved.
type Service interface {
	MoveValue(ctx context.Context, t Transfer) error
	Destroy(ctx context.Context, b Burn) error
	Decimals(ctx context.Context, mint common.Address) (uint8, error)
}
