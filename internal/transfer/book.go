package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokenLedger/internal/accrual"
	"tokenLedger/internal/custody"
)

// Book is an in-process token balance book. It backs local runs and tests
// where no chain is available.
type Book struct {
	mu       sync.Mutex
	verifier *custody.Verifier
	logger   *zap.Logger
	state    BookState
}

// BookState is the serializable content of a Book.
type BookState struct {
	Decimals map[common.Address]uint8                       `json:"decimals"`
	Balances map[common.Address]map[common.Address]uint64 `json:"balances"`
	Supply   map[common.Address]uint64                      `json:"supply"`
}

func newBookState() BookState {
	return BookState{
		Decimals: make(map[common.Address]uint8),
		Balances: make(map[common.Address]map[common.Address]uint64),
		Supply:   make(map[common.Address]uint64),
	}
}

// NewBook builds an empty Book. Outflows from custody accounts are checked
// against verifier.
func NewBook(verifier *custody.Verifier, logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{verifier: verifier, logger: logger, state: newBookState()}
}

// RegisterMint declares a token and its decimals.
func (b *Book) RegisterMint(mint common.Address, decimals uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Decimals[mint] = decimals
}

// Mint credits newly issued tokens to account.
func (b *Book) Mint(mint, account common.Address, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.state.Decimals[mint]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMint, mint.Hex())
	}
	supply, err := accrual.Add(b.state.Supply[mint], amount)
	if err != nil {
		return fmt.Errorf("mint supply: %w", err)
	}
	bal, err := accrual.Add(b.balance(mint, account), amount)
	if err != nil {
		return fmt.Errorf("mint balance: %w", err)
	}
	b.state.Supply[mint] = supply
	b.setBalance(mint, account, bal)
	return nil
}

// Balance returns account's holdings of mint.
func (b *Book) Balance(mint, account common.Address) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(mint, account)
}

// Supply returns the outstanding supply of mint.
func (b *Book) Supply(mint common.Address) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Supply[mint]
}

func (b *Book) Decimals(_ context.Context, mint common.Address) (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.state.Decimals[mint]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMint, mint.Hex())
	}
	return d, nil
}

func (b *Book) MoveValue(_ context.Context, t Transfer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.Amount == 0 {
		return ErrZeroAmount
	}
	d, ok := b.state.Decimals[t.Mint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMint, t.Mint.Hex())
	}
	if d != t.Decimals {
		return fmt.Errorf("%w: mint has %d, transfer has %d", ErrDecimalsMismatch, d, t.Decimals)
	}
	if err := b.authorize(t.Mint, t.From, t.Authority); err != nil {
		return err
	}

	fromBal := b.balance(t.Mint, t.From)
	if fromBal < t.Amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, t.From.Hex(), fromBal, t.Amount)
	}
	toBal, err := accrual.Add(b.balance(t.Mint, t.To), t.Amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", t.To.Hex(), err)
	}
	b.setBalance(t.Mint, t.From, fromBal-t.Amount)
	b.setBalance(t.Mint, t.To, toBal)

	b.logger.Debug("book transfer",
		zap.String("mint", t.Mint.Hex()),
		zap.String("from", t.From.Hex()),
		zap.String("to", t.To.Hex()),
		zap.Uint64("amount", t.Amount),
	)
	return nil
}

func (b *Book) Destroy(_ context.Context, burn Burn) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if burn.Amount == 0 {
		return ErrZeroAmount
	}
	if _, ok := b.state.Decimals[burn.Mint]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMint, burn.Mint.Hex())
	}
	if err := b.authorize(burn.Mint, burn.Account, burn.Authority); err != nil {
		return err
	}
	bal := b.balance(burn.Mint, burn.Account)
	if bal < burn.Amount {
		return fmt.Errorf("%w: %s holds %d, burning %d", ErrInsufficientBalance, burn.Account.Hex(), bal, burn.Amount)
	}
	b.setBalance(burn.Mint, burn.Account, bal-burn.Amount)
	b.state.Supply[burn.Mint] = accrual.SaturatingSub(b.state.Supply[burn.Mint], burn.Amount)
	return nil
}

// Snapshot returns a deep copy of the book.
func (b *Book) Snapshot() BookState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := newBookState()
	for k, v := range b.state.Decimals {
		out.Decimals[k] = v
	}
	for k, v := range b.state.Supply {
		out.Supply[k] = v
	}
	for mint, accounts := range b.state.Balances {
		cp := make(map[common.Address]uint64, len(accounts))
		for a, v := range accounts {
			cp[a] = v
		}
		out.Balances[mint] = cp
	}
	return out
}

// Restore replaces the book's content.
func (b *Book) Restore(state BookState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = newBookState()
	for k, v := range state.Decimals {
		b.state.Decimals[k] = v
	}
	for k, v := range state.Supply {
		b.state.Supply[k] = v
	}
	for mint, accounts := range state.Balances {
		cp := make(map[common.Address]uint64, len(accounts))
		for a, v := range accounts {
			cp[a] = v
		}
		b.state.Balances[mint] = cp
	}
}

func (b *Book) authorize(mint, from common.Address, auth Authority) error {
	if auth == nil {
		return fmt.Errorf("%w: no authority for %s", ErrUnauthorized, from.Hex())
	}
	if capability, ok := auth.(custody.Capability); ok {
		if !b.verifier.Verify(capability, from) {
			return fmt.Errorf("%w: invalid custody capability for %s", ErrUnauthorized, from.Hex())
		}
		return nil
	}
	if b.verifier.IsCustody(mint, from) {
		return fmt.Errorf("%w: custody account %s requires a capability", ErrUnauthorized, from.Hex())
	}
	if auth.Signer() != from {
		return fmt.Errorf("%w: %s cannot move funds of %s", ErrUnauthorized, auth.Signer().Hex(), from.Hex())
	}
	return nil
}

func (b *Book) balance(mint, account common.Address) uint64 {
	return b.state.Balances[mint][account]
}

func (b *Book) setBalance(mint, account common.Address, amount uint64) {
	accounts := b.state.Balances[mint]
	if accounts == nil {
		accounts = make(map[common.Address]uint64)
		b.state.Balances[mint] = accounts
	}
	accounts[account] = amount
}
