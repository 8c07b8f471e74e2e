package accrual

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Precision scales the per-share accumulator (10^12).
const Precision = 1_000_000_000_000

// ErrOverflow aborts an operation whose checked arithmetic would wrap.
var ErrOverflow = errors.New("arithmetic overflow")

var (
	precision = uint256.NewInt(Precision)
	// maxPerShare bounds the accumulator to 128 bits.
	maxPerShare = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
)

// Accumulator is a pool-wide reward-per-staked-unit total scaled by Precision.
// It only ever grows.
type Accumulator struct {
	perShare uint256.Int
}

// New returns an accumulator starting at perShare. A nil value starts at zero.
func New(perShare *uint256.Int) *Accumulator {
	a := &Accumulator{}
	if perShare != nil {
		a.perShare.Set(perShare)
	}
	return a
}

// Value returns a copy of the scaled accumulator.
func (a *Accumulator) Value() *uint256.Int {
	return new(uint256.Int).Set(&a.perShare)
}

// Increment returns floor(amount * Precision / totalStaked), or zero when
// nothing is staked.
func Increment(amount, totalStaked uint64) *uint256.Int {
	if totalStaked == 0 {
		return new(uint256.Int)
	}
	inc := new(uint256.Int).Mul(uint256.NewInt(amount), precision)
	return inc.Div(inc, uint256.NewInt(totalStaked))
}

// Deposit credits amount across totalStaked units and returns the increment
// applied. A deposit with nothing staked leaves the accumulator unchanged.
func (a *Accumulator) Deposit(amount, totalStaked uint64) (*uint256.Int, error) {
	inc := Increment(amount, totalStaked)
	next, overflow := new(uint256.Int).AddOverflow(&a.perShare, inc)
	if overflow || next.Gt(maxPerShare) {
		return nil, fmt.Errorf("accumulate %d over %d staked: %w", amount, totalStaked, ErrOverflow)
	}
	a.perShare.Set(next)
	return inc, nil
}

// Debt is the share of the accumulator already priced into a position of
// staked units: floor(staked * perShare / Precision).
func (a *Accumulator) Debt(staked uint64) *uint256.Int {
	// staked < 2^64 and perShare < 2^128, so the product fits in 256 bits.
	gross := new(uint256.Int).Mul(uint256.NewInt(staked), &a.perShare)
	return gross.Div(gross, precision)
}

// Pending returns the rewards accrued by staked units since debt was set,
// saturating at zero.
func (a *Accumulator) Pending(staked uint64, debt *uint256.Int) (uint64, error) {
	if staked == 0 {
		return 0, nil
	}
	gross := a.Debt(staked)
	if debt != nil {
		if !gross.Gt(debt) {
			return 0, nil
		}
		gross.Sub(gross, debt)
	}
	if !gross.IsUint64() {
		return 0, fmt.Errorf("pending rewards %s exceed amount range: %w", gross.Dec(), ErrOverflow)
	}
	return gross.Uint64(), nil
}
