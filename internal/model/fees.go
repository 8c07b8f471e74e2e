package model

import (
	"errors"
	"fmt"
)

// TotalFeeBps is the only accepted sum of the three fee shares (5%).
const TotalFeeBps = 500

var ErrInvalidFeeConfig = errors.New("invalid fee configuration: shares must total 500 bps")

// FeeShares splits the protocol fee between reflections, liquidity and burns,
// in basis points.
type FeeShares struct {
	ReflectionBps uint16 `json:"reflection_bps"`
	LPBps         uint16 `json:"lp_bps"`
	BurnBps       uint16 `json:"burn_bps"`
}

// Validate reports ErrInvalidFeeConfig unless the shares sum to TotalFeeBps.
func (f FeeShares) Validate() error {
	sum := uint32(f.ReflectionBps) + uint32(f.LPBps) + uint32(f.BurnBps)
	if sum != TotalFeeBps {
		return fmt.Errorf("%w (got %d)", ErrInvalidFeeConfig, sum)
	}
	return nil
}

func (f FeeShares) String() string {
	return fmt.Sprintf("reflection=%dbps lp=%dbps burn=%dbps", f.ReflectionBps, f.LPBps, f.BurnBps)
}
