package model

import "github.com/ethereum/go-ethereum/common"

// PoolConfig is the root record of a token pool. It is keyed by the token mint.
type PoolConfig struct {
	Mint      common.Address `json:"mint"`
	Decimals  uint8          `json:"decimals"`
	Authority common.Address `json:"authority"`
	// Guardian co-signs emergency fee updates. The zero address disables them.
	Guardian common.Address `json:"guardian"`

	StakeVault common.Address `json:"stake_vault"`
	RewardPool common.Address `json:"reward_pool"`
	LPCustody  common.Address `json:"lp_custody"`

	Fees FeeShares `json:"fees"`
	// FeeNonce increments on every applied fee change and binds guardian
	// signatures to a single use.
	FeeNonce uint64 `json:"fee_nonce"`

	TotalStaked                 uint64 `json:"total_staked"`
	TotalReflectionsDistributed uint64 `json:"total_reflections_distributed"`
	PendingReflections          uint64 `json:"pending_reflections"`
	AccumulatedPerShare         Wide   `json:"accumulated_per_share"`
	IsPaused                    bool   `json:"is_paused"`

	CreatedAt int64 `json:"created_at"`
}

// StakePosition is one participant's stake in a pool.
type StakePosition struct {
	Mint           common.Address `json:"mint"`
	Owner          common.Address `json:"owner"`
	StakedAmount   uint64         `json:"staked_amount"`
	StakeTime      int64          `json:"stake_time"`
	PendingRewards uint64         `json:"pending_rewards"`
	TotalClaimed   uint64         `json:"total_claimed"`
	RewardDebt     Wide           `json:"reward_debt"`
}

// NewStakePosition returns the empty position created lazily on first stake.
func NewStakePosition(mint, owner common.Address) StakePosition {
	return StakePosition{Mint: mint, Owner: owner}
}
