package model

import "github.com/ethereum/go-ethereum/common"

// BurnRecord counts destructive burns against a pool's authority holdings.
type BurnRecord struct {
	Mint         common.Address `json:"mint"`
	TotalBurned  uint64         `json:"total_burned"`
	BurnCount    uint64         `json:"burn_count"`
	LastBurnTime int64          `json:"last_burn_time"`
}

// AirdropCampaign is accounting only; distributions happen elsewhere.
type AirdropCampaign struct {
	Mint            common.Address `json:"mint"`
	TotalAirdropped uint64         `json:"total_airdropped"`
	RecipientCount  uint64         `json:"recipient_count"`
	LastRegistered  int64          `json:"last_registered"`
}
