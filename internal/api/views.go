package api

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"tokenLedger/internal/ledger"
	"tokenLedger/internal/model"
	"tokenLedger/internal/timelock"
)

// FormatAmount renders a base-unit amount in whole tokens.
func FormatAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

// FormatBps renders basis points as a percentage.
func FormatBps(bps uint16) string {
	return decimal.New(int64(bps), -2).String() + "%"
}

type PoolView struct {
	model.PoolConfig
	Display map[string]string `json:"display"`
}

func NewPoolView(cfg model.PoolConfig) PoolView {
	return PoolView{
		PoolConfig: cfg,
		Display: map[string]string{
			"total_staked":                  FormatAmount(cfg.TotalStaked, cfg.Decimals),
			"total_reflections_distributed": FormatAmount(cfg.TotalReflectionsDistributed, cfg.Decimals),
			"pending_reflections":           FormatAmount(cfg.PendingReflections, cfg.Decimals),
			"reflection_fee":                FormatBps(cfg.Fees.ReflectionBps),
			"lp_fee":                        FormatBps(cfg.Fees.LPBps),
			"burn_fee":                      FormatBps(cfg.Fees.BurnBps),
		},
	}
}

type PositionView struct {
	ledger.PositionView
	Display map[string]string `json:"display"`
}

func NewPositionView(p ledger.PositionView, decimals uint8) PositionView {
	return PositionView{
		PositionView: p,
		Display: map[string]string{
			"staked_amount": FormatAmount(p.StakedAmount, decimals),
			"claimable":     FormatAmount(p.Claimable, decimals),
			"total_claimed": FormatAmount(p.TotalClaimed, decimals),
		},
	}
}

type ProposalView struct {
	model.Proposal
	Status       string    `json:"status"`
	ExecutableAt time.Time `json:"executable_at"`
}

func NewProposalView(p model.Proposal) ProposalView {
	return ProposalView{Proposal: p, Status: p.Status(), ExecutableAt: timelock.ExecutableAt(p).UTC()}
}
