package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"tokenLedger/internal/accrual"
	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
)

// PositionView is a stake position with what it could claim right now.
type PositionView struct {
	model.StakePosition
	Claimable uint64 `json:"claimable"`
}

// AuditReport is the result of recomputing a pool's conservation rules.
type AuditReport struct {
	Mint           common.Address `json:"mint"`
	TotalStaked    uint64         `json:"total_staked"`
	SumStaked      uint64         `json:"sum_staked"`
	Positions      int            `json:"positions"`
	StakeConserved bool           `json:"stake_conserved"`
	LPConserved    bool           `json:"lp_conserved"`
	FeesValid      bool           `json:"fees_valid"`
	Violations     []string       `json:"violations,omitempty"`
}

// OK reports whether no rule was violated.
func (r AuditReport) OK() bool {
	return len(r.Violations) == 0
}

func (l *Ledger) view(ctx context.Context, mint common.Address, fn func(r storage.Reader, cfg model.PoolConfig) error) error {
	return l.store.View(ctx, mint, func(r storage.Reader) error {
		cfg, err := r.Pool(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrPoolNotFound, mint.Hex())
		}
		if err != nil {
			return err
		}
		return fn(r, cfg)
	})
}

func (l *Ledger) Pool(ctx context.Context, mint common.Address) (model.PoolConfig, error) {
	var out model.PoolConfig
	err := l.view(ctx, mint, func(_ storage.Reader, cfg model.PoolConfig) error {
		out = cfg
		return nil
	})
	return out, err
}

// Pools lists every initialized pool.
func (l *Ledger) Pools(ctx context.Context) ([]model.PoolConfig, error) {
	mints, err := l.store.Mints(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PoolConfig, 0, len(mints))
	for _, mint := range mints {
		cfg, err := l.Pool(ctx, mint)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func claimable(cfg model.PoolConfig, pos model.StakePosition) uint64 {
	acc := accrual.New(cfg.AccumulatedPerShare.Int())
	delta, err := acc.Pending(pos.StakedAmount, pos.RewardDebt.Int())
	if err != nil {
		return ^uint64(0)
	}
	return accrual.SaturatingAdd(pos.PendingRewards, delta)
}

// Position returns owner's position. An owner who never staked gets an empty
// position.
func (l *Ledger) Position(ctx context.Context, mint, owner common.Address) (PositionView, error) {
	var out PositionView
	err := l.view(ctx, mint, func(r storage.Reader, cfg model.PoolConfig) error {
		pos, err := r.Position(ctx, owner)
		if errors.Is(err, storage.ErrNotFound) {
			pos = model.NewStakePosition(mint, owner)
		} else if err != nil {
			return err
		}
		out = PositionView{StakePosition: pos, Claimable: claimable(cfg, pos)}
		return nil
	})
	return out, err
}

func (l *Ledger) Positions(ctx context.Context, mint common.Address) ([]PositionView, error) {
	var out []PositionView
	err := l.view(ctx, mint, func(r storage.Reader, cfg model.PoolConfig) error {
		positions, err := r.Positions(ctx)
		if err != nil {
			return err
		}
		out = make([]PositionView, 0, len(positions))
		for _, pos := range positions {
			out = append(out, PositionView{StakePosition: pos, Claimable: claimable(cfg, pos)})
		}
		return nil
	})
	return out, err
}

func (l *Ledger) Proposal(ctx context.Context, mint common.Address, id uuid.UUID) (model.Proposal, error) {
	var out model.Proposal
	err := l.view(ctx, mint, func(r storage.Reader, _ model.PoolConfig) error {
		p, err := r.Proposal(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProposalNotFound, id)
		}
		out = p
		return err
	})
	return out, err
}

func (l *Ledger) Proposals(ctx context.Context, mint common.Address) ([]model.Proposal, error) {
	var out []model.Proposal
	err := l.view(ctx, mint, func(r storage.Reader, _ model.PoolConfig) error {
		var err error
		out, err = r.Proposals(ctx)
		return err
	})
	return out, err
}

func (l *Ledger) Vault(ctx context.Context, mint common.Address) (model.LPVault, error) {
	var out model.LPVault
	err := l.view(ctx, mint, func(r storage.Reader, _ model.PoolConfig) error {
		v, err := r.Vault(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrVaultNotFound, mint.Hex())
		}
		out = v
		return err
	})
	return out, err
}

func (l *Ledger) Deployments(ctx context.Context, mint common.Address) ([]model.LPDeployment, error) {
	var out []model.LPDeployment
	err := l.view(ctx, mint, func(r storage.Reader, _ model.PoolConfig) error {
		var err error
		out, err = r.Deployments(ctx)
		return err
	})
	return out, err
}

// BurnRecord returns the pool's burn counters, zero before the first burn.
func (l *Ledger) BurnRecord(ctx context.Context, mint common.Address) (model.BurnRecord, error) {
	out := model.BurnRecord{Mint: mint}
	err := l.view(ctx, mint, func(r storage.Reader, _ model.PoolConfig) error {
		rec, err := r.BurnRecord(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		out = rec
		return err
	})
	return out, err
}

// Airdrop returns the pool's airdrop counters, zero before the first
// registration.
func (l *Ledger) Airdrop(ctx context.Context, mint common.Address) (model.AirdropCampaign, error) {
	out := model.AirdropCampaign{Mint: mint}
	err := l.view(ctx, mint, func(r storage.Reader, _ model.PoolConfig) error {
		c, err := r.Airdrop(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		out = c
		return err
	})
	return out, err
}

// Audit recomputes the pool's conservation rules from stored records.
func (l *Ledger) Audit(ctx context.Context, mint common.Address) (AuditReport, error) {
	report := AuditReport{Mint: mint}
	err := l.view(ctx, mint, func(r storage.Reader, cfg model.PoolConfig) error {
		positions, err := r.Positions(ctx)
		if err != nil {
			return err
		}
		report.TotalStaked = cfg.TotalStaked
		report.Positions = len(positions)
		var sum uint64
		for _, pos := range positions {
			if sum, err = accrual.Add(sum, pos.StakedAmount); err != nil {
				report.Violations = append(report.Violations, "sum of staked amounts overflows")
				break
			}
		}
		report.SumStaked = sum
		report.StakeConserved = sum == cfg.TotalStaked
		if !report.StakeConserved {
			report.Violations = append(report.Violations,
				fmt.Sprintf("total_staked %d != sum of positions %d", cfg.TotalStaked, sum))
		}

		report.FeesValid = cfg.Fees.Validate() == nil
		if !report.FeesValid {
			report.Violations = append(report.Violations, "fee shares "+cfg.Fees.String()+" do not total 500 bps")
		}

		v, err := r.Vault(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			report.LPConserved = true
		case err != nil:
			return err
		default:
			deployed := v.TotalDeployed + v.PendingDeployment
			report.LPConserved = deployed >= v.TotalDeployed && v.TotalAllocated == deployed
			if !report.LPConserved {
				report.Violations = append(report.Violations, fmt.Sprintf(
					"lp total_allocated %d != deployed %d + pending %d",
					v.TotalAllocated, v.TotalDeployed, v.PendingDeployment))
			}
		}
		return nil
	})
	return report, err
}
