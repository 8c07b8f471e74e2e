package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"tokenLedger/internal/accrual"
	"tokenLedger/internal/model"
	"tokenLedger/internal/transfer"
)

// bank tops up pos.PendingRewards with what accrued since its debt was set.
func bank(acc *accrual.Accumulator, pos *model.StakePosition) error {
	delta, err := acc.Pending(pos.StakedAmount, pos.RewardDebt.Int())
	if err != nil {
		return err
	}
	pos.PendingRewards, err = accrual.Add(pos.PendingRewards, delta)
	if err != nil {
		return fmt.Errorf("bank rewards: %w", err)
	}
	return nil
}

// Stake moves amount from participant into the stake vault.
func (l *Ledger) Stake(ctx context.Context, mint, participant common.Address, amount uint64) (model.StakePosition, error) {
	var out model.StakePosition
	err := l.run(ctx, "stake", mint, func(o *op) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireActive(cfg); err != nil {
			return err
		}
		pos, err := o.position(participant)
		if err != nil {
			return err
		}

		acc := accrual.New(cfg.AccumulatedPerShare.Int())
		if err := bank(acc, &pos); err != nil {
			return err
		}
		if pos.StakedAmount, err = accrual.Add(pos.StakedAmount, amount); err != nil {
			return fmt.Errorf("stake amount: %w", err)
		}
		if cfg.TotalStaked, err = accrual.Add(cfg.TotalStaked, amount); err != nil {
			return fmt.Errorf("total staked: %w", err)
		}
		pos.RewardDebt = model.WideFrom(acc.Debt(pos.StakedAmount))
		pos.StakeTime = o.now.Unix()

		err = o.move(transfer.Transfer{
			Mint:      mint,
			From:      participant,
			To:        cfg.StakeVault,
			Amount:    amount,
			Decimals:  cfg.Decimals,
			Authority: transfer.SignedBy(participant),
		})
		if err != nil {
			return err
		}
		o.emit(participant, nil, amount, nil)
		if err := o.tx.PutPool(ctx, cfg); err != nil {
			return err
		}
		out = pos
		return o.tx.PutPosition(ctx, pos)
	})
	return out, err
}

// Unstake returns amount of principal to participant. It works while the
// pool is paused.
func (l *Ledger) Unstake(ctx context.Context, mint, participant common.Address, amount uint64) (model.StakePosition, error) {
	var out model.StakePosition
	err := l.run(ctx, "unstake", mint, func(o *op) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		pos, err := o.position(participant)
		if err != nil {
			return err
		}
		if amount > pos.StakedAmount {
			return fmt.Errorf("%w: staked %d, requested %d", ErrInsufficientStake, pos.StakedAmount, amount)
		}

		acc := accrual.New(cfg.AccumulatedPerShare.Int())
		if err := bank(acc, &pos); err != nil {
			return err
		}
		pos.StakedAmount -= amount
		if cfg.TotalStaked, err = accrual.Sub(cfg.TotalStaked, amount); err != nil {
			return fmt.Errorf("total staked: %w", err)
		}
		pos.RewardDebt = model.WideFrom(acc.Debt(pos.StakedAmount))

		err = o.move(transfer.Transfer{
			Mint:      mint,
			From:      cfg.StakeVault,
			To:        participant,
			Amount:    amount,
			Decimals:  cfg.Decimals,
			Authority: l.issuer.Grant(cfg.StakeVault),
		})
		if err != nil {
			return err
		}
		o.emit(participant, nil, amount, nil)
		if err := o.tx.PutPool(ctx, cfg); err != nil {
			return err
		}
		out = pos
		return o.tx.PutPosition(ctx, pos)
	})
	return out, err
}

// Claim pays out everything participant has accrued from the reward pool and
// returns the amount paid. It works while the pool is paused.
func (l *Ledger) Claim(ctx context.Context, mint, participant common.Address) (uint64, error) {
	var claimed uint64
	err := l.run(ctx, "claim", mint, func(o *op) error {
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		pos, err := o.position(participant)
		if err != nil {
			return err
		}

		acc := accrual.New(cfg.AccumulatedPerShare.Int())
		if err := bank(acc, &pos); err != nil {
			return err
		}
		amount := pos.PendingRewards
		if amount == 0 {
			return ErrNothingToClaim
		}
		pos.PendingRewards = 0
		if pos.TotalClaimed, err = accrual.Add(pos.TotalClaimed, amount); err != nil {
			return fmt.Errorf("total claimed: %w", err)
		}
		pos.RewardDebt = model.WideFrom(acc.Debt(pos.StakedAmount))
		if cfg.TotalReflectionsDistributed, err = accrual.Add(cfg.TotalReflectionsDistributed, amount); err != nil {
			return fmt.Errorf("reflections distributed: %w", err)
		}
		cfg.PendingReflections = accrual.SaturatingSub(cfg.PendingReflections, amount)

		err = o.move(transfer.Transfer{
			Mint:      mint,
			From:      cfg.RewardPool,
			To:        participant,
			Amount:    amount,
			Decimals:  cfg.Decimals,
			Authority: l.issuer.Grant(cfg.RewardPool),
		})
		if err != nil {
			return err
		}
		o.emit(participant, nil, amount, nil)
		if err := o.tx.PutPool(ctx, cfg); err != nil {
			return err
		}
		claimed = amount
		return o.tx.PutPosition(ctx, pos)
	})
	return claimed, err
}

// DepositReflections moves amount from the authority into the reward pool
// and credits it to current stakers. With nothing staked the deposit is
// recorded as pending but credits nobody.
func (l *Ledger) DepositReflections(ctx context.Context, mint, caller common.Address, amount uint64) (model.PoolConfig, error) {
	var out model.PoolConfig
	err := l.run(ctx, "deposit_reflections", mint, func(o *op) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}

		acc := accrual.New(cfg.AccumulatedPerShare.Int())
		inc, err := acc.Deposit(amount, cfg.TotalStaked)
		if err != nil {
			return err
		}
		cfg.AccumulatedPerShare = model.WideFrom(acc.Value())
		if cfg.PendingReflections, err = accrual.Add(cfg.PendingReflections, amount); err != nil {
			return fmt.Errorf("pending reflections: %w", err)
		}
		err = o.move(transfer.Transfer{
			Mint:      mint,
			From:      caller,
			To:        cfg.RewardPool,
			Amount:    amount,
			Decimals:  cfg.Decimals,
			Authority: transfer.SignedBy(caller),
		})
		if err != nil {
			return err
		}
		if cfg.TotalStaked == 0 {
			l.logger.Warn("reflection deposit with nothing staked credits no one",
				zap.String("pool", mint.Hex()), zap.Uint64("amount", amount))
		}
		o.emit(caller, nil, amount, map[string]string{"per_share_increment": inc.Dec()})
		out = cfg
		return o.tx.PutPool(ctx, cfg)
	})
	return out, err
}
