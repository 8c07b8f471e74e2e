package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"tokenLedger/internal/accrual"
	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
	"tokenLedger/internal/transfer"
)

// lpAuthority loads the pool and vault and checks caller is the authority.
func (o *op) lpAuthority(caller common.Address) (model.PoolConfig, model.LPVault, error) {
	cfg, err := o.pool()
	if err != nil {
		return model.PoolConfig{}, model.LPVault{}, err
	}
	if err := requireAuthority(cfg, caller); err != nil {
		return model.PoolConfig{}, model.LPVault{}, err
	}
	v, err := o.vault()
	if err != nil {
		return model.PoolConfig{}, model.LPVault{}, err
	}
	v.Authority = cfg.Authority
	return cfg, v, nil
}

func (l *Ledger) InitializeLPVault(ctx context.Context, mint, caller common.Address) (model.LPVault, error) {
	var out model.LPVault
	err := l.run(ctx, "initialize_lp_vault", mint, func(o *op) error {
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		if _, err := o.tx.Vault(ctx); err == nil {
			return fmt.Errorf("%w: %s", ErrVaultExists, mint.Hex())
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		out = model.LPVault{Mint: mint, Authority: cfg.Authority, CreatedAt: o.now.Unix()}
		o.emit(caller, nil, 0, nil)
		return o.tx.PutVault(ctx, out)
	})
	return out, err
}

// AllocateToLP moves amount from the authority into LP custody, pending
// deployment. It works while the pool is paused.
func (l *Ledger) AllocateToLP(ctx context.Context, mint, caller common.Address, amount uint64) (model.LPVault, error) {
	var out model.LPVault
	err := l.run(ctx, "allocate_to_lp", mint, func(o *op) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		cfg, v, err := o.lpAuthority(caller)
		if err != nil {
			return err
		}
		if v.TotalAllocated, err = accrual.Add(v.TotalAllocated, amount); err != nil {
			return fmt.Errorf("total allocated: %w", err)
		}
		if v.PendingDeployment, err = accrual.Add(v.PendingDeployment, amount); err != nil {
			return fmt.Errorf("pending deployment: %w", err)
		}

		err = o.move(transfer.Transfer{
			Mint:      mint,
			From:      caller,
			To:        cfg.LPCustody,
			Amount:    amount,
			Decimals:  cfg.Decimals,
			Authority: transfer.SignedBy(caller),
		})
		if err != nil {
			return err
		}
		o.emit(caller, nil, amount, nil)
		out = v
		return o.tx.PutVault(ctx, v)
	})
	return out, err
}

// RecordLPDeployment reconciles a deployment made outside the ledger. It
// moves no tokens.
func (l *Ledger) RecordLPDeployment(ctx context.Context, mint, caller common.Address, amount, sharesReceived uint64, target common.Address) (model.LPDeployment, error) {
	var out model.LPDeployment
	err := l.run(ctx, "record_lp_deployment", mint, func(o *op) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		_, v, err := o.lpAuthority(caller)
		if err != nil {
			return err
		}
		if amount > v.PendingDeployment {
			return fmt.Errorf("%w: pending %d, requested %d", ErrInsufficientPending, v.PendingDeployment, amount)
		}
		v.PendingDeployment -= amount
		if v.TotalDeployed, err = accrual.Add(v.TotalDeployed, amount); err != nil {
			return fmt.Errorf("total deployed: %w", err)
		}
		if v.DeploymentCount, err = accrual.Add(v.DeploymentCount, 1); err != nil {
			return fmt.Errorf("deployment count: %w", err)
		}
		v.LastDeploymentTime = o.now.Unix()

		out = model.LPDeployment{
			Mint:           mint,
			Seq:            v.DeploymentCount,
			Target:         target,
			Amount:         amount,
			SharesReceived: sharesReceived,
			DeployedAt:     o.now.Unix(),
		}
		o.emit(caller, addressPtr(target), amount, map[string]string{
			"seq":             strconv.FormatUint(out.Seq, 10),
			"shares_received": strconv.FormatUint(sharesReceived, 10),
		})
		if err := o.tx.PutDeployment(ctx, out); err != nil {
			return err
		}
		return o.tx.PutVault(ctx, v)
	})
	return out, err
}

// WithdrawFromLPVault returns undeployed funds to the authority. It works
// while the pool is paused.
func (l *Ledger) WithdrawFromLPVault(ctx context.Context, mint, caller common.Address, amount uint64) (model.LPVault, error) {
	var out model.LPVault
	err := l.run(ctx, "withdraw_from_lp_vault", mint, func(o *op) error {
		if amount == 0 {
			return ErrZeroAmount
		}
		cfg, v, err := o.lpAuthority(caller)
		if err != nil {
			return err
		}
		if amount > v.PendingDeployment {
			return fmt.Errorf("%w: pending %d, requested %d", ErrInsufficientPending, v.PendingDeployment, amount)
		}
		// Withdrawn funds leave the allocation so that
		// TotalAllocated == TotalDeployed + PendingDeployment still holds.
		v.PendingDeployment -= amount
		v.TotalAllocated -= amount
		if v.TotalWithdrawn, err = accrual.Add(v.TotalWithdrawn, amount); err != nil {
			return fmt.Errorf("total withdrawn: %w", err)
		}

		err = o.move(transfer.Transfer{
			Mint:      mint,
			From:      cfg.LPCustody,
			To:        caller,
			Amount:    amount,
			Decimals:  cfg.Decimals,
			Authority: l.issuer.Grant(cfg.LPCustody),
		})
		if err != nil {
			return err
		}
		o.emit(caller, nil, amount, nil)
		out = v
		return o.tx.PutVault(ctx, v)
	})
	return out, err
}
