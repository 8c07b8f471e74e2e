package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
)

// InitParams describes a new pool.
type InitParams struct {
	Mint      common.Address
	Authority common.Address
	Fees      model.FeeShares
	// Guardian enables emergency fee updates when non-zero. It must differ
	// from Authority.
	Guardian common.Address
}

// InitializePool creates the pool record for p.Mint.
func (l *Ledger) InitializePool(ctx context.Context, p InitParams) (model.PoolConfig, error) {
	var out model.PoolConfig
	err := l.run(ctx, "initialize_pool", p.Mint, func(o *op) error {
		if err := p.Fees.Validate(); err != nil {
			return err
		}
		if p.Authority == (common.Address{}) {
			return fmt.Errorf("%w: authority is the zero address", ErrUnauthorized)
		}
		if p.Guardian != (common.Address{}) && p.Guardian == p.Authority {
			return fmt.Errorf("%w: guardian must differ from authority", ErrInvalidGuardian)
		}
		if _, err := o.tx.Pool(ctx); err == nil {
			return fmt.Errorf("%w: %s", ErrPoolExists, p.Mint.Hex())
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		decimals, err := l.transfer.Decimals(ctx, p.Mint)
		if err != nil {
			return fmt.Errorf("%w: read decimals: %w", ErrTransferFailed, err)
		}
		accounts := l.issuer.Accounts(p.Mint)
		out = model.PoolConfig{
			Mint:       p.Mint,
			Decimals:   decimals,
			Authority:  p.Authority,
			Guardian:   p.Guardian,
			StakeVault: accounts.StakeVault,
			RewardPool: accounts.RewardPool,
			LPCustody:  accounts.LPVault,
			Fees:       p.Fees,
			CreatedAt:  o.now.Unix(),
		}
		o.emit(p.Authority, nil, 0, map[string]string{
			"fees":     p.Fees.String(),
			"decimals": strconv.Itoa(int(decimals)),
		})
		return o.tx.PutPool(ctx, out)
	})
	return out, err
}

// SetPaused flips the pause flag. Pausing only blocks new stakes.
func (l *Ledger) SetPaused(ctx context.Context, mint, caller common.Address, paused bool) error {
	return l.run(ctx, "set_paused", mint, func(o *op) error {
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		cfg.IsPaused = paused
		o.emit(caller, nil, 0, map[string]string{"paused": strconv.FormatBool(paused)})
		return o.tx.PutPool(ctx, cfg)
	})
}
