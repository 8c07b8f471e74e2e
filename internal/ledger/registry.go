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

func (o *op) burnRecord() (model.BurnRecord, error) {
	r, err := o.tx.BurnRecord(o.ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return model.BurnRecord{Mint: o.mint}, nil
	}
	return r, err
}

func (o *op) airdrop() (model.AirdropCampaign, error) {
	c, err := o.tx.Airdrop(o.ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return model.AirdropCampaign{Mint: o.mint}, nil
	}
	return c, err
}

// Burn destroys amount of the authority's own tokens and records it.
func (l *Ledger) Burn(ctx context.Context, mint, caller common.Address, amount uint64) (model.BurnRecord, error) {
	var out model.BurnRecord
	err := l.run(ctx, "burn", mint, func(o *op) error {
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
		r, err := o.burnRecord()
		if err != nil {
			return err
		}
		if r.TotalBurned, err = accrual.Add(r.TotalBurned, amount); err != nil {
			return fmt.Errorf("total burned: %w", err)
		}
		r.BurnCount = accrual.SaturatingAdd(r.BurnCount, 1)
		r.LastBurnTime = o.now.Unix()

		err = o.destroy(transfer.Burn{
			Mint:      mint,
			Account:   caller,
			Amount:    amount,
			Authority: transfer.SignedBy(caller),
		})
		if err != nil {
			return err
		}
		o.emit(caller, nil, amount, nil)
		out = r
		return o.tx.PutBurnRecord(ctx, r)
	})
	return out, err
}

// RegisterAirdrop records an intended distribution of amountEach to every
// recipient. It moves no tokens.
func (l *Ledger) RegisterAirdrop(ctx context.Context, mint, caller common.Address, recipients []common.Address, amountEach uint64) (model.AirdropCampaign, error) {
	var out model.AirdropCampaign
	err := l.run(ctx, "register_airdrop", mint, func(o *op) error {
		if len(recipients) > MaxAirdropRecipients {
			return fmt.Errorf("%w: %d > %d", ErrTooManyRecipients, len(recipients), MaxAirdropRecipients)
		}
		if amountEach == 0 {
			return ErrZeroAmount
		}
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		c, err := o.airdrop()
		if err != nil {
			return err
		}
		count := uint64(len(recipients))
		total, err := accrual.Mul(count, amountEach)
		if err != nil {
			return fmt.Errorf("airdrop total: %w", err)
		}
		if c.TotalAirdropped, err = accrual.Add(c.TotalAirdropped, total); err != nil {
			return fmt.Errorf("total airdropped: %w", err)
		}
		if c.RecipientCount, err = accrual.Add(c.RecipientCount, count); err != nil {
			return fmt.Errorf("recipient count: %w", err)
		}
		c.LastRegistered = o.now.Unix()

		o.emit(caller, nil, total, map[string]string{
			"recipients":  strconv.FormatUint(count, 10),
			"amount_each": strconv.FormatUint(amountEach, 10),
		})
		out = c
		return o.tx.PutAirdrop(ctx, c)
	})
	return out, err
}
