package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
	"tokenLedger/internal/timelock"
)

func (l *Ledger) propose(ctx context.Context, name string, mint, caller common.Address, payload timelock.Payload) (model.Proposal, error) {
	var out model.Proposal
	err := l.run(ctx, name, mint, func(o *op) error {
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		if live, err := o.tx.LiveProposal(ctx, payload.Kind()); err == nil {
			return fmt.Errorf("%w: %s", ErrProposalPending, live.ID)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		p, err := timelock.Propose(mint, caller, payload, o.now)
		if err != nil {
			return err
		}
		o.emit(caller, p.NewAuthority, 0, map[string]string{
			"proposal":      p.ID.String(),
			"executable_at": timelock.ExecutableAt(p).UTC().Format("2006-01-02T15:04:05Z"),
		})
		out = p
		return o.tx.PutProposal(ctx, p)
	})
	return out, err
}

// loadProposal fetches id and checks it is of kind.
func (o *op) loadProposal(id uuid.UUID, kind model.ProposalKind) (model.Proposal, error) {
	p, err := o.tx.Proposal(o.ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Proposal{}, fmt.Errorf("%w: %s", ErrProposalNotFound, id)
	}
	if err != nil {
		return model.Proposal{}, err
	}
	if p.Kind != kind {
		return model.Proposal{}, fmt.Errorf("%w: %s is a %s proposal", ErrWrongProposalKind, id, p.Kind)
	}
	return p, nil
}

func (l *Ledger) execute(ctx context.Context, name string, mint, caller common.Address, id uuid.UUID, kind model.ProposalKind) (model.PoolConfig, error) {
	var out model.PoolConfig
	err := l.run(ctx, name, mint, func(o *op) error {
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		p, err := o.loadProposal(id, kind)
		if err != nil {
			return err
		}
		if p.Proposer != caller {
			return fmt.Errorf("%w: proposed by %s", ErrNotProposer, p.Proposer.Hex())
		}
		if err := timelock.Execute(&p, &cfg, o.now); err != nil {
			return err
		}
		o.emit(caller, p.NewAuthority, 0, map[string]string{"proposal": p.ID.String()})
		if err := o.tx.PutProposal(ctx, p); err != nil {
			return err
		}
		out = cfg
		return o.tx.PutPool(ctx, cfg)
	})
	return out, err
}

func (l *Ledger) cancel(ctx context.Context, name string, mint, caller common.Address, id uuid.UUID, kind model.ProposalKind) (model.Proposal, error) {
	var out model.Proposal
	err := l.run(ctx, name, mint, func(o *op) error {
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		p, err := o.loadProposal(id, kind)
		if err != nil {
			return err
		}
		if err := timelock.Cancel(&p); err != nil {
			return err
		}
		o.emit(caller, nil, 0, map[string]string{"proposal": p.ID.String()})
		out = p
		return o.tx.PutProposal(ctx, p)
	})
	return out, err
}

// ProposeFeeUpdate queues a fee change behind the timelock.
func (l *Ledger) ProposeFeeUpdate(ctx context.Context, mint, caller common.Address, fees model.FeeShares) (model.Proposal, error) {
	return l.propose(ctx, "propose_fee_update", mint, caller, timelock.FeeChange{Fees: fees})
}

func (l *Ledger) ExecuteFeeUpdate(ctx context.Context, mint, caller common.Address, id uuid.UUID) (model.PoolConfig, error) {
	return l.execute(ctx, "execute_fee_update", mint, caller, id, model.ProposalFeeChange)
}

func (l *Ledger) CancelFeeProposal(ctx context.Context, mint, caller common.Address, id uuid.UUID) (model.Proposal, error) {
	return l.cancel(ctx, "cancel_fee_proposal", mint, caller, id, model.ProposalFeeChange)
}

// ProposeAuthorityTransfer queues a hand-over of the pool to newAuthority.
func (l *Ledger) ProposeAuthorityTransfer(ctx context.Context, mint, caller, newAuthority common.Address) (model.Proposal, error) {
	return l.propose(ctx, "propose_authority_transfer", mint, caller, timelock.AuthorityChange{NewAuthority: newAuthority})
}

func (l *Ledger) ExecuteAuthorityTransfer(ctx context.Context, mint, caller common.Address, id uuid.UUID) (model.PoolConfig, error) {
	return l.execute(ctx, "execute_authority_transfer", mint, caller, id, model.ProposalAuthorityChange)
}

func (l *Ledger) CancelAuthorityTransfer(ctx context.Context, mint, caller common.Address, id uuid.UUID) (model.Proposal, error) {
	return l.cancel(ctx, "cancel_authority_transfer", mint, caller, id, model.ProposalAuthorityChange)
}

// EmergencyUpdateFees applies fees immediately, bypassing the timelock. The
// authority must call it with a co-signature from the pool's guardian over
// EmergencyDigest.
func (l *Ledger) EmergencyUpdateFees(ctx context.Context, mint, caller common.Address, fees model.FeeShares, guardianSig []byte) (model.PoolConfig, error) {
	var out model.PoolConfig
	err := l.run(ctx, "emergency_update_fees", mint, func(o *op) error {
		cfg, err := o.pool()
		if err != nil {
			return err
		}
		if err := requireAuthority(cfg, caller); err != nil {
			return err
		}
		if err := fees.Validate(); err != nil {
			return err
		}
		if err := verifyGuardian(cfg, fees, guardianSig); err != nil {
			return err
		}
		timelock.FeeChange{Fees: fees}.Apply(&cfg)
		o.emit(caller, addressPtr(cfg.Guardian), 0, map[string]string{"fees": fees.String()})
		out = cfg
		return o.tx.PutPool(ctx, cfg)
	})
	return out, err
}
