// Package timelock implements the propose/execute/cancel state machine shared
// by every delayed governance change. A proposal starts in the proposed state
// and ends in exactly one of executed or cancelled.
package timelock

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"tokenLedger/internal/model"
)

// Delay is the fixed minimum wait between proposing and executing.
const Delay = 24 * time.Hour

var (
	ErrNotExpired      = errors.New("timelock period not expired")
	ErrAlreadyExecuted = errors.New("proposal already executed")
	ErrCancelled       = errors.New("proposal was cancelled")
	ErrInvalidPayload  = errors.New("invalid proposal payload")
)

// Payload is the change a proposal applies to its pool on execution.
type Payload interface {
	Kind() model.ProposalKind
	Validate() error
	Apply(cfg *model.PoolConfig)
	attach(p *model.Proposal)
}

// FeeChange replaces the pool's fee split.
type FeeChange struct {
	Fees model.FeeShares
}

func (FeeChange) Kind() model.ProposalKind { return model.ProposalFeeChange }

func (f FeeChange) Validate() error { return f.Fees.Validate() }

func (f FeeChange) Apply(cfg *model.PoolConfig) {
	cfg.Fees = f.Fees
	cfg.FeeNonce++
}

func (f FeeChange) attach(p *model.Proposal) {
	fees := f.Fees
	p.Fees = &fees
}

// AuthorityChange hands the pool to a new administrative authority.
type AuthorityChange struct {
	NewAuthority common.Address
}

func (AuthorityChange) Kind() model.ProposalKind { return model.ProposalAuthorityChange }

func (a AuthorityChange) Validate() error {
	if a.NewAuthority == (common.Address{}) {
		return fmt.Errorf("%w: new authority is the zero address", ErrInvalidPayload)
	}
	return nil
}

func (a AuthorityChange) Apply(cfg *model.PoolConfig) {
	cfg.Authority = a.NewAuthority
}

func (a AuthorityChange) attach(p *model.Proposal) {
	next := a.NewAuthority
	p.NewAuthority = &next
}

// PayloadOf rebuilds the typed payload stored on a proposal.
func PayloadOf(p model.Proposal) (Payload, error) {
	switch p.Kind {
	case model.ProposalFeeChange:
		if p.Fees == nil {
			return nil, fmt.Errorf("%w: fee proposal without fees", ErrInvalidPayload)
		}
		return FeeChange{Fees: *p.Fees}, nil
	case model.ProposalAuthorityChange:
		if p.NewAuthority == nil {
			return nil, fmt.Errorf("%w: authority proposal without authority", ErrInvalidPayload)
		}
		return AuthorityChange{NewAuthority: *p.NewAuthority}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, p.Kind)
	}
}

// Propose validates payload and returns a new live proposal.
func Propose(mint, proposer common.Address, payload Payload, now time.Time) (model.Proposal, error) {
	if payload == nil {
		return model.Proposal{}, fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	if err := payload.Validate(); err != nil {
		return model.Proposal{}, err
	}
	p := model.Proposal{
		ID:         uuid.New(),
		Mint:       mint,
		Kind:       payload.Kind(),
		Proposer:   proposer,
		ProposedAt: now.Unix(),
	}
	payload.attach(&p)
	return p, nil
}

// Execute applies the proposal to cfg once the delay has elapsed. Execution
// is single-shot and a cancelled proposal never executes.
func Execute(p *model.Proposal, cfg *model.PoolConfig, now time.Time) error {
	if p.Executed {
		return ErrAlreadyExecuted
	}
	if p.Cancelled {
		return ErrCancelled
	}
	if elapsed := now.Unix() - p.ProposedAt; elapsed < int64(Delay/time.Second) {
		return fmt.Errorf("%w: %ds of %ds elapsed", ErrNotExpired, elapsed, int64(Delay/time.Second))
	}
	payload, err := PayloadOf(*p)
	if err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	payload.Apply(cfg)
	p.Executed = true
	return nil
}

// Cancel permanently retires a proposal that has not executed.
func Cancel(p *model.Proposal) error {
	if p.Executed {
		return ErrAlreadyExecuted
	}
	if p.Cancelled {
		return ErrCancelled
	}
	p.Cancelled = true
	return nil
}

// ExecutableAt is the earliest time Execute can succeed.
func ExecutableAt(p model.Proposal) time.Time {
	return time.Unix(p.ProposedAt, 0).Add(Delay)
}
