package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"tokenLedger/internal/model"
)

// ErrNotFound is returned when a keyed record does not exist yet.
var ErrNotFound = errors.New("record not found")

// Reader exposes the records of one pool.
type Reader interface {
	Pool(ctx context.Context) (model.PoolConfig, error)
	Position(ctx context.Context, owner common.Address) (model.StakePosition, error)
	Positions(ctx context.Context) ([]model.StakePosition, error)
	Proposal(ctx context.Context, id uuid.UUID) (model.Proposal, error)
	// LiveProposal returns the non-terminal proposal of kind, if any.
	LiveProposal(ctx context.Context, kind model.ProposalKind) (model.Proposal, error)
	Proposals(ctx context.Context) ([]model.Proposal, error)
	Vault(ctx context.Context) (model.LPVault, error)
	Deployments(ctx context.Context) ([]model.LPDeployment, error)
	BurnRecord(ctx context.Context) (model.BurnRecord, error)
	Airdrop(ctx context.Context) (model.AirdropCampaign, error)
}

// Tx is a read-write view of one pool. Writes become visible to other
// callers only when the surrounding Update returns nil.
type Tx interface {
	Reader
	PutPool(ctx context.Context, cfg model.PoolConfig) error
	PutPosition(ctx context.Context, pos model.StakePosition) error
	PutProposal(ctx context.Context, p model.Proposal) error
	PutVault(ctx context.Context, v model.LPVault) error
	PutDeployment(ctx context.Context, d model.LPDeployment) error
	PutBurnRecord(ctx context.Context, r model.BurnRecord) error
	PutAirdrop(ctx context.Context, c model.AirdropCampaign) error
}

// Store persists ledger records. Update holds an exclusive lock on the pool
// for the duration of fn and discards every write if fn returns an error.
type Store interface {
	Update(ctx context.Context, mint common.Address, fn func(Tx) error) error
	View(ctx context.Context, mint common.Address, fn func(Reader) error) error
	Mints(ctx context.Context) ([]common.Address, error)
	Close() error
}

// EventSink receives events of committed operations.
type EventSink interface {
	Publish(ctx context.Context, events []model.Event) error
}

// EventLog is an EventSink that can be read back.
type EventLog interface {
	EventSink
	Events(ctx context.Context, mint common.Address, limit int) ([]model.Event, error)
}
