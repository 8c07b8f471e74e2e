// Package ledger is the reward-accrual ledger and governance core. Every
// operation runs as one store transaction: preconditions are checked, new
// records are computed, value is moved through the transfer service, and
// only then are the records written. A failed transfer leaves the pool
// untouched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"tokenLedger/internal/custody"
	"tokenLedger/internal/metrics"
	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
	"tokenLedger/internal/transfer"
)

// Config wires a Ledger to its collaborators.
type Config struct {
	Store    storage.Store
	Transfer transfer.Service
	// Issuer grants the capabilities that move funds out of custody. It must
	// not be shared with anything outside the ledger.
	Issuer *custody.Issuer
	Clock  clockwork.Clock
	Sink   storage.EventSink
	Logger *zap.Logger
}

type Ledger struct {
	store    storage.Store
	transfer transfer.Service
	issuer   *custody.Issuer
	clock    clockwork.Clock
	sink     storage.EventSink
	logger   *zap.Logger
}

func New(cfg Config) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if cfg.Transfer == nil {
		return nil, fmt.Errorf("transfer service is required")
	}
	if cfg.Issuer == nil {
		return nil, fmt.Errorf("custody issuer is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Ledger{
		store:    cfg.Store,
		transfer: cfg.Transfer,
		issuer:   cfg.Issuer,
		clock:    cfg.Clock,
		sink:     cfg.Sink,
		logger:   cfg.Logger,
	}, nil
}

// op is the state of one running operation.
type op struct {
	ctx    context.Context
	l      *Ledger
	tx     storage.Tx
	name   string
	mint   common.Address
	now    time.Time
	moved  bool
	events []model.Event
}

func (l *Ledger) run(ctx context.Context, name string, mint common.Address, fn func(o *op) error) error {
	start := time.Now()
	now := l.clock.Now()

	var o *op
	err := l.store.Update(ctx, mint, func(tx storage.Tx) error {
		o = &op{ctx: ctx, l: l, tx: tx, name: name, mint: mint, now: now}
		return fn(o)
	})

	status := metrics.StatusOK
	if err != nil {
		status = string(Classify(err))
	}
	metrics.ObserveOperation(name, status, time.Since(start))

	if err != nil {
		if o != nil && o.moved {
			// Value left an account but the records were not written.
			l.logger.Error("ledger commit failed after value moved",
				zap.String("operation", name),
				zap.String("pool", mint.Hex()),
				zap.Error(err),
			)
		} else {
			l.logger.Warn("ledger operation rejected",
				zap.String("operation", name),
				zap.String("pool", mint.Hex()),
				zap.String("class", status),
				zap.Error(err),
			)
		}
		return err
	}

	for _, e := range o.events {
		fields := []zap.Field{
			zap.String("operation", e.Operation),
			zap.String("pool", mint.Hex()),
			zap.String("caller", e.Actor.Hex()),
		}
		if e.Amount > 0 {
			fields = append(fields, zap.Uint64("amount", e.Amount))
		}
		for k, v := range e.Attributes {
			fields = append(fields, zap.String(k, v))
		}
		l.logger.Info("ledger operation", fields...)
	}
	l.publish(ctx, o.events)
	return nil
}

func (l *Ledger) publish(ctx context.Context, events []model.Event) {
	if l.sink == nil || len(events) == 0 {
		return
	}
	if err := l.sink.Publish(ctx, events); err != nil {
		l.logger.Warn("event sink publish failed", zap.Int("events", len(events)), zap.Error(err))
	}
}

// move performs a value movement. It must be the last fallible step before
// records are written.
func (o *op) move(t transfer.Transfer) error {
	err := o.l.transfer.MoveValue(o.ctx, t)
	metrics.ObserveTransfer("move", err)
	if err != nil {
		return fmt.Errorf("%w: move %d from %s: %w", ErrTransferFailed, t.Amount, t.From.Hex(), err)
	}
	o.moved = true
	return nil
}

func (o *op) destroy(b transfer.Burn) error {
	err := o.l.transfer.Destroy(o.ctx, b)
	metrics.ObserveTransfer("destroy", err)
	if err != nil {
		return fmt.Errorf("%w: burn %d from %s: %w", ErrTransferFailed, b.Amount, b.Account.Hex(), err)
	}
	o.moved = true
	return nil
}

func (o *op) emit(actor common.Address, subject *common.Address, amount uint64, attrs map[string]string) {
	o.events = append(o.events, model.Event{
		Mint:       o.mint,
		Operation:  o.name,
		Actor:      actor,
		Subject:    subject,
		Amount:     amount,
		Timestamp:  o.now.Unix(),
		Attributes: attrs,
	})
}

func (o *op) pool() (model.PoolConfig, error) {
	cfg, err := o.tx.Pool(o.ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return model.PoolConfig{}, fmt.Errorf("%w: %s", ErrPoolNotFound, o.mint.Hex())
	}
	return cfg, err
}

func (o *op) position(owner common.Address) (model.StakePosition, error) {
	pos, err := o.tx.Position(o.ctx, owner)
	if errors.Is(err, storage.ErrNotFound) {
		return model.NewStakePosition(o.mint, owner), nil
	}
	return pos, err
}

func (o *op) vault() (model.LPVault, error) {
	v, err := o.tx.Vault(o.ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return model.LPVault{}, fmt.Errorf("%w: %s", ErrVaultNotFound, o.mint.Hex())
	}
	return v, err
}

func addressPtr(a common.Address) *common.Address {
	return &a
}
