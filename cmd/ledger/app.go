package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenLedger/internal/chain"
	"tokenLedger/internal/config"
	"tokenLedger/internal/custody"
	"tokenLedger/internal/ledger"
	"tokenLedger/internal/storage"
	"tokenLedger/internal/storage/postgres"
	"tokenLedger/internal/transfer"
)

// app is the wired process state shared by every subcommand.
type app struct {
	ctx    context.Context
	cfg    config.Config
	logger *zap.Logger
	ledger *ledger.Ledger
	issuer *custody.Issuer
	store  storage.Store
	events storage.EventLog

	book  *transfer.Book
	erc20 *transfer.ERC20
	// custodyAccounts is set for the erc20 backend, where custody addresses
	// must match the configured keys instead of derived ones.
	custodyAccounts *custody.Accounts

	closers []func() error
}

// openApp loads configuration and wires the ledger. The caller must call
// close.
func openApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	a := &app{ctx: ctx, cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() error { stop(); return nil })

	if err := a.wire(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	issuer, err := custody.NewIssuer()
	if err != nil {
		return err
	}
	a.issuer = issuer

	if err := a.openStore(); err != nil {
		return err
	}

	var svc transfer.Service
	switch a.cfg.Transfer {
	case config.TransferBook:
		if err := a.openBook(); err != nil {
			return err
		}
		svc = a.book
	case config.TransferERC20:
		if err := a.openERC20(); err != nil {
			return err
		}
		svc = a.erc20
	}

	var clock clockwork.Clock = clockwork.NewRealClock()
	if !a.cfg.Now.IsZero() {
		clock = clockwork.NewFakeClockAt(a.cfg.Now)
		a.logger.Info("evaluating at fixed time", zap.Time("now", a.cfg.Now))
	}

	var sink storage.EventSink
	if a.events != nil {
		sink = a.events
	}
	a.ledger, err = ledger.New(ledger.Config{
		Store:    a.store,
		Transfer: svc,
		Issuer:   issuer,
		Clock:    clock,
		Sink:     sink,
		Logger:   a.logger,
	})
	return err
}

func (a *app) openStore() error {
	switch a.cfg.Store {
	case config.StorePostgres:
		if a.cfg.RunMigrations {
			if err := postgres.Migrate(a.ctx, a.cfg.PGDSN, a.logger); err != nil {
				return err
			}
		}
		store, err := postgres.NewStore(a.ctx, a.cfg.PGDSN)
		if err != nil {
			return err
		}
		a.store, a.events = store, store
		a.closers = append(a.closers, store.Close)
		return nil
	case config.StoreFile:
		store, err := storage.OpenFile(a.cfg.StateFile)
		if err != nil {
			return err
		}
		a.store = store
	default:
		a.store = storage.NewMemory()
	}
	if a.cfg.Journal != "" {
		journal, err := storage.OpenJournal(a.cfg.Journal)
		if err != nil {
			return err
		}
		a.events = journal
	}
	return nil
}

func (a *app) openBook() error {
	a.book = transfer.NewBook(a.issuer.Verifier(), a.logger)
	if a.cfg.BookFile == "" {
		return nil
	}
	var state transfer.BookState
	ok, err := storage.ReadJSONFile(a.cfg.BookFile, &state)
	if err != nil {
		return fmt.Errorf("load book: %w", err)
	}
	if ok {
		a.book.Restore(state)
	}
	a.closers = append(a.closers, func() error {
		if err := storage.WriteJSONFile(a.cfg.BookFile, a.book.Snapshot()); err != nil {
			return fmt.Errorf("save book: %w", err)
		}
		return nil
	})
	return nil
}

func (a *app) openERC20() error {
	operator, err := parseKey(a.cfg.OperatorKey)
	if err != nil {
		return fmt.Errorf("operator key: %w", err)
	}
	keys := make([]*ecdsa.PrivateKey, 0, len(a.cfg.CustodyKeys))
	for i, raw := range a.cfg.CustodyKeys {
		key, err := parseKey(raw)
		if err != nil {
			return fmt.Errorf("custody key %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	a.custodyAccounts = &custody.Accounts{
		StakeVault: crypto.PubkeyToAddress(keys[0].PublicKey),
		RewardPool: crypto.PubkeyToAddress(keys[1].PublicKey),
		LPVault:    crypto.PubkeyToAddress(keys[2].PublicKey),
	}

	client, err := chain.NewClient(a.ctx, a.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	a.closers = append(a.closers, func() error { client.Close(); return nil })

	a.erc20, err = transfer.NewERC20(client, transfer.ERC20Options{
		Operator:    operator,
		CustodyKeys: keys,
		Verifier:    a.issuer.Verifier(),
		MaxRetries:  a.cfg.MaxRetries,
		RetryDelay:  a.cfg.RetryDelay,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	a.logger.Info("erc20 transfer backend ready",
		zap.String("rpc", a.cfg.RPCURL),
		zap.String("operator", a.erc20.OperatorAddress().Hex()),
	)
	return nil
}

// pin makes the issuer resolve mint to the keyed custody accounts when the
// erc20 backend is in use.
func (a *app) pin(mint common.Address) {
	if a.custodyAccounts != nil {
		a.issuer.Override(mint, *a.custodyAccounts)
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Error("shutdown step failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func parseKey(raw string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
}

// withApp wraps a RunE body with app setup and teardown.
func withApp(fn func(a *app, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(a, cmd)
	}
}
