package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
)

var (
	mint  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000000")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000000")
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("LEDGER_PG_TESTS") != "1" {
		t.Skip("set LEDGER_PG_TESTS=1 to run postgres integration tests")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, dsn, nil))

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	huge, err := model.ParseWide("340282366920938463463374607431768211455")
	require.NoError(t, err)
	cfg := model.PoolConfig{
		Mint:                mint,
		Decimals:            9,
		Authority:           alice,
		StakeVault:          common.HexToAddress("0x01"),
		RewardPool:          common.HexToAddress("0x02"),
		LPCustody:           common.HexToAddress("0x03"),
		Fees:                model.FeeShares{ReflectionBps: 200, LPBps: 200, BurnBps: 100},
		TotalStaked:         ^uint64(0),
		AccumulatedPerShare: huge,
		CreatedAt:           1_700_000_000,
	}
	fees := model.FeeShares{ReflectionBps: 300, LPBps: 100, BurnBps: 100}
	proposal := model.Proposal{ID: uuid.New(), Mint: mint, Kind: model.ProposalFeeChange, Proposer: alice, ProposedAt: 5, Fees: &fees}

	require.NoError(t, store.Update(ctx, mint, func(tx storage.Tx) error {
		if err := tx.PutPool(ctx, cfg); err != nil {
			return err
		}
		if err := tx.PutPosition(ctx, model.StakePosition{Mint: mint, Owner: bob, StakedAmount: 10, RewardDebt: model.WideFrom(uint256.NewInt(77))}); err != nil {
			return err
		}
		if err := tx.PutProposal(ctx, proposal); err != nil {
			return err
		}
		if err := tx.PutVault(ctx, model.LPVault{Mint: mint, Authority: alice, TotalAllocated: 5, TotalDeployed: 2, PendingDeployment: 3}); err != nil {
			return err
		}
		return tx.PutDeployment(ctx, model.LPDeployment{Mint: mint, Seq: 1, Target: bob, Amount: 2, SharesReceived: 9, DeployedAt: 4})
	}))

	require.NoError(t, store.View(ctx, mint, func(r storage.Reader) error {
		got, err := r.Pool(ctx)
		require.NoError(t, err)
		require.Equal(t, cfg, got)

		pos, err := r.Position(ctx, bob)
		require.NoError(t, err)
		require.Equal(t, "77", pos.RewardDebt.String())

		live, err := r.LiveProposal(ctx, model.ProposalFeeChange)
		require.NoError(t, err)
		require.Equal(t, proposal.ID, live.ID)
		require.Equal(t, fees, *live.Fees)

		deps, err := r.Deployments(ctx)
		require.NoError(t, err)
		require.Len(t, deps, 1)
		require.Equal(t, uint64(9), deps[0].SharesReceived)

		_, err = r.BurnRecord(ctx)
		require.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	}))
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Update(ctx, mint, func(tx storage.Tx) error {
		if err := tx.PutPool(ctx, model.PoolConfig{Mint: mint, Fees: model.FeeShares{ReflectionBps: 200, LPBps: 200, BurnBps: 100}}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	mints, err := store.Mints(ctx)
	require.NoError(t, err)
	require.Empty(t, mints)
}

func TestStoreEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, []model.Event{
		{Mint: mint, Operation: "stake", Actor: bob, Amount: 10, Timestamp: 1},
		{Mint: mint, Operation: "claim", Actor: bob, Amount: 1, Timestamp: 2, Attributes: map[string]string{"source": "test"}},
	}))
	events, err := store.Events(ctx, mint, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "claim", events[0].Operation)
	require.Equal(t, "test", events[0].Attributes["source"])
}
