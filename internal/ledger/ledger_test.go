package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"tokenLedger/internal/custody"
	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
	"tokenLedger/internal/timelock"
	"tokenLedger/internal/transfer"
)

var (
	mint      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	authority = common.HexToAddress("0xa000000000000000000000000000000000000001")
	alice     = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob       = common.HexToAddress("0xb0b0000000000000000000000000000000000001")
	target    = common.HexToAddress("0xd000000000000000000000000000000000000001")

	defaultFees = model.FeeShares{ReflectionBps: 200, LPBps: 200, BurnBps: 100}
	altFees     = model.FeeShares{ReflectionBps: 300, LPBps: 100, BurnBps: 100}
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *recordingSink) Publish(_ context.Context, events []model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *recordingSink) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		out = append(out, e.Operation)
	}
	return out
}

type harness struct {
	ctx    context.Context
	l      *Ledger
	book   *transfer.Book
	clock  fakeClock
	sink   *recordingSink
	issuer *custody.Issuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	issuer, err := custody.NewIssuer()
	require.NoError(t, err)
	book := transfer.NewBook(issuer.Verifier(), nil)
	book.RegisterMint(mint, 9)
	for _, acct := range []common.Address{authority, alice, bob} {
		require.NoError(t, book.Mint(mint, acct, 1_000_000))
	}
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	sink := &recordingSink{}
	l, err := New(Config{
		Store:    storage.NewMemory(),
		Transfer: book,
		Issuer:   issuer,
		Clock:    clock,
		Sink:     sink,
	})
	require.NoError(t, err)
	return &harness{ctx: context.Background(), l: l, book: book, clock: clock, sink: sink, issuer: issuer}
}

func (h *harness) initPool(t *testing.T, guardian common.Address) model.PoolConfig {
	t.Helper()
	cfg, err := h.l.InitializePool(h.ctx, InitParams{Mint: mint, Authority: authority, Fees: defaultFees, Guardian: guardian})
	require.NoError(t, err)
	return cfg
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestInitializePool(t *testing.T) {
	h := newHarness(t)
	cfg := h.initPool(t, common.Address{})

	accounts := h.issuer.Accounts(mint)
	require.Equal(t, uint8(9), cfg.Decimals)
	require.Equal(t, authority, cfg.Authority)
	require.Equal(t, accounts.StakeVault, cfg.StakeVault)
	require.Equal(t, accounts.RewardPool, cfg.RewardPool)
	require.Equal(t, accounts.LPVault, cfg.LPCustody)
	require.True(t, cfg.AccumulatedPerShare.IsZero())
	require.False(t, cfg.IsPaused)

	_, err := h.l.InitializePool(h.ctx, InitParams{Mint: mint, Authority: authority, Fees: defaultFees})
	require.ErrorIs(t, err, ErrPoolExists)
}

func TestInitializePoolRejectsBadFees(t *testing.T) {
	h := newHarness(t)
	_, err := h.l.InitializePool(h.ctx, InitParams{
		Mint:      mint,
		Authority: authority,
		Fees:      model.FeeShares{ReflectionBps: 200, LPBps: 200, BurnBps: 200},
	})
	require.ErrorIs(t, err, model.ErrInvalidFeeConfig)
	require.Equal(t, ClassValidation, Classify(err))

	_, err = h.l.Pool(h.ctx, mint)
	require.ErrorIs(t, err, ErrPoolNotFound)
}

func TestOperationsOnMissingPool(t *testing.T) {
	h := newHarness(t)
	_, err := h.l.Stake(h.ctx, mint, alice, 10)
	require.ErrorIs(t, err, ErrPoolNotFound)
	_, err = h.l.ProposeFeeUpdate(h.ctx, mint, authority, altFees)
	require.ErrorIs(t, err, ErrPoolNotFound)
}

func TestClaimSingleStaker(t *testing.T) {
	h := newHarness(t)
	cfg := h.initPool(t, common.Address{})

	_, err := h.l.Stake(h.ctx, mint, alice, 1000)
	require.NoError(t, err)
	_, err = h.l.DepositReflections(h.ctx, mint, authority, 100)
	require.NoError(t, err)

	view, err := h.l.Position(h.ctx, mint, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), view.Claimable)

	before := h.book.Balance(mint, alice)
	claimed, err := h.l.Claim(h.ctx, mint, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), claimed)
	require.Equal(t, before+100, h.book.Balance(mint, alice))
	require.Zero(t, h.book.Balance(mint, cfg.RewardPool))

	pool, err := h.l.Pool(h.ctx, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(100), pool.TotalReflectionsDistributed)
	require.Zero(t, pool.PendingReflections)

	_, err = h.l.Claim(h.ctx, mint, alice)
	require.ErrorIs(t, err, ErrNothingToClaim)
}

func TestRewardsSplitByStake(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	_, err := h.l.Stake(h.ctx, mint, alice, 300)
	require.NoError(t, err)
	_, err = h.l.Stake(h.ctx, mint, bob, 100)
	require.NoError(t, err)
	_, err = h.l.DepositReflections(h.ctx, mint, authority, 400)
	require.NoError(t, err)

	a, err := h.l.Claim(h.ctx, mint, alice)
	require.NoError(t, err)
	b, err := h.l.Claim(h.ctx, mint, bob)
	require.NoError(t, err)
	require.Equal(t, uint64(300), a)
	require.Equal(t, uint64(100), b)
}

func TestLateStakerEarnsOnlyLaterDeposits(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	_, err := h.l.Stake(h.ctx, mint, alice, 100)
	require.NoError(t, err)
	_, err = h.l.DepositReflections(h.ctx, mint, authority, 100)
	require.NoError(t, err)
	_, err = h.l.Stake(h.ctx, mint, bob, 100)
	require.NoError(t, err)

	view, err := h.l.Position(h.ctx, mint, bob)
	require.NoError(t, err)
	require.Zero(t, view.Claimable)

	_, err = h.l.DepositReflections(h.ctx, mint, authority, 200)
	require.NoError(t, err)

	a, err := h.l.Position(h.ctx, mint, alice)
	require.NoError(t, err)
	b, err := h.l.Position(h.ctx, mint, bob)
	require.NoError(t, err)
	require.Equal(t, uint64(200), a.Claimable)
	require.Equal(t, uint64(100), b.Claimable)
}

func TestUnstakeBanksRewards(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	_, err := h.l.Stake(h.ctx, mint, alice, 1000)
	require.NoError(t, err)
	_, err = h.l.DepositReflections(h.ctx, mint, authority, 100)
	require.NoError(t, err)

	pos, err := h.l.Unstake(h.ctx, mint, alice, 1000)
	require.NoError(t, err)
	require.Zero(t, pos.StakedAmount)
	require.Equal(t, uint64(100), pos.PendingRewards)
	require.Equal(t, uint64(1_000_000), h.book.Balance(mint, alice))

	claimed, err := h.l.Claim(h.ctx, mint, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100), claimed)

	_, err = h.l.Unstake(h.ctx, mint, alice, 1)
	require.ErrorIs(t, err, ErrInsufficientStake)
}

func TestDepositWithNothingStaked(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	cfg, err := h.l.DepositReflections(h.ctx, mint, authority, 500)
	require.NoError(t, err)
	require.True(t, cfg.AccumulatedPerShare.IsZero())
	require.Equal(t, uint64(500), cfg.PendingReflections)

	_, err = h.l.DepositReflections(h.ctx, mint, alice, 10)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, ClassAuthorization, Classify(err))
}

func TestZeroAmountsRejected(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	_, err := h.l.Stake(h.ctx, mint, alice, 0)
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = h.l.Unstake(h.ctx, mint, alice, 0)
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = h.l.DepositReflections(h.ctx, mint, authority, 0)
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = h.l.Burn(h.ctx, mint, authority, 0)
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestPauseOnlyBlocksStake(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	_, err := h.l.Stake(h.ctx, mint, alice, 500)
	require.NoError(t, err)
	_, err = h.l.DepositReflections(h.ctx, mint, authority, 50)
	require.NoError(t, err)

	require.ErrorIs(t, h.l.SetPaused(h.ctx, mint, alice, true), ErrUnauthorized)
	require.NoError(t, h.l.SetPaused(h.ctx, mint, authority, true))

	_, err = h.l.Stake(h.ctx, mint, bob, 10)
	require.ErrorIs(t, err, ErrPaused)
	require.Equal(t, ClassState, Classify(err))

	_, err = h.l.Unstake(h.ctx, mint, alice, 200)
	require.NoError(t, err)
	claimed, err := h.l.Claim(h.ctx, mint, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(50), claimed)
	_, err = h.l.DepositReflections(h.ctx, mint, authority, 10)
	require.NoError(t, err)

	require.NoError(t, h.l.SetPaused(h.ctx, mint, authority, false))
	_, err = h.l.Stake(h.ctx, mint, bob, 10)
	require.NoError(t, err)
}

func TestFailedTransferLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	cfg := h.initPool(t, common.Address{})
	poor := common.HexToAddress("0xdead000000000000000000000000000000000001")
	require.NoError(t, h.book.Mint(mint, poor, 50))

	_, err := h.l.Stake(h.ctx, mint, poor, 100)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorIs(t, err, transfer.ErrInsufficientBalance)
	require.Equal(t, ClassTransfer, Classify(err))

	pool, err := h.l.Pool(h.ctx, mint)
	require.NoError(t, err)
	require.Zero(t, pool.TotalStaked)
	view, err := h.l.Position(h.ctx, mint, poor)
	require.NoError(t, err)
	require.Zero(t, view.StakedAmount)
	require.Equal(t, uint64(50), h.book.Balance(mint, poor))
	require.Zero(t, h.book.Balance(mint, cfg.StakeVault))

	ops := h.sink.operations()
	require.NotContains(t, ops, "stake")
}

func TestCustodyCannotBeDrainedWithoutCapability(t *testing.T) {
	h := newHarness(t)
	cfg := h.initPool(t, common.Address{})
	_, err := h.l.Stake(h.ctx, mint, alice, 100)
	require.NoError(t, err)

	err = h.book.MoveValue(h.ctx, transfer.Transfer{
		Mint:      mint,
		From:      cfg.StakeVault,
		To:        bob,
		Amount:    100,
		Decimals:  9,
		Authority: transfer.SignedBy(cfg.StakeVault),
	})
	require.ErrorIs(t, err, transfer.ErrUnauthorized)
	require.Equal(t, uint64(100), h.book.Balance(mint, cfg.StakeVault))
}

func TestStakeConservation(t *testing.T) {
	h := newHarness(t)
	cfg := h.initPool(t, common.Address{})

	steps := []struct {
		who    common.Address
		stake  bool
		amount uint64
	}{
		{alice, true, 400},
		{bob, true, 250},
		{alice, false, 150},
		{authority, true, 75},
		{bob, false, 250},
		{alice, true, 10},
	}
	for _, s := range steps {
		var err error
		if s.stake {
			_, err = h.l.Stake(h.ctx, mint, s.who, s.amount)
		} else {
			_, err = h.l.Unstake(h.ctx, mint, s.who, s.amount)
		}
		require.NoError(t, err)
	}

	report, err := h.l.Audit(h.ctx, mint)
	require.NoError(t, err)
	require.True(t, report.OK(), report.Violations)
	require.Equal(t, uint64(335), report.TotalStaked)
	require.Equal(t, report.TotalStaked, report.SumStaked)
	require.Equal(t, uint64(335), h.book.Balance(mint, cfg.StakeVault))

	positions, err := h.l.Positions(h.ctx, mint)
	require.NoError(t, err)
	require.Len(t, positions, 3)
}

func TestFeeTimelock(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	p, err := h.l.ProposeFeeUpdate(h.ctx, mint, authority, altFees)
	require.NoError(t, err)
	require.Equal(t, model.ProposalFeeChange, p.Kind)

	_, err = h.l.ProposeFeeUpdate(h.ctx, mint, authority, altFees)
	require.ErrorIs(t, err, ErrProposalPending)

	h.clock.Advance(3600 * time.Second)
	_, err = h.l.ExecuteFeeUpdate(h.ctx, mint, authority, p.ID)
	require.ErrorIs(t, err, timelock.ErrNotExpired)
	require.Equal(t, ClassGovernance, Classify(err))

	pool, err := h.l.Pool(h.ctx, mint)
	require.NoError(t, err)
	require.Equal(t, defaultFees, pool.Fees)

	h.clock.Advance(86400*time.Second - 3600*time.Second)
	cfg, err := h.l.ExecuteFeeUpdate(h.ctx, mint, authority, p.ID)
	require.NoError(t, err)
	require.Equal(t, altFees, cfg.Fees)
	require.Equal(t, uint64(1), cfg.FeeNonce)

	_, err = h.l.ExecuteFeeUpdate(h.ctx, mint, authority, p.ID)
	require.ErrorIs(t, err, timelock.ErrAlreadyExecuted)

	stored, err := h.l.Proposal(h.ctx, mint, p.ID)
	require.NoError(t, err)
	require.Equal(t, "executed", stored.Status())
}

func TestProposeRejectsInvalidFees(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})
	_, err := h.l.ProposeFeeUpdate(h.ctx, mint, authority, model.FeeShares{ReflectionBps: 500, LPBps: 1})
	require.ErrorIs(t, err, model.ErrInvalidFeeConfig)
	_, err = h.l.ProposeFeeUpdate(h.ctx, mint, alice, altFees)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCancelIsPermanent(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	p, err := h.l.ProposeFeeUpdate(h.ctx, mint, authority, altFees)
	require.NoError(t, err)
	cancelled, err := h.l.CancelFeeProposal(h.ctx, mint, authority, p.ID)
	require.NoError(t, err)
	require.True(t, cancelled.Cancelled)

	h.clock.Advance(timelock.Delay)
	_, err = h.l.ExecuteFeeUpdate(h.ctx, mint, authority, p.ID)
	require.ErrorIs(t, err, timelock.ErrCancelled)
	_, err = h.l.CancelFeeProposal(h.ctx, mint, authority, p.ID)
	require.ErrorIs(t, err, timelock.ErrCancelled)

	// A cancelled proposal no longer blocks a new one.
	_, err = h.l.ProposeFeeUpdate(h.ctx, mint, authority, altFees)
	require.NoError(t, err)
}

func TestWrongProposalKind(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	p, err := h.l.ProposeAuthorityTransfer(h.ctx, mint, authority, bob)
	require.NoError(t, err)
	h.clock.Advance(timelock.Delay)
	_, err = h.l.ExecuteFeeUpdate(h.ctx, mint, authority, p.ID)
	require.ErrorIs(t, err, ErrWrongProposalKind)
}

func TestAuthorityTransfer(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	fee, err := h.l.ProposeFeeUpdate(h.ctx, mint, authority, altFees)
	require.NoError(t, err)
	p, err := h.l.ProposeAuthorityTransfer(h.ctx, mint, authority, bob)
	require.NoError(t, err)
	require.Equal(t, bob, *p.NewAuthority)

	_, err = h.l.ProposeAuthorityTransfer(h.ctx, mint, authority, common.Address{})
	require.ErrorIs(t, err, ErrProposalPending)

	h.clock.Advance(timelock.Delay)
	cfg, err := h.l.ExecuteAuthorityTransfer(h.ctx, mint, authority, p.ID)
	require.NoError(t, err)
	require.Equal(t, bob, cfg.Authority)

	require.ErrorIs(t, h.l.SetPaused(h.ctx, mint, authority, true), ErrUnauthorized)
	require.NoError(t, h.l.SetPaused(h.ctx, mint, bob, true))

	// The fee proposal is still live but only its proposer may run it.
	_, err = h.l.ExecuteFeeUpdate(h.ctx, mint, bob, fee.ID)
	require.ErrorIs(t, err, ErrNotProposer)
	_, err = h.l.ExecuteFeeUpdate(h.ctx, mint, authority, fee.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.l.CancelFeeProposal(h.ctx, mint, bob, fee.ID)
	require.NoError(t, err)
}

func TestCancelAuthorityTransfer(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})

	p, err := h.l.ProposeAuthorityTransfer(h.ctx, mint, authority, bob)
	require.NoError(t, err)
	_, err = h.l.CancelAuthorityTransfer(h.ctx, mint, alice, p.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.l.CancelAuthorityTransfer(h.ctx, mint, authority, p.ID)
	require.NoError(t, err)

	h.clock.Advance(timelock.Delay)
	_, err = h.l.ExecuteAuthorityTransfer(h.ctx, mint, authority, p.ID)
	require.ErrorIs(t, err, timelock.ErrCancelled)

	cfg, err := h.l.Pool(h.ctx, mint)
	require.NoError(t, err)
	require.Equal(t, authority, cfg.Authority)
}

func TestEmergencyUpdateWithGuardian(t *testing.T) {
	h := newHarness(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg := h.initPool(t, crypto.PubkeyToAddress(key.PublicKey))

	sig, err := SignEmergency(key, cfg, altFees)
	require.NoError(t, err)

	_, err = h.l.EmergencyUpdateFees(h.ctx, mint, authority, altFees, nil)
	require.ErrorIs(t, err, ErrGuardianRequired)
	_, err = h.l.EmergencyUpdateFees(h.ctx, mint, alice, altFees, sig)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.l.EmergencyUpdateFees(h.ctx, mint, authority, defaultFees, sig)
	require.ErrorIs(t, err, ErrInvalidGuardian)

	updated, err := h.l.EmergencyUpdateFees(h.ctx, mint, authority, altFees, sig)
	require.NoError(t, err)
	require.Equal(t, altFees, updated.Fees)
	require.Equal(t, uint64(1), updated.FeeNonce)

	// The nonce moved, so the same signature cannot be replayed.
	_, err = h.l.EmergencyUpdateFees(h.ctx, mint, authority, altFees, sig)
	require.ErrorIs(t, err, ErrInvalidGuardian)
}

func TestEmergencyAcceptsEthereumStyleV(t *testing.T) {
	h := newHarness(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg := h.initPool(t, crypto.PubkeyToAddress(key.PublicKey))

	sig, err := SignEmergency(key, cfg, altFees)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	_, err = h.l.EmergencyUpdateFees(h.ctx, mint, authority, altFees, sig)
	require.NoError(t, err)
}

func TestEmergencyRejectsOtherSigner(t *testing.T) {
	h := newHarness(t)
	guardian, err := crypto.GenerateKey()
	require.NoError(t, err)
	imposter, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg := h.initPool(t, crypto.PubkeyToAddress(guardian.PublicKey))

	sig, err := SignEmergency(imposter, cfg, altFees)
	require.NoError(t, err)
	_, err = h.l.EmergencyUpdateFees(h.ctx, mint, authority, altFees, sig)
	require.ErrorIs(t, err, ErrInvalidGuardian)
	require.Equal(t, ClassAuthorization, Classify(err))

	_, err = h.l.EmergencyUpdateFees(h.ctx, mint, authority, altFees, sig[:10])
	require.ErrorIs(t, err, ErrInvalidGuardian)
}

func TestEmergencyWithoutGuardian(t *testing.T) {
	h := newHarness(t)
	cfg := h.initPool(t, common.Address{})
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := SignEmergency(key, cfg, altFees)
	require.NoError(t, err)

	_, err = h.l.EmergencyUpdateFees(h.ctx, mint, authority, altFees, sig)
	require.ErrorIs(t, err, ErrGuardianRequired)
}

func TestGuardianMustDifferFromAuthority(t *testing.T) {
	h := newHarness(t)
	_, err := h.l.InitializePool(h.ctx, InitParams{Mint: mint, Authority: authority, Fees: defaultFees, Guardian: authority})
	require.ErrorIs(t, err, ErrInvalidGuardian)
}

func TestLPVaultLifecycle(t *testing.T) {
	h := newHarness(t)
	cfg := h.initPool(t, common.Address{})

	_, err := h.l.AllocateToLP(h.ctx, mint, authority, 100)
	require.ErrorIs(t, err, ErrVaultNotFound)

	_, err = h.l.InitializeLPVault(h.ctx, mint, alice)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.l.InitializeLPVault(h.ctx, mint, authority)
	require.NoError(t, err)
	_, err = h.l.InitializeLPVault(h.ctx, mint, authority)
	require.ErrorIs(t, err, ErrVaultExists)

	v, err := h.l.AllocateToLP(h.ctx, mint, authority, 500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), v.TotalAllocated)
	require.Equal(t, uint64(500), v.PendingDeployment)
	require.Equal(t, uint64(500), h.book.Balance(mint, cfg.LPCustody))
	require.Equal(t, uint64(999_500), h.book.Balance(mint, authority))

	d, err := h.l.RecordLPDeployment(h.ctx, mint, authority, 200, 42, target)
	require.NoError(t, err)
	require.Equal(t, uint64(1), d.Seq)
	require.Equal(t, uint64(42), d.SharesReceived)
	require.Equal(t, target, d.Target)
	// Deployments happen elsewhere; custody is untouched.
	require.Equal(t, uint64(500), h.book.Balance(mint, cfg.LPCustody))

	_, err = h.l.RecordLPDeployment(h.ctx, mint, authority, 400, 0, target)
	require.ErrorIs(t, err, ErrInsufficientPending)

	v, err = h.l.WithdrawFromLPVault(h.ctx, mint, authority, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(400), v.TotalAllocated)
	require.Equal(t, uint64(200), v.TotalDeployed)
	require.Equal(t, uint64(200), v.PendingDeployment)
	require.Equal(t, uint64(100), v.TotalWithdrawn)
	require.Equal(t, uint64(999_600), h.book.Balance(mint, authority))

	_, err = h.l.WithdrawFromLPVault(h.ctx, mint, authority, 201)
	require.ErrorIs(t, err, ErrInsufficientPending)

	deployments, err := h.l.Deployments(h.ctx, mint)
	require.NoError(t, err)
	require.Len(t, deployments, 1)

	report, err := h.l.Audit(h.ctx, mint)
	require.NoError(t, err)
	require.True(t, report.LPConserved)
	require.True(t, report.OK(), report.Violations)
}

func TestLPWorksWhilePaused(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})
	_, err := h.l.InitializeLPVault(h.ctx, mint, authority)
	require.NoError(t, err)
	require.NoError(t, h.l.SetPaused(h.ctx, mint, authority, true))

	_, err = h.l.AllocateToLP(h.ctx, mint, authority, 10)
	require.NoError(t, err)
	_, err = h.l.WithdrawFromLPVault(h.ctx, mint, authority, 10)
	require.NoError(t, err)
}

func TestBurn(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})
	supply := h.book.Supply(mint)

	rec, err := h.l.Burn(h.ctx, mint, authority, 250)
	require.NoError(t, err)
	require.Equal(t, uint64(250), rec.TotalBurned)
	require.Equal(t, uint64(1), rec.BurnCount)
	require.Equal(t, supply-250, h.book.Supply(mint))

	_, err = h.l.Burn(h.ctx, mint, alice, 1)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.l.Burn(h.ctx, mint, authority, 10_000_000)
	require.ErrorIs(t, err, ErrTransferFailed)

	rec, err = h.l.BurnRecord(h.ctx, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.BurnCount)
}

func TestRegisterAirdropMovesNothing(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})
	before := h.book.Snapshot()

	c, err := h.l.RegisterAirdrop(h.ctx, mint, authority, []common.Address{alice, bob, target}, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(30), c.TotalAirdropped)
	require.Equal(t, uint64(3), c.RecipientCount)
	require.Equal(t, before, h.book.Snapshot())

	_, err = h.l.RegisterAirdrop(h.ctx, mint, authority, nil, 10)
	require.NoError(t, err)

	tooMany := make([]common.Address, MaxAirdropRecipients+1)
	_, err = h.l.RegisterAirdrop(h.ctx, mint, authority, tooMany, 10)
	require.ErrorIs(t, err, ErrTooManyRecipients)

	c, err = h.l.Airdrop(h.ctx, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(30), c.TotalAirdropped)
}

func TestEventsPublishedPerOperation(t *testing.T) {
	h := newHarness(t)
	h.initPool(t, common.Address{})
	_, err := h.l.Stake(h.ctx, mint, alice, 10)
	require.NoError(t, err)
	_, err = h.l.Stake(h.ctx, mint, alice, 0)
	require.Error(t, err)

	require.Equal(t, []string{"initialize_pool", "stake"}, h.sink.operations())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ""},
		{ErrZeroAmount, ClassValidation},
		{ErrNotProposer, ClassAuthorization},
		{ErrVaultNotFound, ClassState},
		{timelock.ErrNotExpired, ClassGovernance},
		{ErrTransferFailed, ClassTransfer},
		{context.Canceled, ClassInternal},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Classify(c.err), "%v", c.err)
	}
}
