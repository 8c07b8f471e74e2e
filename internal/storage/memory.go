package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"tokenLedger/internal/model"
)

// poolState holds every record of one pool. Committed states are never
// mutated; Update builds a fresh copy and swaps it in.
type poolState struct {
	Pool        *model.PoolConfig                         `json:"pool,omitempty"`
	Positions   map[common.Address]model.StakePosition   `json:"positions,omitempty"`
	Proposals   map[uuid.UUID]model.Proposal             `json:"proposals,omitempty"`
	Vault       *model.LPVault                            `json:"vault,omitempty"`
	Deployments []model.LPDeployment                      `json:"deployments,omitempty"`
	Burn        *model.BurnRecord                         `json:"burn,omitempty"`
	Airdrop     *model.AirdropCampaign                    `json:"airdrop,omitempty"`
}

func newPoolState() *poolState {
	return &poolState{
		Positions: make(map[common.Address]model.StakePosition),
		Proposals: make(map[uuid.UUID]model.Proposal),
	}
}

func (s *poolState) empty() bool {
	return s.Pool == nil && len(s.Positions) == 0 && len(s.Proposals) == 0 &&
		s.Vault == nil && len(s.Deployments) == 0 && s.Burn == nil && s.Airdrop == nil
}

// merge returns a new state with the writes in next applied on top of s.
func (s *poolState) merge(next *poolState) *poolState {
	out := newPoolState()
	if s != nil {
		out.Pool, out.Vault, out.Burn, out.Airdrop = s.Pool, s.Vault, s.Burn, s.Airdrop
		for k, v := range s.Positions {
			out.Positions[k] = v
		}
		for k, v := range s.Proposals {
			out.Proposals[k] = v
		}
		out.Deployments = append(out.Deployments, s.Deployments...)
	}
	if next.Pool != nil {
		out.Pool = next.Pool
	}
	if next.Vault != nil {
		out.Vault = next.Vault
	}
	if next.Burn != nil {
		out.Burn = next.Burn
	}
	if next.Airdrop != nil {
		out.Airdrop = next.Airdrop
	}
	for k, v := range next.Positions {
		out.Positions[k] = v
	}
	for k, v := range next.Proposals {
		out.Proposals[k] = v
	}
	out.Deployments = append(out.Deployments, next.Deployments...)
	return out
}

// Memory keeps all records in process memory.
type Memory struct {
	mu    sync.RWMutex
	pools map[common.Address]*poolState
	locks map[common.Address]*sync.Mutex

	// persist, when set, must durably record the full state before a commit
	// becomes visible.
	persist   func(map[common.Address]*poolState) error
	persistMu sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		pools: make(map[common.Address]*poolState),
		locks: make(map[common.Address]*sync.Mutex),
	}
}

func (m *Memory) lockFor(mint common.Address) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[mint]
	if !ok {
		l = &sync.Mutex{}
		m.locks[mint] = l
	}
	return l
}

func (m *Memory) current(mint common.Address) *poolState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pools[mint]
}

func (m *Memory) Update(ctx context.Context, mint common.Address, fn func(Tx) error) error {
	lock := m.lockFor(mint)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	base := m.current(mint)
	tx := &memTx{mint: mint, base: base, next: newPoolState()}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.next.empty() {
		return nil
	}
	merged := base.merge(tx.next)

	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	if m.persist != nil {
		m.mu.RLock()
		snapshot := make(map[common.Address]*poolState, len(m.pools)+1)
		for k, v := range m.pools {
			snapshot[k] = v
		}
		m.mu.RUnlock()
		snapshot[mint] = merged
		if err := m.persist(snapshot); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}
	}
	m.mu.Lock()
	m.pools[mint] = merged
	m.mu.Unlock()
	return nil
}

func (m *Memory) View(ctx context.Context, mint common.Address, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memTx{mint: mint, base: m.current(mint), next: newPoolState()})
}

func (m *Memory) Mints(_ context.Context) ([]common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]common.Address, 0, len(m.pools))
	for mint, s := range m.pools {
		if s.Pool != nil {
			out = append(out, mint)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) load(pools map[common.Address]*poolState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for mint, s := range pools {
		if s == nil {
			continue
		}
		m.pools[mint] = newPoolState().merge(s)
	}
}

// memTx reads through pending writes to the committed base state.
type memTx struct {
	mint common.Address
	base *poolState
	next *poolState
}

func (t *memTx) Pool(_ context.Context) (model.PoolConfig, error) {
	if t.next.Pool != nil {
		return *t.next.Pool, nil
	}
	if t.base != nil && t.base.Pool != nil {
		return *t.base.Pool, nil
	}
	return model.PoolConfig{}, fmt.Errorf("pool %s: %w", t.mint.Hex(), ErrNotFound)
}

func (t *memTx) Position(_ context.Context, owner common.Address) (model.StakePosition, error) {
	if pos, ok := t.next.Positions[owner]; ok {
		return pos, nil
	}
	if t.base != nil {
		if pos, ok := t.base.Positions[owner]; ok {
			return pos, nil
		}
	}
	return model.StakePosition{}, fmt.Errorf("position %s: %w", owner.Hex(), ErrNotFound)
}

func (t *memTx) Positions(_ context.Context) ([]model.StakePosition, error) {
	merged := t.base.merge(t.next)
	out := make([]model.StakePosition, 0, len(merged.Positions))
	for _, pos := range merged.Positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Owner[:], out[j].Owner[:]) < 0 })
	return out, nil
}

func (t *memTx) Proposal(_ context.Context, id uuid.UUID) (model.Proposal, error) {
	if p, ok := t.next.Proposals[id]; ok {
		return p, nil
	}
	if t.base != nil {
		if p, ok := t.base.Proposals[id]; ok {
			return p, nil
		}
	}
	return model.Proposal{}, fmt.Errorf("proposal %s: %w", id, ErrNotFound)
}

func (t *memTx) LiveProposal(ctx context.Context, kind model.ProposalKind) (model.Proposal, error) {
	all, err := t.Proposals(ctx)
	if err != nil {
		return model.Proposal{}, err
	}
	for _, p := range all {
		if p.Kind == kind && p.Live() {
			return p, nil
		}
	}
	return model.Proposal{}, fmt.Errorf("live %s proposal: %w", kind, ErrNotFound)
}

func (t *memTx) Proposals(_ context.Context) ([]model.Proposal, error) {
	merged := t.base.merge(t.next)
	out := make([]model.Proposal, 0, len(merged.Proposals))
	for _, p := range merged.Proposals {
		out = append(out, p)
	}
	sortProposals(out)
	return out, nil
}

func (t *memTx) Vault(_ context.Context) (model.LPVault, error) {
	if t.next.Vault != nil {
		return *t.next.Vault, nil
	}
	if t.base != nil && t.base.Vault != nil {
		return *t.base.Vault, nil
	}
	return model.LPVault{}, fmt.Errorf("lp vault %s: %w", t.mint.Hex(), ErrNotFound)
}

func (t *memTx) Deployments(_ context.Context) ([]model.LPDeployment, error) {
	var out []model.LPDeployment
	if t.base != nil {
		out = append(out, t.base.Deployments...)
	}
	return append(out, t.next.Deployments...), nil
}

func (t *memTx) BurnRecord(_ context.Context) (model.BurnRecord, error) {
	if t.next.Burn != nil {
		return *t.next.Burn, nil
	}
	if t.base != nil && t.base.Burn != nil {
		return *t.base.Burn, nil
	}
	return model.BurnRecord{}, fmt.Errorf("burn record %s: %w", t.mint.Hex(), ErrNotFound)
}

func (t *memTx) Airdrop(_ context.Context) (model.AirdropCampaign, error) {
	if t.next.Airdrop != nil {
		return *t.next.Airdrop, nil
	}
	if t.base != nil && t.base.Airdrop != nil {
		return *t.base.Airdrop, nil
	}
	return model.AirdropCampaign{}, fmt.Errorf("airdrop campaign %s: %w", t.mint.Hex(), ErrNotFound)
}

func (t *memTx) PutPool(_ context.Context, cfg model.PoolConfig) error {
	t.next.Pool = &cfg
	return nil
}

func (t *memTx) PutPosition(_ context.Context, pos model.StakePosition) error {
	t.next.Positions[pos.Owner] = pos
	return nil
}

func (t *memTx) PutProposal(_ context.Context, p model.Proposal) error {
	t.next.Proposals[p.ID] = p
	return nil
}

func (t *memTx) PutVault(_ context.Context, v model.LPVault) error {
	t.next.Vault = &v
	return nil
}

func (t *memTx) PutDeployment(_ context.Context, d model.LPDeployment) error {
	t.next.Deployments = append(t.next.Deployments, d)
	return nil
}

func (t *memTx) PutBurnRecord(_ context.Context, r model.BurnRecord) error {
	t.next.Burn = &r
	return nil
}

func (t *memTx) PutAirdrop(_ context.Context, c model.AirdropCampaign) error {
	t.next.Airdrop = &c
	return nil
}

func sortProposals(ps []model.Proposal) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].ProposedAt != ps[j].ProposedAt {
			return ps[i].ProposedAt < ps[j].ProposedAt
		}
		return ps[i].ID.String() < ps[j].ID.String()
	})
}
