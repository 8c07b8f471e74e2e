package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
)

// Store persists ledger records in Postgres. Every Update runs in one
// transaction holding a per-pool advisory lock.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Update(ctx context.Context, mint common.Address, fn func(storage.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, mint.Hex()); err != nil {
			return fmt.Errorf("lock pool %s: %w", mint.Hex(), err)
		}
		return fn(&pgTx{q: tx, mint: mint})
	})
}

func (s *Store) View(ctx context.Context, mint common.Address, fn func(storage.Reader) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(&pgTx{q: tx, mint: mint})
	})
}

func (s *Store) Mints(ctx context.Context) ([]common.Address, error) {
	rows, err := s.pool.Query(ctx, `SELECT mint FROM pools ORDER BY mint`)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()
	var out []common.Address
	for rows.Next() {
		var mint string
		if err := rows.Scan(&mint); err != nil {
			return nil, err
		}
		out = append(out, common.HexToAddress(mint))
	}
	return out, rows.Err()
}

// Publish stores events in ledger_events. Sequence numbers come from the
// table, not from the events.
func (s *Store) Publish(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		var subject *string
		if e.Subject != nil {
			hex := e.Subject.Hex()
			subject = &hex
		}
		var attrs []byte
		if len(e.Attributes) > 0 {
			var err error
			if attrs, err = json.Marshal(e.Attributes); err != nil {
				return fmt.Errorf("marshal event attributes: %w", err)
			}
		}
		batch.Queue(`
			INSERT INTO ledger_events (mint, operation, actor, subject, amount, ts, attributes, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		`,
			e.Mint.Hex(),
			e.Operation,
			e.Actor.Hex(),
			subject,
			numeric(e.Amount),
			e.Timestamp,
			attrs,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

// Events returns the newest limit events of mint, oldest first.
func (s *Store) Events(ctx context.Context, mint common.Address, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT seq, operation, actor, subject, amount::text, ts, attributes,
		       to_char(recorded_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')
		FROM (
			SELECT * FROM ledger_events WHERE mint = $1 ORDER BY seq DESC LIMIT $2
		) recent
		ORDER BY seq
	`, mint.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			e       model.Event
			seq     int64
			actor   string
			subject *string
			amount  string
			attrs   []byte
		)
		if err := rows.Scan(&seq, &e.Operation, &actor, &subject, &amount, &e.Timestamp, &attrs, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Mint = mint
		e.Actor = common.HexToAddress(actor)
		if subject != nil {
			addr := common.HexToAddress(*subject)
			e.Subject = &addr
		}
		if e.Amount, err = parseUint(amount); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
				return nil, fmt.Errorf("parse event attributes: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	q    querier
	mint common.Address
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func (t *pgTx) Pool(ctx context.Context) (model.PoolConfig, error) {
	var (
		cfg                                       model.PoolConfig
		authority, guardian, vault, reward, lp    string
		refl, lpBps, burn                         int32
		nonce, staked, distributed, pending, accum string
		decimals                                  int16
	)
	row := t.q.QueryRow(ctx, `
		SELECT decimals, authority, guardian, stake_vault, reward_pool, lp_custody,
		       reflection_bps, lp_bps, burn_bps, fee_nonce::text, total_staked::text,
		       total_reflections_distributed::text, pending_reflections::text,
		       accumulated_per_share::text, is_paused, created_at
		FROM pools WHERE mint = $1
	`, t.mint.Hex())
	err := row.Scan(&decimals, &authority, &guardian, &vault, &reward, &lp,
		&refl, &lpBps, &burn, &nonce, &staked, &distributed, &pending, &accum,
		&cfg.IsPaused, &cfg.CreatedAt)
	if err != nil {
		return model.PoolConfig{}, notFound(err, "pool "+t.mint.Hex())
	}

	cfg.Mint = t.mint
	cfg.Decimals = uint8(decimals)
	cfg.Authority = common.HexToAddress(authority)
	cfg.Guardian = common.HexToAddress(guardian)
	cfg.StakeVault = common.HexToAddress(vault)
	cfg.RewardPool = common.HexToAddress(reward)
	cfg.LPCustody = common.HexToAddress(lp)
	cfg.Fees = model.FeeShares{ReflectionBps: uint16(refl), LPBps: uint16(lpBps), BurnBps: uint16(burn)}
	var p parser
	cfg.FeeNonce = p.u64(nonce)
	cfg.TotalStaked = p.u64(staked)
	cfg.TotalReflectionsDistributed = p.u64(distributed)
	cfg.PendingReflections = p.u64(pending)
	cfg.AccumulatedPerShare = p.wide(accum)
	return cfg, p.err
}

func (t *pgTx) PutPool(ctx context.Context, cfg model.PoolConfig) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO pools (
			mint, decimals, authority, guardian, stake_vault, reward_pool, lp_custody,
			reflection_bps, lp_bps, burn_bps, fee_nonce, total_staked,
			total_reflections_distributed, pending_reflections, accumulated_per_share,
			is_paused, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now())
		ON CONFLICT (mint) DO UPDATE SET
			authority = EXCLUDED.authority,
			guardian = EXCLUDED.guardian,
			reflection_bps = EXCLUDED.reflection_bps,
			lp_bps = EXCLUDED.lp_bps,
			burn_bps = EXCLUDED.burn_bps,
			fee_nonce = EXCLUDED.fee_nonce,
			total_staked = EXCLUDED.total_staked,
			total_reflections_distributed = EXCLUDED.total_reflections_distributed,
			pending_reflections = EXCLUDED.pending_reflections,
			accumulated_per_share = EXCLUDED.accumulated_per_share,
			is_paused = EXCLUDED.is_paused,
			updated_at = now()
	`,
		t.mint.Hex(),
		int16(cfg.Decimals),
		cfg.Authority.Hex(),
		cfg.Guardian.Hex(),
		cfg.StakeVault.Hex(),
		cfg.RewardPool.Hex(),
		cfg.LPCustody.Hex(),
		int32(cfg.Fees.ReflectionBps),
		int32(cfg.Fees.LPBps),
		int32(cfg.Fees.BurnBps),
		numeric(cfg.FeeNonce),
		numeric(cfg.TotalStaked),
		numeric(cfg.TotalReflectionsDistributed),
		numeric(cfg.PendingReflections),
		wideNumeric(cfg.AccumulatedPerShare),
		cfg.IsPaused,
		cfg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert pool: %w", err)
	}
	return nil
}

const positionColumns = `owner, staked_amount::text, stake_time, pending_rewards::text, total_claimed::text, reward_debt::text`

func (t *pgTx) scanPosition(row pgx.Row) (model.StakePosition, error) {
	var (
		pos                             model.StakePosition
		owner, staked, pending, claimed string
		debt                            string
	)
	if err := row.Scan(&owner, &staked, &pos.StakeTime, &pending, &claimed, &debt); err != nil {
		return model.StakePosition{}, err
	}
	pos.Mint = t.mint
	pos.Owner = common.HexToAddress(owner)
	var p parser
	pos.StakedAmount = p.u64(staked)
	pos.PendingRewards = p.u64(pending)
	pos.TotalClaimed = p.u64(claimed)
	pos.RewardDebt = p.wide(debt)
	return pos, p.err
}

func (t *pgTx) Position(ctx context.Context, owner common.Address) (model.StakePosition, error) {
	row := t.q.QueryRow(ctx, `SELECT `+positionColumns+` FROM stake_positions WHERE mint = $1 AND owner = $2`,
		t.mint.Hex(), owner.Hex())
	pos, err := t.scanPosition(row)
	if err != nil {
		return model.StakePosition{}, notFound(err, "position "+owner.Hex())
	}
	return pos, nil
}

func (t *pgTx) Positions(ctx context.Context) ([]model.StakePosition, error) {
	rows, err := t.q.Query(ctx, `SELECT `+positionColumns+` FROM stake_positions WHERE mint = $1 ORDER BY owner`, t.mint.Hex())
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()
	var out []model.StakePosition
	for rows.Next() {
		pos, err := t.scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

func (t *pgTx) PutPosition(ctx context.Context, pos model.StakePosition) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stake_positions (
			mint, owner, staked_amount, stake_time, pending_rewards, total_claimed, reward_debt, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (mint, owner) DO UPDATE SET
			staked_amount = EXCLUDED.staked_amount,
			stake_time = EXCLUDED.stake_time,
			pending_rewards = EXCLUDED.pending_rewards,
			total_claimed = EXCLUDED.total_claimed,
			reward_debt = EXCLUDED.reward_debt,
			updated_at = now()
	`,
		t.mint.Hex(),
		pos.Owner.Hex(),
		numeric(pos.StakedAmount),
		pos.StakeTime,
		numeric(pos.PendingRewards),
		numeric(pos.TotalClaimed),
		wideNumeric(pos.RewardDebt),
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

const proposalColumns = `id::text, kind, proposer, proposed_at, executed, cancelled, reflection_bps, lp_bps, burn_bps, new_authority`

func (t *pgTx) scanProposal(row pgx.Row) (model.Proposal, error) {
	var (
		p                 model.Proposal
		id, kind, by      string
		refl, lpBps, burn *int32
		newAuthority      *string
	)
	if err := row.Scan(&id, &kind, &by, &p.ProposedAt, &p.Executed, &p.Cancelled, &refl, &lpBps, &burn, &newAuthority); err != nil {
		return model.Proposal{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return model.Proposal{}, fmt.Errorf("parse proposal id: %w", err)
	}
	p.ID = parsed
	p.Mint = t.mint
	p.Kind = model.ProposalKind(kind)
	p.Proposer = common.HexToAddress(by)
	if refl != nil && lpBps != nil && burn != nil {
		p.Fees = &model.FeeShares{ReflectionBps: uint16(*refl), LPBps: uint16(*lpBps), BurnBps: uint16(*burn)}
	}
	if newAuthority != nil {
		addr := common.HexToAddress(*newAuthority)
		p.NewAuthority = &addr
	}
	return p, nil
}

func (t *pgTx) Proposal(ctx context.Context, id uuid.UUID) (model.Proposal, error) {
	row := t.q.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE mint = $1 AND id = $2::uuid`, t.mint.Hex(), id.String())
	p, err := t.scanProposal(row)
	if err != nil {
		return model.Proposal{}, notFound(err, "proposal "+id.String())
	}
	return p, nil
}

func (t *pgTx) LiveProposal(ctx context.Context, kind model.ProposalKind) (model.Proposal, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+proposalColumns+` FROM proposals
		WHERE mint = $1 AND kind = $2 AND NOT executed AND NOT cancelled
	`, t.mint.Hex(), string(kind))
	p, err := t.scanProposal(row)
	if err != nil {
		return model.Proposal{}, notFound(err, "live "+string(kind)+" proposal")
	}
	return p, nil
}

func (t *pgTx) Proposals(ctx context.Context) ([]model.Proposal, error) {
	rows, err := t.q.Query(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE mint = $1 ORDER BY proposed_at, id::text`, t.mint.Hex())
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer rows.Close()
	var out []model.Proposal
	for rows.Next() {
		p, err := t.scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) PutProposal(ctx context.Context, p model.Proposal) error {
	var refl, lpBps, burn *int32
	if p.Fees != nil {
		r, l, b := int32(p.Fees.ReflectionBps), int32(p.Fees.LPBps), int32(p.Fees.BurnBps)
		refl, lpBps, burn = &r, &l, &b
	}
	var newAuthority *string
	if p.NewAuthority != nil {
		hex := p.NewAuthority.Hex()
		newAuthority = &hex
	}
	_, err := t.q.Exec(ctx, `
		INSERT INTO proposals (
			id, mint, kind, proposer, proposed_at, executed, cancelled,
			reflection_bps, lp_bps, burn_bps, new_authority
		) VALUES ($1::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			executed = EXCLUDED.executed,
			cancelled = EXCLUDED.cancelled
	`,
		p.ID.String(),
		t.mint.Hex(),
		string(p.Kind),
		p.Proposer.Hex(),
		p.ProposedAt,
		p.Executed,
		p.Cancelled,
		refl,
		lpBps,
		burn,
		newAuthority,
	)
	if err != nil {
		return fmt.Errorf("upsert proposal: %w", err)
	}
	return nil
}

func (t *pgTx) Vault(ctx context.Context) (model.LPVault, error) {
	var (
		v                                                   model.LPVault
		authority, allocated, deployed, pending, withdrawn, count string
	)
	row := t.q.QueryRow(ctx, `
		SELECT authority, total_allocated::text, total_deployed::text, pending_deployment::text,
		       total_withdrawn::text, deployment_count::text, last_deployment_time, created_at
		FROM lp_vaults WHERE mint = $1
	`, t.mint.Hex())
	if err := row.Scan(&authority, &allocated, &deployed, &pending, &withdrawn, &count, &v.LastDeploymentTime, &v.CreatedAt); err != nil {
		return model.LPVault{}, notFound(err, "lp vault "+t.mint.Hex())
	}
	v.Mint = t.mint
	v.Authority = common.HexToAddress(authority)
	var p parser
	v.TotalAllocated = p.u64(allocated)
	v.TotalDeployed = p.u64(deployed)
	v.PendingDeployment = p.u64(pending)
	v.TotalWithdrawn = p.u64(withdrawn)
	v.DeploymentCount = p.u64(count)
	return v, p.err
}

func (t *pgTx) PutVault(ctx context.Context, v model.LPVault) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO lp_vaults (
			mint, authority, total_allocated, total_deployed, pending_deployment,
			total_withdrawn, deployment_count, last_deployment_time, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (mint) DO UPDATE SET
			authority = EXCLUDED.authority,
			total_allocated = EXCLUDED.total_allocated,
			total_deployed = EXCLUDED.total_deployed,
			pending_deployment = EXCLUDED.pending_deployment,
			total_withdrawn = EXCLUDED.total_withdrawn,
			deployment_count = EXCLUDED.deployment_count,
			last_deployment_time = EXCLUDED.last_deployment_time
	`,
		t.mint.Hex(),
		v.Authority.Hex(),
		numeric(v.TotalAllocated),
		numeric(v.TotalDeployed),
		numeric(v.PendingDeployment),
		numeric(v.TotalWithdrawn),
		numeric(v.DeploymentCount),
		v.LastDeploymentTime,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert lp vault: %w", err)
	}
	return nil
}

func (t *pgTx) Deployments(ctx context.Context) ([]model.LPDeployment, error) {
	rows, err := t.q.Query(ctx, `
		SELECT seq::text, target, amount::text, shares_received::text, deployed_at
		FROM lp_deployments WHERE mint = $1 ORDER BY seq
	`, t.mint.Hex())
	if err != nil {
		return nil, fmt.Errorf("query lp deployments: %w", err)
	}
	defer rows.Close()
	var out []model.LPDeployment
	for rows.Next() {
		var (
			d                            model.LPDeployment
			seq, target, amount, shares string
		)
		if err := rows.Scan(&seq, &target, &amount, &shares, &d.DeployedAt); err != nil {
			return nil, err
		}
		d.Mint = t.mint
		d.Target = common.HexToAddress(target)
		var p parser
		d.Seq = p.u64(seq)
		d.Amount = p.u64(amount)
		d.SharesReceived = p.u64(shares)
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PutDeployment inserts a deployment. Deployments are immutable, so a
// duplicate sequence number is an error.
func (t *pgTx) PutDeployment(ctx context.Context, d model.LPDeployment) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO lp_deployments (mint, seq, target, amount, shares_received, deployed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		t.mint.Hex(),
		numeric(d.Seq),
		d.Target.Hex(),
		numeric(d.Amount),
		numeric(d.SharesReceived),
		d.DeployedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lp deployment: %w", err)
	}
	return nil
}

func (t *pgTx) BurnRecord(ctx context.Context) (model.BurnRecord, error) {
	var (
		r             model.BurnRecord
		total, count string
	)
	row := t.q.QueryRow(ctx, `SELECT total_burned::text, burn_count::text, last_burn_time FROM burn_records WHERE mint = $1`, t.mint.Hex())
	if err := row.Scan(&total, &count, &r.LastBurnTime); err != nil {
		return model.BurnRecord{}, notFound(err, "burn record "+t.mint.Hex())
	}
	r.Mint = t.mint
	var p parser
	r.TotalBurned = p.u64(total)
	r.BurnCount = p.u64(count)
	return r, p.err
}

func (t *pgTx) PutBurnRecord(ctx context.Context, r model.BurnRecord) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO burn_records (mint, total_burned, burn_count, last_burn_time)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (mint) DO UPDATE SET
			total_burned = EXCLUDED.total_burned,
			burn_count = EXCLUDED.burn_count,
			last_burn_time = EXCLUDED.last_burn_time
	`, t.mint.Hex(), numeric(r.TotalBurned), numeric(r.BurnCount), r.LastBurnTime)
	if err != nil {
		return fmt.Errorf("upsert burn record: %w", err)
	}
	return nil
}

func (t *pgTx) Airdrop(ctx context.Context) (model.AirdropCampaign, error) {
	var (
		c             model.AirdropCampaign
		total, count string
	)
	row := t.q.QueryRow(ctx, `SELECT total_airdropped::text, recipient_count::text, last_registered FROM airdrop_campaigns WHERE mint = $1`, t.mint.Hex())
	if err := row.Scan(&total, &count, &c.LastRegistered); err != nil {
		return model.AirdropCampaign{}, notFound(err, "airdrop campaign "+t.mint.Hex())
	}
	c.Mint = t.mint
	var p parser
	c.TotalAirdropped = p.u64(total)
	c.RecipientCount = p.u64(count)
	return c, p.err
}

func (t *pgTx) PutAirdrop(ctx context.Context, c model.AirdropCampaign) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO airdrop_campaigns (mint, total_airdropped, recipient_count, last_registered)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (mint) DO UPDATE SET
			total_airdropped = EXCLUDED.total_airdropped,
			recipient_count = EXCLUDED.recipient_count,
			last_registered = EXCLUDED.last_registered
	`, t.mint.Hex(), numeric(c.TotalAirdropped), numeric(c.RecipientCount), c.LastRegistered)
	if err != nil {
		return fmt.Errorf("upsert airdrop campaign: %w", err)
	}
	return nil
}

func numeric(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

func wideNumeric(w model.Wide) pgtype.Numeric {
	return pgtype.Numeric{Int: w.Int().ToBig(), Valid: true}
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return v, nil
}

// parser collects the first conversion error across several columns.
type parser struct {
	err error
}

func (p *parser) u64(s string) uint64 {
	if p.err != nil {
		return 0
	}
	v, err := parseUint(s)
	p.err = err
	return v
}

func (p *parser) wide(s string) model.Wide {
	if p.err != nil {
		return model.Wide{}
	}
	w, err := model.ParseWide(s)
	if err != nil {
		p.err = fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return w
}
