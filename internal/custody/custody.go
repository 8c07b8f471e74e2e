// Package custody derives the pool-owned holding accounts and mints the
// capabilities that allow funds to leave them.
package custody

import (
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind names one of a pool's custody accounts.
type Kind string

const (
	StakeVault Kind = "staking_vault"
	RewardPool Kind = "reflection_pool"
	LPVault    Kind = "lp_vault_token"
)

// Kinds lists every custody account a pool owns.
var Kinds = []Kind{StakeVault, RewardPool, LPVault}

// Derive returns the deterministic custody address for (kind, mint).
func Derive(mint common.Address, kind Kind) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(kind), mint.Bytes()))
}

// Accounts are the custody addresses of one pool.
type Accounts struct {
	StakeVault common.Address
	RewardPool common.Address
	LPVault    common.Address
}

// Capability authorizes one outflow from a custody account. Only an Issuer can
// produce a valid one; the zero value authorizes nothing.
type Capability struct {
	account common.Address
	seal    [32]byte
}

// Signer reports the custody account the capability speaks for.
func (c Capability) Signer() common.Address {
	return c.account
}

// Issuer resolves custody accounts and grants capabilities over them.
type Issuer struct {
	secret    [32]byte
	overrides map[common.Address]Accounts
}

// NewIssuer returns an issuer with a fresh random sealing secret.
func NewIssuer() (*Issuer, error) {
	i := &Issuer{overrides: make(map[common.Address]Accounts)}
	if _, err := rand.Read(i.secret[:]); err != nil {
		return nil, fmt.Errorf("custody secret: %w", err)
	}
	return i, nil
}

// Override pins explicit custody accounts for mint instead of derived ones.
// Keyed backends use it so custody addresses match keys they hold.
func (i *Issuer) Override(mint common.Address, accounts Accounts) {
	i.overrides[mint] = accounts
}

// Accounts resolves the custody accounts of mint.
func (i *Issuer) Accounts(mint common.Address) Accounts {
	if acc, ok := i.overrides[mint]; ok {
		return acc
	}
	return Accounts{
		StakeVault: Derive(mint, StakeVault),
		RewardPool: Derive(mint, RewardPool),
		LPVault:    Derive(mint, LPVault),
	}
}

// Grant seals a capability over account.
func (i *Issuer) Grant(account common.Address) Capability {
	return Capability{account: account, seal: i.sealFor(account)}
}

// Verifier returns a view that can check capabilities but not grant them.
func (i *Issuer) Verifier() *Verifier {
	return &Verifier{issuer: i}
}

func (i *Issuer) sealFor(account common.Address) [32]byte {
	var seal [32]byte
	copy(seal[:], crypto.Keccak256(i.secret[:], account.Bytes()))
	return seal
}

// Verifier checks capabilities for a transfer backend.
type Verifier struct {
	issuer *Issuer
}

// Verify reports whether c was granted by the issuer over account.
func (v *Verifier) Verify(c Capability, account common.Address) bool {
	if v == nil || v.issuer == nil || c.account != account {
		return false
	}
	return c.seal == v.issuer.sealFor(account)
}

// IsCustody reports whether account is one of mint's custody accounts.
func (v *Verifier) IsCustody(mint, account common.Address) bool {
	if v == nil || v.issuer == nil {
		return false
	}
	acc := v.issuer.Accounts(mint)
	return account == acc.StakeVault || account == acc.RewardPool || account == acc.LPVault
}
