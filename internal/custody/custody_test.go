package custody

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var mint = common.HexToAddress("0x1111111111111111111111111111111111111111")

func TestDeriveIsDeterministicAndDistinct(t *testing.T) {
	seen := make(map[common.Address]Kind)
	for _, kind := range Kinds {
		a := Derive(mint, kind)
		if a != Derive(mint, kind) {
			t.Fatalf("derive not deterministic for %s", kind)
		}
		if prev, ok := seen[a]; ok {
			t.Fatalf("%s collides with %s", kind, prev)
		}
		seen[a] = kind
	}
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	if Derive(other, StakeVault) == Derive(mint, StakeVault) {
		t.Fatalf("different mints must derive different vaults")
	}
}

func TestCapabilityVerification(t *testing.T) {
	issuer, err := NewIssuer()
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	vault := issuer.Accounts(mint).StakeVault
	verifier := issuer.Verifier()

	if !verifier.Verify(issuer.Grant(vault), vault) {
		t.Fatalf("granted capability rejected")
	}
	if verifier.Verify(Capability{}, vault) {
		t.Fatalf("zero capability accepted")
	}
	if verifier.Verify(issuer.Grant(vault), issuer.Accounts(mint).RewardPool) {
		t.Fatalf("capability accepted for another account")
	}

	rogue, err := NewIssuer()
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	if verifier.Verify(rogue.Grant(vault), vault) {
		t.Fatalf("capability from another issuer accepted")
	}
}

func TestOverride(t *testing.T) {
	issuer, err := NewIssuer()
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	pinned := Accounts{
		StakeVault: common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		RewardPool: common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		LPVault:    common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"),
	}
	issuer.Override(mint, pinned)
	if issuer.Accounts(mint) != pinned {
		t.Fatalf("override ignored")
	}
}
