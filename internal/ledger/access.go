package ledger

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"tokenLedger/internal/model"
)

const emergencyDomain = "tokenLedger:emergency-fees"

func requireAuthority(cfg model.PoolConfig, caller common.Address) error {
	if caller != cfg.Authority {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// requireActive gates discretionary operations. Only staking checks it.
func requireActive(cfg model.PoolConfig) error {
	if cfg.IsPaused {
		return ErrPaused
	}
	return nil
}

// EmergencyDigest is the hash a guardian signs to approve an immediate fee
// change. It binds the pool, its current authority and fee nonce, so a
// signature is valid for exactly one update.
func EmergencyDigest(mint, authority common.Address, fees model.FeeShares, nonce uint64) []byte {
	var buf [14]byte
	binary.BigEndian.PutUint16(buf[0:2], fees.ReflectionBps)
	binary.BigEndian.PutUint16(buf[2:4], fees.LPBps)
	binary.BigEndian.PutUint16(buf[4:6], fees.BurnBps)
	binary.BigEndian.PutUint64(buf[6:14], nonce)
	return crypto.Keccak256([]byte(emergencyDomain), mint.Bytes(), authority.Bytes(), buf[:])
}

// SignEmergency produces a guardian co-signature for applying fees to cfg.
func SignEmergency(key *ecdsa.PrivateKey, cfg model.PoolConfig, fees model.FeeShares) ([]byte, error) {
	sig, err := crypto.Sign(EmergencyDigest(cfg.Mint, cfg.Authority, fees, cfg.FeeNonce), key)
	if err != nil {
		return nil, fmt.Errorf("sign emergency fees: %w", err)
	}
	return sig, nil
}

func verifyGuardian(cfg model.PoolConfig, fees model.FeeShares, sig []byte) error {
	if cfg.Guardian == (common.Address{}) {
		return fmt.Errorf("%w: pool has no guardian", ErrGuardianRequired)
	}
	if len(sig) == 0 {
		return ErrGuardianRequired
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: signature must be %d bytes", ErrInvalidGuardian, crypto.SignatureLength)
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(EmergencyDigest(cfg.Mint, cfg.Authority, fees, cfg.FeeNonce), normalized)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGuardian, err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != cfg.Guardian {
		return fmt.Errorf("%w: signed by %s", ErrInvalidGuardian, signer.Hex())
	}
	return nil
}
