package transfer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"tokenLedger/internal/custody"
)

var (
	ErrReverted    = errors.New("token transaction reverted")
	ErrUnconfirmed = errors.New("token transaction not confirmed")
)

const decimalsCacheSize = 256

// Backend is the subset of chain.Client the ERC20 service uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ERC20Options configures an ERC20 service.
type ERC20Options struct {
	// Operator sends transferFrom and burnFrom on behalf of holders who
	// approved it.
	Operator *ecdsa.PrivateKey
	// CustodyKeys sign outflows from custody accounts.
	CustodyKeys  []*ecdsa.PrivateKey
	Verifier     *custody.Verifier
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
	Confirmation time.Duration
	Logger       *zap.Logger
}

// ERC20 moves value through an EVM token contract.
type ERC20 struct {
	backend  Backend
	operator *ecdsa.PrivateKey
	custody  map[common.Address]*ecdsa.PrivateKey
	verifier *custody.Verifier
	decimals *lru.Cache
	opts     ERC20Options
	logger   *zap.Logger
}

// TokenMeta describes an ERC20 token.
type TokenMeta struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// NewERC20 builds an ERC20 service over backend.
func NewERC20(backend Backend, opts ERC20Options) (*ERC20, error) {
	if backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}
	if opts.Operator == nil {
		return nil, fmt.Errorf("operator key is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Confirmation <= 0 {
		opts.Confirmation = 2 * time.Minute
	}
	cache, err := lru.New(decimalsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("decimals cache: %w", err)
	}

	keys := make(map[common.Address]*ecdsa.PrivateKey, len(opts.CustodyKeys))
	for _, key := range opts.CustodyKeys {
		keys[crypto.PubkeyToAddress(key.PublicKey)] = key
	}

	return &ERC20{
		backend:  backend,
		operator: opts.Operator,
		custody:  keys,
		verifier: opts.Verifier,
		decimals: cache,
		opts:     opts,
		logger:   opts.Logger,
	}, nil
}

// OperatorAddress is the account holders must approve.
func (e *ERC20) OperatorAddress() common.Address {
	return crypto.PubkeyToAddress(e.operator.PublicKey)
}

func (e *ERC20) Decimals(ctx context.Context, mint common.Address) (uint8, error) {
	if v, ok := e.decimals.Get(mint); ok {
		return v.(uint8), nil
	}
	values, err := e.call(ctx, mint, erc20Instance, "decimals")
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnknownMint, mint.Hex(), err)
	}
	d, err := asUint8(values[0])
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	e.decimals.Add(mint, d)
	return d, nil
}

// Metadata loads symbol, name and decimals of mint.
func (e *ERC20) Metadata(ctx context.Context, mint common.Address) (TokenMeta, error) {
	meta := TokenMeta{Address: mint.Hex()}
	d, err := e.Decimals(ctx, mint)
	if err != nil {
		return meta, err
	}
	meta.Decimals = d

	b32, err := erc20Bytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}
	meta.Symbol = e.textField(ctx, mint, b32, "symbol")
	meta.Name = e.textField(ctx, mint, b32, "name")
	return meta, nil
}

// BalanceOf reads account's on-chain balance of mint.
func (e *ERC20) BalanceOf(ctx context.Context, mint, account common.Address) (*big.Int, error) {
	values, err := e.call(ctx, mint, erc20Instance, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unsupported type %T", values[0])
	}
	return v, nil
}

func (e *ERC20) MoveValue(ctx context.Context, t Transfer) error {
	if t.Amount == 0 {
		return ErrZeroAmount
	}
	d, err := e.Decimals(ctx, t.Mint)
	if err != nil {
		return err
	}
	if d != t.Decimals {
		return fmt.Errorf("%w: mint has %d, transfer has %d", ErrDecimalsMismatch, d, t.Decimals)
	}
	parsed, err := erc20Instance()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}
	amount := new(big.Int).SetUint64(t.Amount)

	key, custodial, err := e.signerFor(t.Mint, t.From, t.Authority)
	if err != nil {
		return err
	}
	var data []byte
	if custodial {
		data, err = parsed.Pack("transfer", t.To, amount)
	} else {
		data, err = parsed.Pack("transferFrom", t.From, t.To, amount)
	}
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}
	return e.send(ctx, key, t.Mint, data)
}

func (e *ERC20) Destroy(ctx context.Context, b Burn) error {
	if b.Amount == 0 {
		return ErrZeroAmount
	}
	parsed, err := erc20Instance()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}
	amount := new(big.Int).SetUint64(b.Amount)

	key, custodial, err := e.signerFor(b.Mint, b.Account, b.Authority)
	if err != nil {
		return err
	}
	var data []byte
	if custodial {
		data, err = parsed.Pack("burn", amount)
	} else {
		data, err = parsed.Pack("burnFrom", b.Account, amount)
	}
	if err != nil {
		return fmt.Errorf("pack burn: %w", err)
	}
	return e.send(ctx, key, b.Mint, data)
}

// signerFor picks the key that sends the transaction. Custody outflows are
// signed by the custody key itself; holder outflows by the operator.
func (e *ERC20) signerFor(mint, from common.Address, auth Authority) (*ecdsa.PrivateKey, bool, error) {
	if auth == nil {
		return nil, false, fmt.Errorf("%w: no authority for %s", ErrUnauthorized, from.Hex())
	}
	if capability, ok := auth.(custody.Capability); ok {
		if !e.verifier.Verify(capability, from) {
			return nil, false, fmt.Errorf("%w: invalid custody capability for %s", ErrUnauthorized, from.Hex())
		}
		key, ok := e.custody[from]
		if !ok {
			return nil, false, fmt.Errorf("%w: no key held for custody account %s", ErrUnauthorized, from.Hex())
		}
		return key, true, nil
	}
	if e.verifier.IsCustody(mint, from) {
		return nil, false, fmt.Errorf("%w: custody account %s requires a capability", ErrUnauthorized, from.Hex())
	}
	if auth.Signer() != from {
		return nil, false, fmt.Errorf("%w: %s cannot move funds of %s", ErrUnauthorized, auth.Signer().Hex(), from.Hex())
	}
	return e.operator, false, nil
}

func (e *ERC20) send(ctx context.Context, key *ecdsa.PrivateKey, token common.Address, data []byte) error {
	sender := crypto.PubkeyToAddress(key.PublicKey)

	var (
		chainID  *big.Int
		nonce    uint64
		gasPrice *big.Int
		gas      uint64
	)
	err := withRetry(ctx, e.opts.MaxRetries, e.opts.RetryDelay, func(ctx context.Context) error {
		var err error
		if chainID, err = e.backend.ChainID(ctx); err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
		if nonce, err = e.backend.PendingNonceAt(ctx, sender); err != nil {
			return fmt.Errorf("nonce: %w", err)
		}
		if gasPrice, err = e.backend.SuggestGasPrice(ctx); err != nil {
			return fmt.Errorf("gas price: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Estimation simulates the call, so a revert (insufficient balance or
	// allowance) surfaces here before anything is broadcast.
	gas, err = e.backend.EstimateGas(ctx, ethereum.CallMsg{From: sender, To: &token, Data: data})
	if err != nil {
		return fmt.Errorf("%w: estimate gas: %v", ErrReverted, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send tx: %w", err)
	}

	receipt, err := e.waitReceipt(ctx, signed.Hash())
	if err != nil {
		e.logger.Warn("token transaction outcome unknown",
			zap.String("tx", signed.Hash().Hex()),
			zap.String("sender", sender.Hex()),
			zap.Error(err),
		)
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrReverted, signed.Hash().Hex())
	}
	e.logger.Debug("token transaction confirmed",
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return nil
}

func (e *ERC20) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Confirmation)
	defer cancel()

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := e.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrUnconfirmed, hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (e *ERC20) call(ctx context.Context, token common.Address, which func() (abi.ABI, error), method string, args ...interface{}) ([]interface{}, error) {
	parsed, err := which()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return e.callWith(ctx, token, parsed, method, args...)
}

func (e *ERC20) callWith(ctx context.Context, token common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	var resp []byte
	err = withRetry(ctx, e.opts.MaxRetries, e.opts.RetryDelay, func(ctx context.Context) error {
		var err error
		resp, err = e.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func (e *ERC20) textField(ctx context.Context, token common.Address, b32 abi.ABI, method string) string {
	if values, err := e.call(ctx, token, erc20Instance, method); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	values, err := e.callWith(ctx, token, b32, method)
	if err != nil {
		e.logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return ""
	}
	switch v := values[0].(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00"))
	case []byte:
		return string(bytes.TrimRight(v, "\x00"))
	}
	return ""
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
