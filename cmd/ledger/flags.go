package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tokenLedger/internal/model"
)

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, fmt.Errorf("--%s is required", name)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid --%s address: %s", name, raw)
	}
	return common.HexToAddress(raw), nil
}

// optionalAddressFlag returns the zero address when the flag is empty.
func optionalAddressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, nil
	}
	return addressFlag(cmd, name)
}

func amountFlag(cmd *cobra.Command, name string) (uint64, error) {
	v, err := cmd.Flags().GetUint64(name)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("--%s must be greater than zero", name)
	}
	return v, nil
}

func proposalFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("proposal")
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid --proposal id: %w", err)
	}
	return id, nil
}

func feesFlags(cmd *cobra.Command) (model.FeeShares, error) {
	reflection, err := cmd.Flags().GetUint16("reflection-bps")
	if err != nil {
		return model.FeeShares{}, err
	}
	lp, err := cmd.Flags().GetUint16("lp-bps")
	if err != nil {
		return model.FeeShares{}, err
	}
	burn, err := cmd.Flags().GetUint16("burn-bps")
	if err != nil {
		return model.FeeShares{}, err
	}
	return model.FeeShares{ReflectionBps: reflection, LPBps: lp, BurnBps: burn}, nil
}

func signatureFlag(cmd *cobra.Command, name string) ([]byte, error) {
	raw, _ := cmd.Flags().GetString(name)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !strings.HasPrefix(raw, "0x") {
		raw = "0x" + raw
	}
	sig, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return sig, nil
}

func addMintFlag(cmd *cobra.Command) {
	cmd.Flags().String("mint", "", "token mint address identifying the pool")
}

func addCallerFlag(cmd *cobra.Command) {
	cmd.Flags().String("caller", "", "caller identity (the pool authority for admin operations)")
}

func addFeeFlags(cmd *cobra.Command) {
	cmd.Flags().Uint16("reflection-bps", 0, "reflection fee share in basis points")
	cmd.Flags().Uint16("lp-bps", 0, "liquidity fee share in basis points")
	cmd.Flags().Uint16("burn-bps", 0, "burn fee share in basis points")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
