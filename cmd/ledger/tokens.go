package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenLedger/internal/api"
)

func tokenCommands() []*cobra.Command {
	fund := &cobra.Command{
		Use:   "fund",
		Short: "Credit tokens in the local balance book",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			if a.book == nil {
				return fmt.Errorf("fund only works with the book transfer backend")
			}
			mint, account, err := a.target(cmd, "account")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			if _, err := a.book.Decimals(a.ctx, mint); err != nil {
				a.book.RegisterMint(mint, a.cfg.TokenDecimals)
				a.logger.Info("registered mint in book",
					zap.String("mint", mint.Hex()),
					zap.Uint8("decimals", a.cfg.TokenDecimals),
				)
			}
			if err := a.book.Mint(mint, account, amount); err != nil {
				return err
			}
			decimals, _ := a.book.Decimals(a.ctx, mint)
			balance := a.book.Balance(mint, account)
			return printJSON(cmd, map[string]interface{}{
				"account": account,
				"balance": balance,
				"display": api.FormatAmount(balance, decimals),
				"supply":  a.book.Supply(mint),
			})
		}),
	}
	fund.Flags().String("account", "", "account to credit")
	fund.Flags().Uint64("amount", 0, "amount in base units")

	info := &cobra.Command{
		Use:   "token-info",
		Short: "Show token metadata and, with --account, a balance",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			a.pin(mint)
			account, err := optionalAddressFlag(cmd, "account")
			if err != nil {
				return err
			}
			out := map[string]interface{}{"mint": mint}

			switch {
			case a.erc20 != nil:
				meta, err := a.erc20.Metadata(a.ctx, mint)
				if err != nil {
					return err
				}
				out["metadata"] = meta
				out["operator"] = a.erc20.OperatorAddress()
				if account != (common.Address{}) {
					bal, err := a.erc20.BalanceOf(a.ctx, mint, account)
					if err != nil {
						return err
					}
					out["balance"] = bal.String()
				}
			case a.book != nil:
				decimals, err := a.book.Decimals(a.ctx, mint)
				if err != nil {
					return err
				}
				out["decimals"] = decimals
				out["supply"] = a.book.Supply(mint)
				if account != (common.Address{}) {
					bal := a.book.Balance(mint, account)
					out["balance"] = bal
					out["display"] = api.FormatAmount(bal, decimals)
				}
			}
			out["custody"] = a.issuer.Accounts(mint)
			return printJSON(cmd, out)
		}),
	}
	info.Flags().String("account", "", "optional account to read a balance for")

	for _, cmd := range []*cobra.Command{fund, info} {
		addMintFlag(cmd)
	}
	return []*cobra.Command{fund, info}
}
