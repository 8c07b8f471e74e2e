package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"tokenLedger/internal/api"
)

func viewCommands() []*cobra.Command {
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a pool, or one participant's position with --owner",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			cfg, err := a.ledger.Pool(a.ctx, mint)
			if err != nil {
				return err
			}
			owner, err := optionalAddressFlag(cmd, "owner")
			if err != nil {
				return err
			}
			if owner == (common.Address{}) {
				return printJSON(cmd, api.NewPoolView(cfg))
			}
			pos, err := a.ledger.Position(a.ctx, mint, owner)
			if err != nil {
				return err
			}
			return printJSON(cmd, api.NewPositionView(pos, cfg.Decimals))
		}),
	}
	show.Flags().String("owner", "", "participant whose position to show")

	pools := &cobra.Command{
		Use:   "pools",
		Short: "List initialized pools",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			list, err := a.ledger.Pools(a.ctx)
			if err != nil {
				return err
			}
			out := make([]api.PoolView, 0, len(list))
			for _, cfg := range list {
				out = append(out, api.NewPoolView(cfg))
			}
			return printJSON(cmd, out)
		}),
	}

	proposals := &cobra.Command{
		Use:   "proposals",
		Short: "List a pool's governance proposals",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			list, err := a.ledger.Proposals(a.ctx, mint)
			if err != nil {
				return err
			}
			out := make([]api.ProposalView, 0, len(list))
			for _, p := range list {
				out = append(out, api.NewProposalView(p))
			}
			return printJSON(cmd, out)
		}),
	}

	lp := &cobra.Command{
		Use:   "lp",
		Short: "Show the LP vault and its deployments",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			v, err := a.ledger.Vault(a.ctx, mint)
			if err != nil {
				return err
			}
			deployments, err := a.ledger.Deployments(a.ctx, mint)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"vault": v, "deployments": deployments})
		}),
	}

	registries := &cobra.Command{
		Use:   "registries",
		Short: "Show burn and airdrop counters",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			burns, err := a.ledger.BurnRecord(a.ctx, mint)
			if err != nil {
				return err
			}
			drops, err := a.ledger.Airdrop(a.ctx, mint)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"burns": burns, "airdrops": drops})
		}),
	}

	audit := &cobra.Command{
		Use:   "audit",
		Short: "Recompute conservation rules and report violations",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			report, err := a.ledger.Audit(a.ctx, mint)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("audit found %d violation(s)", len(report.Violations))
			}
			return nil
		}),
	}

	events := &cobra.Command{
		Use:   "events",
		Short: "Print a pool's most recent ledger events",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			if a.events == nil {
				return fmt.Errorf("no event log configured")
			}
			limit, _ := cmd.Flags().GetInt("limit")
			list, err := a.events.Events(a.ctx, mint, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		}),
	}
	events.Flags().Int("limit", 50, "number of events to print")

	for _, cmd := range []*cobra.Command{show, proposals, lp, registries, audit, events} {
		addMintFlag(cmd)
	}
	return []*cobra.Command{show, pools, proposals, lp, registries, audit, events}
}
