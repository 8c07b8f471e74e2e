package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"tokenLedger/internal/airdrop"
	"tokenLedger/internal/ledger"
)

// target resolves --mint and the identity flag named who.
func (a *app) target(cmd *cobra.Command, who string) (common.Address, common.Address, error) {
	mint, err := addressFlag(cmd, "mint")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	a.pin(mint)
	caller, err := addressFlag(cmd, who)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return mint, caller, nil
}

func poolCommands() []*cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init-pool",
		Short: "Initialize a pool for a token mint",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, authority, err := a.target(cmd, "authority")
			if err != nil {
				return err
			}
			fees, err := feesFlags(cmd)
			if err != nil {
				return err
			}
			guardian, err := optionalAddressFlag(cmd, "guardian")
			if err != nil {
				return err
			}
			cfg, err := a.ledger.InitializePool(a.ctx, ledger.InitParams{
				Mint:      mint,
				Authority: authority,
				Fees:      fees,
				Guardian:  guardian,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, cfg)
		}),
	}
	addMintFlag(initCmd)
	initCmd.Flags().String("authority", "", "administrative authority of the pool")
	initCmd.Flags().String("guardian", "", "optional guardian that co-signs emergency fee updates")
	addFeeFlags(initCmd)

	pause := func(use, short string, paused bool) *cobra.Command {
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: withApp(func(a *app, cmd *cobra.Command) error {
				mint, caller, err := a.target(cmd, "caller")
				if err != nil {
					return err
				}
				if err := a.ledger.SetPaused(a.ctx, mint, caller, paused); err != nil {
					return err
				}
				cfg, err := a.ledger.Pool(a.ctx, mint)
				if err != nil {
					return err
				}
				return printJSON(cmd, cfg)
			}),
		}
		addMintFlag(cmd)
		addCallerFlag(cmd)
		return cmd
	}

	return []*cobra.Command{
		initCmd,
		pause("pause", "Pause new stakes", true),
		pause("unpause", "Resume new stakes", false),
	}
}

func stakeCommands() []*cobra.Command {
	stake := &cobra.Command{
		Use:   "stake",
		Short: "Stake tokens into a pool",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, participant, err := a.target(cmd, "participant")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			pos, err := a.ledger.Stake(a.ctx, mint, participant, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd, pos)
		}),
	}

	unstake := &cobra.Command{
		Use:   "unstake",
		Short: "Withdraw staked principal",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, participant, err := a.target(cmd, "participant")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			pos, err := a.ledger.Unstake(a.ctx, mint, participant, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd, pos)
		}),
	}

	claim := &cobra.Command{
		Use:   "claim",
		Short: "Pay out accrued reflections",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, participant, err := a.target(cmd, "participant")
			if err != nil {
				return err
			}
			claimed, err := a.ledger.Claim(a.ctx, mint, participant)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"participant": participant, "claimed": claimed})
		}),
	}

	deposit := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit reflections for current stakers",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			cfg, err := a.ledger.DepositReflections(a.ctx, mint, caller, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd, cfg)
		}),
	}

	for _, cmd := range []*cobra.Command{stake, unstake, claim} {
		addMintFlag(cmd)
		cmd.Flags().String("participant", "", "staker identity")
	}
	for _, cmd := range []*cobra.Command{stake, unstake, deposit} {
		cmd.Flags().Uint64("amount", 0, "amount in base units")
	}
	addMintFlag(deposit)
	addCallerFlag(deposit)

	return []*cobra.Command{stake, unstake, claim, deposit}
}

func governanceCommands() []*cobra.Command {
	proposeFees := &cobra.Command{
		Use:   "propose-fees",
		Short: "Queue a fee change behind the 24h timelock",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			fees, err := feesFlags(cmd)
			if err != nil {
				return err
			}
			p, err := a.ledger.ProposeFeeUpdate(a.ctx, mint, caller, fees)
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		}),
	}
	addFeeFlags(proposeFees)

	proposeAuthority := &cobra.Command{
		Use:   "propose-authority",
		Short: "Queue an authority transfer behind the 24h timelock",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			next, err := addressFlag(cmd, "new-authority")
			if err != nil {
				return err
			}
			p, err := a.ledger.ProposeAuthorityTransfer(a.ctx, mint, caller, next)
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		}),
	}
	proposeAuthority.Flags().String("new-authority", "", "identity that becomes the pool authority")

	type proposalOp func(a *app, mint, caller common.Address, cmd *cobra.Command) (interface{}, error)
	byID := func(use, short string, run proposalOp) *cobra.Command {
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: withApp(func(a *app, cmd *cobra.Command) error {
				mint, caller, err := a.target(cmd, "caller")
				if err != nil {
					return err
				}
				out, err := run(a, mint, caller, cmd)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			}),
		}
		cmd.Flags().String("proposal", "", "proposal id")
		return cmd
	}

	executeFees := byID("execute-fees", "Apply a fee proposal after its timelock", func(a *app, mint, caller common.Address, cmd *cobra.Command) (interface{}, error) {
		id, err := proposalFlag(cmd)
		if err != nil {
			return nil, err
		}
		return a.ledger.ExecuteFeeUpdate(a.ctx, mint, caller, id)
	})
	cancelFees := byID("cancel-fees", "Cancel a fee proposal", func(a *app, mint, caller common.Address, cmd *cobra.Command) (interface{}, error) {
		id, err := proposalFlag(cmd)
		if err != nil {
			return nil, err
		}
		return a.ledger.CancelFeeProposal(a.ctx, mint, caller, id)
	})
	executeAuthority := byID("execute-authority", "Apply an authority transfer after its timelock", func(a *app, mint, caller common.Address, cmd *cobra.Command) (interface{}, error) {
		id, err := proposalFlag(cmd)
		if err != nil {
			return nil, err
		}
		return a.ledger.ExecuteAuthorityTransfer(a.ctx, mint, caller, id)
	})
	cancelAuthority := byID("cancel-authority", "Cancel an authority transfer", func(a *app, mint, caller common.Address, cmd *cobra.Command) (interface{}, error) {
		id, err := proposalFlag(cmd)
		if err != nil {
			return nil, err
		}
		return a.ledger.CancelAuthorityTransfer(a.ctx, mint, caller, id)
	})

	emergency := &cobra.Command{
		Use:   "emergency-fees",
		Short: "Apply fees immediately with a guardian co-signature",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			fees, err := feesFlags(cmd)
			if err != nil {
				return err
			}
			sig, err := signatureFlag(cmd, "guardian-sig")
			if err != nil {
				return err
			}
			cfg, err := a.ledger.EmergencyUpdateFees(a.ctx, mint, caller, fees, sig)
			if err != nil {
				return err
			}
			return printJSON(cmd, cfg)
		}),
	}
	addFeeFlags(emergency)
	emergency.Flags().String("guardian-sig", "", "hex guardian signature from sign-emergency")

	sign := &cobra.Command{
		Use:   "sign-emergency",
		Short: "Produce a guardian co-signature for emergency-fees",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			fees, err := feesFlags(cmd)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("guardian-key")
			key, err := parseKey(raw)
			if err != nil {
				return fmt.Errorf("guardian key: %w", err)
			}
			cfg, err := a.ledger.Pool(a.ctx, mint)
			if err != nil {
				return err
			}
			sig, err := ledger.SignEmergency(key, cfg, fees)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"guardian":  cfg.Guardian,
				"fee_nonce": cfg.FeeNonce,
				"signature": fmt.Sprintf("0x%x", sig),
			})
		}),
	}
	addFeeFlags(sign)
	sign.Flags().String("guardian-key", "", "hex private key of the pool guardian")

	cmds := []*cobra.Command{proposeFees, executeFees, cancelFees, proposeAuthority, executeAuthority, cancelAuthority, emergency, sign}
	for _, cmd := range cmds {
		addMintFlag(cmd)
		if cmd != sign {
			addCallerFlag(cmd)
		}
	}
	return cmds
}

func lpCommands() []*cobra.Command {
	initVault := &cobra.Command{
		Use:   "lp-init",
		Short: "Create the pool's LP vault",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			v, err := a.ledger.InitializeLPVault(a.ctx, mint, caller)
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		}),
	}

	allocate := &cobra.Command{
		Use:   "lp-allocate",
		Short: "Move tokens into LP custody pending deployment",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			v, err := a.ledger.AllocateToLP(a.ctx, mint, caller, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		}),
	}

	record := &cobra.Command{
		Use:   "lp-record",
		Short: "Record a liquidity deployment made outside the ledger",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			shares, _ := cmd.Flags().GetUint64("shares")
			pool, err := addressFlag(cmd, "target")
			if err != nil {
				return err
			}
			d, err := a.ledger.RecordLPDeployment(a.ctx, mint, caller, amount, shares, pool)
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		}),
	}
	record.Flags().Uint64("shares", 0, "liquidity shares received")
	record.Flags().String("target", "", "external liquidity pool identity")

	withdraw := &cobra.Command{
		Use:   "lp-withdraw",
		Short: "Return undeployed LP funds to the authority",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			v, err := a.ledger.WithdrawFromLPVault(a.ctx, mint, caller, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		}),
	}

	cmds := []*cobra.Command{initVault, allocate, record, withdraw}
	for _, cmd := range cmds {
		addMintFlag(cmd)
		addCallerFlag(cmd)
	}
	for _, cmd := range []*cobra.Command{allocate, record, withdraw} {
		cmd.Flags().Uint64("amount", 0, "amount in base units")
	}
	return cmds
}

func registryCommands() []*cobra.Command {
	burn := &cobra.Command{
		Use:   "burn",
		Short: "Burn authority-held tokens",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			amount, err := amountFlag(cmd, "amount")
			if err != nil {
				return err
			}
			rec, err := a.ledger.Burn(a.ctx, mint, caller, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		}),
	}
	burn.Flags().Uint64("amount", 0, "amount in base units")

	register := &cobra.Command{
		Use:   "airdrop",
		Short: "Register an airdrop, in batches of at most 50 recipients",
		RunE: withApp(func(a *app, cmd *cobra.Command) error {
			mint, caller, err := a.target(cmd, "caller")
			if err != nil {
				return err
			}
			amountEach, err := amountFlag(cmd, "amount-each")
			if err != nil {
				return err
			}
			recipients, err := recipientsFlags(cmd)
			if err != nil {
				return err
			}
			batches, err := airdrop.SplitRecipients(recipients, ledger.MaxAirdropRecipients)
			if err != nil {
				return err
			}
			for i, batch := range batches {
				if _, err := a.ledger.RegisterAirdrop(a.ctx, mint, caller, batch, amountEach); err != nil {
					return fmt.Errorf("register batch %d of %d: %w", i+1, len(batches), err)
				}
			}
			c, err := a.ledger.Airdrop(a.ctx, mint)
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		}),
	}
	register.Flags().StringSlice("recipients", nil, "recipient addresses (comma-separated)")
	register.Flags().String("recipients-file", "", "file with one recipient address per line")
	register.Flags().Uint64("amount-each", 0, "amount per recipient in base units")

	cmds := []*cobra.Command{burn, register}
	for _, cmd := range cmds {
		addMintFlag(cmd)
		addCallerFlag(cmd)
	}
	return cmds
}

func recipientsFlags(cmd *cobra.Command) ([]common.Address, error) {
	inline, _ := cmd.Flags().GetStringSlice("recipients")
	recipients, err := airdrop.ParseRecipients(inline)
	if err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("recipients-file")
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open recipients file: %w", err)
		}
		defer file.Close()
		fromFile, err := airdrop.ReadRecipients(file)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, fromFile...)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients given")
	}
	return recipients, nil
}
